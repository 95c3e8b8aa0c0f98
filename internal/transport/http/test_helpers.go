package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelclasses/chat-server/internal/auth"
	"github.com/pixelclasses/chat-server/internal/chat"
	"github.com/pixelclasses/chat-server/internal/config"
	"github.com/pixelclasses/chat-server/internal/notify"
	"github.com/pixelclasses/chat-server/internal/store"
	"github.com/pixelclasses/chat-server/internal/store/sqlite"
)

// testEnv bundles a fully wired server for handler tests: in-memory store,
// chat service with hub, and an httptest frontend.
type testEnv struct {
	ts    *httptest.Server
	store store.Store
	auth  *auth.Service
	svc   *chat.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := zerolog.Nop()
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := chat.NewHub(&logger)
	inbox := chat.NewInboxAggregator(st)
	debounce := chat.NewDebouncer(15 * time.Minute)
	notifier := notify.New(st, &notify.LogMailer{Log: &logger}, 16, 1, &logger)
	svc := chat.NewService(st, hub, inbox, debounce, notifier, &logger)

	server := NewServer(svc, hub, authService, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		SessionBuffer:     32,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService, svc: svc}
}

// registerUser registers a user through the auth service and returns the
// stored record alongside a valid token.
func (e *testEnv) registerUser(t *testing.T, username string) (*store.User, string) {
	t.Helper()

	token, err := e.auth.Register(context.Background(), username, username+"@example.com", "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	u, err := e.store.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("load %s: %v", username, err)
	}
	return u, token
}

// doJSON issues an authenticated JSON request and decodes the response body
// into out (when out is non-nil). It returns the HTTP status code.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := stdhttp.NewRequest(method, e.ts.URL+path, reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
