package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelclasses/chat-server/internal/auth"
	"github.com/pixelclasses/chat-server/internal/chat"
	"github.com/pixelclasses/chat-server/internal/proto"
	"github.com/pixelclasses/chat-server/internal/store"
)

// WSHandler upgrades HTTP connections to persistent sessions and bridges
// them to the chat service and hub. Authentication happens before the
// upgrade: a bad credential is refused with a plain HTTP status and no
// session state is ever created.
type WSHandler struct {
	svc    *chat.Service
	hub    *chat.Hub
	auth   *auth.Service
	store  store.Store
	buffer int
	log    *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(svc *chat.Service, hub *chat.Hub, authService *auth.Service, st store.Store, buffer int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		svc:    svc,
		hub:    hub,
		auth:   authService,
		store:  st,
		buffer: buffer,
		log:    logger,
	}
}

// Chat serves GET /ws/chat?peer=<username>&token=<jwt>: a session scoped
// to one conversation partner.
func (h *WSHandler) Chat(c *gin.Context) {
	claims, ok := h.authenticate(c)
	if !ok {
		return
	}

	peerName := c.Query("peer")
	if peerName == "" {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "peer is required"})
		return
	}
	peer, err := h.store.GetUserByUsername(c.Request.Context(), peerName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "peer not found"})
			return
		}
		h.log.Error().Err(err).Str("peer", peerName).Msg("resolve chat peer")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	session := chat.NewSession(claims.UserID, claims.Username, peer.ID, peer.Username, h.buffer)
	h.serve(c, session, peer)
}

// Notifications serves GET /ws/notifications?token=<jwt>: a session that
// only joins the user's notification group for badge, presence, and inbox
// pushes.
func (h *WSHandler) Notifications(c *gin.Context) {
	claims, ok := h.authenticate(c)
	if !ok {
		return
	}

	session := chat.NewNotificationSession(claims.UserID, claims.Username, h.buffer)
	h.serve(c, session, nil)
}

// authenticate extracts the bearer credential from the handshake (query
// parameter or cookie) and validates it. On failure the connection is
// refused before the upgrade.
func (h *WSHandler) authenticate(c *gin.Context) (*auth.Claims, bool) {
	token := c.Query("token")
	if token == "" {
		if cookie, err := c.Cookie("token"); err == nil {
			token = cookie
		}
	}
	if token == "" {
		c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "missing token"})
		return nil, false
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws handshake rejected")
		c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return nil, false
	}
	return claims, true
}

func (h *WSHandler) serve(c *gin.Context, session *chat.Session, peer *store.User) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	h.hub.Register(session)
	defer h.hub.Unregister(session)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, peer)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session_id", session.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop dispatches inbound frames. A bad frame gets an in-band error
// response and the session stays active; only transport errors end it.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *chat.Session, peer *store.User) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		switch inbound.Type {
		case proto.InboundTypeChat:
			if err := h.handleChat(ctx, conn, session, peer, inbound); err != nil {
				return err
			}
		case proto.InboundTypeSeen:
			if err := h.handleSeen(ctx, conn, inbound); err != nil {
				return err
			}
		default:
			if err := writeError(ctx, conn, "unknown message type"); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) handleChat(ctx context.Context, conn *websocket.Conn, session *chat.Session, peer *store.User, inbound proto.Inbound) error {
	if session.IsNotificationOnly() {
		return writeError(ctx, conn, "chat frames are not supported on this endpoint")
	}
	if inbound.Message == "" {
		return writeError(ctx, conn, "message text is required")
	}

	sender := &store.User{ID: session.UserID, Username: session.Username}
	if _, err := h.svc.SendMessage(ctx, sender, peer, inbound.Message, inbound.TempID); err != nil {
		h.log.Warn().Err(err).Str("session_id", session.ID).Msg("send message failed")
		return writeError(ctx, conn, userFacingError(err))
	}
	return nil
}

func (h *WSHandler) handleSeen(ctx context.Context, conn *websocket.Conn, inbound proto.Inbound) error {
	if inbound.MessageID == 0 {
		return writeError(ctx, conn, "message_id is required")
	}
	if err := h.svc.MarkSeen(ctx, inbound.MessageID); err != nil {
		return writeError(ctx, conn, userFacingError(err))
	}
	return nil
}

// writeLoop drains the session's outbound queue. Inbox-update signals are
// resolved here: the session recomputes its aggregate and pushes the data.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *chat.Session) error {
	for {
		select {
		case ev, ok := <-session.Events:
			if !ok {
				return nil
			}
			if ev.Kind == chat.EventInboxUpdate {
				if err := h.pushInbox(ctx, conn, session); err != nil {
					return err
				}
				continue
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(ev)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) pushInbox(ctx context.Context, conn *websocket.Conn, session *chat.Session) error {
	// Chat sessions have no inbox view; only notification sessions re-push.
	if !session.IsNotificationOnly() {
		return nil
	}
	entries, err := h.svc.Inbox(ctx, session.UserID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", session.UserID).Msg("recompute inbox")
		return writeError(ctx, conn, "failed to refresh inbox")
	}
	return wsjson.Write(ctx, conn, proto.InboxFrame{
		Type:  proto.OutboundTypeInboxData,
		Inbox: toInboxItems(entries),
	})
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) error {
	return wsjson.Write(ctx, conn, proto.ErrorFrame{Error: msg})
}

func userFacingError(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return "not found"
	case errors.Is(err, chat.ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, chat.ErrInvalidRequest):
		return "invalid request"
	default:
		return "internal error"
	}
}
