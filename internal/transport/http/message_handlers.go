package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelclasses/chat-server/internal/chat"
	"github.com/pixelclasses/chat-server/internal/store"
)

// MessageHandlers provides the REST read/mutation path for messages.
type MessageHandlers struct {
	svc   *chat.Service
	store store.Store
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *chat.Service, st store.Store, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		svc:   svc,
		store: st,
		log:   logger,
	}
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        int64   `json:"id"`
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp"`
	IsSeen    bool    `json:"is_seen"`
	SeenAt    *string `json:"seen_at"`
}

// EditMessageRequest represents the edit request body.
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Conversation returns the full history with a conversation partner.
// GET /api/conversation/:peer?q=filter
func (h *MessageHandlers) Conversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	username := c.GetString(ContextKeyUsername)

	peer, err := h.store.GetUserByUsername(c.Request.Context(), c.Param("peer"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Msg("resolve conversation peer")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	msgs, err := h.svc.History(c.Request.Context(), userID, peer.ID, c.Query("q"))
	if err != nil {
		h.log.Error().Err(err).Msg("load conversation history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		senderName, receiverName := username, peer.Username
		if m.SenderID == peer.ID {
			senderName, receiverName = peer.Username, username
		}
		response = append(response, toMessageResponse(m, senderName, receiverName))
	}
	c.JSON(http.StatusOK, response)
}

// EditMessage replaces a message's content; sender-only.
// PUT /api/message/:id
func (h *MessageHandlers) EditMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.svc.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Edit is sender-only, so the sender is the authenticated user.
	receiverName := ""
	if receiver, err := h.store.GetUserByID(c.Request.Context(), msg.ReceiverID); err == nil {
		receiverName = receiver.Username
	}
	c.JSON(http.StatusOK, toMessageResponse(msg, c.GetString(ContextKeyUsername), receiverName))
}

// DeleteMessage removes a message; sender-only.
// DELETE /api/message/:id
func (h *MessageHandlers) DeleteMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), messageID, userID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Inbox returns the aggregated conversation list for the current user.
// GET /api/inbox
func (h *MessageHandlers) Inbox(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	entries, err := h.svc.Inbox(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("build inbox")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"inbox": toInboxItems(entries)})
}

func (h *MessageHandlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
	case errors.Is(err, chat.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the sender may modify a message"})
	case errors.Is(err, chat.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
	default:
		h.log.Error().Err(err).Msg("message mutation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func toMessageResponse(m *store.Message, senderName, receiverName string) MessageResponse {
	resp := MessageResponse{
		ID:        m.ID,
		Sender:    senderName,
		Receiver:  receiverName,
		Content:   m.Content,
		Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		IsSeen:    m.IsSeen,
	}
	if m.SeenAt != nil {
		s := m.SeenAt.UTC().Format(time.RFC3339)
		resp.SeenAt = &s
	}
	return resp
}
