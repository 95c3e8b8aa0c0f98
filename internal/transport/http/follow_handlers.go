package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelclasses/chat-server/internal/chat"
	"github.com/pixelclasses/chat-server/internal/store"
)

// FollowHandlers provides HTTP handlers for the follow graph and user lookup.
type FollowHandlers struct {
	svc   *chat.Service
	store store.Store
	log   *zerolog.Logger
}

// NewFollowHandlers creates a new follow handlers instance.
func NewFollowHandlers(svc *chat.Service, st store.Store, logger *zerolog.Logger) *FollowHandlers {
	return &FollowHandlers{
		svc:   svc,
		store: st,
		log:   logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profile_pic"`
}

// FollowsResponse lists both directions of the current user's edges.
type FollowsResponse struct {
	Following []UserResponse `json:"following"`
	Followers []UserResponse `json:"followers"`
}

// Follow adds a follow edge to the target user.
// POST /api/follow/:username
func (h *FollowHandlers) Follow(c *gin.Context) {
	h.mutateEdge(c, true)
}

// Unfollow removes a follow edge.
// DELETE /api/follow/:username
func (h *FollowHandlers) Unfollow(c *gin.Context) {
	h.mutateEdge(c, false)
}

func (h *FollowHandlers) mutateEdge(c *gin.Context, create bool) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	target, err := h.store.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Msg("resolve follow target")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if target.ID == userID {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot follow yourself"})
		return
	}

	exists, err := h.store.IsFollowing(c.Request.Context(), userID, target.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Int64("target", target.ID).Msg("check follow edge")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if create == exists {
		// Edge already in the requested state.
		c.Status(http.StatusNoContent)
		return
	}

	if create {
		err = h.store.CreateFollow(c.Request.Context(), userID, target.ID)
	} else {
		err = h.store.DeleteFollow(c.Request.Context(), userID, target.ID)
	}
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Int64("target", target.ID).Msg("mutate follow edge")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	// Both inbox views include the partner set, so both go stale.
	h.svc.NotifySocialGraphChanged(userID, target.ID)

	c.Status(http.StatusNoContent)
}

// ListFollows returns the current user's following and follower lists.
// GET /api/follows
func (h *FollowHandlers) ListFollows(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	following, err := h.resolveUsers(c, h.store.ListFollowing, userID)
	if err != nil {
		return
	}
	followers, err := h.resolveUsers(c, h.store.ListFollowers, userID)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, FollowsResponse{Following: following, Followers: followers})
}

// SearchUsers handles searching for users by username substring.
// GET /api/users/search?q=query
func (h *FollowHandlers) SearchUsers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if len(query) < 3 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "search query must be at least 3 characters"})
		return
	}

	users, err := h.store.SearchUsers(c.Request.Context(), query)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("failed to search users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		response = append(response, h.toUserResponse(c, u))
	}
	c.JSON(http.StatusOK, response)
}

type edgeLister func(ctx context.Context, userID int64) ([]int64, error)

func (h *FollowHandlers) resolveUsers(c *gin.Context, list edgeLister, userID int64) ([]UserResponse, error) {
	ids, err := list(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("list follow edges")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return nil, err
	}

	users := make([]UserResponse, 0, len(ids))
	for _, id := range ids {
		u, err := h.store.GetUserByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			h.log.Error().Err(err).Int64("user_id", id).Msg("resolve follow user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return nil, err
		}
		users = append(users, h.toUserResponse(c, u))
	}
	return users, nil
}

func (h *FollowHandlers) toUserResponse(c *gin.Context, u *store.User) UserResponse {
	pic := store.DefaultProfilePic
	if profile, err := h.store.GetProfile(c.Request.Context(), u.ID); err == nil {
		pic = profile.ProfilePic
	}
	return UserResponse{ID: u.ID, Username: u.Username, ProfilePic: pic}
}
