package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-server/internal/matchmaking"
	"github.com/codeclash/codeclash-server/internal/store"
)

// MatchHandlers exposes the matchmaking handoff: enqueue returns either an
// immediate room id or a token to poll; cancel is idempotent.
type MatchHandlers struct {
	queue *matchmaking.Queue
	users store.UserStore
	log   *zerolog.Logger
}

// NewMatchHandlers creates a new matchmaking handlers instance.
func NewMatchHandlers(queue *matchmaking.Queue, users store.UserStore, logger *zerolog.Logger) *MatchHandlers {
	return &MatchHandlers{queue: queue, users: users, log: logger}
}

// EnqueueRequest is the enqueue request body.
type EnqueueRequest struct {
	Difficulty string `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
}

// QueueStatusResponse describes a queue entry to the polling client.
type QueueStatusResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
	RoomID string `json:"room_id,omitempty"`
}

// Enqueue handles POST /api/matchmaking/queue.
func (h *MatchHandlers) Enqueue(c *gin.Context) {
	userID, displayName, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	rating := store.DefaultRating
	if user, err := h.users.GetUserByID(c.Request.Context(), userID); err == nil {
		rating = user.Rating
	}

	entry := h.queue.Enqueue(userID, displayName, rating, req.Difficulty)
	c.JSON(http.StatusOK, entryResponse(entry))
}

// Status handles GET /api/matchmaking/queue. Expiry is a status, not an
// error: the client falls back to polling or re-enqueues.
func (h *MatchHandlers) Status(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	entry, found := h.queue.Status(userID)
	if !found {
		c.JSON(http.StatusOK, QueueStatusResponse{Status: "idle"})
		return
	}
	c.JSON(http.StatusOK, entryResponse(entry))
}

// Cancel handles DELETE /api/matchmaking/queue.
func (h *MatchHandlers) Cancel(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	h.queue.Cancel(userID)
	c.Status(http.StatusNoContent)
}

func entryResponse(entry matchmaking.Entry) QueueStatusResponse {
	resp := QueueStatusResponse{Status: string(entry.State)}
	switch entry.State {
	case matchmaking.StateMatched:
		resp.RoomID = entry.RoomID
	case matchmaking.StateWaiting:
		resp.Token = entry.Token
	}
	return resp
}
