package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-server/internal/core"
)

// RoomHandlers provides the HTTP handoff into the realtime coordinator:
// creating a room returns an id the coordinator then owns.
type RoomHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{hub: hub, log: logger}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Kind      string `json:"kind" binding:"required,oneof=pair duel contest"`
	ProblemID string `json:"problem_id"`
}

// CreateRoomResponse carries the new room id.
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// CreateRoom handles POST /api/rooms.
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	if _, _, ok := currentUser(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	roomID, err := h.hub.CreateRoom(core.RoomKind(req.Kind), req.ProblemID)
	if err != nil {
		h.log.Debug().Err(err).Str("problem_id", req.ProblemID).Msg("create room failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown problem"})
		return
	}

	c.JSON(http.StatusCreated, CreateRoomResponse{RoomID: roomID})
}

// RoomStateResponse is the read-only room view for lobby redirects.
type RoomStateResponse struct {
	RoomID    string `json:"room_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	ProblemID string `json:"problem_id,omitempty"`
	Members   int    `json:"members"`
	WinnerID  string `json:"winner_id,omitempty"`
}

// GetRoom handles GET /api/rooms/:id.
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	snap, err := h.hub.Snapshot(c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Msg("room snapshot failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, RoomStateResponse{
		RoomID:    snap.RoomID,
		Kind:      string(snap.Kind),
		Status:    string(snap.Status),
		ProblemID: snap.ProblemID,
		Members:   len(snap.Members),
		WinnerID:  snap.WinnerID,
	})
}
