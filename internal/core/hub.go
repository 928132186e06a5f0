package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-server/internal/problems"
	"github.com/codeclash/codeclash-server/internal/store"
)

// Hub owns the room table: an explicit concurrent map of room id to its
// actor. Per-room serialization lives in the actors; the hub only guards the
// table itself, so rooms never contend with each other.
type Hub struct {
	log      zerolog.Logger
	cfg      RoomConfig
	ratings  store.RatingStore // may be nil: ratings are not persisted
	problems problems.Source   // may be nil: rooms carry no problem

	registry *Registry

	mu    sync.RWMutex
	rooms map[string]*roomActor
}

// NewHub creates the room coordinator. ratings and problemSrc are optional.
func NewHub(logger *zerolog.Logger, cfg RoomConfig, ratings store.RatingStore, problemSrc problems.Source) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.PairCapacity < 2 {
		cfg = DefaultRoomConfig()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRoomConfig().IdleTTL
	}
	return &Hub{
		log:      *logger,
		cfg:      cfg,
		ratings:  ratings,
		problems: problemSrc,
		registry: NewRegistry(),
		rooms:    make(map[string]*roomActor),
	}
}

// Registry exposes the connection registry to the transport layer.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run blocks until the context is cancelled, then stops every room actor.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	actors := make([]*roomActor, 0, len(h.rooms))
	for _, a := range h.rooms {
		actors = append(actors, a)
	}
	h.rooms = make(map[string]*roomActor)
	h.mu.Unlock()

	for _, a := range actors {
		a.stop()
	}
}

// CreateRoom instantiates a room of the given kind and returns its id.
// An empty problemID on duel/contest rooms picks a random problem when a
// catalog is available.
func (h *Hub) CreateRoom(kind RoomKind, problemID string) (string, error) {
	var problem *problems.Problem
	if h.problems != nil {
		var err error
		switch {
		case problemID != "":
			if problem, err = h.problems.Get(problemID); err != nil {
				return "", fmt.Errorf("resolve problem: %w", err)
			}
		case kind == RoomDuel || kind == RoomContest:
			if problem, err = h.problems.Random(""); err != nil {
				return "", fmt.Errorf("pick problem: %w", err)
			}
		}
	}
	return h.CreateRoomWith(kind, problem), nil
}

// CreateRoomWith instantiates a room around an already-resolved problem.
// Matchmaking uses this after applying difficulty preferences.
func (h *Hub) CreateRoomWith(kind RoomKind, problem *problems.Problem) string {
	id := uuid.NewString()
	room := NewRoom(id, kind, problem, h.cfg)

	h.mu.Lock()
	h.rooms[id] = newRoomActor(h, room, h.log)
	h.mu.Unlock()

	h.log.Info().Str("room_id", id).Str("kind", string(kind)).Msg("room created")
	return id
}

// Join attaches a connected client to a room and registers the connection for
// routing. Pair rooms are created lazily on first join, so a shared link works
// before anyone arrived; duels only exist once matchmaking or the API made
// them.
func (h *Hub) Join(client *Client, roomID string) error {
	actor := h.actor(roomID)
	if actor == nil {
		actor = h.createPairActor(roomID)
	}

	reply := make(chan error, 1)
	if err := actor.post(joinMsg{Client: client, Reply: reply}); err != nil {
		return err
	}
	if err := <-reply; err != nil {
		return err
	}
	return h.registry.Admit(client, roomID)
}

func (h *Hub) createPairActor(roomID string) *roomActor {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.rooms[roomID]; ok {
		return existing
	}
	room := NewRoom(roomID, RoomPair, nil, h.cfg)
	actor := newRoomActor(h, room, h.log)
	h.rooms[roomID] = actor
	h.log.Info().Str("room_id", roomID).Msg("pair room created on first join")
	return actor
}

// Dispatch routes a client command to its room actor.
func (h *Hub) Dispatch(client *Client, cmd *Command) error {
	roomID, err := h.registry.Route(client.ConnID)
	if err != nil {
		return err
	}
	actor := h.actor(roomID)
	if actor == nil {
		return ErrRoomNotFound
	}
	cmd.Sender = client
	return actor.post(commandMsg{Cmd: cmd})
}

// Disconnect handles a transport drop: the participant is kept for the grace
// window so a quick reconnect resumes instead of rejoining.
func (h *Hub) Disconnect(client *Client) {
	h.detach(client, false)
}

// Leave handles an explicit departure with immediate removal.
func (h *Hub) Leave(client *Client) {
	h.detach(client, true)
}

func (h *Hub) detach(client *Client, explicit bool) {
	roomID, err := h.registry.Route(client.ConnID)
	h.registry.Remove(client.ConnID)
	if err != nil {
		return
	}
	if actor := h.actor(roomID); actor != nil {
		_ = actor.post(leaveMsg{Client: client, Explicit: explicit})
	}
}

// Snapshot returns a point-in-time copy of room state, for lobby redirects
// and reconnection resyncs.
func (h *Hub) Snapshot(roomID string) (*RoomSnapshot, error) {
	actor := h.actor(roomID)
	if actor == nil {
		return nil, ErrRoomNotFound
	}
	reply := make(chan *RoomSnapshot, 1)
	if err := actor.post(snapshotMsg{Reply: reply}); err != nil {
		return nil, err
	}
	return <-reply, nil
}

// RoomExists reports whether a room is currently live.
func (h *Hub) RoomExists(roomID string) bool {
	return h.actor(roomID) != nil
}

func (h *Hub) actor(roomID string) *roomActor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

func (h *Hub) dropActor(roomID string, a *roomActor) {
	h.mu.Lock()
	if current, ok := h.rooms[roomID]; ok && current == a {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()
}

// persistDuel records the finished duel and moves both ratings. Persistence
// failures are logged, never propagated into the room.
func (h *Hub) persistDuel(r *Room, loserID string) {
	if h.ratings == nil {
		return
	}
	res := &store.DuelResult{
		RoomID:      r.ID,
		WinnerID:    r.WinnerID,
		LoserID:     loserID,
		WinnerDelta: r.WinnerDelta,
		FinishedAt:  r.FinishedAt,
	}
	if r.Problem != nil {
		res.ProblemID = r.Problem.ID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.ratings.ApplyDuelResult(ctx, res); err != nil {
		h.log.Error().Err(err).Str("room_id", r.ID).Msg("failed to persist duel result")
	}
}
