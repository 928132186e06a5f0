package matchmaking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-server/internal/core"
	"github.com/codeclash/codeclash-server/internal/problems"
)

// EntryState is the queue entry lifecycle.
type EntryState string

const (
	StateWaiting   EntryState = "waiting"
	StateMatched   EntryState = "matched"
	StateCancelled EntryState = "cancelled"
	StateExpired   EntryState = "expired"
)

// Entry is one duelist waiting for an opponent.
type Entry struct {
	Token       string
	UserID      string
	DisplayName string
	Rating      int
	Difficulty  string // optional preference, empty = any
	EnqueuedAt  time.Time
	State       EntryState
	RoomID      string // set once matched
}

// RoomCreator instantiates duel rooms. Satisfied by core.Hub.
type RoomCreator interface {
	CreateRoomWith(kind core.RoomKind, problem *problems.Problem) string
}

// Options tunes the queue.
type Options struct {
	// Tick is the period of the background matching pass.
	Tick time.Duration
	// BaseBand is the allowed rating difference at enqueue time.
	BaseBand int
	// WidenStep is added to the band every WidenInterval of waiting, so a
	// long-waiting duelist accepts a wider gap instead of starving.
	WidenStep     int
	WidenInterval time.Duration
	// EntryTTL expires entries that never matched.
	EntryTTL time.Duration
}

// DefaultOptions returns the tuning used when config leaves it unset.
func DefaultOptions() Options {
	return Options{
		Tick:          2 * time.Second,
		BaseBand:      100,
		WidenStep:     50,
		WidenInterval: 5 * time.Second,
		EntryTTL:      60 * time.Second,
	}
}

// Queue pairs waiting duelists by rating proximity and wait time. A matching
// pass runs on every enqueue and on a periodic tick.
type Queue struct {
	log      zerolog.Logger
	rooms    RoomCreator
	problems problems.Source // may be nil
	opts     Options

	mu      sync.Mutex
	entries map[string]*Entry // by user id

	now func() time.Time // test hook
}

// New builds a queue. problemSrc is optional.
func New(logger *zerolog.Logger, rooms RoomCreator, problemSrc problems.Source, opts Options) *Queue {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Tick <= 0 {
		opts = DefaultOptions()
	}
	return &Queue{
		log:      *logger,
		rooms:    rooms,
		problems: problemSrc,
		opts:     opts,
		entries:  make(map[string]*Entry),
		now:      time.Now,
	}
}

// Run drives periodic matching and expiry until the context is cancelled.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.mu.Lock()
			q.expire()
			q.matchPass()
			q.mu.Unlock()
		}
	}
}

// Enqueue adds a duelist and immediately runs a matching pass, so a
// compatible pair never waits for the next tick. The returned copy is either
// already matched (with a room id) or waiting (poll by user id). Re-enqueueing
// while waiting returns the existing entry.
func (q *Queue) Enqueue(userID, displayName string, rating int, difficulty string) Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.entries[userID]; ok && existing.State == StateWaiting {
		return *existing
	}

	e := &Entry{
		Token:       uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		Rating:      rating,
		Difficulty:  difficulty,
		EnqueuedAt:  q.now(),
		State:       StateWaiting,
	}
	q.entries[userID] = e

	q.log.Debug().Str("user_id", userID).Int("rating", rating).Msg("duelist enqueued")
	q.matchPass()
	return *e
}

// Status returns the current entry for a duelist. Matched and expired entries
// stay visible until purged, so a poller always sees its outcome.
func (q *Queue) Status(userID string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expire()
	e, ok := q.entries[userID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Cancel withdraws a waiting duelist. Cancelling after a match already
// completed is a benign race: the match wins and this is a no-op.
func (q *Queue) Cancel(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[userID]
	if !ok || e.State != StateWaiting {
		return
	}
	e.State = StateCancelled
	delete(q.entries, userID)
	q.log.Debug().Str("user_id", userID).Msg("duelist cancelled")
}

// Band returns the allowed rating difference for an entry after the given
// wait. Non-decreasing in wait time.
func (q *Queue) Band(waited time.Duration) int {
	if waited < 0 {
		waited = 0
	}
	steps := int(waited / q.opts.WidenInterval)
	return q.opts.BaseBand + steps*q.opts.WidenStep
}

// expire and matchPass run with q.mu held.

func (q *Queue) expire() {
	now := q.now()
	for id, e := range q.entries {
		switch e.State {
		case StateWaiting:
			if now.Sub(e.EnqueuedAt) > q.opts.EntryTTL {
				e.State = StateExpired
				q.log.Debug().Str("user_id", id).Msg("queue entry expired")
			}
		case StateMatched, StateExpired:
			// Purge terminal entries once the poller had ample time.
			if now.Sub(e.EnqueuedAt) > 2*q.opts.EntryTTL {
				delete(q.entries, id)
			}
		}
	}
}

func (q *Queue) matchPass() {
	waiting := make([]*Entry, 0, len(q.entries))
	for _, e := range q.entries {
		if e.State == StateWaiting {
			waiting = append(waiting, e)
		}
	}
	if len(waiting) < 2 {
		return
	}
	sort.Slice(waiting, func(i, j int) bool { return waiting[i].Rating < waiting[j].Rating })

	now := q.now()
	// After sorting, the closest-rating candidate for any entry is its
	// neighbor, so a single greedy pass over adjacent pairs suffices.
	for i := 0; i < len(waiting)-1; i++ {
		a, b := waiting[i], waiting[i+1]
		if a.State != StateWaiting || b.State != StateWaiting {
			continue
		}
		if !compatibleDifficulty(a.Difficulty, b.Difficulty) {
			continue
		}
		diff := b.Rating - a.Rating
		if diff > q.Band(now.Sub(a.EnqueuedAt)) || diff > q.Band(now.Sub(b.EnqueuedAt)) {
			continue
		}
		q.match(a, b)
		i++ // b is taken
	}
}

func (q *Queue) match(a, b *Entry) {
	difficulty := a.Difficulty
	if difficulty == "" {
		difficulty = b.Difficulty
	}

	var problem *problems.Problem
	if q.problems != nil {
		p, err := q.problems.Random(difficulty)
		if err != nil && difficulty != "" {
			// Preference cannot be satisfied: fall back to any problem
			// rather than starving the pair.
			p, err = q.problems.Random("")
		}
		if err == nil {
			problem = p
		}
	}

	roomID := q.rooms.CreateRoomWith(core.RoomDuel, problem)
	a.State, b.State = StateMatched, StateMatched
	a.RoomID, b.RoomID = roomID, roomID

	q.log.Info().
		Str("room_id", roomID).
		Str("user_a", a.UserID).
		Str("user_b", b.UserID).
		Int("rating_gap", b.Rating-a.Rating).
		Msg("duelists matched")
}

func compatibleDifficulty(a, b string) bool {
	return a == "" || b == "" || a == b
}
