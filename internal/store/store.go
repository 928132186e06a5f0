package store

import (
	"context"
	"time"
)

// User represents an account known to the platform. The realtime coordinator
// only ever sees the durable ID, display name and rating; everything else is
// auth surface.
type User struct {
	ID           string
	DisplayName  string
	PasswordHash string
	IsGuest      bool
	Rating       int
	CreatedAt    time.Time
}

// DefaultRating is assigned to every new account.
const DefaultRating = 1200

// DuelResult records the outcome of one finished duel. The loser's delta is
// the negation of WinnerDelta.
type DuelResult struct {
	ID          int64
	RoomID      string
	WinnerID    string
	LoserID     string
	WinnerDelta int
	ProblemID   string
	FinishedAt  time.Time
}

// UserStore manages user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, displayName, passwordHash string) (*User, error)
	CreateGuestUser(ctx context.Context, displayName string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByName(ctx context.Context, displayName string) (*User, error)
}

// RatingStore manages duel ratings and results.
type RatingStore interface {
	// GetRating returns the current rating for a user.
	GetRating(ctx context.Context, userID string) (int, error)

	// ApplyDuelResult persists a finished duel and moves both ratings by the
	// recorded delta in a single transaction.
	ApplyDuelResult(ctx context.Context, res *DuelResult) error

	// ListDuelResults returns the most recent finished duels for a user,
	// newest first.
	ListDuelResults(ctx context.Context, userID string, limit int) ([]*DuelResult, error)
}

// Store is the full persistence interface used by the app.
type Store interface {
	UserStore
	RatingStore
	Close() error
}
