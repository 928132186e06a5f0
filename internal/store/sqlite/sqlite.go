package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codeclash/codeclash-server/internal/store"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	rating        INTEGER NOT NULL DEFAULT 1200,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS duel_results (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id      TEXT NOT NULL,
	winner_id    TEXT NOT NULL REFERENCES users(id),
	loser_id     TEXT NOT NULL REFERENCES users(id),
	winner_delta INTEGER NOT NULL,
	problem_id   TEXT NOT NULL DEFAULT '',
	finished_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_duel_results_winner ON duel_results(winner_id);
CREATE INDEX IF NOT EXISTS idx_duel_results_loser ON duel_results(loser_id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply an alternative schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new registered user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, displayName, passwordHash string) (*store.User, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO users (id, display_name, password_hash, is_guest, rating)
		VALUES (?, ?, ?, 0, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, displayName, passwordHash, store.DefaultRating); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a guest user. Guests get a rating too so they can
// queue for duels right away.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, displayName string) (*store.User, error) {
	id := uuid.NewString()
	if displayName == "" {
		displayName = "guest_" + id[:8]
	}
	query := `
		INSERT INTO users (id, display_name, password_hash, is_guest, rating)
		VALUES (?, ?, '', 1, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, displayName, store.DefaultRating); err != nil {
		// Display names are unique; guests picking a taken name get a salted
		// one instead of an error.
		salted := displayName + "_" + id[:4]
		if _, err2 := s.db.ExecContext(ctx, query, id, salted, store.DefaultRating); err2 != nil {
			return nil, fmt.Errorf("insert guest user: %w", err)
		}
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by durable id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, display_name, password_hash, is_guest, rating, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.PasswordHash,
		&user.IsGuest,
		&user.Rating,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

// GetUserByName retrieves a user by display name.
func (s *SQLiteStore) GetUserByName(ctx context.Context, displayName string) (*store.User, error) {
	query := `
		SELECT id, display_name, password_hash, is_guest, rating, created_at
		FROM users
		WHERE display_name = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, displayName).Scan(
		&user.ID,
		&user.DisplayName,
		&user.PasswordHash,
		&user.IsGuest,
		&user.Rating,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user by name: %w", err)
	}
	return &user, nil
}

// ==== RatingStore implementation ====

// GetRating returns the current rating for a user.
func (s *SQLiteStore) GetRating(ctx context.Context, userID string) (int, error) {
	var rating int
	err := s.db.QueryRowContext(ctx, `SELECT rating FROM users WHERE id = ?`, userID).Scan(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("select rating: %w", err)
	}
	return rating, nil
}

// ApplyDuelResult records a finished duel and moves both ratings inside one
// transaction so a crash cannot leave half the delta applied.
func (s *SQLiteStore) ApplyDuelResult(ctx context.Context, res *store.DuelResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET rating = rating + ? WHERE id = ?`,
		res.WinnerDelta, res.WinnerID,
	); err != nil {
		return fmt.Errorf("update winner rating: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET rating = MAX(0, rating - ?) WHERE id = ?`,
		res.WinnerDelta, res.LoserID,
	); err != nil {
		return fmt.Errorf("update loser rating: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO duel_results (room_id, winner_id, loser_id, winner_delta, problem_id, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.RoomID, res.WinnerID, res.LoserID, res.WinnerDelta, res.ProblemID, res.FinishedAt,
	); err != nil {
		return fmt.Errorf("insert duel result: %w", err)
	}

	return tx.Commit()
}

// ListDuelResults returns the most recent finished duels involving a user,
// newest first.
func (s *SQLiteStore) ListDuelResults(ctx context.Context, userID string, limit int) ([]*store.DuelResult, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, room_id, winner_id, loser_id, winner_delta, problem_id, finished_at
		FROM duel_results
		WHERE winner_id = ? OR loser_id = ?
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select duel results: %w", err)
	}
	defer rows.Close()

	var results []*store.DuelResult
	for rows.Next() {
		var res store.DuelResult
		if err := rows.Scan(
			&res.ID,
			&res.RoomID,
			&res.WinnerID,
			&res.LoserID,
			&res.WinnerDelta,
			&res.ProblemID,
			&res.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan duel result: %w", err)
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}
