package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// GameStore defines the interface for game persistence operations
type GameStore interface {
	// WithTx runs fn with a store bound to a single transaction. fn's store
	// must not escape the call. Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(tx GameStore) error) error

	// Session operations
	CurrentSession(ctx context.Context) (*Session, error)
	CreateSession(ctx context.Context, session *Session) error
	EndSession(ctx context.Context, sessionID int64, endedAt time.Time, winnerID *int64) error
	GetSession(ctx context.Context, id int64) (*Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error)
	CountActiveSessions(ctx context.Context) (int, error)

	// Player operations
	GetOrCreatePlayer(ctx context.Context, nickname string) (*Player, bool, error)
	AddPlayerScore(ctx context.Context, playerID int64, points int) error
	ListPlayers(ctx context.Context) ([]*Player, error)

	// Guess operations
	RecordGuess(ctx context.Context, guess *Guess) error
	ListGuesses(ctx context.Context, sessionID int64) ([]*Guess, error)
	SessionStats(ctx context.Context, sessionID int64) (guesses, players int, err error)
}

var (
	// ErrStorage wraps every persistence failure.
	ErrStorage         = errors.New("storage failure")
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionConflict means the stored current-session pointer disagrees
	// with the operation: starting while one is active, or ending one that
	// is not.
	ErrSessionConflict = errors.New("session state conflict")
)

const sessionColumns = `id, start_date, end_date, planned_end_date, word, winner_id, playing`

type sqlStore struct {
	db   *sqlx.DB
	q    sqlx.ExtContext
	inTx bool
}

// NewSQLStore wraps a migrated database.
func NewSQLStore(db *sqlx.DB) GameStore {
	return &sqlStore{db: db, q: db}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStorage, op, err)
}

func (s *sqlStore) WithTx(ctx context.Context, fn func(tx GameStore) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

func (s *sqlStore) CurrentSession(ctx context.Context) (*Session, error) {
	query := s.q.Rebind(`
		SELECT s.id, s.start_date, s.end_date, s.planned_end_date, s.word, s.winner_id, s.playing
		FROM current_session c
		JOIN sessions s ON s.id = c.session_id
		WHERE c.id = 0`)

	var session Session
	if err := sqlx.GetContext(ctx, s.q, &session, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get current session", err)
	}
	return &session, nil
}

func (s *sqlStore) CreateSession(ctx context.Context, session *Session) error {
	query := s.q.Rebind(`
		INSERT INTO sessions (start_date, planned_end_date, word, playing)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	if err := s.q.QueryRowxContext(ctx, query,
		session.StartedAt, session.PlannedEndAt, session.Word, true).Scan(&session.ID); err != nil {
		return storageErr("create session", err)
	}
	session.Active = true

	res, err := s.q.ExecContext(ctx, s.q.Rebind(
		`UPDATE current_session SET session_id = ? WHERE id = 0 AND session_id IS NULL`), session.ID)
	if err != nil {
		return storageErr("set current session", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storageErr("set current session", err)
	} else if n != 1 {
		return fmt.Errorf("%w: another session is in progress", ErrSessionConflict)
	}
	return nil
}

func (s *sqlStore) EndSession(ctx context.Context, sessionID int64, endedAt time.Time, winnerID *int64) error {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(`
		UPDATE sessions
		SET end_date = ?, winner_id = ?, playing = ?
		WHERE id = ? AND playing`),
		endedAt, winnerID, false, sessionID)
	if err != nil {
		return storageErr("end session", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storageErr("end session", err)
	} else if n != 1 {
		return fmt.Errorf("%w: session %d is not in progress", ErrSessionConflict, sessionID)
	}

	if _, err := s.q.ExecContext(ctx, s.q.Rebind(
		`UPDATE current_session SET session_id = NULL WHERE id = 0 AND session_id = ?`), sessionID); err != nil {
		return storageErr("clear current session", err)
	}
	return nil
}

func (s *sqlStore) GetSession(ctx context.Context, id int64) (*Session, error) {
	query := s.q.Rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`)

	var session Session
	if err := sqlx.GetContext(ctx, s.q, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, storageErr("get session", err)
	}
	return &session, nil
}

func (s *sqlStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []interface{}

	if filter.Active != nil {
		query += ` WHERE playing = ?`
		args = append(args, *filter.Active)
	}
	if filter.Limit <= 0 {
		filter.Limit = NewSessionFilter().Limit
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, max(filter.Offset, 0))

	sessions := []*Session{}
	if err := sqlx.SelectContext(ctx, s.q, &sessions, s.q.Rebind(query), args...); err != nil {
		return nil, storageErr("list sessions", err)
	}
	return sessions, nil
}

func (s *sqlStore) CountActiveSessions(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, s.q, &n, `SELECT COUNT(*) FROM sessions WHERE playing`); err != nil {
		return 0, storageErr("count active sessions", err)
	}
	return n, nil
}

func (s *sqlStore) GetOrCreatePlayer(ctx context.Context, nickname string) (*Player, bool, error) {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(`
		INSERT INTO players (nick, score) VALUES (?, 0)
		ON CONFLICT (nick) DO NOTHING`), nickname)
	if err != nil {
		return nil, false, storageErr("create player", err)
	}
	created, err := res.RowsAffected()
	if err != nil {
		return nil, false, storageErr("create player", err)
	}

	var player Player
	if err := sqlx.GetContext(ctx, s.q, &player,
		s.q.Rebind(`SELECT id, nick, score FROM players WHERE nick = ?`), nickname); err != nil {
		return nil, false, storageErr("get player", err)
	}
	return &player, created == 1, nil
}

func (s *sqlStore) AddPlayerScore(ctx context.Context, playerID int64, points int) error {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(
		`UPDATE players SET score = score + ? WHERE id = ?`), points, playerID)
	if err != nil {
		return storageErr("update player score", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storageErr("update player score", err)
	} else if n != 1 {
		return fmt.Errorf("%w: player %d not found", ErrStorage, playerID)
	}
	return nil
}

func (s *sqlStore) ListPlayers(ctx context.Context) ([]*Player, error) {
	players := []*Player{}
	if err := sqlx.SelectContext(ctx, s.q, &players,
		`SELECT id, nick, score FROM players ORDER BY score DESC, id ASC`); err != nil {
		return nil, storageErr("list players", err)
	}
	return players, nil
}

func (s *sqlStore) RecordGuess(ctx context.Context, guess *Guess) error {
	query := s.q.Rebind(`
		INSERT INTO guesses (session_id, player_id, guess, similarity, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	if err := s.q.QueryRowxContext(ctx, query,
		guess.SessionID, guess.PlayerID, guess.Text, guess.Similarity, guess.CreatedAt).Scan(&guess.ID); err != nil {
		return storageErr("record guess", err)
	}
	return nil
}

func (s *sqlStore) ListGuesses(ctx context.Context, sessionID int64) ([]*Guess, error) {
	guesses := []*Guess{}
	if err := sqlx.SelectContext(ctx, s.q, &guesses, s.q.Rebind(`
		SELECT id, session_id, player_id, guess, similarity, created_at
		FROM guesses
		WHERE session_id = ?
		ORDER BY id ASC`), sessionID); err != nil {
		return nil, storageErr("list guesses", err)
	}
	return guesses, nil
}

func (s *sqlStore) SessionStats(ctx context.Context, sessionID int64) (int, int, error) {
	var stats struct {
		Guesses int `db:"guesses"`
		Players int `db:"players"`
	}
	if err := sqlx.GetContext(ctx, s.q, &stats, s.q.Rebind(`
		SELECT COUNT(*) AS guesses, COUNT(DISTINCT player_id) AS players
		FROM guesses
		WHERE session_id = ?`), sessionID); err != nil {
		return 0, 0, storageErr("get session stats", err)
	}
	return stats.Guesses, stats.Players, nil
}
