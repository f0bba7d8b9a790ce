package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"cabotin-go/internal/game/ranking"
	"cabotin-go/internal/words"
)

var (
	ErrNoActiveSession    = errors.New("there's no game in progress")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrInvalidDuration    = errors.New("session duration must be positive")
	ErrInvalidNickname    = errors.New("nickname must be non-empty")
)

// maxMissSimilarity is the highest score a guess other than the secret
// word can get: 1.0 is reserved for the exact match.
var maxMissSimilarity = math.Nextafter(1, 0)

// Vocabulary is what the engine needs from the word store.
type Vocabulary interface {
	Vector(term string) ([]float32, bool)
	RandomTerm() string
}

// GameEngine owns the current session. It is not safe for concurrent use:
// Service serializes every call.
type GameEngine struct {
	store   GameStore
	vocab   Vocabulary
	logger  *slog.Logger
	now     func() time.Time
	publish func(GameEvent)
	current *Session
}

type EngineOption func(*GameEngine)

func WithClock(now func() time.Time) EngineOption {
	return func(g *GameEngine) {
		g.now = now
	}
}

func WithLogger(logger *slog.Logger) EngineOption {
	return func(g *GameEngine) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPublisher receives an event after every committed state change.
func WithPublisher(publish func(GameEvent)) EngineOption {
	return func(g *GameEngine) {
		g.publish = publish
	}
}

// LoadEngine restores the session in progress, if the store has one.
func LoadEngine(ctx context.Context, store GameStore, vocab Vocabulary, opts ...EngineOption) (*GameEngine, error) {
	g := &GameEngine{
		store:   store,
		vocab:   vocab,
		logger:  slog.Default(),
		now:     time.Now,
		publish: func(GameEvent) {},
	}
	for _, opt := range opts {
		opt(g)
	}

	session, err := store.CurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load current session: %w", err)
	}
	if session == nil {
		g.logger.Info("no game in progress")
		return g, nil
	}

	if _, ok := vocab.Vector(session.Word); !ok {
		g.logger.Error("secret word of the current session is not in the vocabulary",
			"session_id", session.ID, "error", ErrInvariantViolation)
	}
	g.current = session
	g.logger.Info("loaded game session", "session_id", session.ID, "planned_end", session.PlannedEndAt)
	return g, nil
}

// Current returns a copy of the session in progress, or nil.
func (g *GameEngine) Current() *Session {
	return g.current.clone()
}

// NormalizeGuess trims and lower-cases a guess the way vocabulary terms are
// stored.
func NormalizeGuess(text string) string {
	text = norm.NFC.String(strings.TrimSpace(text))
	return cases.Lower(language.Und).String(text)
}

// ResolveTerm maps a looked-up term to its vocabulary spelling: the term as
// given when the vocabulary has it, its normalized form otherwise.
func ResolveTerm(vocab Vocabulary, term string) string {
	term = strings.TrimSpace(term)
	if _, ok := vocab.Vector(term); ok {
		return term
	}
	return NormalizeGuess(term)
}

// StartSession ends the session in progress with no winner, if any, then
// starts a new one with a freshly drawn word.
func (g *GameEngine) StartSession(ctx context.Context, duration time.Duration) (*Session, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	now := g.now().UTC()
	next := &Session{
		StartedAt:    now,
		PlannedEndAt: now.Add(duration),
		Word:         g.vocab.RandomTerm(),
	}
	prev := g.current.clone()

	err := g.store.WithTx(ctx, func(tx GameStore) error {
		if prev != nil {
			if err := tx.EndSession(ctx, prev.ID, now, nil); err != nil {
				return err
			}
		}
		return tx.CreateSession(ctx, next)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	if prev != nil {
		g.sessionEnded(prev, now, nil)
	}
	g.current = next

	g.logger.Info("new game started",
		"session_id", next.ID, "started_at", next.StartedAt, "planned_end", next.PlannedEndAt)
	g.publish(GameEvent{
		Type:      EventTypeSessionStarted,
		SessionID: next.ID,
		Timestamp: now,
		Payload: map[string]any{
			"planned_end_at": next.PlannedEndAt,
		},
	})

	return next.clone(), nil
}

// ProcessGuess scores a guess against the secret word and records it. A
// guess equal to the secret word wins and ends the session.
func (g *GameEngine) ProcessGuess(ctx context.Context, nickname, text string) (Outcome, error) {
	session := g.current
	if session == nil {
		return Outcome{}, ErrNoActiveSession
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return Outcome{}, ErrInvalidNickname
	}

	guess := NormalizeGuess(text)
	now := g.now().UTC()

	var (
		outcome Outcome
		joined  bool
	)
	err := g.store.WithTx(ctx, func(tx GameStore) error {
		player, created, err := tx.GetOrCreatePlayer(ctx, nickname)
		if err != nil {
			return err
		}
		joined = created
		outcome = Outcome{Guess: guess, Player: player}

		vec, ok := g.vocab.Vector(guess)
		if !ok {
			outcome.Kind = OutcomeUnknownWord
			return nil
		}

		similarity, err := g.similarity(guess, vec, session.Word)
		if err != nil {
			return err
		}

		if err := tx.RecordGuess(ctx, &Guess{
			SessionID:  session.ID,
			PlayerID:   player.ID,
			Text:       guess,
			Similarity: similarity,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		outcome.Similarity = similarity

		if guess != session.Word {
			outcome.Kind = OutcomeMiss
			return nil
		}

		points, err := g.endSession(ctx, tx, session.ID, now, &player.ID)
		if err != nil {
			return err
		}
		outcome.Kind = OutcomeWin
		outcome.Points = points
		player.Score += points
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to process guess: %w", err)
	}

	if joined {
		g.publish(GameEvent{
			Type:      EventTypePlayerJoined,
			SessionID: session.ID,
			PlayerID:  &outcome.Player.ID,
			Timestamp: now,
			Payload:   map[string]any{"nickname": outcome.Player.Nickname},
		})
	}

	switch outcome.Kind {
	case OutcomeMiss:
		g.publish(GameEvent{
			Type:      EventTypeGuessScored,
			SessionID: session.ID,
			PlayerID:  &outcome.Player.ID,
			Timestamp: now,
			Payload: map[string]any{
				"nickname":   outcome.Player.Nickname,
				"similarity": outcome.Similarity,
			},
		})
	case OutcomeWin:
		g.logger.Info("player found the word",
			"session_id", session.ID, "player", outcome.Player.Nickname, "points", outcome.Points)
		g.publish(GameEvent{
			Type:      EventTypePlayerWon,
			SessionID: session.ID,
			PlayerID:  &outcome.Player.ID,
			Timestamp: now,
			Payload: map[string]any{
				"nickname": outcome.Player.Nickname,
				"points":   outcome.Points,
				"word":     session.Word,
			},
		})
		g.sessionEnded(session, now, &outcome.Player.ID)
		g.current = nil
	}

	return outcome, nil
}

// EndSession ends the session in progress. A non-nil winnerID is recorded
// as the winner and awarded the win points.
func (g *GameEngine) EndSession(ctx context.Context, winnerID *int64) (*Session, error) {
	session := g.current
	if session == nil {
		return nil, ErrNoActiveSession
	}

	now := g.now().UTC()
	err := g.store.WithTx(ctx, func(tx GameStore) error {
		_, err := g.endSession(ctx, tx, session.ID, now, winnerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	ended := g.sessionEnded(session, now, winnerID)
	g.current = nil
	return ended, nil
}

// AbortSession ends sessionID with no winner. It fails with
// ErrSessionConflict when sessionID is not the session in progress. 0 means
// whichever session is in progress.
func (g *GameEngine) AbortSession(ctx context.Context, sessionID int64) (*Session, error) {
	if g.current == nil {
		return nil, ErrNoActiveSession
	}
	if sessionID != 0 && g.current.ID != sessionID {
		return nil, fmt.Errorf("session %d is not in progress: %w", sessionID, ErrSessionConflict)
	}
	return g.EndSession(ctx, nil)
}

func (g *GameEngine) endSession(ctx context.Context, tx GameStore, sessionID int64, now time.Time, winnerID *int64) (int, error) {
	if err := tx.EndSession(ctx, sessionID, now, winnerID); err != nil {
		return 0, err
	}
	if winnerID == nil {
		return 0, nil
	}

	guesses, players, err := tx.SessionStats(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	points := ranking.PointsForWin(guesses, players)
	if err := tx.AddPlayerScore(ctx, *winnerID, points); err != nil {
		return 0, err
	}
	return points, nil
}

// sessionEnded returns the ended copy of session and announces it.
func (g *GameEngine) sessionEnded(session *Session, now time.Time, winnerID *int64) *Session {
	ended := session.clone()
	ended.Active = false
	ended.EndedAt = &now
	ended.WinnerID = winnerID

	g.logger.Info("game ended", "session_id", ended.ID, "winner_id", winnerID)
	g.publish(GameEvent{
		Type:      EventTypeSessionEnded,
		SessionID: ended.ID,
		PlayerID:  winnerID,
		Timestamp: now,
		Payload: map[string]any{
			"word":   ended.Word,
			"winner": winnerID != nil,
		},
	})
	return ended
}

// similarity scores guess against word. The exact match is 1 by convention;
// anything else is the dot product, kept inside [-1, 1).
func (g *GameEngine) similarity(guess string, vec []float32, word string) (float64, error) {
	if guess == word {
		return 1, nil
	}

	target, ok := g.vocab.Vector(word)
	if !ok {
		return 0, fmt.Errorf("%w: could not find target word %q in vocabulary", ErrInvariantViolation, word)
	}
	if len(target) != len(vec) {
		return 0, fmt.Errorf("%w: vector dimensions differ (%d vs %d)", ErrInvariantViolation, len(vec), len(target))
	}

	sim := words.Dot(vec, target)
	switch {
	case math.IsNaN(sim):
		return 0, fmt.Errorf("%w: similarity of %q is NaN", ErrInvariantViolation, guess)
	case sim > maxMissSimilarity:
		sim = maxMissSimilarity
	case sim < -1:
		sim = -1
	}
	return sim, nil
}
