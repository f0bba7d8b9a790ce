package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cabotin-go/internal/words"
)

// GameService is the concurrency-safe handle on the game used by the chat
// and dashboard layers. Every call runs on the worker pool; calls that read
// or change the live session hold the game lock for their whole duration.
type GameService interface {
	StartSession(ctx context.Context, duration time.Duration) (*Session, error)
	ProcessGuess(ctx context.Context, nickname, text string) (Outcome, error)
	EndSession(ctx context.Context, sessionID int64) (*Session, error)
	Current(ctx context.Context) (*Session, error)
	Thesaurus(ctx context.Context, term string, count int) ([]words.Neighbor, error)
	Players(ctx context.Context) ([]*Player, error)
	Sessions(ctx context.Context, filter SessionFilter) ([]*Session, error)
	Guesses(ctx context.Context, sessionID int64) ([]*Guess, error)
	Subscribe() (<-chan GameEvent, func())
	Close()
}

// WordStore is the vocabulary as seen by the service.
type WordStore interface {
	Vocabulary
	NearestNeighbors(term string, count int) ([]words.Neighbor, error)
}

// ThesaurusCache stores nearest-neighbour results by term and count.
type ThesaurusCache interface {
	Get(term string, count int) ([]words.Neighbor, bool, error)
	Put(term string, count int, neighbors []words.Neighbor) error
}

type ServiceOptions struct {
	Workers      int
	Queue        int
	DefaultCount int
	MaxCount     int
	Cache        ThesaurusCache
	Logger       *slog.Logger
	Clock        func() time.Time
}

type gameService struct {
	mu           sync.Mutex
	engine       *GameEngine
	store        GameStore
	words        WordStore
	cache        ThesaurusCache
	pool         *WorkerPool
	broker       *Broker
	logger       *slog.Logger
	defaultCount int
	maxCount     int
}

// NewGameService restores the engine from store and starts the worker pool.
// The pool stops when ctx is cancelled or Close is called.
func NewGameService(ctx context.Context, store GameStore, ws WordStore, opts ServiceOptions) (GameService, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = 1
	}
	if opts.MaxCount < opts.DefaultCount {
		opts.MaxCount = opts.DefaultCount
	}

	broker := NewBroker(0, logger)
	engineOpts := []EngineOption{WithLogger(logger), WithPublisher(broker.Publish)}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, WithClock(opts.Clock))
	}
	engine, err := LoadEngine(ctx, store, ws, engineOpts...)
	if err != nil {
		return nil, err
	}

	s := &gameService{
		engine:       engine,
		store:        store,
		words:        ws,
		cache:        opts.Cache,
		pool:         NewWorkerPool(opts.Workers, opts.Queue),
		broker:       broker,
		logger:       logger,
		defaultCount: opts.DefaultCount,
		maxCount:     opts.MaxCount,
	}
	s.pool.Start(context.WithoutCancel(ctx))
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.pool.Done():
		}
	}()
	return s, nil
}

// run executes fn on the pool. locked calls hold the game lock.
func (s *gameService) run(ctx context.Context, op string, locked bool, fn func(ctx context.Context) error) error {
	logger := s.logger.With("request_id", uuid.NewString(), "op", op)
	start := time.Now()

	err := s.pool.Do(ctx, func(ctx context.Context) error {
		if locked {
			s.mu.Lock()
			defer s.mu.Unlock()
		}
		return fn(ctx)
	})

	switch {
	case err == nil:
		logger.Debug("request completed", "duration", time.Since(start))
	case errors.Is(err, ErrInvariantViolation):
		logger.Error("invariant violation", "error", err)
	case errors.Is(err, ErrStorage):
		logger.Warn("storage failure", "error", err)
	default:
		logger.Debug("request failed", "error", err, "duration", time.Since(start))
	}
	return err
}

func (s *gameService) StartSession(ctx context.Context, duration time.Duration) (*Session, error) {
	var session *Session
	err := s.run(ctx, "start_session", true, func(ctx context.Context) error {
		var err error
		session, err = s.engine.StartSession(ctx, duration)
		return err
	})
	return session, err
}

func (s *gameService) ProcessGuess(ctx context.Context, nickname, text string) (Outcome, error) {
	var outcome Outcome
	err := s.run(ctx, "process_guess", true, func(ctx context.Context) error {
		var err error
		outcome, err = s.engine.ProcessGuess(ctx, nickname, text)
		return err
	})
	return outcome, err
}

// EndSession aborts sessionID with no winner, or the session in progress
// when sessionID is 0.
func (s *gameService) EndSession(ctx context.Context, sessionID int64) (*Session, error) {
	var session *Session
	err := s.run(ctx, "end_session", true, func(ctx context.Context) error {
		var err error
		session, err = s.engine.AbortSession(ctx, sessionID)
		return err
	})
	return session, err
}

// Current returns the session in progress or ErrNoActiveSession. The secret
// word is included; callers showing it to players must redact it.
func (s *gameService) Current(ctx context.Context) (*Session, error) {
	var session *Session
	err := s.run(ctx, "current_session", true, func(context.Context) error {
		session = s.engine.Current()
		if session == nil {
			return ErrNoActiveSession
		}
		return nil
	})
	return session, err
}

// Thesaurus returns the nearest neighbours of term, looked up as given and
// then normalized. count <= 0 means the default count; larger counts are
// capped.
func (s *gameService) Thesaurus(ctx context.Context, term string, count int) ([]words.Neighbor, error) {
	if count <= 0 {
		count = s.defaultCount
	}
	count = min(count, s.maxCount)

	var neighbors []words.Neighbor
	err := s.run(ctx, "thesaurus", false, func(context.Context) error {
		term := ResolveTerm(s.words, term)
		if s.cache != nil {
			cached, ok, err := s.cache.Get(term, count)
			if err != nil {
				s.logger.Warn("thesaurus cache read failed", "term", term, "error", err)
			} else if ok {
				neighbors = cached
				return nil
			}
		}

		var err error
		neighbors, err = s.words.NearestNeighbors(term, count)
		if err != nil {
			return err
		}

		if s.cache != nil {
			if err := s.cache.Put(term, count, neighbors); err != nil {
				s.logger.Warn("thesaurus cache write failed", "term", term, "error", err)
			}
		}
		return nil
	})
	return neighbors, err
}

func (s *gameService) Players(ctx context.Context) ([]*Player, error) {
	var players []*Player
	err := s.run(ctx, "list_players", false, func(ctx context.Context) error {
		var err error
		players, err = s.store.ListPlayers(ctx)
		return err
	})
	return players, err
}

func (s *gameService) Sessions(ctx context.Context, filter SessionFilter) ([]*Session, error) {
	var sessions []*Session
	err := s.run(ctx, "list_sessions", false, func(ctx context.Context) error {
		var err error
		sessions, err = s.store.ListSessions(ctx, filter)
		return err
	})
	return sessions, err
}

func (s *gameService) Guesses(ctx context.Context, sessionID int64) ([]*Guess, error) {
	var guesses []*Guess
	err := s.run(ctx, "list_guesses", false, func(ctx context.Context) error {
		if _, err := s.store.GetSession(ctx, sessionID); err != nil {
			return err
		}
		var err error
		guesses, err = s.store.ListGuesses(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to get guesses of session %d: %w", sessionID, err)
		}
		return nil
	})
	return guesses, err
}

func (s *gameService) Subscribe() (<-chan GameEvent, func()) {
	return s.broker.Subscribe()
}

// Close stops the worker pool and closes every event subscription.
func (s *gameService) Close() {
	s.pool.Close()
	s.broker.Close()
}
