package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cabotin-go/internal/game"
	"cabotin-go/internal/words"
)

// Game is the part of game.GameService the chat needs.
type Game interface {
	StartSession(ctx context.Context, duration time.Duration) (*game.Session, error)
	ProcessGuess(ctx context.Context, nickname, text string) (game.Outcome, error)
	Thesaurus(ctx context.Context, term string, count int) ([]words.Neighbor, error)
}

const helpText = "commands: !start, !guess <word>, !thesaurus <word> [count], !help. " +
	"Say my name and I will take single words as guesses for a little while."

type Options struct {
	BotName     string
	AwakeWindow time.Duration
	Duration    time.Duration
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Handler answers chat lines. It is safe for concurrent use.
type Handler struct {
	game   Game
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	lastWakeup time.Time
}

// NewHandler returns a handler that starts awake.
func NewHandler(g Game, opts Options) *Handler {
	h := &Handler{
		game:   g,
		opts:   opts,
		logger: opts.Logger,
		now:    opts.Clock,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.lastWakeup = h.now()
	return h
}

// HandleLine processes one line from nick. ok is false when the bot has
// nothing to say.
func (h *Handler) HandleLine(ctx context.Context, nick, line string) (reply string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	if line == h.opts.BotName {
		h.wake()
		return "oui?", true
	}

	if strings.HasPrefix(line, "!") {
		cmd, err := Parse(line)
		if err != nil {
			var syntaxErr *SyntaxError
			if errors.As(err, &syntaxErr) {
				return "syntax error: " + syntaxErr.Expected, true
			}
			return "", false
		}
		return h.run(ctx, nick, cmd), true
	}

	if len(strings.Fields(line)) == 1 && h.awake() {
		return h.run(ctx, nick, Guess{Word: line}), true
	}
	return "", false
}

func (h *Handler) run(ctx context.Context, nick string, cmd Command) string {
	switch cmd := cmd.(type) {
	case Start:
		if _, err := h.game.StartSession(ctx, h.opts.Duration); err != nil {
			return failure(err)
		}
		return "game started"

	case Guess:
		return h.guess(ctx, nick, cmd.Word)

	case Thesaurus:
		neighbors, err := h.game.Thesaurus(ctx, cmd.Word, cmd.Count)
		if err != nil {
			if errors.Is(err, words.ErrNotFound) {
				return "term not found"
			}
			return failure(err)
		}
		return formatNeighbors(neighbors)

	case Help:
		return helpText
	}

	h.logger.Error("unhandled chat command", "command", fmt.Sprintf("%T", cmd))
	return ""
}

func (h *Handler) guess(ctx context.Context, nick, word string) string {
	outcome, err := h.game.ProcessGuess(ctx, nick, word)
	if err != nil {
		if errors.Is(err, game.ErrNoActiveSession) {
			return "no game in progress"
		}
		return failure(err)
	}

	switch outcome.Kind {
	case game.OutcomeWin:
		return "you guessed the word"
	case game.OutcomeMiss:
		return fmt.Sprintf("miss (%.4f)", outcome.Similarity)
	default:
		return "unknown word"
	}
}

func (h *Handler) wake() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastWakeup = h.now()
}

// awake reports whether the bot was woken up recently, and if so keeps it
// awake for another window.
func (h *Handler) awake() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if now.Sub(h.lastWakeup) >= h.opts.AwakeWindow {
		return false
	}
	h.lastWakeup = now
	return true
}

func failure(err error) string {
	return fmt.Sprintf("something went wrong (`%v`)", err)
}

func formatNeighbors(neighbors []words.Neighbor) string {
	if len(neighbors) == 0 {
		return "no neighbours"
	}
	parts := make([]string, len(neighbors))
	for i, n := range neighbors {
		parts[i] = fmt.Sprintf("%s (%.4f)", n.Term, n.Similarity)
	}
	return strings.Join(parts, ", ")
}
