package game

import (
	"time"
)

// EventType represents different types of game events
type EventType string

const (
	EventTypeSessionStarted EventType = "session_started"
	EventTypeSessionEnded   EventType = "session_ended"
	EventTypeGuessScored    EventType = "guess_scored"
	EventTypePlayerWon      EventType = "player_won"
	EventTypePlayerJoined   EventType = "player_joined"
)

// OutcomeKind is the result class of a processed guess.
type OutcomeKind string

const (
	OutcomeWin         OutcomeKind = "win"
	OutcomeMiss        OutcomeKind = "miss"
	OutcomeUnknownWord OutcomeKind = "unknown_word"
)

// Player represents someone who guessed at least once, identified by nickname.
type Player struct {
	ID       int64  `json:"id" db:"id"`
	Nickname string `json:"nickname" db:"nick"`
	Score    int    `json:"score" db:"score"`
}

// Session represents one round: a secret word and its lifetime.
type Session struct {
	ID           int64      `json:"id" db:"id"`
	StartedAt    time.Time  `json:"started_at" db:"start_date"`
	EndedAt      *time.Time `json:"ended_at,omitempty" db:"end_date"`
	PlannedEndAt time.Time  `json:"planned_end_at" db:"planned_end_date"`
	Word         string     `json:"word,omitempty" db:"word"`
	WinnerID     *int64     `json:"winner_id,omitempty" db:"winner_id"`
	Active       bool       `json:"active" db:"playing"`
}

// Overdue reports whether an active session ran past its planned end. The
// planned end is informational: nothing ends a session because of it.
func (s *Session) Overdue(now time.Time) bool {
	return s.Active && now.After(s.PlannedEndAt)
}

// Redacted returns a copy safe to show players: the word of an active
// session is hidden.
func (s *Session) Redacted() *Session {
	cp := *s
	if cp.Active {
		cp.Word = ""
	}
	return &cp
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// Guess is one scored attempt. Only guesses of vocabulary terms are stored.
type Guess struct {
	ID         int64     `json:"id" db:"id"`
	SessionID  int64     `json:"session_id" db:"session_id"`
	PlayerID   int64     `json:"player_id" db:"player_id"`
	Text       string    `json:"guess" db:"guess"`
	Similarity float64   `json:"similarity" db:"similarity"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Outcome is the result of ProcessGuess. Similarity is 1 for a win and
// unset for an unknown word; Points is only set for a win.
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	Guess      string      `json:"guess"`
	Similarity float64     `json:"similarity,omitempty"`
	Points     int         `json:"points,omitempty"`
	Player     *Player     `json:"player,omitempty"`
}

// GameEvent represents an event that occurred during a game
type GameEvent struct {
	Type      EventType      `json:"type"`
	SessionID int64          `json:"session_id"`
	PlayerID  *int64         `json:"player_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// SessionFilter defines the criteria for listing sessions
type SessionFilter struct {
	Active *bool
	Limit  int
	Offset int
}

// NewSessionFilter creates a new SessionFilter with default values
func NewSessionFilter() SessionFilter {
	return SessionFilter{
		Limit:  20,
		Offset: 0,
	}
}
