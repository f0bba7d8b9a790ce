package game

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"cabotin-go/internal/words"
)

// MockVocabulary is a mock implementation of WordStore
type MockVocabulary struct {
	mock.Mock
}

func (m *MockVocabulary) Vector(term string) ([]float32, bool) {
	args := m.Called(term)
	v, _ := args.Get(0).([]float32)
	return v, args.Bool(1)
}

func (m *MockVocabulary) RandomTerm() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockVocabulary) NearestNeighbors(term string, count int) ([]words.Neighbor, error) {
	args := m.Called(term, count)
	n, _ := args.Get(0).([]words.Neighbor)
	return n, args.Error(1)
}

// MockThesaurusCache is a mock implementation of ThesaurusCache
type MockThesaurusCache struct {
	mock.Mock
}

func (m *MockThesaurusCache) Get(term string, count int) ([]words.Neighbor, bool, error) {
	args := m.Called(term, count)
	n, _ := args.Get(0).([]words.Neighbor)
	return n, args.Bool(1), args.Error(2)
}

func (m *MockThesaurusCache) Put(term string, count int, neighbors []words.Neighbor) error {
	args := m.Called(term, count, neighbors)
	return args.Error(0)
}

// MockGameStore is a mock implementation of GameStore. WithTx runs fn
// against the mock itself and returns fn's error.
type MockGameStore struct {
	mock.Mock
}

func (m *MockGameStore) WithTx(ctx context.Context, fn func(tx GameStore) error) error {
	m.Called(ctx)
	return fn(m)
}

func (m *MockGameStore) CurrentSession(ctx context.Context) (*Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*Session)
	return s, args.Error(1)
}

func (m *MockGameStore) CreateSession(ctx context.Context, session *Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockGameStore) EndSession(ctx context.Context, sessionID int64, endedAt time.Time, winnerID *int64) error {
	args := m.Called(ctx, sessionID, endedAt, winnerID)
	return args.Error(0)
}

func (m *MockGameStore) GetSession(ctx context.Context, id int64) (*Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*Session)
	return s, args.Error(1)
}

func (m *MockGameStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error) {
	args := m.Called(ctx, filter)
	s, _ := args.Get(0).([]*Session)
	return s, args.Error(1)
}

func (m *MockGameStore) CountActiveSessions(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockGameStore) GetOrCreatePlayer(ctx context.Context, nickname string) (*Player, bool, error) {
	args := m.Called(ctx, nickname)
	p, _ := args.Get(0).(*Player)
	return p, args.Bool(1), args.Error(2)
}

func (m *MockGameStore) AddPlayerScore(ctx context.Context, playerID int64, points int) error {
	args := m.Called(ctx, playerID, points)
	return args.Error(0)
}

func (m *MockGameStore) ListPlayers(ctx context.Context) ([]*Player, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).([]*Player)
	return p, args.Error(1)
}

func (m *MockGameStore) RecordGuess(ctx context.Context, guess *Guess) error {
	args := m.Called(ctx, guess)
	return args.Error(0)
}

func (m *MockGameStore) ListGuesses(ctx context.Context, sessionID int64) ([]*Guess, error) {
	args := m.Called(ctx, sessionID)
	g, _ := args.Get(0).([]*Guess)
	return g, args.Error(1)
}

func (m *MockGameStore) SessionStats(ctx context.Context, sessionID int64) (int, int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Int(1), args.Error(2)
}
