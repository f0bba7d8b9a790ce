package chat

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"cabotin-go/internal/game"
	"cabotin-go/internal/words"
)

// MockGame is a mock implementation of Game
type MockGame struct {
	mock.Mock
}

func (m *MockGame) StartSession(ctx context.Context, duration time.Duration) (*game.Session, error) {
	args := m.Called(ctx, duration)
	s, _ := args.Get(0).(*game.Session)
	return s, args.Error(1)
}

func (m *MockGame) ProcessGuess(ctx context.Context, nickname, text string) (game.Outcome, error) {
	args := m.Called(ctx, nickname, text)
	return args.Get(0).(game.Outcome), args.Error(1)
}

func (m *MockGame) Thesaurus(ctx context.Context, term string, count int) ([]words.Neighbor, error) {
	args := m.Called(ctx, term, count)
	n, _ := args.Get(0).([]words.Neighbor)
	return n, args.Error(1)
}
