package game

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cabotin-go/internal/words"
)

func newTestService(t *testing.T, opts ServiceOptions) (GameService, GameStore) {
	t.Helper()

	store := NewSQLStore(setupTestDB(t))
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	service, err := NewGameService(context.Background(), store, testVocabulary(t), opts)
	require.NoError(t, err)
	t.Cleanup(service.Close)
	return service, store
}

func TestConcurrentGuessesHaveOneWinner(t *testing.T) {
	service, store := newTestService(t, ServiceOptions{Workers: 8, Queue: 8})
	ctx := context.Background()

	session, err := service.StartSession(ctx, time.Hour)
	require.NoError(t, err)

	const players = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		noActive int
	)
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := service.ProcessGuess(ctx, fmt.Sprintf("player%d", i), "dog")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && outcome.Kind == OutcomeWin:
				wins++
			case assert.ErrorIs(t, err, ErrNoActiveSession):
				noActive++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, players-1, noActive)

	guesses, err := store.ListGuesses(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, guesses, 1)

	_, err = service.Current(ctx)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestServiceHistory(t *testing.T) {
	service, _ := newTestService(t, ServiceOptions{})
	ctx := context.Background()

	session, err := service.StartSession(ctx, time.Hour)
	require.NoError(t, err)

	current, err := service.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.ID, current.ID)

	_, err = service.ProcessGuess(ctx, "alice", "cat")
	require.NoError(t, err)
	_, err = service.ProcessGuess(ctx, "bob", "dog")
	require.NoError(t, err)

	players, err := service.Players(ctx)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "bob", players[0].Nickname)
	assert.Positive(t, players[0].Score)

	sessions, err := service.Sessions(ctx, NewSessionFilter())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Active)

	guesses, err := service.Guesses(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, guesses, 2)

	_, err = service.Guesses(ctx, session.ID+100)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestServiceEndSession(t *testing.T) {
	service, _ := newTestService(t, ServiceOptions{})
	ctx := context.Background()

	_, err := service.EndSession(ctx, 0)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	session, err := service.StartSession(ctx, time.Hour)
	require.NoError(t, err)

	ended, err := service.EndSession(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, session.ID, ended.ID)
	assert.Nil(t, ended.WinnerID)

	t.Run("by id", func(t *testing.T) {
		first, err := service.StartSession(ctx, time.Hour)
		require.NoError(t, err)
		second, err := service.StartSession(ctx, time.Hour)
		require.NoError(t, err)

		_, err = service.EndSession(ctx, first.ID)
		assert.ErrorIs(t, err, ErrSessionConflict)

		current, err := service.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, current.ID)

		ended, err := service.EndSession(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, ended.ID)
	})
}

func TestServiceEvents(t *testing.T) {
	service, _ := newTestService(t, ServiceOptions{})
	ctx := context.Background()

	events, unsubscribe := service.Subscribe()
	defer unsubscribe()

	_, err := service.StartSession(ctx, time.Hour)
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, EventTypeSessionStarted, e.Type)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestThesaurus(t *testing.T) {
	ctx := context.Background()

	t.Run("default and capped counts", func(t *testing.T) {
		service, _ := newTestService(t, ServiceOptions{DefaultCount: 1, MaxCount: 2})

		neighbors, err := service.Thesaurus(ctx, "Cat", 0)
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		assert.Equal(t, "dog", neighbors[0].Term)

		neighbors, err = service.Thesaurus(ctx, "cat", 10)
		require.NoError(t, err)
		assert.Len(t, neighbors, 2)
	})

	t.Run("capitalised vocabulary term", func(t *testing.T) {
		vocab, err := words.New([]words.Entry{
			{Term: "Paris", Vector: []float32{1, 0}},
			{Term: "paris", Vector: []float32{0, 1}},
			{Term: "Lyon", Vector: []float32{0.9, 0.1}},
			{Term: "nice", Vector: []float32{0.1, 0.9}},
		})
		require.NoError(t, err)
		service, err := NewGameService(ctx, NewSQLStore(setupTestDB(t)), vocab, ServiceOptions{})
		require.NoError(t, err)
		t.Cleanup(service.Close)

		neighbors, err := service.Thesaurus(ctx, "Paris", 1)
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		assert.Equal(t, "Lyon", neighbors[0].Term)

		neighbors, err = service.Thesaurus(ctx, " PARIS ", 1)
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		assert.Equal(t, "nice", neighbors[0].Term, "falls back to the normalized spelling")
	})

	t.Run("unknown term", func(t *testing.T) {
		service, _ := newTestService(t, ServiceOptions{})
		_, err := service.Thesaurus(ctx, "xyzzy", 3)
		assert.ErrorIs(t, err, words.ErrNotFound)
	})

	t.Run("cache hit skips the scan", func(t *testing.T) {
		cache := new(MockThesaurusCache)
		cached := []words.Neighbor{{Term: "cached", Similarity: 0.5}}
		cache.On("Get", "cat", 1).Return(cached, true, nil)

		service, _ := newTestService(t, ServiceOptions{Cache: cache})
		neighbors, err := service.Thesaurus(ctx, "cat", 1)
		require.NoError(t, err)
		assert.Equal(t, cached, neighbors)
		cache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cache miss fills the cache", func(t *testing.T) {
		cache := new(MockThesaurusCache)
		cache.On("Get", "cat", 1).Return(nil, false, nil)
		cache.On("Put", "cat", 1, mock.Anything).Return(nil)

		service, _ := newTestService(t, ServiceOptions{Cache: cache})
		neighbors, err := service.Thesaurus(ctx, "cat", 1)
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		cache.AssertExpectations(t)
	})
}

func TestServiceClosed(t *testing.T) {
	service, _ := newTestService(t, ServiceOptions{})
	service.Close()

	_, err := service.StartSession(context.Background(), time.Hour)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestServiceCloseStopsGoroutines(t *testing.T) {
	store := NewSQLStore(setupTestDB(t))
	vocab := testVocabulary(t)
	baseline := runtime.NumGoroutine()

	for i := 0; i < 10; i++ {
		service, err := NewGameService(context.Background(), store, vocab, ServiceOptions{Workers: 2})
		require.NoError(t, err)
		service.Close()
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, time.Second, 10*time.Millisecond)
}

func TestServiceCancelledContext(t *testing.T) {
	service, _ := newTestService(t, ServiceOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Players(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
