package game

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabotin-go/internal/auth"
	"cabotin-go/internal/words"
)

type handlerFixture struct {
	service GameService
	router  http.Handler
	token   string
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	service, _ := newTestService(t, ServiceOptions{DefaultCount: 1, MaxCount: 5})
	authService := auth.NewService([]byte("test-secret"), time.Hour)
	token, err := authService.IssueToken("ops")
	require.NoError(t, err)

	return &handlerFixture{
		service: service,
		router:  NewHandler(service, authService, 24*time.Hour, nil).Routes(),
		token:   token,
	}
}

func (f *handlerFixture) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerSessionFlow(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/sessions/current", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/sessions", `{"duration":"2h"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/sessions", `{"duration":"nope"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/sessions", `{"duration":"2h"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	assert.Empty(t, started.Word, "secret must not leak")
	assert.Equal(t, 2*time.Hour, started.PlannedEndAt.Sub(started.StartedAt))

	rec = f.do(t, http.MethodGet, "/sessions/current", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var current CurrentSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&current))
	assert.Equal(t, started.ID, current.ID)
	assert.Empty(t, current.Word)
	assert.False(t, current.Overdue)

	_, err := f.service.ProcessGuess(context.Background(), "alice", "cat")
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/sessions/current/guesses", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var guesses []Guess
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&guesses))
	require.Len(t, guesses, 1)
	assert.Equal(t, "cat", guesses[0].Text)

	rec = f.do(t, http.MethodGet, "/sessions?active=true", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Empty(t, sessions[0].Word)

	rec = f.do(t, http.MethodDelete, "/sessions/"+strconv.FormatInt(started.ID+1, 10), "", true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodDelete, "/sessions/current", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var ended Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ended))
	assert.Equal(t, "dog", ended.Word, "ended sessions reveal their word")
	assert.False(t, ended.Active)

	rec = f.do(t, http.MethodGet, "/sessions/"+strconv.FormatInt(started.ID, 10)+"/guesses", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/sessions/999/guesses", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// restartingService starts a new round right before every end request, the
// way a chat !start can slip in while a dashboard request is in flight.
type restartingService struct {
	GameService
}

func (s restartingService) EndSession(ctx context.Context, sessionID int64) (*Session, error) {
	if _, err := s.StartSession(ctx, time.Hour); err != nil {
		return nil, err
	}
	return s.GameService.EndSession(ctx, sessionID)
}

func TestHandlerEndSessionByStaleID(t *testing.T) {
	service, _ := newTestService(t, ServiceOptions{})
	authService := auth.NewService([]byte("test-secret"), time.Hour)
	token, err := authService.IssueToken("ops")
	require.NoError(t, err)
	router := NewHandler(restartingService{service}, authService, time.Hour, nil).Routes()

	first, err := service.StartSession(context.Background(), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+strconv.FormatInt(first.ID, 10), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	current, err := service.Current(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, current.ID)
	assert.True(t, current.Active)

	req = httptest.NewRequest(http.MethodDelete, "/sessions/nope", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListPlayers(t *testing.T) {
	f := newHandlerFixture(t)
	_, err := f.service.StartSession(context.Background(), time.Hour)
	require.NoError(t, err)
	_, err = f.service.ProcessGuess(context.Background(), "alice", "dog")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/players", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var players []PlayerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&players))
	require.Len(t, players, 1)
	assert.Equal(t, "alice", players[0].Nickname)
	assert.Equal(t, 100, players[0].Score)
	assert.Equal(t, "Violet", players[0].Rank.Color)
}

func TestHandlerQueryValidation(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/sessions?limit=0", http.StatusBadRequest},
		{"/sessions?offset=-1", http.StatusBadRequest},
		{"/sessions?active=maybe", http.StatusBadRequest},
		{"/sessions?limit=5&offset=0&active=false", http.StatusOK},
		{"/thesaurus/cat?count=x", http.StatusBadRequest},
		{"/sessions/12", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "", false)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHandlerThesaurus(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/thesaurus/cat?count=2", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var neighbors []words.Neighbor
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&neighbors))
	require.Len(t, neighbors, 2)
	assert.Equal(t, "dog", neighbors[0].Term)
	assert.GreaterOrEqual(t, neighbors[0].Similarity, neighbors[1].Similarity)

	rec = f.do(t, http.MethodGet, "/thesaurus/xyzzy", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerEventsFeed(t *testing.T) {
	f := newHandlerFixture(t)
	server := httptest.NewServer(f.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan GameEvent, 1)
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var event GameEvent
		if err := conn.ReadJSON(&event); err == nil {
			received <- event
		}
	}()

	// the subscription is registered after the upgrade completes
	require.Eventually(t, func() bool {
		_, err := f.service.StartSession(context.Background(), time.Hour)
		assert.NoError(t, err)
		return len(received) > 0
	}, 2*time.Second, 20*time.Millisecond)

	event := <-received
	assert.Contains(t, []EventType{EventTypeSessionStarted, EventTypeSessionEnded}, event.Type)
}
