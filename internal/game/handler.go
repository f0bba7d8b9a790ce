package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"cabotin-go/internal/auth"
	"cabotin-go/internal/game/ranking"
	"cabotin-go/internal/words"
)

const currentSessionID = "current"

type Handler struct {
	service         GameService
	auth            *auth.Service
	upgrader        websocket.Upgrader
	defaultDuration time.Duration
	logger          *slog.Logger
}

func NewHandler(service GameService, authService *auth.Service, defaultDuration time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:         service,
		auth:            authService,
		defaultDuration: defaultDuration,
		logger:          logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is public and read-only.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

type PlayerResponse struct {
	*Player
	Rank ranking.Rank `json:"rank"`
}

func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	players, err := h.service.Players(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]PlayerResponse, 0, len(players))
	for _, p := range players {
		resp = append(resp, PlayerResponse{Player: p, Rank: ranking.GetRankByPoints(p.Score)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter := NewSessionFilter()
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		filter.Limit = min(n, 100)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Offset = n
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "active must be a boolean", http.StatusBadRequest)
			return
		}
		filter.Active = &active
	}

	sessions, err := h.service.Sessions(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for i, s := range sessions {
		sessions[i] = s.Redacted()
	}
	writeJSON(w, http.StatusOK, sessions)
}

type CurrentSessionResponse struct {
	*Session
	Overdue bool `json:"overdue"`
}

// GetSession only serves "current": past sessions are listed by ListSessions.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("id") != currentSessionID {
		http.Error(w, "only the current session can be fetched", http.StatusNotFound)
		return
	}

	session, err := h.service.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CurrentSessionResponse{
		Session: session.Redacted(),
		Overdue: session.Overdue(time.Now()),
	})
}

func (h *Handler) ListGuesses(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := h.sessionID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	guesses, err := h.service.Guesses(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guesses)
}

func (h *Handler) Thesaurus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	count := 0
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "count must be an integer", http.StatusBadRequest)
			return
		}
		count = n
	}

	neighbors, err := h.service.Thesaurus(r.Context(), ps.ByName("term"), count)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, neighbors)
}

type StartSessionRequest struct {
	Duration string `json:"duration,omitempty"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req StartSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	duration := h.defaultDuration
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		duration = d
	}

	session, err := h.service.StartSession(r.Context(), duration)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("session started from dashboard",
		"session_id", session.ID, "admin", auth.GetSubjectFromContext(r.Context()))
	writeJSON(w, http.StatusCreated, session.Redacted())
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var id int64
	if param := ps.ByName("id"); param != currentSessionID {
		n, err := strconv.ParseInt(param, 10, 64)
		if err != nil || n <= 0 {
			h.writeError(w, ErrSessionNotFound)
			return
		}
		id = n
	}

	session, err := h.service.EndSession(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("session ended from dashboard",
		"session_id", session.ID, "admin", auth.GetSubjectFromContext(r.Context()))
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) SubscribeToEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := h.service.Subscribe()
	defer unsubscribe()

	// Drain client frames so close messages are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// sessionID resolves a :id route parameter. "current" is the session in
// progress.
func (h *Handler) sessionID(ctx context.Context, param string) (int64, error) {
	if param == currentSessionID {
		session, err := h.service.Current(ctx)
		if err != nil {
			return 0, err
		}
		return session.ID, nil
	}

	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrSessionNotFound
	}
	return id, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoActiveSession),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, words.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidDuration):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSessionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrPoolClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) admin(handle httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		h.auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle(w, r, ps)
		})).ServeHTTP(w, r)
	}
}

func (h *Handler) Routes() *httprouter.Router {
	router := httprouter.New()

	router.GET("/players", h.ListPlayers)
	router.GET("/sessions", h.ListSessions)
	router.GET("/sessions/:id", h.GetSession)
	router.GET("/sessions/:id/guesses", h.ListGuesses)
	router.GET("/thesaurus/:term", h.Thesaurus)
	router.GET("/events", h.SubscribeToEvents)

	router.POST("/sessions", h.admin(h.StartSession))
	router.DELETE("/sessions/:id", h.admin(h.EndSession))

	return router
}
