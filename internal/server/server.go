// Package server exposes the node's local HTTP/WS surface: state snapshots
// for a presentation layer, fire-and-forget vote/chat submission, and the
// usual health endpoints.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"PriceArena/internal/game"
	"PriceArena/internal/observability"
	"PriceArena/internal/orchestrator"
)

// maxChatLen keeps a single chat line from flooding the bounded window.
const maxChatLen = 280

// wsPushPeriod matches the game tick so subscribers see every state change.
const wsPushPeriod = time.Second

// Arena is the slice of the orchestrator the HTTP surface needs.
type Arena interface {
	Snapshot(ctx context.Context) (orchestrator.Status, error)
	SubmitVote(v game.Vote)
	SendChat(text string)
}

type Server struct {
	arena    Arena
	health   *observability.HealthChecker
	metrics  *observability.Metrics // optional
	clock    clockwork.Clock
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func New(arena Arena, health *observability.HealthChecker, metrics *observability.Metrics, clock clockwork.Clock, log zerolog.Logger) *Server {
	return &Server{
		arena:   arena,
		health:  health,
		metrics: metrics,
		clock:   clock,
		log:     log,
		upgrader: websocket.Upgrader{
			// The surface is local and already wide open via CORS.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router assembles the full handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)
	r.Use(s.observe)

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/vote", s.handleVote)
		r.Post("/chat", s.handleChat)
		r.Get("/ws", s.handleWS)
	})
	return r
}

// observe records per-endpoint request counts and latency.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := s.clock.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.Method + " " + r.URL.Path
		if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
			endpoint = r.Method + " " + pattern
		}
		s.metrics.HTTPRequests.WithLabelValues(endpoint, http.StatusText(ww.Status())).Inc()
		s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(s.clock.Since(start).Seconds())
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.arena.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type voteRequest struct {
	Direction game.Vote `json:"direction"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if !req.Direction.Valid() {
		http.Error(w, "direction must be UP or DOWN", http.StatusBadRequest)
		return
	}

	// Fire-and-forget: window and single-vote checks happen in the loop and
	// out-of-window votes are silently ignored there.
	s.arena.SubmitVote(req.Direction)
	w.WriteHeader(http.StatusAccepted)
}

type chatRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if req.Text == "" || len(req.Text) > maxChatLen {
		http.Error(w, "text must be 1-280 characters", http.StatusBadRequest)
		return
	}

	s.arena.SendChat(req.Text)
	w.WriteHeader(http.StatusAccepted)
}

// handleWS upgrades and pushes a status snapshot once per tick until the
// client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.WSConnections.Inc()
		defer s.metrics.WSConnections.Dec()
	}

	// Reader drains control frames and unblocks the push loop on close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := s.clock.NewTicker(wsPushPeriod)
	defer ticker.Stop()

	for {
		st, err := s.arena.Snapshot(r.Context())
		if err != nil {
			return
		}
		if err := conn.WriteJSON(st); err != nil {
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.Chan():
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
