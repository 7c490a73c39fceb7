// Package httpapi exposes the learner-facing HTTP and WebSocket API: voice
// turns, autonomous chat control, profile management, and the realtime
// channel that pushes AI turns and audio to the client.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yxz1025/ai-helper/internal/health"
	"github.com/yxz1025/ai-helper/internal/observe"
	"github.com/yxz1025/ai-helper/internal/profile"
)

// ServerOptions holds the dependencies for [NewServer].
type ServerOptions struct {
	Hub   *Hub
	Store profile.Store

	// JWTSecret enables token authentication when non-empty.
	JWTSecret string

	// TokenTTL is the validity window for issued tokens. Defaults to 24h.
	TokenTTL time.Duration

	// Health, when non-nil, mounts /healthz and /readyz.
	Health *health.Handler

	// Metrics defaults to [observe.DefaultMetrics]. The /metrics endpoint is
	// always mounted.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server is the HTTP API server. Construct with [NewServer], serve via
// [Server.Handler].
type Server struct {
	hub        *Hub
	store      profile.Store
	authSecret []byte
	tokenTTL   time.Duration
	metrics    *observe.Metrics
	logger     *slog.Logger
	now        func() time.Time

	handler http.Handler
}

// NewServer creates the API server and builds its route table.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Hub == nil || opts.Store == nil {
		return nil, errors.New("httpapi: hub and store are required")
	}
	s := &Server{
		hub:      opts.Hub,
		store:    opts.Store,
		tokenTTL: opts.TokenTTL,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if opts.JWTSecret != "" {
		s.authSecret = []byte(opts.JWTSecret)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()

	// Unauthenticated surface.
	mux.HandleFunc("POST /api/auth/token", s.handleIssueToken)
	mux.Handle("GET /metrics", promhttp.Handler())
	if opts.Health != nil {
		opts.Health.Register(mux)
	}

	// Authenticated API.
	api := http.NewServeMux()
	api.HandleFunc("POST /api/voice/turn", s.handleVoiceTurn)
	api.HandleFunc("POST /api/chat/start", s.handleChatStart)
	api.HandleFunc("POST /api/chat/stop", s.handleChatStop)
	api.HandleFunc("POST /api/chat/pause", s.handleChatPause)
	api.HandleFunc("POST /api/chat/resume", s.handleChatResume)
	api.HandleFunc("GET /api/chat/status", s.handleChatStatus)
	api.HandleFunc("GET /api/profile", s.handleGetProfile)
	api.HandleFunc("PUT /api/profile", s.handlePutProfile)
	api.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("/api/", s.authMiddleware(api))
	mux.Handle("/ws", s.authMiddleware(api))

	s.handler = observe.Middleware(s.metrics)(mux)
	return s, nil
}

// Handler returns the root handler including metrics middleware.
func (s *Server) Handler() http.Handler { return s.handler }

// ─── JSON helpers ────────────────────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("httpapi: malformed request body")
	}
	return nil
}
