// Package api exposes the profile pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/okian/findna/internal/adapters/http/swagger"
	"github.com/okian/findna/internal/adapters/repository"
	service "github.com/okian/findna/internal/app"
	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/logger"
	"github.com/okian/findna/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultMaxLimit     = 100
	defaultLimit        = 10
	defaultCurrency     = "INR"
	maxRequestBodyBytes = 1 << 16
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Build(ctx context.Context, req service.BuildRequest) (service.BuildResult, error)
	Get(ctx context.Context, sessionID string) (model.FinancialProfile, error)
	GetContext(ctx context.Context, sessionID string) (model.NarrativeContext, error)
	Health(ctx context.Context) model.HealthSnapshot

	Top(ctx context.Context, n int) ([]repository.Entry, error)
	ByDisciplineRange(ctx context.Context, lo, hi float64) ([]repository.Entry, error)
	NeedsAttention(ctx context.Context, n int) ([]repository.Entry, error)

	StatsProvider
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger for request logging.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxLimit caps the limit query parameter of ranking routes.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithCurrency sets the currency reports are rendered in.
func WithCurrency(code string) Option {
	return func(s *Server) {
		if code != "" {
			s.currency = code
		}
	}
}

// WithAllowedOrigins sets the CORS origins. None disables CORS handling.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// Server wires HTTP routes for the profile API.
type Server struct {
	deps     Dependencies
	logger   logger.Logger
	maxLimit int
	currency string
	origins  []string

	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	profileHandler *ProfileHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) (*Server, error) {
	if deps == nil {
		return nil, ErrNilService
	}
	s := &Server{
		deps:     deps,
		logger:   logger.Nop(),
		maxLimit: defaultMaxLimit,
		currency: defaultCurrency,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.profileHandler = &ProfileHandler{deps: deps, maxLimit: s.maxLimit, currency: s.currency}
	return s, nil
}

// Handler returns the router serving every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(MetricsMiddleware)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	swagger.Register(r)

	r.Route("/v1/profiles", func(r chi.Router) {
		r.Post("/", s.profileHandler.HandleBuild)
		r.Get("/", s.profileHandler.HandleRange)
		r.Get("/top", s.profileHandler.HandleTop)
		r.Get("/attention", s.profileHandler.HandleAttention)
		r.Get("/{session_id}", s.profileHandler.HandleGet)
		r.Get("/{session_id}/context", s.profileHandler.HandleContext)
		r.Get("/{session_id}/report", s.profileHandler.HandleReport)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: status})
}
