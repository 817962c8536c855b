// Package api provides HTTP handlers and the main API server logic for coachflow.
//
// It exposes the legacy per-user chat endpoints, the orchestrated conversation
// endpoints, and the upload and health surfaces. The API integrates with the
// store, flow, and profile modules.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brandscaling/coachflow/internal/flow"
	"github.com/brandscaling/coachflow/internal/profile"
	"github.com/brandscaling/coachflow/internal/store"
)

// Default server settings, overridable via options.
const (
	DefaultAddr      = ":8000"
	DefaultAPIPrefix = "/api/v1"

	// DefaultSweepInterval is how often stale conversations are collected.
	DefaultSweepInterval = time.Hour
	// DefaultSweepMaxAge is how long an idle conversation survives.
	DefaultSweepMaxAge = 24 * time.Hour

	// DefaultShutdownTimeout bounds graceful server shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	APIPrefix      string
	UploadDir      string
	AllowedOrigins []string
	SweepInterval  time.Duration
	SweepMaxAge    time.Duration
}

// Option defines a functional option for API server configuration.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAPIPrefix sets the path prefix all endpoints are mounted under.
func WithAPIPrefix(prefix string) Option {
	return func(o *Opts) { o.APIPrefix = prefix }
}

// WithUploadDir sets the directory uploaded PDFs are stored in.
func WithUploadDir(dir string) Option {
	return func(o *Opts) { o.UploadDir = dir }
}

// WithAllowedOrigins sets the CORS origin allow-list. Empty means allow all.
func WithAllowedOrigins(origins []string) Option {
	return func(o *Opts) { o.AllowedOrigins = origins }
}

// WithSweep configures the periodic stale-conversation sweep.
func WithSweep(interval, maxAge time.Duration) Option {
	return func(o *Opts) {
		o.SweepInterval = interval
		o.SweepMaxAge = maxAge
	}
}

// Server hosts the HTTP API over the store, workflow engine, and PDF extractor.
type Server struct {
	st        store.Store
	engine    *flow.Engine
	responder *flow.PersonaResponder
	extractor *profile.Extractor

	addr           string
	apiPrefix      string
	allowedOrigins []string
	sweepInterval  time.Duration
	sweepMaxAge    time.Duration
}

// NewServer creates an API server wired to the given modules.
func NewServer(st store.Store, engine *flow.Engine, responder *flow.PersonaResponder, opts ...Option) *Server {
	cfg := Opts{
		Addr:          DefaultAddr,
		APIPrefix:     DefaultAPIPrefix,
		SweepInterval: DefaultSweepInterval,
		SweepMaxAge:   DefaultSweepMaxAge,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		st:             st,
		engine:         engine,
		responder:      responder,
		extractor:      profile.NewExtractor(cfg.UploadDir),
		addr:           cfg.Addr,
		apiPrefix:      strings.TrimSuffix(cfg.APIPrefix, "/"),
		allowedOrigins: cfg.AllowedOrigins,
		sweepInterval:  cfg.SweepInterval,
		sweepMaxAge:    cfg.SweepMaxAge,
	}
}

// Handler builds the routed HTTP handler, including CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s.corsMiddleware(mux)
}

// registerRoutes mounts all endpoints under the configured prefix.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc(s.apiPrefix+"/health", s.healthHandler)
	mux.HandleFunc(s.apiPrefix+"/health/orchestrator", s.orchestratorHealthHandler)
	mux.HandleFunc(s.apiPrefix+"/upload", s.uploadHandler)
	mux.HandleFunc(s.apiPrefix+"/chat/architect", s.chatArchitectHandler)
	mux.HandleFunc(s.apiPrefix+"/chat/alchemist", s.chatAlchemistHandler)
	mux.HandleFunc(s.apiPrefix+"/conversation/", s.conversationRouter)
}

// corsMiddleware applies the origin allow-list and answers preflight requests.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run starts the HTTP server and blocks until the context is canceled, then
// shuts down gracefully. The stale-conversation sweep runs alongside when
// configured.
func (s *Server) Run(ctx context.Context) error {
	if s.sweepInterval > 0 {
		go s.sweepLoop(ctx)
	}

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr, "prefix", s.apiPrefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		slog.Info("API server shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		slog.Error("API server failed", "error", err)
		return err
	}
}

// sweepLoop periodically removes conversations idle past the max age.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.st.SweepConversations(s.sweepMaxAge)
			if err != nil {
				slog.Error("Server.sweepLoop sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("Server.sweepLoop removed stale conversations", "count", removed)
			}
		}
	}
}
