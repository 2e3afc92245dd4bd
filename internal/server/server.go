// Package server implements the pkggather HTTP API.
//
// # Endpoints
//
//   - GET /healthz: liveness probe
//   - GET /v1/version: build information
//   - POST /v1/plan: run a plan; the body is a JSON request in the config
//     file shape (see internal/config) and the response is the plan
//   - POST /v1/gather: like /v1/plan but returns the unpruned candidates
//
// Every response carries an X-Request-ID header. Errors are JSON objects
// with the error code and a user-facing message.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/pkggather/internal/config"
	"github.com/matzehuels/pkggather/pkg/buildinfo"
	"github.com/matzehuels/pkggather/pkg/cache"
	"github.com/matzehuels/pkggather/pkg/core/gather"
	"github.com/matzehuels/pkggather/pkg/core/packaging"
	pkgerrors "github.com/matzehuels/pkggather/pkg/errors"
	"github.com/matzehuels/pkggather/pkg/pipeline"
)

const (
	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 1 << 20

	// HeaderRequestID carries the per-request uuid.
	HeaderRequestID = "X-Request-ID"

	// statusClientClosedRequest is nginx's non-standard code for a request
	// the client gave up on.
	statusClientClosedRequest = 499

	shutdownTimeout = 10 * time.Second
)

// Options configures a [Server].
type Options struct {
	// Runner runs plans. Its cache holds gathered candidate sets.
	Runner *pipeline.Runner

	// HTTPCache backs the feed clients created per request.
	HTTPCache cache.Cache

	// Gather bounds per-request gather options. A request may lower
	// MaxConcurrency and RequestTimeout but not raise them.
	Gather gather.Options

	MaxBodyBytes int64
	Logger       *log.Logger
}

// Server is the HTTP API.
type Server struct {
	runner    *pipeline.Runner
	httpCache cache.Cache
	limits    gather.Options
	maxBody   int64
	logger    *log.Logger
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Runner == nil {
		opts.Runner = pipeline.NewRunner(nil, nil, nil, opts.Logger)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{
		runner:    opts.Runner,
		httpCache: opts.HTTPCache,
		limits:    opts.Gather.WithDefaults(),
		maxBody:   opts.MaxBodyBytes,
		logger:    opts.Logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Post("/plan", s.handlePlan)
		r.Post("/gather", s.handleGather)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
		"date":    buildinfo.Date,
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	runner, req, err := s.decode(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := runner.Plan(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// gatherResponse is the body of a /v1/gather response.
type gatherResponse struct {
	Packages    []*packaging.SourcePackageDependencyInfo `json:"packages"`
	Requests    int                                      `json:"requests"`
	SourceTimes map[string]time.Duration                 `json:"source_times,omitempty"`
	CacheHit    bool                                     `json:"cache_hit"`
}

func (s *Server) handleGather(w http.ResponseWriter, r *http.Request) {
	runner, req, err := s.decode(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, hit, err := runner.GatherWithCacheInfo(r.Context(), req.Context, req.Refresh)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gatherResponse{
		Packages:    out.Packages,
		Requests:    out.Requests,
		SourceTimes: out.SourceTimes,
		CacheHit:    hit,
	})
}

// decode reads the request body and returns the runner and request to
// execute it with.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*pipeline.Runner, pipeline.Request, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return nil, pipeline.Request{}, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidInput, err, "read request body")
	}
	cfg, err := config.ParseJSON(body)
	if err != nil {
		return nil, pipeline.Request{}, err
	}
	req, err := cfg.Build(config.BuildOptions{HTTPCache: s.httpCache, NoFilesystem: true})
	if err != nil {
		return nil, pipeline.Request{}, err
	}
	return s.runnerFor(cfg.Gather.Options()), req, nil
}

// runnerFor returns the shared runner, or a copy with a gatherer clamped
// to the server limits when the request asks for tighter ones.
func (s *Server) runnerFor(opts gather.Options) *pipeline.Runner {
	if opts.MaxConcurrency == 0 && opts.RequestTimeout == 0 {
		return s.runner
	}
	merged := s.limits
	if opts.MaxConcurrency > 0 && opts.MaxConcurrency < merged.MaxConcurrency {
		merged.MaxConcurrency = opts.MaxConcurrency
	}
	if opts.RequestTimeout > 0 && opts.RequestTimeout < merged.RequestTimeout {
		merged.RequestTimeout = opts.RequestTimeout
	}
	merged.Logger = s.logger
	r := *s.runner
	r.Gatherer = gather.New(merged)
	return &r
}
