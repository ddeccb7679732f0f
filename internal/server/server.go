package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	batchv1 "k8s.io/api/batch/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"cforge/internal/config"
	"cforge/internal/history"
	"cforge/internal/naming"
	"cforge/internal/reconciler"
	"cforge/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	shutdownTimeout = 10 * time.Second
)

// Runner starts one-off runs. *reconciler.Cloner implements it.
type Runner interface {
	CloneAsRun(ctx context.Context, project string) (*batchv1.Job, error)
}

// Options wires the server to the rest of the controller.
type Options struct {
	History *history.Aggregator

	// Runner is optional; without it run requests answer 503.
	Runner Runner

	// Registry receives the HTTP metrics and is served on /metrics.
	// Defaults to the Prometheus default registry.
	Registry *prometheus.Registry

	// Ready reports whether the controller is up. Optional.
	Ready func() error
}

// Server is the cforge HTTP API.
type Server struct {
	router     *mux.Router
	history    *history.Aggregator
	runner     Runner
	ready      func() error
	metrics    *httpMetrics
	httpServer *http.Server
}

// New creates a server listening on the configured address.
func New(cfg config.ServerConfig, opts Options) *Server {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}

	s := &Server{
		router:  mux.NewRouter(),
		history: opts.History,
		runner:  opts.Runner,
		ready:   opts.Ready,
		metrics: newHTTPMetrics(registerer),
	}
	s.routes(gatherer)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.Handle("/healthz", s.instrument("/healthz", s.handleHealth)).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Handle("/projects", s.instrument("/api/projects", s.handleListProjects)).Methods(http.MethodGet)
	api.Handle("/projects/{name}", s.instrument("/api/projects/{name}", s.handleGetProject)).Methods(http.MethodGet)
	api.Handle("/projects/{name}/runs", s.instrument("/api/projects/{name}/runs", s.handleCreateRun)).Methods(http.MethodPost)

	artifacts := http.StripPrefix("/artifacts/", http.FileServer(artifactFS{http.Dir(s.history.Root())}))
	s.router.PathPrefix("/artifacts/").Handler(s.instrument("/artifacts", artifacts.ServeHTTP)).Methods(http.MethodGet, http.MethodHead)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("HTTPServer", "Listening on %s", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server on %s: %w", s.httpServer.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	logging.Info("HTTPServer", "Stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.history.ListProjects(r.Context())
	if err != nil {
		writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.history.LookupProject(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := naming.Validate(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runs are not available without a cluster")
		return
	}

	job, err := s.runner.CloneAsRun(r.Context(), name)
	switch {
	case err != nil:
		logging.Error("HTTPServer", err, "Manual run of %s failed", name)
		writeError(w, statusForClusterError(err), reconciler.SanitizeErrorMessage(err.Error()))
	case job == nil:
		writeError(w, http.StatusNotFound, fmt.Sprintf("no build definition for project %q", name))
	default:
		logging.Info("HTTPServer", "Manual run %s started for %s", job.Name, name)
		writeJSON(w, http.StatusAccepted, map[string]string{"project": name, "run": job.Name})
	}
}

func statusForClusterError(err error) int {
	switch {
	case apierrors.IsForbidden(err):
		return http.StatusForbidden
	case apierrors.IsAlreadyExists(err), apierrors.IsConflict(err):
		return http.StatusConflict
	case apierrors.IsServerTimeout(err), apierrors.IsTimeout(err), apierrors.IsServiceUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeHistoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, history.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, history.ErrHistoryUnavailable):
		logging.Warn("HTTPServer", "Build history unavailable: %v", err)
		writeError(w, http.StatusServiceUnavailable, "build history is temporarily unavailable")
	default:
		logging.Error("HTTPServer", err, "Reading build history")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Warn("HTTPServer", "Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// artifactFS serves files only; directories are reported as missing so the
// artifact tree cannot be listed.
type artifactFS struct {
	fs http.FileSystem
}

func (a artifactFS) Open(name string) (http.File, error) {
	f, err := a.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
