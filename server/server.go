// Package server is the HTTP control surface: a stateless adapter over the
// runtime and the metrics engine. It owns no pipeline state — every request
// reads or mutates the graph through the runtime's validate-then-apply
// operations, and failures map to stable machine-readable error codes.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Project-NEURIA/OpenNeuro/component"
	"github.com/Project-NEURIA/OpenNeuro/errors"
	"github.com/Project-NEURIA/OpenNeuro/logger"
	"github.com/Project-NEURIA/OpenNeuro/metrics"
	"github.com/Project-NEURIA/OpenNeuro/runtime"
)

const (
	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	// defaultIdleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled.
	defaultIdleTimeout = 120 * time.Second

	// defaultMaxBodySize is the maximum allowed size of a request body (1 MB).
	defaultMaxBodySize int64 = 1 << 20

	// defaultFrameInterval is the cadence of the frame-inspector SSE stream.
	defaultFrameInterval = 500 * time.Millisecond
)

// Option configures a [Server].
type Option func(*Server)

// WithPort sets the TCP port for ListenAndServe.
func WithPort(port int) Option {
	return func(s *Server) { s.port = port }
}

// WithMaxBodySize sets the maximum allowed request body size in bytes.
// Default: 1 MB.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) { s.maxBodySize = n }
}

// WithAllowedOrigin sets the CORS allowed origin. Default: "*".
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) { s.allowedOrigin = origin }
}

// WithPrometheus mounts a Prometheus scrape handler at /metrics/prometheus.
func WithPrometheus(h http.Handler) Option {
	return func(s *Server) { s.promHandler = h }
}

// WithFrameInterval sets the emission cadence of the /frames stream.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Server) { s.frameInterval = d }
}

// Server exposes the pipeline over HTTP: component introspection, graph
// CRUD, session control, and the metrics/frames/video streams.
type Server struct {
	rt       *runtime.Runtime
	registry *component.Registry
	engine   *metrics.Engine

	port          int
	maxBodySize   int64
	allowedOrigin string
	frameInterval time.Duration
	promHandler   http.Handler

	httpSrv   *http.Server
	httpSrvMu sync.Mutex
}

// NewServer creates a control surface over the given runtime, component
// registry, and metrics engine.
func NewServer(rt *runtime.Runtime, reg *component.Registry, engine *metrics.Engine, opts ...Option) *Server {
	s := &Server{
		rt:            rt,
		registry:      reg,
		engine:        engine,
		maxBodySize:   defaultMaxBodySize,
		allowedOrigin: "*",
		frameInterval: defaultFrameInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the http.Handler for the control surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /component", s.handleListComponents)
	mux.HandleFunc("GET /graph/nodes", s.handleListNodes)
	mux.HandleFunc("POST /graph/nodes", s.handleAddNode)
	mux.HandleFunc("DELETE /graph/nodes/{id}", s.handleRemoveNode)
	mux.HandleFunc("GET /graph/edges", s.handleListEdges)
	mux.HandleFunc("POST /graph/edges", s.handleAddEdge)
	mux.HandleFunc("DELETE /graph/edges", s.handleRemoveEdge)
	mux.HandleFunc("POST /graph/start", s.handleStart)
	mux.HandleFunc("POST /graph/stop", s.handleStop)
	mux.HandleFunc("GET /metrics", s.handleMetricsStream)
	mux.HandleFunc("GET /frames", s.handleFramesStream)
	mux.HandleFunc("GET /video/ws/{node_id}", s.handleVideoStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.promHandler != nil {
		mux.Handle("GET /metrics/prometheus", s.promHandler)
	}
	return otelhttp.NewHandler(s.cors(mux), "openneuro-server")
}

// cors allows the graph editor to call from another origin. Preflight
// requests are answered directly.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe starts the HTTP server on the configured port.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	s.httpSrvMu.Lock()
	s.httpSrv = srv
	s.httpSrvMu.Unlock()

	logger.Info("control surface listening", "port", s.port)
	return srv.ListenAndServe()
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	s.httpSrvMu.Lock()
	s.httpSrv = srv
	s.httpSrvMu.Unlock()

	return srv.Serve(ln)
}

// Shutdown gracefully drains HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpSrvMu.Lock()
	srv := s.httpSrv
	s.httpSrvMu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// errorBody is the uniform JSON error envelope.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status and writes the error envelope.
// Errors without a kind surface as a 500 with code "Internal".
func writeError(w http.ResponseWriter, err error) {
	var e *errors.Error
	if stderrors.As(err, &e) {
		writeJSON(w, e.HTTPStatus(), errorBody{Error: string(e.Kind), Detail: e.Detail})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal", Detail: err.Error()})
}
