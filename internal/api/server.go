package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/auth"
	"github.com/dhmspector/ZeitSatTrack/internal/health"
	"github.com/dhmspector/ZeitSatTrack/internal/httputil"
	"github.com/dhmspector/ZeitSatTrack/internal/metrics"
	"github.com/dhmspector/ZeitSatTrack/internal/stream"
	"github.com/dhmspector/ZeitSatTrack/internal/tracker"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. streamHandler may be nil, in
// which case the SSE route is not registered.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, m *tracker.Manager, streamHandler *stream.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           newHandler(logger, authCfg, m, streamHandler, time.Now),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

func newHandler(logger *slog.Logger, authCfg auth.Config, m *tracker.Manager, streamHandler *stream.Handler, now func() time.Time) http.Handler {
	mux := http.NewServeMux()
	h := &handlers{m: m, logger: logger, now: now}

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(m))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/groups", h.listGroups)
	mux.HandleFunc("GET /api/v1/groups/{group}", h.listSubgroups)
	mux.HandleFunc("POST /api/v1/groups/{group}/load", h.loadGroup)
	mux.HandleFunc("POST /api/v1/groups/{group}/subgroups/{subgroup}/load", h.loadSubgroup)

	mux.HandleFunc("GET /api/v1/satellites", h.listSatellites)
	mux.HandleFunc("POST /api/v1/satellites", h.loadText)
	mux.HandleFunc("DELETE /api/v1/satellites", h.clear)
	mux.HandleFunc("GET /api/v1/satellites/{name...}", h.satellite)
	mux.HandleFunc("DELETE /api/v1/satellites/{name...}", h.removeSatellite)

	mux.HandleFunc("GET /api/v1/positions", h.allPositions)
	mux.HandleFunc("GET /api/v1/positions/{name...}", h.position)
	mux.HandleFunc("GET /api/v1/look/{name...}", h.lookAngle)
	mux.HandleFunc("GET /api/v1/passes/{name...}", h.predictPasses)

	mux.HandleFunc("GET /api/v1/watch", h.watched)
	mux.HandleFunc("GET /api/v1/watch/positions", h.watchedPositions)
	mux.HandleFunc("PUT /api/v1/watch/{name...}", h.watch)
	mux.HandleFunc("DELETE /api/v1/watch/{name...}", h.unwatch)

	mux.HandleFunc("GET /api/v1/sky", h.sky)
	mux.HandleFunc("GET /api/v1/observer", h.observer)
	mux.HandleFunc("PUT /api/v1/observer", h.setObserver)
	mux.HandleFunc("PUT /api/v1/poll", h.setPoll)
	mux.HandleFunc("POST /api/v1/updates/pause", h.pause)
	mux.HandleFunc("POST /api/v1/updates/resume", h.resume)
	mux.HandleFunc("GET /api/v1/stats", h.stats)

	if streamHandler != nil {
		mux.HandleFunc("GET /api/v1/stream/positions", streamHandler.HandlePositions)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, false),
			)
		})
	}
}
