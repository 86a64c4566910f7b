package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/star/missiontle/internal/aggregate"
	"github.com/star/missiontle/internal/auth"
	"github.com/star/missiontle/internal/health"
	"github.com/star/missiontle/internal/httputil"
	"github.com/star/missiontle/internal/metrics"
)

// MissionTLEs is the lookup the HTTP surface exposes.
type MissionTLEs interface {
	GetMissionTLEs(ctx context.Context, missionID string) (*aggregate.Result, error)
}

// Config holds the HTTP-facing settings.
type Config struct {
	Addr           string
	Auth           auth.Config
	TrustProxy     bool
	RequestTimeout time.Duration
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	readiness  *health.Readiness
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, logger *slog.Logger, svc MissionTLEs) *Server {
	readiness := &health.Readiness{}
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", readiness.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /tle/{mission_id}", missionTLEsHandler(logger, svc, cfg.RequestTimeout))
	mux.HandleFunc("/", invalidPathHandler)

	cfg.Auth.ExemptPaths = append(cfg.Auth.ExemptPaths, "/healthz", "/readyz", "/metrics")

	// Build middleware chain: metrics -> logging -> method filter -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth, logger)(handler)
	handler = methodFilter(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
			IdleTimeout:       120 * time.Second,
		},
		readiness: readiness,
		logger:    logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server unready and then drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.readiness.Drain()
	return s.httpServer.Shutdown(ctx)
}

// methodFilter rejects every method except GET.
func methodFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeText(w, http.StatusMethodNotAllowed, "This method is not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func invalidPathHandler(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusBadRequest, "Invalid request path: "+r.URL.Path)
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

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
