// Package bot is the messaging transport boundary: the inbound WhatsApp
// webhook served over HTTP and the outbound Twilio message adapter.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"agendabot/internal/auth"
	"agendabot/internal/calendar"
	"agendabot/internal/db"
	"agendabot/internal/location"
	"agendabot/internal/types"
)

// Reporter produces the ad-hoc query replies. Implemented by
// scheduler.Service.
type Reporter interface {
	WeatherReport(ctx context.Context) (string, types.Forecast, error)
	EventsReport(ctx context.Context) (calendar.Result, error)
	CheckCredential(ctx context.Context) (auth.RefreshResult, error)
}

// Server hosts the webhook routes and their middleware chain.
type Server struct {
	reporter Reporter
	resolver location.Resolver
	state    db.StateStore
	logger   *slog.Logger
}

// NewServer wires the webhook server. logger must not be nil in production;
// a nil logger falls back to slog.Default.
func NewServer(reporter Reporter, resolver location.Resolver, state db.StateStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		reporter: reporter,
		resolver: resolver,
		state:    state,
		logger:   logger,
	}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(s.recoverer)
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Post("/whatsapp", s.handleWhatsApp)

	return r
}

// handleHealth reports liveness. It deliberately does not probe upstream
// collaborators; a slow AEMET must not flap the process health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// responseCapture wraps an http.ResponseWriter to observe the status code
// written by downstream handlers.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// recoverer catches panics in the handler chain, logs the stack trace, and
// returns a plain 500. It must be the outermost middleware.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprintf("%v", rvr)),
					slog.String("stack", string(debug.Stack())),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware stores a correlation ID in the request context and
// echoes it in the X-Request-Id response header. An inbound header wins so
// Twilio retries stay correlated.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs request metadata after the handler chain completes,
// escalating the level with the response status.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rc, r)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rc.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if reqID := types.GetRequestID(r.Context()); reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}

			switch {
			case rc.statusCode >= 500:
				logger.Error("request completed", attrs...)
			case rc.statusCode >= 400:
				logger.Warn("request completed", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		})
	}
}
