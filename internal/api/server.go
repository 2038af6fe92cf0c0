// Package api exposes the HTTP interface for the crawl service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gitscout/gitscout/internal/crawler"
	"github.com/gitscout/gitscout/internal/mailer"
	"github.com/gitscout/gitscout/internal/metrics"
	"github.com/gitscout/gitscout/internal/store"
)

// CrawlRunner is the runner slice the API consumes.
type CrawlRunner interface {
	Run(ctx context.Context) (crawler.Stats, error)
	Active() bool
}

// UserStore is the store slice backing the read endpoints.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CountByCountry(ctx context.Context) (map[string]int64, error)
	UsersByCountry(ctx context.Context, code string) ([]store.User, error)
	MarkContacted(ctx context.Context, id int64) error
}

// Server wires HTTP handlers to the runner, store, and mailer.
type Server struct {
	router chi.Router
	runner CrawlRunner
	users  UserStore
	mail   mailer.Mailer
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner CrawlRunner, users UserStore, mail mailer.Mailer, logger *zap.Logger) *Server {
	if mail == nil {
		mail = mailer.NoOpMailer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		users:  users,
		mail:   mail,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl/run", s.runCrawl)
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.listUsers)
			r.Get("/count", s.countUsers)
			r.Get("/by-country", s.usersByCountry)
			r.Get("/country/{code}", s.usersForCountry)
			r.Post("/{id}/contact", s.contactUser)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store backs every read endpoint; a failing count means not ready.
	if _, err := s.users.CountUsers(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// runCrawl executes a full crawl run synchronously and returns its
// statistics. Concurrent requests are rejected; runs are serialized.
func (s *Server) runCrawl(w http.ResponseWriter, r *http.Request) {
	stats, err := s.runner.Run(r.Context())
	switch {
	case errors.Is(err, crawler.ErrRunActive):
		s.writeError(w, http.StatusConflict, "a crawl run is already active")
		return
	case err != nil:
		s.logger.Error("crawl run failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":      "error",
			"error":       err.Error(),
			"stats":       stats,
			"last_cursor": stats.LastCursor,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "complete",
		"stats":       stats,
		"last_cursor": stats.LastCursor,
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("list users failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "list users failed")
		return
	}
	if users == nil {
		users = []store.User{}
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) countUsers(w http.ResponseWriter, r *http.Request) {
	count, err := s.users.CountUsers(r.Context())
	if err != nil {
		s.logger.Error("count users failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "count users failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"total_users": count})
}

func (s *Server) usersByCountry(w http.ResponseWriter, r *http.Request) {
	counts, err := s.users.CountByCountry(r.Context())
	if err != nil {
		s.logger.Error("count by country failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "count by country failed")
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"by_country":      counts,
		"total_countries": len(counts),
		"total_users":     total,
	})
}

func (s *Server) usersForCountry(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	users, err := s.users.UsersByCountry(r.Context(), code)
	if err != nil {
		s.logger.Error("list users by country failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "list users by country failed")
		return
	}
	if users == nil {
		users = []store.User{}
	}
	s.writeJSON(w, http.StatusOK, users)
}

type contactRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// contactUser sends outreach mail to one saved user and marks them
// contacted.
func (s *Server) contactUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" {
		s.writeError(w, http.StatusBadRequest, "missing subject")
		return
	}

	user, err := s.users.GetUser(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("get user failed", zap.Int64("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "get user failed")
		return
	}
	if user.Email == "" {
		s.writeError(w, http.StatusConflict, "user has no email")
		return
	}

	if err := s.mail.Send(r.Context(), user.Email, req.Subject, req.Body); err != nil {
		s.logger.Error("send mail failed", zap.Int64("id", id), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "send mail failed")
		return
	}
	if err := s.users.MarkContacted(r.Context(), id); err != nil {
		s.logger.Error("mark contacted failed", zap.Int64("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "mail sent but contact flag update failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		metrics.ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))

		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
