// Package server exposes the HTTP trigger and the read-only listing API.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/common"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/pipeline"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
)

const shutdownTimeout = 10 * time.Second

// serveContextKey carries the ListenAndServe context into requests.
type serveContextKey struct{}

// Runner performs one pipeline pass on demand.
type Runner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// Server serves the trigger endpoint and listing queries.
type Server struct {
	runner   Runner
	listings service.ListingStore
	logger   *slog.Logger
	router   *chi.Mux
	secret   string
}

// New builds the router. An empty secret disables the trigger endpoint.
func New(runner Runner, listings service.ListingStore, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		runner:   runner,
		listings: listings,
		secret:   secret,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/run-worker", s.handleRunWorker)
	r.Route("/api/listings", func(r chi.Router) {
		r.Get("/", s.handleListListings)
		r.Get("/{id}", s.handleGetListing)
	})
	// Notification deep links land here.
	r.Get("/item/{id}", s.handleGetListing)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithValue(context.Background(), serveContextKey{}, ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return <-errCh
}

func (s *Server) authorized(token string) bool {
	if s.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) == 1
}

func (s *Server) handleRunWorker(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.URL.Query().Get("token")) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	ctx, cancel := runContext(r)
	defer cancel()

	summary, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("Triggered run failed", "run_id", summary.RunID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":        false,
			"error":     err.Error(),
			"processed": summary.Processed,
			"sent":      summary.Sent,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"processed": summary.Processed,
		"sent":      summary.Sent,
	})
}

// runContext detaches a triggered run from the client connection so a
// disconnect does not cut the pass short. Shutting the server down still
// cancels it.
func runContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	serveCtx, ok := r.Context().Value(serveContextKey{}).(context.Context)
	if !ok {
		return ctx, cancel
	}
	stop := context.AfterFunc(serveCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListingFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	listings, err := s.listings.ListListings(r.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list listings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	listing, err := s.listings.GetListing(r.Context(), id)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to get listing", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func parseListingFilter(r *http.Request) (service.ListingFilter, error) {
	q := r.URL.Query()
	filter := service.ListingFilter{
		Profile: q.Get("profile"),
	}

	if raw := q.Get("min_score"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(score) || score < 0 || score > 1 {
			return filter, errors.New("min_score must be a number between 0 and 1")
		}
		filter.MinScore = score
	}

	switch status := model.ListingStatus(q.Get("status")); status {
	case "", model.StatusAccepted, model.StatusRejected:
		filter.Status = status
	default:
		return filter, fmt.Errorf("status must be %q or %q", model.StatusAccepted, model.StatusRejected)
	}

	if raw := q.Get("security_min"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("security_min must be an integer")
		}
		filter.SecurityMin = &v
	}

	return filter, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
