// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the playback session over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/streamnorm/internal/api/middleware"
	"github.com/ManuGH/streamnorm/internal/log"
	"github.com/ManuGH/streamnorm/internal/session"
	"github.com/ManuGH/streamnorm/internal/telemetry"
	"github.com/ManuGH/streamnorm/internal/version"
)

const maxRequestBody = 64 << 10

// Controller is the part of the session the API drives.
type Controller interface {
	SetSource(locator string)
	SetVariant(index int)
	Snapshot() session.Snapshot
}

// Config tunes the HTTP surface.
type Config struct {
	ListenAddr         string
	RateLimitPerMinute int
	// TracingService names request spans; empty disables tracing.
	TracingService string
}

// Server serves the control and diagnostics API.
type Server struct {
	cfg     Config
	ctrl    Controller
	board   *Board
	sources session.Sources
	logger  zerolog.Logger
	router  chi.Router
}

// New wires the router. The board must be registered as an observer of ctrl.
func New(cfg Config, ctrl Controller, board *Board, sources session.Sources) *Server {
	s := &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		board:   board,
		sources: sources,
		logger:  log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		EnableLogging:  true,
		TracingService: s.cfg.TracingService,
	})

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessionContext)
		r.Get("/state", s.handleState)
		r.Get("/manifest", s.handleManifest)
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ControlRateLimit(s.cfg.RateLimitPerMinute))
			r.Put("/source", s.handlePutSource)
			r.Put("/variant", s.handlePutVariant)
			r.Delete("/events", s.handleClearEvents)
		})
	})
	return r
}

// sessionContext tags API requests with the current playback session ID.
func (s *Server) sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.ContextWithSessionID(r.Context(), s.ctrl.Snapshot().SessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("api listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		<-errCh
		s.logger.Info().Msg("api stopped")
		return nil
	}
}

// stateResponse is the JSON body of GET /api/v1/state.
type stateResponse struct {
	session.Snapshot
	Failure *failureResponse `json:"failure,omitempty"`
}

type failureResponse struct {
	Kind    session.ErrorKind `json:"kind"`
	Locator string            `json:"locator"`
	Message string            `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	resp := stateResponse{Snapshot: s.ctrl.Snapshot()}
	if f := s.board.LastFailure(); f != nil {
		msg := string(f.Kind)
		if f.Err != nil {
			msg = f.Err.Error()
		}
		resp.Failure = &failureResponse{Kind: f.Kind, Locator: f.Locator, Message: msg}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	m := s.board.Manifest()
	if m == "" {
		writeNotFound(w, "manifest")
		return
	}
	writeText(w, m)
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	events := s.board.Events()
	body := strings.Join(events, "\n")
	if len(events) > 0 {
		body += "\n"
	}
	writeText(w, body)
}

func (s *Server) handleClearEvents(w http.ResponseWriter, _ *http.Request) {
	s.board.ClearEvents()
	w.WriteHeader(http.StatusNoContent)
}

type sourceRequest struct {
	Locator string `json:"locator"`
	Preset  string `json:"preset"`
}

func (s *Server) handlePutSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	locator := strings.TrimSpace(req.Locator)
	preset := strings.TrimSpace(req.Preset)
	switch {
	case locator != "" && preset != "":
		writeError(w, errAmbiguousSource)
		return
	case preset != "":
		loc, ok := s.sources.Preset(preset)
		if !ok {
			writeError(w, fmt.Errorf("%w: %q", errUnknownPreset, preset))
			return
		}
		locator = loc
	case locator == "":
		writeError(w, errEmptySource)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(telemetry.SourceAttributes(locator, preset)...)
	logger := log.WithContext(r.Context(), s.logger)
	logger.Info().Str(log.FieldLocator, locator).Msg("source requested")
	s.ctrl.SetSource(locator)
	writeJSON(w, http.StatusAccepted, map[string]string{"locator": locator})
}

type variantRequest struct {
	Index *int `json:"index"`
}

func (s *Server) handlePutVariant(w http.ResponseWriter, r *http.Request) {
	var req variantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Index == nil {
		writeError(w, errMissingIndex)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(telemetry.VariantAttributes(*req.Index)...)
	logger := log.WithContext(r.Context(), s.logger)
	logger.Info().Int(log.FieldSelection, *req.Index).Msg("variant requested")
	s.ctrl.SetVariant(*req.Index)
	writeJSON(w, http.StatusAccepted, map[string]int{"index": *req.Index})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
