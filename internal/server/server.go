// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/services"
	"github.com/noldarim/launchpad/internal/protocol"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxBodyBytes = 1 << 20

// Server is the REST + WebSocket API server.
type Server struct {
	httpServer  *http.Server
	broadcaster *EventBroadcaster
}

// New creates and wires up the API server. It does NOT start listening;
// call Run() for that.
func New(
	cfg *config.ServerConfig,
	eventChan <-chan protocol.Event,
	runs *services.RunService,
	data *services.DataService,
) *Server {
	registry := NewClientRegistry()
	broadcaster := NewEventBroadcaster(eventChan, registry)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(cfg, registry, NewHandlers(runs, data)),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		broadcaster: broadcaster,
	}
}

// NewRouter builds the HTTP routes. Exposed for tests.
func NewRouter(cfg *config.ServerConfig, registry *ClientRegistry, handlers *Handlers) http.Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(MaxBodySize(maxBody))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/variants", handlers.GetVariants)
		r.Post("/variants/{variant}/runs", handlers.StartRun)

		// Runs
		r.Get("/runs", handlers.GetRuns)
		r.Route("/runs/{runId}", func(r chi.Router) {
			r.Get("/", handlers.GetRun)
			r.Get("/output", handlers.GetRunOutput)
			r.Post("/cancel", handlers.CancelRun)
			r.Get("/document.docx", handlers.GetRunDOCX)
			r.Get("/document.pdf", handlers.GetRunPDF)
		})

		// Stored artifacts
		r.Get("/landing-pages", handlers.GetLandingPages)
		r.Post("/landing-pages", handlers.CreateLandingPage)
		r.Get("/landing-pages/{id}", handlers.GetLandingPage)
		r.Delete("/landing-pages/{id}", handlers.DeleteLandingPage)

		r.Get("/order-bumps", handlers.GetOrderBumps)
		r.Post("/order-bumps", handlers.CreateOrderBumps)
		r.Delete("/order-bumps/{id}", handlers.DeleteOrderBump)

		r.Get("/themes", handlers.GetThemes)
		r.Post("/themes", handlers.CreateTheme)
		r.Get("/themes/{id}", handlers.GetTheme)
		r.Delete("/themes/{id}", handlers.DeleteTheme)
	})

	// WebSocket
	r.Get("/ws", HandleWebSocket(registry, cfg.AllowedOrigins))

	return otelhttp.NewHandler(r, "launchpad-api",
		otelhttp.WithFilter(func(req *http.Request) bool { return req.URL.Path != "/ws" }))
}

// Run starts the event broadcaster goroutine and the HTTP server.
// Blocks until the server is shut down or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.runBroadcaster(ctx)

	getLog().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) runBroadcaster(ctx context.Context) {
	const maxRetries = 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					getLog().Error().Interface("panic", r).Int("attempt", attempt).Msg("Event broadcaster panic")
				}
			}()
			s.broadcaster.Run(ctx)
		}()

		// Normal return (context cancelled or channel closed), no retry.
		if ctx.Err() != nil || s.broadcaster.Stopped() {
			return
		}

		if attempt < maxRetries {
			getLog().Warn().Int("attempt", attempt).Msg("Restarting event broadcaster after panic")
			time.Sleep(1 * time.Second)
		}
	}
	getLog().Error().Msg("Event broadcaster exhausted retries - events will no longer be dispatched")
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
