// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator"
	"github.com/noldarim/launchpad/internal/protocol"
	"github.com/noldarim/launchpad/internal/server"
	"github.com/noldarim/launchpad/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().Msg("Starting launchpad API server")

	// This context drives the orchestrator's lifetime.
	ctx, cancel := context.WithCancel(context.Background())

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error setting up tracing")
		fmt.Fprintf(os.Stderr, "Error setting up tracing: %v\n", err)
		os.Exit(1)
	}

	// The server calls the run service directly; cmdChan only keeps the
	// orchestrator loop idle.
	cmdChan := make(chan protocol.Command, 100)
	eventChan := make(chan protocol.Event, 256)

	orch, err := orchestrator.New(cmdChan, eventChan, cfg)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error creating orchestrator")
		fmt.Fprintf(os.Stderr, "Error creating orchestrator: %v\n", err)
		os.Exit(1)
	}

	// Start orchestrator
	go func() {
		mainLog.Info().Msg("Starting orchestrator...")
		orch.Run(ctx)
		mainLog.Info().Msg("Orchestrator stopped")
	}()

	// The broadcaster must keep draining eventChan until the orchestrator is
	// closed, so it gets its own context.
	broadcastCtx, stopBroadcast := context.WithCancel(context.Background())
	srv := server.New(&cfg.Server, eventChan, orch.RunService(), orch.DataService())

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Run(broadcastCtx)
	}()

	// Wait for signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
	case err := <-serverErrChan:
		if err != nil {
			mainLog.Error().Err(err).Msg("Server error")
		}
	}

	// Graceful shutdown: fresh context with timeout, independent of orchestrator ctx.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down server")
	}

	// Now stop the orchestrator; active runs are cancelled and recorded.
	mainLog.Info().Msg("Shutting down orchestrator...")
	cancel()
	if err := orch.Close(); err != nil {
		mainLog.Error().Err(err).Msg("Error closing orchestrator")
	}
	stopBroadcast()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error flushing traces")
	}

	mainLog.Info().Msg("API server shut down")
}
