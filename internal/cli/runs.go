// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/services"
)

type runsOptions struct {
	configPath string
	limit      int
}

func runsCommand(args []string) error {
	opts := &runsOptions{}
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	fs.IntVar(&opts.limit, "limit", 20, "Maximum number of runs to list")

	if err := fs.Parse(args); err != nil {
		return err
	}

	return withDataService(opts.configPath, func(ctx context.Context, ds *services.DataService) error {
		runs, err := ds.ListRuns(ctx, opts.limit)
		if err != nil {
			return fmt.Errorf("failed to load runs: %w", err)
		}
		printRuns(os.Stdout, runs)
		return nil
	})
}

func showCommand(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: %s show <run_id>", appName)
	}
	runID := fs.Arg(0)

	return withDataService(*configPath, func(ctx context.Context, ds *services.DataService) error {
		run, err := ds.GetRun(ctx, runID)
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("run not found: %s", runID)
		}
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}
		printRun(os.Stdout, run)
		return nil
	})
}

// withDataService opens the database (no orchestrator) for read commands.
func withDataService(configPath string, fn func(context.Context, *services.DataService) error) error {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dataService, err := services.NewDataService(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dataService.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fn(ctx, dataService)
}

func printRuns(w io.Writer, runs []*models.PipelineRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		fmt.Fprintf(w, "\nStart one with:\n  %s run landing \"<description>\"\n", appName)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-36s  %-12s  %-10s  %4s  %-16s  %s\n", "ID", "VARIANT", "STATUS", "PCT", "CREATED", "DESCRIPTION")
	fmt.Fprintln(w, "────────────────────────────────────  ────────────  ──────────  ────  ────────────────  ────────────────────")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-12s  %-10s  %3d%%  %-16s  %s\n",
			r.ID, r.Variant, r.Status, r.Percentage,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncateForDisplay(r.Description, 40))
	}
	fmt.Fprintln(w)
}

func printRun(w io.Writer, r *models.PipelineRun) {
	fmt.Fprintf(w, "Run:         %s\n", r.ID)
	fmt.Fprintf(w, "Variant:     %s\n", r.Variant)
	fmt.Fprintf(w, "Status:      %s\n", r.Status)
	fmt.Fprintf(w, "Stage:       %s (%d%%)\n", r.Stage, r.Percentage)
	if r.Model != "" {
		fmt.Fprintf(w, "Model:       %s\n", r.Model)
	}
	if r.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", truncateForDisplay(r.Description, 70))
	}
	if r.StartedAt != nil {
		end := time.Now()
		if r.CompletedAt != nil {
			end = *r.CompletedAt
		}
		fmt.Fprintf(w, "Duration:    %s\n", end.Sub(*r.StartedAt).Round(time.Second))
	}
	if r.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:       %s\n", r.ErrorMessage)
	}
	if out := r.Output.PipelineOutput; out != nil {
		fmt.Fprintf(w, "Sections:    %d\n", len(out.Sections))
		fmt.Fprintf(w, "Images:      %d\n", len(out.Images))
		for _, warning := range out.Meta.Warnings {
			fmt.Fprintf(w, "Warning:     %s\n", warning)
		}
	}
}
