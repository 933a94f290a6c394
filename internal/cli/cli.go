// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator/models"

	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

// getLog must only be called after logger.Initialize.
func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetCLILogger()
		log = &l
	})
	return log
}

const (
	appName    = "launchpad"
	appVersion = "0.1.0-alpha"
)

// Execute runs the CLI application
func Execute() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		return runCommand(args)
	case "runs":
		return runsCommand(args)
	case "show":
		return showCommand(args)
	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return nil
	case "help", "-h", "--help":
		return printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		return printUsage()
	}
}

func variantNames() string {
	names := make([]string, len(models.Variants))
	for i, v := range models.Variants {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

func printUsage() error {
	fmt.Printf(`%s - AI content pipelines for info-product launches

Usage:
  %s <command> [arguments]

Commands:
  run <variant> [description]  Run a pipeline and write its output
  runs                         List recent runs
  show <run_id>                Show one run
  version                      Print version information
  help                         Show this help message

Variants:
  %s

Examples:
  %s run landing "Curso online de fotografia para iniciantes"
  %s run variations --scope component --image hero.png "Botão de compra"
  %s run research --topic "confeitaria artesanal"
  %s run production --request ebook.yaml --out ./dist
  %s run theme --image site.png
  %s runs --limit 10
  %s show 3f2a9c1e-...

`, appName, appName, variantNames(), appName, appName, appName, appName, appName, appName, appName)
	return nil
}
