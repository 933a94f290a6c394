// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Named getters that map directly to config.yaml log.levels so every package
// uses the same logger names.

// GetPipelineLogger returns a logger for the generation pipelines
func GetPipelineLogger() zerolog.Logger {
	return GetLogger("pipeline")
}

// GetProviderLogger returns a logger for hosted model provider clients
func GetProviderLogger() zerolog.Logger {
	return GetLogger("provider")
}

// GetDatabaseLogger returns a logger for database operations
func GetDatabaseLogger() zerolog.Logger {
	return GetLogger("database")
}

// GetDocumentLogger returns a logger for DOCX/PDF assembly
func GetDocumentLogger() zerolog.Logger {
	return GetLogger("document")
}

// GetAPILogger returns a logger for API operations
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}

// GetCLILogger returns a logger for the command line client
func GetCLILogger() zerolog.Logger {
	return GetLogger("cli")
}
