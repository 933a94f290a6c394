// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fallbackLogPath = "./logs/launchpad-fallback.log"

// Manager hands out named zerolog loggers that share one set of writers.
type Manager struct {
	cfg     *config.LogConfig
	root    zerolog.Logger
	mu      sync.RWMutex
	named   map[string]zerolog.Logger
	closers []io.Closer
}

// NewManager builds the writers described by cfg and returns a manager.
// When no output is enabled, logs go to a fallback file so nothing is lost.
func NewManager(cfg *config.LogConfig) (*Manager, error) {
	m := &Manager{
		cfg:   cfg,
		named: make(map[string]zerolog.Logger),
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var writers []io.Writer
	for _, out := range cfg.Output {
		if !out.Enabled {
			continue
		}
		w, err := m.openOutput(out)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to create log writers: %w", err)
		}
		writers = append(writers, w)
	}

	if len(writers) == 0 {
		f, err := m.openFile(fallbackLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create fallback log file: %w", err)
		}
		writers = append(writers, f)
	}

	var sink io.Writer = writers[0]
	if len(writers) > 1 {
		sink = zerolog.MultiLevelWriter(writers...)
	}

	m.root = m.build(sink, level)
	return m, nil
}

// openOutput returns the writer for one configured output. File outputs are
// rendered human-readable when the format is "console".
func (m *Manager) openOutput(out config.LogOutputConfig) (io.Writer, error) {
	switch out.Type {
	case "console":
		if m.cfg.Format != "console" {
			return os.Stderr, nil
		}
		return consoleWriter(os.Stderr, "15:04:05.000"), nil

	case "file":
		var w io.Writer
		if out.Rotate.MaxSizeMB > 0 {
			if err := os.MkdirAll(filepath.Dir(out.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
			lj := &lumberjack.Logger{
				Filename:   out.Path,
				MaxSize:    out.Rotate.MaxSizeMB,
				MaxBackups: out.Rotate.MaxBackups,
				MaxAge:     out.Rotate.MaxAgeDays,
				Compress:   out.Rotate.Compress,
			}
			m.closers = append(m.closers, lj)
			w = lj
		} else {
			f, err := m.openFile(out.Path)
			if err != nil {
				return nil, err
			}
			w = f
		}
		if m.cfg.Format == "console" {
			return consoleWriter(w, "2006-01-02 15:04:05.000"), nil
		}
		return w, nil

	default:
		return nil, fmt.Errorf("unsupported output type: %s", out.Type)
	}
}

func (m *Manager) openFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	m.closers = append(m.closers, f)
	return f, nil
}

func consoleWriter(out io.Writer, timeFormat string) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: timeFormat,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
	}
}

func (m *Manager) build(w io.Writer, level zerolog.Level) zerolog.Logger {
	l := zerolog.New(w).Level(level)
	ctx := m.cfg.Context
	if ctx.IncludeTimestamp {
		l = l.With().Timestamp().Logger()
	}
	if ctx.IncludeCaller {
		l = l.With().Caller().Logger()
	}
	if ctx.IncludeStackTrace != "" {
		l = l.With().Stack().Logger()
	}
	if s := m.cfg.Sampling; s.Enabled {
		l = l.Sample(&zerolog.BurstSampler{
			Burst:       s.Initial,
			Period:      s.Tick,
			NextSampler: &zerolog.BasicSampler{N: s.Thereafter},
		})
	}
	return l
}

// GetLogger returns the logger for name, tagged with a "pkg" field and
// leveled by log.levels[name] (falling back to log.level).
func (m *Manager) GetLogger(name string) zerolog.Logger {
	m.mu.RLock()
	l, ok := m.named[name]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.named[name]; ok {
		return l
	}
	level := parseLevel(m.cfg.Level)
	if lv, ok := m.cfg.Levels[name]; ok {
		level = parseLevel(lv)
	}
	l = m.root.With().Str("pkg", name).Logger().Level(level)
	m.named[name] = l
	return l
}

// SetPackageLevel changes the level of a named logger at runtime.
func (m *Manager) SetPackageLevel(name string, level string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.Levels == nil {
		m.cfg.Levels = make(map[string]string)
	}
	m.cfg.Levels[name] = level
	if l, ok := m.named[name]; ok {
		m.named[name] = l.Level(parseLevel(level))
	}
}

// Close closes every file the manager opened.
func (m *Manager) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "PANIC":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

var (
	globalManager *Manager
	once          sync.Once
)

// Initialize sets up the process-wide manager. Only the first call has effect.
func Initialize(cfg *config.LogConfig) error {
	var err error
	once.Do(func() {
		globalManager, err = NewManager(cfg)
	})
	return err
}

// GetLogger returns a named logger from the global manager, or a discard
// logger before Initialize has run.
func GetLogger(name string) zerolog.Logger {
	if globalManager == nil {
		return zerolog.New(io.Discard)
	}
	return globalManager.GetLogger(name)
}

// CloseGlobal closes the global manager.
func CloseGlobal() error {
	if globalManager != nil {
		return globalManager.Close()
	}
	return nil
}
