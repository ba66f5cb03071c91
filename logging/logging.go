// Package logging builds the process logger: human-readable output on
// stderr and, optionally, JSON lines in a rotating file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/caffeineduck/hookwarden/config"
)

// Logger is a configured logger plus the file sink that must be closed on
// shutdown.
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// New builds a logger from cfg writing console output to console. An empty
// cfg.File disables the file sink.
func New(cfg config.LogConfig, console io.Writer) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal(console),
	}

	l := &Logger{}
	var out io.Writer = consoleWriter

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    positive(cfg.MaxSizeMB, 50),
			MaxBackups: positive(cfg.MaxBackups, 3),
			MaxAge:     positive(cfg.MaxAgeDays, 7),
			LocalTime:  true,
		}
		// Console gets the readable form, the file gets JSON.
		out = zerolog.MultiLevelWriter(consoleWriter, l.file)
	}

	l.Logger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
	return l, nil
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// FilePath returns the log file path, or "" when file logging is off.
func (l *Logger) FilePath() string {
	if l.file == nil {
		return ""
	}
	return l.file.Filename
}

// Close flushes and closes the file sink.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func positive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
