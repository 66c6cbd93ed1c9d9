// Package logging sets up slog with component-tagged loggers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component names used as log source tags.
const (
	CompVerifier = "verifier"
	CompStorage  = "storage"
	CompGossip   = "gossip"
	CompNode     = "node"
)

var (
	defaultLogger *slog.Logger
	mu            sync.Mutex
)

// Init installs a text handler writing to stdout at level.
func Init(level slog.Level) {
	InitWithWriter(os.Stdout, level)
}

// InitWithWriter installs a text handler writing to w at level.
func InitWithWriter(w io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(defaultLogger)
}

// ParseLevel maps debug|info|warn|error to a slog level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewComponentLogger returns a logger tagged with a component name.
func NewComponentLogger(component string) *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("comp", component))
}

// ShortHash returns the first 8 hex chars of a [32]byte hash.
func ShortHash(h [32]byte) string {
	return fmt.Sprintf("%x", h[:4])
}
