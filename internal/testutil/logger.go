// Package testutil provides shared test helpers: a t.Log backed logger, the
// entity fixtures used across packages and throwaway SQLite databases.
package testutil

import (
	"log/slog"
	"strings"
	"testing"
)

// NewTestLogger returns a debug logger whose records go through t.Log, so
// they only show for failing tests or under -v. Every record carries the
// test name, which keeps parallel subtests apart.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	h := slog.NewTextHandler(tlogWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h).With(slog.String("test", t.Name()))
}

type tlogWriter struct {
	t testing.TB
}

func (w tlogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
