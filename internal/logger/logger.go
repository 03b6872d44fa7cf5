package logger

import (
	"log/slog"
	"os"
)

// Load builds the text logger; an unknown level falls back to info.
func Load(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
