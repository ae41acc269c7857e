package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/config"
)

// Setup installs the process-wide slog handler: text in development, JSON in production.
func Setup(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Log.Level)}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", "marketplace-chat"))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
