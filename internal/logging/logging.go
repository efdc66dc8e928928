package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config tunes the structured logger every subsystem receives through its
// constructor; nothing in the daemon logs through package-level state.
type Config struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string
	// FilePath is the rotating log file; empty disables file output.
	FilePath string
	// MaxSizeMB triggers rotation (default 10).
	MaxSizeMB int
	// MaxFiles caps how many rotated files survive (default 5).
	MaxFiles int
	// WriteToStderr mirrors records to stderr. The daemon turns this off
	// so its stderr stays clean for the service manager.
	WriteToStderr bool
}

// DefaultConfig returns file logging at info level with stderr mirroring.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup builds a JSON slog.Logger over a rotating file writer. The
// returned cleanup flushes and closes the file; call it on exit.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if err := EnsureLogDir(); err != nil {
		return nil, nil, err
	}

	var output io.Writer = io.Discard
	var writer *RotatingWriter
	if cfg.FilePath != "" {
		w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		writer, output = w, w
	}
	if cfg.WriteToStderr {
		output = io.MultiWriter(output, os.Stderr)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: LevelFromString(cfg.Level),
	})

	cleanup := func() {
		if writer != nil {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}
	return slog.New(handler), cleanup, nil
}

// SetupDefault installs a debug-level logger as the process default and
// returns its cleanup.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DebugConfig())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// LevelFromString maps a level name onto slog.Level; unknown names mean
// info.
func LevelFromString(level string) slog.Level {
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
