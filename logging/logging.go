// Package logging wires ARTINET_LOG_FILE / ARTINET_LOG_LEVEL (§6) into the
// log/slog-based logger construction in pkg/logger: file-or-stderr sink
// selection, package-prefix filtering of third-party noise.
package logging

import (
	"log/slog"
	"os"

	"github.com/the-artinet-project/router/pkg/logger"
)

// Init configures the process-wide slog default logger from environment
// variables, matching §6's ARTINET_LOG_FILE / ARTINET_LOG_LEVEL contract.
// It returns a cleanup func that closes the log file, if one was opened.
func Init() func() {
	level, err := logger.ParseLevel(os.Getenv("ARTINET_LOG_LEVEL"))
	if err != nil {
		level = slog.LevelInfo
	}

	path := os.Getenv("ARTINET_LOG_FILE")
	if path == "" {
		logger.Init(level, os.Stderr, "simple")
		return func() {}
	}

	file, cleanup, err := logger.OpenLogFile(path)
	if err != nil {
		slog.Warn("logging: failed to open ARTINET_LOG_FILE, falling back to stderr", "path", path, "error", err)
		logger.Init(level, os.Stderr, "simple")
		return func() {}
	}

	logger.Init(level, file, "verbose")
	return cleanup
}
