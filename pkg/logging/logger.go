// Package logging provides structured logging for librarian using zerolog.
// Console output is used when stderr is a terminal and JSON otherwise, so
// apply runs captured by cron or CI produce machine-readable audit trails.
//
// Loggers travel in contexts; every stage tags its lines with the run:
//
//	ctx := logging.WithRun(ctx, runID, "sweep", "apply")
//	logging.FromContext(ctx).Info().Int64("sub_collection_id", 21).Msg("moved")
package logging

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu            sync.RWMutex
	defaultLogger = NewLoggerFromConfig(envConfig())
)

// Default returns the process-wide logger, configured from LOG_* variables
// until SetDefault replaces it.
func Default() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := defaultLogger
	return &l
}

// SetDefault replaces the process-wide logger, including zerolog's own.
func SetDefault(logger zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
	log.Logger = logger
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
