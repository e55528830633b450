package app

import (
	"context"
	"os/signal"
	"syscall"
)

// ContextWithSignals returns a context canceled on SIGINT or SIGTERM.
// Cancellation stops a run between items; the partial report is still written.
func ContextWithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
