package gateway

import (
	"context"
	"log/slog"
	"time"
)

// endSessionTimeout bounds the detached leave call so teardown never leaks a goroutine.
const endSessionTimeout = 10 * time.Second

// EndSessionAsync signals the end of the session without waiting for the response.
// Failures are logged, never returned. The returned channel closes when the call is done.
func EndSessionAsync(g Gateway, logger *slog.Logger) <-chan struct{} {
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), endSessionTimeout)
		defer cancel()
		if err := g.EndSession(ctx); err != nil {
			logger.Warn("Failed to end backend session", slog.Any("err", err))
		}
	}()
	return done
}
