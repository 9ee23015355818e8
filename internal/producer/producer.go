// Package producer contains the background collectors that feed the shared
// state store. Each producer runs on its own goroutine, owns its hardware
// access and parsing, and shares nothing with its peers but the store.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrTerminal marks a failure that means the producer's backing hardware is
// permanently absent. The producer exits cleanly; its data family keeps its
// last-written values.
var ErrTerminal = errors.New("hardware unavailable")

// Terminal wraps err so the loop driver treats it as a clean exit.
func Terminal(err error) error {
	return fmt.Errorf("%w: %w", ErrTerminal, err)
}

// Producer is a background collector. Run blocks until the context is
// cancelled or a terminal hardware failure occurs; any other error from an
// iteration is absorbed inside Run.
type Producer interface {
	Name() string
	Run(ctx context.Context) error
}

// loop drives a producer iteration at a fixed cadence. Each iteration runs
// behind an error barrier: panics and transient errors are logged and the
// next iteration proceeds, while errors wrapping ErrTerminal stop the loop.
// The first iteration runs immediately.
func loop(ctx context.Context, logger *slog.Logger, interval time.Duration, iterate func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runIteration(ctx, logger, iterate); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runIteration(ctx context.Context, logger *slog.Logger, iterate func(context.Context) error) (terminal error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Sprintf("iteration panic: %v", r))
		}
	}()

	if err := iterate(ctx); err != nil {
		if errors.Is(err, ErrTerminal) {
			logger.Error(err.Error())
			return err
		}
		if ctx.Err() == nil {
			logger.Warn(err.Error())
		}
	}
	return nil
}
