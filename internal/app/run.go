package app

import (
	"context"
	"fmt"

	"github.com/vk/hotswap/internal/ctxlog"
)

// Run seeds and loads all strategies, then serves until ctx is cancelled. The
// app is closed when Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error("App shutdown failed.", "error", err)
		}
	}()

	a.healthCheckServer()

	if _, err := a.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed strategies: %w", err)
	}

	summary, err := a.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to bootstrap strategies: %w", err)
	}
	a.logger.Info("🚀 Strategy engine ready.", "loaded", len(summary.Succeeded), "failed", len(summary.Failed))

	<-ctx.Done()
	a.logger.Info("🏁 Shutting down.")
	a.logger.Debug("App.Run method finished.")
	return nil
}
