package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application (§5): stop accepting
// new work, cancel the scheduler, drain in-flight goroutines, then close
// owned resources in dependency order.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.notifier.NotifyShutdown(context.Background(), "graceful")

	a.healthChecker.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	if a.fills != nil {
		if err := a.fills.Close(); err != nil {
			a.logger.Error("fills-feed-close-error", zap.Error(err))
		}
	}

	a.wg.Wait()

	if err := a.storage.Close(); err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.logger.Info("application-shutdown-complete")
	return nil
}
