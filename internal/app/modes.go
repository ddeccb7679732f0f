package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"cforge/pkg/logging"
)

// runServe runs the reconcile manager and the HTTP API until ctx is
// cancelled, SIGINT or SIGTERM arrives, or either fails.
func runServe(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := services.Manager.Start(ctx); err != nil {
		logging.Error("Serve", err, "Failed to start reconcile manager")
		return fmt.Errorf("starting reconcile manager: %w", err)
	}
	logging.Info("Serve", "Controller started (watch mode %s)", services.Manager.GetWatchMode())

	g, gctx := errgroup.WithContext(ctx)
	if services.Server != nil {
		g.Go(func() error {
			return services.Server.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Serve", "Shutting down")
		return services.Manager.Stop()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logging.Info("Serve", "Stopped")
	return nil
}
