package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/container"
	"integration-sync-platform/internal/server"
	"integration-sync-platform/internal/services"
)

func main() {
	app := fx.New(
		container.Module,
		fx.Invoke(func(
			lc fx.Lifecycle,
			cfg *config.Config,
			srv *server.Server,
			dispatcher *services.Dispatcher,
			scheduler *services.Scheduler,
		) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Printf("Starting Integration Sync Platform on port %s", cfg.Server.Port)

					dispatcher.Start()
					scheduler.Start()

					// Start server in background
					go func() {
						if err := srv.Start(context.Background()); err != nil {
							log.Printf("Server error: %v", err)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.Println("Shutting down Integration Sync Platform")

					scheduler.Stop()
					dispatcher.Stop()
					return srv.Stop()
				},
			})
		}),
	)

	app.Run()
}
