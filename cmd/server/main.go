package main

import (
	"context"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	config := server.NewConfigFromEnv()

	logger := server.NewLogger(config.LogLevel, os.Stderr)
	slog.SetDefault(logger)
	logger.Info("starting room relay", "port", config.Port, "log_level", config.LogLevel)

	hub := server.NewHub(config, logger)
	httpServer := server.CreateServer(config.Port, server.SetupRoutes(hub))

	go func() {
		if err := server.StartServer(httpServer, logger); err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		config.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return server.ShutdownServer(ctx, httpServer, logger)
			},
			"hub": func(context.Context) error {
				return hub.Shutdown(config.ShutdownTimeout)
			},
		},
	)

	exitCode := <-wait
	logger.Info("room relay exited", "code", exitCode)
	os.Exit(exitCode)
}
