package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/enginebridge/backend/internal/config"
	"github.com/enginebridge/backend/internal/logging"
	"github.com/enginebridge/backend/internal/server"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	bridgeHost := flag.String("bridge-host", "", "Editor bridge host (overrides BRIDGE_HOST)")
	bridgePort := flag.Int("bridge-port", 0, "Editor bridge port (overrides BRIDGE_PORT)")
	engineBinary := flag.String("engine", "", "Engine binary for headless fallback (overrides ENGINE_BINARY)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *bridgeHost != "" {
		cfg.Bridge.Host = *bridgeHost
	}
	if *bridgePort != 0 {
		cfg.Bridge.Port = *bridgePort
	}
	if *engineBinary != "" {
		cfg.Engine.Binary = *engineBinary
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	srv := server.New(cfg, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(context.Background()); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		logger.Fatal("server error", zap.Error(err))
	}
}
