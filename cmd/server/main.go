package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sonoswidget/internal/config"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
	"github.com/GriffinCanCode/sonoswidget/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadOrDefault()

	host := flag.String("host", cfg.Server.Host, "Listen host")
	port := flag.String("port", cfg.Server.Port, "Listen port")
	httpOnly := flag.Bool("http", cfg.Server.HTTPOnly, "Serve plain HTTP instead of HTTPS")
	debug := flag.Bool("debug", false, "Debug logging")
	flag.Parse()

	cfg.Server.Host = *host
	cfg.Server.Port = *port
	cfg.Server.HTTPOnly = *httpOnly
	if *debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}
}
