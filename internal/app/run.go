package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mingmong/internal/common/logging"
	"mingmong/internal/config"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	runtime.GOMAXPROCS(runtime.NumCPU())

	// Initialize logging
	logging.InitGlobalLogger()
	defer logging.MustSync()

	logging.Info("Starting ming-mong server",
		logging.Field{Key: "cpus", Value: runtime.NumCPU()},
	)

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	// Startup sequence: reclaim port, provision certificates, build handlers
	application, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	srv := application.Server()
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}

	if application.Bundle != nil {
		logging.Info("TLS enabled",
			logging.Field{Key: "source", Value: string(application.Bundle.Source)},
			logging.Field{Key: "cert_file", Value: application.Bundle.CertFile},
		)
		logging.Info("Listening",
			logging.Field{Key: "websocket", Value: "wss://localhost:" + cfg.Port + "/ws"},
			logging.Field{Key: "http", Value: "https://localhost:" + cfg.Port + "/ping"},
		)
	} else {
		logging.Info("TLS disabled - plain HTTP")
		logging.Info("Listening",
			logging.Field{Key: "websocket", Value: "ws://localhost:" + cfg.Port + "/ws"},
			logging.Field{Key: "http", Value: "http://localhost:" + cfg.Port + "/ping"},
		)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down server...")

	// Graceful shutdown; in-flight connections are simply dropped after the
	// deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return nil
}
