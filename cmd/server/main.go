package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"risk-decision/internal/api"
	"risk-decision/internal/config"
	"risk-decision/internal/logging"
)

func main() {
	cfg := config.Load()

	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	if err := run(cfg); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

// run serves until a shutdown signal arrives. Startup and listen failures are returned after
// the server's resources are released.
func run(cfg config.Config) error {
	if !cfg.StatsDisabled {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	server, err := api.NewServer(api.Config{
		DBPath:         cfg.DBPath,
		DisableStats:   cfg.StatsDisabled,
		SilentDB:       cfg.LogLevel != "debug",
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if cerr := server.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close server")
		}
	}()

	router, err := server.Router()
	if err != nil {
		return fmt.Errorf("configure router: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"origins": cfg.AllowedOrigins,
			"stats":   !cfg.StatsDisabled,
		}).Info("starting risk-decision backend")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	case sig := <-quit:
		logrus.WithField("signal", sig.String()).Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("graceful shutdown")
	}
	logrus.Info("server exited")
	return nil
}
