package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"anirec/api"
	"anirec/config"
	"anirec/handlers"
	"anirec/internal/database"
	"anirec/services/metadata"
	"anirec/services/refresher"
	"anirec/services/tracking"
	"anirec/utils"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	db, err := database.NewDB(database.Config{DatabasePath: cfg.DatabasePath})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	trackedRepo := database.NewTrackedAnimeRepository(db.Connection())

	metadataSvc := metadata.NewService(cfg.JikanBaseURL, cfg.JikanRetryAttempts, cfg.JikanRetryDelay, logger)
	trackingSvc := tracking.NewService(trackedRepo, logger)

	refreshSvc := refresher.NewService(metadataSvc, trackingSvc, cfg.RefreshInterval, logger)
	refreshSvc.Start(context.Background())
	defer refreshSvc.Stop()

	// The Jikan proxy routes get their own throttle so a single client
	// cannot burn the upstream rate budget for everyone.
	proxyLimiter := api.NewIPRateLimiter(rate.Every(time.Second), 5)

	router := utils.NewRouter(cfg.AllowedOrigins)
	router.Use(api.LoggingMiddleware(logger))
	handlers.RegisterRoutes(router,
		handlers.NewAnimeHandler(metadataSvc, logger),
		handlers.NewTrackingHandler(trackingSvc, logger),
		proxyLimiter.Middleware(),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("Starting anirec server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
