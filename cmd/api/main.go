package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-order-backend/internal/app"
	"meal-order-backend/internal/config"
	"meal-order-backend/internal/logger"
	"meal-order-backend/internal/server"
	"meal-order-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(config.Log{}).Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	exportWorker := worker.NewExportWorker(application.ExportService, cfg.Export.PollInterval, cfg.Export.BatchSize, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		exportWorker.Run(ctx)
	}()

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(
		application.OrderService,
		application.ReconcileService,
		application.ConfirmationService,
		application.ExportService,
		cfg.Admin.ApiToken,
		log,
	)

	log.Info("starting HTTP server", "addr", serverAddr, "env", cfg.Environment.Name)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Error("export worker did not stop before shutdown timeout")
	}
	if err := application.Close(); err != nil {
		log.Error("close application", "error", err)
	}
}
