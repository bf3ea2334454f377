package worker

import (
	"context"
	"log/slog"
	"time"

	"meal-order-backend/internal/service"
)

type ExportWorker struct {
	exportService service.ExportService
	interval      time.Duration
	batchSize     int
	logger        *slog.Logger
}

const defaultInterval = 30 * time.Second

func NewExportWorker(exportService service.ExportService, interval time.Duration, batchSize int, logger *slog.Logger) *ExportWorker {
	if interval <= 0 {
		logger.Warn("invalid export poll interval, using default", "interval", interval, "default", defaultInterval)
		interval = defaultInterval
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &ExportWorker{
		exportService: exportService,
		interval:      interval,
		batchSize:     batchSize,
		logger:        logger,
	}
}

// Run drains the export queue every interval until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("export worker started", "interval", w.interval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("export worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExportWorker) tick(ctx context.Context) {
	res, err := w.exportService.ProcessQueued(ctx, w.batchSize)
	if err != nil && ctx.Err() == nil {
		w.logger.Error("export batch failed", "error", err)
		return
	}
	if res.Sent > 0 || res.Failed > 0 {
		w.logger.Info("export batch done", "sent", res.Sent, "failed", res.Failed)
	}
}
