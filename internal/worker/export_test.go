package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"meal-order-backend/internal/logger"
	"meal-order-backend/internal/service"

	"github.com/stretchr/testify/assert"
)

type countingExports struct {
	service.ExportService
	calls atomic.Int32
	limit atomic.Int32
}

func (c *countingExports) ProcessQueued(_ context.Context, limit int) (service.ExportResult, error) {
	c.calls.Add(1)
	c.limit.Store(int32(limit))
	return service.ExportResult{Sent: 1}, nil
}

func TestExportWorkerTicksUntilCancelled(t *testing.T) {
	exports := &countingExports{}
	w := NewExportWorker(exports, 5*time.Millisecond, 0, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return exports.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, int32(20), exports.limit.Load())
}

func TestExportWorkerDefaultsNonPositiveInterval(t *testing.T) {
	exports := &countingExports{}

	for _, interval := range []time.Duration{0, -time.Second} {
		w := NewExportWorker(exports, interval, 5, logger.Discard())
		assert.Equal(t, defaultInterval, w.interval)
		assert.Equal(t, 5, w.batchSize)
	}

	// Run must not panic on a defaulted interval
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { NewExportWorker(exports, 0, 0, logger.Discard()).Run(ctx) })
}
