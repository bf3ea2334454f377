package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"meal-order-backend/internal/client"
	"meal-order-backend/internal/repository"
)

// ExportService moves confirmation snapshots to the ERP. Only QUEUED rows are sent;
// FAILED rows wait for an operator to queue them again.
type ExportService interface {
	Enqueue(ctx context.Context, orderID string) error
	RequeueFailed(ctx context.Context) (int64, error)
	ProcessQueued(ctx context.Context, limit int) (ExportResult, error)
}

type ExportResult struct {
	Sent   int
	Failed int
}

type exportServiceImpl struct {
	erpClient        client.ErpClient
	confirmationRepo repository.ConfirmationRepository
	logger           *slog.Logger
	now              func() time.Time
}

func NewExportService(erpClient client.ErpClient, confirmationRepo repository.ConfirmationRepository, logger *slog.Logger) ExportService {
	return &exportServiceImpl{
		erpClient:        erpClient,
		confirmationRepo: confirmationRepo,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *exportServiceImpl) Enqueue(ctx context.Context, orderID string) error {
	confirmation, err := s.confirmationRepo.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		return fmt.Errorf("get confirmation: %w", err)
	}
	if confirmation == nil || confirmation.Checksum == "" {
		return ErrNoConfirmation
	}

	queued, err := s.confirmationRepo.Enqueue(ctx, nil, orderID)
	if err != nil {
		return fmt.Errorf("enqueue export: %w", err)
	}
	s.logger.InfoContext(ctx, "export requested", "order_id", orderID, "queued", queued)
	return nil
}

func (s *exportServiceImpl) RequeueFailed(ctx context.Context) (int64, error) {
	n, err := s.confirmationRepo.RequeueFailed(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("requeue failed exports: %w", err)
	}
	s.logger.InfoContext(ctx, "failed exports requeued", "count", n)
	return n, nil
}

func (s *exportServiceImpl) ProcessQueued(ctx context.Context, limit int) (ExportResult, error) {
	var res ExportResult

	queued, err := s.confirmationRepo.ListQueued(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list queued exports: %w", err)
	}

	for _, c := range queued {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		externalID, pushErr := s.erpClient.PushOrder(ctx, c.OrderID, c.Checksum, c.Payload)
		if pushErr != nil {
			res.Failed++
			s.logger.WarnContext(ctx, "export failed", "order_id", c.OrderID, "attempt", c.ExportAttempts+1, "error", pushErr)
			if err := s.confirmationRepo.MarkExportFailed(ctx, c.OrderID, "export: "+pushErr.Error()); err != nil {
				return res, fmt.Errorf("mark export failed: %w", err)
			}
			continue
		}

		res.Sent++
		if err := s.confirmationRepo.MarkExported(ctx, c.OrderID, externalID, s.now()); err != nil {
			return res, fmt.Errorf("mark exported: %w", err)
		}
		s.logger.InfoContext(ctx, "order exported", "order_id", c.OrderID, "external_id", externalID)
	}

	return res, nil
}
