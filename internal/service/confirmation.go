package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meal-order-backend/internal/client"
	"meal-order-backend/internal/config"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/repository"
	"meal-order-backend/internal/snapshot"

	"gorm.io/gorm"
)

type ConfirmationService interface {
	Get(ctx context.Context, orderID string) (*model.OrderConfirmation, error)
	// Rebuild assembles and upserts the snapshot of an order, one build per order at a time.
	Rebuild(ctx context.Context, orderID string) (*model.OrderConfirmation, *snapshot.Document, error)
	// Refresh runs the post-commit side effects of a payment event. Failures land on last_error.
	Refresh(ctx context.Context, orderID string, notify bool)
	SendEmail(ctx context.Context, orderID string) error
	// Wait blocks until in-flight async emails finish.
	Wait()
}

type confirmationServiceImpl struct {
	db               *gorm.DB
	orderRepo        repository.OrderRepository
	optionRepo       repository.PackageOptionRepository
	paymentRepo      repository.PaymentRepository
	promotionRepo    repository.PromotionRepository
	deliveryRepo     repository.DeliveryRepository
	customerRepo     repository.CustomerRepository
	confirmationRepo repository.ConfirmationRepository
	emailClient      client.EmailClient
	gstRate          int64
	asyncEmail       bool
	locks            *orderLocks
	inflight         sync.WaitGroup
	logger           *slog.Logger
	now              func() time.Time
}

func NewConfirmationService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	optionRepo repository.PackageOptionRepository,
	paymentRepo repository.PaymentRepository,
	promotionRepo repository.PromotionRepository,
	deliveryRepo repository.DeliveryRepository,
	customerRepo repository.CustomerRepository,
	confirmationRepo repository.ConfirmationRepository,
	emailClient client.EmailClient,
	pricingCfg config.Pricing,
	emailCfg config.Email,
	logger *slog.Logger,
) ConfirmationService {
	return &confirmationServiceImpl{
		db:               db,
		orderRepo:        orderRepo,
		optionRepo:       optionRepo,
		paymentRepo:      paymentRepo,
		promotionRepo:    promotionRepo,
		deliveryRepo:     deliveryRepo,
		customerRepo:     customerRepo,
		confirmationRepo: confirmationRepo,
		emailClient:      emailClient,
		gstRate:          pricingCfg.GSTRate,
		asyncEmail:       emailCfg.Async,
		locks:            newOrderLocks(),
		logger:           logger,
		now:              time.Now,
	}
}

func (s *confirmationServiceImpl) Get(ctx context.Context, orderID string) (*model.OrderConfirmation, error) {
	confirmation, err := s.confirmationRepo.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		return nil, fmt.Errorf("get confirmation: %w", err)
	}
	if confirmation == nil {
		return nil, ErrNoConfirmation
	}
	return confirmation, nil
}

func (s *confirmationServiceImpl) Rebuild(ctx context.Context, orderID string) (*model.OrderConfirmation, *snapshot.Document, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	var (
		confirmation *model.OrderConfirmation
		doc          *snapshot.Document
	)
	// reads and upsert share one transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		in, err := s.loadInput(ctx, tx, orderID)
		if err != nil {
			return err
		}

		doc = snapshot.Assemble(*in)
		payload, checksum, err := snapshot.Encode(doc)
		if err != nil {
			return err
		}

		reopened, err := s.confirmationRepo.ReopenExport(ctx, tx, orderID, checksum)
		if err != nil {
			return fmt.Errorf("reopen export: %w", err)
		}
		if reopened {
			s.logger.InfoContext(ctx, "exported confirmation changed, export reopened", "order_id", orderID)
		}

		confirmation = &model.OrderConfirmation{
			OrderID:  orderID,
			Version:  snapshot.Version,
			Payload:  payload,
			Checksum: checksum,
		}
		if err := s.confirmationRepo.UpsertSnapshot(ctx, tx, confirmation); err != nil {
			return fmt.Errorf("upsert confirmation: %w", err)
		}

		confirmation, err = s.confirmationRepo.FindByOrderID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("reload confirmation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return confirmation, doc, nil
}

func (s *confirmationServiceImpl) loadInput(ctx context.Context, tx *gorm.DB, orderID string) (*snapshot.Input, error) {
	order, err := s.orderRepo.FindByID(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	in := &snapshot.Input{Order: *order, GSTRate: s.gstRate}

	option, err := s.optionRepo.FindByID(ctx, tx, order.PackageOptionID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get package option: %w", err)
	}
	in.Option = option

	if in.Items, err = s.orderRepo.GetItems(ctx, tx, orderID); err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	if in.Requests, err = s.orderRepo.GetRequests(ctx, tx, orderID); err != nil {
		return nil, fmt.Errorf("get order requests: %w", err)
	}
	if in.Payments, err = s.paymentRepo.ListByOrder(ctx, tx, orderID); err != nil {
		return nil, fmt.Errorf("list order payments: %w", err)
	}
	if in.Promotion, err = s.promotionRepo.GetApplication(ctx, tx, orderID); err != nil {
		return nil, fmt.Errorf("get promotion application: %w", err)
	}
	if in.Delivery, err = s.deliveryRepo.FindByOrderID(ctx, tx, orderID); err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	if order.CustomerID != nil {
		if in.Customer, err = s.customerRepo.FindByID(ctx, tx, *order.CustomerID); err != nil {
			return nil, fmt.Errorf("get customer: %w", err)
		}
	}

	return in, nil
}

func (s *confirmationServiceImpl) Refresh(ctx context.Context, orderID string, notify bool) {
	_, doc, err := s.Rebuild(ctx, orderID)
	if err != nil {
		s.logger.ErrorContext(ctx, "rebuild confirmation", "order_id", orderID, "error", err, "email_pending", notify)
		lastError := "snapshot: " + err.Error()
		if notify {
			lastError += "; confirmation email not sent"
		}
		if recErr := s.confirmationRepo.RecordError(ctx, nil, orderID, lastError); recErr != nil {
			s.logger.ErrorContext(ctx, "record snapshot failure", "order_id", orderID, "error", recErr)
		}
		return
	}
	if !notify {
		return
	}

	if !s.asyncEmail {
		_ = s.deliver(ctx, orderID, doc)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		_ = s.deliver(ctx, orderID, doc)
	}()
}

func (s *confirmationServiceImpl) SendEmail(ctx context.Context, orderID string) error {
	_, doc, err := s.Rebuild(ctx, orderID)
	if err != nil {
		return err
	}
	return s.deliver(ctx, orderID, doc)
}

func (s *confirmationServiceImpl) Wait() {
	s.inflight.Wait()
}

// deliver sends one confirmation email and records the attempt on the confirmation row.
func (s *confirmationServiceImpl) deliver(ctx context.Context, orderID string, doc *snapshot.Document) error {
	msg, err := renderConfirmationEmail(doc)
	if err == nil {
		_, err = s.emailClient.Send(ctx, msg)
	}

	var sentAt *time.Time
	lastError := ""
	if err != nil {
		lastError = "email: " + err.Error()
		s.logger.WarnContext(ctx, "confirmation email failed", "order_id", orderID, "error", err)
	} else {
		now := s.now()
		sentAt = &now
		s.logger.InfoContext(ctx, "confirmation email sent", "order_id", orderID, "to", msg.To)
	}

	if recErr := s.confirmationRepo.RecordEmailAttempt(ctx, nil, orderID, sentAt, lastError); recErr != nil {
		s.logger.ErrorContext(ctx, "record email attempt", "order_id", orderID, "error", recErr)
		if err == nil {
			err = recErr
		}
	}
	return err
}
