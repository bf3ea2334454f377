package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"meal-order-backend/internal/client"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/repository"
	"meal-order-backend/internal/webhook"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReconcileService applies signed gateway events to payments and orders.
//
// HandleWebhook returns an error wrapping a webhook signature error when the delivery must be
// rejected, any other error when the gateway should retry, and nil when the delivery is settled.
type ReconcileService interface {
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}

type reconcileServiceImpl struct {
	db                  *gorm.DB
	gatewayClient       client.GatewayClient
	paymentService      PaymentService
	confirmationService ConfirmationService
	paymentRepo         repository.PaymentRepository
	orderRepo           repository.OrderRepository
	deliveryRepo        repository.DeliveryRepository
	customerRepo        repository.CustomerRepository
	webhookEventRepo    repository.WebhookEventRepository
	logger              *slog.Logger
}

func NewReconcileService(
	db *gorm.DB,
	gatewayClient client.GatewayClient,
	paymentService PaymentService,
	confirmationService ConfirmationService,
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	deliveryRepo repository.DeliveryRepository,
	customerRepo repository.CustomerRepository,
	webhookEventRepo repository.WebhookEventRepository,
	logger *slog.Logger,
) ReconcileService {
	return &reconcileServiceImpl{
		db:                  db,
		gatewayClient:       gatewayClient,
		paymentService:      paymentService,
		confirmationService: confirmationService,
		paymentRepo:         paymentRepo,
		orderRepo:           orderRepo,
		deliveryRepo:        deliveryRepo,
		customerRepo:        customerRepo,
		webhookEventRepo:    webhookEventRepo,
		logger:              logger,
	}
}

// outcome is what a committed event transaction leaves for the post-commit side effects.
type outcome struct {
	orderID string
	fresh   bool
	refresh bool
}

func (s *reconcileServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if err := s.gatewayClient.VerifyWebhookSignature(headers, body); err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	event, err := webhook.Parse(body)
	if err != nil {
		// signed but unusable; a retry would carry the same body
		s.logger.WarnContext(ctx, "drop malformed gateway event", "error", err)
		return nil
	}

	log := s.logger.With("event_id", event.Meta().ID, "event_type", event.Meta().Type)

	switch ev := event.(type) {
	case webhook.PaymentSucceeded:
		return s.handleSucceeded(ctx, log, ev)
	case webhook.PaymentFailed:
		return s.handleFailed(ctx, log, ev)
	case webhook.PaymentRefunded:
		return s.handleRefunded(ctx, log, ev)
	case webhook.Ignored:
		log.DebugContext(ctx, "ignore gateway event", "reason", ev.Reason)
	}

	return nil
}

func (s *reconcileServiceImpl) handleSucceeded(ctx context.Context, log *slog.Logger, ev webhook.PaymentSucceeded) error {
	method := s.resolveMethod(ctx, log, ev)

	var out outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, err := s.markEventProcessed(ctx, tx, ev.Envelope)
		if err != nil || !first {
			return err
		}

		match, err := successPlan(s.paymentRepo).Resolve(ctx, tx, ev.Ref)
		if err != nil {
			return fmt.Errorf("match payment: %w", err)
		}
		if match == nil {
			log.WarnContext(ctx, "no payment matches success event",
				"payment_id", ev.Ref.PaymentID, "session_id", ev.Ref.SessionID, "order_id", ev.Ref.OrderID)
			return nil
		}

		p := match.Payment
		if err := s.lockOrder(ctx, tx, p.OrderID); err != nil {
			return err
		}
		out.orderID, out.refresh = p.OrderID, true
		if match.Pending {
			if out.fresh, err = s.paymentService.MarkPaid(ctx, tx, p, method, ev.Ref.IntentID); err != nil {
				return err
			}
		}
		log.InfoContext(ctx, "payment success applied",
			"payment_id", p.ID, "order_id", p.OrderID, "strategy", match.Strategy, "fresh", out.fresh)

		if !out.fresh {
			return nil
		}

		if err := s.linkCustomer(ctx, tx, log, p.OrderID); err != nil {
			return err
		}
		if _, err := s.orderRepo.TransitionStatus(ctx, tx, p.OrderID,
			[]model.OrderStatus{model.OrderCreated}, model.OrderInProgress); err != nil {
			return fmt.Errorf("start order: %w", err)
		}

		if _, err := s.paymentService.RecomputeOrderAggregates(ctx, tx, p.OrderID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile payment success: %w", err)
	}

	if out.refresh {
		s.confirmationService.Refresh(ctx, out.orderID, out.fresh)
	}
	return nil
}

func (s *reconcileServiceImpl) handleFailed(ctx context.Context, log *slog.Logger, ev webhook.PaymentFailed) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, err := s.markEventProcessed(ctx, tx, ev.Envelope)
		if err != nil || !first {
			return err
		}

		match, err := failurePlan(s.paymentRepo).Resolve(ctx, tx, ev.Ref)
		if err != nil {
			return fmt.Errorf("match payment: %w", err)
		}
		if match == nil {
			log.WarnContext(ctx, "no payment matches failure event",
				"payment_id", ev.Ref.PaymentID, "session_id", ev.Ref.SessionID, "order_id", ev.Ref.OrderID)
			return nil
		}
		if !match.Pending {
			log.InfoContext(ctx, "failure event for settled payment", "payment_id", match.Payment.ID, "status", match.Payment.Status)
			return nil
		}

		moved, err := s.paymentService.MarkFailed(ctx, tx, match.Payment, ev.Reason)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "payment failure applied",
			"payment_id", match.Payment.ID, "order_id", match.Payment.OrderID, "strategy", match.Strategy, "fresh", moved)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile payment failure: %w", err)
	}
	return nil
}

func (s *reconcileServiceImpl) handleRefunded(ctx context.Context, log *slog.Logger, ev webhook.PaymentRefunded) error {
	var out outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, err := s.markEventProcessed(ctx, tx, ev.Envelope)
		if err != nil || !first {
			return err
		}

		match, err := successPlan(s.paymentRepo).Resolve(ctx, tx, ev.Ref)
		if err != nil {
			return fmt.Errorf("match payment: %w", err)
		}
		if match == nil {
			log.WarnContext(ctx, "no payment matches refund event", "intent_id", ev.Ref.IntentID, "order_id", ev.Ref.OrderID)
			return nil
		}

		charge := match.Payment
		if err := s.lockOrder(ctx, tx, charge.OrderID); err != nil {
			return err
		}
		paidAt := ev.Created
		if ev.Created.Unix() <= 0 {
			paidAt = time.Now().UTC()
		}
		created := 0
		for _, r := range ev.Refunds {
			refundID := r.ID
			ok, err := s.paymentRepo.CreateRefund(ctx, tx, &model.Payment{
				ID:               uuid.NewString(),
				OrderID:          charge.OrderID,
				Kind:             model.KindRefund,
				Purpose:          charge.Purpose,
				Method:           charge.Method,
				Status:           model.PaymentPaid,
				Amount:           r.Amount,
				Currency:         charge.Currency,
				PaymentIntentID:  charge.PaymentIntentID,
				ExternalRefundID: &refundID,
				PaidAt:           &paidAt,
			})
			if err != nil {
				return fmt.Errorf("record refund: %w", err)
			}
			if ok {
				created++
			}
		}
		log.InfoContext(ctx, "refunds applied", "order_id", charge.OrderID, "charge_id", charge.ID, "new_refunds", created)
		if created == 0 {
			return nil
		}

		out.orderID, out.refresh = charge.OrderID, true
		if _, err := s.paymentService.RecomputeOrderAggregates(ctx, tx, charge.OrderID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile refund: %w", err)
	}

	if out.refresh {
		s.confirmationService.Refresh(ctx, out.orderID, false)
	}
	return nil
}

func (s *reconcileServiceImpl) markEventProcessed(ctx context.Context, tx *gorm.DB, env webhook.Envelope) (bool, error) {
	first, err := s.webhookEventRepo.MarkProcessed(ctx, tx, env.ID, env.Type)
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}
	if !first {
		s.logger.InfoContext(ctx, "skip redelivered gateway event", "event_id", env.ID)
	}
	return first, nil
}

// lockOrder takes the order row lock before any payment row is written, the same order the
// order mutations use.
func (s *reconcileServiceImpl) lockOrder(ctx context.Context, tx *gorm.DB, orderID string) error {
	if _, err := s.orderRepo.LockForUpdate(ctx, tx, orderID); err != nil {
		return fmt.Errorf("lock order: %w", err)
	}
	return nil
}

// resolveMethod runs before the transaction so the gateway round trip never holds row locks.
func (s *reconcileServiceImpl) resolveMethod(ctx context.Context, log *slog.Logger, ev webhook.PaymentSucceeded) string {
	if ev.Method != "" {
		return ev.Method
	}
	if ev.Ref.IntentID == "" {
		return model.MethodUnknown
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	method, err := s.gatewayClient.PaymentMethodType(ctx, ev.Ref.IntentID)
	if err != nil {
		log.WarnContext(ctx, "resolve payment method", "intent_id", ev.Ref.IntentID, "error", err)
		return model.MethodUnknown
	}
	if method == "" {
		return model.MethodUnknown
	}
	return method
}

// linkCustomer attaches a customer to the order from its delivery details, reusing one found by
// email then phone and refreshing its name, phone and address.
func (s *reconcileServiceImpl) linkCustomer(ctx context.Context, tx *gorm.DB, log *slog.Logger, orderID string) error {
	delivery, err := s.deliveryRepo.FindByOrderID(ctx, tx, orderID)
	if err != nil {
		return fmt.Errorf("get delivery: %w", err)
	}
	if delivery == nil || (delivery.Email == "" && delivery.Phone == "") {
		log.WarnContext(ctx, "order paid without delivery contact", "order_id", orderID)
		return nil
	}

	order, err := s.orderRepo.FindByID(ctx, tx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}

	var customer *model.Customer
	if order.CustomerID != nil {
		customer, err = s.customerRepo.FindByID(ctx, tx, *order.CustomerID)
	} else {
		customer, err = s.customerRepo.FindByContact(ctx, tx, delivery.Email, delivery.Phone)
	}
	if err != nil {
		return fmt.Errorf("find customer: %w", err)
	}

	if customer == nil {
		customer = &model.Customer{
			ID:           uuid.NewString(),
			Email:        delivery.Email,
			Phone:        delivery.Phone,
			FirstName:    delivery.FirstName,
			LastName:     delivery.LastName,
			AddressLine1: delivery.AddressLine1,
			AddressLine2: delivery.AddressLine2,
			Suburb:       delivery.Suburb,
			State:        delivery.State,
			Postcode:     delivery.Postcode,
		}
		if err := s.customerRepo.Create(ctx, tx, customer); err != nil {
			return fmt.Errorf("create customer: %w", err)
		}
	} else if err := s.customerRepo.RefreshDetails(ctx, tx, customer.ID, delivery); err != nil {
		return fmt.Errorf("refresh customer: %w", err)
	}

	if order.CustomerID == nil || *order.CustomerID != customer.ID {
		if err := s.orderRepo.LinkCustomer(ctx, tx, orderID, customer.ID); err != nil {
			return fmt.Errorf("link customer: %w", err)
		}
	}
	return nil
}

// IsSignatureError reports whether HandleWebhook rejected the delivery as unauthenticated.
func IsSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrMissingSignature) ||
		errors.Is(err, webhook.ErrInvalidSignature) ||
		errors.Is(err, webhook.ErrStaleSignature)
}
