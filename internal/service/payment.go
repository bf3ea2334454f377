package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meal-order-backend/internal/config"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/money"
	"meal-order-backend/internal/payment"
	"meal-order-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentService owns Payment transitions and the paid aggregates on Order.
// Every method runs on the supplied transaction.
type PaymentService interface {
	Policy() payment.Policy
	CreatePendingCharge(ctx context.Context, tx *gorm.DB, order *model.Order, purpose model.PaymentPurpose, amount money.Amount) (*model.Payment, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, p *model.Payment, method, intentID string) (bool, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, p *model.Payment, reason string) (bool, error)
	RecomputeOrderAggregates(ctx context.Context, tx *gorm.DB, orderID string) (payment.Aggregate, error)
}

type paymentServiceImpl struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	optionRepo  repository.PackageOptionRepository
	policy      payment.Policy
	now         func() time.Time
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	optionRepo repository.PackageOptionRepository,
	pricingCfg config.Pricing,
) PaymentService {
	return &paymentServiceImpl{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		optionRepo:  optionRepo,
		policy: payment.Policy{
			DefaultDeposit:    money.Amount(pricingCfg.DefaultDeposit),
			PartialPriceFloor: money.Amount(pricingCfg.PartialPriceFloor),
		},
		now: time.Now,
	}
}

func (s *paymentServiceImpl) Policy() payment.Policy {
	return s.policy
}

func (s *paymentServiceImpl) CreatePendingCharge(ctx context.Context, tx *gorm.DB, order *model.Order, purpose model.PaymentPurpose, amount money.Amount) (*model.Payment, error) {
	option, err := s.optionRepo.FindByID(ctx, tx, order.PackageOptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("get package option: %w", err)
	}

	payments, err := s.paymentRepo.ListByOrder(ctx, tx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order payments: %w", err)
	}
	paid := payment.Summarize(payments, money.Amount(order.Total)).AmountPaid

	if err := payment.CheckCharge(order, purpose, amount, money.Amount(option.Price), paid, s.policy); err != nil {
		return nil, err
	}

	p := &model.Payment{
		ID:       uuid.NewString(),
		OrderID:  order.ID,
		Kind:     model.KindCharge,
		Purpose:  purpose,
		Status:   model.PaymentPending,
		Amount:   amount.Int64(),
		Currency: order.Currency,
	}
	if err := s.paymentRepo.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("create pending payment: %w", err)
	}

	return p, nil
}

// MarkPaid reports true only for the call that actually moved the payment out of PENDING.
func (s *paymentServiceImpl) MarkPaid(ctx context.Context, tx *gorm.DB, p *model.Payment, method, intentID string) (bool, error) {
	if p.Status == model.PaymentPaid {
		return false, nil
	}
	if method == "" {
		method = model.MethodUnknown
	}

	paidAt := s.now()
	moved, err := s.paymentRepo.MarkPaid(ctx, tx, p.ID, method, intentID, paidAt)
	if err != nil {
		return false, fmt.Errorf("mark payment paid: %w", err)
	}
	if moved {
		p.Status = model.PaymentPaid
		p.Method = method
		p.PaidAt = &paidAt
		if intentID != "" {
			p.PaymentIntentID = intentID
		}
	}

	return moved, nil
}

func (s *paymentServiceImpl) MarkFailed(ctx context.Context, tx *gorm.DB, p *model.Payment, reason string) (bool, error) {
	if p.Status == model.PaymentFailed {
		return false, nil
	}

	moved, err := s.paymentRepo.MarkFailed(ctx, tx, p.ID, reason)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	if moved {
		p.Status = model.PaymentFailed
		p.FailureReason = reason
		p.PaidAt = nil
	}

	return moved, nil
}

func (s *paymentServiceImpl) RecomputeOrderAggregates(ctx context.Context, tx *gorm.DB, orderID string) (payment.Aggregate, error) {
	// the order row lock serializes recomputes; both reads must see the latest committed rows
	order, err := s.orderRepo.LockForUpdate(ctx, tx, orderID)
	if err != nil {
		return payment.Aggregate{}, fmt.Errorf("lock order: %w", err)
	}

	payments, err := s.paymentRepo.ListByOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return payment.Aggregate{}, fmt.Errorf("list order payments: %w", err)
	}

	agg := payment.Summarize(payments, money.Amount(order.Total))
	if err := s.orderRepo.UpdateAggregates(ctx, tx, orderID, agg.AmountPaid.Int64(), agg.FullyPaid); err != nil {
		return payment.Aggregate{}, fmt.Errorf("update order aggregates: %w", err)
	}

	return agg, nil
}
