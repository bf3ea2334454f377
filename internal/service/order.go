package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meal-order-backend/internal/client"
	"meal-order-backend/internal/config"
	"meal-order-backend/internal/dto"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/money"
	"meal-order-backend/internal/payment"
	"meal-order-backend/internal/pricing"
	"meal-order-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderService holds the mutations that shape an order before and between payments.
type OrderService interface {
	CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	UpsertDelivery(ctx context.Context, orderID string, req *dto.DeliveryRequest) error
	AddItem(ctx context.Context, orderID string, req *dto.AddItemRequest) (*model.Order, error)
	ReplaceRequests(ctx context.Context, orderID string, req *dto.RequestsRequest) error
	UpdateNote(ctx context.Context, orderID, note string) error
	ApplyPromotion(ctx context.Context, orderID, code string) (*model.Order, error)
	RemovePromotion(ctx context.Context, orderID string) (*model.Order, error)
	RequestPayment(ctx context.Context, orderID string, req *dto.PaymentRequest) (*dto.PaymentSessionResponse, error)
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error
}

type orderServiceImpl struct {
	db             *gorm.DB
	gatewayClient  client.GatewayClient
	paymentService      PaymentService
	confirmationService ConfirmationService
	orderRepo           repository.OrderRepository
	optionRepo          repository.PackageOptionRepository
	promotionRepo       repository.PromotionRepository
	deliveryRepo        repository.DeliveryRepository
	paymentRepo         repository.PaymentRepository
	currency            string
	successURL          string
	cancelURL           string
	logger              *slog.Logger
	now                 func() time.Time
}

func NewOrderService(
	db *gorm.DB,
	gatewayClient client.GatewayClient,
	paymentService PaymentService,
	confirmationService ConfirmationService,
	orderRepo repository.OrderRepository,
	optionRepo repository.PackageOptionRepository,
	promotionRepo repository.PromotionRepository,
	deliveryRepo repository.DeliveryRepository,
	paymentRepo repository.PaymentRepository,
	cfg *config.Config,
	logger *slog.Logger,
) OrderService {
	successURL := cfg.Gateway.SuccessURL
	if successURL == "" {
		successURL = cfg.BaseURL + "/checkout/success"
	}
	cancelURL := cfg.Gateway.CancelURL
	if cancelURL == "" {
		cancelURL = cfg.BaseURL + "/checkout/cancel"
	}

	return &orderServiceImpl{
		db:                  db,
		gatewayClient:       gatewayClient,
		paymentService:      paymentService,
		confirmationService: confirmationService,
		orderRepo:           orderRepo,
		optionRepo:          optionRepo,
		promotionRepo:       promotionRepo,
		deliveryRepo:        deliveryRepo,
		paymentRepo:         paymentRepo,
		currency:            cfg.Pricing.Currency,
		successURL:          successURL,
		cancelURL:           cancelURL,
		logger:              logger,
		now:                 time.Now,
	}
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (*model.Order, error) {
	plan := model.PaymentPlan(req.PaymentPlan)
	if !plan.Valid() {
		return nil, fmt.Errorf("%w: %q", payment.ErrInvalidPlan, req.PaymentPlan)
	}

	option, err := s.optionRepo.FindByCode(ctx, nil, req.PackageCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("get package option: %w", err)
	}
	if plan == model.PlanPartial && option.Price < s.paymentService.Policy().PartialPriceFloor.Int64() {
		return nil, payment.ErrPartialBelowFloor
	}

	order := &model.Order{
		ID:              uuid.NewString(),
		Status:          model.OrderCreated,
		PackageOptionID: option.ID,
		PaymentPlan:     plan,
		InputType:       model.InputOnline,
		Session:         req.Session,
		Portion:         req.Portion,
		Currency:        s.currency,
		Subtotal:        option.Price,
		Total:           option.Price,
	}
	if req.InputType != "" {
		order.InputType = model.InputType(req.InputType)
	}
	if order.Portion == "" {
		order.Portion = option.Portion
	}
	if req.ServiceDate != "" {
		d, err := time.Parse("2006-01-02", req.ServiceDate)
		if err != nil {
			return nil, fmt.Errorf("parse service date: %w", err)
		}
		order.ServiceDate = &d
	}

	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.InfoContext(ctx, "order created", "order_id", order.ID, "package", option.Code, "plan", plan)
	return order, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.findOrder(ctx, nil, orderID)
}

func (s *orderServiceImpl) UpsertDelivery(ctx context.Context, orderID string, req *dto.DeliveryRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.editableOrder(ctx, tx, orderID); err != nil {
			return err
		}

		err := s.deliveryRepo.Upsert(ctx, tx, &model.DeliverySnapshot{
			OrderID:      orderID,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Email:        req.Email,
			Phone:        req.Phone,
			AddressLine1: req.AddressLine1,
			AddressLine2: req.AddressLine2,
			Suburb:       req.Suburb,
			State:        req.State,
			Postcode:     req.Postcode,
			Instructions: req.Instructions,
			UpdatedAt:    s.now(),
		})
		if err != nil {
			return fmt.Errorf("upsert delivery: %w", err)
		}
		return nil
	})
}

func (s *orderServiceImpl) AddItem(ctx context.Context, orderID string, req *dto.AddItemRequest) (*model.Order, error) {
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = s.editableOrder(ctx, tx, orderID); err != nil {
			return err
		}

		kind := model.ItemKind(req.Kind)
		if kind == model.ItemPartnerBundle {
			app, err := s.promotionRepo.GetApplication(ctx, tx, orderID)
			if err != nil {
				return fmt.Errorf("get promotion application: %w", err)
			}
			if app != nil {
				return pricing.ErrPromotionBundleConflict
			}
		}

		err = s.orderRepo.CreateItem(ctx, tx, &model.OrderItem{
			OrderID:   orderID,
			Kind:      kind,
			Code:      req.Code,
			Name:      req.Name,
			UnitPrice: req.UnitPrice.Int64(),
			Quantity:  req.Quantity,
		})
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}

		return s.reprice(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.refreshConfirmation(ctx, orderID)
	return order, nil
}

func (s *orderServiceImpl) ReplaceRequests(ctx context.Context, orderID string, req *dto.RequestsRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.editableOrder(ctx, tx, orderID); err != nil {
			return err
		}

		requests := make([]model.OrderRequest, 0, len(req.Requests))
		for _, r := range req.Requests {
			requests = append(requests, model.OrderRequest{Category: r.Category, Code: r.Code, Label: r.Label})
		}
		if err := s.orderRepo.ReplaceRequests(ctx, tx, orderID, requests); err != nil {
			return fmt.Errorf("replace order requests: %w", err)
		}
		return nil
	})
}

func (s *orderServiceImpl) UpdateNote(ctx context.Context, orderID, note string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.editableOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateNote(ctx, tx, orderID, note); err != nil {
			return fmt.Errorf("update note: %w", err)
		}
		return nil
	})
}

func (s *orderServiceImpl) ApplyPromotion(ctx context.Context, orderID, code string) (*model.Order, error) {
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = s.editableOrder(ctx, tx, orderID); err != nil {
			return err
		}

		promo, err := s.promotionRepo.FindByCode(ctx, tx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPromotionNotFound
			}
			return fmt.Errorf("get promotion: %w", err)
		}

		hasBundle, err := s.orderRepo.HasPartnerBundle(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("check partner bundle: %w", err)
		}

		subtotal, err := s.subtotal(ctx, tx, order)
		if err != nil {
			return err
		}

		amount, err := pricing.ApplyPromotion(promo, subtotal, hasBundle, s.now())
		if err != nil {
			return err
		}

		err = s.promotionRepo.UpsertApplication(ctx, tx, &model.PromotionApplication{
			OrderID:      orderID,
			Code:         promo.Code,
			DiscountType: promo.DiscountType,
			Value:        promo.Value,
			Amount:       amount.Int64(),
			AppliedAt:    s.now(),
		})
		if err != nil {
			return fmt.Errorf("save promotion application: %w", err)
		}

		return s.reprice(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.refreshConfirmation(ctx, orderID)
	return order, nil
}

func (s *orderServiceImpl) RemovePromotion(ctx context.Context, orderID string) (*model.Order, error) {
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = s.editableOrder(ctx, tx, orderID); err != nil {
			return err
		}

		removed, err := s.promotionRepo.DeleteApplication(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("delete promotion application: %w", err)
		}
		if !removed {
			return ErrNoPromotion
		}

		return s.reprice(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.refreshConfirmation(ctx, orderID)
	return order, nil
}

// RequestPayment creates the next PENDING charge and opens a hosted checkout session for it.
// The gateway call happens after the charge is committed; a failed call fails the charge.
func (s *orderServiceImpl) RequestPayment(ctx context.Context, orderID string, req *dto.PaymentRequest) (*dto.PaymentSessionResponse, error) {
	var (
		charge *model.Payment
		plan   payment.ChargePlan
		email  string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.editableOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		option, err := s.optionRepo.FindByID(ctx, tx, order.PackageOptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPackageNotFound
			}
			return fmt.Errorf("get package option: %w", err)
		}

		agg, err := s.paymentService.RecomputeOrderAggregates(ctx, tx, orderID)
		if err != nil {
			return err
		}

		plan, err = payment.PlanCharge(order, money.Amount(option.Price), agg.AmountPaid,
			payment.ChargeRequest{DepositOverride: req.Deposit}, s.paymentService.Policy())
		if err != nil {
			return err
		}

		if charge, err = s.paymentService.CreatePendingCharge(ctx, tx, order, plan.Purpose, plan.Amount); err != nil {
			return err
		}

		delivery, err := s.deliveryRepo.FindByOrderID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("get delivery: %w", err)
		}
		if delivery != nil {
			email = delivery.Email
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err := s.gatewayClient.CreateCheckoutSession(ctx, &client.CheckoutRequest{
		PaymentID:     charge.ID,
		OrderID:       orderID,
		Amount:        charge.Amount,
		Currency:      charge.Currency,
		Description:   fmt.Sprintf("Order %s (%s)", orderID, plan.Purpose),
		CustomerEmail: email,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
	})
	if err != nil {
		if _, failErr := s.paymentService.MarkFailed(ctx, nil, charge, "checkout session: "+err.Error()); failErr != nil {
			s.logger.ErrorContext(ctx, "fail orphaned charge", "payment_id", charge.ID, "error", failErr)
		}
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	if err := s.paymentRepo.AttachSession(ctx, nil, charge.ID, session.ID, session.PaymentIntent); err != nil {
		return nil, fmt.Errorf("attach checkout session: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout session opened",
		"order_id", orderID, "payment_id", charge.ID, "purpose", plan.Purpose, "amount", plan.Amount, "session_id", session.ID)

	return &dto.PaymentSessionResponse{
		PaymentID:   charge.ID,
		Purpose:     string(plan.Purpose),
		Amount:      plan.Amount,
		Balance:     plan.Balance,
		CheckoutURL: session.URL,
	}, nil
}

var statusTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderFulfilled: {model.OrderInProgress},
	model.OrderCancelled: {model.OrderCreated, model.OrderInProgress},
}

func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	from, ok := statusTransitions[status]
	if !ok {
		return fmt.Errorf("%w: to %q", ErrInvalidStatus, status)
	}

	if _, err := s.findOrder(ctx, nil, orderID); err != nil {
		return err
	}

	moved, err := s.orderRepo.TransitionStatus(ctx, nil, orderID, from, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if !moved {
		return fmt.Errorf("%w: to %q", ErrInvalidStatus, status)
	}

	s.logger.InfoContext(ctx, "order status changed", "order_id", orderID, "status", status)
	return nil
}

func (s *orderServiceImpl) findOrder(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// editableOrder locks the order row for the rest of tx and rejects closed orders.
func (s *orderServiceImpl) editableOrder(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.LockForUpdate(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if order.Status == model.OrderFulfilled || order.Status == model.OrderCancelled {
		return nil, ErrOrderClosed
	}
	return order, nil
}

func (s *orderServiceImpl) lines(ctx context.Context, tx *gorm.DB, order *model.Order) (money.Amount, []pricing.Line, error) {
	option, err := s.optionRepo.FindByID(ctx, tx, order.PackageOptionID)
	if err != nil {
		return 0, nil, fmt.Errorf("get package option: %w", err)
	}

	items, err := s.orderRepo.GetItems(ctx, tx, order.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("get order items: %w", err)
	}

	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		lines[i] = pricing.Line{UnitPrice: money.Amount(it.UnitPrice), Quantity: it.Quantity}
	}
	return money.Amount(option.Price), lines, nil
}

func (s *orderServiceImpl) subtotal(ctx context.Context, tx *gorm.DB, order *model.Order) (money.Amount, error) {
	base, lines, err := s.lines(ctx, tx, order)
	if err != nil {
		return 0, err
	}
	return pricing.Subtotal(base, lines), nil
}

// refreshConfirmation rebuilds the snapshot of an order that already has one, after its
// pricing changed. Orders without a confirmation get theirs on the first settled payment.
func (s *orderServiceImpl) refreshConfirmation(ctx context.Context, orderID string) {
	if _, err := s.confirmationService.Get(ctx, orderID); err != nil {
		if !errors.Is(err, ErrNoConfirmation) {
			s.logger.ErrorContext(ctx, "get confirmation", "order_id", orderID, "error", err)
		}
		return
	}
	s.confirmationService.Refresh(ctx, orderID, false)
}

// reprice recomputes subtotal, the applied discount and total, then the paid aggregates against the new total.
func (s *orderServiceImpl) reprice(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	base, lines, err := s.lines(ctx, tx, order)
	if err != nil {
		return err
	}

	app, err := s.promotionRepo.GetApplication(ctx, tx, order.ID)
	if err != nil {
		return fmt.Errorf("get promotion application: %w", err)
	}

	var discount money.Amount
	if app != nil {
		discount, err = pricing.DiscountFor(app.DiscountType, app.Value, pricing.Subtotal(base, lines))
		if err != nil {
			return err
		}
		if discount.Int64() != app.Amount {
			app.Amount = discount.Int64()
			if err := s.promotionRepo.UpsertApplication(ctx, tx, app); err != nil {
				return fmt.Errorf("update promotion application: %w", err)
			}
		}
	}

	totals := pricing.ComputeTotals(base, lines, discount)
	if err := s.orderRepo.UpdatePricing(ctx, tx, order.ID,
		totals.Subtotal.Int64(), totals.Discount.Int64(), totals.Total.Int64()); err != nil {
		return fmt.Errorf("update order pricing: %w", err)
	}

	agg, err := s.paymentService.RecomputeOrderAggregates(ctx, tx, order.ID)
	if err != nil {
		return err
	}

	order.Subtotal = totals.Subtotal.Int64()
	order.Discount = totals.Discount.Int64()
	order.Total = totals.Total.Int64()
	order.AmountPaid = agg.AmountPaid.Int64()
	order.FullyPaid = agg.FullyPaid
	return nil
}
