package service

import (
	"context"
	"testing"

	"meal-order-backend/internal/dto"
	"meal-order-backend/internal/logger"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/repository"
	"meal-order-backend/internal/testutil"
	"meal-order-backend/internal/webhook"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	gateway *testutil.Gateway
	email   *testutil.Email
	erp     *testutil.Erp

	orderRepo        repository.OrderRepository
	paymentRepo      repository.PaymentRepository
	promotionRepo    repository.PromotionRepository
	customerRepo     repository.CustomerRepository
	confirmationRepo repository.ConfirmationRepository

	payments      PaymentService
	orders        OrderService
	reconciler    ReconcileService
	confirmations ConfirmationService
	exports       ExportService
}

// newTestEnv builds the service graph on a fresh database. wrap decorates the confirmation repository.
func newTestEnv(t *testing.T, wrap ...func(repository.ConfirmationRepository) repository.ConfirmationRepository) *testEnv {
	t.Helper()

	db := testutil.OpenDB(t)
	testutil.SeedPackages(t, db)
	cfg := testutil.Config()
	log := logger.Discard()

	env := &testEnv{
		db:               db,
		gateway:          testutil.NewGateway(),
		email:            &testutil.Email{},
		erp:              testutil.NewErp(),
		orderRepo:        repository.NewOrderRepository(db),
		paymentRepo:      repository.NewPaymentRepository(db),
		promotionRepo:    repository.NewPromotionRepository(db),
		customerRepo:     repository.NewCustomerRepository(db),
		confirmationRepo: repository.NewConfirmationRepository(db),
	}
	for _, w := range wrap {
		env.confirmationRepo = w(env.confirmationRepo)
	}
	optionRepo := repository.NewPackageOptionRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	env.payments = NewPaymentService(env.paymentRepo, env.orderRepo, optionRepo, cfg.Pricing)
	env.confirmations = NewConfirmationService(db,
		env.orderRepo, optionRepo, env.paymentRepo, env.promotionRepo, deliveryRepo, env.customerRepo, env.confirmationRepo,
		env.email, cfg.Pricing, cfg.Email, log)
	env.orders = NewOrderService(db, env.gateway, env.payments, env.confirmations,
		env.orderRepo, optionRepo, env.promotionRepo, deliveryRepo, env.paymentRepo, cfg, log)
	env.reconciler = NewReconcileService(db, env.gateway, env.payments, env.confirmations,
		env.paymentRepo, env.orderRepo, deliveryRepo, env.customerRepo, repository.NewWebhookEventRepository(db), log)
	env.exports = NewExportService(env.erp, env.confirmationRepo, log)

	return env
}

func (e *testEnv) createOrder(t *testing.T, packageCode string, plan model.PaymentPlan) *model.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(context.Background(), &dto.CreateOrderRequest{
		PackageCode: packageCode,
		PaymentPlan: string(plan),
		ServiceDate: "2026-03-09",
		Session:     "LUNCH",
	})
	require.NoError(t, err)
	return order
}

func (e *testEnv) addDelivery(t *testing.T, orderID, email, phone string) {
	t.Helper()
	require.NoError(t, e.orders.UpsertDelivery(context.Background(), orderID, &dto.DeliveryRequest{
		FirstName:    "Sam",
		LastName:     "Lee",
		Email:        email,
		Phone:        phone,
		AddressLine1: "1 Test St",
		Suburb:       "Carlton",
		State:        "VIC",
		Postcode:     "3053",
	}))
}

// openCharge requests the next payment session and returns the stored PENDING payment.
func (e *testEnv) openCharge(t *testing.T, orderID string) *model.Payment {
	t.Helper()
	res, err := e.orders.RequestPayment(context.Background(), orderID, &dto.PaymentRequest{})
	require.NoError(t, err)
	return e.payment(t, res.PaymentID)
}

func (e *testEnv) payment(t *testing.T, id string) *model.Payment {
	t.Helper()
	p, err := e.paymentRepo.FindByID(context.Background(), nil, id)
	require.NoError(t, err)
	return p
}

func (e *testEnv) order(t *testing.T, id string) *model.Order {
	t.Helper()
	o, err := e.orderRepo.FindByID(context.Background(), nil, id)
	require.NoError(t, err)
	return o
}

func (e *testEnv) deliver(t *testing.T, event map[string]any) error {
	t.Helper()
	headers, body := testutil.SignedDelivery(event)
	return e.reconciler.HandleWebhook(context.Background(), headers, body)
}

func (e *testEnv) pay(t *testing.T, eventID string, p *model.Payment) {
	t.Helper()
	require.NoError(t, e.deliver(t, testutil.CheckoutEvent(eventID, webhook.TypeCheckoutCompleted, p, "paid", "card")))
}

func (e *testEnv) countRows(t *testing.T, m interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(m)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
