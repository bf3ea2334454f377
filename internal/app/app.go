// Package app wires clients, repositories and services from a Config.
package app

import (
	"fmt"
	"log/slog"

	"meal-order-backend/internal/client"
	"meal-order-backend/internal/config"
	"meal-order-backend/internal/repository"
	"meal-order-backend/internal/service"

	"gorm.io/gorm"
)

type App struct {
	DB *gorm.DB

	OrderService        service.OrderService
	PaymentService      service.PaymentService
	ReconcileService    service.ReconcileService
	ConfirmationService service.ConfirmationService
	ExportService       service.ExportService
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := client.InitDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	return Wire(
		db,
		cfg,
		client.NewGatewayClient(&cfg.Gateway),
		client.NewEmailClient(&cfg.Email, logger),
		client.NewErpClient(&cfg.Export),
		logger,
	), nil
}

// Wire builds the service graph on an open database and the given outbound clients.
func Wire(
	db *gorm.DB,
	cfg *config.Config,
	gatewayClient client.GatewayClient,
	emailClient client.EmailClient,
	erpClient client.ErpClient,
	logger *slog.Logger,
) *App {
	orderRepo := repository.NewOrderRepository(db)
	optionRepo := repository.NewPackageOptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	promotionRepo := repository.NewPromotionRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	confirmationRepo := repository.NewConfirmationRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	paymentService := service.NewPaymentService(paymentRepo, orderRepo, optionRepo, cfg.Pricing)

	confirmationService := service.NewConfirmationService(
		db,
		orderRepo, optionRepo, paymentRepo, promotionRepo, deliveryRepo, customerRepo, confirmationRepo,
		emailClient,
		cfg.Pricing, cfg.Email,
		logger,
	)

	return &App{
		DB:             db,
		PaymentService: paymentService,
		OrderService: service.NewOrderService(
			db, gatewayClient, paymentService, confirmationService,
			orderRepo, optionRepo, promotionRepo, deliveryRepo, paymentRepo,
			cfg, logger,
		),
		ReconcileService: service.NewReconcileService(
			db, gatewayClient, paymentService, confirmationService,
			paymentRepo, orderRepo, deliveryRepo, customerRepo, webhookEventRepo,
			logger,
		),
		ConfirmationService: confirmationService,
		ExportService:       service.NewExportService(erpClient, confirmationRepo, logger),
	}
}

func (a *App) Close() error {
	a.ConfirmationService.Wait()
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
