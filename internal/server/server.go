package server

import (
	"context"
	"log/slog"
	"net/http"

	"meal-order-backend/internal/handler"
	appmiddleware "meal-order-backend/internal/middleware"
	"meal-order-backend/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo           *echo.Echo
	adminToken     string
	orderHandler   *handler.OrderHandler
	webhookHandler *handler.WebhookHandler
	adminHandler   *handler.AdminHandler
}

func NewServer(
	orderService service.OrderService,
	reconcileService service.ReconcileService,
	confirmationService service.ConfirmationService,
	exportService service.ExportService,
	adminToken string,
	logger *slog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = newRequestValidator()

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		adminToken:     adminToken,
		orderHandler:   handler.NewOrderHandler(orderService),
		webhookHandler: handler.NewWebhookHandler(reconcileService),
		adminHandler:   handler.NewAdminHandler(orderService, confirmationService, exportService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- orders --------
	orders := api.Group("/orders")
	orders.POST("", s.orderHandler.CreateOrder)
	orders.GET("/:id", s.orderHandler.GetOrder)
	orders.PUT("/:id/delivery", s.orderHandler.UpsertDelivery)
	orders.POST("/:id/items", s.orderHandler.AddItem)
	orders.PUT("/:id/requests", s.orderHandler.ReplaceRequests)
	orders.PUT("/:id/note", s.orderHandler.UpdateNote)
	orders.POST("/:id/promotion", s.orderHandler.ApplyPromotion)
	orders.DELETE("/:id/promotion", s.orderHandler.RemovePromotion)
	orders.POST("/:id/payments", s.orderHandler.RequestPayment)

	// -------- gateway webhooks --------
	api.POST("/webhooks/gateway", s.webhookHandler.GatewayWebhook)

	// -------- admin --------
	admin := api.Group("/admin", appmiddleware.AdminToken(s.adminToken))
	admin.GET("/orders/:id/confirmation", s.adminHandler.GetConfirmation)
	admin.POST("/orders/:id/confirmation/rebuild", s.adminHandler.RebuildConfirmation)
	admin.POST("/orders/:id/confirmation/email", s.adminHandler.ResendEmail)
	admin.POST("/orders/:id/export", s.adminHandler.Export)
	admin.PUT("/orders/:id/status", s.adminHandler.UpdateStatus)
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
