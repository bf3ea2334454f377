package handler

import (
	"io"
	"net/http"

	"meal-order-backend/internal/service"

	"github.com/labstack/echo/v4"
)

// maxWebhookBody bounds what a single gateway delivery may carry.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	reconcileService service.ReconcileService
}

func NewWebhookHandler(reconcileService service.ReconcileService) *WebhookHandler {
	return &WebhookHandler{
		reconcileService: reconcileService,
	}
}

func (h *WebhookHandler) GatewayWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.reconcileService.HandleWebhook(ctx, c.Request().Header, body)
	if err != nil {
		if service.IsSignatureError(err) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
		}
		return err
	}

	return c.NoContent(http.StatusOK)
}
