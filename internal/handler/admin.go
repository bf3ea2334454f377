package handler

import (
	"encoding/json"
	"net/http"

	"meal-order-backend/internal/dto"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/service"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	orderService        service.OrderService
	confirmationService service.ConfirmationService
	exportService       service.ExportService
}

func NewAdminHandler(
	orderService service.OrderService,
	confirmationService service.ConfirmationService,
	exportService service.ExportService,
) *AdminHandler {
	return &AdminHandler{
		orderService:        orderService,
		confirmationService: confirmationService,
		exportService:       exportService,
	}
}

func toConfirmationResponse(c *model.OrderConfirmation) *dto.ConfirmationResponse {
	return &dto.ConfirmationResponse{
		OrderID:        c.OrderID,
		Version:        c.Version,
		Checksum:       c.Checksum,
		ExportStatus:   string(c.ExportStatus),
		ExportAttempts: c.ExportAttempts,
		ExternalID:     c.ExternalID,
		ExportedAt:     c.ExportedAt,
		EmailSentAt:    c.EmailSentAt,
		EmailAttempts:  c.EmailAttempts,
		LastError:      c.LastError,
		Payload:        json.RawMessage(c.Payload),
	}
}

func (h *AdminHandler) GetConfirmation(c echo.Context) error {
	confirmation, err := h.confirmationService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, toConfirmationResponse(confirmation))
}

func (h *AdminHandler) RebuildConfirmation(c echo.Context) error {
	confirmation, _, err := h.confirmationService.Rebuild(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, toConfirmationResponse(confirmation))
}

func (h *AdminHandler) ResendEmail(c echo.Context) error {
	if err := h.confirmationService.SendEmail(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (h *AdminHandler) Export(c echo.Context) error {
	if err := h.exportService.Enqueue(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.StatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.orderService.UpdateStatus(ctx, c.Param("id"), model.OrderStatus(req.Status)); err != nil {
		return toHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
