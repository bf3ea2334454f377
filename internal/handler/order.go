package handler

import (
	"net/http"

	"meal-order-backend/internal/dto"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/money"
	"meal-order-backend/internal/payment"
	"meal-order-backend/internal/service"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func toOrderResponse(o *model.Order) *dto.OrderResponse {
	total, paid := money.Amount(o.Total), money.Amount(o.AmountPaid)
	return &dto.OrderResponse{
		ID:          o.ID,
		Status:      string(o.Status),
		PaymentPlan: string(o.PaymentPlan),
		Currency:    o.Currency,
		Subtotal:    money.Amount(o.Subtotal),
		Discount:    money.Amount(o.Discount),
		Total:       total,
		AmountPaid:  paid,
		Remaining:   payment.Remaining(total, paid),
		FullyPaid:   o.FullyPaid,
		CreatedAt:   o.CreatedAt,
	}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.orderService.CreateOrder(ctx, &req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, err := h.orderService.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) UpsertDelivery(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.DeliveryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.orderService.UpsertDelivery(ctx, c.Param("id"), &req); err != nil {
		return toHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *OrderHandler) AddItem(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.AddItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.orderService.AddItem(ctx, c.Param("id"), &req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) ReplaceRequests(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RequestsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.orderService.ReplaceRequests(ctx, c.Param("id"), &req); err != nil {
		return toHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *OrderHandler) UpdateNote(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.NoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.orderService.UpdateNote(ctx, c.Param("id"), req.Note); err != nil {
		return toHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *OrderHandler) ApplyPromotion(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PromotionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.orderService.ApplyPromotion(ctx, c.Param("id"), req.Code)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) RemovePromotion(c echo.Context) error {
	order, err := h.orderService.RemovePromotion(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) RequestPayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.orderService.RequestPayment(ctx, c.Param("id"), &req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, result)
}
