package handler

import (
	"errors"
	"net/http"

	"meal-order-backend/internal/payment"
	"meal-order-backend/internal/pricing"
	"meal-order-backend/internal/service"

	"github.com/labstack/echo/v4"
)

var statusByError = []struct {
	err    error
	status int
}{
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrPackageNotFound, http.StatusNotFound},
	{service.ErrPromotionNotFound, http.StatusNotFound},
	{service.ErrNoConfirmation, http.StatusNotFound},
	{service.ErrNoPromotion, http.StatusConflict},
	{service.ErrOrderClosed, http.StatusConflict},
	{service.ErrInvalidStatus, http.StatusConflict},
	{payment.ErrAlreadyPaid, http.StatusConflict},
	{payment.ErrNoOutstandingBalance, http.StatusUnprocessableEntity},
	{payment.ErrInvalidPlan, http.StatusUnprocessableEntity},
	{payment.ErrInvalidAmount, http.StatusUnprocessableEntity},
	{payment.ErrPartialBelowFloor, http.StatusUnprocessableEntity},
	{pricing.ErrPromotionInactive, http.StatusUnprocessableEntity},
	{pricing.ErrPromotionNotStarted, http.StatusUnprocessableEntity},
	{pricing.ErrPromotionEnded, http.StatusUnprocessableEntity},
	{pricing.ErrPromotionBundleConflict, http.StatusUnprocessableEntity},
	{pricing.ErrInvalidDiscountType, http.StatusUnprocessableEntity},
	{service.ErrNoRecipient, http.StatusUnprocessableEntity},
}

// toHTTPError maps domain errors to client errors. Anything else stays a 500.
func toHTTPError(err error) error {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return echo.NewHTTPError(m.status, err.Error())
		}
	}
	return err
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
