// Package pricing computes order totals, promotion discounts and tax-inclusive GST in minor units.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"meal-order-backend/internal/model"
	"meal-order-backend/internal/money"

	"github.com/shopspring/decimal"
)

var (
	ErrPromotionInactive       = errors.New("promotion is not active")
	ErrPromotionNotStarted     = errors.New("promotion has not started yet")
	ErrPromotionEnded          = errors.New("promotion has ended")
	ErrPromotionBundleConflict = errors.New("promotion cannot be combined with a partner bundle")
	ErrInvalidDiscountType     = errors.New("invalid discount type")
)

type Line struct {
	UnitPrice money.Amount
	Quantity  int32
}

func (l Line) Total() money.Amount {
	return l.UnitPrice * money.Amount(l.Quantity)
}

type Totals struct {
	Subtotal money.Amount
	Discount money.Amount
	Total    money.Amount
}

// Subtotal is the package price plus every line total.
func Subtotal(base money.Amount, items []Line) money.Amount {
	sum := base
	for _, it := range items {
		sum += it.Total()
	}
	return sum
}

// ComputeTotals clamps the discount to [0, subtotal], so Total == Subtotal - Discount always holds.
func ComputeTotals(base money.Amount, items []Line, discount money.Amount) Totals {
	subtotal := money.Max0(Subtotal(base, items))
	d := money.Clamp(discount, 0, subtotal)
	return Totals{
		Subtotal: subtotal,
		Discount: d,
		Total:    money.Max0(subtotal - d),
	}
}

// CheckWindow rejects promotions that are inactive or outside [StartsAt, EndsAt] at now.
func CheckWindow(promo *model.Promotion, now time.Time) error {
	if !promo.Active {
		return ErrPromotionInactive
	}
	if promo.StartsAt != nil && now.Before(*promo.StartsAt) {
		return ErrPromotionNotStarted
	}
	if promo.EndsAt != nil && now.After(*promo.EndsAt) {
		return ErrPromotionEnded
	}
	return nil
}

// DiscountFor computes the clamped discount a promotion yields on subtotal.
func DiscountFor(kind model.DiscountType, value decimal.Decimal, subtotal money.Amount) (money.Amount, error) {
	var raw money.Amount
	switch kind {
	case model.DiscountPercent:
		raw = money.Percent(subtotal, value)
	case model.DiscountFixed:
		raw = money.FromMajor(value)
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDiscountType, kind)
	}
	return money.Clamp(raw, 0, money.Max0(subtotal)), nil
}

// ApplyPromotion validates the promotion against the order state and returns its discount.
func ApplyPromotion(promo *model.Promotion, subtotal money.Amount, hasPartnerBundle bool, now time.Time) (money.Amount, error) {
	if err := CheckWindow(promo, now); err != nil {
		return 0, err
	}
	if hasPartnerBundle {
		return 0, ErrPromotionBundleConflict
	}
	return DiscountFor(promo.DiscountType, promo.Value, subtotal)
}

// GST extracts the tax already included in a total: round(total * rate / (100 + rate)).
func GST(total money.Amount, rate int64) money.Amount {
	if rate <= 0 || total <= 0 {
		return 0
	}
	return money.MulRatio(total, decimal.NewFromInt(rate), decimal.NewFromInt(100+rate))
}
