package pricing

import (
	"testing"
	"time"

	"meal-order-backend/internal/model"
	"meal-order-backend/internal/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	items := []Line{{UnitPrice: 2500, Quantity: 2}, {UnitPrice: 1800, Quantity: 1}}
	totals := ComputeTotals(90000, items, 0)

	assert.Equal(t, money.Amount(96800), totals.Subtotal)
	assert.Equal(t, money.Amount(0), totals.Discount)
	assert.Equal(t, money.Amount(96800), totals.Total)
}

func TestComputeTotalsNeverNegative(t *testing.T) {
	totals := ComputeTotals(1000, nil, 5000)
	assert.Equal(t, money.Amount(1000), totals.Discount)
	assert.Equal(t, money.Amount(0), totals.Total)

	totals = ComputeTotals(1000, nil, -50)
	assert.Equal(t, money.Amount(0), totals.Discount)
	assert.Equal(t, money.Amount(1000), totals.Total)
}

func TestPercentPromotion(t *testing.T) {
	promo := &model.Promotion{Code: "WELCOME15", DiscountType: model.DiscountPercent, Value: decimal.NewFromInt(15), Active: true}

	discount, err := ApplyPromotion(promo, 96800, false, time.Now())
	require.NoError(t, err)
	assert.Equal(t, money.Amount(14520), discount)

	totals := ComputeTotals(96800, nil, discount)
	assert.Equal(t, "822.80", totals.Total.String())
	assert.Equal(t, "145.20", totals.Discount.String())
}

func TestFixedPromotionClampedToSubtotal(t *testing.T) {
	promo := &model.Promotion{Code: "BIG", DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(500), Active: true}

	discount, err := ApplyPromotion(promo, 30000, false, time.Now())
	require.NoError(t, err)
	assert.Equal(t, money.Amount(30000), discount)

	totals := ComputeTotals(30000, nil, discount)
	assert.Equal(t, totals.Subtotal-totals.Discount, totals.Total)
	assert.Equal(t, money.Amount(0), totals.Total)
}

func TestPromotionBoundsHoldForAnySubtotal(t *testing.T) {
	kinds := []struct {
		kind  model.DiscountType
		value string
	}{
		{model.DiscountPercent, "0"},
		{model.DiscountPercent, "33.33"},
		{model.DiscountPercent, "150"},
		{model.DiscountPercent, "-10"},
		{model.DiscountFixed, "19.99"},
		{model.DiscountFixed, "-5"},
	}
	for _, k := range kinds {
		for _, subtotal := range []money.Amount{0, 1, 99, 12345, 176800} {
			d, err := DiscountFor(k.kind, decimal.RequireFromString(k.value), subtotal)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, d, money.Amount(0))
			assert.LessOrEqual(t, d, subtotal)

			totals := ComputeTotals(subtotal, nil, d)
			assert.Equal(t, subtotal-d, totals.Total)
		}
	}
}

func TestPromotionWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	later := now.Add(24 * time.Hour)
	earlier := now.Add(-24 * time.Hour)

	notStarted := &model.Promotion{DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(10), Active: true, StartsAt: &later}
	_, err := ApplyPromotion(notStarted, 10000, false, now)
	assert.ErrorIs(t, err, ErrPromotionNotStarted)

	ended := &model.Promotion{DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(10), Active: true, EndsAt: &earlier}
	_, err = ApplyPromotion(ended, 10000, false, now)
	assert.ErrorIs(t, err, ErrPromotionEnded)

	inactive := &model.Promotion{DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(10)}
	_, err = ApplyPromotion(inactive, 10000, false, now)
	assert.ErrorIs(t, err, ErrPromotionInactive)

	running := &model.Promotion{DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(10), Active: true, StartsAt: &earlier, EndsAt: &later}
	d, err := ApplyPromotion(running, 10000, false, now)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(1000), d)
}

func TestPromotionRejectedWithPartnerBundle(t *testing.T) {
	promo := &model.Promotion{DiscountType: model.DiscountPercent, Value: decimal.NewFromInt(10), Active: true}
	_, err := ApplyPromotion(promo, 10000, true, time.Now())
	assert.ErrorIs(t, err, ErrPromotionBundleConflict)
}

func TestInvalidDiscountType(t *testing.T) {
	_, err := DiscountFor("BOGO", decimal.NewFromInt(1), 100)
	assert.ErrorIs(t, err, ErrInvalidDiscountType)
}

func TestGST(t *testing.T) {
	assert.Equal(t, money.Amount(7480), GST(82280, 10))
	assert.Equal(t, money.Amount(16073), GST(176800, 10))
	assert.Equal(t, money.Amount(0), GST(0, 10))
	assert.Equal(t, money.Amount(0), GST(1000, 0))
}
