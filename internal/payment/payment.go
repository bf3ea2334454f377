// Package payment holds the pure rules of the payment lifecycle: which charge an order
// needs next, whether a charge may be created, and how paid rows aggregate onto the order.
package payment

import (
	"errors"
	"fmt"

	"meal-order-backend/internal/model"
	"meal-order-backend/internal/money"
)

var (
	ErrInvalidPlan          = errors.New("invalid payment plan")
	ErrInvalidAmount        = errors.New("charge amount must be greater than zero")
	ErrPartialBelowFloor    = errors.New("package price is below the partial payment minimum")
	ErrNoOutstandingBalance = errors.New("no outstanding balance")
	ErrAlreadyPaid          = errors.New("order is already fully paid")
)

// Policy amounts are minor units.
type Policy struct {
	DefaultDeposit    money.Amount
	PartialPriceFloor money.Amount
}

type ChargeRequest struct {
	// DepositOverride replaces Policy.DefaultDeposit for the first PARTIAL charge.
	DepositOverride *money.Amount
}

type ChargePlan struct {
	Purpose model.PaymentPurpose
	Amount  money.Amount
	// Balance is what remains owed once this charge is paid.
	Balance money.Amount
}

// PlanCharge selects purpose and amount for the next charge of an order.
//
//	FULL    -> FULL for the current total
//	PARTIAL -> DEPOSIT while nothing is paid, then BALANCE = total - paid
func PlanCharge(order *model.Order, optionPrice, paid money.Amount, req ChargeRequest, policy Policy) (ChargePlan, error) {
	total := money.Amount(order.Total)

	var plan ChargePlan
	switch order.PaymentPlan {
	case model.PlanFull:
		if total > 0 && paid >= total {
			return ChargePlan{}, ErrAlreadyPaid
		}
		plan = ChargePlan{Purpose: model.PurposeFull, Amount: total, Balance: 0}

	case model.PlanPartial:
		if paid <= 0 {
			deposit := policy.DefaultDeposit
			if req.DepositOverride != nil {
				deposit = *req.DepositOverride
			}
			if deposit <= 0 {
				return ChargePlan{}, fmt.Errorf("%w: deposit %s", ErrInvalidAmount, deposit)
			}
			if deposit > total {
				deposit = total
			}
			plan = ChargePlan{Purpose: model.PurposeDeposit, Amount: deposit, Balance: money.Max0(total - deposit)}
		} else {
			plan = ChargePlan{Purpose: model.PurposeBalance, Amount: total - paid, Balance: 0}
		}

	default:
		return ChargePlan{}, fmt.Errorf("%w: %q", ErrInvalidPlan, order.PaymentPlan)
	}

	if err := CheckCharge(order, plan.Purpose, plan.Amount, optionPrice, paid, policy); err != nil {
		return ChargePlan{}, err
	}
	return plan, nil
}

// CheckCharge holds the preconditions of creating a PENDING charge.
func CheckCharge(order *model.Order, purpose model.PaymentPurpose, amount, optionPrice, paid money.Amount, policy Policy) error {
	if !order.PaymentPlan.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlan, order.PaymentPlan)
	}
	if order.PaymentPlan == model.PlanPartial && optionPrice < policy.PartialPriceFloor {
		return fmt.Errorf("%w: %s < %s", ErrPartialBelowFloor, optionPrice, policy.PartialPriceFloor)
	}
	if purpose == model.PurposeBalance && money.Amount(order.Total)-paid <= 0 {
		return ErrNoOutstandingBalance
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

type Aggregate struct {
	Charges    money.Amount
	Refunds    money.Amount
	AmountPaid money.Amount
	FullyPaid  bool
}

// Summarize derives the order aggregates from its payment rows. Only PAID rows count.
func Summarize(payments []model.Payment, total money.Amount) Aggregate {
	var agg Aggregate
	for _, p := range payments {
		if p.Status != model.PaymentPaid {
			continue
		}
		switch p.Kind {
		case model.KindCharge:
			agg.Charges += money.Amount(p.Amount)
		case model.KindRefund:
			agg.Refunds += money.Amount(p.Amount)
		}
	}
	agg.AmountPaid = money.Max0(agg.Charges - agg.Refunds)
	agg.FullyPaid = agg.AmountPaid >= total
	return agg
}

// Remaining is what is still owed on an order.
func Remaining(total, paid money.Amount) money.Amount {
	return money.Max0(total - paid)
}
