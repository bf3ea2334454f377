package service

import (
	"context"
	"errors"

	"meal-order-backend/internal/model"
	"meal-order-backend/internal/repository"
	"meal-order-backend/internal/webhook"

	"gorm.io/gorm"
)

// Matcher is one strategy for finding the payments a gateway event refers to.
type Matcher interface {
	Name() string
	Match(ctx context.Context, tx *gorm.DB, ref webhook.Correlation) ([]*model.Payment, error)
}

type Match struct {
	Payment  *model.Payment
	Strategy string
	// Pending is false when every candidate had already reached a terminal state.
	Pending bool
}

// MatchPlan runs its Precise strategies in order and takes the first candidate still PENDING.
// Fallback strategies only run when no precise strategy recognised the event at all.
type MatchPlan struct {
	Precise  []Matcher
	Fallback []Matcher
}

func successPlan(repo repository.PaymentRepository) MatchPlan {
	return MatchPlan{
		Precise: []Matcher{byPaymentID{repo}, byExternalRef{repo}},
	}
}

func failurePlan(repo repository.PaymentRepository) MatchPlan {
	return MatchPlan{
		Precise:  []Matcher{byPaymentID{repo}, byExternalRef{repo}},
		Fallback: []Matcher{latestPendingForOrder{repo}},
	}
}

// Resolve returns nil when no strategy found a payment.
func (p MatchPlan) Resolve(ctx context.Context, tx *gorm.DB, ref webhook.Correlation) (*Match, error) {
	match, err := firstPending(ctx, tx, p.Precise, ref)
	if err != nil || match != nil {
		return match, err
	}
	return firstPending(ctx, tx, p.Fallback, ref)
}

func firstPending(ctx context.Context, tx *gorm.DB, matchers []Matcher, ref webhook.Correlation) (*Match, error) {
	var settled *Match
	seen := make(map[string]bool)

	for _, m := range matchers {
		candidates, err := m.Match(ctx, tx, ref)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			if c.Status == model.PaymentPending {
				return &Match{Payment: c, Strategy: m.Name(), Pending: true}, nil
			}
			if settled == nil {
				settled = &Match{Payment: c, Strategy: m.Name()}
			}
		}
	}

	return settled, nil
}

type byPaymentID struct {
	repo repository.PaymentRepository
}

func (byPaymentID) Name() string { return "payment_id" }

func (m byPaymentID) Match(ctx context.Context, tx *gorm.DB, ref webhook.Correlation) ([]*model.Payment, error) {
	if ref.PaymentID == "" {
		return nil, nil
	}
	p, err := m.repo.FindByID(ctx, tx, ref.PaymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// metadata pointing at another order's payment is stale
	if ref.OrderID != "" && p.OrderID != ref.OrderID {
		return nil, nil
	}
	return []*model.Payment{p}, nil
}

type byExternalRef struct {
	repo repository.PaymentRepository
}

func (byExternalRef) Name() string { return "session_id" }

func (m byExternalRef) Match(ctx context.Context, tx *gorm.DB, ref webhook.Correlation) ([]*model.Payment, error) {
	return m.repo.FindByExternalRef(ctx, tx, ref.SessionID, ref.IntentID)
}

type latestPendingForOrder struct {
	repo repository.PaymentRepository
}

func (latestPendingForOrder) Name() string { return "latest_pending" }

func (m latestPendingForOrder) Match(ctx context.Context, tx *gorm.DB, ref webhook.Correlation) ([]*model.Payment, error) {
	if ref.OrderID == "" {
		return nil, nil
	}
	p, err := m.repo.LatestPending(ctx, tx, ref.OrderID)
	if err != nil || p == nil {
		return nil, err
	}
	return []*model.Payment{p}, nil
}
