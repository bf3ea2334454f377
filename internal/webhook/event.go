// Package webhook decodes signed gateway deliveries into a closed set of event variants.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meal-order-backend/internal/model"
)

const (
	TypeCheckoutCompleted          = "checkout.session.completed"
	TypeCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	TypeCheckoutAsyncFailed        = "checkout.session.async_payment_failed"
	TypeCheckoutExpired            = "checkout.session.expired"
	TypePaymentIntentPaymentFailed = "payment_intent.payment_failed"
	TypeChargeRefunded             = "charge.refunded"
)

var ErrMalformedEvent = errors.New("malformed gateway event")

// Event is implemented only by the variants in this package.
type Event interface {
	Meta() Envelope
	sealed()
}

type Envelope struct {
	ID      string
	Type    string
	Created time.Time
}

func (e Envelope) Meta() Envelope { return e }
func (Envelope) sealed()          {}

// Correlation carries whatever the gateway echoed back about our records. Any field may be empty.
type Correlation struct {
	PaymentID string
	OrderID   string
	SessionID string
	IntentID  string
}

type PaymentSucceeded struct {
	Envelope
	Ref         Correlation
	Method      string
	AmountTotal int64
}

type PaymentFailed struct {
	Envelope
	Ref    Correlation
	Reason string
}

type Refund struct {
	ID     string
	Amount int64
}

type PaymentRefunded struct {
	Envelope
	Ref     Correlation
	Refunds []Refund
}

// Ignored is acknowledged without effect.
type Ignored struct {
	Envelope
	Reason string
}

// Parse validates the envelope and the object shape of handled event types.
func Parse(body []byte) (Event, error) {
	var raw model.GatewayWebhookEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if raw.ID == "" || raw.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}

	env := Envelope{ID: raw.ID, Type: raw.Type, Created: time.Unix(raw.Created, 0).UTC()}

	switch raw.Type {
	case TypeCheckoutCompleted, TypeCheckoutAsyncSucceeded, TypeCheckoutAsyncFailed, TypeCheckoutExpired:
		var session model.GatewayCheckoutSession
		if err := decodeObject(raw, &session); err != nil {
			return nil, err
		}
		if session.ID == "" {
			return nil, fmt.Errorf("%w: checkout session without id", ErrMalformedEvent)
		}
		return fromSession(env, &session), nil

	case TypePaymentIntentPaymentFailed:
		var intent model.GatewayPaymentIntent
		if err := decodeObject(raw, &intent); err != nil {
			return nil, err
		}
		if intent.ID == "" {
			return nil, fmt.Errorf("%w: payment intent without id", ErrMalformedEvent)
		}
		reason := "payment failed"
		if intent.LastPaymentError != nil && intent.LastPaymentError.Message != "" {
			reason = intent.LastPaymentError.Message
		}
		return PaymentFailed{
			Envelope: env,
			Ref: Correlation{
				PaymentID: intent.Metadata.PaymentID,
				OrderID:   intent.Metadata.OrderID,
				IntentID:  intent.ID,
			},
			Reason: reason,
		}, nil

	case TypeChargeRefunded:
		var charge model.GatewayCharge
		if err := decodeObject(raw, &charge); err != nil {
			return nil, err
		}
		refunds := make([]Refund, 0, len(charge.Refunds.Data))
		for _, r := range charge.Refunds.Data {
			if r.ID == "" || r.Amount <= 0 || r.Status != "succeeded" {
				continue
			}
			refunds = append(refunds, Refund{ID: r.ID, Amount: r.Amount})
		}
		if len(refunds) == 0 {
			return Ignored{Envelope: env, Reason: "no settled refunds"}, nil
		}
		return PaymentRefunded{
			Envelope: env,
			Ref: Correlation{
				PaymentID: charge.Metadata.PaymentID,
				OrderID:   charge.Metadata.OrderID,
				IntentID:  charge.PaymentIntent,
			},
			Refunds: refunds,
		}, nil
	}

	return Ignored{Envelope: env, Reason: "unhandled event type"}, nil
}

func fromSession(env Envelope, s *model.GatewayCheckoutSession) Event {
	ref := Correlation{
		PaymentID: s.Metadata.PaymentID,
		OrderID:   s.Metadata.OrderID,
		SessionID: s.ID,
		IntentID:  s.PaymentIntent,
	}
	if ref.OrderID == "" {
		ref.OrderID = s.ClientReferenceID
	}

	switch env.Type {
	case TypeCheckoutCompleted:
		// delayed methods complete checkout unpaid and settle with an async event later
		if s.PaymentStatus != "paid" && s.PaymentStatus != "no_payment_required" {
			return Ignored{Envelope: env, Reason: "awaiting async settlement"}
		}
		return PaymentSucceeded{Envelope: env, Ref: ref, Method: singleMethod(s.PaymentMethodTypes), AmountTotal: s.AmountTotal}
	case TypeCheckoutAsyncSucceeded:
		return PaymentSucceeded{Envelope: env, Ref: ref, Method: singleMethod(s.PaymentMethodTypes), AmountTotal: s.AmountTotal}
	case TypeCheckoutAsyncFailed:
		return PaymentFailed{Envelope: env, Ref: ref, Reason: "async payment failed"}
	default:
		return PaymentFailed{Envelope: env, Ref: ref, Reason: "checkout session expired"}
	}
}

// singleMethod returns the method only when the session allowed exactly one.
func singleMethod(types []string) string {
	if len(types) == 1 {
		return types[0]
	}
	return ""
}

func decodeObject(raw model.GatewayWebhookEvent, dst any) error {
	if len(raw.Data.Object) == 0 {
		return fmt.Errorf("%w: %s without data.object", ErrMalformedEvent, raw.Type)
	}
	if err := json.Unmarshal(raw.Data.Object, dst); err != nil {
		return fmt.Errorf("%w: decode %s object: %v", ErrMalformedEvent, raw.Type, err)
	}
	return nil
}
