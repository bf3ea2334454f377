// Package snapshot assembles the denormalised read model of an order that email, admin and export consume.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"meal-order-backend/internal/canonical"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/money"
	"meal-order-backend/internal/payment"
	"meal-order-backend/internal/pricing"
)

const Version = "1.1"

const (
	LinePackage = "PACKAGE"
	dateLayout  = "2006-01-02"
)

// Input is everything stored about an order. Option, Promotion, Delivery and Customer may be nil.
type Input struct {
	Order     model.Order
	Option    *model.PackageOption
	Items     []model.OrderItem
	Requests  []model.OrderRequest
	Payments  []model.Payment
	Promotion *model.PromotionApplication
	Delivery  *model.DeliverySnapshot
	Customer  *model.Customer
	GSTRate   int64
}

type Document struct {
	Version string `json:"version"`
	Order   Order  `json:"order"`
}

type Order struct {
	ID          string      `json:"id"`
	CreatedAt   time.Time   `json:"createdAt"`
	InputType   string      `json:"inputType"`
	ServiceDate *string     `json:"serviceDate"`
	Portion     string      `json:"portion"`
	Session     string      `json:"session"`
	Status      string      `json:"status"`
	PaymentPlan string      `json:"paymentPlan"`
	LineItems   []LineItem  `json:"lineItems"`
	Requests    []Request   `json:"requests"`
	Note        string      `json:"note"`
	Payments    []Payment   `json:"payments"`
	Pricing     Pricing     `json:"pricing"`
	Promotions  []Promotion `json:"promotions"`
	Delivery    *Delivery   `json:"delivery"`
	Customer    *Customer   `json:"customer"`
}

type LineItem struct {
	Kind      string       `json:"kind"`
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	UnitPrice money.Amount `json:"unitPrice"`
	Quantity  int32        `json:"quantity"`
	LineTotal money.Amount `json:"lineTotal"`
}

type Request struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Label    string `json:"label"`
}

type Payment struct {
	ID                string       `json:"id"`
	Kind              string       `json:"kind"`
	Purpose           string       `json:"purpose"`
	Status            string       `json:"status"`
	Method            string       `json:"method"`
	Amount            money.Amount `json:"amount"`
	Currency          string       `json:"currency"`
	CheckoutSessionID string       `json:"checkoutSessionId"`
	PaymentIntentID   string       `json:"paymentIntentId"`
	ExternalRefundID  *string      `json:"externalRefundId"`
	FailureReason     string       `json:"failureReason,omitempty"`
	PaidAt            *time.Time   `json:"paidAt"`
	CreatedAt         time.Time    `json:"createdAt"`
}

type Pricing struct {
	Currency  string       `json:"currency"`
	Subtotal  money.Amount `json:"subtotal"`
	Discount  money.Amount `json:"discount"`
	Total     money.Amount `json:"total"`
	Paid      money.Amount `json:"paid"`
	Remaining money.Amount `json:"remaining"`
	FullyPaid bool         `json:"fullyPaid"`
	GST       money.Amount `json:"gst"`
	GSTRate   int64        `json:"gstRate"`
}

type Promotion struct {
	Code         string       `json:"code"`
	DiscountType string       `json:"discountType"`
	Value        string       `json:"value"`
	Amount       money.Amount `json:"amount"`
}

type Delivery struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	Suburb       string `json:"suburb"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	Instructions string `json:"instructions"`
}

type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Schema is the persisted key order. Keys missing here are appended alphabetically.
var Schema = canonical.Schema{
	"": {"version", "order"},
	"order": {
		"id", "createdAt", "inputType", "serviceDate", "portion", "session", "status", "paymentPlan",
		"lineItems", "requests", "note", "payments", "pricing", "promotions", "delivery", "customer",
	},
	"order.lineItems[]": {"kind", "code", "name", "unitPrice", "quantity", "lineTotal"},
	"order.requests[]":  {"category", "code", "label"},
	"order.payments[]": {
		"id", "kind", "purpose", "status", "method", "amount", "currency",
		"checkoutSessionId", "paymentIntentId", "externalRefundId", "failureReason", "paidAt", "createdAt",
	},
	"order.pricing":      {"currency", "subtotal", "discount", "total", "paid", "remaining", "fullyPaid", "gst", "gstRate"},
	"order.promotions[]": {"code", "discountType", "value", "amount"},
	"order.delivery": {
		"firstName", "lastName", "email", "phone",
		"addressLine1", "addressLine2", "suburb", "state", "postcode", "instructions",
	},
	"order.customer": {"id", "email", "phone", "firstName", "lastName"},
}

// Assemble builds the read model. It only reads its input.
func Assemble(in Input) *Document {
	o := in.Order

	lines := make([]LineItem, 0, len(in.Items)+1)
	pricingLines := make([]pricing.Line, 0, len(in.Items))
	var base money.Amount
	if in.Option != nil {
		base = money.Amount(in.Option.Price)
		lines = append(lines, LineItem{
			Kind:      LinePackage,
			Code:      in.Option.Code,
			Name:      in.Option.Name,
			UnitPrice: base,
			Quantity:  1,
			LineTotal: base,
		})
	}
	for _, it := range in.Items {
		l := pricing.Line{UnitPrice: money.Amount(it.UnitPrice), Quantity: it.Quantity}
		pricingLines = append(pricingLines, l)
		lines = append(lines, LineItem{
			Kind:      string(it.Kind),
			Code:      it.Code,
			Name:      it.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.Total(),
		})
	}

	requests := make([]Request, 0, len(in.Requests))
	for _, r := range in.Requests {
		if r.Category == model.RequestRicePreference {
			continue
		}
		requests = append(requests, Request{Category: r.Category, Code: r.Code, Label: r.Label})
	}

	promotions := make([]Promotion, 0, 1)
	var promoAmount money.Amount
	if in.Promotion != nil {
		promoAmount = money.Amount(in.Promotion.Amount)
		promotions = append(promotions, Promotion{
			Code:         in.Promotion.Code,
			DiscountType: string(in.Promotion.DiscountType),
			Value:        in.Promotion.Value.StringFixed(2),
			Amount:       promoAmount,
		})
	}

	totals := pricing.Totals{
		Subtotal: money.Amount(o.Subtotal),
		Discount: money.Amount(o.Discount),
		Total:    money.Amount(o.Total),
	}
	if totals.Subtotal == 0 && totals.Total == 0 {
		totals = pricing.ComputeTotals(base, pricingLines, promoAmount)
	}

	agg := payment.Summarize(in.Payments, totals.Total)

	payments := make([]Payment, 0, len(in.Payments))
	for _, p := range in.Payments {
		payments = append(payments, Payment{
			ID:                p.ID,
			Kind:              string(p.Kind),
			Purpose:           string(p.Purpose),
			Status:            string(p.Status),
			Method:            p.Method,
			Amount:            money.Amount(p.Amount),
			Currency:          p.Currency,
			CheckoutSessionID: p.CheckoutSessionID,
			PaymentIntentID:   p.PaymentIntentID,
			ExternalRefundID:  p.ExternalRefundID,
			FailureReason:     p.FailureReason,
			PaidAt:            utc(p.PaidAt),
			CreatedAt:         p.CreatedAt.UTC(),
		})
	}

	doc := &Document{
		Version: Version,
		Order: Order{
			ID:          o.ID,
			CreatedAt:   o.CreatedAt.UTC(),
			InputType:   string(o.InputType),
			Portion:     o.Portion,
			Session:     o.Session,
			Status:      string(o.Status),
			PaymentPlan: string(o.PaymentPlan),
			LineItems:   lines,
			Requests:    requests,
			Note:        o.Note,
			Payments:    payments,
			Pricing: Pricing{
				Currency:  o.Currency,
				Subtotal:  totals.Subtotal,
				Discount:  totals.Discount,
				Total:     totals.Total,
				Paid:      agg.AmountPaid,
				Remaining: payment.Remaining(totals.Total, agg.AmountPaid),
				FullyPaid: agg.FullyPaid,
				GST:       pricing.GST(totals.Total, in.GSTRate),
				GSTRate:   in.GSTRate,
			},
			Promotions: promotions,
		},
	}
	if o.ServiceDate != nil {
		d := o.ServiceDate.Format(dateLayout)
		doc.Order.ServiceDate = &d
	}
	if d := in.Delivery; d != nil {
		doc.Order.Delivery = &Delivery{
			FirstName:    d.FirstName,
			LastName:     d.LastName,
			Email:        d.Email,
			Phone:        d.Phone,
			AddressLine1: d.AddressLine1,
			AddressLine2: d.AddressLine2,
			Suburb:       d.Suburb,
			State:        d.State,
			Postcode:     d.Postcode,
			Instructions: d.Instructions,
		}
	}
	if c := in.Customer; c != nil {
		doc.Order.Customer = &Customer{
			ID:        c.ID,
			Email:     c.Email,
			Phone:     c.Phone,
			FirstName: c.FirstName,
			LastName:  c.LastName,
		}
	}
	return doc
}

// Encode canonicalises the document and returns the payload with its sha256 checksum.
func Encode(doc *Document) ([]byte, string, error) {
	payload, err := canonical.Marshal(doc, Schema)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)
	return payload, hex.EncodeToString(sum[:]), nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
