package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"meal-order-backend/internal/client"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/webhook"
)

// Gateway records checkout requests and verifies signatures with WebhookSecret.
type Gateway struct {
	mu        sync.Mutex
	Requests  []client.CheckoutRequest
	Methods   map[string]string
	CreateErr error
	MethodErr error
}

func NewGateway() *Gateway {
	return &Gateway{Methods: make(map[string]string)}
}

func (g *Gateway) CreateCheckoutSession(_ context.Context, req *client.CheckoutRequest) (*model.GatewayCheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.Requests = append(g.Requests, *req)
	return &model.GatewayCheckoutSession{
		ID:            "cs_" + req.PaymentID,
		PaymentIntent: "pi_" + req.PaymentID,
		URL:           "https://checkout.example/" + req.PaymentID,
	}, nil
}

func (g *Gateway) PaymentMethodType(_ context.Context, intentID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.MethodErr != nil {
		return "", g.MethodErr
	}
	return g.Methods[intentID], nil
}

func (g *Gateway) VerifyWebhookSignature(headers http.Header, body []byte) error {
	return webhook.Verify(body, headers.Get(webhook.SignatureHeader), WebhookSecret, 5*time.Minute, time.Now())
}

// Email records sent messages. Err makes every send fail.
type Email struct {
	mu   sync.Mutex
	Sent []client.EmailMessage
	Err  error
}

func (e *Email) Send(_ context.Context, msg *client.EmailMessage) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Err != nil {
		return "", e.Err
	}
	e.Sent = append(e.Sent, *msg)
	return "msg_test", nil
}

func (e *Email) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Sent)
}

// Erp records pushed payloads. Fail lists order ids whose push errors.
type Erp struct {
	mu     sync.Mutex
	Pushed map[string][]byte
	Fail   map[string]bool
}

func NewErp() *Erp {
	return &Erp{Pushed: make(map[string][]byte), Fail: make(map[string]bool)}
}

func (e *Erp) PushOrder(_ context.Context, orderID, _ string, payload []byte) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Fail[orderID] {
		return "", errors.New("erp unavailable")
	}
	e.Pushed[orderID] = payload
	return "erp-" + orderID, nil
}

// SignedDelivery builds the headers and body of a gateway webhook delivery.
func SignedDelivery(event map[string]any) (http.Header, []byte) {
	body, err := json.Marshal(event)
	if err != nil {
		panic(err)
	}
	headers := http.Header{}
	headers.Set(webhook.SignatureHeader, webhook.Sign(body, WebhookSecret, time.Now()))
	return headers, body
}

// CheckoutEvent is a checkout.session.* event for a payment whose session was opened through Gateway.
func CheckoutEvent(eventID, eventType string, p *model.Payment, paymentStatus string, methods ...string) map[string]any {
	return map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":                   p.CheckoutSessionID,
				"payment_intent":       p.PaymentIntentID,
				"payment_status":       paymentStatus,
				"amount_total":         p.Amount,
				"currency":             "aud",
				"client_reference_id":  p.OrderID,
				"payment_method_types": methods,
				"metadata":             map[string]string{"payment_id": p.ID, "order_id": p.OrderID},
			},
		},
	}
}

func IntentFailedEvent(eventID, intentID string, metadata map[string]string, message string) map[string]any {
	return map[string]any{
		"id":      eventID,
		"type":    webhook.TypePaymentIntentPaymentFailed,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":                 intentID,
				"status":             "requires_payment_method",
				"metadata":           metadata,
				"last_payment_error": map[string]string{"message": message},
			},
		},
	}
}

func RefundEvent(eventID string, p *model.Payment, refunds ...map[string]any) map[string]any {
	return map[string]any{
		"id":      eventID,
		"type":    webhook.TypeChargeRefunded,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             "ch_" + p.ID,
				"payment_intent": p.PaymentIntentID,
				"metadata":       map[string]string{"payment_id": p.ID, "order_id": p.OrderID},
				"refunds":        map[string]any{"data": refunds},
			},
		},
	}
}
