package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meal-order-backend/internal/config"
	"meal-order-backend/internal/model"
	"meal-order-backend/internal/webhook"
)

type GatewayClient interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*model.GatewayCheckoutSession, error)
	// PaymentMethodType looks up the settled method of a payment intent, e.g. "card" or "au_becs_debit".
	PaymentMethodType(ctx context.Context, intentID string) (string, error)
	VerifyWebhookSignature(headers http.Header, body []byte) error
}

type CheckoutRequest struct {
	PaymentID     string
	OrderID       string
	Amount        int64
	Currency      string
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type gatewayClientImpl struct {
	httpClient    *http.Client
	baseApiURL    string
	secretKey     string
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func NewGatewayClient(cfg *config.Gateway) GatewayClient {
	return &gatewayClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:    strings.TrimRight(cfg.BaseApiURL, "/"),
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		tolerance:     cfg.SignatureTolerance,
		now:           time.Now,
	}
}

func (c *gatewayClientImpl) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*model.GatewayCheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.OrderID)
	form.Set("metadata[payment_id]", req.PaymentID)
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("payment_intent_data[metadata][payment_id]", req.PaymentID)
	form.Set("payment_intent_data[metadata][order_id]", req.OrderID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseApiURL+"/v1/checkout/sessions",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// one session per payment even when the request is retried
	httpReq.Header.Set("Idempotency-Key", "checkout-"+req.PaymentID)

	var session model.GatewayCheckoutSession
	if err := c.do(httpReq, &session); err != nil {
		return nil, fmt.Errorf("gateway create checkout session: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("gateway create checkout session: response without id or url")
	}

	return &session, nil
}

func (c *gatewayClientImpl) PaymentMethodType(ctx context.Context, intentID string) (string, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseApiURL+"/v1/payment_intents/"+url.PathEscape(intentID)+"?expand[]=payment_method",
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("create payment intent request: %w", err)
	}

	var intent model.GatewayPaymentIntent
	if err := c.do(httpReq, &intent); err != nil {
		return "", fmt.Errorf("gateway get payment intent: %w", err)
	}

	if intent.PaymentMethod != nil && intent.PaymentMethod.Type != "" {
		return intent.PaymentMethod.Type, nil
	}
	if len(intent.PaymentMethodTypes) == 1 {
		return intent.PaymentMethodTypes[0], nil
	}
	return "", nil
}

func (c *gatewayClientImpl) VerifyWebhookSignature(headers http.Header, body []byte) error {
	return webhook.Verify(body, headers.Get(webhook.SignatureHeader), c.webhookSecret, c.tolerance, c.now())
}

func (c *gatewayClientImpl) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
