package model

import "encoding/json"

// Wire shapes of the hosted-checkout gateway. Only the fields the reconciler reads are mapped.

type GatewayMetadata struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
}

type GatewayWebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type GatewayCheckoutSession struct {
	ID                 string          `json:"id"`
	PaymentIntent      string          `json:"payment_intent"`
	PaymentStatus      string          `json:"payment_status"` // paid, unpaid, no_payment_required
	AmountTotal        int64           `json:"amount_total"`
	Currency           string          `json:"currency"`
	ClientReferenceID  string          `json:"client_reference_id"`
	PaymentMethodTypes []string        `json:"payment_method_types"`
	Metadata           GatewayMetadata `json:"metadata"`
	URL                string          `json:"url"`
}

type GatewayPaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GatewayPaymentIntent struct {
	ID                 string               `json:"id"`
	Status             string               `json:"status"`
	Amount             int64                `json:"amount"`
	PaymentMethodTypes []string             `json:"payment_method_types"`
	Metadata           GatewayMetadata      `json:"metadata"`
	LastPaymentError   *GatewayPaymentError `json:"last_payment_error"`
	PaymentMethod      *struct {
		Type string `json:"type"`
	} `json:"payment_method"`
}

type GatewayRefund struct {
	ID      string `json:"id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
	Created int64  `json:"created"`
}

type GatewayCharge struct {
	ID             string          `json:"id"`
	PaymentIntent  string          `json:"payment_intent"`
	AmountRefunded int64           `json:"amount_refunded"`
	Metadata       GatewayMetadata `json:"metadata"`
	Refunds        struct {
		Data []GatewayRefund `json:"data"`
	} `json:"refunds"`
}
