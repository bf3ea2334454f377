package dto

import (
	"encoding/json"
	"time"

	"meal-order-backend/internal/money"
)

type CreateOrderRequest struct {
	PackageCode string `json:"package_code" validate:"required"`
	PaymentPlan string `json:"payment_plan" validate:"required,oneof=FULL PARTIAL"`
	InputType   string `json:"input_type" validate:"omitempty,oneof=ONLINE MANUAL"`
	ServiceDate string `json:"service_date" validate:"omitempty,datetime=2006-01-02"`
	Session     string `json:"session" validate:"omitempty,oneof=LUNCH DINNER"`
	Portion     string `json:"portion" validate:"omitempty,max=32"`
}

type DeliveryRequest struct {
	FirstName    string `json:"first_name" validate:"required,max=128"`
	LastName     string `json:"last_name" validate:"max=128"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,max=32"`
	AddressLine1 string `json:"address_line1" validate:"required,max=255"`
	AddressLine2 string `json:"address_line2" validate:"max=255"`
	Suburb       string `json:"suburb" validate:"required,max=128"`
	State        string `json:"state" validate:"required,max=32"`
	Postcode     string `json:"postcode" validate:"required,max=16"`
	Instructions string `json:"instructions" validate:"max=1000"`
}

type AddItemRequest struct {
	Kind      string       `json:"kind" validate:"required,oneof=ADDON PARTNER_BUNDLE"`
	Code      string       `json:"code" validate:"required,max=64"`
	Name      string       `json:"name" validate:"required,max=255"`
	UnitPrice money.Amount `json:"unit_price" validate:"gte=0"`
	Quantity  int32        `json:"quantity" validate:"required,gt=0"`
}

type RequestItem struct {
	Category string `json:"category" validate:"required,max=32"`
	Code     string `json:"code" validate:"required,max=64"`
	Label    string `json:"label" validate:"max=255"`
}

type RequestsRequest struct {
	Requests []RequestItem `json:"requests" validate:"dive"`
}

type NoteRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

type PromotionRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type PaymentRequest struct {
	// Deposit overrides the default deposit of the first PARTIAL charge, in major units.
	Deposit *money.Amount `json:"deposit,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=FULFILLED CANCELLED"`
}

type OrderResponse struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	PaymentPlan string       `json:"payment_plan"`
	Currency    string       `json:"currency"`
	Subtotal    money.Amount `json:"subtotal"`
	Discount    money.Amount `json:"discount"`
	Total       money.Amount `json:"total"`
	AmountPaid  money.Amount `json:"amount_paid"`
	Remaining   money.Amount `json:"remaining"`
	FullyPaid   bool         `json:"fully_paid"`
	CreatedAt   time.Time    `json:"created_at"`
}

type PaymentSessionResponse struct {
	PaymentID   string       `json:"payment_id"`
	Purpose     string       `json:"purpose"`
	Amount      money.Amount `json:"amount"`
	Balance     money.Amount `json:"balance"`
	CheckoutURL string       `json:"checkout_url"`
}

type ConfirmationResponse struct {
	OrderID        string     `json:"order_id"`
	Version        string     `json:"version"`
	Checksum       string     `json:"checksum"`
	ExportStatus   string     `json:"export_status"`
	ExportAttempts int        `json:"export_attempts"`
	ExternalID     string     `json:"external_id,omitempty"`
	ExportedAt     *time.Time `json:"exported_at,omitempty"`
	EmailSentAt    *time.Time `json:"email_sent_at,omitempty"`
	EmailAttempts  int        `json:"email_attempts"`
	LastError      string     `json:"last_error,omitempty"`
	// Payload is the canonical snapshot, passed through byte for byte.
	Payload json.RawMessage `json:"payload"`
}
