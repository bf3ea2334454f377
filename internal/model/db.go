package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderCreated    OrderStatus = "CREATED"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderFulfilled  OrderStatus = "FULFILLED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

type PaymentPlan string

const (
	PlanFull    PaymentPlan = "FULL"
	PlanPartial PaymentPlan = "PARTIAL"
)

func (p PaymentPlan) Valid() bool {
	return p == PlanFull || p == PlanPartial
}

type InputType string

const (
	InputOnline InputType = "ONLINE"
	InputManual InputType = "MANUAL"
)

// Money columns hold minor units.
type Order struct {
	ID              string      `gorm:"primaryKey;size:64;not null"`
	Status          OrderStatus `gorm:"size:32;index;not null"`
	PackageOptionID string      `gorm:"size:64;index;not null"`
	PaymentPlan     PaymentPlan `gorm:"size:16;not null"`
	InputType       InputType   `gorm:"size:16;not null;default:ONLINE"`
	ServiceDate     *time.Time
	Session         string  `gorm:"size:32"` // LUNCH, DINNER
	Portion         string  `gorm:"size:32"`
	Note            string  `gorm:"size:2000"`
	Currency        string  `gorm:"size:8;not null"`
	Subtotal        int64   `gorm:"not null;default:0"`
	Discount        int64   `gorm:"not null;default:0"`
	Total           int64   `gorm:"not null;default:0"`
	AmountPaid      int64   `gorm:"not null;default:0"`
	FullyPaid       bool    `gorm:"not null;default:false"`
	CustomerID      *string `gorm:"size:64;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type PackageOption struct {
	ID           string `gorm:"primaryKey;size:64;not null"`
	Code         string `gorm:"size:64;uniqueIndex;not null"`
	Name         string `gorm:"size:255;not null"`
	DurationDays int    `gorm:"not null"`
	Portion      string `gorm:"size:32"`
	Price        int64  `gorm:"not null"`
	Active       bool   `gorm:"not null"`
}

type ItemKind string

const (
	ItemAddon         ItemKind = "ADDON"
	ItemPartnerBundle ItemKind = "PARTNER_BUNDLE"
)

type OrderItem struct {
	ID        uint     `gorm:"primaryKey"`
	OrderID   string   `gorm:"size:64;index;not null"`
	Kind      ItemKind `gorm:"size:32;not null"`
	Code      string   `gorm:"size:64;not null"`
	Name      string   `gorm:"size:255;not null"`
	UnitPrice int64    `gorm:"not null"`
	Quantity  int32    `gorm:"not null"`
	CreatedAt time.Time
}

// RequestRicePreference marks presentation-only requests left out of snapshots.
const RequestRicePreference = "RICE_PREFERENCE"

type OrderRequest struct {
	ID       uint   `gorm:"primaryKey"`
	OrderID  string `gorm:"size:64;index;not null"`
	Category string `gorm:"size:32;not null"`
	Code     string `gorm:"size:64;not null"`
	Label    string `gorm:"size:255"`
}

type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

// Promotion.Value is a percentage for PERCENT and a major-unit amount for FIXED.
type Promotion struct {
	Code         string          `gorm:"primaryKey;size:64;not null"`
	DiscountType DiscountType    `gorm:"size:16;not null"`
	Value        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	StartsAt     *time.Time
	EndsAt       *time.Time
	Active       bool `gorm:"not null"`
	CreatedAt    time.Time
}

type PromotionApplication struct {
	OrderID      string          `gorm:"primaryKey;size:64;not null"`
	Code         string          `gorm:"size:64;not null"`
	DiscountType DiscountType    `gorm:"size:16;not null"`
	Value        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Amount       int64           `gorm:"not null"`
	AppliedAt    time.Time
}

type DeliverySnapshot struct {
	OrderID      string `gorm:"primaryKey;size:64;not null"`
	FirstName    string `gorm:"size:128"`
	LastName     string `gorm:"size:128"`
	Email        string `gorm:"size:255;index"`
	Phone        string `gorm:"size:32"`
	AddressLine1 string `gorm:"size:255"`
	AddressLine2 string `gorm:"size:255"`
	Suburb       string `gorm:"size:128"`
	State        string `gorm:"size:32"`
	Postcode     string `gorm:"size:16"`
	Instructions string `gorm:"size:1000"`
	UpdatedAt    time.Time
}

type Customer struct {
	ID           string `gorm:"primaryKey;size:64;not null"`
	Email        string `gorm:"size:255;index"`
	Phone        string `gorm:"size:32;index"`
	FirstName    string `gorm:"size:128"`
	LastName     string `gorm:"size:128"`
	AddressLine1 string `gorm:"size:255"`
	AddressLine2 string `gorm:"size:255"`
	Suburb       string `gorm:"size:128"`
	State        string `gorm:"size:32"`
	Postcode     string `gorm:"size:16"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ExportStatus string

const (
	ExportPending ExportStatus = "PENDING"
	ExportQueued  ExportStatus = "QUEUED"
	ExportSent    ExportStatus = "SENT"
	ExportFailed  ExportStatus = "FAILED"
)

// OrderConfirmation caches the canonical read model of an order plus export/email bookkeeping.
type OrderConfirmation struct {
	OrderID        string         `gorm:"primaryKey;size:64;not null"`
	Version        string         `gorm:"size:16;not null"`
	Payload        datatypes.JSON `gorm:"not null"`
	Checksum       string         `gorm:"size:64;not null"`
	ExportStatus   ExportStatus   `gorm:"size:16;index;not null;default:PENDING"`
	ExportAttempts int            `gorm:"not null;default:0"`
	ExternalID     string         `gorm:"size:128"`
	ExportedAt     *time.Time
	EmailSentAt    *time.Time
	EmailAttempts  int    `gorm:"not null;default:0"`
	LastError      string `gorm:"size:2000"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
