package model

import "time"

type PaymentKind string

const (
	KindCharge PaymentKind = "CHARGE"
	KindRefund PaymentKind = "REFUND"
)

type PaymentPurpose string

const (
	PurposeFull    PaymentPurpose = "FULL"
	PurposeDeposit PaymentPurpose = "DEPOSIT"
	PurposeBalance PaymentPurpose = "BALANCE"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentFailed
}

const MethodUnknown = "unknown"

// Payment is one attempted money movement. Amount is in minor units and always positive;
// Kind decides whether it adds to or subtracts from the order's paid amount.
type Payment struct {
	ID                string         `gorm:"primaryKey;size:64;not null"`
	OrderID           string         `gorm:"size:64;index;not null"`
	Kind              PaymentKind    `gorm:"size:16;not null"`
	Purpose           PaymentPurpose `gorm:"size:16;not null"`
	Method            string         `gorm:"size:32"`
	Status            PaymentStatus  `gorm:"size:16;index;not null"`
	Amount            int64          `gorm:"not null"`
	Currency          string         `gorm:"size:8;not null"`
	CheckoutSessionID string         `gorm:"size:255;index"`
	PaymentIntentID   string         `gorm:"size:255;index"`
	ExternalRefundID  *string        `gorm:"size:255;uniqueIndex"`
	FailureReason     string         `gorm:"size:1000"`
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
