package service

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrPackageNotFound   = errors.New("package option not found")
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrNoPromotion       = errors.New("order has no promotion applied")
	ErrOrderClosed       = errors.New("order can no longer be changed")
	ErrInvalidStatus     = errors.New("invalid order status transition")
	ErrNoConfirmation    = errors.New("order has no confirmation snapshot yet")
	ErrNoRecipient       = errors.New("order has no email recipient")
)
