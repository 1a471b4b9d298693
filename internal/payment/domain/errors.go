package domain

import "errors"

var (
	ErrValidation          = errors.New("validation error")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNotFoundOrExpired   = errors.New("payment reference not found or expired")
	ErrAmountMismatch      = errors.New("amount mismatch")
	ErrInvalidSignature    = errors.New("invalid integrity signature")
	ErrTransactionMismatch = errors.New("gateway transaction does not match the prepared intent")
	ErrTransactionNotFound = errors.New("gateway transaction not found")
	ErrUpstreamUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected     = errors.New("payment gateway rejected the request")
	ErrInvalidChecksum     = errors.New("invalid webhook checksum")
	ErrReferenceCollision  = errors.New("payment reference already registered")
)
