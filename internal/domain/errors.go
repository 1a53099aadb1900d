package domain

import "errors"

// Validation errors: caught before anything reaches the gateway.
var (
	ErrNoOptionSelected    = errors.New("no option selected")
	ErrNoOutcomeSelected   = errors.New("no outcome selected for nested market")
	ErrAmountOutOfBounds   = errors.New("amount outside market min/max")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// User-cancelled: reported verbatim, never retried automatically.
var ErrUserCancelled = errors.New("transaction rejected by user")

// Contract-rejected: mapped to specific user-facing messages.
var (
	ErrMarketExpired  = errors.New("market has expired")
	ErrMarketResolved = errors.New("market already resolved")
	ErrMarketInactive = errors.New("market is not active")
	ErrInvalidOption  = errors.New("invalid option for market")
)

// Transient infrastructure: degrade gracefully, always user-retryable.
var (
	ErrDecryptionUnavailable = errors.New("decryption capability unavailable")
	ErrEncryptionNotReady    = errors.New("encryption capability not ready")
	ErrGatewayUnavailable    = errors.New("market gateway unavailable")
	ErrBalanceUnknown        = errors.New("balance unknown")
)

// General.
var (
	ErrNotFound = errors.New("not found")
	ErrLockHeld = errors.New("lock already held")
)
