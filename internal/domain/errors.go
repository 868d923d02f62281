package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvalidAmount           = errors.New("credits must be greater than zero")
	ErrBelowMinimum            = errors.New("amount below minimum")
	ErrUnsupportedAsset        = errors.New("unsupported chain or token")
	ErrAmountMismatch          = errors.New("claimed total does not match payment")
	ErrInsufficientBalance     = errors.New("insufficient vault balance")
	ErrAlreadyCompleted        = errors.New("payment already completed")
	ErrAlreadyProcessing       = errors.New("payment already processing")
	ErrAlreadyFailed           = errors.New("payment already failed")
	ErrInvalidState            = errors.New("invalid payment state")
	ErrSettlement              = errors.New("settlement failed")
	ErrNetwork                 = errors.New("network error")
	ErrConfiguration           = errors.New("configuration error")
	ErrDuplicateCharge         = errors.New("charge already bound to another payment")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrRefundNotAllowed        = errors.New("refund not allowed")
)

// IsRetryable reports whether err is a transient failure the caller may retry.
// Retry policy itself belongs to the caller. A failed settlement is never
// retryable even when its cause was a network error.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrSettlement) {
		return false
	}
	return errors.Is(err, ErrNetwork)
}

type BalanceError struct {
	Chain     Chain
	Token     Token
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s: %s on %s: required %s, available %s",
		ErrInsufficientBalance, e.Token, e.Chain, e.Required, e.Available)
}

func (e *BalanceError) Unwrap() error { return ErrInsufficientBalance }

type MismatchError struct {
	Claimed  int64
	Expected int64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: claimed %d, expected %d", ErrAmountMismatch, e.Claimed, e.Expected)
}

func (e *MismatchError) Unwrap() error { return ErrAmountMismatch }

// StateError is returned when a payment is not in a state the operation can
// act on. Kind is one of the ErrAlready* sentinels or ErrInvalidState.
type StateError struct {
	Kind   error
	Status PaymentStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s (status %s)", e.Kind, e.Status)
}

func (e *StateError) Unwrap() error { return e.Kind }

// SettlementError carries what an operator needs to reconcile a failed payout.
// TxRef is set when a transaction was broadcast but its outcome is unknown or
// reverted.
type SettlementError struct {
	PaymentID   uuid.UUID
	Chain       Chain
	Token       Token
	Destination string
	Amount      decimal.Decimal
	ChargeRef   string
	TxRef       string
	Err         error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("%s: payment %s: %v", ErrSettlement, e.PaymentID, e.Err)
}

func (e *SettlementError) Unwrap() []error {
	return []error{ErrSettlement, e.Err}
}
