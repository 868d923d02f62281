package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Operator role required"}
	ErrInvalidSignature = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Credits must be greater than zero"}
	ErrBelowMinimum        = &AppError{http.StatusUnprocessableEntity, "BELOW_MINIMUM", "Amount is below the minimum payout"}
	ErrUnsupportedAsset    = &AppError{http.StatusUnprocessableEntity, "UNSUPPORTED_ASSET", "Chain or token is not supported"}
	ErrAmountMismatch      = &AppError{http.StatusUnprocessableEntity, "AMOUNT_MISMATCH", "Claimed total does not match the payment"}
	ErrInsufficientBalance = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Vault balance is insufficient"}
	ErrAlreadyCompleted    = &AppError{http.StatusConflict, "ALREADY_COMPLETED", "Payment is already completed"}
	ErrAlreadyProcessing   = &AppError{http.StatusConflict, "ALREADY_PROCESSING", "Payment is already processing"}
	ErrAlreadyFailed       = &AppError{http.StatusConflict, "ALREADY_FAILED", "Payment has already failed"}
	ErrInvalidState        = &AppError{http.StatusConflict, "INVALID_STATE", "Payment is not in a state that allows this operation"}
	ErrDuplicateCharge     = &AppError{http.StatusConflict, "DUPLICATE_CHARGE", "Charge is already bound to another payment"}
	ErrRefundNotAllowed    = &AppError{http.StatusConflict, "REFUND_NOT_ALLOWED", "Payment cannot be refunded"}
	ErrSettlementFailed    = &AppError{http.StatusBadGateway, "SETTLEMENT_FAILED", "Settlement failed and needs reconciliation"}
	ErrUpstreamUnavailable = &AppError{http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "An upstream dependency is unavailable, retry later"}
	ErrMisconfigured       = &AppError{http.StatusServiceUnavailable, "MISCONFIGURED", "Service is not configured for this asset"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInFlight   = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_FLIGHT", "A request with this Idempotency-Key is still being processed"}
)
