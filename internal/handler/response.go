package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/starbridge/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	respondError(w, appErr, false, details)
}

func respondError(w http.ResponseWriter, appErr *AppError, retryable bool, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Retryable: retryable,
			Details:   details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// AppErrorFor maps a domain error kind to its HTTP representation. The
// settlement check comes first because a SettlementError also unwraps to its
// cause.
func AppErrorFor(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrSettlement):
		return ErrSettlementFailed
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrBelowMinimum):
		return ErrBelowMinimum
	case errors.Is(err, domain.ErrUnsupportedAsset):
		return ErrUnsupportedAsset
	case errors.Is(err, domain.ErrAmountMismatch):
		return ErrAmountMismatch
	case errors.Is(err, domain.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, domain.ErrAlreadyCompleted):
		return ErrAlreadyCompleted
	case errors.Is(err, domain.ErrAlreadyProcessing):
		return ErrAlreadyProcessing
	case errors.Is(err, domain.ErrAlreadyFailed):
		return ErrAlreadyFailed
	case errors.Is(err, domain.ErrInvalidState):
		return ErrInvalidState
	case errors.Is(err, domain.ErrDuplicateCharge):
		return ErrDuplicateCharge
	case errors.Is(err, domain.ErrRefundNotAllowed):
		return ErrRefundNotAllowed
	case errors.Is(err, domain.ErrNetwork):
		return ErrUpstreamUnavailable
	case errors.Is(err, domain.ErrConfiguration):
		return ErrMisconfigured
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	default:
		return ErrInternalError
	}
}

func RespondDomainError(w http.ResponseWriter, err error) {
	appErr := AppErrorFor(err)
	if appErr == ErrInternalError {
		slog.Error("unhandled domain error", "error", err)
	}
	respondError(w, appErr, domain.IsRetryable(err), domainErrorDetails(err))
}

// domainErrorDetails exposes the structured fields of detail errors so the
// chat front end can render them.
func domainErrorDetails(err error) any {
	var be *domain.BalanceError
	if errors.As(err, &be) {
		return map[string]string{
			"chain":     string(be.Chain),
			"token":     string(be.Token),
			"required":  be.Required.String(),
			"available": be.Available.String(),
		}
	}
	var me *domain.MismatchError
	if errors.As(err, &me) {
		return map[string]int64{"claimed": me.Claimed, "expected": me.Expected}
	}
	var se *domain.SettlementError
	if errors.As(err, &se) {
		d := map[string]string{"payment_id": se.PaymentID.String()}
		if se.TxRef != "" {
			d["tx_ref"] = se.TxRef
		}
		return d
	}
	return nil
}
