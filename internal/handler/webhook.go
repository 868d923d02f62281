package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

// creditCurrency is the only currency the gateway charges in.
const creditCurrency = "XTR"

type webhookEventRepository interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
}

type reserver interface {
	ValidateAndReserve(ctx context.Context, id uuid.UUID, claimedTotal int64) (*domain.Payment, error)
}

type WebhookHandler struct {
	webhooks webhookEventRepository
	payments reserver
	secret   string
}

func NewWebhookHandler(webhooks webhookEventRepository, payments reserver, secret string) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, payments: payments, secret: secret}
}

type preCheckoutPayload struct {
	QueryID     string `json:"query_id"`
	PaymentID   string `json:"payment_id"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
}

func (p preCheckoutPayload) validate() []FieldError {
	var errs []FieldError

	if p.QueryID == "" {
		errs = append(errs, FieldError{Field: "query_id", Message: "required"})
	}
	if p.PaymentID == "" {
		errs = append(errs, FieldError{Field: "payment_id", Message: "required"})
	} else if _, err := uuid.Parse(p.PaymentID); err != nil {
		errs = append(errs, FieldError{Field: "payment_id", Message: "must be a valid UUID"})
	}
	if p.TotalAmount <= 0 {
		errs = append(errs, FieldError{Field: "total_amount", Message: "must be greater than 0"})
	}
	if p.Currency != creditCurrency {
		errs = append(errs, FieldError{Field: "currency", Message: "must be " + creditCurrency})
	}

	return errs
}

type preCheckoutAnswer struct {
	QueryID  string `json:"query_id"`
	Approved bool   `json:"approved"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

type completionPayload struct {
	EventID     string `json:"event_id"`
	PaymentID   string `json:"payment_id"`
	ChargeRef   string `json:"charge_ref"`
	TotalAmount int64  `json:"total_amount"`
}

func (p completionPayload) validate() []FieldError {
	var errs []FieldError

	if p.EventID == "" {
		errs = append(errs, FieldError{Field: "event_id", Message: "required"})
	}
	if p.PaymentID == "" {
		errs = append(errs, FieldError{Field: "payment_id", Message: "required"})
	} else if _, err := uuid.Parse(p.PaymentID); err != nil {
		errs = append(errs, FieldError{Field: "payment_id", Message: "must be a valid UUID"})
	}
	if p.ChargeRef == "" {
		errs = append(errs, FieldError{Field: "charge_ref", Message: "required"})
	}

	return errs
}

// PreCheckout answers the gateway's approval request. Every decision, including
// a rejection, is a 200 with approved set accordingly; only a bad signature is
// refused outright.
func (h *WebhookHandler) PreCheckout(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, ok := h.readSigned(w, r)
	if !ok {
		return
	}

	var payload preCheckoutPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse pre-checkout payload", "error", err)
		RespondJSON(w, http.StatusOK, preCheckoutAnswer{Code: ErrInvalidRequest.Code, Message: ErrInvalidRequest.Message})
		return
	}
	answer := preCheckoutAnswer{QueryID: payload.QueryID}

	if fields := payload.validate(); len(fields) > 0 {
		log.Warn("pre-checkout rejected", "query_id", payload.QueryID, "fields", fields)
		answer.Code = ErrValidationFailed.Code
		answer.Message = ErrValidationFailed.Message
		RespondJSON(w, http.StatusOK, answer)
		return
	}

	paymentID := uuid.MustParse(payload.PaymentID)
	ctx, log := logging.WithPayment(r.Context(), paymentID)

	if _, err := h.payments.ValidateAndReserve(ctx, paymentID, payload.TotalAmount); err != nil {
		appErr := AppErrorFor(err)
		log.Warn("pre-checkout declined",
			"query_id", payload.QueryID,
			"code", appErr.Code,
			"error", err,
		)
		answer.Code = appErr.Code
		answer.Message = appErr.Message
		RespondJSON(w, http.StatusOK, answer)
		return
	}

	log.Info("pre-checkout approved", "query_id", payload.QueryID, "total_amount", payload.TotalAmount)
	answer.Approved = true
	RespondJSON(w, http.StatusOK, answer)
}

// ReceivePayment stores a completion notification for the completion
// processor. A repeated gateway event id is acknowledged without storing it
// again.
func (h *WebhookHandler) ReceivePayment(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, ok := h.readSigned(w, r)
	if !ok {
		return
	}

	var payload completionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse payment webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	event := &domain.WebhookEvent{
		ID:             uuid.New(),
		IdempotencyKey: payload.EventID,
		EventType:      domain.WebhookEventTypeChargeCaptured,
		Payload:        body,
		Status:         domain.WebhookEventStatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.webhooks.Create(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			log.Info("duplicate webhook received", "event_id", payload.EventID, "payment_id", payload.PaymentID)
			RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_received"})
			return
		}
		log.Error("failed to store webhook event", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	log.Info("webhook event stored",
		"webhook_event_id", event.ID,
		"gateway_event_id", payload.EventID,
		"payment_id", payload.PaymentID,
		"charge_ref", payload.ChargeRef,
	)

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *WebhookHandler) readSigned(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return nil, false
	}

	sig := r.Header.Get("X-Webhook-Signature")
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("webhook signature verification failed", "path", r.URL.Path)
		RespondAppError(w, ErrInvalidSignature, nil)
		return nil, false
	}
	return body, true
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
