package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/starbridge/internal/auth"
	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
	"github.com/josh-kwaku/starbridge/internal/pricing"
	"github.com/josh-kwaku/starbridge/internal/service/payment"
)

type paymentService interface {
	Create(ctx context.Context, req payment.CreateRequest) (*domain.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	PaymentEvents(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error)
	ListBuyerPayments(ctx context.Context, buyerID int64, page int) (*payment.Page, error)
	ListFailed(ctx context.Context, limit int) ([]domain.Payment, error)
	RequestRefund(ctx context.Context, id uuid.UUID, operator string) (*domain.Payment, error)
}

type quoter interface {
	Calculate(credits int64) (*pricing.Breakdown, error)
	MinimumCredits() int64
}

type txExplorer interface {
	ExplorerTxURL(c domain.Chain, txRef string) string
}

type PaymentHandler struct {
	payments paymentService
	quotes   quoter
	explorer txExplorer
}

func NewPaymentHandler(payments paymentService, quotes quoter, explorer txExplorer) *PaymentHandler {
	return &PaymentHandler{payments: payments, quotes: quotes, explorer: explorer}
}

type createPaymentRequest struct {
	BuyerID     int64  `json:"buyer_id"`
	Destination string `json:"destination"`
	Chain       string `json:"chain"`
	Token       string `json:"token"`
	Credits     int64  `json:"credits"`
}

func (r createPaymentRequest) Validate() []FieldError {
	var errs []FieldError

	if r.BuyerID == 0 {
		errs = append(errs, FieldError{Field: "buyer_id", Message: "required"})
	}
	if r.Destination == "" {
		errs = append(errs, FieldError{Field: "destination", Message: "required"})
	}
	if r.Chain == "" {
		errs = append(errs, FieldError{Field: "chain", Message: "required"})
	} else if _, ok := domain.ParseChain(r.Chain); !ok {
		errs = append(errs, FieldError{Field: "chain", Message: "must be bsc or opbnb"})
	}
	if r.Token == "" {
		errs = append(errs, FieldError{Field: "token", Message: "required"})
	} else if _, ok := domain.ParseToken(r.Token); !ok {
		errs = append(errs, FieldError{Field: "token", Message: "must be USDT or USDC"})
	}
	if r.Credits <= 0 {
		errs = append(errs, FieldError{Field: "credits", Message: "must be greater than 0"})
	}

	return errs
}

type paymentDTO struct {
	ID                uuid.UUID       `json:"id"`
	BuyerID           int64           `json:"buyer_id"`
	Status            string          `json:"status"`
	Destination       string          `json:"destination"`
	Chain             string          `json:"chain"`
	Token             string          `json:"token"`
	Credits           int64           `json:"credits"`
	GrossAmount       decimal.Decimal `json:"gross_amount"`
	FeeAmount         decimal.Decimal `json:"fee_amount"`
	Amount            decimal.Decimal `json:"amount"`
	ChargeRef         *string         `json:"charge_ref,omitempty"`
	SettlementTxRef   *string         `json:"settlement_tx_ref,omitempty"`
	ExplorerURL       string          `json:"explorer_url,omitempty"`
	FailureReason     *string         `json:"failure_reason,omitempty"`
	RefundRequestedAt *time.Time      `json:"refund_requested_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

func (h *PaymentHandler) toPaymentDTO(p *domain.Payment) paymentDTO {
	dto := paymentDTO{
		ID:                p.ID,
		BuyerID:           p.BuyerID,
		Status:            string(p.Status),
		Destination:       p.Destination,
		Chain:             string(p.Chain),
		Token:             string(p.Token),
		Credits:           p.Credits,
		GrossAmount:       p.GrossAmount,
		FeeAmount:         p.FeeAmount,
		Amount:            p.Amount,
		ChargeRef:         p.ChargeRef,
		SettlementTxRef:   p.SettlementTxRef,
		FailureReason:     p.FailureReason,
		RefundRequestedAt: p.RefundRequestedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		CompletedAt:       p.CompletedAt,
	}
	if p.SettlementTxRef != nil && h.explorer != nil {
		dto.ExplorerURL = h.explorer.ExplorerTxURL(p.Chain, *p.SettlementTxRef)
	}
	return dto
}

func (h *PaymentHandler) toPaymentDTOs(ps []domain.Payment) []paymentDTO {
	out := make([]paymentDTO, 0, len(ps))
	for i := range ps {
		out = append(out, h.toPaymentDTO(&ps[i]))
	}
	return out
}

type paymentEventDTO struct {
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	c, _ := domain.ParseChain(req.Chain)
	t, _ := domain.ParseToken(req.Token)
	p, err := h.payments.Create(r.Context(), payment.CreateRequest{
		BuyerID:     req.BuyerID,
		Destination: req.Destination,
		Chain:       c,
		Token:       t,
		Credits:     req.Credits,
	})
	if err != nil {
		log.Warn("payment creation failed", "buyer_id", req.BuyerID, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, h.toPaymentDTO(p))
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.GetPayment(r.Context(), paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, h.toPaymentDTO(p))
}

func (h *PaymentHandler) Events(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	events, err := h.payments.PaymentEvents(r.Context(), paymentID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]paymentEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, paymentEventDTO{
			EventType: string(e.EventType),
			Actor:     e.Actor,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *PaymentHandler) BuyerHistory(w http.ResponseWriter, r *http.Request) {
	buyerID, err := strconv.ParseInt(r.PathValue("buyer_id"), 10, 64)
	if err != nil || buyerID == 0 {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			RespondValidationError(w, []FieldError{{Field: "page", Message: "must be a positive integer"}})
			return
		}
	}

	result, err := h.payments.ListBuyerPayments(r.Context(), buyerID, page)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"payments":    h.toPaymentDTOs(result.Payments),
		"page":        result.Page,
		"total_pages": result.TotalPages,
		"total":       result.Total,
	})
}

func (h *PaymentHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be a positive integer"}})
			return
		}
		limit = n
	}

	payments, err := h.payments.ListFailed(r.Context(), limit)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, h.toPaymentDTOs(payments))
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	ctx, log := logging.WithPayment(r.Context(), paymentID)
	p, err := h.payments.RequestRefund(ctx, paymentID, claims.Subject)
	if err != nil {
		log.Warn("refund request failed", "operator", claims.Subject, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusAccepted, h.toPaymentDTO(p))
}

// Quote prices a credit amount without creating a payment so the buyer can
// see fees before checkout.
func (h *PaymentHandler) Quote(w http.ResponseWriter, r *http.Request) {
	credits, err := strconv.ParseInt(r.URL.Query().Get("credits"), 10, 64)
	if err != nil || credits <= 0 {
		RespondValidationError(w, []FieldError{{Field: "credits", Message: "must be a positive integer"}})
		return
	}

	b, err := h.quotes.Calculate(credits)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"credits":         b.Credits,
		"gross_amount":    b.GrossAmount,
		"operational_fee": b.OperationalFee,
		"percentage_fee":  b.PercentageFee,
		"total_fees":      b.TotalFees,
		"amount":          b.Amount,
		"minimum_credits": h.quotes.MinimumCredits(),
	})
}
