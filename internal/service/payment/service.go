package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/pricing"
)

// Store is durable payment storage. UpdateStatusIf, ClaimSettlement and
// ClaimRefund are compare-and-swap writes: they report false when the stored row no longer
// matches what the caller expected.
type Store interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, t domain.Transition) (bool, error)
	ClaimSettlement(ctx context.Context, id uuid.UUID, chargeRef string) (bool, error)
	ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]domain.Payment, int, error)
	ListByStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.Payment, error)
	ClaimRefund(ctx context.Context, id uuid.UUID, operator string) (bool, error)
	ReleaseRefund(ctx context.Context, id uuid.UUID, reason string) error
	Events(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error)
}

type amountCalculator interface {
	Calculate(credits int64) (*pricing.Breakdown, error)
}

type assetRegistry interface {
	Supports(c domain.Chain, t domain.Token) bool
	VaultAddress(c domain.Chain) (string, error)
}

type BalanceOracle interface {
	Balance(ctx context.Context, c domain.Chain, t domain.Token, vault string) (decimal.Decimal, error)
}

// PayoutExecutor moves funds out of the vault. CheckPayout resolves the
// payout's configuration without sending anything, so configuration errors
// surface before a payment is reserved or claimed.
type PayoutExecutor interface {
	CheckPayout(ctx context.Context, c domain.Chain, t domain.Token, amount decimal.Decimal) error
	ExecutePayout(ctx context.Context, c domain.Chain, t domain.Token, vault, destination string, amount decimal.Decimal) (string, error)
}

type Refunder interface {
	RefundCharge(ctx context.Context, buyerID int64, chargeRef string) error
}

const (
	HistoryPageSize  = 5
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service is the payment state machine. It is the only writer of payment
// status.
type Service struct {
	store    Store
	calc     amountCalculator
	assets   assetRegistry
	oracle   BalanceOracle
	executor PayoutExecutor
	refunds  Refunder
}

func NewService(
	store Store,
	calc amountCalculator,
	assets assetRegistry,
	oracle BalanceOracle,
	executor PayoutExecutor,
	refunds Refunder,
) *Service {
	return &Service{
		store:    store,
		calc:     calc,
		assets:   assets,
		oracle:   oracle,
		executor: executor,
		refunds:  refunds,
	}
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: %w", err)
	}
	return p, nil
}

func (s *Service) PaymentEvents(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("PaymentEvents: %w", err)
	}
	events, err := s.store.Events(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("PaymentEvents: %w", err)
	}
	return events, nil
}

type Page struct {
	Payments   []domain.Payment
	Page       int
	TotalPages int
	Total      int
}

// ListBuyerPayments returns a buyer's history newest first, HistoryPageSize
// per page. Pages are 1-based; out-of-range pages come back empty.
func (s *Service) ListBuyerPayments(ctx context.Context, buyerID int64, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	payments, total, err := s.store.ListByBuyer(ctx, buyerID, HistoryPageSize, (page-1)*HistoryPageSize)
	if err != nil {
		return nil, fmt.Errorf("ListBuyerPayments: %w", err)
	}
	return &Page{
		Payments:   payments,
		Page:       page,
		TotalPages: (total + HistoryPageSize - 1) / HistoryPageSize,
		Total:      total,
	}, nil
}

// ListFailed returns failed payments, most recently failed first. This is
// the operator reconciliation queue.
func (s *Service) ListFailed(ctx context.Context, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	payments, err := s.store.ListByStatus(ctx, domain.PaymentStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("ListFailed: %w", err)
	}
	return payments, nil
}

// stateError maps a payment that is not PENDING to the error a duplicate
// confirmation should see.
func stateError(status domain.PaymentStatus) error {
	switch status {
	case domain.PaymentStatusCompleted:
		return &domain.StateError{Kind: domain.ErrAlreadyCompleted, Status: status}
	case domain.PaymentStatusProcessing:
		return &domain.StateError{Kind: domain.ErrAlreadyProcessing, Status: status}
	case domain.PaymentStatusFailed:
		return &domain.StateError{Kind: domain.ErrAlreadyFailed, Status: status}
	default:
		return &domain.StateError{Kind: domain.ErrInvalidState, Status: status}
	}
}
