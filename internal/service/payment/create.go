package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/starbridge/internal/chain"
	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

// CreateRequest carries the buyer's selections made before checkout. It is
// passed by value; nothing about an in-progress checkout is kept in the
// service.
type CreateRequest struct {
	BuyerID     int64
	Destination string
	Chain       domain.Chain
	Token       domain.Token
	Credits     int64
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Payment, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	b, err := s.calc.Calculate(req.Credits)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:          uuid.New(),
		BuyerID:     req.BuyerID,
		Destination: strings.TrimSpace(req.Destination),
		Chain:       req.Chain,
		Token:       req.Token,
		Credits:     req.Credits,
		GrossAmount: b.GrossAmount,
		FeeAmount:   b.TotalFees,
		Amount:      b.Amount,
		Status:      domain.PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	_, log := logging.WithPayment(ctx, p.ID)
	log.Info("payment created",
		"buyer_id", p.BuyerID,
		"chain", p.Chain,
		"token", p.Token,
		"credits", p.Credits,
		"amount", p.Amount.String(),
	)
	return p, nil
}

func (s *Service) validateCreate(req CreateRequest) error {
	if req.BuyerID == 0 {
		return fmt.Errorf("buyer id required: %w", domain.ErrInvalidRequest)
	}
	if !chain.IsAddress(strings.TrimSpace(req.Destination)) {
		return fmt.Errorf("destination %q is not a wallet address: %w", req.Destination, domain.ErrInvalidRequest)
	}
	if !req.Chain.IsValid() || !req.Token.IsValid() || !s.assets.Supports(req.Chain, req.Token) {
		return fmt.Errorf("%s on %s: %w", req.Token, req.Chain, domain.ErrUnsupportedAsset)
	}
	if req.Credits <= 0 {
		return fmt.Errorf("credits must be positive: %w", domain.ErrInvalidAmount)
	}
	return nil
}
