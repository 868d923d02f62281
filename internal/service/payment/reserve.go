package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

// ValidateAndReserve answers a gateway pre-checkout query. On success the
// payment moves PENDING -> PROCESSING and the caller should approve the
// charge. Every error leaves the payment as it was.
func (s *Service) ValidateAndReserve(ctx context.Context, id uuid.UUID, claimedTotal int64) (*domain.Payment, error) {
	ctx, log := logging.WithPayment(ctx, id)

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ValidateAndReserve: %w", err)
	}

	if p.Status != domain.PaymentStatusPending {
		log.Info("confirmation for non-pending payment", "status", p.Status)
		return nil, fmt.Errorf("ValidateAndReserve: %w", stateError(p.Status))
	}

	if claimedTotal != p.Credits {
		log.Warn("claimed total mismatch", "claimed", claimedTotal, "expected", p.Credits)
		return nil, fmt.Errorf("ValidateAndReserve: %w", &domain.MismatchError{Claimed: claimedTotal, Expected: p.Credits})
	}

	vault, err := s.assets.VaultAddress(p.Chain)
	if err != nil {
		log.Error("vault not configured", "chain", p.Chain, "error", err)
		return nil, fmt.Errorf("ValidateAndReserve: %w", err)
	}

	if err := s.executor.CheckPayout(ctx, p.Chain, p.Token, p.Amount); err != nil {
		log.Error("payout not possible", "chain", p.Chain, "token", p.Token, "amount", p.Amount.String(), "error", err)
		return nil, fmt.Errorf("ValidateAndReserve: %w", err)
	}

	balance, err := s.oracle.Balance(ctx, p.Chain, p.Token, vault)
	if err != nil {
		log.Error("vault balance check failed", "chain", p.Chain, "token", p.Token, "error", err)
		return nil, fmt.Errorf("ValidateAndReserve: %w", err)
	}

	if balance.LessThan(p.Amount) {
		log.Warn("insufficient vault balance",
			"chain", p.Chain, "token", p.Token,
			"required", p.Amount.String(), "available", balance.String())
		return nil, fmt.Errorf("ValidateAndReserve: %w", &domain.BalanceError{
			Chain: p.Chain, Token: p.Token, Required: p.Amount, Available: balance,
		})
	}

	payload := mustJSON(map[string]any{
		"claimed_total": claimedTotal,
		"vault_balance": balance.String(),
	})
	ok, err := s.store.UpdateStatusIf(ctx, id, domain.Transition{
		Expected: domain.PaymentStatusPending,
		Next:     domain.PaymentStatusProcessing,
		Actor:    "gateway",
		Payload:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("ValidateAndReserve: %w", err)
	}
	if !ok {
		// Lost the race: report whatever the winner left behind.
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("ValidateAndReserve: %w", err)
		}
		log.Info("reservation lost to concurrent confirmation", "status", current.Status)
		return nil, fmt.Errorf("ValidateAndReserve: %w", stateError(current.Status))
	}

	p.Status = domain.PaymentStatusProcessing
	log.Info("payment reserved", "amount", p.Amount.String(), "vault_balance", balance.String())
	return p, nil
}
