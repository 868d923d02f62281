package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

// Settle pays out a PROCESSING payment once the gateway reports the charge
// captured. The payout runs at most once per payment: only the caller that
// wins ClaimSettlement reaches the executor. A COMPLETED payment is returned
// as is.
//
// Once the claim is won, caller cancellation no longer applies. The payout
// and its outcome write run to completion because a sent payout cannot be
// recalled.
func (s *Service) Settle(ctx context.Context, id uuid.UUID, chargeRef string) (*domain.Payment, error) {
	ctx, log := logging.WithPayment(ctx, id)

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Settle: %w", err)
	}

	switch {
	case p.Status == domain.PaymentStatusCompleted:
		log.Info("settlement already completed", "tx_ref", deref(p.SettlementTxRef))
		return p, nil
	case p.Status != domain.PaymentStatusProcessing:
		log.Warn("settlement requested in wrong state", "status", p.Status)
		return nil, fmt.Errorf("Settle: %w", &domain.StateError{Kind: domain.ErrInvalidState, Status: p.Status})
	case p.SettlementStartedAt != nil:
		log.Warn("settlement already in flight", "started_at", p.SettlementStartedAt)
		return nil, fmt.Errorf("Settle: in flight: %w", &domain.StateError{Kind: domain.ErrInvalidState, Status: p.Status})
	}

	vault, err := s.assets.VaultAddress(p.Chain)
	if err != nil {
		log.Error("vault not configured", "chain", p.Chain, "error", err)
		return nil, fmt.Errorf("Settle: %w", err)
	}
	if err := s.executor.CheckPayout(ctx, p.Chain, p.Token, p.Amount); err != nil {
		log.Error("payout not possible", "chain", p.Chain, "token", p.Token, "error", err)
		return nil, fmt.Errorf("Settle: %w", err)
	}

	claimed, err := s.store.ClaimSettlement(ctx, id, chargeRef)
	if err != nil {
		return nil, fmt.Errorf("Settle: %w", err)
	}
	if !claimed {
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("Settle: %w", err)
		}
		if current.Status == domain.PaymentStatusCompleted {
			return current, nil
		}
		log.Info("settlement claimed by another caller", "status", current.Status)
		return nil, fmt.Errorf("Settle: claim lost: %w", &domain.StateError{Kind: domain.ErrInvalidState, Status: current.Status})
	}
	if chargeRef != "" {
		p.ChargeRef = &chargeRef
	}

	ctx = context.WithoutCancel(ctx)
	log.Info("settlement started",
		"chain", p.Chain, "token", p.Token,
		"destination", p.Destination, "amount", p.Amount.String())

	txRef, err := s.executor.ExecutePayout(ctx, p.Chain, p.Token, vault, p.Destination, p.Amount)
	if err != nil {
		return nil, s.failSettlement(ctx, p, txRef, err)
	}

	now := time.Now().UTC()
	ok, err := s.store.UpdateStatusIf(ctx, id, domain.Transition{
		Expected:        domain.PaymentStatusProcessing,
		Next:            domain.PaymentStatusCompleted,
		SettlementTxRef: &txRef,
		CompletedAt:     &now,
		Actor:           "system",
		Payload:         mustJSON(map[string]string{"tx_ref": txRef}),
	})
	if err != nil {
		// The payout went out. The claim keeps the payment from being paid
		// again; an operator has to record the outcome.
		log.Error("payout sent but completion not recorded", "tx_ref", txRef, "error", err)
		return nil, fmt.Errorf("Settle: record completion of %s: %w", txRef, err)
	}
	if !ok {
		log.Error("payout sent but payment left processing", "tx_ref", txRef)
		return nil, fmt.Errorf("Settle: record completion of %s: %w", txRef,
			&domain.StateError{Kind: domain.ErrInvalidState, Status: p.Status})
	}

	p.Status = domain.PaymentStatusCompleted
	p.SettlementTxRef = &txRef
	p.CompletedAt = &now
	p.SettlementStartedAt = &now
	log.Info("settlement completed", "tx_ref", txRef)
	return p, nil
}

// failSettlement records FAILED and builds the error an operator reconciles
// from. txRef is set when a transaction was broadcast before the failure.
func (s *Service) failSettlement(ctx context.Context, p *domain.Payment, txRef string, cause error) error {
	log := logging.FromContext(ctx)

	reason := cause.Error()
	now := time.Now().UTC()
	payload := map[string]string{"error": reason}
	if txRef != "" {
		payload["tx_ref"] = txRef
	}

	settleErr := &domain.SettlementError{
		PaymentID:   p.ID,
		Chain:       p.Chain,
		Token:       p.Token,
		Destination: p.Destination,
		Amount:      p.Amount,
		ChargeRef:   deref(p.ChargeRef),
		TxRef:       txRef,
		Err:         cause,
	}

	ok, err := s.store.UpdateStatusIf(ctx, p.ID, domain.Transition{
		Expected:      domain.PaymentStatusProcessing,
		Next:          domain.PaymentStatusFailed,
		FailureReason: &reason,
		CompletedAt:   &now,
		Actor:         "system",
		Payload:       mustJSON(payload),
	})
	switch {
	case err != nil:
		log.Error("settlement failure not recorded", "tx_ref", txRef, "cause", cause, "error", err)
		settleErr.Err = errors.Join(cause, err)
	case !ok:
		log.Error("settlement failure not recorded: payment no longer processing", "tx_ref", txRef, "cause", cause)
	default:
		p.Status = domain.PaymentStatusFailed
		p.FailureReason = &reason
		p.CompletedAt = &now
	}

	log.Error("settlement failed",
		"chain", p.Chain, "token", p.Token,
		"destination", p.Destination, "amount", p.Amount.String(),
		"charge_ref", deref(p.ChargeRef), "tx_ref", txRef,
		"retryable_cause", domain.IsRetryable(cause),
		"error", cause,
	)
	return fmt.Errorf("Settle: %w", settleErr)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
