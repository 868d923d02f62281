package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

// RequestRefund asks the gateway to refund the buyer's charge for a failed
// payment. It is operator-triggered only; settlement failures never refund
// automatically. The payment stays FAILED.
//
// The refund is claimed on the payment before the gateway is called, so
// concurrent requests reach the gateway once. A rejected or unreachable
// gateway releases the claim and the operator may try again.
func (s *Service) RequestRefund(ctx context.Context, id uuid.UUID, operator string) (*domain.Payment, error) {
	ctx, log := logging.WithPayment(ctx, id)

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("RequestRefund: %w", err)
	}
	if p.Status != domain.PaymentStatusFailed {
		return nil, fmt.Errorf("RequestRefund: payment is %s: %w", p.Status, domain.ErrRefundNotAllowed)
	}
	if p.ChargeRef == nil || *p.ChargeRef == "" {
		return nil, fmt.Errorf("RequestRefund: no charge to refund: %w", domain.ErrRefundNotAllowed)
	}
	if p.RefundRequestedAt != nil {
		return nil, fmt.Errorf("RequestRefund: already requested at %s: %w", p.RefundRequestedAt.Format(time.RFC3339), domain.ErrRefundNotAllowed)
	}

	claimed, err := s.store.ClaimRefund(ctx, id, operator)
	if err != nil {
		return nil, fmt.Errorf("RequestRefund: %w", err)
	}
	if !claimed {
		log.Info("refund claimed by another request", "operator", operator)
		return nil, fmt.Errorf("RequestRefund: already requested: %w", domain.ErrRefundNotAllowed)
	}

	if err := s.refunds.RefundCharge(ctx, p.BuyerID, *p.ChargeRef); err != nil {
		log.Error("refund request failed", "charge_ref", *p.ChargeRef, "error", err)
		if relErr := s.store.ReleaseRefund(context.WithoutCancel(ctx), id, err.Error()); relErr != nil {
			log.Error("refund claim not released", "charge_ref", *p.ChargeRef, "error", relErr)
		}
		return nil, fmt.Errorf("RequestRefund: %w", err)
	}

	now := time.Now().UTC()
	p.RefundRequestedAt = &now
	log.Info("refund requested", "operator", operator, "charge_ref", *p.ChargeRef)
	return p, nil
}
