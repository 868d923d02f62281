package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

// maxCompletionAttempts bounds how often an inbox row is retried before it is
// parked as failed for an operator.
const maxCompletionAttempts = 20

type inbox interface {
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]domain.WebhookEvent, error)
	Release(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus) error
}

type settler interface {
	Settle(ctx context.Context, id uuid.UUID, chargeRef string) (*domain.Payment, error)
}

// CompletionProcessor drains stored completion notifications and settles the
// payments they name.
type CompletionProcessor struct {
	inbox     inbox
	payments  settler
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	lease     time.Duration
}

func NewCompletionProcessor(
	inbox inbox,
	payments settler,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
	lease time.Duration,
) *CompletionProcessor {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &CompletionProcessor{
		inbox:     inbox,
		payments:  payments,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		lease:     lease,
	}
}

func (p *CompletionProcessor) Start(ctx context.Context) {
	p.logger.Info("completion processor started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("completion processor stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *CompletionProcessor) poll(ctx context.Context) {
	events, err := p.inbox.ClaimPending(ctx, p.batchSize, p.lease)
	if err != nil {
		p.logger.Error("failed to claim pending completion events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error("failed to process completion event",
				"webhook_event_id", event.ID,
				"error", err,
			)
		}
	}
}

// CompletionPayload is the body of a gateway payment notification.
type CompletionPayload struct {
	EventID     string `json:"event_id"`
	PaymentID   string `json:"payment_id"`
	ChargeRef   string `json:"charge_ref"`
	TotalAmount int64  `json:"total_amount"`
}

func (p *CompletionProcessor) processEvent(ctx context.Context, event domain.WebhookEvent) error {
	log := p.logger.With("webhook_event_id", event.ID)

	var payload CompletionPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		log.Error("malformed completion payload", "error", err)
		return p.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}

	paymentID, err := uuid.Parse(payload.PaymentID)
	if err != nil {
		log.Error("invalid payment_id in completion", "payment_id", payload.PaymentID)
		return p.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}

	log = log.With("payment_id", paymentID, "charge_ref", payload.ChargeRef)
	settled, err := p.payments.Settle(logging.WithLogger(ctx, log), paymentID, payload.ChargeRef)
	switch {
	case err == nil:
		log.Info("completion settled", "status", settled.Status)
		return p.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusDispatched)

	case errors.Is(err, domain.ErrSettlement):
		// The payment itself records the failure; the notification is done.
		var se *domain.SettlementError
		if errors.As(err, &se) {
			log.Error("settlement failed, needs reconciliation",
				"chain", se.Chain,
				"token", se.Token,
				"destination", se.Destination,
				"amount", se.Amount,
				"tx_ref", se.TxRef,
				"error", se.Err,
			)
		}
		return p.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusDispatched)

	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrDuplicateCharge):
		log.Warn("completion rejected", "error", err)
		return p.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}

	if event.Attempts >= maxCompletionAttempts {
		log.Error("completion retries exhausted", "attempts", event.Attempts, "error", err)
		return p.inbox.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}

	if domain.IsRetryable(err) {
		if rerr := p.inbox.Release(ctx, event.ID); rerr != nil {
			return fmt.Errorf("processEvent: release: %w", errors.Join(err, rerr))
		}
	}
	return fmt.Errorf("processEvent: %w", err)
}
