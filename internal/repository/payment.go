package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/starbridge/internal/domain"
)

const paymentColumns = `id, buyer_id, destination, chain, token, credits,
	gross_amount, fee_amount, amount, status, charge_ref, settlement_tx_ref,
	failure_reason, settlement_started_at, refund_requested_at, created_at, updated_at, completed_at`

// PaymentRepository is the Postgres payment store. Status only changes
// through UpdateStatusIf, and every change writes its audit event in the
// same transaction.
type PaymentRepository struct {
	db     *DB
	events *PaymentEventRepository
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db, events: NewPaymentEventRepository(db.Conn())}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payments (
				id, buyer_id, destination, chain, token, credits,
				gross_amount, fee_amount, amount, status, charge_ref,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.ID, p.BuyerID, p.Destination, p.Chain, p.Token, p.Credits,
			p.GrossAmount, p.FeeAmount, p.Amount, p.Status, p.ChargeRef,
			p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("Create: %w", domain.ErrDuplicateCharge)
			}
			return fmt.Errorf("Create: %w", err)
		}

		return r.events.Create(ctx, tx, newEvent(p.ID, domain.PaymentEventTypeCreated, "system", nil))
	})
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

// UpdateStatusIf applies t only when the stored status equals t.Expected.
// It reports false, without error, when another writer got there first.
func (r *PaymentRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, t domain.Transition) (bool, error) {
	var applied bool
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE payments SET
				status = $1,
				settlement_tx_ref = COALESCE($2, settlement_tx_ref),
				failure_reason = COALESCE($3, failure_reason),
				completed_at = COALESCE($4, completed_at),
				updated_at = now()
			WHERE id = $5 AND status = $6`,
			t.Next, t.SettlementTxRef, t.FailureReason, t.CompletedAt, id, t.Expected,
		)
		if err != nil {
			return fmt.Errorf("UpdateStatusIf: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("UpdateStatusIf: rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}
		applied = true

		return r.events.Create(ctx, tx, newEvent(id, domain.EventTypeForStatus(t.Next), t.Actor, t.Payload))
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ClaimSettlement marks a processing payment as owned by the caller. Only
// one caller can ever win the claim for a payment. A non-empty chargeRef is
// bound to the payment in the same write.
func (r *PaymentRepository) ClaimSettlement(ctx context.Context, id uuid.UUID, chargeRef string) (bool, error) {
	var claimed bool
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE payments SET
				charge_ref = COALESCE(NULLIF($2, ''), charge_ref),
				settlement_started_at = now(),
				updated_at = now()
			WHERE id = $1 AND status = $3 AND settlement_started_at IS NULL`,
			id, chargeRef, domain.PaymentStatusProcessing,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("ClaimSettlement: %w", domain.ErrDuplicateCharge)
			}
			return fmt.Errorf("ClaimSettlement: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("ClaimSettlement: rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}
		claimed = true

		var payload []byte
		if chargeRef != "" {
			payload = mustJSON(map[string]string{"charge_ref": chargeRef})
		}
		return r.events.Create(ctx, tx, newEvent(id, domain.PaymentEventTypeSettlementStarted, "system", payload))
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// ListByBuyer returns one page of a buyer's payments, newest first, and the
// buyer's total payment count.
func (r *PaymentRepository) ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]domain.Payment, int, error) {
	var total int
	if err := r.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE buyer_id = $1`, buyerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListByBuyer: count: %w", err)
	}

	payments, err := r.query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE buyer_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		buyerID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByBuyer: %w", err)
	}
	return payments, total, nil
}

func (r *PaymentRepository) ListByStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.Payment, error) {
	payments, err := r.query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE status = $1 ORDER BY updated_at DESC LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByStatus: %w", err)
	}
	return payments, nil
}

// ClaimRefund marks a failed payment with a charge ref as having a refund
// in flight. At most one claim can be outstanding per payment.
func (r *PaymentRepository) ClaimRefund(ctx context.Context, id uuid.UUID, operator string) (bool, error) {
	var claimed bool
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var chargeRef string
		err := tx.QueryRowContext(ctx,
			`UPDATE payments SET
				refund_requested_at = now(),
				updated_at = now()
			WHERE id = $1 AND status = $2 AND charge_ref IS NOT NULL AND refund_requested_at IS NULL
			RETURNING charge_ref`,
			id, domain.PaymentStatusFailed,
		).Scan(&chargeRef)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ClaimRefund: %w", err)
		}
		claimed = true

		payload := mustJSON(map[string]string{"charge_ref": chargeRef})
		return r.events.Create(ctx, tx, newEvent(id, domain.PaymentEventTypeRefundRequested, operator, payload))
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// ReleaseRefund clears an outstanding refund claim after the gateway
// rejected or never received the request.
func (r *PaymentRepository) ReleaseRefund(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE payments SET refund_requested_at = NULL, updated_at = now()
			WHERE id = $1 AND refund_requested_at IS NOT NULL`,
			id,
		)
		if err != nil {
			return fmt.Errorf("ReleaseRefund: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("ReleaseRefund: rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}
		payload := mustJSON(map[string]string{"error": reason})
		return r.events.Create(ctx, tx, newEvent(id, domain.PaymentEventTypeRefundFailed, "system", payload))
	})
}

func (r *PaymentRepository) Events(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error) {
	return r.events.GetByPaymentID(ctx, id)
}

func (r *PaymentRepository) query(ctx context.Context, q string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.Conn().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return payments, nil
}

func newEvent(paymentID uuid.UUID, t domain.PaymentEventType, actor string, payload []byte) *domain.PaymentEvent {
	if actor == "" {
		actor = "system"
	}
	return &domain.PaymentEvent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		EventType: t,
		Actor:     actor,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	err := s.Scan(
		&p.ID, &p.BuyerID, &p.Destination, &p.Chain, &p.Token, &p.Credits,
		&p.GrossAmount, &p.FeeAmount, &p.Amount, &p.Status, &p.ChargeRef, &p.SettlementTxRef,
		&p.FailureReason, &p.SettlementStartedAt, &p.RefundRequestedAt, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
