package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/starbridge/internal/domain"
)

const webhookEventColumns = `id, idempotency_key, event_type, payload, status,
	attempts, last_attempt, created_at`

type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Create stores a gateway notification. A repeated gateway event id fails
// with ErrDuplicateIdempotencyKey, which callers treat as already received.
func (r *WebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (
			id, idempotency_key, event_type, payload, status, attempts, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.IdempotencyKey, event.EventType, string(event.Payload),
		event.Status, event.Attempts, event.LastAttempt, event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateIdempotencyKey)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ClaimPending leases up to limit pending events to the caller. A claimed
// event is invisible to other processors until lease has passed since its
// last attempt, so a crashed processor's events are picked up again.
func (r *WebhookEventRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]domain.WebhookEvent, error) {
	// FOR UPDATE SKIP LOCKED keeps concurrent processors off the same rows
	// while the lease timestamp is written.
	rows, err := r.db.QueryContext(ctx,
		`UPDATE webhook_events SET attempts = attempts + 1, last_attempt = now()
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE status = $1
				AND (last_attempt IS NULL OR last_attempt < now() - make_interval(secs => $3))
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+webhookEventColumns,
		domain.WebhookEventStatusPending, limit, lease.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

// Release makes a claimed event immediately eligible for the next poll.
func (r *WebhookEventRepository) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET last_attempt = NULL WHERE id = $1 AND status = $2`,
		id, domain.WebhookEventStatusPending,
	)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = $1 WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *WebhookEventRepository) CountByStatus(ctx context.Context, status domain.WebhookEventStatus) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM webhook_events WHERE status = $1`, status,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountByStatus: %w", err)
	}
	return n, nil
}

func scanWebhookEvent(s scanner) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	err := s.Scan(
		&e.ID, &e.IdempotencyKey, &e.EventType, &e.Payload,
		&e.Status, &e.Attempts, &e.LastAttempt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
