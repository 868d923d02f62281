package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/repository"
	"github.com/josh-kwaku/starbridge/internal/testutil"
)

func newPaymentRepo(t *testing.T) (*repository.PaymentRepository, func(uuid.UUID) domain.PaymentStatus) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(repository.NewDB(db))
	return repo, func(id uuid.UUID) domain.PaymentStatus { return testutil.GetPaymentStatus(t, db, id) }
}

func createProcessing(t *testing.T, ctx context.Context, repo *repository.PaymentRepository) domain.Payment {
	t.Helper()
	p := testutil.NewPayment(domain.PaymentStatusPending)
	require.NoError(t, repo.Create(ctx, &p))

	ok, err := repo.UpdateStatusIf(ctx, p.ID, domain.Transition{
		Expected: domain.PaymentStatusPending,
		Next:     domain.PaymentStatusProcessing,
		Actor:    "system",
	})
	require.NoError(t, err)
	require.True(t, ok)
	return p
}

func TestPaymentRepository_GetByIDNotFound(t *testing.T) {
	repo, _ := newPaymentRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaymentRepository_UpdateStatusIf(t *testing.T) {
	repo, status := newPaymentRepo(t)
	ctx := context.Background()

	p := createProcessing(t, ctx, repo)

	ok, err := repo.UpdateStatusIf(ctx, p.ID, domain.Transition{
		Expected: domain.PaymentStatusPending,
		Next:     domain.PaymentStatusProcessing,
		Actor:    "system",
	})
	require.NoError(t, err)
	assert.False(t, ok, "stale expected status must not apply")

	txRef := "0xfeed"
	now := time.Now().UTC()
	ok, err = repo.UpdateStatusIf(ctx, p.ID, domain.Transition{
		Expected:        domain.PaymentStatusProcessing,
		Next:            domain.PaymentStatusCompleted,
		SettlementTxRef: &txRef,
		CompletedAt:     &now,
		Actor:           "system",
		Payload:         []byte(`{"tx_ref":"0xfeed"}`),
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentStatusCompleted, status(p.ID))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SettlementTxRef)
	assert.Equal(t, txRef, *got.SettlementTxRef)
	assert.NotNil(t, got.CompletedAt)

	events, err := repo.Events(ctx, p.ID)
	require.NoError(t, err)
	var types []domain.PaymentEventType
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []domain.PaymentEventType{
		domain.PaymentEventTypeCreated,
		domain.EventTypeForStatus(domain.PaymentStatusProcessing),
		domain.EventTypeForStatus(domain.PaymentStatusCompleted),
	}, types)
}

func TestPaymentRepository_ClaimSettlement(t *testing.T) {
	repo, _ := newPaymentRepo(t)
	ctx := context.Background()

	first := createProcessing(t, ctx, repo)
	ok, err := repo.ClaimSettlement(ctx, first.ID, "charge-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ClaimSettlement(ctx, first.ID, "charge-1")
	require.NoError(t, err)
	assert.False(t, ok, "a payment is claimed for settlement once")

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ChargeRef)
	assert.Equal(t, "charge-1", *got.ChargeRef)
	assert.NotNil(t, got.SettlementStartedAt)

	second := createProcessing(t, ctx, repo)
	_, err = repo.ClaimSettlement(ctx, second.ID, "charge-1")
	require.ErrorIs(t, err, domain.ErrDuplicateCharge)
}

func TestPaymentRepository_ClaimSettlementRequiresProcessing(t *testing.T) {
	repo, _ := newPaymentRepo(t)
	ctx := context.Background()

	p := testutil.NewPayment(domain.PaymentStatusPending)
	require.NoError(t, repo.Create(ctx, &p))

	ok, err := repo.ClaimSettlement(ctx, p.ID, "charge-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentRepository_ListByBuyer(t *testing.T) {
	repo, _ := newPaymentRepo(t)
	ctx := context.Background()

	for range 3 {
		p := testutil.NewPayment(domain.PaymentStatusPending)
		require.NoError(t, repo.Create(ctx, &p))
	}

	page, total, err := repo.ListByBuyer(ctx, testutil.TestBuyerID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)

	page, _, err = repo.ListByBuyer(ctx, testutil.TestBuyerID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	none, total, err := repo.ListByBuyer(ctx, 42, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestPaymentRepository_ClaimRefund(t *testing.T) {
	repo, _ := newPaymentRepo(t)
	ctx := context.Background()

	p := createProcessing(t, ctx, repo)
	ok, err := repo.ClaimRefund(ctx, p.ID, "ops")
	require.NoError(t, err)
	assert.False(t, ok, "only failed payments can be refunded")

	ok, err = repo.ClaimSettlement(ctx, p.ID, "charge-r")
	require.NoError(t, err)
	require.True(t, ok)
	reason := "rpc timeout"
	now := time.Now().UTC()
	ok, err = repo.UpdateStatusIf(ctx, p.ID, domain.Transition{
		Expected:      domain.PaymentStatusProcessing,
		Next:          domain.PaymentStatusFailed,
		FailureReason: &reason,
		CompletedAt:   &now,
		Actor:         "system",
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ClaimRefund(ctx, p.ID, "ops")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ClaimRefund(ctx, p.ID, "ops-2")
	require.NoError(t, err)
	assert.False(t, ok, "a refund is claimed once")

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.RefundRequestedAt)

	require.NoError(t, repo.ReleaseRefund(ctx, p.ID, "gateway unavailable"))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RefundRequestedAt)

	ok, err = repo.ClaimRefund(ctx, p.ID, "ops-2")
	require.NoError(t, err)
	assert.True(t, ok, "a released refund can be claimed again")

	events, err := repo.Events(ctx, p.ID)
	require.NoError(t, err)
	var refundEvents []domain.PaymentEventType
	for _, e := range events {
		switch e.EventType {
		case domain.PaymentEventTypeRefundRequested, domain.PaymentEventTypeRefundFailed:
			refundEvents = append(refundEvents, e.EventType)
		}
	}
	assert.Equal(t, []domain.PaymentEventType{
		domain.PaymentEventTypeRefundRequested,
		domain.PaymentEventTypeRefundFailed,
		domain.PaymentEventTypeRefundRequested,
	}, refundEvents)
}
