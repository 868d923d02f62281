package payment_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/starbridge/internal/chain"
	"github.com/josh-kwaku/starbridge/internal/config"
	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/pricing"
	"github.com/josh-kwaku/starbridge/internal/repository"
	"github.com/josh-kwaku/starbridge/internal/service/payment"
	"github.com/josh-kwaku/starbridge/internal/testutil"
)

func setupPaymentService(t *testing.T, db *sql.DB) (*payment.Service, *OracleMock, *ExecutorMock) {
	t.Helper()

	registry, err := chain.NewRegistry(config.ChainConfig{
		VaultAddresses: map[string]string{"bsc": testutil.TestVault},
	})
	require.NoError(t, err)

	oracle := &OracleMock{}
	executor := &ExecutorMock{}
	svc := payment.NewService(
		repository.NewPaymentRepository(repository.NewDB(db)),
		pricing.NewCalculator(pricing.ScheduleFromConfig(defaultFees())),
		registry,
		oracle,
		executor,
		&RefunderMock{},
	)
	return svc, oracle, executor
}

func TestPostgres_FullLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, oracle, executor := setupPaymentService(t, db)
	ctx := testutil.Context(t)

	p, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	oracle.On("Balance", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(decimal.RequireFromString("1.00"), nil)
	executor.On("ExecutePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, amountEq("0.5")).
		Return("0xabc", nil).Once()

	_, err = svc.ValidateAndReserve(ctx, p.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusProcessing, testutil.GetPaymentStatus(t, db, p.ID))

	settled, err := svc.Settle(ctx, p.ID, "charge-int-1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", *settled.SettlementTxRef)

	stored, err := svc.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, stored.Status)
	assert.Equal(t, "0xabc", *stored.SettlementTxRef)
	assert.Equal(t, "charge-int-1", *stored.ChargeRef)
	assert.True(t, stored.Amount.Equal(decimal.RequireFromString("0.5")))
	assert.NotNil(t, stored.CompletedAt)

	again, err := svc.Settle(ctx, p.ID, "charge-int-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, again.Status)
	executor.AssertNumberOfCalls(t, "ExecutePayout", 1)

	assert.Equal(t, 1, testutil.CountPaymentEvents(t, db, p.ID, domain.PaymentEventTypeCreated))
	assert.Equal(t, 1, testutil.CountPaymentEvents(t, db, p.ID, domain.PaymentEventTypeProcessing))
	assert.Equal(t, 1, testutil.CountPaymentEvents(t, db, p.ID, domain.PaymentEventTypeSettlementStarted))
	assert.Equal(t, 1, testutil.CountPaymentEvents(t, db, p.ID, domain.PaymentEventTypeCompleted))
}

func TestPostgres_ConcurrentReserve(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, oracle, _ := setupPaymentService(t, db)
	ctx := context.Background()

	p, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	oracle.On("Balance", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(decimal.RequireFromString("1.00"), nil)

	const callers = 10
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ValidateAndReserve(ctx, p.ID, 50)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrAlreadyProcessing), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, domain.PaymentStatusProcessing, testutil.GetPaymentStatus(t, db, p.ID))
	assert.Equal(t, 1, testutil.CountPaymentEvents(t, db, p.ID, domain.PaymentEventTypeProcessing))
}

func TestPostgres_ConcurrentSettle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, oracle, executor := setupPaymentService(t, db)
	ctx := context.Background()

	p, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	oracle.On("Balance", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(decimal.RequireFromString("1.00"), nil)
	executor.On("ExecutePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("0xabc", nil)

	_, err = svc.ValidateAndReserve(ctx, p.ID, 50)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Settle(ctx, p.ID, "charge-int-2")
			if err != nil && !errors.Is(err, domain.ErrInvalidState) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	executor.AssertNumberOfCalls(t, "ExecutePayout", 1)
	assert.Equal(t, domain.PaymentStatusCompleted, testutil.GetPaymentStatus(t, db, p.ID))
}

func TestPostgres_SettlementFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, oracle, executor := setupPaymentService(t, db)
	ctx := testutil.Context(t)

	p, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	oracle.On("Balance", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(decimal.RequireFromString("1.00"), nil)
	executor.On("ExecutePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.Join(domain.ErrNetwork, errors.New("rpc timeout"))).Once()

	_, err = svc.ValidateAndReserve(ctx, p.ID, 50)
	require.NoError(t, err)

	_, err = svc.Settle(ctx, p.ID, "charge-int-3")
	require.ErrorIs(t, err, domain.ErrSettlement)

	stored, err := svc.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, stored.Status)
	assert.Nil(t, stored.SettlementTxRef)
	require.NotNil(t, stored.FailureReason)
	assert.Contains(t, *stored.FailureReason, "rpc timeout")

	failed, err := svc.ListFailed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, p.ID, failed[0].ID)

	// A new payment may reuse the charge ref once the first is terminal.
	p2, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.ValidateAndReserve(ctx, p2.ID, 50)
	require.NoError(t, err)
	executor.On("ExecutePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("0xbeef", nil)
	_, err = svc.Settle(ctx, p2.ID, "charge-int-3")
	require.NoError(t, err)
}

func TestPostgres_ActiveChargeRefIsUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, oracle, executor := setupPaymentService(t, db)
	ctx := testutil.Context(t)

	oracle.On("Balance", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(decimal.RequireFromString("10"), nil)

	first, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	second, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.ValidateAndReserve(ctx, first.ID, 50)
	require.NoError(t, err)
	_, err = svc.ValidateAndReserve(ctx, second.ID, 50)
	require.NoError(t, err)

	// Bind the charge to the first payment without finishing settlement.
	_, err = db.Exec(`UPDATE payments SET charge_ref = 'charge-shared' WHERE id = $1`, first.ID)
	require.NoError(t, err)

	_, err = svc.Settle(ctx, second.ID, "charge-shared")
	require.ErrorIs(t, err, domain.ErrDuplicateCharge)
	executor.AssertNotCalled(t, "ExecutePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, domain.PaymentStatusProcessing, testutil.GetPaymentStatus(t, db, second.ID))
}

func TestPostgres_BuyerHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _, _ := setupPaymentService(t, db)
	ctx := testutil.Context(t)

	for i := 0; i < 6; i++ {
		_, err := svc.Create(ctx, validRequest())
		require.NoError(t, err)
	}

	page, err := svc.ListBuyerPayments(ctx, testutil.TestBuyerID, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Payments, 1)
}
