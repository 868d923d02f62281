package payment_test

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/josh-kwaku/starbridge/internal/domain"
)

type OracleMock struct {
	mock.Mock
}

func (m *OracleMock) Balance(ctx context.Context, c domain.Chain, t domain.Token, vault string) (decimal.Decimal, error) {
	args := m.Called(ctx, c, t, vault)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// ExecutorMock records payouts. CheckErr is what CheckPayout returns; it
// defaults to nil so tests only set it when exercising configuration errors.
type ExecutorMock struct {
	mock.Mock
	CheckErr error
}

func (m *ExecutorMock) CheckPayout(context.Context, domain.Chain, domain.Token, decimal.Decimal) error {
	return m.CheckErr
}

func (m *ExecutorMock) ExecutePayout(ctx context.Context, c domain.Chain, t domain.Token, vault, destination string, amount decimal.Decimal) (string, error) {
	args := m.Called(ctx, c, t, vault, destination, amount)
	return args.String(0), args.Error(1)
}

type RefunderMock struct {
	mock.Mock
}

func (m *RefunderMock) RefundCharge(ctx context.Context, buyerID int64, chargeRef string) error {
	args := m.Called(ctx, buyerID, chargeRef)
	return args.Error(0)
}
