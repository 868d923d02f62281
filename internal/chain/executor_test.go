package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/starbridge/internal/config"
	"github.com/josh-kwaku/starbridge/internal/domain"
)

const testDestination = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

func newTestExecutor(t *testing.T, b *fakeBackend) *PayoutExecutor {
	t.Helper()
	r, err := NewRegistry(config.ChainConfig{Testnet: true})
	require.NoError(t, err)
	pool := NewClientPool(r, fakeDialer(b))
	tokens, err := NewTokenMetadata(pool, 8, time.Second)
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	exec, err := NewPayoutExecutor(r, pool, tokens, "0x"+hex.EncodeToString(crypto.FromECDSA(key)), time.Second, time.Second)
	require.NoError(t, err)
	return exec
}

func TestExecutePayout(t *testing.T) {
	b := newFakeBackend(18)
	exec := newTestExecutor(t, b)

	txRef, err := exec.ExecutePayout(context.Background(), domain.ChainBSC, domain.TokenUSDT, testVault, testDestination, decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	require.Equal(t, 1, b.sentCount())

	tx := b.sent[0]
	assert.Equal(t, tx.Hash().Hex(), txRef)
	assert.Equal(t, common.HexToAddress(testVault), *tx.To())

	args, err := vaultABI.Methods["payout"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", args[1].(*big.Int).String())

	signer := types.LatestSignerForChainID(tx.ChainId())
	from, err := types.Sender(signer, tx)
	require.NoError(t, err)
	assert.Equal(t, exec.Signer(), from)
	assert.Equal(t, int64(97), tx.ChainId().Int64())
}

func TestExecutePayout_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(b *fakeBackend)
		dest      string
		vault     string
		wantErr   error
		wantTxRef bool
	}{
		{
			name:    "estimate reverts",
			setup:   func(b *fakeBackend) { b.estimateErr = errors.New("execution reverted: insufficient balance") },
			wantErr: domain.ErrInsufficientBalance,
		},
		{
			name:    "send fails",
			setup:   func(b *fakeBackend) { b.sendErr = errors.New("connection reset by peer") },
			wantErr: domain.ErrNetwork,
		},
		{
			name:      "receipt reverted",
			setup:     func(b *fakeBackend) { b.receiptStatus = types.ReceiptStatusFailed },
			wantErr:   domain.ErrInsufficientBalance,
			wantTxRef: true,
		},
		{
			name:    "bad destination",
			dest:    "0x1234",
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "no vault",
			vault:   "0x",
			wantErr: domain.ErrConfiguration,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newFakeBackend(6)
			if tc.setup != nil {
				tc.setup(b)
			}
			exec := newTestExecutor(t, b)

			dest := testDestination
			if tc.dest != "" {
				dest = tc.dest
			}
			vault := testVault
			if tc.vault != "" {
				vault = tc.vault
			}

			txRef, err := exec.ExecutePayout(context.Background(), domain.ChainBSC, domain.TokenUSDT, vault, dest, decimal.RequireFromString("2"))
			require.ErrorIs(t, err, tc.wantErr)
			if tc.wantTxRef {
				assert.NotEmpty(t, txRef)
			} else {
				assert.Empty(t, txRef)
			}
		})
	}
}

func TestNewPayoutExecutor_Key(t *testing.T) {
	r, err := NewRegistry(config.ChainConfig{Testnet: true})
	require.NoError(t, err)
	pool := NewClientPool(r, nil)
	tokens, err := NewTokenMetadata(pool, 8, time.Second)
	require.NoError(t, err)

	_, err = NewPayoutExecutor(r, pool, tokens, "", time.Second, time.Second)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewPayoutExecutor(r, pool, tokens, "zz", time.Second, time.Second)
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCheckPayout(t *testing.T) {
	tests := []struct {
		name     string
		chain    domain.Chain
		token    domain.Token
		amount   string
		decimals uint8
		callErr  error
		wantErr  error
	}{
		{name: "ok", chain: domain.ChainBSC, token: domain.TokenUSDT, amount: "0.5", decimals: 18},
		{name: "token not on chain", chain: domain.ChainOPBNB, token: domain.TokenUSDC, amount: "0.5", decimals: 18, wantErr: domain.ErrConfiguration},
		{name: "amount finer than token", chain: domain.ChainBSC, token: domain.TokenUSDT, amount: "0.1234567", decimals: 6, wantErr: domain.ErrConfiguration},
		{name: "rpc down", chain: domain.ChainBSC, token: domain.TokenUSDT, amount: "0.5", decimals: 18, callErr: errors.New("dial tcp: i/o timeout"), wantErr: domain.ErrNetwork},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newFakeBackend(tc.decimals)
			b.callErr = tc.callErr
			exec := newTestExecutor(t, b)

			err := exec.CheckPayout(context.Background(), tc.chain, tc.token, decimal.RequireFromString(tc.amount))
			if tc.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.wantErr)
			}
			assert.Zero(t, b.sentCount(), "checking a payout never sends")
		})
	}
}

func TestExecutePayout_UnsendableAmount(t *testing.T) {
	b := newFakeBackend(6)
	exec := newTestExecutor(t, b)

	txRef, err := exec.ExecutePayout(context.Background(), domain.ChainBSC, domain.TokenUSDT, testVault, testDestination, decimal.RequireFromString("0.1234567"))
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Empty(t, txRef)
	assert.Zero(t, b.sentCount())
}
