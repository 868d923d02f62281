package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/testutil"
)

type fakeVaults struct {
	vaultErr error
}

func (f fakeVaults) Supports(c domain.Chain, t domain.Token) bool {
	return c == domain.ChainBSC
}

func (f fakeVaults) VaultAddress(domain.Chain) (string, error) {
	if f.vaultErr != nil {
		return "", f.vaultErr
	}
	return testutil.TestVault, nil
}

type fakeBalances struct {
	balance decimal.Decimal
	err     error
}

func (f fakeBalances) Balance(context.Context, domain.Chain, domain.Token, string) (decimal.Decimal, error) {
	return f.balance, f.err
}

func TestVaultHandler_Balance(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		vaults     fakeVaults
		balances   fakeBalances
		wantStatus int
		wantCode   string
	}{
		{
			name:       "ok",
			path:       "/api/v1/vaults/bsc/USDT/balance",
			balances:   fakeBalances{balance: decimal.RequireFromString("12.5")},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unsupported chain",
			path:       "/api/v1/vaults/eth/USDT/balance",
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNSUPPORTED_ASSET",
		},
		{
			name:       "vault unset",
			path:       "/api/v1/vaults/bsc/USDC/balance",
			vaults:     fakeVaults{vaultErr: fmt.Errorf("VaultAddress: %w", domain.ErrConfiguration)},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "MISCONFIGURED",
		},
		{
			name:       "rpc down",
			path:       "/api/v1/vaults/bsc/USDT/balance",
			balances:   fakeBalances{err: fmt.Errorf("Balance: %w", domain.ErrNetwork)},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "UPSTREAM_UNAVAILABLE",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/v1/vaults/{chain}/{token}/balance", NewVaultHandler(tc.vaults, tc.balances).Balance)

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.wantStatus, rr.Code)

			if tc.wantCode != "" {
				resp := decodeResponse(t, rr)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
				return
			}

			var body struct {
				Data struct {
					Vault   string          `json:"vault"`
					Balance decimal.Decimal `json:"balance"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, testutil.TestVault, body.Data.Vault)
			assert.True(t, body.Data.Balance.Equal(decimal.RequireFromString("12.5")))
		})
	}
}
