package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/starbridge/internal/domain"
)

type tokenKey struct {
	chain   domain.Chain
	address common.Address
}

// TokenMetadata reads ERC-20 decimals. Decimals never change for a deployed
// contract, so results are cached for the life of the process.
type TokenMetadata struct {
	pool     *ClientPool
	decimals *lru.Cache[tokenKey, uint8]
	timeout  time.Duration
}

func NewTokenMetadata(pool *ClientPool, cacheSize int, timeout time.Duration) (*TokenMetadata, error) {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, err := lru.New[tokenKey, uint8](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("NewTokenMetadata: %w", err)
	}
	return &TokenMetadata{pool: pool, decimals: cache, timeout: timeout}, nil
}

func (m *TokenMetadata) Decimals(ctx context.Context, c domain.Chain, token common.Address) (uint8, error) {
	key := tokenKey{chain: c, address: token}
	if d, ok := m.decimals.Get(key); ok {
		return d, nil
	}

	client, err := m.pool.Client(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("Decimals: %w", err)
	}

	callCtx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	var out []interface{}
	contract := bind.NewBoundContract(token, erc20ABI, client, client, client)
	if err := contract.Call(&bind.CallOpts{Context: callCtx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("Decimals: %s on %s: %w", token.Hex(), c, classify(err, domain.ErrConfiguration))
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("Decimals: unexpected result %T: %w", out[0], domain.ErrConfiguration)
	}

	m.decimals.Add(key, d)
	return d, nil
}

// ToBaseUnits converts a token amount into the integer units the contract
// expects. Amounts with more precision than the token supports are rejected
// rather than rounded.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("ToBaseUnits: negative amount %s: %w", amount, domain.ErrInvalidRequest)
	}
	shifted := amount.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("ToBaseUnits: %s exceeds %d decimals: %w", amount, decimals, domain.ErrInvalidRequest)
	}
	return shifted.BigInt(), nil
}

func FromBaseUnits(v *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(v, -int32(decimals))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
