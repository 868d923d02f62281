package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

// BalanceOracle reads the vault's token holdings from chain state. Results
// are advisory; the vault contract enforces its own balance at payout time.
type BalanceOracle struct {
	registry *Registry
	pool     *ClientPool
	tokens   *TokenMetadata
	timeout  time.Duration
}

func NewBalanceOracle(registry *Registry, pool *ClientPool, tokens *TokenMetadata, timeout time.Duration) *BalanceOracle {
	return &BalanceOracle{registry: registry, pool: pool, tokens: tokens, timeout: timeout}
}

func (o *BalanceOracle) Balance(ctx context.Context, c domain.Chain, t domain.Token, vault string) (decimal.Decimal, error) {
	vaultAddr, ok := parseAddress(vault)
	if !ok {
		return decimal.Zero, fmt.Errorf("Balance: vault %q for %s: %w", vault, c, domain.ErrConfiguration)
	}
	tokenAddr, err := o.registry.TokenAddress(c, t)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}

	decimals, err := o.tokens.Decimals(ctx, c, tokenAddr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}

	client, err := o.pool.Client(ctx, c)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}

	callCtx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	var out []interface{}
	contract := bind.NewBoundContract(tokenAddr, erc20ABI, client, client, client)
	if err := contract.Call(&bind.CallOpts{Context: callCtx}, &out, "balanceOf", vaultAddr); err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %s %s: %w", c, t, classify(err, domain.ErrNetwork))
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("Balance: unexpected result %T: %w", out[0], domain.ErrNetwork)
	}

	balance := FromBaseUnits(raw, decimals)
	logging.FromContext(ctx).Debug("vault balance read",
		"chain", c, "token", t, "vault", vaultAddr.Hex(), "balance", balance.String())
	return balance, nil
}
