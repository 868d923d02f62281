package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

// PayoutExecutor sends vault payout transactions signed by the vault
// operator key. Payouts on one chain are serialised so the signer's nonce
// stream is never contended.
type PayoutExecutor struct {
	registry       *Registry
	pool           *ClientPool
	tokens         *TokenMetadata
	key            *ecdsa.PrivateKey
	from           common.Address
	rpcTimeout     time.Duration
	receiptTimeout time.Duration

	mu    sync.Mutex
	locks map[domain.Chain]*sync.Mutex
}

func NewPayoutExecutor(registry *Registry, pool *ClientPool, tokens *TokenMetadata, signerKey string, rpcTimeout, receiptTimeout time.Duration) (*PayoutExecutor, error) {
	if signerKey == "" {
		return nil, fmt.Errorf("NewPayoutExecutor: VAULT_SIGNER_KEY not set: %w", domain.ErrConfiguration)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(signerKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("NewPayoutExecutor: invalid signer key: %w", domain.ErrConfiguration)
	}
	return &PayoutExecutor{
		registry:       registry,
		pool:           pool,
		tokens:         tokens,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		rpcTimeout:     rpcTimeout,
		receiptTimeout: receiptTimeout,
		locks:          make(map[domain.Chain]*sync.Mutex),
	}, nil
}

func (e *PayoutExecutor) Signer() common.Address {
	return e.from
}

func (e *PayoutExecutor) chainLock(c domain.Chain) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[c]
	if !ok {
		l = &sync.Mutex{}
		e.locks[c] = l
	}
	return l
}

type payoutPlan struct {
	network *Network
	token   common.Address
	units   *big.Int
	client  Backend
}

// plan resolves everything a payout needs before anything is signed:
// token contract, network, RPC client and the amount in base units.
func (e *PayoutExecutor) plan(ctx context.Context, c domain.Chain, t domain.Token, amount decimal.Decimal) (*payoutPlan, error) {
	tokenAddr, err := e.registry.TokenAddress(c, t)
	if err != nil {
		return nil, err
	}
	n := e.registry.networks[c]
	client, err := e.pool.Client(ctx, c)
	if err != nil {
		return nil, err
	}
	decimals, err := e.tokens.Decimals(ctx, c, tokenAddr)
	if err != nil {
		return nil, err
	}
	if !amount.Equal(amount.Truncate(int32(decimals))) {
		return nil, fmt.Errorf("%s on %s has %d decimals, amount %s is finer: %w", t, c, decimals, amount, domain.ErrConfiguration)
	}
	units, err := ToBaseUnits(amount, decimals)
	if err != nil {
		return nil, err
	}
	return &payoutPlan{network: n, token: tokenAddr, units: units, client: client}, nil
}

// CheckPayout reports whether a payout of amount in t on c could be sent
// with the current configuration. It signs and sends nothing.
func (e *PayoutExecutor) CheckPayout(ctx context.Context, c domain.Chain, t domain.Token, amount decimal.Decimal) error {
	if _, err := e.plan(ctx, c, t, amount); err != nil {
		return fmt.Errorf("CheckPayout: %w", err)
	}
	return nil
}

// ExecutePayout calls vault.payout(token, amount, destination) and waits for
// the receipt. Once a transaction has been broadcast its hash is returned
// even when err is non-nil, so the caller can record it for reconciliation.
func (e *PayoutExecutor) ExecutePayout(ctx context.Context, c domain.Chain, t domain.Token, vault, destination string, amount decimal.Decimal) (string, error) {
	vaultAddr, ok := parseAddress(vault)
	if !ok {
		return "", fmt.Errorf("ExecutePayout: vault %q for %s: %w", vault, c, domain.ErrConfiguration)
	}
	destAddr, ok := parseAddress(destination)
	if !ok {
		return "", fmt.Errorf("ExecutePayout: destination %q: %w", destination, domain.ErrInvalidRequest)
	}
	pl, err := e.plan(ctx, c, t, amount)
	if err != nil {
		return "", fmt.Errorf("ExecutePayout: %w", err)
	}
	client := pl.client

	opts, err := bind.NewKeyedTransactorWithChainID(e.key, pl.network.ChainID)
	if err != nil {
		return "", fmt.Errorf("ExecutePayout: %w", errors.Join(domain.ErrConfiguration, err))
	}

	lock := e.chainLock(c)
	lock.Lock()
	defer lock.Unlock()

	sendCtx, cancel := withTimeout(ctx, e.rpcTimeout)
	defer cancel()
	opts.Context = sendCtx

	contract := bind.NewBoundContract(vaultAddr, vaultABI, client, client, client)
	tx, err := contract.Transact(opts, "payout", pl.token, pl.units, destAddr)
	if err != nil {
		return "", fmt.Errorf("ExecutePayout: send: %w", classify(err, e.balanceError(c, t, amount)))
	}

	txRef := tx.Hash().Hex()
	log := logging.FromContext(ctx).With("chain", c, "token", t, "tx_ref", txRef)
	log.Info("payout broadcast", "destination", destAddr.Hex(), "amount", amount.String(), "nonce", tx.Nonce())

	waitCtx, cancelWait := withTimeout(ctx, e.receiptTimeout)
	defer cancelWait()

	receipt, err := bind.WaitMined(waitCtx, client, tx)
	if err != nil {
		return txRef, fmt.Errorf("ExecutePayout: await receipt: %w", errors.Join(domain.ErrNetwork, err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Warn("payout reverted", "block", receipt.BlockNumber)
		return txRef, fmt.Errorf("ExecutePayout: transaction reverted: %w", e.balanceError(c, t, amount))
	}

	log.Info("payout confirmed", "block", receipt.BlockNumber, "gas_used", receipt.GasUsed)
	return txRef, nil
}

// balanceError reports a vault-side rejection. The contract does not expose
// its balance on revert, so Available is left zero.
func (e *PayoutExecutor) balanceError(c domain.Chain, t domain.Token, required decimal.Decimal) error {
	return &domain.BalanceError{Chain: c, Token: t, Required: required}
}
