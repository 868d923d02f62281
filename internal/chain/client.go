package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/josh-kwaku/starbridge/internal/domain"
)

// Backend is the subset of an RPC client the oracle and executor use.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type Dialer func(ctx context.Context, rawURL string) (Backend, error)

func DialRPC(ctx context.Context, rawURL string) (Backend, error) {
	c, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ClientPool keeps one lazily dialled client per chain.
type ClientPool struct {
	registry *Registry
	dial     Dialer

	mu      sync.Mutex
	clients map[domain.Chain]Backend
}

func NewClientPool(registry *Registry, dial Dialer) *ClientPool {
	if dial == nil {
		dial = DialRPC
	}
	return &ClientPool{
		registry: registry,
		dial:     dial,
		clients:  make(map[domain.Chain]Backend),
	}
}

func (p *ClientPool) Client(ctx context.Context, c domain.Chain) (Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.clients[c]; ok {
		return b, nil
	}

	n, err := p.registry.Network(c)
	if err != nil {
		return nil, fmt.Errorf("Client: %w", domain.ErrConfiguration)
	}
	if n.RPCURL == "" {
		return nil, fmt.Errorf("Client: no RPC URL for %s: %w", c, domain.ErrConfiguration)
	}

	b, err := p.dial(ctx, n.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("Client: dial %s: %w", c, errors.Join(domain.ErrNetwork, err))
	}
	p.clients[c] = b
	return b, nil
}

func (p *ClientPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c, b := range p.clients {
		if closer, ok := b.(interface{ Close() }); ok {
			closer.Close()
		}
		delete(p.clients, c)
	}
}

// isRevert reports whether an RPC error is an EVM revert as opposed to a
// transport failure. Nodes report reverts as "execution reverted" in the
// JSON-RPC error message.
func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

// classify maps an RPC error to an error kind. Everything that is not a
// revert or missing contract code is treated as transient.
func classify(err error, revertKind error) error {
	switch {
	case errors.Is(err, bind.ErrNoCode):
		return errors.Join(domain.ErrConfiguration, err)
	case isRevert(err):
		return errors.Join(revertKind, err)
	default:
		return errors.Join(domain.ErrNetwork, err)
	}
}
