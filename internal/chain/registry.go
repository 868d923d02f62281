package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/josh-kwaku/starbridge/internal/config"
	"github.com/josh-kwaku/starbridge/internal/domain"
)

type Network struct {
	Chain    domain.Chain
	Name     string
	ChainID  *big.Int
	RPCURL   string
	Explorer string
	Vault    common.Address
	Tokens   map[domain.Token]common.Address
}

type networkDefaults struct {
	name     string
	chainID  int64
	rpcURL   string
	explorer string
	vault    string
	tokens   map[domain.Token]string
}

var mainnets = map[domain.Chain]networkDefaults{
	domain.ChainBSC: {
		name:     "BNB Smart Chain",
		chainID:  56,
		rpcURL:   "https://bsc-dataseed.binance.org",
		explorer: "https://bscscan.com",
		tokens: map[domain.Token]string{
			domain.TokenUSDT: "0x55d398326f99059ff775485246999027b3197955",
			domain.TokenUSDC: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d",
		},
	},
	domain.ChainOPBNB: {
		name:     "opBNB",
		chainID:  204,
		rpcURL:   "https://opbnb-mainnet-rpc.bnbchain.org",
		explorer: "https://opbnb.bscscan.com",
		tokens: map[domain.Token]string{
			domain.TokenUSDT: "0x9e5aac1ba1a2e6aed6b32689dfcf62a509ca96f3",
		},
	},
}

var testnets = map[domain.Chain]networkDefaults{
	domain.ChainBSC: {
		name:     "BNB Smart Chain Testnet",
		chainID:  97,
		rpcURL:   "https://data-seed-prebsc-1-s1.bnbchain.org:8545",
		explorer: "https://testnet.bscscan.com",
		vault:    "0x45300386d7A051335c638480B20E9db93bc919E9",
		tokens: map[domain.Token]string{
			domain.TokenUSDT: "0x337610d27c682E347C9cD60BD4b3b107C9d34dDd",
			domain.TokenUSDC: "0x64544969ed7EBf5f083679233325356EbE738930",
		},
	},
	domain.ChainOPBNB: {
		name:     "opBNB Testnet",
		chainID:  5611,
		rpcURL:   "https://opbnb-testnet-rpc.bnbchain.org",
		explorer: "https://testnet.opbnbscan.com",
		vault:    "0xD6e869136011388c5E863b859c1e407B7c4DC1e7",
		tokens: map[domain.Token]string{
			domain.TokenUSDT: "0xcf712f20c85421d00eaa1b6f6545aaeeb4492b75",
		},
	},
}

// Registry resolves per-chain network settings. Built-in defaults for the
// selected network set are overridden by configuration.
type Registry struct {
	testnet  bool
	networks map[domain.Chain]*Network
}

func NewRegistry(cfg config.ChainConfig) (*Registry, error) {
	defaults := mainnets
	if cfg.Testnet {
		defaults = testnets
	}

	r := &Registry{testnet: cfg.Testnet, networks: make(map[domain.Chain]*Network, len(defaults))}
	for c, d := range defaults {
		n := &Network{
			Chain:    c,
			Name:     d.name,
			ChainID:  big.NewInt(d.chainID),
			RPCURL:   d.rpcURL,
			Explorer: d.explorer,
			Tokens:   make(map[domain.Token]common.Address, len(d.tokens)),
		}
		if d.vault != "" {
			n.Vault = common.HexToAddress(d.vault)
		}
		for t, addr := range d.tokens {
			n.Tokens[t] = common.HexToAddress(addr)
		}
		r.networks[c] = n
	}

	for key, url := range cfg.RPCURLs {
		n, err := r.lookup(key)
		if err != nil {
			return nil, fmt.Errorf("NewRegistry: RPC_URLS: %w", err)
		}
		n.RPCURL = url
	}

	for key, addr := range cfg.VaultAddresses {
		n, err := r.lookup(key)
		if err != nil {
			return nil, fmt.Errorf("NewRegistry: VAULT_ADDRESSES: %w", err)
		}
		// "0x" marks a chain with no deployed vault.
		if addr == "" || addr == "0x" {
			n.Vault = common.Address{}
			continue
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("NewRegistry: vault for %s is not an address: %w", key, domain.ErrConfiguration)
		}
		n.Vault = common.HexToAddress(addr)
	}

	for key, addr := range cfg.TokenAddresses {
		chainKey, tokenKey, ok := strings.Cut(key, "/")
		if !ok {
			return nil, fmt.Errorf("NewRegistry: token key %q must be chain/TOKEN: %w", key, domain.ErrConfiguration)
		}
		n, err := r.lookup(chainKey)
		if err != nil {
			return nil, fmt.Errorf("NewRegistry: TOKEN_ADDRESSES: %w", err)
		}
		t, ok := domain.ParseToken(tokenKey)
		if !ok {
			return nil, fmt.Errorf("NewRegistry: unknown token %q: %w", tokenKey, domain.ErrConfiguration)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("NewRegistry: token %s is not an address: %w", key, domain.ErrConfiguration)
		}
		n.Tokens[t] = common.HexToAddress(addr)
	}

	return r, nil
}

func (r *Registry) lookup(key string) (*Network, error) {
	c, ok := domain.ParseChain(key)
	if !ok {
		return nil, fmt.Errorf("unknown chain %q: %w", key, domain.ErrConfiguration)
	}
	return r.networks[c], nil
}

func (r *Registry) Testnet() bool {
	return r.testnet
}

func (r *Registry) Network(c domain.Chain) (*Network, error) {
	n, ok := r.networks[c]
	if !ok {
		return nil, fmt.Errorf("Network: %s: %w", c, domain.ErrUnsupportedAsset)
	}
	return n, nil
}

// Supports reports whether token has a contract on chain. It does not
// require a vault; that is checked when funds are about to move.
func (r *Registry) Supports(c domain.Chain, t domain.Token) bool {
	n, ok := r.networks[c]
	if !ok {
		return false
	}
	_, ok = n.Tokens[t]
	return ok
}

func (r *Registry) VaultAddress(c domain.Chain) (string, error) {
	n, err := r.Network(c)
	if err != nil {
		return "", fmt.Errorf("VaultAddress: %w", err)
	}
	if n.Vault == (common.Address{}) {
		return "", fmt.Errorf("VaultAddress: no vault configured for %s: %w", c, domain.ErrConfiguration)
	}
	return n.Vault.Hex(), nil
}

func (r *Registry) TokenAddress(c domain.Chain, t domain.Token) (common.Address, error) {
	n, ok := r.networks[c]
	if !ok {
		return common.Address{}, fmt.Errorf("TokenAddress: unknown chain %s: %w", c, domain.ErrConfiguration)
	}
	addr, ok := n.Tokens[t]
	if !ok {
		return common.Address{}, fmt.Errorf("TokenAddress: %s not configured on %s: %w", t, c, domain.ErrConfiguration)
	}
	return addr, nil
}

func (r *Registry) ExplorerTxURL(c domain.Chain, txRef string) string {
	n, ok := r.networks[c]
	if !ok || txRef == "" {
		return ""
	}
	return n.Explorer + "/tx/" + txRef
}

// parseAddress validates a hex address supplied by a caller. The zero
// address is rejected.
func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(s)
	return addr, addr != (common.Address{})
}

// IsAddress reports whether s is a usable EVM destination address.
func IsAddress(s string) bool {
	_, ok := parseAddress(s)
	return ok
}
