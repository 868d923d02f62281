package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/starbridge/internal/config"
	"github.com/josh-kwaku/starbridge/internal/domain"
)

func TestNewRegistry_Defaults(t *testing.T) {
	t.Run("mainnet has no vaults", func(t *testing.T) {
		r, err := NewRegistry(config.ChainConfig{})
		require.NoError(t, err)

		n, err := r.Network(domain.ChainBSC)
		require.NoError(t, err)
		assert.Equal(t, int64(56), n.ChainID.Int64())

		_, err = r.VaultAddress(domain.ChainBSC)
		require.ErrorIs(t, err, domain.ErrConfiguration)
		assert.True(t, r.Supports(domain.ChainBSC, domain.TokenUSDC))
		assert.False(t, r.Supports(domain.ChainOPBNB, domain.TokenUSDC))
	})

	t.Run("testnet vaults", func(t *testing.T) {
		r, err := NewRegistry(config.ChainConfig{Testnet: true})
		require.NoError(t, err)

		vault, err := r.VaultAddress(domain.ChainOPBNB)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0xD6e869136011388c5E863b859c1e407B7c4DC1e7").Hex(), vault)

		n, err := r.Network(domain.ChainOPBNB)
		require.NoError(t, err)
		assert.Equal(t, int64(5611), n.ChainID.Int64())
	})
}

func TestNewRegistry_Overrides(t *testing.T) {
	r, err := NewRegistry(config.ChainConfig{
		RPCURLs:        map[string]string{"bsc": "http://localhost:8545"},
		VaultAddresses: map[string]string{"bsc": "0x45300386d7A051335c638480B20E9db93bc919E9", "opbnb": "0x"},
		TokenAddresses: map[string]string{"opbnb/usdc": "0x64544969ed7EBf5f083679233325356EbE738930"},
	})
	require.NoError(t, err)

	n, err := r.Network(domain.ChainBSC)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", n.RPCURL)

	vault, err := r.VaultAddress(domain.ChainBSC)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x45300386d7A051335c638480B20E9db93bc919E9").Hex(), vault)

	_, err = r.VaultAddress(domain.ChainOPBNB)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	assert.True(t, r.Supports(domain.ChainOPBNB, domain.TokenUSDC))
}

func TestNewRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ChainConfig
	}{
		{name: "unknown chain", cfg: config.ChainConfig{RPCURLs: map[string]string{"eth": "http://x"}}},
		{name: "bad vault", cfg: config.ChainConfig{VaultAddresses: map[string]string{"bsc": "vault"}}},
		{name: "token key without chain", cfg: config.ChainConfig{TokenAddresses: map[string]string{"USDT": "0x55d398326f99059ff775485246999027b3197955"}}},
		{name: "unknown token", cfg: config.ChainConfig{TokenAddresses: map[string]string{"bsc/DAI": "0x55d398326f99059ff775485246999027b3197955"}}},
		{name: "bad token address", cfg: config.ChainConfig{TokenAddresses: map[string]string{"bsc/USDT": "0x123"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.cfg)
			require.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestTokenAddress_Unconfigured(t *testing.T) {
	r, err := NewRegistry(config.ChainConfig{})
	require.NoError(t, err)

	_, err = r.TokenAddress(domain.ChainOPBNB, domain.TokenUSDC)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = r.Network(domain.Chain("eth"))
	require.ErrorIs(t, err, domain.ErrUnsupportedAsset)
}

func TestIsAddress(t *testing.T) {
	assert.True(t, IsAddress("0x45300386d7A051335c638480B20E9db93bc919E9"))
	assert.False(t, IsAddress("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsAddress("0x45300386"))
	assert.False(t, IsAddress("not-an-address"))
}

func TestExplorerTxURL(t *testing.T) {
	r, err := NewRegistry(config.ChainConfig{Testnet: true})
	require.NoError(t, err)

	assert.Equal(t, "https://testnet.bscscan.com/tx/0xabc", r.ExplorerTxURL(domain.ChainBSC, "0xabc"))
	assert.Empty(t, r.ExplorerTxURL(domain.ChainBSC, ""))
}
