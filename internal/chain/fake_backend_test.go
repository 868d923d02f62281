package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend answers the handful of RPC calls the oracle and executor make.
// Methods it does not override panic through the nil embedded interface.
type fakeBackend struct {
	Backend

	mu            sync.Mutex
	decimals      uint8
	balances      map[common.Address]*big.Int
	callErr       error
	estimateErr   error
	sendErr       error
	receiptStatus uint64
	nonce         uint64
	decimalsCalls int
	sent          []*types.Transaction
}

func newFakeBackend(decimals uint8) *fakeBackend {
	return &fakeBackend{
		decimals:      decimals,
		balances:      make(map[common.Address]*big.Int),
		receiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.callErr != nil {
		return nil, f.callErr
	}
	method, err := erc20ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "decimals":
		f.decimalsCalls++
		return method.Outputs.Pack(f.decimals)
	case "balanceOf":
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		bal, ok := f.balances[args[0].(common.Address)]
		if !ok {
			bal = big.NewInt(0)
		}
		return method.Outputs.Pack(bal)
	}
	return nil, errors.New("unexpected method " + method.Name)
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100)}, nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 80_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{
		TxHash:      hash,
		Status:      f.receiptStatus,
		BlockNumber: big.NewInt(101),
		GasUsed:     52_000,
	}, nil
}

func (f *fakeBackend) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func fakeDialer(b Backend) Dialer {
	return func(context.Context, string) (Backend, error) {
		return b, nil
	}
}
