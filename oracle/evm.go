package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"loanbridge/evm"
)

const oracleABI = `[
  {"type":"function","name":"getAssetPrice","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var priceFeed = evm.MustABI(oracleABI)

// EVM reads prices from an on-chain aggregator shared with the lending
// facility, so borrow sizing and facility accounting agree on valuation.
type EVM struct {
	contract *bind.BoundContract
}

// NewEVM binds the price oracle at address over the given backend.
func NewEVM(address common.Address, backend evm.Backend) *EVM {
	return &EVM{contract: bind.NewBoundContract(address, priceFeed, backend, backend, backend)}
}

// AssetPrice reads the oracle quote for asset in the oracle's base units.
func (o *EVM) AssetPrice(ctx context.Context, asset common.Address) (*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := o.contract.Call(opts, &out, "getAssetPrice", asset); err != nil {
		return nil, fmt.Errorf("oracle getAssetPrice: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}
