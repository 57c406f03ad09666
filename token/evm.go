package token

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"loanbridge/evm"
)

const erc20ABI = `[
  {"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var erc20 = evm.MustABI(erc20ABI)

// EVM implements Custody against live ERC-20 contracts. All debits land on
// and all approvals are granted from the signer's custody account.
type EVM struct {
	backend evm.Backend
	signer  *evm.Signer

	mu        sync.Mutex
	contracts map[common.Address]*bind.BoundContract
}

// NewEVM builds an ERC-20 custody adapter over the given backend.
func NewEVM(backend evm.Backend, signer *evm.Signer) *EVM {
	return &EVM{
		backend:   backend,
		signer:    signer,
		contracts: make(map[common.Address]*bind.BoundContract),
	}
}

func (t *EVM) contract(asset common.Address) *bind.BoundContract {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bound, ok := t.contracts[asset]; ok {
		return bound
	}
	bound := bind.NewBoundContract(asset, erc20, t.backend, t.backend, t.backend)
	t.contracts[asset] = bound
	return bound
}

func (t *EVM) transact(ctx context.Context, asset common.Address, method string, args ...interface{}) error {
	opts, err := t.signer.TransactOpts(ctx)
	if err != nil {
		return err
	}
	tx, err := t.contract(asset).Transact(opts, method, args...)
	if err != nil {
		return fmt.Errorf("erc20 %s: %w", method, err)
	}
	return evm.WaitSuccess(ctx, t.backend, tx)
}

// PullFrom debits amount from holder into the custody account. Requires a
// prior allowance from the holder to the custody account.
func (t *EVM) PullFrom(ctx context.Context, asset, holder common.Address, amount *big.Int) error {
	return t.transact(ctx, asset, "transferFrom", holder, t.signer.Address(), amount)
}

// Transfer moves amount from the custody account to the recipient.
func (t *EVM) Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	return t.transact(ctx, asset, "transfer", to, amount)
}

// Approve grants spender an allowance over the custody account's balance.
func (t *EVM) Approve(ctx context.Context, asset, spender common.Address, amount *big.Int) error {
	return t.transact(ctx, asset, "approve", spender, amount)
}

// BalanceOf reads the asset balance held by account.
func (t *EVM) BalanceOf(ctx context.Context, asset, account common.Address) (*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := t.contract(asset).Call(opts, &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("erc20 balanceOf: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// Decimals reads the asset's decimal precision.
func (t *EVM) Decimals(ctx context.Context, asset common.Address) (uint8, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := t.contract(asset).Call(opts, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("erc20 decimals: %w", err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}
