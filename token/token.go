// Package token provides fungible-asset custody operations for the
// orchestrator. Assets follow standard pull (transferFrom) and allowance
// semantics.
package token

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Custody moves fungible assets on behalf of the orchestrator. The system
// address is fixed by the implementation; PullFrom always credits it.
type Custody interface {
	// PullFrom moves amount of asset from the holder into system custody.
	// It fails when the holder has an insufficient balance or has not
	// approved the system for the amount.
	PullFrom(ctx context.Context, asset, holder common.Address, amount *big.Int) error
	// Transfer moves amount of asset out of system custody to the recipient.
	Transfer(ctx context.Context, asset, recipient common.Address, amount *big.Int) error
	// Approve authorises the spender to pull amount of asset from system
	// custody.
	Approve(ctx context.Context, asset, spender common.Address, amount *big.Int) error
	// BalanceOf reports the holder's asset balance.
	BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error)
	// Decimals reports the asset's decimal precision.
	Decimals(ctx context.Context, asset common.Address) (uint8, error)
}
