// Package facility abstracts the external lending facility the orchestrator
// pledges collateral with and draws loans from. The facility owns all
// collateral and debt positions; this system only directs transitions and
// reads derived quantities.
package facility

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Variable-rate is the only rate mode the orchestrator opens debt in.
const (
	RateModeStable   uint64 = 1
	RateModeVariable uint64 = 2
)

// ReserveConfig carries the risk parameters the facility applies to an asset.
type ReserveConfig struct {
	// LTVBps is the loan-to-value ratio in basis points (0-10000).
	LTVBps uint64
}

// ReserveData identifies the instrument contracts backing a reserve. The
// stable debt instrument is optional: deployments without it report the zero
// address.
type ReserveData struct {
	ReceiptToken      common.Address
	VariableDebtToken common.Address
	StableDebtToken   common.Address
}

// HasStableDebt reports whether the reserve exposes a stable-rate debt class.
func (r ReserveData) HasStableDebt() bool {
	return r.StableDebtToken != (common.Address{})
}

// AccountData is the facility's aggregate risk view of a user.
type AccountData struct {
	// HealthFactor is the facility's liquidation risk metric, wad scaled.
	HealthFactor *big.Int
}

// Facility is the lending pool surface consumed by the orchestrator. Every
// method can fail; failures abort the calling operation.
type Facility interface {
	// Address is the spender identity custody approvals are granted to.
	Address() common.Address
	Supply(ctx context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address) error
	Borrow(ctx context.Context, asset common.Address, amount *big.Int, rateMode uint64, onBehalfOf common.Address) error
	Repay(ctx context.Context, asset common.Address, amount *big.Int, rateMode uint64, onBehalfOf common.Address) error
	Configuration(ctx context.Context, asset common.Address) (ReserveConfig, error)
	ReserveData(ctx context.Context, asset common.Address) (ReserveData, error)
	AccountData(ctx context.Context, user common.Address) (AccountData, error)
}
