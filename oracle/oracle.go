// Package oracle provides read-only access to asset spot prices. Prices for
// all assets are denominated in a common base unit so they can be compared
// directly.
package oracle

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PriceOracle resolves the spot price of an asset. Pure query, no mutation.
type PriceOracle interface {
	AssetPrice(ctx context.Context, asset common.Address) (*big.Int, error)
}
