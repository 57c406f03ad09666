package bridge

import (
	"fmt"
	"math/big"
)

const (
	// SafetyBufferBps trims the LTV-bounded maximum so the position stays
	// below the liquidation threshold through oracle staleness and rounding.
	SafetyBufferBps uint64 = 9_500

	bpsDenominator uint64 = 10_000

	// maxDecimals bounds the decimal exponents accepted by the sizing math.
	maxDecimals uint8 = 36
)

var bigBps = new(big.Int).SetUint64(bpsDenominator)

// SizingInputs are the live quantities the borrow computation runs on. The
// LTV must be sourced from the facility configuration at call time, never
// cached, since it can change between ticks.
type SizingInputs struct {
	// CollateralBalance is the caller's receipt-token balance, tracking the
	// supplied principal 1:1.
	CollateralBalance *big.Int
	// CollateralPrice and SettlementPrice are spot prices denominated in a
	// common unit.
	CollateralPrice *big.Int
	SettlementPrice *big.Int
	// CollateralDecimals and SettlementDecimals are the native precisions of
	// the two assets.
	CollateralDecimals uint8
	SettlementDecimals uint8
	// LTVBps is the liquidation-relevant loan-to-value ratio in basis points.
	LTVBps uint64
	// SafetyBufferBps scales the raw borrowable amount down; callers pass
	// SafetyBufferBps unless a test exercises the unbuffered bound.
	SafetyBufferBps uint64
}

// SafeBorrow computes the maximum settlement-asset amount that may be drawn
// against the collateral described by in. All intermediate values are
// unsigned integers and every division truncates toward zero: rounding is
// conservative at every step, since rounding up would over-borrow and break
// the safety invariant.
func SafeBorrow(in SizingInputs) (*big.Int, error) {
	if in.SettlementPrice == nil || in.SettlementPrice.Sign() <= 0 {
		return nil, fmt.Errorf("%w: settlement price unavailable", ErrInvalidConfiguration)
	}
	if in.CollateralPrice == nil || in.CollateralPrice.Sign() < 0 {
		return nil, fmt.Errorf("%w: collateral price unavailable", ErrInvalidConfiguration)
	}
	if in.CollateralDecimals > maxDecimals || in.SettlementDecimals > maxDecimals {
		return nil, fmt.Errorf("%w: decimal exponent out of range", ErrInvalidConfiguration)
	}
	if in.LTVBps > bpsDenominator {
		return nil, fmt.Errorf("%w: ltv %d exceeds %d bps", ErrInvalidConfiguration, in.LTVBps, bpsDenominator)
	}
	if in.SafetyBufferBps > bpsDenominator {
		return nil, fmt.Errorf("%w: safety buffer %d exceeds %d bps", ErrInvalidConfiguration, in.SafetyBufferBps, bpsDenominator)
	}
	balance := in.CollateralBalance
	if balance == nil || balance.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	collateralValue := new(big.Int).Mul(balance, in.CollateralPrice)
	collateralValue.Quo(collateralValue, pow10(in.CollateralDecimals))

	borrowableValue := new(big.Int).Mul(collateralValue, new(big.Int).SetUint64(in.LTVBps))
	borrowableValue.Quo(borrowableValue, bigBps)

	borrowableRaw := new(big.Int).Mul(borrowableValue, pow10(in.SettlementDecimals))
	borrowableRaw.Quo(borrowableRaw, in.SettlementPrice)

	borrowable := new(big.Int).Mul(borrowableRaw, new(big.Int).SetUint64(in.SafetyBufferBps))
	borrowable.Quo(borrowable, bigBps)
	return borrowable, nil
}

func pow10(exp uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}
