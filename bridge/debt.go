package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"loanbridge/facility"
	"loanbridge/token"
)

// DebtLedger aggregates a user's outstanding settlement-asset principal
// across the debt rate-classes exposed by the lending facility.
type DebtLedger struct {
	facility        facility.Facility
	tokens          token.Custody
	settlementAsset common.Address
	logger          *slog.Logger
}

// NewDebtLedger wires the ledger to the facility and custody adapters.
func NewDebtLedger(fac facility.Facility, tokens token.Custody, settlementAsset common.Address, logger *slog.Logger) (*DebtLedger, error) {
	if fac == nil || tokens == nil {
		return nil, errNilConfig
	}
	if settlementAsset == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DebtLedger{facility: fac, tokens: tokens, settlementAsset: settlementAsset, logger: logger}, nil
}

// TotalDebt sums the user's principal across every debt rate-class of the
// settlement asset. The variable-rate class must resolve; the stable-rate
// class is optional and contributes zero when the instrument is absent, the
// query fails, or the result is malformed.
func (d *DebtLedger) TotalDebt(ctx context.Context, user common.Address) (*big.Int, error) {
	if user == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	reserve, err := d.facility.ReserveData(ctx, d.settlementAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve data: %v", ErrExternalCallFailed, err)
	}
	if reserve.VariableDebtToken == (common.Address{}) {
		return nil, fmt.Errorf("%w: variable debt instrument missing", ErrInvalidConfiguration)
	}
	variable, err := d.tokens.BalanceOf(ctx, reserve.VariableDebtToken, user)
	if err != nil {
		return nil, fmt.Errorf("%w: variable debt balance: %v", ErrExternalCallFailed, err)
	}
	total := big.NewInt(0)
	if variable != nil && variable.Sign() > 0 {
		total.Set(variable)
	}
	if reserve.HasStableDebt() {
		stable, err := d.tokens.BalanceOf(ctx, reserve.StableDebtToken, user)
		switch {
		case err != nil:
			d.logger.Debug("stable debt query failed, counting zero",
				"user", user.Hex(), "instrument", reserve.StableDebtToken.Hex(), "error", err)
		case stable != nil && stable.Sign() > 0:
			total.Add(total, stable)
		}
	}
	return total, nil
}
