package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferRequest describes a single cross-domain transfer. Amounts are
// denominated in the source asset's native units.
type TransferRequest struct {
	// SourceAsset is the asset pulled from the caller. When it is the
	// settlement asset the transfer forwards directly; otherwise it is
	// pledged as collateral and the loan proceeds are forwarded instead.
	SourceAsset common.Address
	// DestinationDomain identifies the execution environment the settlement
	// asset is minted on.
	DestinationDomain uint32
	// Recipient receives the minted settlement asset on the destination
	// domain.
	Recipient common.Address
	// Amount is the quantity of SourceAsset pulled from the caller.
	Amount *big.Int
	// MaxFee caps the messenger fee charged on the destination mint. It must
	// be strictly below the dispatched amount.
	MaxFee *big.Int
}

// Validate checks the request invariants before any side effect.
func (r TransferRequest) Validate() error {
	if r.SourceAsset == (common.Address{}) || r.Recipient == (common.Address{}) {
		return ErrInvalidAddress
	}
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if r.MaxFee == nil || r.MaxFee.Sign() < 0 {
		return ErrInvalidAmount
	}
	if r.MaxFee.Cmp(r.Amount) >= 0 {
		return ErrFeeTooHigh
	}
	return nil
}

// TransferRecord is the completion record emitted for every successful
// transfer. It is emitted, never persisted; the lending facility and the
// messaging protocol remain the systems of record.
type TransferRecord struct {
	User        common.Address `json:"user"`
	SourceAsset common.Address `json:"sourceAsset"`
	// SuppliedAmount is the collateral pledged with the lending facility. It
	// is zero on the direct settlement-asset path.
	SuppliedAmount *big.Int `json:"suppliedAmount"`
	// BorrowedSettlementAmount is the loan drawn against the collateral. It
	// is zero on the direct path.
	BorrowedSettlementAmount *big.Int       `json:"borrowedSettlementAmount"`
	DestinationDomain        uint32         `json:"destinationDomain"`
	Recipient                common.Address `json:"recipient"`
	// HealthFactorAfter is the facility's advisory risk metric after the
	// operation, nil when unavailable.
	HealthFactorAfter *big.Int `json:"healthFactorAfter"`
}
