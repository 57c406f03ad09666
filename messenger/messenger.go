// Package messenger dispatches one-way cross-domain burn messages. Delivery
// and minting on the destination domain are the messaging protocol's
// responsibility; the orchestrator never awaits confirmation.
package messenger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FinalityThresholdFast requests fast-mode attestation on the source domain.
const FinalityThresholdFast uint32 = 1000

// BurnRequest describes a single cross-domain dispatch. DestinationCaller is
// left zero so any caller can complete the message on the destination domain.
type BurnRequest struct {
	Amount            *big.Int
	DestinationDomain uint32
	MintRecipient     [32]byte
	BurnToken         common.Address
	DestinationCaller [32]byte
	MaxFee            *big.Int
	MinFinality       uint32
}

// Messenger enqueues a burn on the local domain for minting on the
// destination domain.
type Messenger interface {
	// Address is the spender identity custody approvals are granted to.
	Address() common.Address
	DepositForBurn(ctx context.Context, req BurnRequest) error
}

// RecipientBytes32 left-pads an address into the 32-byte recipient encoding
// the messenger contract expects.
func RecipientBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr[:])
	return out
}
