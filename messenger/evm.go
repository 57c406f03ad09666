package messenger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"loanbridge/evm"
)

// CCTP v2 token messenger surface, trimmed to the dispatch entrypoint.
const tokenMessengerABI = `[
  {"type":"function","name":"depositForBurn","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"destinationDomain","type":"uint32"},{"name":"mintRecipient","type":"bytes32"},{"name":"burnToken","type":"address"},{"name":"destinationCaller","type":"bytes32"},{"name":"maxFee","type":"uint256"},{"name":"minFinalityThreshold","type":"uint32"}],"outputs":[]}
]`

var tokenMessenger = evm.MustABI(tokenMessengerABI)

// EVM drives a CCTP style token messenger contract.
type EVM struct {
	address  common.Address
	contract *bind.BoundContract
	backend  evm.Backend
	signer   *evm.Signer
}

// NewEVM binds the token messenger at address over the given backend.
func NewEVM(address common.Address, backend evm.Backend, signer *evm.Signer) *EVM {
	return &EVM{
		address:  address,
		contract: bind.NewBoundContract(address, tokenMessenger, backend, backend, backend),
		backend:  backend,
		signer:   signer,
	}
}

func (m *EVM) Address() common.Address { return m.address }

// DepositForBurn burns req.Amount of the burn token on the local domain and
// enqueues minting to the recipient on the destination domain.
func (m *EVM) DepositForBurn(ctx context.Context, req BurnRequest) error {
	opts, err := m.signer.TransactOpts(ctx)
	if err != nil {
		return err
	}
	tx, err := m.contract.Transact(opts, "depositForBurn",
		req.Amount, req.DestinationDomain, req.MintRecipient,
		req.BurnToken, req.DestinationCaller, req.MaxFee, req.MinFinality)
	if err != nil {
		return fmt.Errorf("messenger depositForBurn: %w", err)
	}
	return evm.WaitSuccess(ctx, m.backend, tx)
}
