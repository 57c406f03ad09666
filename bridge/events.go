package bridge

import (
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event types emitted by the orchestrator.
const (
	TypeTransferDispatched = "bridge.transfer.dispatched"
	TypeRepaymentForwarded = "bridge.repayment.forwarded"
)

// Event represents a structured state change emitted by the orchestrator.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (gateway, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// LogEmitter publishes events to a structured logger.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(ev Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("event", "type", ev.EventType(), "payload", ev)
}

// TransferDispatched is emitted once a cross-domain message has been handed
// to the messenger.
type TransferDispatched struct {
	Record TransferRecord
}

func (TransferDispatched) EventType() string { return TypeTransferDispatched }

// RepaymentForwarded is emitted when a repayment has been forwarded to the
// lending facility.
type RepaymentForwarded struct {
	User   common.Address
	Amount *big.Int
}

func (RepaymentForwarded) EventType() string { return TypeRepaymentForwarded }
