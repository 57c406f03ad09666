package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"loanbridge/facility"
	"loanbridge/guard"
	"loanbridge/messenger"
	"loanbridge/oracle"
	"loanbridge/token"
)

const (
	pathDirect     = "direct"
	pathCollateral = "collateral"
)

// EngineConfig carries the immutable collaborators fixed at construction.
type EngineConfig struct {
	Guard           *guard.Guard
	Facility        facility.Facility
	Oracle          oracle.PriceOracle
	Messenger       messenger.Messenger
	Tokens          token.Custody
	SettlementAsset common.Address
	Emitter         Emitter
	Metrics         *Metrics
	Logger          *slog.Logger
}

// Engine orchestrates custody transitions for cross-domain transfers: it
// pulls the source asset from the caller, optionally pledges it as
// collateral and draws an LTV-bounded loan, and dispatches the settlement
// asset to the cross-domain messenger.
type Engine struct {
	guard           *guard.Guard
	facility        facility.Facility
	oracle          oracle.PriceOracle
	messenger       messenger.Messenger
	tokens          token.Custody
	settlementAsset common.Address
	debt            *DebtLedger
	emitter         Emitter
	metrics         *Metrics
	logger          *slog.Logger
}

// NewEngine validates the configuration and wires the orchestrator. Zero
// collaborator addresses are rejected at this point so a misdeployment fails
// at startup rather than on the first transfer.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Guard == nil || cfg.Facility == nil || cfg.Oracle == nil || cfg.Messenger == nil || cfg.Tokens == nil {
		return nil, errNilConfig
	}
	if cfg.SettlementAsset == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if cfg.Facility.Address() == (common.Address{}) || cfg.Messenger.Address() == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if cfg.Emitter == nil {
		cfg.Emitter = NoopEmitter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	debt, err := NewDebtLedger(cfg.Facility, cfg.Tokens, cfg.SettlementAsset, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		guard:           cfg.Guard,
		facility:        cfg.Facility,
		oracle:          cfg.Oracle,
		messenger:       cfg.Messenger,
		tokens:          cfg.Tokens,
		settlementAsset: cfg.SettlementAsset,
		debt:            debt,
		emitter:         cfg.Emitter,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}, nil
}

// ExecuteTransfer validates the request, takes custody of the source asset,
// runs the direct or supply-then-borrow path, and dispatches the settlement
// asset cross-domain. The whole operation completes as a unit or fails as a
// unit: custody taken by this system is returned to the caller on any later
// failure, and a borrow that could not be dispatched is repaid before the
// error surfaces.
func (e *Engine) ExecuteTransfer(ctx context.Context, caller common.Address, req TransferRequest) (TransferRecord, error) {
	var rec TransferRecord
	if err := e.guard.Enter(); err != nil {
		return rec, err
	}
	defer e.guard.Exit()
	if err := e.guard.RequireActive(); err != nil {
		return rec, err
	}
	if caller == (common.Address{}) {
		return rec, ErrInvalidAddress
	}
	if err := req.Validate(); err != nil {
		return rec, err
	}

	if err := e.tokens.PullFrom(ctx, req.SourceAsset, caller, req.Amount); err != nil {
		return rec, fmt.Errorf("%w: pull %s from caller: %v", ErrTransferFailed, req.SourceAsset.Hex(), err)
	}

	supplied := big.NewInt(0)
	borrowed := big.NewInt(0)
	dispatchAmount := new(big.Int).Set(req.Amount)
	path := pathDirect

	if req.SourceAsset != e.settlementAsset {
		path = pathCollateral
		supplied = new(big.Int).Set(req.Amount)
		sized, err := e.supplyAndBorrow(ctx, caller, req)
		if err != nil {
			return rec, err
		}
		borrowed = sized
		dispatchAmount = new(big.Int).Set(sized)
	}

	if err := e.dispatch(ctx, caller, req, dispatchAmount, borrowed); err != nil {
		return rec, err
	}

	rec = TransferRecord{
		User:                     caller,
		SourceAsset:              req.SourceAsset,
		SuppliedAmount:           supplied,
		BorrowedSettlementAmount: borrowed,
		DestinationDomain:        req.DestinationDomain,
		Recipient:                req.Recipient,
		HealthFactorAfter:        e.healthFactor(ctx, caller),
	}
	e.emitter.Emit(TransferDispatched{Record: rec})
	e.metrics.transferDispatched(path)
	e.logger.Info("transfer dispatched",
		"user", caller.Hex(),
		"sourceAsset", req.SourceAsset.Hex(),
		"destinationDomain", req.DestinationDomain,
		"supplied", supplied.String(),
		"borrowed", borrowed.String(),
	)
	return rec, nil
}

// GetUserBorrows aggregates the user's outstanding settlement-asset debt
// across all rate-classes the facility exposes.
func (e *Engine) GetUserBorrows(ctx context.Context, user common.Address) (*big.Int, error) {
	if err := e.guard.RequireActive(); err != nil {
		return nil, err
	}
	return e.debt.TotalDebt(ctx, user)
}

// RepayBorrowed pulls the settlement asset from the caller and forwards it to
// the facility against the caller's variable-rate debt. The amount passes
// through unchanged; over-repayment handling is the facility's concern.
func (e *Engine) RepayBorrowed(ctx context.Context, caller common.Address, amount *big.Int) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if err := e.guard.RequireActive(); err != nil {
		return err
	}
	if caller == (common.Address{}) {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	if err := e.tokens.PullFrom(ctx, e.settlementAsset, caller, amount); err != nil {
		return fmt.Errorf("%w: pull settlement asset from caller: %v", ErrTransferFailed, err)
	}
	if err := e.tokens.Approve(ctx, e.settlementAsset, e.facility.Address(), amount); err != nil {
		e.refund(ctx, e.settlementAsset, caller, amount)
		return fmt.Errorf("%w: approve facility: %v", ErrExternalCallFailed, err)
	}
	if err := e.facility.Repay(ctx, e.settlementAsset, amount, facility.RateModeVariable, caller); err != nil {
		e.metrics.externalFailure("facility")
		e.resetApproval(ctx, e.settlementAsset, e.facility.Address())
		e.refund(ctx, e.settlementAsset, caller, amount)
		return fmt.Errorf("%w: repay: %v", ErrExternalCallFailed, err)
	}

	e.emitter.Emit(RepaymentForwarded{User: caller, Amount: new(big.Int).Set(amount)})
	e.metrics.repaymentForwarded()
	e.logger.Info("repayment forwarded", "user", caller.Hex(), "amount", amount.String())
	return nil
}

// Pause halts all asset-moving and debt-reading entry points.
func (e *Engine) Pause(caller common.Address) error { return e.guard.Pause(caller) }

// Unpause restores the active state.
func (e *Engine) Unpause(caller common.Address) error { return e.guard.Unpause(caller) }

// GrantPauserRole assigns the pauser role; admin authority required.
func (e *Engine) GrantPauserRole(caller, account common.Address) error {
	return e.guard.GrantPauser(caller, account)
}

// RevokePauserRole removes the pauser role; admin authority required.
func (e *Engine) RevokePauserRole(caller, account common.Address) error {
	return e.guard.RevokePauser(caller, account)
}

// supplyAndBorrow pledges the pulled custody as collateral on the caller's
// behalf and draws the sized loan into system custody. The caller becomes
// the collateral owner of record; the debt is credited to the caller.
func (e *Engine) supplyAndBorrow(ctx context.Context, caller common.Address, req TransferRequest) (*big.Int, error) {
	pool := e.facility.Address()
	if err := e.tokens.Approve(ctx, req.SourceAsset, pool, req.Amount); err != nil {
		e.refund(ctx, req.SourceAsset, caller, req.Amount)
		return nil, fmt.Errorf("%w: approve facility: %v", ErrExternalCallFailed, err)
	}
	if err := e.facility.Supply(ctx, req.SourceAsset, req.Amount, caller); err != nil {
		e.metrics.externalFailure("facility")
		e.resetApproval(ctx, req.SourceAsset, pool)
		e.refund(ctx, req.SourceAsset, caller, req.Amount)
		return nil, fmt.Errorf("%w: supply: %v", ErrExternalCallFailed, err)
	}

	borrowed, err := e.sizeBorrow(ctx, caller, req.SourceAsset)
	if err != nil {
		return nil, err
	}
	if borrowed.Sign() == 0 {
		return nil, fmt.Errorf("%w: borrowable amount is zero", ErrInvalidConfiguration)
	}
	if err := e.facility.Borrow(ctx, e.settlementAsset, borrowed, facility.RateModeVariable, caller); err != nil {
		e.metrics.externalFailure("facility")
		return nil, fmt.Errorf("%w: borrow: %v", ErrExternalCallFailed, err)
	}
	return borrowed, nil
}

// sizeBorrow gathers live facility configuration, balances and prices and
// runs the sizing formula. Nothing here is cached between calls.
func (e *Engine) sizeBorrow(ctx context.Context, caller, collateralAsset common.Address) (*big.Int, error) {
	cfg, err := e.facility.Configuration(ctx, collateralAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve configuration: %v", ErrExternalCallFailed, err)
	}
	reserve, err := e.facility.ReserveData(ctx, collateralAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve data: %v", ErrExternalCallFailed, err)
	}
	if reserve.ReceiptToken == (common.Address{}) {
		return nil, fmt.Errorf("%w: receipt token missing for %s", ErrInvalidConfiguration, collateralAsset.Hex())
	}
	balance, err := e.tokens.BalanceOf(ctx, reserve.ReceiptToken, caller)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt balance: %v", ErrExternalCallFailed, err)
	}
	collateralPrice, err := e.oracle.AssetPrice(ctx, collateralAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: collateral price: %v", ErrExternalCallFailed, err)
	}
	settlementPrice, err := e.oracle.AssetPrice(ctx, e.settlementAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: settlement price: %v", ErrExternalCallFailed, err)
	}
	collateralDecimals, err := e.tokens.Decimals(ctx, collateralAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: collateral decimals: %v", ErrExternalCallFailed, err)
	}
	settlementDecimals, err := e.tokens.Decimals(ctx, e.settlementAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: settlement decimals: %v", ErrExternalCallFailed, err)
	}
	return SafeBorrow(SizingInputs{
		CollateralBalance:  balance,
		CollateralPrice:    collateralPrice,
		SettlementPrice:    settlementPrice,
		CollateralDecimals: collateralDecimals,
		SettlementDecimals: settlementDecimals,
		LTVBps:             cfg.LTVBps,
		SafetyBufferBps:    SafetyBufferBps,
	})
}

// dispatch hands the settlement asset to the messenger. On failure the
// custody taken so far is unwound: a fresh borrow is repaid against the debt
// it created, a direct-path amount is returned to the caller.
func (e *Engine) dispatch(ctx context.Context, caller common.Address, req TransferRequest, amount, borrowed *big.Int) error {
	target := e.messenger.Address()
	if err := e.tokens.Approve(ctx, e.settlementAsset, target, amount); err != nil {
		e.unwindDispatch(ctx, caller, amount, borrowed)
		return fmt.Errorf("%w: approve messenger: %v", ErrExternalCallFailed, err)
	}
	burn := messenger.BurnRequest{
		Amount:            new(big.Int).Set(amount),
		DestinationDomain: req.DestinationDomain,
		MintRecipient:     messenger.RecipientBytes32(req.Recipient),
		BurnToken:         e.settlementAsset,
		MaxFee:            new(big.Int).Set(req.MaxFee),
		MinFinality:       messenger.FinalityThresholdFast,
	}
	if err := e.messenger.DepositForBurn(ctx, burn); err != nil {
		e.metrics.externalFailure("messenger")
		e.resetApproval(ctx, e.settlementAsset, target)
		e.unwindDispatch(ctx, caller, amount, borrowed)
		return fmt.Errorf("%w: deposit for burn: %v", ErrExternalCallFailed, err)
	}
	return nil
}

func (e *Engine) unwindDispatch(ctx context.Context, caller common.Address, amount, borrowed *big.Int) {
	if borrowed.Sign() > 0 {
		// Collateral path: cancel the debt the failed dispatch stranded.
		pool := e.facility.Address()
		if err := e.tokens.Approve(ctx, e.settlementAsset, pool, borrowed); err != nil {
			e.logger.Error("unwind approve failed", "error", err)
			return
		}
		if err := e.facility.Repay(ctx, e.settlementAsset, borrowed, facility.RateModeVariable, caller); err != nil {
			e.logger.Error("unwind repay failed", "user", caller.Hex(), "amount", borrowed.String(), "error", err)
		}
		return
	}
	e.refund(ctx, e.settlementAsset, caller, amount)
}

// healthFactor is advisory only; a failed query never blocks completion.
func (e *Engine) healthFactor(ctx context.Context, user common.Address) *big.Int {
	data, err := e.facility.AccountData(ctx, user)
	if err != nil {
		e.logger.Warn("health factor unavailable", "user", user.Hex(), "error", err)
		return nil
	}
	return data.HealthFactor
}

func (e *Engine) refund(ctx context.Context, asset, recipient common.Address, amount *big.Int) {
	if err := e.tokens.Transfer(ctx, asset, recipient, amount); err != nil {
		e.logger.Error("custody refund failed",
			"asset", asset.Hex(), "recipient", recipient.Hex(), "amount", amount.String(), "error", err)
	}
}

func (e *Engine) resetApproval(ctx context.Context, asset, spender common.Address) {
	if err := e.tokens.Approve(ctx, asset, spender, big.NewInt(0)); err != nil {
		e.logger.Warn("approval reset failed", "asset", asset.Hex(), "spender", spender.Hex(), "error", err)
	}
}
