package facility

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"loanbridge/evm"
)

// Aave v3 pool surface, trimmed to the calls the orchestrator issues.
const poolABI = `[
  {"type":"function","name":"supply","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
  {"type":"function","name":"borrow","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"interestRateMode","type":"uint256"},{"name":"referralCode","type":"uint16"},{"name":"onBehalfOf","type":"address"}],"outputs":[]},
  {"type":"function","name":"repay","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"interestRateMode","type":"uint256"},{"name":"onBehalfOf","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getConfiguration","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"data","type":"uint256"}]}]},
  {"type":"function","name":"getReserveData","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"configuration","type":"tuple","components":[{"name":"data","type":"uint256"}]},{"name":"liquidityIndex","type":"uint128"},{"name":"currentLiquidityRate","type":"uint128"},{"name":"variableBorrowIndex","type":"uint128"},{"name":"currentVariableBorrowRate","type":"uint128"},{"name":"currentStableBorrowRate","type":"uint128"},{"name":"lastUpdateTimestamp","type":"uint40"},{"name":"id","type":"uint16"},{"name":"aTokenAddress","type":"address"},{"name":"stableDebtTokenAddress","type":"address"},{"name":"variableDebtTokenAddress","type":"address"},{"name":"interestRateStrategyAddress","type":"address"},{"name":"accruedToTreasury","type":"uint128"},{"name":"unbacked","type":"uint128"},{"name":"isolationModeTotalDebt","type":"uint128"}]}]},
  {"type":"function","name":"getUserAccountData","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"totalCollateralBase","type":"uint256"},{"name":"totalDebtBase","type":"uint256"},{"name":"availableBorrowsBase","type":"uint256"},{"name":"currentLiquidationThreshold","type":"uint256"},{"name":"ltv","type":"uint256"},{"name":"healthFactor","type":"uint256"}]}
]`

var pool = evm.MustABI(poolABI)

// The LTV occupies the low 16 bits of the packed reserve configuration word.
var ltvMask = big.NewInt(0xFFFF)

// The orchestrator never participates in referral programs.
const referralNone uint16 = 0

type poolConfiguration struct {
	Data *big.Int
}

type poolReserveData struct {
	Configuration               poolConfiguration
	LiquidityIndex              *big.Int
	CurrentLiquidityRate        *big.Int
	VariableBorrowIndex         *big.Int
	CurrentVariableBorrowRate   *big.Int
	CurrentStableBorrowRate     *big.Int
	LastUpdateTimestamp         *big.Int
	Id                          uint16
	ATokenAddress               common.Address
	StableDebtTokenAddress      common.Address
	VariableDebtTokenAddress    common.Address
	InterestRateStrategyAddress common.Address
	AccruedToTreasury           *big.Int
	Unbacked                    *big.Int
	IsolationModeTotalDebt      *big.Int
}

// EVM drives an Aave v3 style pool contract.
type EVM struct {
	address  common.Address
	contract *bind.BoundContract
	backend  evm.Backend
	signer   *evm.Signer
}

// NewEVM binds the pool at address over the given backend.
func NewEVM(address common.Address, backend evm.Backend, signer *evm.Signer) *EVM {
	return &EVM{
		address:  address,
		contract: bind.NewBoundContract(address, pool, backend, backend, backend),
		backend:  backend,
		signer:   signer,
	}
}

func (f *EVM) Address() common.Address { return f.address }

func (f *EVM) transact(ctx context.Context, method string, args ...interface{}) error {
	opts, err := f.signer.TransactOpts(ctx)
	if err != nil {
		return err
	}
	tx, err := f.contract.Transact(opts, method, args...)
	if err != nil {
		return fmt.Errorf("pool %s: %w", method, err)
	}
	return evm.WaitSuccess(ctx, f.backend, tx)
}

// Supply pledges amount of asset as collateral credited to onBehalfOf.
func (f *EVM) Supply(ctx context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address) error {
	return f.transact(ctx, "supply", asset, amount, onBehalfOf, referralNone)
}

// Borrow draws amount of asset as debt booked against onBehalfOf.
func (f *EVM) Borrow(ctx context.Context, asset common.Address, amount *big.Int, rateMode uint64, onBehalfOf common.Address) error {
	return f.transact(ctx, "borrow", asset, amount, new(big.Int).SetUint64(rateMode), referralNone, onBehalfOf)
}

// Repay retires up to amount of onBehalfOf's debt in the given rate mode.
func (f *EVM) Repay(ctx context.Context, asset common.Address, amount *big.Int, rateMode uint64, onBehalfOf common.Address) error {
	return f.transact(ctx, "repay", asset, amount, new(big.Int).SetUint64(rateMode), onBehalfOf)
}

// Configuration reads the reserve risk parameters for asset.
func (f *EVM) Configuration(ctx context.Context, asset common.Address) (ReserveConfig, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := f.contract.Call(opts, &out, "getConfiguration", asset); err != nil {
		return ReserveConfig{}, fmt.Errorf("pool getConfiguration: %w", err)
	}
	packed := abi.ConvertType(out[0], new(poolConfiguration)).(*poolConfiguration)
	ltv := new(big.Int).And(packed.Data, ltvMask)
	return ReserveConfig{LTVBps: ltv.Uint64()}, nil
}

// ReserveData reads the instrument contracts backing the asset's reserve.
func (f *EVM) ReserveData(ctx context.Context, asset common.Address) (ReserveData, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := f.contract.Call(opts, &out, "getReserveData", asset); err != nil {
		return ReserveData{}, fmt.Errorf("pool getReserveData: %w", err)
	}
	reserve := abi.ConvertType(out[0], new(poolReserveData)).(*poolReserveData)
	return ReserveData{
		ReceiptToken:      reserve.ATokenAddress,
		VariableDebtToken: reserve.VariableDebtTokenAddress,
		StableDebtToken:   reserve.StableDebtTokenAddress,
	}, nil
}

// AccountData reads the facility's aggregate risk view of user.
func (f *EVM) AccountData(ctx context.Context, user common.Address) (AccountData, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := f.contract.Call(opts, &out, "getUserAccountData", user); err != nil {
		return AccountData{}, fmt.Errorf("pool getUserAccountData: %w", err)
	}
	health := abi.ConvertType(out[5], new(big.Int)).(*big.Int)
	return AccountData{HealthFactor: health}, nil
}
