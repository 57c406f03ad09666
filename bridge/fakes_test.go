package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"loanbridge/facility"
	"loanbridge/messenger"
)

var errForced = errors.New("forced failure")

func makeAddress(b byte) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = b
	}
	return addr
}

// memTokens is an in-memory asset ledger. The system custody address is
// fixed; PullFrom credits it and Transfer/Approve debit it.
type memTokens struct {
	mu        sync.Mutex
	system    common.Address
	balances  map[common.Address]map[common.Address]*big.Int
	approvals map[common.Address]map[common.Address]*big.Int
	decimals  map[common.Address]uint8

	failPull      bool
	failTransfer  bool
	failApprove   bool
	failBalanceOf map[common.Address]bool
}

func newMemTokens(system common.Address) *memTokens {
	return &memTokens{
		system:        system,
		balances:      make(map[common.Address]map[common.Address]*big.Int),
		approvals:     make(map[common.Address]map[common.Address]*big.Int),
		decimals:      make(map[common.Address]uint8),
		failBalanceOf: make(map[common.Address]bool),
	}
}

func (m *memTokens) setBalance(asset, holder common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(asset, holder, new(big.Int).Set(amount))
}

func (m *memTokens) balance(asset, holder common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.get(asset, holder))
}

func (m *memTokens) get(asset, holder common.Address) *big.Int {
	holders, ok := m.balances[asset]
	if !ok {
		return big.NewInt(0)
	}
	bal, ok := holders[holder]
	if !ok {
		return big.NewInt(0)
	}
	return bal
}

func (m *memTokens) credit(asset, holder common.Address, amount *big.Int) {
	holders, ok := m.balances[asset]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		m.balances[asset] = holders
	}
	current, ok := holders[holder]
	if !ok {
		current = big.NewInt(0)
	}
	holders[holder] = new(big.Int).Add(current, amount)
}

func (m *memTokens) move(asset, from, to common.Address, amount *big.Int) error {
	bal := m.get(asset, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance of %s", asset.Hex())
	}
	m.balances[asset][from] = new(big.Int).Sub(bal, amount)
	m.credit(asset, to, amount)
	return nil
}

func (m *memTokens) PullFrom(_ context.Context, asset, holder common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPull {
		return errForced
	}
	return m.move(asset, holder, m.system, amount)
}

func (m *memTokens) Transfer(_ context.Context, asset, recipient common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTransfer {
		return errForced
	}
	return m.move(asset, m.system, recipient, amount)
}

func (m *memTokens) Approve(_ context.Context, asset, spender common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failApprove {
		return errForced
	}
	spenders, ok := m.approvals[asset]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		m.approvals[asset] = spenders
	}
	spenders[spender] = new(big.Int).Set(amount)
	return nil
}

func (m *memTokens) BalanceOf(_ context.Context, asset, holder common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failBalanceOf[asset] {
		return nil, errForced
	}
	return new(big.Int).Set(m.get(asset, holder)), nil
}

func (m *memTokens) Decimals(_ context.Context, asset common.Address) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dec, ok := m.decimals[asset]
	if !ok {
		return 0, fmt.Errorf("unknown asset %s", asset.Hex())
	}
	return dec, nil
}

// memFacility models an external lending pool. Supplied custody moves to the
// pool address, receipt and debt instrument balances mirror positions, and
// borrows mint the settlement asset into system custody.
type memFacility struct {
	addr       common.Address
	system     common.Address
	settlement common.Address
	tokens     *memTokens

	ltv      map[common.Address]uint64
	reserves map[common.Address]facility.ReserveData
	health   *big.Int

	failSupply     bool
	failBorrow     bool
	failRepay      bool
	failReserve    bool
	failConfig     bool
	failAccount    bool
	supplyCalls    int
	borrowCalls    int
	repayCalls     int
	lastRepayMode  uint64
	lastBorrowMode uint64
}

func newMemFacility(addr, system, settlement common.Address, tokens *memTokens) *memFacility {
	return &memFacility{
		addr:       addr,
		system:     system,
		settlement: settlement,
		tokens:     tokens,
		ltv:        make(map[common.Address]uint64),
		reserves:   make(map[common.Address]facility.ReserveData),
		health:     big.NewInt(2_000_000_000_000_000_000),
	}
}

func (f *memFacility) Address() common.Address { return f.addr }

func (f *memFacility) Supply(ctx context.Context, asset common.Address, amount *big.Int, onBehalfOf common.Address) error {
	if f.failSupply {
		return errForced
	}
	f.supplyCalls++
	f.tokens.mu.Lock()
	defer f.tokens.mu.Unlock()
	if err := f.tokens.move(asset, f.system, f.addr, amount); err != nil {
		return err
	}
	reserve := f.reserves[asset]
	f.tokens.credit(reserve.ReceiptToken, onBehalfOf, amount)
	return nil
}

func (f *memFacility) Borrow(ctx context.Context, asset common.Address, amount *big.Int, rateMode uint64, onBehalfOf common.Address) error {
	if f.failBorrow {
		return errForced
	}
	f.borrowCalls++
	f.lastBorrowMode = rateMode
	f.tokens.mu.Lock()
	defer f.tokens.mu.Unlock()
	reserve := f.reserves[asset]
	f.tokens.credit(reserve.VariableDebtToken, onBehalfOf, amount)
	f.tokens.credit(asset, f.system, amount)
	return nil
}

func (f *memFacility) Repay(ctx context.Context, asset common.Address, amount *big.Int, rateMode uint64, onBehalfOf common.Address) error {
	if f.failRepay {
		return errForced
	}
	f.repayCalls++
	f.lastRepayMode = rateMode
	f.tokens.mu.Lock()
	defer f.tokens.mu.Unlock()
	reserve := f.reserves[asset]
	debt := f.tokens.get(reserve.VariableDebtToken, onBehalfOf)
	settled := new(big.Int).Set(amount)
	if settled.Cmp(debt) > 0 {
		settled = new(big.Int).Set(debt)
	}
	if err := f.tokens.move(asset, f.system, f.addr, amount); err != nil {
		return err
	}
	f.tokens.balances[reserve.VariableDebtToken][onBehalfOf] = new(big.Int).Sub(debt, settled)
	return nil
}

func (f *memFacility) Configuration(ctx context.Context, asset common.Address) (facility.ReserveConfig, error) {
	if f.failConfig {
		return facility.ReserveConfig{}, errForced
	}
	return facility.ReserveConfig{LTVBps: f.ltv[asset]}, nil
}

func (f *memFacility) ReserveData(ctx context.Context, asset common.Address) (facility.ReserveData, error) {
	if f.failReserve {
		return facility.ReserveData{}, errForced
	}
	return f.reserves[asset], nil
}

func (f *memFacility) AccountData(ctx context.Context, user common.Address) (facility.AccountData, error) {
	if f.failAccount {
		return facility.AccountData{}, errForced
	}
	return facility.AccountData{HealthFactor: new(big.Int).Set(f.health)}, nil
}

// memMessenger records dispatched burns and consumes the burned amount from
// system custody, as the real messenger contract does via transferFrom.
type memMessenger struct {
	addr   common.Address
	tokens *memTokens
	system common.Address

	failDispatch bool
	burns        []messenger.BurnRequest
	onDeposit    func() error
}

func newMemMessenger(addr, system common.Address, tokens *memTokens) *memMessenger {
	return &memMessenger{addr: addr, system: system, tokens: tokens}
}

func (m *memMessenger) Address() common.Address { return m.addr }

func (m *memMessenger) DepositForBurn(ctx context.Context, req messenger.BurnRequest) error {
	if m.failDispatch {
		return errForced
	}
	if m.onDeposit != nil {
		if err := m.onDeposit(); err != nil {
			return err
		}
	}
	m.tokens.mu.Lock()
	defer m.tokens.mu.Unlock()
	if err := m.tokens.move(req.BurnToken, m.system, m.addr, req.Amount); err != nil {
		return err
	}
	m.burns = append(m.burns, req)
	return nil
}

// memOracle serves fixed spot prices.
type memOracle struct {
	prices map[common.Address]*big.Int
	fail   bool
}

func (o *memOracle) AssetPrice(_ context.Context, asset common.Address) (*big.Int, error) {
	if o.fail {
		return nil, errForced
	}
	price, ok := o.prices[asset]
	if !ok {
		return nil, fmt.Errorf("no price for %s", asset.Hex())
	}
	return new(big.Int).Set(price), nil
}

// recordingEmitter captures emitted events in order.
type recordingEmitter struct {
	events []Event
}

func (r *recordingEmitter) Emit(ev Event) { r.events = append(r.events, ev) }
