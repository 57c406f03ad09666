package guard

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAddress = errors.New("guard: invalid address")
	ErrUnauthorized   = errors.New("guard: unauthorized")
	ErrPaused         = errors.New("guard: system paused")
	ErrNotPaused      = errors.New("guard: system not paused")
	ErrReentrancy     = errors.New("guard: reentrant call rejected")
)

// Role identifies an administrative capability held by an address.
type Role uint8

const (
	RoleSuperAdmin Role = iota + 1
	RoleAdmin
	RolePauser
)

func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "super_admin"
	case RoleAdmin:
		return "admin"
	case RolePauser:
		return "pauser"
	default:
		return "unknown"
	}
}

// Guard owns the administrative state for the orchestrator: the role table,
// the pause flag and the call-in-progress fence. The super admin is fixed at
// construction and cannot be revoked or transferred.
type Guard struct {
	superAdmin common.Address

	mu     sync.RWMutex
	roles  map[common.Address]map[Role]struct{}
	paused bool

	inCall atomic.Bool
}

// New constructs a guard with the provided super admin authority.
func New(superAdmin common.Address) (*Guard, error) {
	if superAdmin == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	return &Guard{
		superAdmin: superAdmin,
		roles:      make(map[common.Address]map[Role]struct{}),
	}, nil
}

// SuperAdmin returns the authority granted at construction.
func (g *Guard) SuperAdmin() common.Address { return g.superAdmin }

// HasRole reports whether the address currently holds the role. The super
// admin holds RoleSuperAdmin implicitly and exclusively.
func (g *Guard) HasRole(addr common.Address, role Role) bool {
	if role == RoleSuperAdmin {
		return addr == g.superAdmin
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	set, ok := g.roles[addr]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

// GrantAdmin assigns RoleAdmin to target. Only the super admin may call it.
func (g *Guard) GrantAdmin(caller, target common.Address) error {
	if err := g.enterFence(); err != nil {
		return err
	}
	defer g.exitFence()
	if caller != g.superAdmin {
		return ErrUnauthorized
	}
	return g.setRole(target, RoleAdmin, true)
}

// RevokeAdmin removes RoleAdmin from target. Only the super admin may call it.
func (g *Guard) RevokeAdmin(caller, target common.Address) error {
	if err := g.enterFence(); err != nil {
		return err
	}
	defer g.exitFence()
	if caller != g.superAdmin {
		return ErrUnauthorized
	}
	return g.setRole(target, RoleAdmin, false)
}

// GrantPauser assigns RolePauser to target. Admins and the super admin may
// call it.
func (g *Guard) GrantPauser(caller, target common.Address) error {
	if err := g.enterFence(); err != nil {
		return err
	}
	defer g.exitFence()
	if !g.isAdminAuthority(caller) {
		return ErrUnauthorized
	}
	return g.setRole(target, RolePauser, true)
}

// RevokePauser removes RolePauser from target. Admins and the super admin may
// call it.
func (g *Guard) RevokePauser(caller, target common.Address) error {
	if err := g.enterFence(); err != nil {
		return err
	}
	defer g.exitFence()
	if !g.isAdminAuthority(caller) {
		return ErrUnauthorized
	}
	return g.setRole(target, RolePauser, false)
}

// Pause transitions the system from Active to Paused. Pauser role required.
func (g *Guard) Pause(caller common.Address) error {
	if err := g.enterFence(); err != nil {
		return err
	}
	defer g.exitFence()
	if !g.HasRole(caller, RolePauser) {
		return ErrUnauthorized
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return ErrPaused
	}
	g.paused = true
	return nil
}

// Unpause transitions the system from Paused back to Active. Pauser role
// required.
func (g *Guard) Unpause(caller common.Address) error {
	if err := g.enterFence(); err != nil {
		return err
	}
	defer g.exitFence()
	if !g.HasRole(caller, RolePauser) {
		return ErrUnauthorized
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return ErrNotPaused
	}
	g.paused = false
	return nil
}

// Paused reports the current pause flag.
func (g *Guard) Paused() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused
}

// RequireActive fails with ErrPaused while the system is paused.
func (g *Guard) RequireActive() error {
	if g.Paused() {
		return ErrPaused
	}
	return nil
}

// Enter acquires the call-in-progress fence. Every state-mutating entry point
// holds the fence for its full duration; an attempt to enter while another
// call is in flight fails with ErrReentrancy.
func (g *Guard) Enter() error { return g.enterFence() }

// Exit releases the fence. It must run on every exit path.
func (g *Guard) Exit() { g.exitFence() }

func (g *Guard) enterFence() error {
	if !g.inCall.CompareAndSwap(false, true) {
		return ErrReentrancy
	}
	return nil
}

func (g *Guard) exitFence() { g.inCall.Store(false) }

func (g *Guard) isAdminAuthority(addr common.Address) bool {
	return addr == g.superAdmin || g.HasRole(addr, RoleAdmin)
}

func (g *Guard) setRole(target common.Address, role Role, grant bool) error {
	if target == (common.Address{}) {
		return ErrInvalidAddress
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.roles[target]
	if !ok {
		if !grant {
			return nil
		}
		set = make(map[Role]struct{})
		g.roles[target] = set
	}
	if grant {
		set[role] = struct{}{}
		return nil
	}
	delete(set, role)
	if len(set) == 0 {
		delete(g.roles, target)
	}
	return nil
}
