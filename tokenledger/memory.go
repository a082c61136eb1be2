package tokenledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/cadence/types"
)

// Memory is an in-process Service. A delegated transfer draws the approval
// down, and the delegate is cleared once nothing is left.
type Memory struct {
	invoke sync.Mutex // serializes Atomic invocations

	mu       sync.RWMutex
	now      int64
	clock    func() int64
	assets   map[string]*Asset
	accounts map[string]*Account
}

// NewMemory returns an empty ledger with its clock at now.
func NewMemory(now int64) *Memory {
	return &Memory{
		now:      now,
		assets:   make(map[string]*Asset),
		accounts: make(map[string]*Account),
	}
}

// NewMemoryWithClock returns an empty ledger whose clock follows clock,
// typically wall time in unix seconds. Readings that go backwards are
// ignored, so Now never decreases.
func NewMemoryWithClock(clock func() int64) *Memory {
	m := NewMemory(clock())
	m.clock = clock
	return m
}

// Compile-time interface check.
var _ Service = (*Memory)(nil)

// ──────────────────────────────────────────────────
// Clock
// ──────────────────────────────────────────────────

func (m *Memory) Now(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clock != nil {
		if ts := m.clock(); ts > m.now {
			m.now = ts
		}
	}
	return m.now, nil
}

// SetNow moves the clock to ts.
func (m *Memory) SetNow(ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts < m.now {
		return fmt.Errorf("%w: %d < %d", ErrClockRewind, ts, m.now)
	}
	m.now = ts
	return nil
}

// Advance moves the clock forward by secs.
func (m *Memory) Advance(secs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if secs < 0 {
		return ErrClockRewind
	}
	next, err := types.AddSeconds(m.now, secs)
	if err != nil {
		return err
	}
	m.now = next
	return nil
}

// ──────────────────────────────────────────────────
// Setup
// ──────────────────────────────────────────────────

// CreateAsset registers an asset.
func (m *Memory) CreateAsset(assetID string, decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[assetID] = &Asset{ID: assetID, Decimals: decimals}
}

// CreateAccount opens an account holding asset.
func (m *Memory) CreateAccount(address, owner, asset string, balance types.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[asset]; !ok {
		return ErrAssetNotFound
	}
	if _, ok := m.accounts[address]; ok {
		return ErrAccountExists
	}
	m.accounts[address] = &Account{Address: address, Owner: owner, Asset: asset, Balance: balance}
	return nil
}

// Mint credits amount to address.
func (m *Memory) Mint(address string, amount types.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[address]
	if !ok {
		return ErrAccountNotFound
	}
	bal, err := acct.Balance.Add(amount)
	if err != nil {
		return err
	}
	acct.Balance = bal
	return nil
}

// Balance returns the balance of address, or zero when it does not exist.
func (m *Memory) Balance(address string) types.Amount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acct, ok := m.accounts[address]; ok {
		return acct.Balance
	}
	return 0
}

// ──────────────────────────────────────────────────
// Service
// ──────────────────────────────────────────────────

func (m *Memory) Account(_ context.Context, address string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.accounts[address]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (m *Memory) Asset(_ context.Context, assetID string) (*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[assetID]
	if !ok {
		return nil, ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) Approve(_ context.Context, signer, account, delegate string, amount types.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[account]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.Owner != signer {
		return ErrOwnerMismatch
	}
	acct.Delegate = delegate
	acct.DelegatedAmount = amount
	return nil
}

func (m *Memory) Revoke(_ context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[account]
	if !ok {
		return ErrAccountNotFound
	}
	acct.Delegate = ""
	acct.DelegatedAmount = 0
	return nil
}

func (m *Memory) TransferChecked(_ context.Context, t Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, ok := m.accounts[t.From]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, t.From)
	}
	to, ok := m.accounts[t.To]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, t.To)
	}
	if from.Asset != to.Asset {
		return ErrAssetMismatch
	}
	asset, ok := m.assets[from.Asset]
	if !ok {
		return ErrAssetNotFound
	}
	if asset.Decimals != t.Decimals {
		return ErrDecimalsMismatch
	}

	delegated := false
	switch {
	case t.Authority == from.Owner:
	case t.Authority != "" && t.Authority == from.Delegate:
		if t.Amount > from.DelegatedAmount {
			return fmt.Errorf("%w: allowance %s, requested %s", ErrNotDelegated, from.DelegatedAmount, t.Amount)
		}
		delegated = true
	default:
		return ErrNotDelegated
	}

	debited, err := from.Balance.Sub(t.Amount)
	if err != nil {
		return ErrInsufficientFunds
	}
	credited := debited
	if t.From != t.To {
		if credited, err = to.Balance.Add(t.Amount); err != nil {
			return err
		}
	}

	if delegated {
		from.DelegatedAmount -= t.Amount
		if from.DelegatedAmount == 0 {
			from.Delegate = ""
		}
	}
	if t.From == t.To {
		return nil
	}
	from.Balance = debited
	to.Balance = credited
	return nil
}

// Atomic snapshots accounts, runs fn, and restores the snapshot when fn
// fails. Invocations are serialized.
func (m *Memory) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	m.invoke.Lock()
	defer m.invoke.Unlock()

	snapshot := m.snapshot()
	if err := fn(ctx); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *Memory) snapshot() map[string]Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Account, len(m.accounts))
	for k, v := range m.accounts {
		out[k] = *v
	}
	return out
}

func (m *Memory) restore(snapshot map[string]Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = make(map[string]*Account, len(snapshot))
	for k, v := range snapshot {
		acct := v
		m.accounts[k] = &acct
	}
}
