package tokenledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cadence/tokenledger"
	"github.com/xraph/cadence/types"
)

func newLedger(t *testing.T) *tokenledger.Memory {
	t.Helper()
	m := tokenledger.NewMemory(1000)
	m.CreateAsset("usdc", 6)
	m.CreateAsset("eurc", 6)
	require.NoError(t, m.CreateAccount("alice-usdc", "alice", "usdc", 1_000))
	require.NoError(t, m.CreateAccount("bob-usdc", "bob", "usdc", 0))
	require.NoError(t, m.CreateAccount("bob-eurc", "bob", "eurc", 0))
	return m
}

func TestMemoryClock(t *testing.T) {
	ctx := context.Background()
	m := tokenledger.NewMemory(100)

	now, err := m.Now(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), now)

	require.NoError(t, m.Advance(50))
	now, _ = m.Now(ctx)
	assert.Equal(t, int64(150), now)

	require.NoError(t, m.SetNow(150))
	assert.ErrorIs(t, m.SetNow(149), tokenledger.ErrClockRewind)
	assert.ErrorIs(t, m.Advance(-1), tokenledger.ErrClockRewind)
}

func TestMemoryWallClock(t *testing.T) {
	ctx := context.Background()
	wall := int64(500)
	m := tokenledger.NewMemoryWithClock(func() int64 { return wall })

	now, err := m.Now(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), now)

	wall = 560
	now, _ = m.Now(ctx)
	assert.Equal(t, int64(560), now, "the clock follows its source")

	wall = 10
	now, _ = m.Now(ctx)
	assert.Equal(t, int64(560), now, "a source going backwards is ignored")

	require.NoError(t, m.Advance(40))
	now, _ = m.Now(ctx)
	assert.Equal(t, int64(600), now)
}

func TestMemoryAccounts(t *testing.T) {
	ctx := context.Background()
	m := newLedger(t)

	acct, err := m.Account(ctx, "alice-usdc")
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Owner)

	_, err = m.Account(ctx, "nobody")
	assert.ErrorIs(t, err, tokenledger.ErrAccountNotFound)

	assert.ErrorIs(t, m.CreateAccount("alice-usdc", "alice", "usdc", 0), tokenledger.ErrAccountExists)
	assert.ErrorIs(t, m.CreateAccount("x", "x", "doge", 0), tokenledger.ErrAssetNotFound)

	_, err = tokenledger.VerifyOwnership(ctx, m, "alice-usdc", "bob", "usdc")
	assert.ErrorIs(t, err, tokenledger.ErrOwnerMismatch)
	_, err = tokenledger.VerifyOwnership(ctx, m, "bob-eurc", "bob", "usdc")
	assert.ErrorIs(t, err, tokenledger.ErrAssetMismatch)
	_, err = tokenledger.VerifyOwnership(ctx, m, "bob-usdc", "bob", "usdc")
	assert.NoError(t, err)
}

func TestMemoryTransferChecked(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(m *tokenledger.Memory)
		tr      tokenledger.Transfer
		wantErr error
	}{
		{
			name: "owner",
			tr:   tokenledger.Transfer{From: "alice-usdc", To: "bob-usdc", Authority: "alice", Amount: 400, Decimals: 6},
		},
		{
			name: "delegate within approval",
			setup: func(m *tokenledger.Memory) {
				require.NoError(t, m.Approve(ctx, "alice", "alice-usdc", "agent", 500))
			},
			tr: tokenledger.Transfer{From: "alice-usdc", To: "bob-usdc", Authority: "agent", Amount: 400, Decimals: 6},
		},
		{
			name: "delegate over approval",
			setup: func(m *tokenledger.Memory) {
				require.NoError(t, m.Approve(ctx, "alice", "alice-usdc", "agent", 100))
			},
			tr:      tokenledger.Transfer{From: "alice-usdc", To: "bob-usdc", Authority: "agent", Amount: 400, Decimals: 6},
			wantErr: tokenledger.ErrNotDelegated,
		},
		{
			name:    "stranger",
			tr:      tokenledger.Transfer{From: "alice-usdc", To: "bob-usdc", Authority: "mallory", Amount: 1, Decimals: 6},
			wantErr: tokenledger.ErrNotDelegated,
		},
		{
			name:    "wrong decimals",
			tr:      tokenledger.Transfer{From: "alice-usdc", To: "bob-usdc", Authority: "alice", Amount: 1, Decimals: 9},
			wantErr: tokenledger.ErrDecimalsMismatch,
		},
		{
			name:    "insufficient",
			tr:      tokenledger.Transfer{From: "alice-usdc", To: "bob-usdc", Authority: "alice", Amount: 1_001, Decimals: 6},
			wantErr: tokenledger.ErrInsufficientFunds,
		},
		{
			name:    "cross asset",
			tr:      tokenledger.Transfer{From: "alice-usdc", To: "bob-eurc", Authority: "alice", Amount: 1, Decimals: 6},
			wantErr: tokenledger.ErrAssetMismatch,
		},
		{
			name:    "missing destination",
			tr:      tokenledger.Transfer{From: "alice-usdc", To: "nowhere", Authority: "alice", Amount: 1, Decimals: 6},
			wantErr: tokenledger.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newLedger(t)
			if tt.setup != nil {
				tt.setup(m)
			}
			err := m.TransferChecked(ctx, tt.tr)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, uint64(1_000), m.Balance("alice-usdc").Uint64())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(600), m.Balance("alice-usdc").Uint64())
			assert.Equal(t, uint64(400), m.Balance("bob-usdc").Uint64())
		})
	}
}

func TestMemoryApproveRevoke(t *testing.T) {
	ctx := context.Background()
	m := newLedger(t)

	assert.ErrorIs(t, m.Approve(ctx, "bob", "alice-usdc", "agent", 10), tokenledger.ErrOwnerMismatch)
	require.NoError(t, m.Approve(ctx, "alice", "alice-usdc", "agent", 10))

	pull := func(amount uint64) error {
		return m.TransferChecked(ctx, tokenledger.Transfer{
			From: "alice-usdc", To: "bob-usdc", Authority: "agent", Amount: types.Amount(amount), Decimals: 6,
		})
	}

	// Each delegated transfer draws the approval down.
	require.NoError(t, pull(4))
	acct, _ := m.Account(ctx, "alice-usdc")
	assert.Equal(t, "agent", acct.Delegate)
	assert.Equal(t, uint64(6), acct.DelegatedAmount.Uint64())

	assert.ErrorIs(t, pull(7), tokenledger.ErrNotDelegated)
	require.NoError(t, pull(6))

	acct, _ = m.Account(ctx, "alice-usdc")
	assert.Empty(t, acct.Delegate, "an exhausted approval clears the delegate")
	assert.Zero(t, acct.DelegatedAmount)
	assert.ErrorIs(t, pull(1), tokenledger.ErrNotDelegated)
	assert.Equal(t, uint64(10), m.Balance("bob-usdc").Uint64())

	// The owner is never limited by the approval.
	require.NoError(t, m.TransferChecked(ctx, tokenledger.Transfer{
		From: "alice-usdc", To: "bob-usdc", Authority: "alice", Amount: 100, Decimals: 6,
	}))

	require.NoError(t, m.Approve(ctx, "alice", "alice-usdc", "agent", 10))
	require.NoError(t, m.Revoke(ctx, "alice-usdc"))
	assert.ErrorIs(t, pull(1), tokenledger.ErrNotDelegated)

	acct, _ = m.Account(ctx, "alice-usdc")
	assert.Empty(t, acct.Delegate)
	assert.Zero(t, acct.DelegatedAmount)
}

func TestMemoryAtomicRollback(t *testing.T) {
	ctx := context.Background()
	m := newLedger(t)
	boom := errors.New("boom")

	err := m.Atomic(ctx, func(ctx context.Context) error {
		require.NoError(t, m.TransferChecked(ctx, tokenledger.Transfer{
			From: "alice-usdc", To: "bob-usdc", Authority: "alice", Amount: 300, Decimals: 6,
		}))
		require.NoError(t, m.Approve(ctx, "alice", "alice-usdc", "agent", 5))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, uint64(1_000), m.Balance("alice-usdc").Uint64())
	assert.Zero(t, m.Balance("bob-usdc").Uint64())
	acct, _ := m.Account(ctx, "alice-usdc")
	assert.Empty(t, acct.Delegate)

	require.NoError(t, m.Atomic(ctx, func(ctx context.Context) error {
		return m.TransferChecked(ctx, tokenledger.Transfer{
			From: "alice-usdc", To: "bob-usdc", Authority: "alice", Amount: 300, Decimals: 6,
		})
	}))
	assert.Equal(t, uint64(300), m.Balance("bob-usdc").Uint64())
}
