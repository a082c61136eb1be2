// Package tokenledger defines the external ledger Cadence bills against and
// ships an in-process implementation of it.
//
// The ledger owns four concerns the engine never implements itself: caller
// account ownership, a non-decreasing clock, value transfer between token
// accounts under delegated authority, and atomic invocation.
package tokenledger

import (
	"context"
	"errors"

	"github.com/xraph/cadence/types"
)

// Ledger errors.
var (
	ErrInsufficientFunds = errors.New("tokenledger: insufficient funds")
	ErrAccountNotFound   = errors.New("tokenledger: account not found")
	ErrAssetNotFound     = errors.New("tokenledger: asset not found")
	ErrAccountExists     = errors.New("tokenledger: account already exists")
	ErrNotDelegated      = errors.New("tokenledger: authority is not owner or delegate")
	ErrDecimalsMismatch  = errors.New("tokenledger: decimals mismatch")
	ErrAssetMismatch     = errors.New("tokenledger: asset mismatch")
	ErrOwnerMismatch     = errors.New("tokenledger: signer does not own account")
	ErrClockRewind       = errors.New("tokenledger: clock cannot move backwards")
)

// Account is a token-holding account.
type Account struct {
	Address         string       `json:"address"`
	Owner           string       `json:"owner"`
	Asset           string       `json:"asset"`
	Balance         types.Amount `json:"balance"`
	Delegate        string       `json:"delegate,omitempty"`
	DelegatedAmount types.Amount `json:"delegated_amount"`
}

// Asset describes a fungible asset.
type Asset struct {
	ID       string `json:"id"`
	Decimals uint8  `json:"decimals"`
}

// Transfer moves Amount from From to To. Authority must be the owner of From
// or its approved delegate. Decimals must match the asset.
type Transfer struct {
	From      string
	To        string
	Authority string
	Amount    types.Amount
	Decimals  uint8
}

// Service is the ledger the engine runs on.
type Service interface {
	// Now returns the ledger clock in unix seconds. It never decreases.
	Now(ctx context.Context) (int64, error)

	Account(ctx context.Context, address string) (*Account, error)
	Asset(ctx context.Context, asset string) (*Asset, error)

	// Approve lets delegate move up to amount in total out of account. Each
	// delegated transfer draws the approval down. signer must own the
	// account. Any earlier approval is replaced.
	Approve(ctx context.Context, signer, account, delegate string, amount types.Amount) error

	// Revoke clears the delegate of account.
	Revoke(ctx context.Context, account string) error

	TransferChecked(ctx context.Context, t Transfer) error

	// Atomic runs fn as one invocation. When fn fails, every ledger effect
	// made inside it is discarded.
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// VerifyOwnership checks that address exists, is owned by owner, and holds
// asset. It returns the account.
func VerifyOwnership(ctx context.Context, svc Service, address, owner, asset string) (*Account, error) {
	acct, err := svc.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if acct.Owner != owner {
		return nil, ErrOwnerMismatch
	}
	if acct.Asset != asset {
		return nil, ErrAssetMismatch
	}
	return acct, nil
}
