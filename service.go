package cadence

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/store"
	"github.com/xraph/cadence/tokenledger"
	"github.com/xraph/cadence/types"
)

// ──────────────────────────────────────────────────
// Service Registry
// ──────────────────────────────────────────────────

// RegisterService creates the billing identity for authority. The payout
// account must be owned by authority and hold acceptedAsset.
func (c *Cadence) RegisterService(ctx context.Context, authority, payoutAccount, acceptedAsset string) (*service.Service, error) {
	var svc *service.Service

	err := c.invoke(ctx, func(ctx context.Context, tx store.Store, now int64) error {
		switch _, err := tx.GetServiceByAuthority(ctx, authority); {
		case err == nil:
			return ErrServiceExists
		case !errors.Is(err, ErrServiceNotFound):
			return err
		}

		if _, err := tokenledger.VerifyOwnership(ctx, c.ledger, payoutAccount, authority, acceptedAsset); err != nil {
			return accountError(err)
		}
		asset, err := c.ledger.Asset(ctx, acceptedAsset)
		if err != nil {
			return accountError(err)
		}

		svc = &service.Service{
			Entity:        types.NewEntity(now),
			ID:            id.NewServiceID(),
			Authority:     authority,
			PayoutAccount: payoutAccount,
			AcceptedAsset: acceptedAsset,
			AssetDecimals: asset.Decimals,
		}
		return tx.CreateService(ctx, svc)
	})
	if err != nil {
		return nil, err
	}

	c.plugins.EmitServiceRegistered(ctx, svc)
	return svc, nil
}

// GetService retrieves a service by ID.
func (c *Cadence) GetService(ctx context.Context, serviceID id.ServiceID) (*service.Service, error) {
	return c.store.GetService(ctx, serviceID)
}

// GetServiceByAuthority retrieves the service controlled by authority.
func (c *Cadence) GetServiceByAuthority(ctx context.Context, authority string) (*service.Service, error) {
	return c.store.GetServiceByAuthority(ctx, authority)
}

// accountError folds ledger ownership failures into ErrAccountMismatch while
// keeping the ledger cause visible to errors.Is.
func accountError(err error) error {
	if errors.Is(err, tokenledger.ErrOwnerMismatch) ||
		errors.Is(err, tokenledger.ErrAssetMismatch) ||
		errors.Is(err, tokenledger.ErrAccountNotFound) ||
		errors.Is(err, tokenledger.ErrAssetNotFound) {
		return fmt.Errorf("%w: %w", ErrAccountMismatch, err)
	}
	return err
}
