package cadence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/tokenledger"
)

func TestRegisterService(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	svc, err := e.c.RegisterService(ctx, merchant, payout, asset)
	require.NoError(t, err)
	assert.Equal(t, id.PrefixService, svc.ID.Prefix())
	assert.Equal(t, merchant, svc.Authority)
	assert.Equal(t, uint8(6), svc.AssetDecimals)
	assert.Zero(t, svc.PlanCount)
	assert.Zero(t, svc.SubscriberCount)

	got, err := e.c.GetServiceByAuthority(ctx, merchant)
	require.NoError(t, err)
	assert.Equal(t, svc.ID, got.ID)
}

func TestRegisterServiceRejects(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		authority string
		account   string
		asset     string
		wantErr   error
	}{
		{"foreign payout account", merchant, aliceFunds, asset, cadence.ErrAccountMismatch},
		{"wrong asset", merchant, payout, "eurc", tokenledger.ErrAssetMismatch},
		{"unknown account", merchant, "nope", asset, tokenledger.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.c.RegisterService(ctx, tt.authority, tt.account, tt.asset)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, cadence.ErrAccountMismatch)

			_, err = e.c.GetServiceByAuthority(ctx, tt.authority)
			assert.ErrorIs(t, err, cadence.ErrServiceNotFound)
		})
	}
}

func TestRegisterServiceOncePerAuthority(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.service(t)

	_, err := e.c.RegisterService(ctx, merchant, payout, asset)
	assert.ErrorIs(t, err, cadence.ErrServiceExists)
	assert.True(t, cadence.IsPrecondition(err))
}
