// Package service defines the merchant billing identity.
package service

import (
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/types"
)

// Service is a merchant's billing identity. There is at most one per
// authority, and services are never destroyed.
type Service struct {
	types.Entity
	ID              id.ServiceID `json:"id"`
	Authority       string       `json:"authority"`
	PayoutAccount   string       `json:"payout_account"`
	AcceptedAsset   string       `json:"accepted_asset"`
	AssetDecimals   uint8        `json:"asset_decimals"`
	PlanCount       uint16       `json:"plan_count"`
	SubscriberCount uint32       `json:"subscriber_count"`
}

// IsAuthority reports whether caller controls the service.
func (s *Service) IsAuthority(caller string) bool {
	return caller != "" && s.Authority == caller
}
