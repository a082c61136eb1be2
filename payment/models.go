// Package payment defines collection receipts.
package payment

import (
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/types"
)

// Payment is the immutable receipt of one successful collection.
// Amount always equals Reward + Treasury.
type Payment struct {
	types.Entity
	ID             id.PaymentID      `json:"id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	ServiceID      id.ServiceID      `json:"service_id"`
	PlanID         id.PlanID         `json:"plan_id"`
	Cycle          uint32            `json:"cycle"`
	Amount         types.Amount      `json:"amount"`
	Reward         types.Amount      `json:"reward"`
	Treasury       types.Amount      `json:"treasury"`
	Cranker        string            `json:"cranker"`
	RewardAccount  string            `json:"reward_account,omitempty"`
	PayoutAccount  string            `json:"payout_account"`
	FundingAccount string            `json:"funding_account"`
	CollectedAt    int64             `json:"collected_at"`
}
