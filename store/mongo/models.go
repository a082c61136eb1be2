package mongo

import (
	"fmt"

	"github.com/xraph/grove"

	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/types"
)

// Amounts and cycle caps are stored as decimal strings: BSON has no unsigned
// 64-bit integer.

// ==================== Service models ====================

type serviceModel struct {
	grove.BaseModel `grove:"table:cadence_services"`

	ID              string `grove:"id,pk"            bson:"_id"`
	Authority       string `grove:"authority"        bson:"authority"`
	PayoutAccount   string `grove:"payout_account"   bson:"payout_account"`
	AcceptedAsset   string `grove:"accepted_asset"   bson:"accepted_asset"`
	AssetDecimals   int32  `grove:"asset_decimals"   bson:"asset_decimals"`
	PlanCount       int32  `grove:"plan_count"       bson:"plan_count"`
	SubscriberCount int64  `grove:"subscriber_count" bson:"subscriber_count"`
	CreatedAt       int64  `grove:"created_at"       bson:"created_at"`
	UpdatedAt       int64  `grove:"updated_at"       bson:"updated_at"`
}

func toServiceModel(s *service.Service) *serviceModel {
	return &serviceModel{
		ID:              s.ID.String(),
		Authority:       s.Authority,
		PayoutAccount:   s.PayoutAccount,
		AcceptedAsset:   s.AcceptedAsset,
		AssetDecimals:   int32(s.AssetDecimals),
		PlanCount:       int32(s.PlanCount),
		SubscriberCount: int64(s.SubscriberCount),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func fromServiceModel(m *serviceModel) (*service.Service, error) {
	svcID, err := id.ParseServiceID(m.ID)
	if err != nil {
		return nil, err
	}
	return &service.Service{
		Entity:          types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              svcID,
		Authority:       m.Authority,
		PayoutAccount:   m.PayoutAccount,
		AcceptedAsset:   m.AcceptedAsset,
		AssetDecimals:   uint8(m.AssetDecimals),    //nolint:gosec // written from a uint8
		PlanCount:       uint16(m.PlanCount),       //nolint:gosec // written from a uint16
		SubscriberCount: uint32(m.SubscriberCount), //nolint:gosec // written from a uint32
	}, nil
}

// ==================== Plan models ====================

type planModel struct {
	grove.BaseModel `grove:"table:cadence_plans"`

	ID               string `grove:"id,pk"              bson:"_id"`
	ServiceID        string `grove:"service_id"         bson:"service_id"`
	Name             string `grove:"name"               bson:"name"`
	Amount           string `grove:"amount"             bson:"amount"`
	CollectorReward  string `grove:"collector_reward"   bson:"collector_reward"`
	Interval         int64  `grove:"interval_secs"      bson:"interval_secs"`
	GracePeriod      int64  `grove:"grace_period_secs"  bson:"grace_period_secs"`
	IsActive         bool   `grove:"is_active"          bson:"is_active"`
	PlanIndex        int32  `grove:"plan_index"         bson:"plan_index"`
	MaxBillingCycles string `grove:"max_billing_cycles" bson:"max_billing_cycles"`
	CreatedAt        int64  `grove:"created_at"         bson:"created_at"`
	UpdatedAt        int64  `grove:"updated_at"         bson:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	return &planModel{
		ID:               p.ID.String(),
		ServiceID:        p.ServiceID.String(),
		Name:             p.Name,
		Amount:           p.Amount.String(),
		CollectorReward:  p.CollectorReward.String(),
		Interval:         p.Interval,
		GracePeriod:      p.GracePeriod,
		IsActive:         p.IsActive,
		PlanIndex:        int32(p.Index),
		MaxBillingCycles: types.Amount(p.MaxBillingCycles).String(),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel) (*plan.Plan, error) {
	planID, err := id.ParsePlanID(m.ID)
	if err != nil {
		return nil, err
	}
	svcID, err := id.ParseServiceID(m.ServiceID)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(m.Amount, m.CollectorReward, m.MaxBillingCycles)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", m.ID, err)
	}
	return &plan.Plan{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               planID,
		ServiceID:        svcID,
		Name:             m.Name,
		Amount:           amounts[0],
		CollectorReward:  amounts[1],
		Interval:         m.Interval,
		GracePeriod:      m.GracePeriod,
		IsActive:         m.IsActive,
		Index:            uint16(m.PlanIndex), //nolint:gosec // written from a uint16
		MaxBillingCycles: amounts[2].Uint64(),
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:cadence_subscriptions"`

	ID               string `grove:"id,pk"                bson:"_id"`
	Subscriber       string `grove:"subscriber"           bson:"subscriber"`
	ServiceID        string `grove:"service_id"           bson:"service_id"`
	PlanID           string `grove:"plan_id"              bson:"plan_id"`
	FundingAccount   string `grove:"funding_account"      bson:"funding_account"`
	LockedAmount     string `grove:"locked_amount"        bson:"locked_amount"`
	LockedReward     string `grove:"locked_reward"        bson:"locked_reward"`
	LockedInterval   int64  `grove:"locked_interval_secs" bson:"locked_interval_secs"`
	MaxBillingCycles string `grove:"max_billing_cycles"   bson:"max_billing_cycles"`
	NextBillingAt    int64  `grove:"next_billing_at"      bson:"next_billing_at"`
	LastPaymentAt    int64  `grove:"last_payment_at"      bson:"last_payment_at"`
	Status           string `grove:"status"               bson:"status"`
	PaymentsMade     int64  `grove:"payments_made"        bson:"payments_made"`
	// Live mirrors Subscription.IsLive and Billing mirrors GrantsAccess.
	// Partial unique indexes key on both.
	Live      bool  `grove:"live"       bson:"live"`
	Billing   bool  `grove:"billing"    bson:"billing"`
	CreatedAt int64 `grove:"created_at" bson:"created_at"`
	UpdatedAt int64 `grove:"updated_at" bson:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:               s.ID.String(),
		Subscriber:       s.Subscriber,
		ServiceID:        s.ServiceID.String(),
		PlanID:           s.PlanID.String(),
		FundingAccount:   s.FundingAccount,
		LockedAmount:     s.LockedAmount.String(),
		LockedReward:     s.LockedReward.String(),
		LockedInterval:   s.LockedInterval,
		MaxBillingCycles: types.Amount(s.MaxBillingCycles).String(),
		NextBillingAt:    s.NextBillingAt,
		LastPaymentAt:    s.LastPaymentAt,
		Status:           string(s.Status),
		PaymentsMade:     int64(s.PaymentsMade),
		Live:             s.IsLive(),
		Billing:          s.GrantsAccess(),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	svcID, err := id.ParseServiceID(m.ServiceID)
	if err != nil {
		return nil, err
	}
	planID, err := id.ParsePlanID(m.PlanID)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(m.LockedAmount, m.LockedReward, m.MaxBillingCycles)
	if err != nil {
		return nil, fmt.Errorf("subscription %s: %w", m.ID, err)
	}
	return &subscription.Subscription{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               subID,
		Subscriber:       m.Subscriber,
		ServiceID:        svcID,
		PlanID:           planID,
		FundingAccount:   m.FundingAccount,
		LockedAmount:     amounts[0],
		LockedReward:     amounts[1],
		LockedInterval:   m.LockedInterval,
		MaxBillingCycles: amounts[2].Uint64(),
		NextBillingAt:    m.NextBillingAt,
		LastPaymentAt:    m.LastPaymentAt,
		Status:           subscription.Status(m.Status),
		PaymentsMade:     uint32(m.PaymentsMade), //nolint:gosec // written from a uint32
	}, nil
}

// ==================== Capability models ====================

type capabilityModel struct {
	grove.BaseModel `grove:"table:cadence_capabilities"`

	ID             string `grove:"id,pk"           bson:"_id"`
	SubscriptionID string `grove:"subscription_id" bson:"subscription_id"`
	FundingAccount string `grove:"funding_account" bson:"funding_account"`
	Holder         string `grove:"holder"          bson:"holder"`
	Cap            string `grove:"cap"             bson:"cap"`
	Cycle          int64  `grove:"cycle"           bson:"cycle"`
	Spent          string `grove:"spent"           bson:"spent"`
	Revoked        bool   `grove:"revoked"         bson:"revoked"`
	CreatedAt      int64  `grove:"created_at"      bson:"created_at"`
	UpdatedAt      int64  `grove:"updated_at"      bson:"updated_at"`
}

func toCapabilityModel(c *delegation.Capability) *capabilityModel {
	return &capabilityModel{
		ID:             c.ID.String(),
		SubscriptionID: c.SubscriptionID.String(),
		FundingAccount: c.FundingAccount,
		Holder:         c.Holder,
		Cap:            c.Cap.String(),
		Cycle:          int64(c.Cycle),
		Spent:          c.Spent.String(),
		Revoked:        c.Revoked,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func fromCapabilityModel(m *capabilityModel) (*delegation.Capability, error) {
	capID, err := id.ParseCapabilityID(m.ID)
	if err != nil {
		return nil, err
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(m.Cap, m.Spent)
	if err != nil {
		return nil, fmt.Errorf("capability %s: %w", m.ID, err)
	}
	return &delegation.Capability{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             capID,
		SubscriptionID: subID,
		FundingAccount: m.FundingAccount,
		Holder:         m.Holder,
		Cap:            amounts[0],
		Cycle:          uint32(m.Cycle), //nolint:gosec // written from a uint32
		Spent:          amounts[1],
		Revoked:        m.Revoked,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:cadence_payments"`

	ID             string `grove:"id,pk"           bson:"_id"`
	SubscriptionID string `grove:"subscription_id" bson:"subscription_id"`
	ServiceID      string `grove:"service_id"      bson:"service_id"`
	PlanID         string `grove:"plan_id"         bson:"plan_id"`
	Cycle          int64  `grove:"cycle"           bson:"cycle"`
	Amount         string `grove:"amount"          bson:"amount"`
	Reward         string `grove:"reward"          bson:"reward"`
	Treasury       string `grove:"treasury"        bson:"treasury"`
	Cranker        string `grove:"cranker"         bson:"cranker"`
	RewardAccount  string `grove:"reward_account"  bson:"reward_account,omitempty"`
	PayoutAccount  string `grove:"payout_account"  bson:"payout_account"`
	FundingAccount string `grove:"funding_account" bson:"funding_account"`
	CollectedAt    int64  `grove:"collected_at"    bson:"collected_at"`
	CreatedAt      int64  `grove:"created_at"      bson:"created_at"`
	UpdatedAt      int64  `grove:"updated_at"      bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:             p.ID.String(),
		SubscriptionID: p.SubscriptionID.String(),
		ServiceID:      p.ServiceID.String(),
		PlanID:         p.PlanID.String(),
		Cycle:          int64(p.Cycle),
		Amount:         p.Amount.String(),
		Reward:         p.Reward.String(),
		Treasury:       p.Treasury.String(),
		Cranker:        p.Cranker,
		RewardAccount:  p.RewardAccount,
		PayoutAccount:  p.PayoutAccount,
		FundingAccount: p.FundingAccount,
		CollectedAt:    p.CollectedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, err
	}
	svcID, err := id.ParseServiceID(m.ServiceID)
	if err != nil {
		return nil, err
	}
	planID, err := id.ParsePlanID(m.PlanID)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(m.Amount, m.Reward, m.Treasury)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", m.ID, err)
	}
	return &payment.Payment{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             payID,
		SubscriptionID: subID,
		ServiceID:      svcID,
		PlanID:         planID,
		Cycle:          uint32(m.Cycle), //nolint:gosec // written from a uint32
		Amount:         amounts[0],
		Reward:         amounts[1],
		Treasury:       amounts[2],
		Cranker:        m.Cranker,
		RewardAccount:  m.RewardAccount,
		PayoutAccount:  m.PayoutAccount,
		FundingAccount: m.FundingAccount,
		CollectedAt:    m.CollectedAt,
	}, nil
}

// parseAmounts decodes decimal strings written by Amount.String.
func parseAmounts(values ...string) ([]types.Amount, error) {
	out := make([]types.Amount, len(values))
	for i, v := range values {
		if err := out[i].Scan(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}
