package postgres

import (
	"github.com/xraph/grove"

	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/types"
)

// Amounts are NUMERIC(20,0) so the full uint64 range round-trips; types.Amount
// carries the decimal text codec. Counters that are unsigned in the domain are
// widened to BIGINT.

// ==================== Service models ====================

type serviceModel struct {
	grove.BaseModel `grove:"table:cadence_services"`

	ID              string `grove:"id,pk"`
	Authority       string `grove:"authority"`
	PayoutAccount   string `grove:"payout_account"`
	AcceptedAsset   string `grove:"accepted_asset"`
	AssetDecimals   int16  `grove:"asset_decimals"`
	PlanCount       int32  `grove:"plan_count"`
	SubscriberCount int64  `grove:"subscriber_count"`
	CreatedAt       int64  `grove:"created_at"`
	UpdatedAt       int64  `grove:"updated_at"`
}

func toServiceModel(s *service.Service) *serviceModel {
	return &serviceModel{
		ID:              s.ID.String(),
		Authority:       s.Authority,
		PayoutAccount:   s.PayoutAccount,
		AcceptedAsset:   s.AcceptedAsset,
		AssetDecimals:   int16(s.AssetDecimals),
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
		AssetDecimals:   uint8(m.AssetDecimals),    //nolint:gosec // column is CHECKed to 0..255
		PlanCount:       uint16(m.PlanCount),       //nolint:gosec // column is CHECKed to 0..65535
		SubscriberCount: uint32(m.SubscriberCount), //nolint:gosec // column is CHECKed to uint32 range
	}, nil
}

// ==================== Plan models ====================

type planModel struct {
	grove.BaseModel `grove:"table:cadence_plans"`

	ID               string       `grove:"id,pk"`
	ServiceID        string       `grove:"service_id"`
	Name             string       `grove:"name"`
	Amount           types.Amount `grove:"amount"`
	CollectorReward  types.Amount `grove:"collector_reward"`
	Interval         int64        `grove:"interval_secs"`
	GracePeriod      int64        `grove:"grace_period_secs"`
	IsActive         bool         `grove:"is_active"`
	PlanIndex        int32        `grove:"plan_index"`
	MaxBillingCycles types.Amount `grove:"max_billing_cycles"`
	CreatedAt        int64        `grove:"created_at"`
	UpdatedAt        int64        `grove:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	return &planModel{
		ID:               p.ID.String(),
		ServiceID:        p.ServiceID.String(),
		Name:             p.Name,
		Amount:           p.Amount,
		CollectorReward:  p.CollectorReward,
		Interval:         p.Interval,
		GracePeriod:      p.GracePeriod,
		IsActive:         p.IsActive,
		PlanIndex:        int32(p.Index),
		MaxBillingCycles: types.Amount(p.MaxBillingCycles),
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
	return &plan.Plan{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               planID,
		ServiceID:        svcID,
		Name:             m.Name,
		Amount:           m.Amount,
		CollectorReward:  m.CollectorReward,
		Interval:         m.Interval,
		GracePeriod:      m.GracePeriod,
		IsActive:         m.IsActive,
		Index:            uint16(m.PlanIndex), //nolint:gosec // column is CHECKed to 0..65535
		MaxBillingCycles: m.MaxBillingCycles.Uint64(),
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:cadence_subscriptions"`

	ID               string       `grove:"id,pk"`
	Subscriber       string       `grove:"subscriber"`
	ServiceID        string       `grove:"service_id"`
	PlanID           string       `grove:"plan_id"`
	FundingAccount   string       `grove:"funding_account"`
	LockedAmount     types.Amount `grove:"locked_amount"`
	LockedReward     types.Amount `grove:"locked_reward"`
	LockedInterval   int64        `grove:"locked_interval_secs"`
	MaxBillingCycles types.Amount `grove:"max_billing_cycles"`
	NextBillingAt    int64        `grove:"next_billing_at"`
	LastPaymentAt    int64        `grove:"last_payment_at"`
	Status           string       `grove:"status"`
	PaymentsMade     int64        `grove:"payments_made"`
	CreatedAt        int64        `grove:"created_at"`
	UpdatedAt        int64        `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:               s.ID.String(),
		Subscriber:       s.Subscriber,
		ServiceID:        s.ServiceID.String(),
		PlanID:           s.PlanID.String(),
		FundingAccount:   s.FundingAccount,
		LockedAmount:     s.LockedAmount,
		LockedReward:     s.LockedReward,
		LockedInterval:   s.LockedInterval,
		MaxBillingCycles: types.Amount(s.MaxBillingCycles),
		NextBillingAt:    s.NextBillingAt,
		LastPaymentAt:    s.LastPaymentAt,
		Status:           string(s.Status),
		PaymentsMade:     int64(s.PaymentsMade),
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
	return &subscription.Subscription{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               subID,
		Subscriber:       m.Subscriber,
		ServiceID:        svcID,
		PlanID:           planID,
		FundingAccount:   m.FundingAccount,
		LockedAmount:     m.LockedAmount,
		LockedReward:     m.LockedReward,
		LockedInterval:   m.LockedInterval,
		MaxBillingCycles: m.MaxBillingCycles.Uint64(),
		NextBillingAt:    m.NextBillingAt,
		LastPaymentAt:    m.LastPaymentAt,
		Status:           subscription.Status(m.Status),
		PaymentsMade:     uint32(m.PaymentsMade), //nolint:gosec // column is CHECKed to uint32 range
	}, nil
}

// ==================== Capability models ====================

type capabilityModel struct {
	grove.BaseModel `grove:"table:cadence_capabilities"`

	ID             string       `grove:"id,pk"`
	SubscriptionID string       `grove:"subscription_id"`
	FundingAccount string       `grove:"funding_account"`
	Holder         string       `grove:"holder"`
	Cap            types.Amount `grove:"cap"`
	Cycle          int64        `grove:"cycle"`
	Spent          types.Amount `grove:"spent"`
	Revoked        bool         `grove:"revoked"`
	CreatedAt      int64        `grove:"created_at"`
	UpdatedAt      int64        `grove:"updated_at"`
}

func toCapabilityModel(c *delegation.Capability) *capabilityModel {
	return &capabilityModel{
		ID:             c.ID.String(),
		SubscriptionID: c.SubscriptionID.String(),
		FundingAccount: c.FundingAccount,
		Holder:         c.Holder,
		Cap:            c.Cap,
		Cycle:          int64(c.Cycle),
		Spent:          c.Spent,
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
	return &delegation.Capability{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             capID,
		SubscriptionID: subID,
		FundingAccount: m.FundingAccount,
		Holder:         m.Holder,
		Cap:            m.Cap,
		Cycle:          uint32(m.Cycle), //nolint:gosec // column is CHECKed to uint32 range
		Spent:          m.Spent,
		Revoked:        m.Revoked,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:cadence_payments"`

	ID             string       `grove:"id,pk"`
	SubscriptionID string       `grove:"subscription_id"`
	ServiceID      string       `grove:"service_id"`
	PlanID         string       `grove:"plan_id"`
	Cycle          int64        `grove:"cycle"`
	Amount         types.Amount `grove:"amount"`
	Reward         types.Amount `grove:"reward"`
	Treasury       types.Amount `grove:"treasury"`
	Cranker        string       `grove:"cranker"`
	RewardAccount  string       `grove:"reward_account"`
	PayoutAccount  string       `grove:"payout_account"`
	FundingAccount string       `grove:"funding_account"`
	CollectedAt    int64        `grove:"collected_at"`
	CreatedAt      int64        `grove:"created_at"`
	UpdatedAt      int64        `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:             p.ID.String(),
		SubscriptionID: p.SubscriptionID.String(),
		ServiceID:      p.ServiceID.String(),
		PlanID:         p.PlanID.String(),
		Cycle:          int64(p.Cycle),
		Amount:         p.Amount,
		Reward:         p.Reward,
		Treasury:       p.Treasury,
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
	return &payment.Payment{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             payID,
		SubscriptionID: subID,
		ServiceID:      svcID,
		PlanID:         planID,
		Cycle:          uint32(m.Cycle), //nolint:gosec // column is CHECKed to uint32 range
		Amount:         m.Amount,
		Reward:         m.Reward,
		Treasury:       m.Treasury,
		Cranker:        m.Cranker,
		RewardAccount:  m.RewardAccount,
		PayoutAccount:  m.PayoutAccount,
		FundingAccount: m.FundingAccount,
		CollectedAt:    m.CollectedAt,
	}, nil
}
