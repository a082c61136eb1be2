package audithook

// Action constants for audit events.
const (
	// Catalog actions
	ActionServiceRegistered = "service.registered"
	ActionPlanCreated       = "plan.created"
	ActionPlanUpdated       = "plan.updated"

	// Subscription actions
	ActionSubscriptionCreated    = "subscription.created"
	ActionSubscriptionUpgraded   = "subscription.upgraded"
	ActionSubscriptionDowngraded = "subscription.downgraded"
	ActionSubscriptionCanceled   = "subscription.canceled"
	ActionSubscriptionPastDue    = "subscription.past_due"
	ActionSubscriptionExpired    = "subscription.expired"
	ActionSubscriptionCompleted  = "subscription.completed"

	// Collection actions
	ActionPaymentCollected = "payment.collected"
	ActionPaymentFailed    = "payment.failed"
	ActionCrankCompleted   = "crank.completed"
)

// Resource constants for audit events.
const (
	ResourceService      = "service"
	ResourcePlan         = "plan"
	ResourceSubscription = "subscription"
	ResourcePayment      = "payment"
	ResourceCrank        = "crank"
)

// Category constants for audit events.
const (
	CategoryCatalog      = "catalog"
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategoryOperations   = "operations"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
