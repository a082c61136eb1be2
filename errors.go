package cadence

import (
	"errors"
	"fmt"

	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/tokenledger"
	"github.com/xraph/cadence/types"
)

// Sentinel errors for common failure scenarios.
var (
	// Authorization errors
	ErrUnauthorizedAuthority  = errors.New("cadence: caller is not the service authority")
	ErrUnauthorizedSubscriber = errors.New("cadence: caller is not the subscriber")
	ErrAccountMismatch        = errors.New("cadence: account owner or asset mismatch")

	// Service errors
	ErrServiceNotFound = errors.New("cadence: service not found")
	ErrServiceExists   = errors.New("cadence: service already registered for authority")

	// Plan errors
	ErrPlanNotFound        = errors.New("cadence: plan not found")
	ErrPlanNotActive       = errors.New("cadence: plan is not active")
	ErrPlanServiceMismatch = errors.New("cadence: plan belongs to a different service")

	// Validation errors
	ErrInvalidPlanName    = errors.New("cadence: invalid plan name")
	ErrInvalidAmount      = errors.New("cadence: amount must be greater than zero")
	ErrInvalidInterval    = errors.New("cadence: interval must be greater than zero")
	ErrInvalidCrankReward = errors.New("cadence: collector reward must be less than amount")
	ErrInvalidGracePeriod = errors.New("cadence: grace period must not be negative")

	// Subscription errors
	ErrSubscriptionNotFound  = errors.New("cadence: subscription not found")
	ErrSubscriptionExists    = errors.New("cadence: subscription already exists for plan")
	ErrSubscriptionNotActive = errors.New("cadence: subscription is not active")
	ErrSubscriptionCompleted = errors.New("cadence: subscription has reached its billing cycle limit")
	ErrAlreadyCancelled      = errors.New("cadence: subscription already cancelled")
	ErrNotPastDue            = errors.New("cadence: subscription is not past due")
	ErrFundingAccountInUse   = errors.New("cadence: funding account already backs a billing subscription")

	// Timing errors
	ErrBillingNotDue         = errors.New("cadence: billing is not due yet")
	ErrGracePeriodNotElapsed = errors.New("cadence: grace period has not elapsed")

	// Arithmetic errors
	ErrOverflow = types.ErrOverflow

	// Delegation errors
	ErrCapabilityNotFound = delegation.ErrCapabilityNotFound
	ErrAllowanceExceeded  = delegation.ErrAllowanceExceeded
	ErrDelegationRevoked  = delegation.ErrDelegationRevoked

	// Payment errors
	ErrPaymentNotFound = errors.New("cadence: payment not found")

	// Store errors
	ErrAlreadyExists     = errors.New("cadence: already exists")
	ErrStoreClosed       = errors.New("cadence: store is closed")
	ErrTransactionFailed = errors.New("cadence: transaction failed")
	ErrMigrationFailed   = errors.New("cadence: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("cadence: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap returns the sentinel behind the failure.
func (e ValidationError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "cadence: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cadence: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrCapabilityNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, tokenledger.ErrAccountNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBillingNotDue) ||
		errors.Is(err, ErrGracePeriodNotElapsed) ||
		errors.Is(err, ErrTransactionFailed)
}

// IsValidation returns true if the error came from plan validation.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidPlanName) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidCrankReward) ||
		errors.Is(err, ErrInvalidGracePeriod)
}

// IsPrecondition returns true if the operation was refused because of the
// current state of an entity.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrSubscriptionNotActive) ||
		errors.Is(err, ErrPlanNotActive) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrNotPastDue) ||
		errors.Is(err, ErrSubscriptionCompleted) ||
		errors.Is(err, ErrSubscriptionExists) ||
		errors.Is(err, ErrFundingAccountInUse) ||
		errors.Is(err, ErrServiceExists) ||
		errors.Is(err, ErrPlanServiceMismatch)
}

// IsPaymentFailure returns true if a collection failed because the
// subscriber's funds or allowance could not cover it.
func IsPaymentFailure(err error) bool {
	return errors.Is(err, tokenledger.ErrInsufficientFunds) ||
		errors.Is(err, tokenledger.ErrNotDelegated) ||
		errors.Is(err, ErrAllowanceExceeded) ||
		errors.Is(err, ErrDelegationRevoked)
}
