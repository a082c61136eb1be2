package cadence

import (
	"fmt"

	"github.com/xraph/cadence/plan"
)

// validateTerms applies the plan creation rules. The first failing field wins.
func validateTerms(t plan.Terms) error {
	switch {
	case t.Name == "" || len(t.Name) > plan.MaxNameLength:
		return ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("must be 1-%d bytes, got %d", plan.MaxNameLength, len(t.Name)),
			Err:     ErrInvalidPlanName,
		}
	case t.Amount == 0:
		return ValidationError{Field: "amount", Message: "must be greater than zero", Err: ErrInvalidAmount}
	case t.Interval <= 0:
		return ValidationError{
			Field:   "interval",
			Message: fmt.Sprintf("must be greater than zero, got %d", t.Interval),
			Err:     ErrInvalidInterval,
		}
	case t.CollectorReward >= t.Amount:
		return ValidationError{
			Field:   "collector_reward",
			Message: fmt.Sprintf("%s must be less than amount %s", t.CollectorReward, t.Amount),
			Err:     ErrInvalidCrankReward,
		}
	case t.GracePeriod < 0:
		return ValidationError{
			Field:   "grace_period",
			Message: fmt.Sprintf("must not be negative, got %d", t.GracePeriod),
			Err:     ErrInvalidGracePeriod,
		}
	}
	return nil
}

func termsOf(p *plan.Plan) plan.Terms {
	return plan.Terms{
		Name:             p.Name,
		Amount:           p.Amount,
		CollectorReward:  p.CollectorReward,
		Interval:         p.Interval,
		GracePeriod:      p.GracePeriod,
		MaxBillingCycles: p.MaxBillingCycles,
	}
}
