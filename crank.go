package cadence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/cadence/subscription"
)

// CrankReport summarizes one crank sweep.
type CrankReport struct {
	Scanned       int           `json:"scanned"`
	Collected     int           `json:"collected"`
	MarkedPastDue int           `json:"marked_past_due"`
	Expired       int           `json:"expired"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	Elapsed       time.Duration `json:"elapsed"`
	Errors        MultiError    `json:"-"`
}

type crankOutcome int

const (
	outcomeCollected crankOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// Crank sweeps due subscriptions once: each is collected, and a collection
// that fails for lack of funds or allowance marks the subscription past due
// and expires it once its grace period has run out. Per-subscription errors
// are collected in the report; the sweep itself only fails when the due
// list cannot be read.
func (c *Cadence) Crank(ctx context.Context) (CrankReport, error) {
	start := time.Now()
	var report CrankReport

	now, err := c.ledger.Now(ctx)
	if err != nil {
		return report, err
	}
	due, err := c.store.ListDueSubscriptions(ctx, now, c.crankBatchSize)
	if err != nil {
		return report, err
	}
	report.Scanned = len(due)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.crankConcurrency)

	for _, sub := range due {
		g.Go(func() error {
			res := c.crankOne(ctx, sub)

			mu.Lock()
			defer mu.Unlock()
			switch res.outcome {
			case outcomeCollected:
				report.Collected++
			case outcomeSkipped:
				report.Skipped++
			case outcomeFailed:
				report.Failed++
				report.Errors.Add(fmt.Errorf("subscription %s: %w", sub.ID, res.err))
			}
			if res.pastDue {
				report.MarkedPastDue++
			}
			if res.expired {
				report.Expired++
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	report.Elapsed = time.Since(start)
	c.plugins.EmitCrankCompleted(ctx, report.Scanned, report.Collected, report.Failed, report.Elapsed)

	c.logger.Debug("crank sweep finished",
		"scanned", report.Scanned,
		"collected", report.Collected,
		"past_due", report.MarkedPastDue,
		"expired", report.Expired,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"elapsed_ms", report.Elapsed.Milliseconds(),
	)

	return report, nil
}

type crankResult struct {
	outcome crankOutcome
	err     error
	pastDue bool
	expired bool
}

func (c *Cadence) crankOne(ctx context.Context, sub *subscription.Subscription) crankResult {
	if c.leaser != nil {
		key := sub.ID.String()
		token, ok, err := c.leaser.TryAcquire(ctx, key, c.leaseTTL)
		if err != nil {
			return crankResult{outcome: outcomeFailed, err: err}
		}
		if !ok {
			return crankResult{outcome: outcomeSkipped}
		}
		defer func() {
			if err := c.leaser.Release(ctx, key, token); err != nil {
				c.logger.Warn("failed to release crank lease", "subscription", key, "error", err)
			}
		}()
	}

	_, err := c.CollectPayment(ctx, c.cranker, sub.ID, c.rewardAccount)
	switch {
	case err == nil:
		return crankResult{outcome: outcomeCollected}
	case errors.Is(err, ErrBillingNotDue),
		errors.Is(err, ErrSubscriptionNotActive),
		errors.Is(err, ErrSubscriptionCompleted):
		// Another collector got there first.
		return crankResult{outcome: outcomeSkipped}
	case !IsPaymentFailure(err):
		c.logger.Warn("crank collection failed", "subscription", sub.ID.String(), "error", err)
		return crankResult{outcome: outcomeFailed, err: err}
	}

	res := crankResult{outcome: outcomeFailed, err: err}
	c.logger.Info("payment failed, marking past due",
		"subscription", sub.ID.String(),
		"subscriber", sub.Subscriber,
		"error", err,
	)

	if _, changed, perr := c.markPastDue(ctx, sub.ID); perr == nil {
		res.pastDue = changed
	} else if !errors.Is(perr, ErrBillingNotDue) {
		c.logger.Warn("mark past due failed", "subscription", sub.ID.String(), "error", perr)
	}

	switch _, eerr := c.ExpireSubscription(ctx, sub.ID); {
	case eerr == nil:
		res.expired = true
		c.logger.Info("subscription expired", "subscription", sub.ID.String())
	case errors.Is(eerr, ErrGracePeriodNotElapsed), errors.Is(eerr, ErrNotPastDue):
	default:
		c.logger.Warn("expire failed", "subscription", sub.ID.String(), "error", eerr)
	}

	return res
}

// crankWorker runs Crank on every tick until Stop is called.
func (c *Cadence) crankWorker(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.crankInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Crank(ctx); err != nil {
				c.logger.Error("crank sweep failed", "error", err)
			}
		}
	}
}
