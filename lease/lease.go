// Package lease provides short-lived exclusive leases that keep several
// crank workers from racing on the same subscription.
package lease

import (
	"context"
	"time"
)

// Leaser hands out exclusive, expiring leases on string keys.
type Leaser interface {
	// TryAcquire takes the lease on key for ttl. ok is false when another
	// holder has it. The returned token must be passed to Release.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Release gives the lease back if token still holds it.
	Release(ctx context.Context, key, token string) error
}
