package payment

import (
	"context"

	"github.com/xraph/cadence/id"
)

// Store appends and reads receipts. There is no update or delete.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	List(ctx context.Context, subID id.SubscriptionID, opts ListOpts) ([]*Payment, error)
}

// ListOpts pages receipt listings. Results are newest first.
type ListOpts struct {
	Limit  int
	Offset int
}
