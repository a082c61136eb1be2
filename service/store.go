package service

import (
	"context"

	"github.com/xraph/cadence/id"
)

// Store persists services.
type Store interface {
	Create(ctx context.Context, s *Service) error
	Get(ctx context.Context, serviceID id.ServiceID) (*Service, error)
	GetByAuthority(ctx context.Context, authority string) (*Service, error)
	Update(ctx context.Context, s *Service) error
}
