package service

import "context"

// Repository provides access to persisted client services.
type Repository interface {
	Get(ctx context.Context, id string) (*Service, error)
	Update(ctx context.Context, svc *Service) error
	ListByClient(ctx context.Context, clientID string) ([]*Service, error)
}
