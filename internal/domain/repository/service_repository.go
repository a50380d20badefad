package repository

import (
	"context"

	"servisku/internal/domain/entity"
)

// ServiceRepository is the listing collaborator: the chat core only needs
// to resolve a listing to its owner and active flag.
type ServiceRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Service, error)
}
