package interfaces

import (
	"context"

	"github.com/haifischbank/backoffice/internal/models"
)

// CustomerDirectory is the external customer-record collaborator. The
// engine only needs existence/status lookups; create and update are
// exposed for the wiring layer.
type CustomerDirectory interface {
	CreateCustomer(ctx context.Context, name, address, birthDate string) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, updates map[string]string) (*models.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
}
