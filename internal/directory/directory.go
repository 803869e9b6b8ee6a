// Package directory is an in-memory customer directory. Customer record
// management is an external collaborator of the engine; this
// implementation backs tests and single-process runs.
package directory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haifischbank/backoffice/internal/idgen"
	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/models"
)

var (
	ErrCustomerNotFound = errors.New("directory: customer not found")
	ErrFieldNotAllowed  = errors.New("directory: field may not be updated")
)

type Directory struct {
	mu        sync.Mutex
	ids       interfaces.IDGenerator
	customers map[string]*models.Customer
	now       func() time.Time
}

func New(ids interfaces.IDGenerator) *Directory {
	return &Directory{
		ids:       ids,
		customers: make(map[string]*models.Customer),
		now:       time.Now,
	}
}

func (d *Directory) CreateCustomer(ctx context.Context, name, address, birthDate string) (*models.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &models.Customer{
		CustomerID: d.ids.NewID(idgen.PrefixCustomer),
		Name:       name,
		Address:    address,
		BirthDate:  birthDate,
		Status:     models.CustomerActive,
		CreatedAt:  d.now(),
	}
	d.customers[c.CustomerID] = c
	cp := *c
	return &cp, nil
}

// UpdateCustomer applies the allowed fields (name, address, status) and
// rejects anything else. Birth dates are immutable.
func (d *Directory) UpdateCustomer(ctx context.Context, customerID string, updates map[string]string) (*models.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.customers[customerID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	for key, value := range updates {
		switch key {
		case "name":
			c.Name = value
		case "address":
			c.Address = value
		case "status":
			c.Status = models.CustomerStatus(value)
		default:
			return nil, ErrFieldNotAllowed
		}
	}
	cp := *c
	return &cp, nil
}

func (d *Directory) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.customers[customerID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

var _ interfaces.CustomerDirectory = (*Directory)(nil)
