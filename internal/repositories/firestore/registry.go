package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/shades-uz/api/internal/platform/firestore"
	"github.com/shades-uz/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	orders  *OrderRepository
	windows *WindowRepository
	shades  *ShadeRepository
	catalog *CatalogRepository
	users   *UserRepository
	health  repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs every repository from the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	windows, err := NewWindowRepository(provider)
	if err != nil {
		return nil, err
	}
	shades, err := NewShadeRepository(provider)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		orders:   orders,
		windows:  windows,
		shades:   shades,
		catalog:  catalog,
		users:    users,
		health:   health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Windows returns the window repository.
func (r *Registry) Windows() repositories.WindowRepository { return r.windows }

// Shades returns the shade repository.
func (r *Registry) Shades() repositories.ShadeRepository { return r.shades }

// Catalog returns the catalog repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx invokes fn directly. Multi-document invariants (tracking code
// claims, cascade deletes) are enforced inside the individual repository
// methods with Firestore transactions, so the grouping layer is a
// pass-through here.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return fn(ctx)
}
