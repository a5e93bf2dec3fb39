package order

import "context"

// Repository defines tenant-scoped data access for orders.
type Repository interface {
	// List returns the company's orders ordered by creation.
	List(ctx context.Context, companyID string) ([]*Order, error)

	// Get retrieves one order, or sql.ErrNoRows.
	Get(ctx context.Context, companyID, id string) (*Order, error)

	// GetCompletedSale returns the completed sale order for a watch, or sql.ErrNoRows.
	GetCompletedSale(ctx context.Context, companyID, watchID string) (*Order, error)

	// Create inserts o and fills in the server-issued id, version and timestamps.
	Create(ctx context.Context, companyID string, o *Order) error

	// Update applies p, conditioned on p.ExpectedVersion when set.
	Update(ctx context.Context, companyID, id string, p Patch) (*Order, error)

	// Delete removes an order. Returns sql.ErrNoRows when nothing matched.
	Delete(ctx context.Context, companyID, id string) error
}
