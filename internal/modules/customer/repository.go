package customer

import "context"

// Repository defines tenant-scoped customer storage. Every method takes the
// owning company explicitly; rows of other companies are invisible.
type Repository interface {
	// List returns the company's customers ordered by creation.
	List(ctx context.Context, companyID string) ([]*Customer, error)

	// Get returns one customer, or sql.ErrNoRows.
	Get(ctx context.Context, companyID, id string) (*Customer, error)

	// Create inserts c and fills in the server-issued id, version and timestamps.
	Create(ctx context.Context, companyID string, c *Customer) error

	// Update applies p and returns the stored row.
	Update(ctx context.Context, companyID, id string, p Patch) (*Customer, error)

	// Delete removes a customer. Returns sql.ErrNoRows when nothing matched.
	Delete(ctx context.Context, companyID, id string) error
}
