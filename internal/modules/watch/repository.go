package watch

import "context"

// Repository defines tenant-scoped watch storage.
type Repository interface {
	// List returns the company's watches ordered by creation.
	List(ctx context.Context, companyID string) ([]*Watch, error)

	// Get returns one watch, or sql.ErrNoRows.
	Get(ctx context.Context, companyID, id string) (*Watch, error)

	// GetForUpdate returns one watch and locks its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, companyID, id string) (*Watch, error)

	// Create inserts w and fills in the server-issued id, version and timestamps.
	Create(ctx context.Context, companyID string, w *Watch) error

	// Update applies p. When p.ExpectedVersion is set the update only matches
	// that version; a stale version yields ErrStaleVersion.
	Update(ctx context.Context, companyID, id string, p Patch) (*Watch, error)

	// Delete removes a watch. Returns sql.ErrNoRows when nothing matched.
	Delete(ctx context.Context, companyID, id string) error
}
