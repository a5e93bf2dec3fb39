// Package gateway is the single place where dealer data crosses the process
// boundary. Every call resolves the tenant from the context, runs under a
// per-call timeout and returns errors from the apperr taxonomy.
package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/customer"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/order"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/watch"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind names an entity collection.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindWatch    Kind = "watch"
	KindOrder    Kind = "order"
)

const (
	opList    = "list"
	opCreate  = "create"
	opUpdate  = "update"
	opDelete  = "delete"
	opSale    = "complete_sale"
	opBuy     = "record_purchase"
	opReverse = "reverse_sale"
)

// Gateway is the persistence boundary used by the cache.
type Gateway interface {
	ListCustomers(ctx context.Context) ([]*customer.Customer, error)
	CreateCustomer(ctx context.Context, c *customer.Customer) (*customer.Customer, error)
	UpdateCustomer(ctx context.Context, id string, p customer.Patch) (*customer.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListWatches(ctx context.Context) ([]*watch.Watch, error)
	CreateWatch(ctx context.Context, w *watch.Watch) (*watch.Watch, error)
	// UpdateWatch applies p. Status and assignment changes are checked
	// against the stored row and its version inside one transaction.
	UpdateWatch(ctx context.Context, id string, p watch.Patch) (*watch.Watch, error)
	DeleteWatch(ctx context.Context, id string) error

	ListOrders(ctx context.Context) ([]*order.Order, error)
	CreateOrder(ctx context.Context, o *order.Order) (*order.Order, error)
	UpdateOrder(ctx context.Context, id string, p order.Patch) (*order.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	// CompleteSale records a completed sale order and marks the watch sold
	// in one transaction.
	CompleteSale(ctx context.Context, s Sale) (*Settlement, error)
	// RecordPurchase stores a newly bought watch with its completed purchase order.
	RecordPurchase(ctx context.Context, p Purchase) (*Settlement, error)
	// ReverseSale cancels the completed sale order of a sold watch and
	// returns the watch to available. Admins only.
	ReverseSale(ctx context.Context, r Reversal) (*Settlement, error)
}

// Settlement is the pair of rows written by a sale, purchase or reversal.
type Settlement struct {
	Watch *watch.Watch `json:"watch"`
	Order *order.Order `json:"order"`
}

// Sale is the input of CompleteSale. ExpectedVersion, when set, must match
// the watch version the caller observed.
type Sale struct {
	WatchID         string
	CustomerID      string
	SalePrice       decimal.Decimal
	PaymentMethod   order.PaymentMethod
	Notes           string
	ExpectedVersion int
}

// Validate checks the sale input before any I/O.
func (s Sale) Validate() error {
	if err := ValidateID("watch_id", s.WatchID); err != nil {
		return err
	}
	if err := ValidateID("customer_id", s.CustomerID); err != nil {
		return err
	}
	if s.SalePrice.IsNegative() {
		return apperr.Validation("sale_price cannot be negative")
	}
	if !s.PaymentMethod.Valid() {
		return apperr.Validation("invalid payment_method %q", s.PaymentMethod)
	}
	return nil
}

// Purchase is the input of RecordPurchase. Price defaults to the watch's cost.
type Purchase struct {
	Watch         *watch.Watch
	SupplierID    string
	Price         *decimal.Decimal
	PaymentMethod order.PaymentMethod
	Notes         string
}

func (p Purchase) Validate() error {
	if p.Watch == nil {
		return apperr.Validation("watch is required")
	}
	if p.Watch.IsSold() {
		return apperr.Validation("a purchased watch cannot start as sold")
	}
	if p.SupplierID != "" {
		if err := ValidateID("supplier_id", p.SupplierID); err != nil {
			return err
		}
	}
	if p.Price != nil && p.Price.IsNegative() {
		return apperr.Validation("price cannot be negative")
	}
	if !p.PaymentMethod.Valid() {
		return apperr.Validation("invalid payment_method %q", p.PaymentMethod)
	}
	return nil
}

// Reversal is the input of ReverseSale.
type Reversal struct {
	WatchID         string
	Reason          string
	ExpectedVersion int
}

// ValidateID rejects ids the database could never have issued.
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("%s is required", field)
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Validation("invalid %s %q", field, id)
	}
	return nil
}

// Options tunes outbound calls.
type Options struct {
	CallTimeout time.Duration
	ReadRetries int
	RetryBase   time.Duration
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RetryBase <= 0 {
		o.RetryBase = 50 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
