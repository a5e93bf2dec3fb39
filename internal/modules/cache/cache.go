// Package cache holds one tenant's in-memory snapshot of customers, watches
// and orders. Reads are served from memory as deep copies. Mutations go to the
// gateway first and are spliced into the snapshot only when it succeeds.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/customer"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/gateway"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/order"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/watch"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/logger"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/metrics"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Snapshot is a detached copy of the cached collections.
type Snapshot struct {
	Customers []*customer.Customer `json:"customers"`
	Watches   []*watch.Watch       `json:"watches"`
	Orders    []*order.Order       `json:"orders"`
	LoadedAt  time.Time            `json:"loaded_at"`
}

// Cache is bound to a single tenant for its whole life.
type Cache struct {
	tenant tenant.ID
	gw     gateway.Gateway

	mu        sync.RWMutex
	customers *set[*customer.Customer]
	watches   *set[*watch.Watch]
	orders    *set[*order.Order]
	loadedAt  time.Time
}

func New(id tenant.ID, gw gateway.Gateway) *Cache {
	return &Cache{
		tenant:    id,
		gw:        gw,
		customers: newSet(func(c *customer.Customer) string { return c.ID }, (*customer.Customer).Clone),
		watches:   newSet(func(w *watch.Watch) string { return w.ID }, (*watch.Watch).Clone),
		orders:    newSet(func(o *order.Order) string { return o.ID }, (*order.Order).Clone),
	}
}

// Tenant returns the company this cache belongs to.
func (c *Cache) Tenant() tenant.ID { return c.tenant }

// Loaded reports whether Load has succeeded at least once.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.loadedAt.IsZero()
}

func (c *Cache) check(ctx context.Context) error {
	return tenant.Require(ctx, c.tenant)
}

// lenient turns a not-found list into an empty one. Anything else fails the load.
func lenient[T any](items []T, err error) ([]T, error) {
	if errors.Is(err, apperr.ErrNotFound) {
		return []T{}, nil
	}
	return items, err
}

// Load fetches all three collections in parallel and replaces the snapshot
// only if every fetch succeeded.
func (c *Cache) Load(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	var (
		customers []*customer.Customer
		watches   []*watch.Watch
		orders    []*order.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := c.gw.ListCustomers(gctx)
		customers, err = lenient(items, err)
		return err
	})
	g.Go(func() error {
		items, err := c.gw.ListWatches(gctx)
		watches, err = lenient(items, err)
		return err
	})
	g.Go(func() error {
		items, err := c.gw.ListOrders(gctx)
		orders, err = lenient(items, err)
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.CacheLoads.WithLabelValues("failed").Inc()
		logger.FromContext(ctx).Warn("cache load failed, keeping previous snapshot",
			zap.String("company_id", string(c.tenant)), zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.customers.replace(customers)
	c.watches.replace(watches)
	c.orders.replace(orders)
	c.loadedAt = time.Now()
	c.mu.Unlock()

	metrics.CacheLoads.WithLabelValues("ok").Inc()
	logger.FromContext(ctx).Debug("cache loaded",
		zap.String("company_id", string(c.tenant)),
		zap.Int("customers", len(customers)),
		zap.Int("watches", len(watches)),
		zap.Int("orders", len(orders)),
	)
	return nil
}

// ── reads ────────────────────────────────────────────────────────────────────

func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := c.check(ctx); err != nil {
		return Snapshot{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Customers: c.customers.all(),
		Watches:   c.watches.all(),
		Orders:    c.orders.all(),
		LoadedAt:  c.loadedAt,
	}, nil
}

func (c *Cache) Customers(ctx context.Context) ([]*customer.Customer, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.customers.all(), nil
}

func (c *Cache) Watches(ctx context.Context) ([]*watch.Watch, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watches.all(), nil
}

func (c *Cache) Orders(ctx context.Context) ([]*order.Order, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orders.all(), nil
}

func (c *Cache) Customer(ctx context.Context, id string) (*customer.Customer, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cu, ok := c.customers.get(id); ok {
		return cu, nil
	}
	return nil, apperr.NotFound("customer", id)
}

func (c *Cache) Watch(ctx context.Context, id string) (*watch.Watch, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if w, ok := c.watches.get(id); ok {
		return w, nil
	}
	return nil, apperr.NotFound("watch", id)
}

func (c *Cache) Order(ctx context.Context, id string) (*order.Order, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if o, ok := c.orders.get(id); ok {
		return o, nil
	}
	return nil, apperr.NotFound("order", id)
}

// OrdersFor returns the orders referencing a watch.
func (c *Cache) OrdersFor(ctx context.Context, watchID string) ([]*order.Order, error) {
	all, err := c.Orders(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(o *order.Order, _ int) bool { return o.WatchID == watchID }), nil
}

// ── mutations ────────────────────────────────────────────────────────────────

func (c *Cache) AddCustomer(ctx context.Context, cu *customer.Customer) (*customer.Customer, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	created, err := c.gw.CreateCustomer(ctx, cu)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customers.upsert(created)
	return created.Clone(), nil
}

func (c *Cache) UpdateCustomer(ctx context.Context, id string, p customer.Patch) (*customer.Customer, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	updated, err := c.gw.UpdateCustomer(ctx, id, p)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customers.upsert(updated)
	return updated.Clone(), nil
}

func (c *Cache) DeleteCustomer(ctx context.Context, id string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if err := c.gw.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customers.remove(id)
	return nil
}

func (c *Cache) AddWatch(ctx context.Context, w *watch.Watch) (*watch.Watch, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	created, err := c.gw.CreateWatch(ctx, w)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watches.upsert(created)
	return created.Clone(), nil
}

func (c *Cache) UpdateWatch(ctx context.Context, id string, p watch.Patch) (*watch.Watch, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	updated, err := c.gw.UpdateWatch(ctx, id, p)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watches.upsert(updated)
	return updated.Clone(), nil
}

func (c *Cache) DeleteWatch(ctx context.Context, id string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if err := c.gw.DeleteWatch(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watches.remove(id)
	return nil
}

func (c *Cache) AddOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	created, err := c.gw.CreateOrder(ctx, o)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders.upsert(created)
	return created.Clone(), nil
}

func (c *Cache) UpdateOrder(ctx context.Context, id string, p order.Patch) (*order.Order, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	updated, err := c.gw.UpdateOrder(ctx, id, p)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders.upsert(updated)
	return updated.Clone(), nil
}

func (c *Cache) DeleteOrder(ctx context.Context, id string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if err := c.gw.DeleteOrder(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders.remove(id)
	return nil
}

// CommitSale completes a sale through the gateway and splices in both rows.
func (c *Cache) CommitSale(ctx context.Context, s gateway.Sale) (*gateway.Settlement, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	res, err := c.gw.CompleteSale(ctx, s)
	if err != nil {
		return nil, err
	}
	return c.splice(res), nil
}

// CommitPurchase records a purchase through the gateway and splices in both rows.
func (c *Cache) CommitPurchase(ctx context.Context, p gateway.Purchase) (*gateway.Settlement, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	res, err := c.gw.RecordPurchase(ctx, p)
	if err != nil {
		return nil, err
	}
	return c.splice(res), nil
}

// CommitReversal reverses a sale through the gateway and splices in both rows.
func (c *Cache) CommitReversal(ctx context.Context, r gateway.Reversal) (*gateway.Settlement, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	res, err := c.gw.ReverseSale(ctx, r)
	if err != nil {
		return nil, err
	}
	return c.splice(res), nil
}

func (c *Cache) splice(res *gateway.Settlement) *gateway.Settlement {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watches.upsert(res.Watch)
	c.orders.upsert(res.Order)
	return &gateway.Settlement{Watch: res.Watch.Clone(), Order: res.Order.Clone()}
}
