// Package gatewaytest provides an in-memory Gateway for tests. It enforces
// the same tenant, version and sale rules as the postgres gateway.
package gatewaytest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/customer"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/gateway"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/order"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/watch"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/google/uuid"
)

type store struct {
	customers map[string]*customer.Customer
	watches   map[string]*watch.Watch
	orders    map[string]*order.Order
}

// Fake is a goroutine-safe in-memory Gateway.
type Fake struct {
	mu     sync.Mutex
	tenant map[tenant.ID]*store
	fail   map[string][]error
	calls  []string
	clock  time.Time
}

var _ gateway.Gateway = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		tenant: map[tenant.ID]*store{},
		fail:   map[string][]error{},
		clock:  time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}
}

// FailNext makes the next call of the named method return err.
func (f *Fake) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = append(f.fail[method], err)
}

// Calls returns the method names invoked so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Orders returns every stored order of a tenant, bypassing any cache.
func (f *Fake) Orders(id tenant.ID) []*order.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sorted(f.storeFor(id).orders, func(o *order.Order) time.Time { return o.CreatedAt }, (*order.Order).Clone)
}

// Watch returns one stored watch, bypassing any cache.
func (f *Fake) Watch(id tenant.ID, watchID string) *watch.Watch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeFor(id).watches[watchID].Clone()
}

func (f *Fake) storeFor(id tenant.ID) *store {
	s, ok := f.tenant[id]
	if !ok {
		s = &store{
			customers: map[string]*customer.Customer{},
			watches:   map[string]*watch.Watch{},
			orders:    map[string]*order.Order{},
		}
		f.tenant[id] = s
	}
	return s
}

// begin locks the fake, records the call and resolves the tenant store.
func (f *Fake) begin(ctx context.Context, method string) (*store, string, func(), error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	unlock := f.mu.Unlock

	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		unlock()
		return nil, "", nil, err
	}
	if err := ctx.Err(); err != nil {
		unlock()
		return nil, "", nil, err
	}
	if errs := f.fail[method]; len(errs) > 0 {
		f.fail[method] = errs[1:]
		unlock()
		return nil, "", nil, errs[0]
	}
	return f.storeFor(companyID), string(companyID), unlock, nil
}

func (f *Fake) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func sorted[T any](m map[string]T, at func(T) time.Time, clone func(T) T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, clone(v))
	}
	sort.SliceStable(out, func(i, j int) bool { return at(out[i]).Before(at(out[j])) })
	return out
}

// ── customers ────────────────────────────────────────────────────────────────

func (f *Fake) ListCustomers(ctx context.Context) ([]*customer.Customer, error) {
	s, _, unlock, err := f.begin(ctx, "ListCustomers")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return sorted(s.customers, func(c *customer.Customer) time.Time { return c.CreatedAt }, (*customer.Customer).Clone), nil
}

func (s *store) emailTaken(email, exceptID string) bool {
	for _, c := range s.customers {
		if c.ID != exceptID && strings.EqualFold(c.Email, email) {
			return true
		}
	}
	return false
}

func (f *Fake) CreateCustomer(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	created := c.Clone()
	created.Normalise()
	if err := created.Validate(); err != nil {
		return nil, err
	}
	s, companyID, unlock, err := f.begin(ctx, "CreateCustomer")
	if err != nil {
		return nil, err
	}
	defer unlock()
	if s.emailTaken(created.Email, "") {
		return nil, apperr.ErrDuplicateKey
	}
	now := f.tick()
	created.ID = uuid.NewString()
	created.CompanyID = companyID
	created.Version = 1
	created.CreatedAt, created.UpdatedAt = now, now
	if created.IDDocuments == nil {
		created.IDDocuments = []string{}
	}
	s.customers[created.ID] = created
	return created.Clone(), nil
}

func (f *Fake) UpdateCustomer(ctx context.Context, id string, p customer.Patch) (*customer.Customer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s, _, unlock, err := f.begin(ctx, "UpdateCustomer")
	if err != nil {
		return nil, err
	}
	defer unlock()
	current, ok := s.customers[id]
	if !ok {
		return nil, apperr.NotFound("customer", id)
	}
	updated := p.Apply(current)
	if p.Email != nil && s.emailTaken(updated.Email, id) {
		return nil, apperr.ErrDuplicateKey
	}
	updated.Version++
	updated.UpdatedAt = f.tick()
	s.customers[id] = updated
	return updated.Clone(), nil
}

func (f *Fake) DeleteCustomer(ctx context.Context, id string) error {
	s, _, unlock, err := f.begin(ctx, "DeleteCustomer")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := s.customers[id]; !ok {
		return apperr.NotFound("customer", id)
	}
	for _, w := range s.watches {
		if w.AssignedCustomerID == id {
			return apperr.Conflict("customer %s is still referenced", id)
		}
	}
	for _, o := range s.orders {
		if o.CustomerID == id {
			return apperr.Conflict("customer %s is still referenced", id)
		}
	}
	delete(s.customers, id)
	return nil
}

// ── watches ──────────────────────────────────────────────────────────────────

func (f *Fake) ListWatches(ctx context.Context) ([]*watch.Watch, error) {
	s, _, unlock, err := f.begin(ctx, "ListWatches")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return sorted(s.watches, func(w *watch.Watch) time.Time { return w.CreatedAt }, (*watch.Watch).Clone), nil
}

func (f *Fake) insertWatch(s *store, companyID string, w *watch.Watch) (*watch.Watch, error) {
	if w.IsSold() {
		return nil, apperr.Validation("a new watch cannot start as sold")
	}
	if w.AssignedCustomerID != "" {
		if _, ok := s.customers[w.AssignedCustomerID]; !ok {
			return nil, apperr.NotFound("customer", w.AssignedCustomerID)
		}
	}
	created := w.Clone()
	now := f.tick()
	created.ID = uuid.NewString()
	created.CompanyID = companyID
	created.Version = 1
	created.CreatedAt, created.UpdatedAt = now, now
	if created.Images == nil {
		created.Images = []string{}
	}
	s.watches[created.ID] = created
	return created.Clone(), nil
}

func (f *Fake) CreateWatch(ctx context.Context, w *watch.Watch) (*watch.Watch, error) {
	s, companyID, unlock, err := f.begin(ctx, "CreateWatch")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return f.insertWatch(s, companyID, w)
}

func (f *Fake) UpdateWatch(ctx context.Context, id string, p watch.Patch) (*watch.Watch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s, _, unlock, err := f.begin(ctx, "UpdateWatch")
	if err != nil {
		return nil, err
	}
	defer unlock()
	current, ok := s.watches[id]
	if !ok {
		return nil, apperr.NotFound("watch", id)
	}
	if p.ChangesLifecycle() {
		if current.Version != p.ExpectedVersion {
			return nil, watch.ErrStaleVersion
		}
		if current.IsSold() {
			return nil, apperr.Conflict("watch %s is sold", id)
		}
		if p.Status != nil {
			if err := watch.CheckManualTransition(current.Status, *p.Status); err != nil {
				return nil, err
			}
		}
	}
	if p.AssignedCustomerID != nil {
		if _, ok := s.customers[*p.AssignedCustomerID]; !ok {
			return nil, apperr.NotFound("customer", *p.AssignedCustomerID)
		}
	}
	return f.saveWatch(s, p.Apply(current)), nil
}

func (f *Fake) saveWatch(s *store, w *watch.Watch) *watch.Watch {
	w.Version++
	w.UpdatedAt = f.tick()
	s.watches[w.ID] = w
	return w.Clone()
}

func (f *Fake) DeleteWatch(ctx context.Context, id string) error {
	s, _, unlock, err := f.begin(ctx, "DeleteWatch")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := s.watches[id]; !ok {
		return apperr.NotFound("watch", id)
	}
	for _, o := range s.orders {
		if o.WatchID == id {
			return apperr.Conflict("watch %s is still referenced", id)
		}
	}
	delete(s.watches, id)
	return nil
}

// ── orders ───────────────────────────────────────────────────────────────────

func (f *Fake) ListOrders(ctx context.Context) ([]*order.Order, error) {
	s, _, unlock, err := f.begin(ctx, "ListOrders")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return sorted(s.orders, func(o *order.Order) time.Time { return o.CreatedAt }, (*order.Order).Clone), nil
}

func (f *Fake) insertOrder(s *store, companyID string, o *order.Order) (*order.Order, error) {
	if _, ok := s.watches[o.WatchID]; !ok {
		return nil, apperr.NotFound("watch", o.WatchID)
	}
	if o.CustomerID != "" {
		if _, ok := s.customers[o.CustomerID]; !ok {
			return nil, apperr.NotFound("customer", o.CustomerID)
		}
	}
	for _, existing := range s.orders {
		if existing.OrderNumber == o.OrderNumber {
			return nil, apperr.ErrDuplicateKey
		}
		if o.IsCompletedSale() && existing.IsCompletedSale() && existing.WatchID == o.WatchID {
			return nil, apperr.ErrDuplicateKey
		}
	}
	created := o.Clone()
	now := f.tick()
	created.ID = uuid.NewString()
	created.CompanyID = companyID
	created.Version = 1
	created.CreatedAt, created.UpdatedAt = now, now
	if created.OrderNumber == "" {
		created.OrderNumber = order.GenerateNumber(created.Type, now)
	}
	if created.OrderedAt.IsZero() {
		created.OrderedAt = now
	}
	s.orders[created.ID] = created
	return created.Clone(), nil
}

func (f *Fake) CreateOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	if o.IsCompletedSale() {
		return nil, apperr.Validation("a completed sale can only be recorded by completing the sale")
	}
	s, companyID, unlock, err := f.begin(ctx, "CreateOrder")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return f.insertOrder(s, companyID, o)
}

func (f *Fake) UpdateOrder(ctx context.Context, id string, p order.Patch) (*order.Order, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s, _, unlock, err := f.begin(ctx, "UpdateOrder")
	if err != nil {
		return nil, err
	}
	defer unlock()
	current, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	if p.Status != nil {
		if err := order.CheckStatusChange(current, *p.Status); err != nil {
			return nil, err
		}
	}
	if p.ExpectedVersion > 0 && current.Version != p.ExpectedVersion {
		return nil, order.ErrStaleVersion
	}
	return f.saveOrder(s, p.Apply(current)), nil
}

func (f *Fake) saveOrder(s *store, o *order.Order) *order.Order {
	o.Version++
	o.UpdatedAt = f.tick()
	s.orders[o.ID] = o
	return o.Clone()
}

func (f *Fake) DeleteOrder(ctx context.Context, id string) error {
	s, _, unlock, err := f.begin(ctx, "DeleteOrder")
	if err != nil {
		return err
	}
	defer unlock()
	current, ok := s.orders[id]
	if !ok {
		return apperr.NotFound("order", id)
	}
	if err := order.CheckDelete(current); err != nil {
		return err
	}
	delete(s.orders, id)
	return nil
}

// ── workflows ────────────────────────────────────────────────────────────────

func (f *Fake) CompleteSale(ctx context.Context, sale gateway.Sale) (*gateway.Settlement, error) {
	if err := sale.Validate(); err != nil {
		return nil, err
	}
	s, companyID, unlock, err := f.begin(ctx, "CompleteSale")
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, ok := s.watches[sale.WatchID]
	if !ok {
		return nil, apperr.NotFound("watch", sale.WatchID)
	}
	if w.IsSold() {
		return nil, apperr.Conflict("watch %s is already sold", w.ID)
	}
	if sale.ExpectedVersion > 0 && w.Version != sale.ExpectedVersion {
		return nil, watch.ErrStaleVersion
	}
	if _, ok := s.customers[sale.CustomerID]; !ok {
		return nil, apperr.NotFound("customer", sale.CustomerID)
	}
	o, err := f.insertOrder(s, companyID, &order.Order{
		OrderNumber:   order.GenerateNumber(order.TypeSale, f.clock),
		Type:          order.TypeSale,
		CustomerID:    sale.CustomerID,
		WatchID:       w.ID,
		SalePrice:     sale.SalePrice.Round(2),
		PaymentMethod: sale.PaymentMethod,
		Status:        order.StatusCompleted,
		Notes:         sale.Notes,
	})
	if err != nil {
		return nil, err
	}
	updated := w.Clone()
	updated.Status = watch.StatusSold
	updated.AssignedCustomerID = sale.CustomerID
	return &gateway.Settlement{Watch: f.saveWatch(s, updated), Order: o}, nil
}

func (f *Fake) RecordPurchase(ctx context.Context, p gateway.Purchase) (*gateway.Settlement, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s, companyID, unlock, err := f.begin(ctx, "RecordPurchase")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if p.SupplierID != "" {
		if _, ok := s.customers[p.SupplierID]; !ok {
			return nil, apperr.NotFound("customer", p.SupplierID)
		}
	}
	w, err := f.insertWatch(s, companyID, p.Watch)
	if err != nil {
		return nil, err
	}
	price := w.CostPrice
	if p.Price != nil {
		price = p.Price.Round(2)
	}
	o, err := f.insertOrder(s, companyID, &order.Order{
		OrderNumber:   order.GenerateNumber(order.TypePurchase, f.clock),
		Type:          order.TypePurchase,
		CustomerID:    p.SupplierID,
		WatchID:       w.ID,
		SalePrice:     price,
		PaymentMethod: p.PaymentMethod,
		Status:        order.StatusCompleted,
		Notes:         p.Notes,
	})
	if err != nil {
		delete(s.watches, w.ID)
		return nil, err
	}
	return &gateway.Settlement{Watch: w, Order: o}, nil
}

func (f *Fake) ReverseSale(ctx context.Context, r gateway.Reversal) (*gateway.Settlement, error) {
	sess, err := tenant.SessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		return nil, apperr.PermissionDenied("only an admin can reverse a sale")
	}
	s, _, unlock, err := f.begin(ctx, "ReverseSale")
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, ok := s.watches[r.WatchID]
	if !ok {
		return nil, apperr.NotFound("watch", r.WatchID)
	}
	if !w.IsSold() {
		return nil, apperr.Conflict("watch %s is not sold", w.ID)
	}
	if r.ExpectedVersion > 0 && w.Version != r.ExpectedVersion {
		return nil, watch.ErrStaleVersion
	}
	var sale *order.Order
	for _, o := range s.orders {
		if o.WatchID == w.ID && o.IsCompletedSale() {
			sale = o
		}
	}
	if sale == nil {
		return nil, apperr.Conflict("watch %s is sold but has no completed sale order", w.ID)
	}
	cancelled := sale.Clone()
	cancelled.Status = order.StatusCancelled
	if reason := strings.TrimSpace(r.Reason); reason != "" {
		cancelled.Notes = strings.TrimSpace(cancelled.Notes + "\nReversed: " + reason)
	}
	restored := w.Clone()
	restored.Status = watch.StatusAvailable
	return &gateway.Settlement{Watch: f.saveWatch(s, restored), Order: f.saveOrder(s, cancelled)}, nil
}
