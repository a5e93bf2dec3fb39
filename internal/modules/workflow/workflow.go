// Package workflow implements the dealer operations that span customers,
// watches and orders. Every rule that can be checked against the cached
// snapshot is checked before the gateway is called.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/cache"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/customer"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/gateway"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/order"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/watch"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Engine runs workflows against one tenant's cache.
type Engine struct {
	cache *cache.Cache
	now   func() time.Time
}

func New(c *cache.Cache) *Engine {
	return &Engine{cache: c, now: time.Now}
}

// Cache exposes the snapshot the engine works on.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// SaleRequest is the input of CompleteSale.
type SaleRequest struct {
	WatchID       string              `json:"-"`
	CustomerID    string              `json:"customer_id"`
	SalePrice     decimal.Decimal     `json:"sale_price"`
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	Notes         string              `json:"notes,omitempty"`
}

// PurchaseRequest is the input of RecordPurchase.
type PurchaseRequest struct {
	Watch         watch.Draft         `json:"watch"`
	SupplierID    string              `json:"supplier_id,omitempty"`
	Price         *decimal.Decimal    `json:"price,omitempty"`
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	Notes         string              `json:"notes,omitempty"`
}

// MarginReport is the profit a watch would make at its listed prices.
type MarginReport struct {
	WatchID          string          `json:"watch_id"`
	TradePrice       decimal.Decimal `json:"trade_price"`
	RetailPrice      decimal.Decimal `json:"retail_price"`
	Margin           decimal.Decimal `json:"margin"`
	MarginPercentage decimal.Decimal `json:"margin_percentage"`
}

// ── customers ────────────────────────────────────────────────────────────────

func (e *Engine) emailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	all, err := e.cache.Customers(ctx)
	if err != nil {
		return false, err
	}
	return lo.ContainsBy(all, func(c *customer.Customer) bool {
		return c.ID != exceptID && c.Email == email
	}), nil
}

func (e *Engine) CreateCustomer(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	draft := c.Clone()
	draft.Normalise()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	taken, err := e.emailTaken(ctx, draft.Email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("customer with email %s already exists: %w", draft.Email, apperr.ErrDuplicateKey)
	}
	return e.cache.AddCustomer(ctx, draft)
}

func (e *Engine) UpdateCustomer(ctx context.Context, id string, p customer.Patch) (*customer.Customer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.cache.Customer(ctx, id); err != nil {
		return nil, err
	}
	if p.Email != nil {
		email := customer.NormaliseEmail(*p.Email)
		taken, err := e.emailTaken(ctx, email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("customer with email %s already exists: %w", email, apperr.ErrDuplicateKey)
		}
	}
	return e.cache.UpdateCustomer(ctx, id, p)
}

// DeleteCustomer refuses while a watch is assigned to, or an order names, the customer.
func (e *Engine) DeleteCustomer(ctx context.Context, id string) error {
	snap, err := e.cache.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !lo.ContainsBy(snap.Customers, func(c *customer.Customer) bool { return c.ID == id }) {
		return apperr.NotFound("customer", id)
	}
	if lo.ContainsBy(snap.Watches, func(w *watch.Watch) bool { return w.AssignedCustomerID == id }) {
		return apperr.Conflict("customer %s is assigned to a watch", id)
	}
	if lo.ContainsBy(snap.Orders, func(o *order.Order) bool { return o.CustomerID == id }) {
		return apperr.Conflict("customer %s has orders", id)
	}
	return e.cache.DeleteCustomer(ctx, id)
}

// ── watches ──────────────────────────────────────────────────────────────────

// CreateWatch builds the watch with derived prices and stores it.
func (e *Engine) CreateWatch(ctx context.Context, d watch.Draft) (*watch.Watch, error) {
	w, err := d.Build()
	if err != nil {
		return nil, err
	}
	return e.cache.AddWatch(ctx, w)
}

// UpdateWatch edits a watch. Status and assignment changes follow the same
// rules as SetStatus and AssignCustomer.
func (e *Engine) UpdateWatch(ctx context.Context, id string, p watch.Patch) (*watch.Watch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	w, err := e.cache.Watch(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ChangesLifecycle() {
		if w.IsSold() {
			return nil, apperr.Conflict("watch %s is sold", id)
		}
		if p.Status != nil {
			if err := watch.CheckManualTransition(w.Status, *p.Status); err != nil {
				return nil, err
			}
		}
		if p.AssignedCustomerID != nil {
			if _, err := e.cache.Customer(ctx, *p.AssignedCustomerID); err != nil {
				return nil, err
			}
		}
	}
	return e.cache.UpdateWatch(ctx, id, p)
}

func (e *Engine) DeleteWatch(ctx context.Context, id string) error {
	w, err := e.cache.Watch(ctx, id)
	if err != nil {
		return err
	}
	if w.IsSold() {
		return apperr.Conflict("watch %s is sold", id)
	}
	orders, err := e.cache.OrdersFor(ctx, id)
	if err != nil {
		return err
	}
	if len(orders) > 0 {
		return apperr.Conflict("watch %s has orders", id)
	}
	return e.cache.DeleteWatch(ctx, id)
}

// AssignCustomer links a same-tenant customer to an unsold watch. No order is created.
func (e *Engine) AssignCustomer(ctx context.Context, watchID, customerID string) (*watch.Watch, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, apperr.Validation("customer_id is required")
	}
	w, err := e.cache.Watch(ctx, watchID)
	if err != nil {
		return nil, err
	}
	if w.IsSold() {
		return nil, apperr.Conflict("watch %s is sold", watchID)
	}
	if _, err := e.cache.Customer(ctx, customerID); err != nil {
		return nil, err
	}
	if w.AssignedCustomerID == customerID {
		return w, nil
	}
	return e.cache.UpdateWatch(ctx, watchID, watch.Patch{
		AssignedCustomerID: &customerID,
		ExpectedVersion:    w.Version,
	})
}

// Reassign moves an unsold watch to a different customer.
func (e *Engine) Reassign(ctx context.Context, watchID, customerID string) (*watch.Watch, error) {
	return e.AssignCustomer(ctx, watchID, customerID)
}

// ClearAssignment unlinks the customer from an unsold watch.
func (e *Engine) ClearAssignment(ctx context.Context, watchID string) (*watch.Watch, error) {
	w, err := e.cache.Watch(ctx, watchID)
	if err != nil {
		return nil, err
	}
	if w.IsSold() {
		return nil, apperr.Conflict("watch %s is sold", watchID)
	}
	if w.AssignedCustomerID == "" {
		return w, nil
	}
	return e.cache.UpdateWatch(ctx, watchID, watch.Patch{
		ClearAssignedCustomer: true,
		ExpectedVersion:       w.Version,
	})
}

// SetStatus moves a watch between available, consignment and reserved.
func (e *Engine) SetStatus(ctx context.Context, watchID string, status watch.Status) (*watch.Watch, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status %q", status)
	}
	w, err := e.cache.Watch(ctx, watchID)
	if err != nil {
		return nil, err
	}
	if err := watch.CheckManualTransition(w.Status, status); err != nil {
		return nil, err
	}
	if w.Status == status {
		return w, nil
	}
	return e.cache.UpdateWatch(ctx, watchID, watch.Patch{
		Status:          &status,
		ExpectedVersion: w.Version,
	})
}

// CompleteSale creates the completed sale order and marks the watch sold as
// one gateway operation, conditioned on the watch version seen here.
func (e *Engine) CompleteSale(ctx context.Context, req SaleRequest) (*gateway.Settlement, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, apperr.Validation("customer_id is required")
	}
	if req.SalePrice.IsNegative() {
		return nil, apperr.Validation("sale_price cannot be negative")
	}
	if !req.PaymentMethod.Valid() {
		return nil, apperr.Validation("invalid payment_method %q", req.PaymentMethod)
	}
	w, err := e.cache.Watch(ctx, req.WatchID)
	if err != nil {
		return nil, err
	}
	if w.IsSold() {
		return nil, apperr.Conflict("watch %s is already sold", w.ID)
	}
	if _, err := e.cache.Customer(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	return e.cache.CommitSale(ctx, gateway.Sale{
		WatchID:         w.ID,
		CustomerID:      req.CustomerID,
		SalePrice:       req.SalePrice,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		ExpectedVersion: w.Version,
	})
}

// RecordPurchase stores a bought watch together with its completed purchase order.
func (e *Engine) RecordPurchase(ctx context.Context, req PurchaseRequest) (*gateway.Settlement, error) {
	w, err := req.Watch.Build()
	if err != nil {
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		return nil, apperr.Validation("invalid payment_method %q", req.PaymentMethod)
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, apperr.Validation("price cannot be negative")
	}
	if req.SupplierID != "" {
		if _, err := e.cache.Customer(ctx, req.SupplierID); err != nil {
			return nil, err
		}
	}
	return e.cache.CommitPurchase(ctx, gateway.Purchase{
		Watch:         w,
		SupplierID:    req.SupplierID,
		Price:         req.Price,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
}

// ReverseSale is the administrative correction that takes a watch out of sold.
func (e *Engine) ReverseSale(ctx context.Context, watchID, reason string) (*gateway.Settlement, error) {
	sess, err := tenant.SessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		return nil, apperr.PermissionDenied("only an admin can reverse a sale")
	}
	w, err := e.cache.Watch(ctx, watchID)
	if err != nil {
		return nil, err
	}
	if !w.IsSold() {
		return nil, apperr.Conflict("watch %s is not sold", watchID)
	}
	return e.cache.CommitReversal(ctx, gateway.Reversal{
		WatchID:         watchID,
		Reason:          reason,
		ExpectedVersion: w.Version,
	})
}

// Margin reports retail minus trade price for a cached watch.
func (e *Engine) Margin(ctx context.Context, watchID string) (*MarginReport, error) {
	w, err := e.cache.Watch(ctx, watchID)
	if err != nil {
		return nil, err
	}
	return &MarginReport{
		WatchID:          w.ID,
		TradePrice:       w.TradePrice,
		RetailPrice:      w.RetailPrice,
		Margin:           watch.Margin(w),
		MarginPercentage: watch.MarginPercentage(w),
	}, nil
}

// MarginPercentage is the margin as a percentage of the trade price, 0 when
// the trade price is 0.
func (e *Engine) MarginPercentage(ctx context.Context, watchID string) (decimal.Decimal, error) {
	w, err := e.cache.Watch(ctx, watchID)
	if err != nil {
		return decimal.Zero, err
	}
	return watch.MarginPercentage(w), nil
}

// ── orders ───────────────────────────────────────────────────────────────────

// CreateOrder records a pending or purchase order outside the sale workflow.
func (e *Engine) CreateOrder(ctx context.Context, d order.Draft) (*order.Order, error) {
	o, err := d.Build(e.now())
	if err != nil {
		return nil, err
	}
	if _, err := e.cache.Watch(ctx, o.WatchID); err != nil {
		return nil, err
	}
	if o.CustomerID != "" {
		if _, err := e.cache.Customer(ctx, o.CustomerID); err != nil {
			return nil, err
		}
	}
	return e.cache.AddOrder(ctx, o)
}

// UpdateOrder changes status or notes. When no version is given the cached
// one is used.
func (e *Engine) UpdateOrder(ctx context.Context, id string, p order.Patch) (*order.Order, error) {
	o, err := e.cache.Order(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != nil && p.ExpectedVersion == 0 {
		p.ExpectedVersion = o.Version
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Status != nil {
		if err := order.CheckStatusChange(o, *p.Status); err != nil {
			return nil, err
		}
	}
	return e.cache.UpdateOrder(ctx, id, p)
}

func (e *Engine) DeleteOrder(ctx context.Context, id string) error {
	o, err := e.cache.Order(ctx, id)
	if err != nil {
		return err
	}
	if err := order.CheckDelete(o); err != nil {
		return err
	}
	return e.cache.DeleteOrder(ctx, id)
}
