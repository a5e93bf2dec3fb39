package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/customer"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/order"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/watch"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/logger"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/metrics"
	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

type postgresGateway struct {
	db   *sqlx.DB
	opts Options
}

// NewPostgres returns a Gateway backed by the sqlx repositories.
func NewPostgres(db *sqlx.DB, opts Options) Gateway {
	return &postgresGateway{db: db, opts: opts.withDefaults()}
}

// call runs fn for the current tenant under the call timeout, then
// translates, logs and records the outcome.
func (g *postgresGateway) call(ctx context.Context, kind Kind, op, id string, fn func(ctx context.Context, companyID string) error) error {
	companyID, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	started := time.Now()

	cctx, cancel := g.withTimeout(ctx)
	err = translate(kind, op, id, fn(cctx, string(companyID)))
	cancel()

	metrics.ObserveGateway(string(kind), op, outcome(err), started)
	if err != nil {
		l := logger.FromContext(ctx).With(
			zap.String("kind", string(kind)),
			zap.String("op", op),
			zap.String("id", id),
			zap.Error(err),
		)
		if errors.Is(err, apperr.ErrUnavailable) || outcome(err) == "error" {
			l.Warn("gateway call failed")
		} else {
			l.Debug("gateway call rejected")
		}
	}
	return err
}

// read is call with retries on ErrUnavailable. Each attempt gets its own timeout.
func (g *postgresGateway) read(ctx context.Context, kind Kind, fn func(ctx context.Context, companyID string) error) error {
	if g.opts.ReadRetries <= 0 {
		return g.call(ctx, kind, opList, "", fn)
	}
	backoff := retry.WithMaxRetries(uint64(g.opts.ReadRetries), retry.NewExponential(g.opts.RetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := g.call(ctx, kind, opList, "", fn)
		if errors.Is(err, apperr.ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (g *postgresGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.opts.CallTimeout)
}

// inTx runs fn inside a transaction that is rolled back unless fn succeeds.
func (g *postgresGateway) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ── customers ────────────────────────────────────────────────────────────────

func (g *postgresGateway) ListCustomers(ctx context.Context) ([]*customer.Customer, error) {
	var out []*customer.Customer
	err := g.read(ctx, KindCustomer, func(ctx context.Context, companyID string) error {
		var err error
		out, err = customer.NewPostgresRepository(g.db).List(ctx, companyID)
		return err
	})
	return out, err
}

func (g *postgresGateway) CreateCustomer(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	created := c.Clone()
	created.Normalise()
	if err := created.Validate(); err != nil {
		return nil, err
	}
	err := g.call(ctx, KindCustomer, opCreate, "", func(ctx context.Context, companyID string) error {
		return customer.NewPostgresRepository(g.db).Create(ctx, companyID, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (g *postgresGateway) UpdateCustomer(ctx context.Context, id string, p customer.Patch) (*customer.Customer, error) {
	if err := ValidateID("customer_id", id); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out *customer.Customer
	err := g.call(ctx, KindCustomer, opUpdate, id, func(ctx context.Context, companyID string) error {
		var err error
		out, err = customer.NewPostgresRepository(g.db).Update(ctx, companyID, id, p)
		return err
	})
	return out, err
}

func (g *postgresGateway) DeleteCustomer(ctx context.Context, id string) error {
	if err := ValidateID("customer_id", id); err != nil {
		return err
	}
	return g.call(ctx, KindCustomer, opDelete, id, func(ctx context.Context, companyID string) error {
		return customer.NewPostgresRepository(g.db).Delete(ctx, companyID, id)
	})
}

// ── watches ──────────────────────────────────────────────────────────────────

func (g *postgresGateway) ListWatches(ctx context.Context) ([]*watch.Watch, error) {
	var out []*watch.Watch
	err := g.read(ctx, KindWatch, func(ctx context.Context, companyID string) error {
		var err error
		out, err = watch.NewPostgresRepository(g.db).List(ctx, companyID)
		return err
	})
	return out, err
}

func (g *postgresGateway) CreateWatch(ctx context.Context, w *watch.Watch) (*watch.Watch, error) {
	if w.IsSold() {
		return nil, apperr.Validation("a new watch cannot start as sold")
	}
	if w.AssignedCustomerID != "" {
		if err := ValidateID("assigned_customer_id", w.AssignedCustomerID); err != nil {
			return nil, err
		}
	}
	created := w.Clone()
	err := g.call(ctx, KindWatch, opCreate, "", func(ctx context.Context, companyID string) error {
		return watch.NewPostgresRepository(g.db).Create(ctx, companyID, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (g *postgresGateway) UpdateWatch(ctx context.Context, id string, p watch.Patch) (*watch.Watch, error) {
	if err := ValidateID("watch_id", id); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.AssignedCustomerID != nil {
		if err := ValidateID("assigned_customer_id", *p.AssignedCustomerID); err != nil {
			return nil, err
		}
	}

	var out *watch.Watch
	err := g.call(ctx, KindWatch, opUpdate, id, func(ctx context.Context, companyID string) error {
		if !p.ChangesLifecycle() {
			var err error
			out, err = watch.NewPostgresRepository(g.db).Update(ctx, companyID, id, p)
			return err
		}
		return g.inTx(ctx, func(tx *sqlx.Tx) error {
			watches := watch.NewPostgresRepository(tx)
			current, err := watches.GetForUpdate(ctx, companyID, id)
			if err != nil {
				return err
			}
			if current.Version != p.ExpectedVersion {
				return watch.ErrStaleVersion
			}
			if current.IsSold() {
				return apperr.Conflict("watch %s is sold", id)
			}
			if p.Status != nil {
				if err := watch.CheckManualTransition(current.Status, *p.Status); err != nil {
					return err
				}
			}
			out, err = watches.Update(ctx, companyID, id, p)
			return err
		})
	})
	return out, err
}

func (g *postgresGateway) DeleteWatch(ctx context.Context, id string) error {
	if err := ValidateID("watch_id", id); err != nil {
		return err
	}
	return g.call(ctx, KindWatch, opDelete, id, func(ctx context.Context, companyID string) error {
		return watch.NewPostgresRepository(g.db).Delete(ctx, companyID, id)
	})
}

// ── orders ───────────────────────────────────────────────────────────────────

func (g *postgresGateway) ListOrders(ctx context.Context) ([]*order.Order, error) {
	var out []*order.Order
	err := g.read(ctx, KindOrder, func(ctx context.Context, companyID string) error {
		var err error
		out, err = order.NewPostgresRepository(g.db).List(ctx, companyID)
		return err
	})
	return out, err
}

func (g *postgresGateway) CreateOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	if o.IsCompletedSale() {
		return nil, apperr.Validation("a completed sale can only be recorded by completing the sale")
	}
	if err := ValidateID("watch_id", o.WatchID); err != nil {
		return nil, err
	}
	if o.CustomerID != "" {
		if err := ValidateID("customer_id", o.CustomerID); err != nil {
			return nil, err
		}
	}
	created := o.Clone()
	if created.OrderNumber == "" {
		created.OrderNumber = order.GenerateNumber(created.Type, g.opts.Now())
	}
	err := g.call(ctx, KindOrder, opCreate, "", func(ctx context.Context, companyID string) error {
		return order.NewPostgresRepository(g.db).Create(ctx, companyID, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (g *postgresGateway) UpdateOrder(ctx context.Context, id string, p order.Patch) (*order.Order, error) {
	if err := ValidateID("order_id", id); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out *order.Order
	err := g.call(ctx, KindOrder, opUpdate, id, func(ctx context.Context, companyID string) error {
		return g.inTx(ctx, func(tx *sqlx.Tx) error {
			orders := order.NewPostgresRepository(tx)
			if p.Status != nil {
				current, err := orders.Get(ctx, companyID, id)
				if err != nil {
					return err
				}
				if err := order.CheckStatusChange(current, *p.Status); err != nil {
					return err
				}
			}
			var err error
			out, err = orders.Update(ctx, companyID, id, p)
			return err
		})
	})
	return out, err
}

func (g *postgresGateway) DeleteOrder(ctx context.Context, id string) error {
	if err := ValidateID("order_id", id); err != nil {
		return err
	}
	return g.call(ctx, KindOrder, opDelete, id, func(ctx context.Context, companyID string) error {
		return g.inTx(ctx, func(tx *sqlx.Tx) error {
			orders := order.NewPostgresRepository(tx)
			current, err := orders.Get(ctx, companyID, id)
			if err != nil {
				return err
			}
			if err := order.CheckDelete(current); err != nil {
				return err
			}
			return orders.Delete(ctx, companyID, id)
		})
	})
}

// ── workflows ────────────────────────────────────────────────────────────────

func (g *postgresGateway) CompleteSale(ctx context.Context, s Sale) (*Settlement, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var out *Settlement
	err := g.call(ctx, KindWatch, opSale, s.WatchID, func(ctx context.Context, companyID string) error {
		return g.inTx(ctx, func(tx *sqlx.Tx) error {
			watches := watch.NewPostgresRepository(tx)
			w, err := watches.GetForUpdate(ctx, companyID, s.WatchID)
			if err != nil {
				return err
			}
			if w.IsSold() {
				return apperr.Conflict("watch %s is already sold", w.ID)
			}
			if s.ExpectedVersion > 0 && w.Version != s.ExpectedVersion {
				return watch.ErrStaleVersion
			}
			if _, err := customer.NewPostgresRepository(tx).Get(ctx, companyID, s.CustomerID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return apperr.NotFound(string(KindCustomer), s.CustomerID)
				}
				return err
			}

			now := g.opts.Now().UTC()
			o := &order.Order{
				OrderNumber:   order.GenerateNumber(order.TypeSale, now),
				Type:          order.TypeSale,
				CustomerID:    s.CustomerID,
				WatchID:       w.ID,
				SalePrice:     s.SalePrice.Round(2),
				PaymentMethod: s.PaymentMethod,
				Status:        order.StatusCompleted,
				OrderedAt:     now,
				Notes:         s.Notes,
			}
			if err := order.NewPostgresRepository(tx).Create(ctx, companyID, o); err != nil {
				return fmt.Errorf("insert sale order: %w", err)
			}

			sold := watch.StatusSold
			buyer := s.CustomerID
			updated, err := watches.Update(ctx, companyID, w.ID, watch.Patch{
				Status:             &sold,
				AssignedCustomerID: &buyer,
				ExpectedVersion:    w.Version,
			})
			if err != nil {
				return fmt.Errorf("mark watch sold: %w", err)
			}
			out = &Settlement{Watch: updated, Order: o}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *postgresGateway) RecordPurchase(ctx context.Context, p Purchase) (*Settlement, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out *Settlement
	err := g.call(ctx, KindWatch, opBuy, "", func(ctx context.Context, companyID string) error {
		return g.inTx(ctx, func(tx *sqlx.Tx) error {
			w := p.Watch.Clone()
			if err := watch.NewPostgresRepository(tx).Create(ctx, companyID, w); err != nil {
				return fmt.Errorf("insert watch: %w", err)
			}

			price := w.CostPrice
			if p.Price != nil {
				price = p.Price.Round(2)
			}
			now := g.opts.Now().UTC()
			o := &order.Order{
				OrderNumber:   order.GenerateNumber(order.TypePurchase, now),
				Type:          order.TypePurchase,
				CustomerID:    p.SupplierID,
				WatchID:       w.ID,
				SalePrice:     price,
				PaymentMethod: p.PaymentMethod,
				Status:        order.StatusCompleted,
				OrderedAt:     now,
				Notes:         p.Notes,
			}
			if err := order.NewPostgresRepository(tx).Create(ctx, companyID, o); err != nil {
				return fmt.Errorf("insert purchase order: %w", err)
			}
			out = &Settlement{Watch: w, Order: o}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *postgresGateway) ReverseSale(ctx context.Context, r Reversal) (*Settlement, error) {
	if err := ValidateID("watch_id", r.WatchID); err != nil {
		return nil, err
	}
	sess, err := tenant.SessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		return nil, apperr.PermissionDenied("only an admin can reverse a sale")
	}

	var out *Settlement
	err = g.call(ctx, KindWatch, opReverse, r.WatchID, func(ctx context.Context, companyID string) error {
		return g.inTx(ctx, func(tx *sqlx.Tx) error {
			watches := watch.NewPostgresRepository(tx)
			orders := order.NewPostgresRepository(tx)

			w, err := watches.GetForUpdate(ctx, companyID, r.WatchID)
			if err != nil {
				return err
			}
			if !w.IsSold() {
				return apperr.Conflict("watch %s is not sold", w.ID)
			}
			if r.ExpectedVersion > 0 && w.Version != r.ExpectedVersion {
				return watch.ErrStaleVersion
			}
			sale, err := orders.GetCompletedSale(ctx, companyID, w.ID)
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.Conflict("watch %s is sold but has no completed sale order", w.ID)
			}
			if err != nil {
				return err
			}

			cancelled := order.StatusCancelled
			notes := sale.Notes
			if reason := strings.TrimSpace(r.Reason); reason != "" {
				notes = strings.TrimSpace(notes + "\nReversed: " + reason)
			}
			o, err := orders.Update(ctx, companyID, sale.ID, order.Patch{
				Status:          &cancelled,
				Notes:           &notes,
				ExpectedVersion: sale.Version,
			})
			if err != nil {
				return fmt.Errorf("cancel sale order: %w", err)
			}

			available := watch.StatusAvailable
			updated, err := watches.Update(ctx, companyID, w.ID, watch.Patch{
				Status:          &available,
				ExpectedVersion: w.Version,
			})
			if err != nil {
				return fmt.Errorf("restore watch: %w", err)
			}
			out = &Settlement{Watch: updated, Order: o}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
