package order

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/database"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ErrStaleVersion is returned when a conditional update lost to a concurrent writer.
var ErrStaleVersion = fmt.Errorf("order was modified by another session: %w", apperr.ErrConflict)

const columns = `id, company_id, order_number, order_type, customer_id, watch_id,
	sale_price, payment_method, status, ordered_at, notes, version, created_at, updated_at`

type row struct {
	ID            string          `db:"id"`
	CompanyID     string          `db:"company_id"`
	OrderNumber   string          `db:"order_number"`
	Type          string          `db:"order_type"`
	CustomerID    sql.NullString  `db:"customer_id"`
	WatchID       string          `db:"watch_id"`
	SalePrice     decimal.Decimal `db:"sale_price"`
	PaymentMethod string          `db:"payment_method"`
	Status        string          `db:"status"`
	OrderedAt     time.Time       `db:"ordered_at"`
	Notes         string          `db:"notes"`
	Version       int             `db:"version"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r row) toOrder() *Order {
	return &Order{
		ID:            r.ID,
		CompanyID:     r.CompanyID,
		OrderNumber:   r.OrderNumber,
		Type:          Type(r.Type),
		CustomerID:    r.CustomerID.String,
		WatchID:       r.WatchID,
		SalePrice:     r.SalePrice,
		PaymentMethod: PaymentMethod(r.PaymentMethod),
		Status:        Status(r.Status),
		OrderedAt:     r.OrderedAt,
		Notes:         r.Notes,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type postgresRepo struct{ db sqlx.ExtContext }

// NewPostgresRepository returns a Repository over db, which may be a *sqlx.DB or a *sqlx.Tx.
func NewPostgresRepository(db sqlx.ExtContext) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) List(ctx context.Context, companyID string) ([]*Order, error) {
	var rows []row
	err := sqlx.SelectContext(ctx, r.db, &rows,
		`SELECT `+columns+` FROM orders WHERE company_id=$1 ORDER BY created_at ASC, id ASC`, companyID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	orders := make([]*Order, 0, len(rows))
	for _, rw := range rows {
		orders = append(orders, rw.toOrder())
	}
	return orders, nil
}

func (r *postgresRepo) Get(ctx context.Context, companyID, id string) (*Order, error) {
	return r.get(ctx, `SELECT `+columns+` FROM orders WHERE company_id=$1 AND id=$2`, companyID, id)
}

func (r *postgresRepo) GetCompletedSale(ctx context.Context, companyID, watchID string) (*Order, error) {
	return r.get(ctx, `SELECT `+columns+` FROM orders
		WHERE company_id=$1 AND watch_id=$2 AND order_type='sale' AND status='completed'
		FOR UPDATE`, companyID, watchID)
}

func (r *postgresRepo) get(ctx context.Context, query string, args ...any) (*Order, error) {
	var rw row
	if err := sqlx.GetContext(ctx, r.db, &rw, query, args...); err != nil {
		return nil, err
	}
	return rw.toOrder(), nil
}

func (r *postgresRepo) Create(ctx context.Context, companyID string, o *Order) error {
	orderedAt := o.OrderedAt
	if orderedAt.IsZero() {
		orderedAt = time.Now().UTC()
	}
	var rw row
	err := sqlx.GetContext(ctx, r.db, &rw, `
		INSERT INTO orders
		  (company_id, order_number, order_type, customer_id, watch_id,
		   sale_price, payment_method, status, ordered_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+columns,
		companyID, o.OrderNumber, string(o.Type),
		sql.NullString{String: o.CustomerID, Valid: o.CustomerID != ""}, o.WatchID,
		o.SalePrice, string(o.PaymentMethod), string(o.Status), orderedAt, o.Notes)
	if err != nil {
		return err
	}
	*o = *rw.toOrder()
	return nil
}

func (r *postgresRepo) Update(ctx context.Context, companyID, id string, p Patch) (*Order, error) {
	var a database.Assignments
	if p.Status != nil {
		a.Set("status", string(*p.Status))
	}
	if p.Notes != nil {
		a.Set("notes", *p.Notes)
	}

	where := []string{"company_id", "id"}
	whereArgs := []any{companyID, id}
	if p.ExpectedVersion > 0 {
		where = append(where, "version")
		whereArgs = append(whereArgs, p.ExpectedVersion)
	}

	query, args := a.Update("orders", columns, where, whereArgs...)
	var rw row
	err := sqlx.GetContext(ctx, r.db, &rw, query, args...)
	if err == sql.ErrNoRows && p.ExpectedVersion > 0 {
		var current int
		if err := sqlx.GetContext(ctx, r.db, &current,
			`SELECT version FROM orders WHERE company_id=$1 AND id=$2`, companyID, id); err != nil {
			return nil, err
		}
		return nil, ErrStaleVersion
	}
	if err != nil {
		return nil, err
	}
	return rw.toOrder(), nil
}

func (r *postgresRepo) Delete(ctx context.Context, companyID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
