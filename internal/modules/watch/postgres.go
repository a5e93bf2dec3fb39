package watch

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ErrStaleVersion is returned when a conditional update lost to a concurrent writer.
var ErrStaleVersion = fmt.Errorf("watch was modified by another session: %w", apperr.ErrConflict)

const columns = `id, company_id, brand, model, reference, serial, material, dial,
	condition, condition_notes, year, set_completeness,
	cost_price, trade_price, retail_price, status, assigned_customer_id,
	images, description, version, created_at, updated_at`

// row is the watches table record.
type row struct {
	ID                 string          `db:"id"`
	CompanyID          string          `db:"company_id"`
	Brand              string          `db:"brand"`
	Model              string          `db:"model"`
	Reference          string          `db:"reference"`
	Serial             string          `db:"serial"`
	Material           string          `db:"material"`
	Dial               string          `db:"dial"`
	Condition          string          `db:"condition"`
	ConditionNotes     string          `db:"condition_notes"`
	Year               int             `db:"year"`
	SetCompleteness    string          `db:"set_completeness"`
	CostPrice          decimal.Decimal `db:"cost_price"`
	TradePrice         decimal.Decimal `db:"trade_price"`
	RetailPrice        decimal.Decimal `db:"retail_price"`
	Status             string          `db:"status"`
	AssignedCustomerID sql.NullString  `db:"assigned_customer_id"`
	Images             pq.StringArray  `db:"images"`
	Description        string          `db:"description"`
	Version            int             `db:"version"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r row) toWatch() *Watch {
	w := &Watch{
		ID:                 r.ID,
		CompanyID:          r.CompanyID,
		Brand:              r.Brand,
		Model:              r.Model,
		Reference:          r.Reference,
		Serial:             r.Serial,
		Material:           r.Material,
		Dial:               r.Dial,
		Condition:          Condition(r.Condition),
		ConditionNotes:     r.ConditionNotes,
		Year:               r.Year,
		SetCompleteness:    r.SetCompleteness,
		CostPrice:          r.CostPrice,
		TradePrice:         r.TradePrice,
		RetailPrice:        r.RetailPrice,
		Status:             Status(r.Status),
		AssignedCustomerID: r.AssignedCustomerID.String,
		Images:             []string(r.Images),
		Description:        r.Description,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if w.Images == nil {
		w.Images = []string{}
	}
	return w
}

// textArray never yields NULL for the NOT NULL array columns.
func textArray(v []string) pq.StringArray {
	if v == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(v)
}

func nullable(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

type postgresRepo struct{ db sqlx.ExtContext }

// NewPostgresRepository returns a Repository over db, which may be a *sqlx.DB or a *sqlx.Tx.
func NewPostgresRepository(db sqlx.ExtContext) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) List(ctx context.Context, companyID string) ([]*Watch, error) {
	var rows []row
	err := sqlx.SelectContext(ctx, r.db, &rows,
		`SELECT `+columns+` FROM watches WHERE company_id=$1 ORDER BY created_at ASC, id ASC`, companyID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	watches := make([]*Watch, 0, len(rows))
	for _, rw := range rows {
		watches = append(watches, rw.toWatch())
	}
	return watches, nil
}

func (r *postgresRepo) Get(ctx context.Context, companyID, id string) (*Watch, error) {
	return r.get(ctx, `SELECT `+columns+` FROM watches WHERE company_id=$1 AND id=$2`, companyID, id)
}

func (r *postgresRepo) GetForUpdate(ctx context.Context, companyID, id string) (*Watch, error) {
	return r.get(ctx, `SELECT `+columns+` FROM watches WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id)
}

func (r *postgresRepo) get(ctx context.Context, query string, args ...any) (*Watch, error) {
	var rw row
	if err := sqlx.GetContext(ctx, r.db, &rw, query, args...); err != nil {
		return nil, err
	}
	return rw.toWatch(), nil
}

func (r *postgresRepo) Create(ctx context.Context, companyID string, w *Watch) error {
	var rw row
	err := sqlx.GetContext(ctx, r.db, &rw, `
		INSERT INTO watches
		  (company_id, brand, model, reference, serial, material, dial,
		   condition, condition_notes, year, set_completeness,
		   cost_price, trade_price, retail_price, status, assigned_customer_id,
		   images, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING `+columns,
		companyID, w.Brand, w.Model, w.Reference, w.Serial, w.Material, w.Dial,
		string(w.Condition), w.ConditionNotes, w.Year, w.SetCompleteness,
		w.CostPrice, w.TradePrice, w.RetailPrice, string(w.Status), nullable(w.AssignedCustomerID),
		textArray(w.Images), w.Description)
	if err != nil {
		return err
	}
	*w = *rw.toWatch()
	return nil
}

func (r *postgresRepo) Update(ctx context.Context, companyID, id string, p Patch) (*Watch, error) {
	var a database.Assignments
	setString := func(col string, v *string) {
		if v != nil {
			a.Set(col, strings.TrimSpace(*v))
		}
	}
	setString("brand", p.Brand)
	setString("model", p.Model)
	setString("reference", p.Reference)
	setString("serial", p.Serial)
	setString("material", p.Material)
	setString("dial", p.Dial)
	if p.Condition != nil {
		a.Set("condition", string(*p.Condition))
	}
	setString("condition_notes", p.ConditionNotes)
	if p.Year != nil {
		a.Set("year", *p.Year)
	}
	setString("set_completeness", p.SetCompleteness)
	if p.CostPrice != nil {
		a.Set("cost_price", *p.CostPrice)
	}
	if p.TradePrice != nil {
		a.Set("trade_price", *p.TradePrice)
	}
	if p.RetailPrice != nil {
		a.Set("retail_price", *p.RetailPrice)
	}
	if p.Images != nil {
		a.Set("images", textArray(*p.Images))
	}
	setString("description", p.Description)
	if p.Status != nil {
		a.Set("status", string(*p.Status))
	}
	if p.AssignedCustomerID != nil {
		a.Set("assigned_customer_id", nullable(*p.AssignedCustomerID))
	}
	if p.ClearAssignedCustomer {
		a.Set("assigned_customer_id", nil)
	}

	where := []string{"company_id", "id"}
	whereArgs := []any{companyID, id}
	if p.ExpectedVersion > 0 {
		where = append(where, "version")
		whereArgs = append(whereArgs, p.ExpectedVersion)
	}

	query, args := a.Update("watches", columns, where, whereArgs...)
	var rw row
	err := sqlx.GetContext(ctx, r.db, &rw, query, args...)
	if err == sql.ErrNoRows && p.ExpectedVersion > 0 {
		// Distinguish a missing row from a lost race.
		var current int
		if err := sqlx.GetContext(ctx, r.db, &current,
			`SELECT version FROM watches WHERE company_id=$1 AND id=$2`, companyID, id); err != nil {
			return nil, err
		}
		return nil, ErrStaleVersion
	}
	if err != nil {
		return nil, err
	}
	return rw.toWatch(), nil
}

func (r *postgresRepo) Delete(ctx context.Context, companyID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM watches WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
