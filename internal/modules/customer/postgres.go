package customer

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const columns = `id, company_id, first_name, last_name, email, mobile,
	address_line1, address_line2, city, postcode, country,
	bank_sort_code, bank_account_number, bank_name, bank_iban, bank_swift,
	profile_picture, id_documents, version, created_at, updated_at`

// row is the customers table record.
type row struct {
	ID                string         `db:"id"`
	CompanyID         string         `db:"company_id"`
	FirstName         string         `db:"first_name"`
	LastName          string         `db:"last_name"`
	Email             string         `db:"email"`
	Mobile            string         `db:"mobile"`
	AddressLine1      string         `db:"address_line1"`
	AddressLine2      string         `db:"address_line2"`
	City              string         `db:"city"`
	Postcode          string         `db:"postcode"`
	Country           string         `db:"country"`
	BankSortCode      string         `db:"bank_sort_code"`
	BankAccountNumber string         `db:"bank_account_number"`
	BankName          string         `db:"bank_name"`
	BankIBAN          string         `db:"bank_iban"`
	BankSWIFT         string         `db:"bank_swift"`
	ProfilePicture    string         `db:"profile_picture"`
	IDDocuments       pq.StringArray `db:"id_documents"`
	Version           int            `db:"version"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r row) toCustomer() *Customer {
	c := &Customer{
		ID:        r.ID,
		CompanyID: r.CompanyID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Mobile:    r.Mobile,
		Address: Address{
			Line1:    r.AddressLine1,
			Line2:    r.AddressLine2,
			City:     r.City,
			Postcode: r.Postcode,
			Country:  r.Country,
		},
		Banking: NormaliseBanking(&BankingDetails{
			SortCode:      r.BankSortCode,
			AccountNumber: r.BankAccountNumber,
			BankName:      r.BankName,
			IBAN:          r.BankIBAN,
			SWIFT:         r.BankSWIFT,
		}),
		ProfilePicture: r.ProfilePicture,
		IDDocuments:    []string(r.IDDocuments),
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if c.IDDocuments == nil {
		c.IDDocuments = []string{}
	}
	return c
}

type postgresRepo struct{ db sqlx.ExtContext }

// NewPostgresRepository returns a Repository over db, which may be a *sqlx.DB or a *sqlx.Tx.
func NewPostgresRepository(db sqlx.ExtContext) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) List(ctx context.Context, companyID string) ([]*Customer, error) {
	var rows []row
	err := sqlx.SelectContext(ctx, r.db, &rows,
		`SELECT `+columns+` FROM customers WHERE company_id=$1 ORDER BY created_at ASC, id ASC`, companyID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	customers := make([]*Customer, 0, len(rows))
	for _, rw := range rows {
		customers = append(customers, rw.toCustomer())
	}
	return customers, nil
}

func (r *postgresRepo) Get(ctx context.Context, companyID, id string) (*Customer, error) {
	var rw row
	err := sqlx.GetContext(ctx, r.db, &rw,
		`SELECT `+columns+` FROM customers WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		return nil, err
	}
	return rw.toCustomer(), nil
}

func (r *postgresRepo) Create(ctx context.Context, companyID string, c *Customer) error {
	b := bankingOrZero(c.Banking)
	var rw row
	err := sqlx.GetContext(ctx, r.db, &rw, `
		INSERT INTO customers
		  (company_id, first_name, last_name, email, mobile,
		   address_line1, address_line2, city, postcode, country,
		   bank_sort_code, bank_account_number, bank_name, bank_iban, bank_swift,
		   profile_picture, id_documents)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING `+columns,
		companyID, c.FirstName, c.LastName, c.Email, c.Mobile,
		c.Address.Line1, c.Address.Line2, c.Address.City, c.Address.Postcode, c.Address.Country,
		b.SortCode, b.AccountNumber, b.BankName, b.IBAN, b.SWIFT,
		c.ProfilePicture, textArray(c.IDDocuments))
	if err != nil {
		return err
	}
	*c = *rw.toCustomer()
	return nil
}

func (r *postgresRepo) Update(ctx context.Context, companyID, id string, p Patch) (*Customer, error) {
	var a database.Assignments
	setString := func(col string, v *string) {
		if v != nil {
			a.Set(col, strings.TrimSpace(*v))
		}
	}
	setString("first_name", p.FirstName)
	setString("last_name", p.LastName)
	if p.Email != nil {
		a.Set("email", NormaliseEmail(*p.Email))
	}
	setString("mobile", p.Mobile)
	setString("address_line1", p.Line1)
	setString("address_line2", p.Line2)
	setString("city", p.City)
	setString("postcode", p.Postcode)
	setString("country", p.Country)
	if p.Banking != nil {
		b := bankingOrZero(NormaliseBanking(p.Banking))
		a.Set("bank_sort_code", b.SortCode)
		a.Set("bank_account_number", b.AccountNumber)
		a.Set("bank_name", b.BankName)
		a.Set("bank_iban", b.IBAN)
		a.Set("bank_swift", b.SWIFT)
	}
	setString("profile_picture", p.ProfilePicture)
	if p.IDDocuments != nil {
		a.Set("id_documents", textArray(*p.IDDocuments))
	}

	query, args := a.Update("customers", columns, []string{"company_id", "id"}, companyID, id)
	var rw row
	if err := sqlx.GetContext(ctx, r.db, &rw, query, args...); err != nil {
		return nil, err
	}
	return rw.toCustomer(), nil
}

func (r *postgresRepo) Delete(ctx context.Context, companyID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func bankingOrZero(b *BankingDetails) BankingDetails {
	if b == nil {
		return BankingDetails{}
	}
	return *b
}

func textArray(v []string) pq.StringArray {
	if v == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(v)
}
