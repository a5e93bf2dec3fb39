package customer

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var rowColumns = []string{
	"id", "company_id", "first_name", "last_name", "email", "mobile",
	"address_line1", "address_line2", "city", "postcode", "country",
	"bank_sort_code", "bank_account_number", "bank_name", "bank_iban", "bank_swift",
	"profile_picture", "id_documents", "version", "created_at", "updated_at",
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func janeRow(city string) *sqlmock.Rows {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(rowColumns).AddRow(
		"c-1", "co-1", "Jane", "Doe", "jane@example.com", "+44 7700",
		"1 High St", "", city, "SW1", "UK",
		"", "", "", "", "",
		"", "{/img/id-1.png}", 1, now, now,
	)
}

func TestNormaliseBanking(t *testing.T) {
	require.Nil(t, NormaliseBanking(nil))
	require.Nil(t, NormaliseBanking(&BankingDetails{BankName: "  "}))

	b := NormaliseBanking(&BankingDetails{IBAN: "gb82 west 1234", SWIFT: " westgb2l "})
	require.NotNil(t, b)
	require.Equal(t, "GB82WEST1234", b.IBAN)
	require.Equal(t, "WESTGB2L", b.SWIFT)
}

func TestCustomer_ValidateAndNormalise(t *testing.T) {
	c := &Customer{FirstName: " Jane ", LastName: "Doe", Email: " Jane@Example.COM ", Banking: &BankingDetails{}}
	c.Normalise()
	require.NoError(t, c.Validate())
	require.Equal(t, "jane@example.com", c.Email)
	require.False(t, c.HasBankingDetails())
	require.Equal(t, []string{}, c.IDDocuments)

	c.Email = "not-an-email"
	require.ErrorIs(t, c.Validate(), apperr.ErrValidation)

	require.ErrorIs(t, (&Customer{LastName: "Doe", Email: "a@b.c"}).Validate(), apperr.ErrValidation)
}

func TestPatch_ApplyOnlyTouchesSetFields(t *testing.T) {
	c := &Customer{ID: "c-1", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
		Address: Address{Line1: "1 High St", City: "London"}, IDDocuments: []string{"a"}}
	city := "X"
	out := Patch{City: &city}.Apply(c)

	require.Equal(t, "X", out.Address.City)
	require.Equal(t, "1 High St", out.Address.Line1)
	require.Equal(t, "Jane", out.FirstName)
	require.Equal(t, "London", c.Address.City, "original must not change")
}

func TestPatch_Validate(t *testing.T) {
	require.ErrorIs(t, Patch{}.Validate(), apperr.ErrValidation)
	blank := " "
	require.ErrorIs(t, Patch{FirstName: &blank}.Validate(), apperr.ErrValidation)
	bad := "nope"
	require.ErrorIs(t, Patch{Email: &bad}.Validate(), apperr.ErrValidation)
}

func TestClone_IsDeep(t *testing.T) {
	c := &Customer{Banking: &BankingDetails{BankName: "Barclays"}, IDDocuments: []string{"a"}}
	cp := c.Clone()
	cp.Banking.BankName = "HSBC"
	cp.IDDocuments[0] = "b"
	require.Equal(t, "Barclays", c.Banking.BankName)
	require.Equal(t, "a", c.IDDocuments[0])
}

func TestPostgres_List(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM customers WHERE company_id=$1 ORDER BY created_at")).
		WithArgs("co-1").
		WillReturnRows(janeRow("London"))

	got, err := NewPostgresRepository(db).List(context.Background(), "co-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Jane Doe", got[0].FullName())
	require.Equal(t, []string{"/img/id-1.png"}, got[0].IDDocuments)
	require.False(t, got[0].HasBankingDetails())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListEmpty(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM customers").WillReturnRows(sqlmock.NewRows(rowColumns))

	got, err := NewPostgresRepository(db).List(context.Background(), "co-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestPostgres_Create(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO customers")).
		WithArgs("co-1", "Jane", "Doe", "jane@example.com", "+44 7700",
			"1 High St", "", "London", "SW1", "UK",
			"", "", "", "", "",
			"", sqlmock.AnyArg()).
		WillReturnRows(janeRow("London"))

	c := &Customer{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Mobile: "+44 7700",
		Address: Address{Line1: "1 High St", City: "London", Postcode: "SW1", Country: "UK"}}
	require.NoError(t, NewPostgresRepository(db).Create(context.Background(), "co-1", c))
	require.Equal(t, "c-1", c.ID)
	require.Equal(t, 1, c.Version)
	require.False(t, c.CreatedAt.IsZero())
}

func TestPostgres_UpdateCity(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE customers SET city = $1, version = version + 1")).
		WithArgs("X", "co-1", "c-1").
		WillReturnRows(janeRow("X"))

	city := "X"
	got, err := NewPostgresRepository(db).Update(context.Background(), "co-1", "c-1", Patch{City: &city})
	require.NoError(t, err)
	require.Equal(t, "X", got.Address.City)
	require.Equal(t, "1 High St", got.Address.Line1)
}

func TestPostgres_DeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM customers")).
		WithArgs("co-1", "c-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPostgresRepository(db).Delete(context.Background(), "co-1", "c-404")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
