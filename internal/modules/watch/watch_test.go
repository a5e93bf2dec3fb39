package watch

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var rowColumns = []string{
	"id", "company_id", "brand", "model", "reference", "serial", "material", "dial",
	"condition", "condition_notes", "year", "set_completeness",
	"cost_price", "trade_price", "retail_price", "status", "assigned_customer_id",
	"images", "description", "version", "created_at", "updated_at",
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func submarinerRow(status string, assigned any, version int) *sqlmock.Rows {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(rowColumns).AddRow(
		"w-1", "co-1", "Rolex", "Submariner", "126610LN", "ABC123", "Steel", "Black",
		"Excellent", "", 2021, "Full set",
		"8000.00", "9500.00", "12000.00", status, assigned,
		"{}", "", version, now, now,
	)
}

func TestDraftBuild_PriceDefaults(t *testing.T) {
	w, err := Draft{Brand: "Omega", Model: "Speedmaster", Condition: ConditionGood, CostPrice: dec("100")}.Build()
	require.NoError(t, err)
	require.True(t, w.TradePrice.Equal(dec("100")), w.TradePrice.String())
	require.True(t, w.RetailPrice.Equal(dec("150")), w.RetailPrice.String())
	require.Equal(t, StatusAvailable, w.Status)
	require.Equal(t, []string{}, w.Images)
}

func TestDraftBuild_ExplicitPricesWin(t *testing.T) {
	w, err := Draft{Brand: "Omega", Model: "Seamaster", Condition: ConditionNew,
		CostPrice: dec("100"), TradePrice: decPtr("120"), RetailPrice: decPtr("199.99")}.Build()
	require.NoError(t, err)
	require.True(t, w.TradePrice.Equal(dec("120")))
	require.True(t, w.RetailPrice.Equal(dec("199.99")))
}

func TestDraftBuild_Validation(t *testing.T) {
	cases := []Draft{
		{Model: "X", Condition: ConditionNew},
		{Brand: "X", Condition: ConditionNew},
		{Brand: "X", Model: "Y", Condition: "Mint"},
		{Brand: "X", Model: "Y", Condition: ConditionNew, CostPrice: dec("-1")},
		{Brand: "X", Model: "Y", Condition: ConditionNew, Status: StatusSold},
	}
	for _, d := range cases {
		_, err := d.Build()
		require.ErrorIs(t, err, apperr.ErrValidation, "%+v", d)
	}
}

func TestMargin(t *testing.T) {
	w := &Watch{TradePrice: dec("5000"), RetailPrice: dec("7500")}
	require.True(t, Margin(w).Equal(dec("2500")))
	require.True(t, MarginPercentage(w).Equal(dec("50")), MarginPercentage(w).String())
}

func TestMarginPercentage_ZeroTradePrice(t *testing.T) {
	w := &Watch{TradePrice: decimal.Zero, RetailPrice: dec("7500")}
	require.True(t, MarginPercentage(w).IsZero())
}

func TestCheckManualTransition(t *testing.T) {
	require.NoError(t, CheckManualTransition(StatusAvailable, StatusConsignment))
	require.NoError(t, CheckManualTransition(StatusConsignment, StatusReserved))
	require.NoError(t, CheckManualTransition(StatusReserved, StatusAvailable))
	require.ErrorIs(t, CheckManualTransition(StatusAvailable, StatusSold), apperr.ErrValidation)
	require.ErrorIs(t, CheckManualTransition(StatusSold, StatusAvailable), apperr.ErrConflict)
}

func TestPatch_Validate(t *testing.T) {
	require.ErrorIs(t, Patch{}.Validate(), apperr.ErrValidation)
	require.ErrorIs(t, Patch{ExpectedVersion: 3}.Validate(), apperr.ErrValidation)

	reserved := StatusReserved
	require.ErrorIs(t, Patch{Status: &reserved}.Validate(), apperr.ErrValidation, "lifecycle change needs a version")
	require.NoError(t, Patch{Status: &reserved, ExpectedVersion: 2}.Validate())

	cid := "c-1"
	require.ErrorIs(t, Patch{AssignedCustomerID: &cid, ClearAssignedCustomer: true, ExpectedVersion: 1}.Validate(),
		apperr.ErrValidation)

	desc := "Box and papers"
	require.NoError(t, Patch{Description: &desc}.Validate())
}

func TestPatch_Apply(t *testing.T) {
	w := &Watch{ID: "w-1", Status: StatusAvailable, AssignedCustomerID: "c-1", Images: []string{"a"}}
	out := Patch{ClearAssignedCustomer: true, ExpectedVersion: 1}.Apply(w)
	require.Empty(t, out.AssignedCustomerID)
	require.Equal(t, "c-1", w.AssignedCustomerID)
}

func TestPostgres_Get(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM watches WHERE company_id=$1 AND id=$2")).
		WithArgs("co-1", "w-1").
		WillReturnRows(submarinerRow("available", nil, 1))

	w, err := NewPostgresRepository(db).Get(context.Background(), "co-1", "w-1")
	require.NoError(t, err)
	require.Equal(t, "Rolex", w.Brand)
	require.Equal(t, ConditionExcellent, w.Condition)
	require.True(t, w.RetailPrice.Equal(dec("12000")))
	require.Empty(t, w.AssignedCustomerID)
}

func TestPostgres_UpdateWithVersion(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE watches SET assigned_customer_id = $1, version = version + 1, updated_at = NOW() "+
			"WHERE company_id = $2 AND id = $3 AND version = $4")).
		WithArgs("c-1", "co-1", "w-1", 1).
		WillReturnRows(submarinerRow("available", "c-1", 2))

	cid := "c-1"
	w, err := NewPostgresRepository(db).Update(context.Background(), "co-1", "w-1",
		Patch{AssignedCustomerID: &cid, ExpectedVersion: 1})
	require.NoError(t, err)
	require.Equal(t, "c-1", w.AssignedCustomerID)
	require.Equal(t, 2, w.Version)
}

func TestPostgres_UpdateStaleVersion(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE watches SET status = $1")).
		WithArgs("reserved", "co-1", "w-1", 1).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM watches")).
		WithArgs("co-1", "w-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))

	reserved := StatusReserved
	_, err := NewPostgresRepository(db).Update(context.Background(), "co-1", "w-1",
		Patch{Status: &reserved, ExpectedVersion: 1})
	require.ErrorIs(t, err, ErrStaleVersion)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestPostgres_UpdateMissingWithVersion(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE watches")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM watches")).WillReturnError(sql.ErrNoRows)

	reserved := StatusReserved
	_, err := NewPostgresRepository(db).Update(context.Background(), "co-1", "w-404",
		Patch{Status: &reserved, ExpectedVersion: 1})
	require.ErrorIs(t, err, sql.ErrNoRows)
}
