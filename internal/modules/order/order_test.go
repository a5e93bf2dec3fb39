package order

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rowColumns = []string{
	"id", "company_id", "order_number", "order_type", "customer_id", "watch_id",
	"sale_price", "payment_method", "status", "ordered_at", "notes", "version", "created_at", "updated_at",
}

var now = time.Date(2026, 10, 17, 14, 30, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestGenerateNumber(t *testing.T) {
	assert.Regexp(t, `^SAL-20261017-[0-9A-F]{6}$`, GenerateNumber(TypeSale, now))
	assert.Regexp(t, `^PUR-20261017-[0-9A-F]{6}$`, GenerateNumber(TypePurchase, now))
	assert.NotEqual(t, GenerateNumber(TypeSale, now), GenerateNumber(TypeSale, now))
}

func TestDraftBuild(t *testing.T) {
	o, err := Draft{
		Type:          TypePurchase,
		WatchID:       "w-1",
		SalePrice:     decimal.RequireFromString("4200.005"),
		PaymentMethod: PaymentBankTransfer,
	}.Build(now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, now, o.OrderedAt)
	assert.True(t, o.SalePrice.Equal(decimal.RequireFromString("4200.01")))
	assert.Contains(t, o.OrderNumber, "PUR-")
}

func TestDraftBuild_Rejects(t *testing.T) {
	cases := map[string]Draft{
		"bad type":        {Type: "swap", WatchID: "w", PaymentMethod: PaymentCash},
		"no watch":        {Type: TypePurchase, PaymentMethod: PaymentCash},
		"sale w/o buyer":  {Type: TypeSale, WatchID: "w", PaymentMethod: PaymentCash},
		"bad payment":     {Type: TypePurchase, WatchID: "w", PaymentMethod: "cheque"},
		"negative price":  {Type: TypePurchase, WatchID: "w", PaymentMethod: PaymentCash, SalePrice: decimal.NewFromInt(-1)},
		"completed sale":  {Type: TypeSale, WatchID: "w", CustomerID: "c", PaymentMethod: PaymentCash, Status: StatusCompleted},
		"unknown status":  {Type: TypePurchase, WatchID: "w", PaymentMethod: PaymentCash, Status: "lost"},
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Build(now)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCheckStatusChange(t *testing.T) {
	sale := &Order{Type: TypeSale, Status: StatusPending}
	assert.NoError(t, CheckStatusChange(sale, StatusProcessing))
	assert.NoError(t, CheckStatusChange(sale, StatusCancelled))
	assert.ErrorIs(t, CheckStatusChange(sale, StatusCompleted), apperr.ErrConflict)

	completedSale := &Order{Type: TypeSale, Status: StatusCompleted}
	assert.ErrorIs(t, CheckStatusChange(completedSale, StatusCancelled), apperr.ErrConflict)
	assert.NoError(t, CheckStatusChange(completedSale, StatusCompleted))

	purchase := &Order{Type: TypePurchase, Status: StatusProcessing}
	assert.NoError(t, CheckStatusChange(purchase, StatusCompleted))
	assert.ErrorIs(t, CheckStatusChange(&Order{Type: TypePurchase, Status: StatusCancelled}, StatusPending),
		apperr.ErrValidation)
}

func TestCheckDelete(t *testing.T) {
	assert.ErrorIs(t, CheckDelete(&Order{Status: StatusCompleted}), apperr.ErrPermissionDenied)
	assert.NoError(t, CheckDelete(&Order{Status: StatusCancelled}))
}

func TestPatch_Validate(t *testing.T) {
	assert.ErrorIs(t, Patch{}.Validate(), apperr.ErrValidation)
	cancelled := StatusCancelled
	assert.ErrorIs(t, Patch{Status: &cancelled}.Validate(), apperr.ErrValidation)
	assert.NoError(t, Patch{Status: &cancelled, ExpectedVersion: 1}.Validate())
	notes := "deposit received"
	assert.NoError(t, Patch{Notes: &notes}.Validate())
}

func TestPostgres_Create(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs("co-1", "SAL-20261017-ABCDEF", "sale", "c-1", "w-1",
			sqlmock.AnyArg(), "card", "completed", now, "").
		WillReturnRows(sqlmock.NewRows(rowColumns).AddRow(
			"o-1", "co-1", "SAL-20261017-ABCDEF", "sale", "c-1", "w-1",
			"9500.00", "card", "completed", now, "", 1, now, now))

	o := &Order{
		OrderNumber: "SAL-20261017-ABCDEF", Type: TypeSale, CustomerID: "c-1", WatchID: "w-1",
		SalePrice: decimal.NewFromInt(9500), PaymentMethod: PaymentCard, Status: StatusCompleted, OrderedAt: now,
	}
	require.NoError(t, NewPostgresRepository(db).Create(context.Background(), "co-1", o))
	assert.Equal(t, "o-1", o.ID)
	assert.Equal(t, 1, o.Version)
	assert.True(t, o.IsCompletedSale())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListEmpty(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE company_id=$1")).
		WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows(rowColumns))

	orders, err := NewPostgresRepository(db).List(context.Background(), "co-1")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestPostgres_UpdateStale(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE orders SET status = $1, version = version + 1, updated_at = NOW() WHERE company_id = $2 AND id = $3 AND version = $4")).
		WithArgs("cancelled", "co-1", "o-1", 2).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))

	cancelled := StatusCancelled
	_, err := NewPostgresRepository(db).Update(context.Background(), "co-1", "o-1",
		Patch{Status: &cancelled, ExpectedVersion: 2})
	assert.ErrorIs(t, err, ErrStaleVersion)
}

func TestPostgres_DeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders")).
		WithArgs("co-1", "o-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPostgresRepository(db).Delete(context.Background(), "co-1", "o-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
