package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyID = "a0000000-0000-4000-8000-000000000001"

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestNew(t *testing.T) {
	u, err := New(uuid.MustParse(companyID), Registration{Email: " Ada@Example.com ", Password: "longenough", FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, tenant.RoleStaff, u.Role)
	assert.NotEqual(t, "longenough", u.PasswordHash)
	assert.True(t, u.CheckPassword("longenough"))
	assert.False(t, u.CheckPassword("wrong"))
	assert.Equal(t, tenant.ID(companyID), u.Session().CompanyID)

	for name, reg := range map[string]Registration{
		"bad email":      {Email: "nope", Password: "longenough"},
		"short password": {Email: "a@b.test", Password: "short"},
		"bad role":       {Email: "a@b.test", Password: "longenough", Role: "owner"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(uuid.New(), reg)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestRegisterUser_AdminOnly(t *testing.T) {
	db, _ := newMock(t)
	svc := NewService(NewPostgresRepository(db))
	ctx := tenant.WithSession(context.Background(), tenant.Session{CompanyID: companyID, Subject: "u-1", Role: tenant.RoleStaff})

	_, err := svc.RegisterUser(ctx, Registration{Email: "new@dealer.test", Password: "longenough"})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestRegisterUser(t *testing.T) {
	db, mock := newMock(t)
	svc := NewService(NewPostgresRepository(db))
	ctx := tenant.WithSession(context.Background(), tenant.Session{CompanyID: companyID, Subject: "u-1", Role: tenant.RoleAdmin})

	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "new@dealer.test", sqlmock.AnyArg(), "", "", "staff").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u, err := svc.RegisterUser(ctx, Registration{Email: "new@dealer.test", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse(companyID), u.CompanyID)
	assert.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterUser_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	svc := NewService(NewPostgresRepository(db))
	ctx := tenant.WithSession(context.Background(), tenant.Session{CompanyID: companyID, Subject: "u-1", Role: tenant.RoleAdmin})

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).WillReturnError(&pq.Error{Code: "23505"})

	_, err := svc.RegisterUser(ctx, Registration{Email: "taken@dealer.test", Password: "longenough"})
	assert.ErrorIs(t, err, apperr.ErrDuplicateKey)
}

func TestGetUser_ScopedToCompany(t *testing.T) {
	db, mock := newMock(t)
	svc := NewService(NewPostgresRepository(db))
	ctx := tenant.WithSession(context.Background(), tenant.Session{CompanyID: companyID, Subject: "u-1", Role: tenant.RoleStaff})
	id := uuid.New().String()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE company_id = $1 AND id = $2")).
		WithArgs(companyID, id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetUser(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.GetUser(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}
