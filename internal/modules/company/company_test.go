package company

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/user"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func onboarding() Onboarding {
	return Onboarding{
		Name:  "Geneva Vintage Ltd",
		Owner: user.Registration{Email: "owner@geneva.test", Password: "longenough", FirstName: "Ola", Role: tenant.RoleStaff},
	}
}

func TestOnboard_CreatesCompanyAndAdmin(t *testing.T) {
	db, mock := newMock(t)
	id := uuid.New()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO companies")).
		WithArgs("Geneva Vintage Ltd").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id.String(), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), id, "owner@geneva.test", sqlmock.AnyArg(), "Ola", "", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	c, admin, err := NewService(db).Onboard(context.Background(), onboarding())
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, id, admin.CompanyID)
	assert.Equal(t, tenant.RoleAdmin, admin.Role, "the owner is always an admin")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOnboard_RollsBackWhenAdminFails(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO companies")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.NewString(), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, _, err := NewService(db).Onboard(context.Background(), onboarding())
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOnboard_ValidatesBeforeTransaction(t *testing.T) {
	db, mock := newMock(t)
	req := onboarding()
	req.Name = "  "
	_, _, err := NewService(db).Onboard(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	req = onboarding()
	req.Owner.Password = "short"
	_, _, err = NewService(db).Onboard(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCompany_RequiresTenant(t *testing.T) {
	db, _ := newMock(t)
	_, err := NewService(db).GetCompany(context.Background())
	assert.ErrorIs(t, err, tenant.ErrNoTenantResolved)
}
