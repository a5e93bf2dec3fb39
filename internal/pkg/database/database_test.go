package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignments_Update(t *testing.T) {
	var a Assignments
	a.Set("city", "Lusaka")
	a.Set("mobile", "+260")
	require.Equal(t, 2, a.Len())

	query, args := a.Update("customers", "id, city", []string{"company_id", "id"}, "co-1", "c-1")
	require.Equal(t,
		"UPDATE customers SET city = $1, mobile = $2, version = version + 1, updated_at = NOW() "+
			"WHERE company_id = $3 AND id = $4 RETURNING id, city",
		query)
	require.Equal(t, []any{"Lusaka", "+260", "co-1", "c-1"}, args)
}

func TestAssignments_UpdateWithoutReturning(t *testing.T) {
	var a Assignments
	a.Set("status", "sold")
	query, args := a.Update("watches", "", []string{"id", "version"}, "w-1", 4)
	require.Equal(t,
		"UPDATE watches SET status = $1, version = version + 1, updated_at = NOW() WHERE id = $2 AND version = $3",
		query)
	require.Equal(t, []any{"sold", "w-1", 4}, args)
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.Len(t, files, 3)
}
