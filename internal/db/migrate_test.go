package db

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "audit events", migrations[0].Description)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS audit_events")
}

func TestMigrateAppliesPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_events").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_version").
		WithArgs(1, "audit events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	applied, err := NewMigrator(mock).Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateSkipsApplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(1))

	applied, err := NewMigrator(mock).Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusReportsPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(0))

	status, err := NewMigrator(mock).Status(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, status)
	assert.Equal(t, "pending", status[0]["status"])
}
