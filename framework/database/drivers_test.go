package database_test

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-persistence/framework/database"
	"github.com/km-arc/go-persistence/framework/tree"
)

// ── MySQL ─────────────────────────────────────────────────────────────────────

func TestMySQLConfig_Defaults(t *testing.T) {
	cfg, err := database.MySQLConfig(tree.MustOf(map[string]any{
		"host": "localhost", "user": "root", "password": nil, "port": nil, "dbname": "app",
		"driverOptions": map[string]any{},
	}))
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "localhost:3306", cfg.Addr)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "", cfg.Passwd)
	assert.Equal(t, "app", cfg.DBName)
	assert.True(t, cfg.ParseTime)
}

func TestMySQLConfig_SocketCharsetAndOptions(t *testing.T) {
	cfg, err := database.MySQLConfig(tree.MustOf(map[string]any{
		"unix_socket":   "/run/mysqld.sock",
		"charset":       "utf8mb4",
		"driverOptions": map[string]any{"timeout": "5s"},
	}))
	require.NoError(t, err)

	assert.Equal(t, "unix", cfg.Net)
	assert.Equal(t, "/run/mysqld.sock", cfg.Addr)
	assert.Equal(t, map[string]string{"charset": "utf8mb4", "timeout": "5s"}, cfg.Params)
}

func TestMySQLConfig_PortAsString(t *testing.T) {
	cfg, err := database.MySQLConfig(tree.MustOf(map[string]any{"host": "db", "port": "3307"}))
	require.NoError(t, err)
	assert.Equal(t, "db:3307", cfg.Addr)

	_, err = database.MySQLConfig(tree.MustOf(map[string]any{"port": "x"}))
	assert.True(t, errors.Is(err, errors.NotValid))
}

// ── PostgreSQL ────────────────────────────────────────────────────────────────

func TestPostgresDSN(t *testing.T) {
	dsn, err := database.PostgresDSN(tree.MustOf(map[string]any{
		"host": "pg", "port": 5433, "user": "app", "password": "s3cret", "dbname": "main",
		"sslmode": "disable",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:s3cret@pg:5433/main?sslmode=disable", dsn)
}

func TestPostgresDSN_NoPassword(t *testing.T) {
	dsn, err := database.PostgresDSN(tree.MustOf(map[string]any{"user": "app", "password": nil}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@localhost:5432/", dsn)
}

func TestPostgresDSN_RawDSNWins(t *testing.T) {
	dsn, err := database.PostgresDSN(tree.MustOf(map[string]any{"dsn": "host=/tmp", "host": "ignored"}))
	require.NoError(t, err)
	assert.Equal(t, "host=/tmp", dsn)
}

// ── SQLite ────────────────────────────────────────────────────────────────────

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"empty is memory", map[string]any{}, ":memory:"},
		{"memory flag", map[string]any{"memory": true, "path": "/tmp/x.db"}, ":memory:"},
		{"path", map[string]any{"path": "/tmp/x.db"}, "/tmp/x.db"},
		{"options", map[string]any{"path": "/tmp/x.db", "driverOptions": map[string]any{"_foreign_keys": "1"}}, "file:/tmp/x.db?_foreign_keys=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := database.SQLiteDSN(tree.MustOf(tt.params))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ── SQL Server ────────────────────────────────────────────────────────────────

func TestSQLServerDSN(t *testing.T) {
	dsn, err := database.SQLServerDSN(tree.MustOf(map[string]any{
		"host": "mssql", "user": "sa", "password": "pw", "dbname": "app",
	}))
	require.NoError(t, err)
	assert.Equal(t, "sqlserver://sa:pw@mssql:1433?database=app", dsn)
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegisterBuiltins_Aliases(t *testing.T) {
	drivers := database.NewDrivers()
	database.RegisterBuiltins(drivers)

	for _, id := range []string{"mysql", "pdo_mysql", "pgsql", "pdo_pgsql", "sqlite3", "pdo_sqlite", "sqlsrv"} {
		assert.True(t, drivers.Has(id), id)
	}
	_, err := drivers.Lookup("oci8")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestRedact(t *testing.T) {
	got := database.Redact(tree.MustOf(map[string]any{"user": "u", "password": "p"}))
	assert.Equal(t, "********", got.Get("password").Text())

	untouched := tree.MustOf(map[string]any{"password": nil})
	assert.True(t, database.Redact(untouched).Get("password").IsNull())
}
