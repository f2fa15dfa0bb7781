package database

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

var (
	dbName = "hiring_test"
	dbUser = "testuser"
	dbPass = "testpass"
)

// SetupTestDB returns the connection string of a migrated Postgres database.
// TEST_DATABASE_URL is used when set; otherwise a throwaway postgres:16-alpine
// container is started. The returned func releases the container.
func SetupTestDB(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		require.NoError(t, MigrateUp(dsn))
		return dsn, func() {}
	}

	postgresContainer, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, MigrateUp(connStr))

	cleanup := func() {
		tc.CleanupContainer(t, postgresContainer)
	}
	return connStr, cleanup
}

// SetupTestPool is SetupTestDB plus an open pool on the database
func SetupTestPool(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	connStr, cleanup := SetupTestDB(t)
	pool, err := pgxpool.New(context.Background(), connStr)
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		cleanup()
	}
}
