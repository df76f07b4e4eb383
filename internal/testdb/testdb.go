//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ftpledger/ledger-api/internal/config"
	"github.com/ftpledger/ledger-api/internal/platform/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// URLEnvVar names an existing database to use instead of a container.
const URLEnvVar = "LEDGER_TEST_DATABASE_URL"

// TestTimeout bounds container startup and connection checks.
const TestTimeout = 30 * time.Second

// Setup returns a connection pool to a freshly migrated database. All
// resources are released through t.Cleanup.
func Setup(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	dsn := os.Getenv(URLEnvVar)
	if dsn == "" {
		dsn = startContainer(ctx, t)
	}

	db, err := postgres.Open(ctx, config.DatabaseConfig{
		Driver:                 "postgres",
		URL:                    dsn,
		MaxOpenConns:           20,
		MaxIdleConns:           5,
		ConnMaxLifetimeMinutes: 5,
	}, log)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, postgres.Migrate(ctx, db, "up", log), "failed to migrate test database")
	return db
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(TestTimeout)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}
