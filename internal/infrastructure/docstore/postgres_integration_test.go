package docstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vitaliisemenov/native-user-store/internal/database/postgres"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/docstore"
)

// setupTestPool starts a Postgres container, creates the documents table,
// and returns a connected pool, mirroring the teacher's
// internal/infrastructure/repository/postgres_history_test.go setupTestDB
// pattern.
func setupTestPool(t *testing.T) *postgres.PostgresPool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres-backed integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("userstore_test"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool := postgres.NewPostgresPool(&postgres.PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		Database: "userstore_test",
		User:     "testuser",
		Password: "testpassword",
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}, nil)
	require.NoError(t, pool.Connect(ctx))
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			index_name  TEXT        NOT NULL,
			doc_type    TEXT        NOT NULL,
			id          TEXT        NOT NULL,
			source      JSONB       NOT NULL,
			version     BIGINT      NOT NULL DEFAULT 1,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (index_name, doc_type, id)
		)`)
	require.NoError(t, err)

	return pool
}

func TestPostgresClient_PutGetDeleteRoundTrip(t *testing.T) {
	pool := setupTestPool(t)
	client := docstore.NewPostgresClient(pool, nil)
	ctx := context.Background()

	created, version, err := client.Index(ctx, "security-users", "user", "alice",
		map[string]any{"passwordHash": "H1", "roles": []any{"admin"}}, false)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, int64(1), version)

	doc, err := client.Get(ctx, "security-users", "user", "alice")
	require.NoError(t, err)
	require.Equal(t, "H1", doc.Source["passwordHash"])

	_, version, err = client.Index(ctx, "security-users", "user", "alice",
		map[string]any{"passwordHash": "H2", "roles": []any{"admin", "ops"}}, false)
	require.NoError(t, err)
	require.Equal(t, int64(2), version)

	found, err := client.Delete(ctx, "security-users", "user", "alice", false)
	require.NoError(t, err)
	require.True(t, found)

	_, err = client.Get(ctx, "security-users", "user", "alice")
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestPostgresClient_ScrollPagination(t *testing.T) {
	pool := setupTestPool(t)
	client := docstore.NewPostgresClient(pool, nil)
	ctx := context.Background()

	for _, username := range []string{"alice", "bob", "carol"} {
		_, _, err := client.Index(ctx, "security-users", "user", username,
			map[string]any{"passwordHash": "H", "roles": []any{}}, false)
		require.NoError(t, err)
	}

	page, err := client.Search(ctx, "security-users", "user", nil, true, 2, 10*time.Second)
	require.NoError(t, err)
	require.False(t, page.Done)
	require.Len(t, page.Hits, 2)

	next, err := client.SearchScroll(ctx, page.ScrollID, 10*time.Second)
	require.NoError(t, err)
	require.True(t, next.Done)
	require.Len(t, next.Hits, 1)

	require.NoError(t, client.ClearScroll(ctx, page.ScrollID))
}
