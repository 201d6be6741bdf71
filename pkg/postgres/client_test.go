package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/config"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	host := os.Getenv("SP_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("SP_TEST_POSTGRES_HOST not set")
	}
	c, err := New(config.PostgresConfig{
		Host:            host,
		Port:            5432,
		Database:        "searchplatform",
		User:            "searchplatform",
		Password:        "localdev",
		SSLMode:         "disable",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetStatus(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	_, err := c.DB.ExecContext(ctx, `CREATE TEMP TABLE documents (id BIGINT PRIMARY KEY, status TEXT, indexed_at TIMESTAMPTZ)`)
	require.NoError(t, err)
	_, err = c.DB.ExecContext(ctx, `INSERT INTO documents (id, status) VALUES (1, 'PENDING'), (2, 'PENDING'), (3, 'PENDING')`)
	require.NoError(t, err)

	require.NoError(t, c.SetStatus(ctx, []uint64{1, 3}, StatusIndexed))

	var indexed int
	require.NoError(t, c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE status = 'INDEXED'`).Scan(&indexed))
	assert.Equal(t, 2, indexed)
}

func TestSetStatusEmpty(t *testing.T) {
	var c *Client
	assert.NoError(t, c.SetStatus(context.Background(), nil, StatusIndexed))
}
