//go:build postgres

package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a reachable Postgres and a DATABASE_URL env var.
// Run with: go test -tags=postgres ./internal/cache/ -v -count=1

func smokeStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Fatal("DATABASE_URL must be set to run postgres smoke tests")
	}
	s, err := NewPostgresStore(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSmoke_PostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := smokeStore(t)
	ns := fmt.Sprintf("radar-SMOKE%d-0-1000", time.Now().UnixNano()%100000)
	t.Cleanup(func() { _ = s.DeleteNamespace(ctx, ns) })

	stored := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.Put(ctx, ns, "/api/radar/SMOKE/0/1000", Entry{Status: 200, Body: []byte{1, 2, 3}, StoredAt: stored}))

	e, ok, err := s.Get(ctx, ns, "/api/radar/SMOKE/0/1000")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200, e.Status)
	assert.Equal(t, []byte{1, 2, 3}, e.Body)
	assert.True(t, stored.Equal(e.StoredAt))

	names, err := s.Namespaces(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, ns)

	n, err := s.DeletePrefix(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = s.Get(ctx, ns, "/api/radar/SMOKE/0/1000")
	require.NoError(t, err)
	assert.False(t, ok)
}
