package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_BasicGetPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)

	require.NoError(t, s.Put(ctx, "radar-KTLX-0-1000", "/api/radar/KTLX/0/1000", Entry{Status: 200, Body: []byte("a")}))

	e, ok, err := s.Get(ctx, "radar-KTLX-0-1000", "/api/radar/KTLX/0/1000")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, e.OK())
	assert.Equal(t, []byte("a"), e.Body)

	_, ok, err = s.Get(ctx, "radar-KTLX-0-1000", "/other")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Get(ctx, "missing", "/api/radar/KTLX/0/1000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_PutCopiesBody(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(1)

	body := []byte("scan")
	require.NoError(t, s.Put(ctx, "ns", "k", Entry{Status: 200, Body: body}))
	body[0] = 'X'

	e, _, _ := s.Get(ctx, "ns", "k")
	assert.Equal(t, []byte("scan"), e.Body)
}

func TestMemoryStore_EvictsLeastRecentlyUsedNamespace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Put(ctx, "a", "k", Entry{Status: 200}))
	require.NoError(t, s.Put(ctx, "b", "k", Entry{Status: 200}))
	require.NoError(t, s.Put(ctx, "c", "k", Entry{Status: 200})) // evicts "a"

	_, ok, _ := s.Get(ctx, "a", "k")
	assert.False(t, ok, "a should have been evicted")

	_, ok, _ = s.Get(ctx, "b", "k")
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, "c", "k")
	assert.True(t, ok)
}

func TestMemoryStore_AccessPromotesNamespace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Put(ctx, "a", "k", Entry{Status: 200}))
	require.NoError(t, s.Put(ctx, "b", "k", Entry{Status: 200}))

	// Access "a" to promote it
	_, _, _ = s.Get(ctx, "a", "k")

	// Insert "c", which should evict "b" (LRU), not "a"
	require.NoError(t, s.Put(ctx, "c", "k", Entry{Status: 200}))

	_, ok, _ := s.Get(ctx, "a", "k")
	assert.True(t, ok, "a was accessed recently, should not be evicted")
	_, ok, _ = s.Get(ctx, "b", "k")
	assert.False(t, ok, "b should have been evicted")
}

func TestMemoryStore_UpdateExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Put(ctx, "a", "k", Entry{Status: 500}))
	require.NoError(t, s.Put(ctx, "a", "k", Entry{Status: 200, Body: []byte("v2")}))

	e, ok, _ := s.Get(ctx, "a", "k")
	assert.True(t, ok)
	assert.Equal(t, 200, e.Status)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_Namespaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	for _, ns := range []string{"radar-KTLX-0-2", "geojson-states-1", "radar-KTLX-0-1"} {
		require.NoError(t, s.Put(ctx, ns, "k", Entry{Status: 200}))
	}

	names, err := s.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"geojson-states-1", "radar-KTLX-0-1", "radar-KTLX-0-2"}, names)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	for _, ns := range []string{"radar-KTLX-0-1", "radar-KTLX-1-1", "radar-KFWS-0-1", "geojson-states-1"} {
		require.NoError(t, s.Put(ctx, ns, "k", Entry{Status: 200}))
	}

	require.NoError(t, s.DeleteNamespace(ctx, "radar-KFWS-0-1"))
	require.NoError(t, s.DeleteNamespace(ctx, "never-existed"))

	n, err := s.DeletePrefix(ctx, "radar-KTLX-")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, _ := s.Namespaces(ctx)
	assert.Equal(t, []string{"geojson-states-1"}, names)
}
