// Package cache stores raw HTTP payloads grouped into named namespaces, in the
// manner of a browser CacheStorage: each namespace holds request-keyed
// entries and is deleted as a unit.
package cache

import (
	"context"
	"time"
)

// Entry is a cached response.
type Entry struct {
	Status   int
	Body     []byte
	StoredAt time.Time
}

// OK reports whether the entry holds a successful response.
func (e Entry) OK() bool {
	return e.Status == 200
}

// Store is a namespaced byte cache shared by every component in the process.
// Implementations must be safe for concurrent use.
type Store interface {
	// Namespaces lists every namespace that currently holds entries.
	Namespaces(ctx context.Context) ([]string, error)

	// Get returns the entry stored under key in namespace.
	Get(ctx context.Context, namespace, key string) (Entry, bool, error)

	// Put stores an entry, replacing any previous value for the same key.
	Put(ctx context.Context, namespace, key string, e Entry) error

	// DeleteNamespace removes a namespace and all of its entries.
	DeleteNamespace(ctx context.Context, namespace string) error

	// DeletePrefix removes every namespace whose name starts with prefix and
	// returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
