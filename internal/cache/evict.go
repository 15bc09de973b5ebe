package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultRetention is how long cached scans are kept after their scan time.
const DefaultRetention = time.Hour

// Evictor deletes scan namespaces whose scan time has aged out of the
// retention window. It sweeps every namespace in the store, not just one
// station's.
type Evictor struct {
	store     Store
	retention time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewEvictor creates a retention sweeper. A nil clock uses real time.
func NewEvictor(store Store, retention time.Duration, clock clockwork.Clock, logger *slog.Logger) *Evictor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Evictor{store: store, retention: retention, clock: clock, logger: logger}
}

// Sweep deletes expired scan namespaces and returns how many were removed.
// Namespaces that do not parse as scan keys are left alone. A failed delete
// does not stop the sweep; all delete errors are joined into the result.
func (e *Evictor) Sweep(ctx context.Context) (int, error) {
	names, err := e.store.Namespaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cache namespaces: %w", err)
	}

	now := e.clock.Now()
	deleted := 0
	var errs []error
	for _, name := range names {
		key, err := domain.ParseCacheKey(name)
		if err != nil {
			continue
		}
		if !key.ExpiredAt(now, e.retention) {
			continue
		}
		if err := e.store.DeleteNamespace(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		e.logger.Debug("evicted cached scan", "namespace", name, "scan_time", key.ScanTimeAsTime())
		deleted++
	}
	return deleted, errors.Join(errs...)
}
