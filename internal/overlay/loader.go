// Package overlay loads the static GeoJSON map layers drawn under radar
// sweeps. Layers never change for a given version, so they are cached
// without expiry.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/couchcryptid/radar-feed/internal/adapter/radarapi"
	"github.com/couchcryptid/radar-feed/internal/cache"
	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/couchcryptid/radar-feed/internal/observability"
	"github.com/jonboulle/clockwork"
	geojson "github.com/paulmach/go.geojson"
)

// Version is the overlay data version requested from the server.
const Version = 1

// Layers lists every overlay the server publishes.
var Layers = []string{
	"coastline",
	"states",
	"lakes",
	"rivers",
	"freeways",
	"oklahomaCounties",
	"oklahomaLakes",
	"oklahomaStreams",
}

// ErrUnknownLayer is returned for layer names not in Layers.
var ErrUnknownLayer = errors.New("unknown overlay layer")

// Source downloads overlay layers.
type Source interface {
	FetchGeoJSON(ctx context.Context, name string, version int) (int, []byte, error)
}

// Loader serves overlay layers from the shared cache, fetching on a miss.
type Loader struct {
	source  Source
	store   cache.Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLoader creates a Loader. A nil clock uses real time.
func NewLoader(source Source, store cache.Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loader{source: source, store: store, clock: clock, logger: logger, metrics: metrics}
}

// namespacePrefix is shared by every overlay namespace and no scan namespace.
const namespacePrefix = "geojson-"

// Namespace returns the cache namespace for a layer.
func Namespace(name string, version int) string {
	return fmt.Sprintf("%s%s-%d", namespacePrefix, name, version)
}

// Get returns the named layer as a feature collection.
func (l *Loader) Get(ctx context.Context, name string) (*geojson.FeatureCollection, error) {
	if !slices.Contains(Layers, name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	ns := Namespace(name, Version)
	key := radarapi.GeoJSONPath(name, Version)

	entry, ok, err := l.store.Get(ctx, ns, key)
	if err != nil {
		l.logger.Warn("overlay cache read failed", "layer", name, "error", err)
	}
	if ok && entry.OK() {
		fc, err := geojson.UnmarshalFeatureCollection(entry.Body)
		if err == nil {
			l.metrics.OverlayCache.WithLabelValues("hit").Inc()
			return fc, nil
		}
		l.logger.Warn("dropping undecodable overlay", "layer", name, "error", err)
		_ = l.store.DeleteNamespace(ctx, ns)
	}

	l.metrics.OverlayCache.WithLabelValues("miss").Inc()
	status, body, err := l.source.FetchGeoJSON(ctx, name, Version)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &domain.FetchError{Resource: domain.ResourceGeoJSON, Station: name, StatusCode: status}
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode overlay %s: %w", name, err)
	}
	if err := l.store.Put(ctx, ns, key, cache.Entry{Status: status, Body: body, StoredAt: l.clock.Now()}); err != nil {
		l.logger.Warn("overlay cache write failed", "layer", name, "error", err)
	}
	l.logger.Debug("overlay fetched", "layer", name, "features", len(fc.Features), "bytes", len(body))
	return fc, nil
}

// Preload fetches every layer into the cache. Failures are collected so one
// missing layer does not prevent the rest from loading.
func (l *Loader) Preload(ctx context.Context) error {
	var errs []error
	for _, name := range Layers {
		if _, err := l.Get(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Refresh drops every cached overlay, of any version, and loads the current
// layers again. It returns how many namespaces were dropped.
func (l *Loader) Refresh(ctx context.Context) (int, error) {
	n, err := l.store.DeletePrefix(ctx, namespacePrefix)
	if err != nil {
		return 0, fmt.Errorf("purge overlays: %w", err)
	}
	l.logger.Info("overlay cache purged", "namespaces", n)
	return n, l.Preload(ctx)
}
