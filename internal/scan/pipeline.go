// Package scan implements the cache-backed fetch and decode path for radar
// sweeps.
package scan

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/radar-feed/internal/adapter/radarapi"
	"github.com/couchcryptid/radar-feed/internal/cache"
	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/couchcryptid/radar-feed/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Source is the subset of the radar API the pipeline reads from.
type Source interface {
	LatestScanTime(ctx context.Context, station string) (int64, error)
	FetchScan(ctx context.Context, station string, sweep int, scanTime int64) (int, []byte, error)
}

// Sweeper deletes expired cache state.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Pipeline resolves the latest scan for a station and sweep, serving the body
// from the cache when the server-side timestamp has not moved.
type Pipeline struct {
	source  Source
	store   cache.Store
	sweeper Sweeper
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	ready    atomic.Bool
	sweeping atomic.Bool
	pending  sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used to stamp cache entries.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline. sweeper may be nil to disable eviction.
func New(source Source, store cache.Store, sweeper Sweeper, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:  source,
		store:   store,
		sweeper: sweeper,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once the pipeline has returned at least one scan.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no radar scan has been served yet")
	}
	return nil
}

// GetScan returns the latest scan for station and sweep. The metadata
// endpoint is always queried; the scan body is fetched only when no
// successful entry exists for the resulting cache key. Fetch and decode
// failures are returned to the caller unretried.
func (p *Pipeline) GetScan(ctx context.Context, station string, sweep int) (domain.RadarScan, error) {
	p.evictAsync(ctx)

	scanTime, err := p.source.LatestScanTime(ctx, station)
	if err != nil {
		p.metrics.ScanRequests.WithLabelValues("error").Inc()
		return domain.RadarScan{}, err
	}

	scan, err := p.load(ctx, station, sweep, scanTime)
	if err != nil {
		p.metrics.ScanRequests.WithLabelValues("error").Inc()
		return domain.RadarScan{}, err
	}
	if scan.Timestamp == 0 {
		scan.Timestamp = domain.NormalizeTimestamp(scanTime)
	}
	p.ready.Store(true)
	return scan, nil
}

func (p *Pipeline) load(ctx context.Context, station string, sweep int, scanTime int64) (domain.RadarScan, error) {
	ns := domain.NewScanKey(station, sweep, scanTime).String()
	key := radarapi.ScanPath(station, sweep, scanTime)

	entry, ok, err := p.store.Get(ctx, ns, key)
	if err != nil {
		p.logger.Warn("cache read failed, fetching from network", "namespace", ns, "error", err)
	}
	if ok && entry.OK() {
		scan, err := domain.DecodeScan(entry.Body)
		if err == nil {
			p.metrics.ScanRequests.WithLabelValues("hit").Inc()
			return scan, nil
		}
		p.logger.Warn("dropping undecodable cache entry", "namespace", ns, "error", err)
		if err := p.store.DeleteNamespace(ctx, ns); err != nil {
			p.logger.Warn("drop cache entry failed", "namespace", ns, "error", err)
		}
	}

	start := time.Now()
	status, body, err := p.source.FetchScan(ctx, station, sweep, scanTime)
	if err != nil {
		return domain.RadarScan{}, err
	}
	p.metrics.ScanFetchDuration.Observe(time.Since(start).Seconds())
	if status != http.StatusOK {
		return domain.RadarScan{}, &domain.FetchError{
			Resource:   domain.ResourceScan,
			Station:    station,
			Sweep:      sweep,
			StatusCode: status,
		}
	}

	if err := p.store.Put(ctx, ns, key, cache.Entry{Status: status, Body: body, StoredAt: p.clock.Now()}); err != nil {
		p.logger.Warn("cache write failed", "namespace", ns, "error", err)
	}

	scan, err := domain.DecodeScan(body)
	if err != nil {
		return domain.RadarScan{}, err
	}
	p.metrics.ScanRequests.WithLabelValues("miss").Inc()
	p.logger.Debug("scan fetched", "station", station, "sweep", sweep, "scan_time", scanTime, "bytes", len(body))
	return scan, nil
}

// evictAsync starts a retention sweep unless one is already running. The
// sweep outlives ctx's cancellation; its errors are logged and dropped.
func (p *Pipeline) evictAsync(ctx context.Context) {
	if p.sweeper == nil || !p.sweeping.CompareAndSwap(false, true) {
		return
	}
	sweepCtx := context.WithoutCancel(ctx)

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		defer p.sweeping.Store(false)

		n, err := p.sweeper.Sweep(sweepCtx)
		if n > 0 {
			p.metrics.CacheEvictions.Add(float64(n))
		}
		if err != nil {
			p.metrics.CacheEvictionError.Inc()
			p.logger.Warn("cache eviction failed", "error", err)
		}
	}()
}

// Wait blocks until any in-flight eviction sweep has finished.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}
