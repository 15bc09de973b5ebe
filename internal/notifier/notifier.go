// Package notifier polls the radar API for new scan timestamps and delivers
// the fresh scan to subscribers.
package notifier

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/couchcryptid/radar-feed/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the poll period used when none is configured.
const DefaultInterval = 5 * time.Second

// MetadataSource reports the latest scan timestamp for a station.
type MetadataSource interface {
	LatestScanTime(ctx context.Context, station string) (int64, error)
}

// ScanFetcher loads the latest scan for a station and sweep.
type ScanFetcher interface {
	GetScan(ctx context.Context, station string, sweep int) (domain.RadarScan, error)
}

// Callback receives each newly detected scan. Overlapping fetches may deliver
// out of order; the last call wins.
type Callback func(domain.RadarScan)

// Notifier starts poll loops. It holds no per-subscription state and may be
// shared.
type Notifier struct {
	source   MetadataSource
	fetcher  ScanFetcher
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Notifier. A nil clock uses real time; a non-positive interval
// uses DefaultInterval.
func New(source MetadataSource, fetcher ScanFetcher, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Notifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Notifier{
		source:   source,
		fetcher:  fetcher,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Subscription is one running poll loop. Stop ends it.
type Subscription struct {
	station string
	sweep   int

	lastKnown atomic.Int64
	mu        sync.Mutex
	cb        Callback

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start begins polling station every interval. lastKnownMillis is the
// timestamp, in epoch milliseconds, of the scan the caller already has. The
// loop runs until Stop is called or ctx is cancelled.
func (n *Notifier) Start(ctx context.Context, station string, sweep int, lastKnownMillis int64, cb Callback) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		station: station,
		sweep:   sweep,
		cb:      cb,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.lastKnown.Store(lastKnownMillis)

	go n.run(ctx, s)
	return s
}

func (n *Notifier) run(ctx context.Context, s *Subscription) {
	defer close(s.done)

	ticker := n.clock.NewTicker(n.interval)
	defer ticker.Stop()

	n.logger.Info("scan notifier started", "station", s.station, "sweep", s.sweep, "interval", n.interval)
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("scan notifier stopped", "station", s.station, "sweep", s.sweep)
			return
		case <-ticker.Chan():
			n.poll(ctx, s)
		}
	}
}

// poll checks the metadata endpoint once and, on a strictly newer timestamp,
// fetches the scan on its own goroutine so a slow body download never delays
// the next poll.
func (n *Notifier) poll(ctx context.Context, s *Subscription) {
	ts, err := n.source.LatestScanTime(ctx, s.station)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		n.metrics.NotifierPolls.WithLabelValues("error").Inc()
		n.logger.Warn("latest scan poll failed", "station", s.station, "error", err)
		return
	}

	ms := domain.NormalizeTimestamp(ts)
	if ms <= s.lastKnown.Load() {
		n.metrics.NotifierPolls.WithLabelValues("unchanged").Inc()
		return
	}
	s.lastKnown.Store(ms)
	n.metrics.NotifierPolls.WithLabelValues("new").Inc()
	n.metrics.NewScans.Inc()
	n.logger.Info("new scan detected", "station", s.station, "scan_time", time.UnixMilli(ms).UTC())

	go func() {
		scan, err := n.fetcher.GetScan(ctx, s.station, s.sweep)
		if err != nil {
			if ctx.Err() == nil {
				n.logger.Warn("fetch new scan failed", "station", s.station, "sweep", s.sweep, "error", err)
			}
			return
		}
		s.deliver(scan)
	}()
}

func (s *Subscription) deliver(scan domain.RadarScan) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb != nil {
		cb(scan)
	}
}

// LastKnown returns the newest timestamp seen, in epoch milliseconds.
func (s *Subscription) LastKnown() int64 {
	return s.lastKnown.Load()
}

// Done is closed when the poll loop has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Stop detaches the callback and stops the poll loop. It blocks until the
// loop has exited and is safe to call more than once. Fetches still in
// flight are cancelled.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		s.mu.Lock()
		s.cb = nil
		s.mu.Unlock()
		s.cancel()
	})
	<-s.done
}
