// Package feed ties the live scan sources together for one station. New
// scans can arrive from the notifier's poll loop or from live-channel
// announcements; Feed accepts each scan time once and publishes it.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/couchcryptid/radar-feed/internal/geo"
)

// publishTimeout bounds a single event publish.
const publishTimeout = 5 * time.Second

// ScanGetter loads the latest scan for a station and sweep.
type ScanGetter interface {
	GetScan(ctx context.Context, station string, sweep int) (domain.RadarScan, error)
}

// Transformer places polar grids on the map.
type Transformer interface {
	Submit(ctx context.Context, g geo.Grid) (geo.Result, error)
}

// Publisher forwards scan events downstream.
type Publisher interface {
	Publish(ctx context.Context, event domain.ScanEvent) error
}

// Site is the watched station and its location.
type Site struct {
	Station string
	Sweep   int
	Lon     float64
	Lat     float64
}

// Feed tracks the newest scan for one site.
type Feed struct {
	site        Site
	scans       ScanGetter
	transformer Transformer
	publisher   Publisher
	logger      *slog.Logger

	mu     sync.RWMutex
	last   *domain.ScanEvent
	bands  []int
	socket func() string
	closed bool // set by Close; guards fetches.Add

	fetches sync.WaitGroup
}

// New creates a Feed. publisher may be nil.
func New(site Site, scans ScanGetter, transformer Transformer, publisher Publisher, logger *slog.Logger) *Feed {
	return &Feed{
		site:        site,
		scans:       scans,
		transformer: transformer,
		publisher:   publisher,
		logger:      logger.With("station", site.Station, "sweep", site.Sweep),
	}
}

// SetSocketState registers a reporter for the live-channel state shown by Status.
func (f *Feed) SetSocketState(fn func() string) {
	f.mu.Lock()
	f.socket = fn
	f.mu.Unlock()
}

// LastScanMillis returns the newest accepted scan time in epoch milliseconds,
// or zero before the first scan.
func (f *Feed) LastScanMillis() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.last == nil {
		return 0
	}
	return f.last.ScanTime.UnixMilli()
}

// HandleScan accepts scan if it is newer than the last one seen and publishes
// a ScanEvent for it. It reports whether the scan was accepted.
func (f *Feed) HandleScan(ctx context.Context, scan domain.RadarScan) bool {
	event := domain.NewScanEvent(f.site.Station, f.site.Sweep, scan)

	f.mu.Lock()
	if f.last != nil && !event.ScanTime.After(f.last.ScanTime) {
		f.mu.Unlock()
		return false
	}
	f.last = &event
	f.bands = domain.BandHistogram(scan.Data)
	f.mu.Unlock()

	f.logger.Info("scan accepted",
		"scan_time", event.ScanTime,
		"gates", event.Gates,
		"max_value", event.MaxValue,
	)

	if f.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := f.publisher.Publish(pubCtx, event); err != nil {
			f.logger.Error("publish scan event failed", "error", err)
		}
	}
	return true
}

// HandleMessage is the live-channel message handler. Announcements for the
// watched station with a newer timestamp trigger a scan fetch on a separate
// goroutine; anything else is ignored.
func (f *Feed) HandleMessage(ctx context.Context, msg []byte) {
	ann, err := domain.ParseScanAnnouncement(msg)
	if err != nil {
		f.logger.Debug("ignoring live-channel message", "error", err)
		return
	}
	if ann.Station != f.site.Station {
		return
	}
	if domain.NormalizeTimestamp(ann.Timestamp) <= f.LastScanMillis() {
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.fetches.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.fetches.Done()
		scan, err := f.scans.GetScan(ctx, f.site.Station, f.site.Sweep)
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Warn("fetch announced scan failed", "error", err)
			}
			return
		}
		f.HandleScan(ctx, scan)
	}()
}

// Close stops HandleMessage from starting new fetches and blocks until the
// ones already running have finished.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.fetches.Wait()
}

// Status is a snapshot of the feed for the HTTP status endpoint.
type Status struct {
	Station    string            `json:"station"`
	Sweep      int               `json:"sweep"`
	Socket     string            `json:"socket,omitempty"`
	LastScan   *domain.ScanEvent `json:"last_scan,omitempty"`
	ColorBands []int             `json:"color_bands,omitempty"`
}

// Status returns the current snapshot.
func (f *Feed) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st := Status{Station: f.site.Station, Sweep: f.site.Sweep}
	if f.socket != nil {
		st.Socket = f.socket()
	}
	if f.last != nil {
		ev := *f.last
		st.LastScan = &ev
		st.ColorBands = append([]int(nil), f.bands...)
	}
	return st
}
