package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/couchcryptid/radar-feed/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSource answers each metadata poll with the next value sent on resp.
type chanSource struct {
	resp chan int64
	err  chan error
}

func newChanSource() *chanSource {
	return &chanSource{resp: make(chan int64), err: make(chan error)}
}

func (c *chanSource) LatestScanTime(ctx context.Context, _ string) (int64, error) {
	select {
	case ts := <-c.resp:
		return ts, nil
	case err := <-c.err:
		return 0, err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) GetScan(_ context.Context, _ string, _ int) (domain.RadarScan, error) {
	f.calls.Add(1)
	return domain.RadarScan{Data: []float64{1, 2}, Timestamp: 200_000}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestNotifier(src MetadataSource, f ScanFetcher) (*Notifier, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC))
	return New(src, f, clk, 5*time.Second, discardLogger(), observability.NewMetricsForTesting()), clk
}

// tick advances the clock past one poll interval once the loop's ticker is armed.
func tick(t *testing.T, clk *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	clk.Advance(5 * time.Second)
}

func TestNotifier_EmitsOnceOnIncrease(t *testing.T) {
	src := newChanSource()
	fetcher := &countingFetcher{}
	n, clk := newTestNotifier(src, fetcher)

	got := make(chan domain.RadarScan, 4)
	sub := n.Start(context.Background(), "KTLX", 0, 100*1000, func(s domain.RadarScan) { got <- s })
	defer sub.Stop()

	// First poll reports the timestamp the caller already has.
	tick(t, clk)
	src.resp <- 100
	assert.Equal(t, int64(100_000), sub.LastKnown())

	// Second poll reports a newer scan.
	tick(t, clk)
	src.resp <- 200

	select {
	case scan := <-got:
		assert.Equal(t, int64(200_000), scan.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("no scan delivered after timestamp increase")
	}
	assert.Equal(t, int64(200_000), sub.LastKnown())

	// Third poll repeats the same timestamp.
	tick(t, clk)
	src.resp <- 200

	sub.Stop()
	assert.Len(t, got, 0)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestNotifier_MillisecondTimestampsCompareDirectly(t *testing.T) {
	src := newChanSource()
	fetcher := &countingFetcher{}
	n, clk := newTestNotifier(src, fetcher)

	got := make(chan domain.RadarScan, 1)
	sub := n.Start(context.Background(), "KTLX", 0, 1714144200000, func(s domain.RadarScan) { got <- s })
	defer sub.Stop()

	tick(t, clk)
	src.resp <- 1714144200000
	tick(t, clk)
	src.resp <- 1714144500

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no scan delivered")
	}
	assert.Equal(t, int64(1714144500000), sub.LastKnown())
}

func TestNotifier_PollErrorKeepsPolling(t *testing.T) {
	src := newChanSource()
	fetcher := &countingFetcher{}
	n, clk := newTestNotifier(src, fetcher)

	got := make(chan domain.RadarScan, 1)
	sub := n.Start(context.Background(), "KTLX", 0, 100*1000, func(s domain.RadarScan) { got <- s })
	defer sub.Stop()

	tick(t, clk)
	src.err <- errors.New("connection refused")
	tick(t, clk)
	src.resp <- 300

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not recover after an error")
	}
}

func TestSubscription_StopEndsLoopAndDetaches(t *testing.T) {
	src := newChanSource()
	n, _ := newTestNotifier(src, &countingFetcher{})

	called := atomic.Bool{}
	sub := n.Start(context.Background(), "KTLX", 0, 0, func(domain.RadarScan) { called.Store(true) })
	sub.Stop()
	sub.Stop()

	select {
	case <-sub.Done():
	default:
		t.Fatal("poll loop still running after Stop")
	}
	sub.deliver(domain.RadarScan{})
	assert.False(t, called.Load())
}

func TestSubscription_ParentContextCancelStopsLoop(t *testing.T) {
	n, _ := newTestNotifier(newChanSource(), &countingFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	sub := n.Start(ctx, "KTLX", 0, 0, func(domain.RadarScan) {})
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop ignored context cancellation")
	}
}
