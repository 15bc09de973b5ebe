//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/radar-feed/internal/adapter/kafka"
	"github.com/couchcryptid/radar-feed/internal/adapter/radarapi"
	"github.com/couchcryptid/radar-feed/internal/cache"
	"github.com/couchcryptid/radar-feed/internal/config"
	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/couchcryptid/radar-feed/internal/feed"
	"github.com/couchcryptid/radar-feed/internal/notifier"
	"github.com/couchcryptid/radar-feed/internal/observability"
	"github.com/couchcryptid/radar-feed/internal/scan"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testScanTopic = "test-radar-scans"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("radar-feed-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// radarServer serves a metadata timestamp that the test can bump and a fixed
// msgpack body for every scan.
type radarServer struct {
	timestamp atomic.Int64
	bodies    atomic.Int32
}

func (rs *radarServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/radar/{station}/scan/0", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"timestamp": %d}`, rs.timestamp.Load())
	})
	mux.HandleFunc("GET /api/radar/{station}/{sweep}/{ts}", func(w http.ResponseWriter, r *http.Request) {
		ts, err := strconv.ParseInt(r.PathValue("ts"), 10, 64)
		if err != nil {
			http.Error(w, "bad timestamp", http.StatusBadRequest)
			return
		}
		rs.bodies.Add(1)
		body, err := domain.EncodeScan(domain.RadarScan{
			Xlocs:     []float64{-97.3, -97.2},
			Ylocs:     []float64{35.3, 35.4},
			Data:      []float64{22.5, 58},
			Timestamp: ts,
		})
		assert.NoError(t, err)
		w.Header().Set("Content-Type", "application/msgpack")
		_, _ = w.Write(body)
	})
	return mux
}

// TestNewScanIsPublished wires the notifier, scan pipeline, feed and Kafka
// writer against a fake radar server and a real broker.
func TestNewScanIsPublished(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testScanTopic)

	rs := &radarServer{}
	rs.timestamp.Store(1714144200)
	srv := httptest.NewServer(rs.handler(t))
	t.Cleanup(srv.Close)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaScanTopic: testScanTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	store := cache.NewMemoryStore(16)
	api := radarapi.NewClient(srv.URL, 5*time.Second, discardLogger())
	scans := scan.New(api, store, cache.NewEvictor(store, time.Hour, nil, discardLogger()), discardLogger(), metrics)
	f := feed.New(feed.Site{Station: "KTLX", Lon: -97.2778, Lat: 35.3331}, scans, nil, writer, discardLogger())

	first, err := scans.GetScan(ctx, "KTLX", 0)
	require.NoError(t, err)
	require.True(t, f.HandleScan(ctx, first))

	n := notifier.New(api, scans, nil, 200*time.Millisecond, discardLogger(), metrics)
	sub := n.Start(ctx, "KTLX", 0, f.LastScanMillis(), func(s domain.RadarScan) { f.HandleScan(ctx, s) })
	t.Cleanup(sub.Stop)

	rs.timestamp.Store(1714144500)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testScanTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	var events []domain.ScanEvent
	for len(events) < 2 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read scan event")

		assert.Equal(t, "KTLX", string(msg.Key))
		var ev domain.ScanEvent
		require.NoError(t, json.Unmarshal(msg.Value, &ev))
		events = append(events, ev)
	}

	assert.Equal(t, time.Unix(1714144200, 0).UTC(), events[0].ScanTime)
	assert.Equal(t, time.Unix(1714144500, 0).UTC(), events[1].ScanTime)
	assert.InDelta(t, 58, events[1].MaxValue, 1e-9)
	assert.Equal(t, int32(2), rs.bodies.Load(), "each scan body is downloaded once")
}
