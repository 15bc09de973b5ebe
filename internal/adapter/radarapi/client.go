package radarapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/radar-feed/internal/domain"
)

// maxBodyBytes caps scan and overlay downloads.
const maxBodyBytes = 64 << 20

// Client talks to the radar API server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a radar API client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// LatestScanTime returns the timestamp, in epoch seconds, of the most recent
// completed scan for station. It is never cached.
func (c *Client) LatestScanTime(ctx context.Context, station string) (int64, error) {
	u := fmt.Sprintf("%s/api/radar/%s/scan/0", c.baseURL, url.PathEscape(station))

	resp, err := c.get(ctx, u)
	if err != nil {
		return 0, &domain.FetchError{Resource: domain.ResourceMetadata, Station: station, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return 0, &domain.FetchError{Resource: domain.ResourceMetadata, Station: station, StatusCode: resp.StatusCode}
	}

	var meta scanMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return 0, &domain.FetchError{
			Resource: domain.ResourceMetadata,
			Station:  station,
			Err:      fmt.Errorf("decode response: %w", err),
		}
	}
	return int64(meta.Timestamp), nil
}

// ScanPath is the request path for a scan body. It doubles as the cache
// entry key within a scan namespace.
func ScanPath(station string, sweep int, scanTime int64) string {
	return fmt.Sprintf("/api/radar/%s/%d/%d", url.PathEscape(station), sweep, scanTime)
}

// FetchScan downloads the msgpack body for one sweep. Non-200 responses are
// returned with their status so the caller can decide how to report them;
// only transport failures produce an error.
func (c *Client) FetchScan(ctx context.Context, station string, sweep int, scanTime int64) (int, []byte, error) {
	status, body, err := c.fetchBytes(ctx, c.baseURL+ScanPath(station, sweep, scanTime))
	if err != nil {
		return 0, nil, &domain.FetchError{Resource: domain.ResourceScan, Station: station, Sweep: sweep, Err: err}
	}
	return status, body, nil
}

// GeoJSONPath is the request path for a static overlay layer.
func GeoJSONPath(name string, version int) string {
	return fmt.Sprintf("/api/geojson/%s/%d", url.PathEscape(name), version)
}

// FetchGeoJSON downloads a static overlay layer. Like FetchScan, it only
// errors on transport failures.
func (c *Client) FetchGeoJSON(ctx context.Context, name string, version int) (int, []byte, error) {
	status, body, err := c.fetchBytes(ctx, c.baseURL+GeoJSONPath(name, version))
	if err != nil {
		return 0, nil, &domain.FetchError{Resource: domain.ResourceGeoJSON, Station: name, Err: err}
	}
	return status, body, nil
}

func (c *Client) fetchBytes(ctx context.Context, fullURL string) (int, []byte, error) {
	resp, err := c.get(ctx, fullURL)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) get(ctx context.Context, fullURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("radar api request",
		"url", fullURL,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 4096))
}

// Radar API response types.

type scanMetadata struct {
	Timestamp float64 `json:"timestamp"` // epoch seconds
}
