package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScanKeyPrefix is the namespace prefix for cached scan payloads.
const ScanKeyPrefix = "radar"

// CacheKey identifies one cached scan payload.
type CacheKey struct {
	Prefix   string
	Station  string
	Sweep    int
	ScanTime int64 // epoch seconds, as reported by the metadata endpoint
}

// NewScanKey builds the cache key for a station, sweep and scan time.
func NewScanKey(station string, sweep int, scanTime int64) CacheKey {
	return CacheKey{Prefix: ScanKeyPrefix, Station: station, Sweep: sweep, ScanTime: scanTime}
}

// String renders the key as {prefix}-{station}-{sweep}-{scanTime}.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s-%s-%d-%d", k.Prefix, k.Station, k.Sweep, k.ScanTime)
}

// ScanTimeAsTime returns the scan time as a UTC time.
func (k CacheKey) ScanTimeAsTime() time.Time {
	return time.Unix(k.ScanTime, 0).UTC()
}

// ExpiredAt reports whether the key's scan time is older than now minus retention.
func (k CacheKey) ExpiredAt(now time.Time, retention time.Duration) bool {
	return k.ScanTime < now.Add(-retention).Unix()
}

// ParseCacheKey parses a namespace of the form prefix-station-sweep-scanTime.
// Keys with a different segment count or non-integer sweep/scanTime return
// ErrMalformedCacheKey.
func ParseCacheKey(s string) (CacheKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return CacheKey{}, fmt.Errorf("%w: %q has %d segments", ErrMalformedCacheKey, s, len(parts))
	}
	sweep, err := strconv.Atoi(parts[2])
	if err != nil {
		return CacheKey{}, fmt.Errorf("%w: %q sweep: %v", ErrMalformedCacheKey, s, err)
	}
	scanTime, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return CacheKey{}, fmt.Errorf("%w: %q scan time: %v", ErrMalformedCacheKey, s, err)
	}
	return CacheKey{Prefix: parts[0], Station: parts[1], Sweep: sweep, ScanTime: scanTime}, nil
}
