package domain

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// millisThreshold separates second-resolution timestamps from millisecond ones.
// 1e11 seconds is year 5138; 1e11 milliseconds is March 1973.
const millisThreshold = 100_000_000_000

// RadarScan is one decoded sweep of a radar volume. Values are immutable once
// decoded; callers receive copies.
type RadarScan struct {
	Xlocs     []float64 `msgpack:"xlocs" json:"xlocs"`
	Ylocs     []float64 `msgpack:"ylocs" json:"ylocs"`
	Data      []float64 `msgpack:"data" json:"data"`
	Timestamp int64     `msgpack:"timestamp" json:"timestamp"` // epoch milliseconds
}

// Time returns the scan timestamp as a UTC time.
func (s RadarScan) Time() time.Time {
	return time.UnixMilli(s.Timestamp).UTC()
}

// Gates returns the number of samples in the scan.
func (s RadarScan) Gates() int {
	return len(s.Data)
}

// NormalizeTimestamp converts an epoch timestamp in seconds or milliseconds to
// milliseconds.
func NormalizeTimestamp(v int64) int64 {
	if v > -millisThreshold && v < millisThreshold {
		return v * 1000
	}
	return v
}

// DecodeScan deserializes a msgpack-encoded scan payload. The returned scan's
// Timestamp is normalized to milliseconds.
func DecodeScan(payload []byte) (RadarScan, error) {
	if len(payload) == 0 {
		return RadarScan{}, &DecodeError{Err: errors.New("empty payload")}
	}

	var scan RadarScan
	if err := msgpack.NewDecoder(bytes.NewReader(payload)).Decode(&scan); err != nil {
		return RadarScan{}, &DecodeError{Err: err}
	}
	scan.Timestamp = NormalizeTimestamp(scan.Timestamp)
	return scan, nil
}

// EncodeScan serializes a scan with the same layout the server produces.
func EncodeScan(scan RadarScan) ([]byte, error) {
	data, err := msgpack.Marshal(&scan)
	if err != nil {
		return nil, fmt.Errorf("encode scan: %w", err)
	}
	return data, nil
}
