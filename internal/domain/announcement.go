package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ScanAnnouncement is the JSON message the server pushes over the live channel
// when a station completes a new volume.
type ScanAnnouncement struct {
	Station   string `json:"station"`
	Timestamp int64  `json:"timestamp"` // epoch seconds
}

// ParseScanAnnouncement decodes a live-channel message.
func ParseScanAnnouncement(data []byte) (ScanAnnouncement, error) {
	var a ScanAnnouncement
	if err := json.Unmarshal(data, &a); err != nil {
		return ScanAnnouncement{}, fmt.Errorf("parse scan announcement: %w", err)
	}
	if a.Station == "" {
		return ScanAnnouncement{}, errors.New("parse scan announcement: missing station")
	}
	a.Station = strings.ToUpper(a.Station)
	return a, nil
}

// ScanEvent records a newly available scan for downstream consumers.
type ScanEvent struct {
	Station    string    `json:"station"`
	Sweep      int       `json:"sweep"`
	ScanTime   time.Time `json:"scan_time"`
	Gates      int       `json:"gates"`
	MaxValue   float64   `json:"max_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// NewScanEvent summarizes a decoded scan. MaxValue ignores NaN samples.
func NewScanEvent(station string, sweep int, scan RadarScan) ScanEvent {
	maxValue := 0.0
	seen := false
	for _, v := range scan.Data {
		if math.IsNaN(v) {
			continue
		}
		if !seen || v > maxValue {
			maxValue = v
			seen = true
		}
	}
	return ScanEvent{
		Station:    station,
		Sweep:      sweep,
		ScanTime:   scan.Time(),
		Gates:      scan.Gates(),
		MaxValue:   maxValue,
		DetectedAt: clock.Now().UTC(),
	}
}
