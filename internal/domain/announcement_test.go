package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScanAnnouncement(t *testing.T) {
	a, err := ParseScanAnnouncement([]byte(`{"station":"ktlx","timestamp":1714144200}`))
	require.NoError(t, err)
	assert.Equal(t, ScanAnnouncement{Station: "KTLX", Timestamp: 1714144200}, a)

	_, err = ParseScanAnnouncement([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseScanAnnouncement([]byte(`{"timestamp":1}`))
	assert.Error(t, err)
}

func TestNewScanEvent(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 12, 0, 0, time.UTC))
	SetClock(fakeClock)
	t.Cleanup(func() {
		SetClock(nil)
	})

	scan := RadarScan{
		Data:      []float64{math.NaN(), 12, 55.5, -10},
		Timestamp: 1714144200000,
	}

	event := NewScanEvent("KTLX", 0, scan)
	assert.Equal(t, "KTLX", event.Station)
	assert.Equal(t, 0, event.Sweep)
	assert.Equal(t, 4, event.Gates)
	assert.InEpsilon(t, 55.5, event.MaxValue, 0.0001)
	assert.Equal(t, time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC), event.ScanTime)
	assert.Equal(t, fakeClock.Now(), event.DetectedAt)
}
