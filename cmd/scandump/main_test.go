package main

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodScan() domain.RadarScan {
	return domain.RadarScan{
		Xlocs:     []float64{-97.3, -97.2, -97.1},
		Ylocs:     []float64{35.3, 35.4, 35.5},
		Data:      []float64{12, 47.5, math.NaN()},
		Timestamp: 1714144200000,
	}
}

func TestReport_Text(t *testing.T) {
	var buf bytes.Buffer
	code := report(&buf, "ktlx", 0, goodScan(), false)

	assert.Equal(t, 0, code)
	out := buf.String()
	assert.Contains(t, out, "KTLX sweep 0 @ 2024-04-26T15:10:00Z")
	assert.Contains(t, out, "#f70000")
	assert.Contains(t, out, "array lengths")
	assert.NotContains(t, out, "FAIL")
}

func TestReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	code := report(&buf, "KTLX", 2, goodScan(), true)
	require.Equal(t, 0, code)

	var out struct {
		Event      domain.ScanEvent `json:"event"`
		ColorBands []int            `json:"color_bands"`
		Problems   []string         `json:"problems"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 2, out.Event.Sweep)
	assert.Equal(t, 3, out.Event.Gates)
	assert.Len(t, out.ColorBands, len(domain.ColorBands))
	assert.Empty(t, out.Problems)
}

func TestValidate_Problems(t *testing.T) {
	s := goodScan()
	s.Ylocs = s.Ylocs[:2]
	s.Xlocs[0] = 200
	s.Timestamp = 0

	var buf bytes.Buffer
	code := report(&buf, "KTLX", 0, s, false)
	assert.Equal(t, 1, code)

	phases := validate(s)
	require.Len(t, phases, 3)
	for _, p := range phases {
		assert.False(t, p.passed(), p.name)
	}
}
