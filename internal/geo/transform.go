package geo

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when the data grid does not match the
// azimuth and range axes.
var ErrShapeMismatch = errors.New("grid shape mismatch")

// Grid is a polar sample grid around a radar site. Data is indexed
// [azimuth][range].
type Grid struct {
	Azimuths  []float64   `json:"azimuths"` // degrees clockwise from north
	Ranges    []float64   `json:"ranges"`   // metres from the site
	CenterLon float64     `json:"center_lon"`
	CenterLat float64     `json:"center_lat"`
	Data      [][]float64 `json:"data"`
}

// Result holds geographic coordinates aligned index-for-index with the grid.
type Result struct {
	Xlocs [][]float64 `json:"xlocs"` // longitudes
	Ylocs [][]float64 `json:"ylocs"` // latitudes
	Data  [][]float64 `json:"data"`
}

// Validate checks that Data is len(Azimuths) rows of len(Ranges) samples.
func (g Grid) Validate() error {
	if len(g.Data) != len(g.Azimuths) {
		return fmt.Errorf("%w: %d data rows for %d azimuths", ErrShapeMismatch, len(g.Data), len(g.Azimuths))
	}
	for i, row := range g.Data {
		if len(row) != len(g.Ranges) {
			return fmt.Errorf("%w: row %d has %d samples for %d ranges", ErrShapeMismatch, i, len(row), len(g.Ranges))
		}
	}
	return nil
}

// Points returns the number of cells in the grid.
func (g Grid) Points() int {
	return len(g.Azimuths) * len(g.Ranges)
}

// Transform places every (azimuth, range) cell on the map. Data is passed
// through untouched. A malformed grid fails before any output is built.
func Transform(g Grid, m Model) (Result, error) {
	if err := g.Validate(); err != nil {
		return Result{}, err
	}

	n, k := len(g.Azimuths), len(g.Ranges)
	xlocs := make([][]float64, n)
	ylocs := make([][]float64, n)
	// Rows share one backing array per axis.
	xs := make([]float64, n*k)
	ys := make([]float64, n*k)

	for i, az := range g.Azimuths {
		xlocs[i] = xs[i*k : (i+1)*k : (i+1)*k]
		ylocs[i] = ys[i*k : (i+1)*k : (i+1)*k]
		for j, rng := range g.Ranges {
			xlocs[i][j], ylocs[i][j] = m.Destination(g.CenterLon, g.CenterLat, az, rng)
		}
	}

	return Result{Xlocs: xlocs, Ylocs: ylocs, Data: g.Data}, nil
}
