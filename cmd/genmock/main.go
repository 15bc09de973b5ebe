// Command genmock writes a synthetic msgpack radar scan for local testing.
// It places a few reflectivity cells on a polar grid around the site, maps
// every gate to lon/lat with the same transform the client uses, and writes
// the payload in the layout the radar server produces.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/KTLX_0_1714144200.msgpack \
//	  -event-out data/mock/KTLX_0_1714144200.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/couchcryptid/radar-feed/internal/geo"
	"github.com/jonboulle/clockwork"
)

var baseTime = time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)

// cell is a Gaussian reflectivity blob.
type cell struct {
	azimuth float64 // degrees
	rangeKm float64
	peakDBZ float64
	sigmaKm float64
}

var cells = []cell{
	{azimuth: 225, rangeKm: 80, peakDBZ: 62, sigmaKm: 12},
	{azimuth: 40, rangeKm: 150, peakDBZ: 48, sigmaKm: 25},
	{azimuth: 310, rangeKm: 40, peakDBZ: 35, sigmaKm: 8},
}

// params describes the synthetic sweep.
type params struct {
	lon, lat    float64
	azimuths    int
	gates       int
	gateSpacing float64 // metres
	model       geo.Model
	scanTime    time.Time
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the msgpack scan")
	eventOut := flag.String("event-out", "", "optional output path for the matching scan event JSON")
	station := flag.String("station", "KTLX", "station identifier")
	lon := flag.Float64("lon", -97.2778, "site longitude")
	lat := flag.Float64("lat", 35.3331, "site latitude")
	azimuths := flag.Int("azimuths", 360, "number of radials")
	gates := flag.Int("gates", 230, "gates per radial")
	spacing := flag.Float64("gate-spacing", 1000, "gate spacing in metres")
	model := flag.String("model", "sphere", "geodesic model: sphere or wgs84")
	scanTime := flag.String("time", baseTime.Format(time.RFC3339), "scan time (RFC3339)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	ts, err := time.Parse(time.RFC3339, *scanTime)
	if err != nil {
		return fmt.Errorf("parse -time: %w", err)
	}

	p := params{
		lon:         *lon,
		lat:         *lat,
		azimuths:    *azimuths,
		gates:       *gates,
		gateSpacing: *spacing,
		model:       geo.ModelByName(*model),
		scanTime:    ts,
	}
	scan, err := synthScan(p)
	if err != nil {
		return err
	}

	payload, err := domain.EncodeScan(scan)
	if err != nil {
		return err
	}
	if err := writeFile(*out, payload); err != nil {
		return fmt.Errorf("writing scan: %w", err)
	}
	log.Printf("wrote %d gates (%d bytes): %s", scan.Gates(), len(payload), *out)

	if *eventOut != "" {
		// Fixed clock for a reproducible detected_at.
		domain.SetClock(clockwork.NewFakeClockAt(ts.Add(30 * time.Second)))
		defer domain.SetClock(nil)

		data, err := json.MarshalIndent(domain.NewScanEvent(*station, 0, scan), "", "  ")
		if err != nil {
			return err
		}
		if err := writeFile(*eventOut, append(data, '\n')); err != nil {
			return fmt.Errorf("writing event: %w", err)
		}
		log.Printf("wrote scan event: %s", *eventOut)
	}
	return nil
}

// synthScan builds a flattened scan: gate (i, j) sits at index i*gates+j.
func synthScan(p params) (domain.RadarScan, error) {
	grid := geo.Grid{
		Azimuths:  make([]float64, p.azimuths),
		Ranges:    make([]float64, p.gates),
		CenterLon: p.lon,
		CenterLat: p.lat,
		Data:      make([][]float64, p.azimuths),
	}
	step := 360 / float64(p.azimuths)
	for i := range grid.Azimuths {
		grid.Azimuths[i] = float64(i) * step
	}
	for j := range grid.Ranges {
		grid.Ranges[j] = float64(j+1) * p.gateSpacing
	}
	for i, az := range grid.Azimuths {
		row := make([]float64, p.gates)
		for j, rng := range grid.Ranges {
			row[j] = reflectivity(az, rng/1000)
		}
		grid.Data[i] = row
	}

	res, err := geo.Transform(grid, p.model)
	if err != nil {
		return domain.RadarScan{}, err
	}

	n := p.azimuths * p.gates
	scan := domain.RadarScan{
		Xlocs:     make([]float64, 0, n),
		Ylocs:     make([]float64, 0, n),
		Data:      make([]float64, 0, n),
		Timestamp: p.scanTime.Unix(),
	}
	for i := range res.Xlocs {
		scan.Xlocs = append(scan.Xlocs, res.Xlocs[i]...)
		scan.Ylocs = append(scan.Ylocs, res.Ylocs[i]...)
		scan.Data = append(scan.Data, res.Data[i]...)
	}
	return scan, nil
}

// reflectivity sums the cells at a polar position. Gates under 5 dBZ are
// reported as NaN, the server's marker for no return.
func reflectivity(azimuth, rangeKm float64) float64 {
	x, y := polarXY(azimuth, rangeKm)
	total := 0.0
	for _, c := range cells {
		cx, cy := polarXY(c.azimuth, c.rangeKm)
		d2 := (x-cx)*(x-cx) + (y-cy)*(y-cy)
		total = math.Max(total, c.peakDBZ*math.Exp(-d2/(2*c.sigmaKm*c.sigmaKm)))
	}
	if total < 5 {
		return math.NaN()
	}
	return math.Round(total*2) / 2
}

func polarXY(azimuth, rangeKm float64) (float64, float64) {
	rad := azimuth * math.Pi / 180
	return rangeKm * math.Sin(rad), rangeKm * math.Cos(rad)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
