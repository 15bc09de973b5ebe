// Command scandump fetches one radar scan (or reads a msgpack file), checks
// it for structural problems, and prints a colour-band histogram.
//
// Usage:
//
//	go run ./cmd/scandump -url http://localhost:5000 -station KTLX -sweep 0
//	go run ./cmd/scandump -file data/mock/KTLX_0_1714144200.msgpack
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/radar-feed/internal/adapter/radarapi"
	"github.com/couchcryptid/radar-feed/internal/cache"
	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/couchcryptid/radar-feed/internal/observability"
	"github.com/couchcryptid/radar-feed/internal/scan"
)

// phase tracks pass/fail for one validation check.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "radar server base URL")
	station := flag.String("station", "KTLX", "station identifier")
	sweep := flag.Int("sweep", 0, "sweep index")
	file := flag.String("file", "", "decode a local msgpack scan instead of fetching")
	timeout := flag.Duration("timeout", 30*time.Second, "overall fetch timeout")
	asJSON := flag.Bool("json", false, "print the scan summary as JSON")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	s, err := load(ctx, *baseURL, strings.ToUpper(*station), *sweep, *file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	os.Exit(report(os.Stdout, *station, *sweep, s, *asJSON))
}

func load(ctx context.Context, baseURL, station string, sweep int, file string) (domain.RadarScan, error) {
	if file != "" {
		payload, err := os.ReadFile(file)
		if err != nil {
			return domain.RadarScan{}, err
		}
		return domain.DecodeScan(payload)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	api := radarapi.NewClient(baseURL, 0, logger)
	p := scan.New(api, cache.NewMemoryStore(1), nil, logger, observability.NewMetricsForTesting())
	return p.GetScan(ctx, station, sweep)
}

// report prints the summary and returns the process exit code.
func report(w io.Writer, station string, sweep int, s domain.RadarScan, asJSON bool) int {
	phases := validate(s)
	event := domain.NewScanEvent(strings.ToUpper(station), sweep, s)
	counts := domain.BandHistogram(s.Data)

	if asJSON {
		out := struct {
			Event      domain.ScanEvent `json:"event"`
			ColorBands []int            `json:"color_bands"`
			Problems   []string         `json:"problems,omitempty"`
		}{Event: event, ColorBands: counts}
		for _, p := range phases {
			for _, e := range p.errors {
				out.Problems = append(out.Problems, p.name+": "+e)
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return 1
		}
	} else {
		fmt.Fprintf(w, "=== %s sweep %d @ %s ===\n\n", event.Station, sweep, event.ScanTime.Format(time.RFC3339))
		fmt.Fprintf(w, "gates: %d  max: %.1f\n\n", event.Gates, event.MaxValue)
		printHistogram(w, counts)
		fmt.Fprintln(w)
		for _, p := range phases {
			status := "PASS"
			if !p.passed() {
				status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			}
			fmt.Fprintf(w, "  %-28s %s\n", p.name, status)
			for _, e := range p.errors {
				fmt.Fprintf(w, "    - %s\n", e)
			}
		}
	}

	for _, p := range phases {
		if !p.passed() {
			return 1
		}
	}
	return 0
}

func printHistogram(w io.Writer, counts []int) {
	total := 0
	for _, c := range counts {
		total += c
	}
	for i, b := range domain.ColorBands {
		if counts[i] == 0 {
			continue
		}
		label := fmt.Sprintf("<= %.0f", b.Upper)
		if math.IsInf(b.Upper, 1) {
			label = fmt.Sprintf("> %.0f", domain.ColorBands[i-1].Upper)
		}
		pct := 100 * float64(counts[i]) / float64(total)
		fmt.Fprintf(w, "  %-8s #%06x %8d %5.1f%% %s\n", label, b.Color, counts[i], pct, strings.Repeat("#", int(pct/2)))
	}
}

// maxErrors caps per-phase error lists.
const maxErrors = 10

func validate(s domain.RadarScan) []*phase {
	shape := &phase{name: "array lengths"}
	if len(s.Xlocs) != len(s.Data) || len(s.Ylocs) != len(s.Data) {
		shape.errorf("xlocs=%d ylocs=%d data=%d", len(s.Xlocs), len(s.Ylocs), len(s.Data))
	}
	if len(s.Data) == 0 {
		shape.errorf("scan has no gates")
	}

	coords := &phase{name: "coordinates in range"}
	for i := 0; i < min(len(s.Xlocs), len(s.Ylocs)); i++ {
		if len(coords.errors) >= maxErrors {
			break
		}
		lon, lat := s.Xlocs[i], s.Ylocs[i]
		if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			coords.errorf("gate %d at (%v, %v)", i, lon, lat)
		}
	}

	stamp := &phase{name: "timestamp"}
	if s.Timestamp <= 0 {
		stamp.errorf("missing timestamp")
	} else if s.Time().After(time.Now().Add(time.Hour)) {
		stamp.errorf("timestamp %s is in the future", s.Time().Format(time.RFC3339))
	}

	return []*phase{shape, coords, stamp}
}
