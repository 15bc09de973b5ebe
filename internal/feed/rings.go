package feed

import (
	"context"
	"fmt"

	"github.com/couchcryptid/radar-feed/internal/geo"
	geojson "github.com/paulmach/go.geojson"
)

// DefaultRingsKm are the range rings drawn around a WSR-88D site. 230 km is
// the reflectivity coverage limit.
var DefaultRingsKm = []float64{50, 100, 150, 200, 230}

// ringStep is the azimuth spacing, in degrees, of ring vertices.
const ringStep = 2.0

// RangeRings builds closed range rings around the site through the transform
// worker, one LineString feature per radius.
func (f *Feed) RangeRings(ctx context.Context, radiiKm []float64) (*geojson.FeatureCollection, error) {
	grid := ringGrid(f.site.Lon, f.site.Lat, radiiKm)
	res, err := f.transformer.Submit(ctx, grid)
	if err != nil {
		return nil, fmt.Errorf("range rings: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	for j, km := range radiiKm {
		line := make([][]float64, len(grid.Azimuths))
		for i := range grid.Azimuths {
			line[i] = []float64{res.Xlocs[i][j], res.Ylocs[i][j]}
		}
		feat := geojson.NewLineStringFeature(line)
		feat.SetProperty("station", f.site.Station)
		feat.SetProperty("range_km", km)
		fc.AddFeature(feat)
	}
	return fc, nil
}

// ringGrid spans 0..360 degrees inclusive so each ring closes on itself.
func ringGrid(lon, lat float64, radiiKm []float64) geo.Grid {
	n := int(360/ringStep) + 1
	g := geo.Grid{
		Azimuths:  make([]float64, n),
		Ranges:    make([]float64, len(radiiKm)),
		CenterLon: lon,
		CenterLat: lat,
		Data:      make([][]float64, n),
	}
	for i := range g.Azimuths {
		g.Azimuths[i] = float64(i) * ringStep
		g.Data[i] = make([]float64, len(radiiKm))
	}
	for j, km := range radiiKm {
		g.Ranges[j] = km * 1000
	}
	return g
}
