package geo

import (
	"math"

	"github.com/tidwall/geodesic"
)

// Model solves the forward geodesic problem: the point reached by travelling
// distance metres from (lon, lat) along the initial bearing, in degrees
// clockwise from true north.
type Model interface {
	Destination(lon, lat, bearing, distance float64) (float64, float64)
}

// MeanEarthRadius is the IUGG mean radius in metres.
const MeanEarthRadius = 6371008.8

// Sphere is a spherical earth model.
type Sphere struct {
	Radius float64
	solver *geodesic.Ellipsoid
}

// NewSphere returns a sphere of the given radius in metres.
func NewSphere(radius float64) Sphere {
	return Sphere{Radius: radius, solver: geodesic.NewSpherical(radius)}
}

// DefaultSphere uses the mean earth radius.
var DefaultSphere = NewSphere(MeanEarthRadius)

// Destination follows a great circle.
func (s Sphere) Destination(lon, lat, bearing, distance float64) (float64, float64) {
	return direct(s.solver, lon, lat, bearing, distance)
}

// Ellipsoid is an oblate ellipsoid earth model solved with Karney's geodesic algorithm.
type Ellipsoid struct {
	A      float64 // semi-major axis, metres
	F      float64 // flattening
	solver *geodesic.Ellipsoid
}

// NewEllipsoid returns an ellipsoid with semi-major axis a and flattening f.
func NewEllipsoid(a, f float64) Ellipsoid {
	return Ellipsoid{A: a, F: f, solver: geodesic.NewEllipsoid(a, f)}
}

// WGS84 is the GPS reference ellipsoid.
var WGS84 = Ellipsoid{A: 6378137, F: 1 / 298.257223563, solver: geodesic.WGS84}

// Destination follows a geodesic on the ellipsoid.
func (e Ellipsoid) Destination(lon, lat, bearing, distance float64) (float64, float64) {
	return direct(e.solver, lon, lat, bearing, distance)
}

func direct(solver *geodesic.Ellipsoid, lon, lat, bearing, distance float64) (float64, float64) {
	if distance == 0 {
		return lon, lat
	}
	var lat2, lon2 float64
	solver.Direct(lat, lon, bearing, distance, &lat2, &lon2, nil)
	return normalizeLon(lon2), lat2
}

// normalizeLon wraps a longitude into [-180, 180).
func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// ModelByName returns the model for a GEODESIC_MODEL value, defaulting to the sphere.
func ModelByName(name string) Model {
	if name == "wgs84" {
		return WGS84
	}
	return DefaultSphere
}
