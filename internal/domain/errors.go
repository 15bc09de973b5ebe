package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every FetchError via errors.Is.
	ErrFetch = errors.New("radar fetch failed")

	// ErrDecode matches every DecodeError via errors.Is.
	ErrDecode = errors.New("radar scan decode failed")

	// ErrMalformedCacheKey is returned for namespaces that are not scan cache keys.
	ErrMalformedCacheKey = errors.New("malformed cache key")
)

// Fetch resources reported in FetchError.
const (
	ResourceMetadata = "metadata"
	ResourceScan     = "scan"
	ResourceGeoJSON  = "geojson"
)

// FetchError reports a failed request to the radar API. StatusCode is zero
// when the request failed before a response arrived, in which case Err holds
// the transport error.
type FetchError struct {
	Resource   string
	Station    string
	Sweep      int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	target := e.Station
	if e.Resource == ResourceScan {
		target = fmt.Sprintf("%s sweep %d", e.Station, e.Sweep)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s for %s: status %d", e.Resource, target, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s for %s: %v", e.Resource, target, e.Err)
}

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError reports a payload that is not a valid msgpack scan.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode radar scan: %v", e.Err)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }
