// Package domain models NEXRAD radar scans as served by the radar API.
//
// # Scans and Sweeps
//
// A radar volume is a stack of sweeps, one per elevation angle. Sweep 0 is the
// lowest elevation and the one most views display. The server identifies a
// completed volume by its scan timestamp, taken from the NOAA Level II object key
// ("KTLX20240426_151000_V06" -> 2024-04-26T15:10:00Z).
//
// # Timestamps
//
// The metadata endpoint reports scan timestamps in epoch seconds. Scan payloads
// may carry either seconds or milliseconds depending on the server version.
// [RadarScan.Timestamp] is always epoch milliseconds; [NormalizeTimestamp]
// converts at the decode boundary. Cache keys keep the server's seconds value
// because that is what the scan URL expects.
//
// # Cache Keys
//
// Scan payloads are cached per namespace:
//
//	radar-{station}-{sweep}-{scanTime}   e.g. "radar-KTLX-0-1714144200"
//
// Exactly four dash-separated segments. Anything else (GeoJSON overlay
// namespaces such as "geojson-states-1", or truncated keys) is not a scan key
// and is ignored by retention sweeps. See [ParseCacheKey].
//
// # Reflectivity Colours
//
// [ColorMap] maps reflectivity (dBZ) to a packed 0xRRGGBB value using 5 dBZ
// bands with inclusive upper bounds from -30 to 80, plus one open band above 80.
// The bands tile the real line with no gaps, so every value, including NaN and
// the infinities, has exactly one colour.
package domain
