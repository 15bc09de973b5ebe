package domain

import "math"

// ColorBand is one reflectivity band. A value belongs to the first band whose
// Upper bound it does not exceed.
type ColorBand struct {
	Upper float64 // inclusive; +Inf for the last band
	Color uint32  // 0xRRGGBB
}

// ColorBands lists the reflectivity bands in ascending order.
var ColorBands = []ColorBand{
	{-30, 0x764fab},
	{-25, 0x7c689a},
	{-20, 0x86818e},
	{-15, 0xaeaea3},
	{-10, 0xcccc99},
	{-5, 0x9ba1a6},
	{0, 0x77819d},
	{5, 0x5a6c9f},
	{10, 0x405aa0},
	{15, 0x419b96},
	{20, 0x40d38d},
	{25, 0x20af45},
	{30, 0x018d01},
	{35, 0x83b100},
	{40, 0xeed000},
	{45, 0xf6ad00},
	{50, 0xf70000},
	{55, 0xdf0000},
	{60, 0xffc9ff},
	{65, 0xffabfb},
	{70, 0xad00ff},
	{75, 0xa200f9},
	{80, 0x00e1ec},
	{math.Inf(1), 0x3333cc},
}

// BandIndex returns the index into ColorBands for v. NaN maps to the last band.
func BandIndex(v float64) int {
	for i, b := range ColorBands {
		if v <= b.Upper {
			return i
		}
	}
	return len(ColorBands) - 1
}

// ColorMap returns the packed RGB colour for a reflectivity value.
func ColorMap(v float64) uint32 {
	return ColorBands[BandIndex(v)].Color
}

// BandHistogram counts samples per entry of ColorBands. NaN samples, which
// the server uses for gates with no return, are not counted.
func BandHistogram(data []float64) []int {
	counts := make([]int, len(ColorBands))
	for _, v := range data {
		if math.IsNaN(v) {
			continue
		}
		counts[BandIndex(v)]++
	}
	return counts
}
