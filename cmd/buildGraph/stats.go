package main

import (
	"fmt"
	"sort"
)

// capacityStats holds "5%-avg-min", median, and "5%-avg-max" for one capacity.
type capacityStats struct {
	x        float64 // category index plus offset
	capacity float64
	min      float64 // "average of bottom 5%"
	median   float64
	max      float64 // "average of top 5%"
}

// statsPoints implements XYer and YErrorer for capacityStats, so we can plot lines + error bars.
type statsPoints []capacityStats

func (s statsPoints) Len() int                { return len(s) }
func (s statsPoints) XY(i int) (x, y float64) { return s[i].x, s[i].median }
func (s statsPoints) YError(i int) (low, high float64) {
	low = s[i].median - s[i].min
	high = s[i].max - s[i].median
	return low, high
}

// buildStats computes "average of bottom 5%", median, and "average of top 5%".
func buildStats(capacityMap map[float64][]float64) []capacityStats {
	var out []capacityStats
	for c, vals := range capacityMap {
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		out = append(out, capacityStats{
			x:        c,
			capacity: c,
			min:      averageOfRange(vals, 0.0, 0.05),
			median:   median(vals),
			max:      averageOfRange(vals, 0.95, 1.0),
		})
	}
	return out
}

// averageOfRange returns the average of sortedVals in [startFrac, endFrac] of its length.
// E.g. averageOfRange(vals, 0, 0.05) is the average of the bottom 5%.
func averageOfRange(sortedVals []float64, startFrac, endFrac float64) float64 {
	n := len(sortedVals)
	if n == 0 {
		return 0
	}
	startIndex := int(float64(n) * startFrac)
	endIndex := int(float64(n) * endFrac)
	if endIndex > n {
		endIndex = n
	}
	if startIndex >= endIndex {
		// fallback to median if 5% slice is too small
		return median(sortedVals)
	}
	sum := 0.0
	for i := startIndex; i < endIndex; i++ {
		sum += sortedVals[i]
	}
	return sum / float64(endIndex-startIndex)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// formatNs nicely formats a nanoseconds value in ns, µs, ms, or s.
func formatNs(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.0fns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.1fµs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.1fms", ns/1e6)
	default:
		return fmt.Sprintf("%.2fs", ns/1e9)
	}
}
