package analytics

import (
	"time"
)

// Point is one value of a resampled series, dated at the last trading day
// of its period.
type Point struct {
	Date  time.Time
	Close float64
}

type periodKey struct {
	year, period int
}

// ResampleWeekly keeps the last close of every ISO (year, week).
// dates must be ascending and aligned with closes.
func ResampleWeekly(dates []time.Time, closes []float64) []Point {
	return resample(dates, closes, func(t time.Time) periodKey {
		y, w := t.ISOWeek()
		return periodKey{y, w}
	})
}

// ResampleMonthly keeps the last close of every (year, month).
func ResampleMonthly(dates []time.Time, closes []float64) []Point {
	return resample(dates, closes, func(t time.Time) periodKey {
		return periodKey{t.Year(), int(t.Month())}
	})
}

func resample(dates []time.Time, closes []float64, key func(time.Time) periodKey) []Point {
	var out []Point
	var current periodKey
	for i, d := range dates {
		k := key(d)
		if len(out) > 0 && k == current {
			out[len(out)-1] = Point{Date: d, Close: closes[i]}
			continue
		}
		current = k
		out = append(out, Point{Date: d, Close: closes[i]})
	}
	return out
}

// alignIndex maps every daily date to the latest point dated on or before
// it, or -1 when there is none. Both inputs must be ascending.
func alignIndex(dates []time.Time, points []Point) []int {
	idx := make([]int, len(dates))
	j := -1
	for i, d := range dates {
		for j+1 < len(points) && !points[j+1].Date.After(d) {
			j++
		}
		idx[i] = j
	}
	return idx
}

func closesOf(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}
