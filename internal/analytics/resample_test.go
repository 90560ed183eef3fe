package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"borsapulse/internal/shared/testutil"
)

func TestResampleWeeklyUsesLastTradingDay(t *testing.T) {
	dates := []time.Time{
		testutil.Day(2024, 1, 1), // Mon, ISO week 1
		testutil.Day(2024, 1, 3),
		testutil.Day(2024, 1, 5), // Fri
		testutil.Day(2024, 1, 8), // Mon, week 2
		testutil.Day(2024, 1, 10),
	}
	closes := []float64{1, 2, 3, 4, 5}

	points := ResampleWeekly(dates, closes)
	require.Len(t, points, 2)
	assert.Equal(t, Point{Date: testutil.Day(2024, 1, 5), Close: 3}, points[0])
	assert.Equal(t, Point{Date: testutil.Day(2024, 1, 10), Close: 5}, points[1])
}

func TestResampleWeeklyAcrossISOYearBoundary(t *testing.T) {
	// 2024-12-30 and 2025-01-02 both fall in ISO week 1 of 2025.
	dates := []time.Time{
		testutil.Day(2024, 12, 27),
		testutil.Day(2024, 12, 30),
		testutil.Day(2025, 1, 2),
	}
	points := ResampleWeekly(dates, []float64{1, 2, 3})

	require.Len(t, points, 2)
	assert.Equal(t, testutil.Day(2024, 12, 27), points[0].Date)
	assert.Equal(t, testutil.Day(2025, 1, 2), points[1].Date)
	assert.Equal(t, 3.0, points[1].Close)
}

func TestResampleMonthly(t *testing.T) {
	dates := []time.Time{
		testutil.Day(2024, 1, 30),
		testutil.Day(2024, 1, 31),
		testutil.Day(2024, 2, 1),
		testutil.Day(2024, 2, 28),
		testutil.Day(2025, 2, 3),
	}
	points := ResampleMonthly(dates, []float64{1, 2, 3, 4, 5})

	require.Len(t, points, 3)
	assert.Equal(t, 2.0, points[0].Close)
	assert.Equal(t, testutil.Day(2024, 2, 28), points[1].Date)
	assert.Equal(t, testutil.Day(2025, 2, 3), points[2].Date)
}

func TestAlignIndexHasNoLookahead(t *testing.T) {
	dates := []time.Time{
		testutil.Day(2024, 1, 1),
		testutil.Day(2024, 1, 5),
		testutil.Day(2024, 1, 8),
		testutil.Day(2024, 1, 12),
	}
	points := ResampleWeekly(dates, []float64{1, 2, 3, 4})

	assert.Equal(t, []int{-1, 0, 0, 1}, alignIndex(dates, points))
}
