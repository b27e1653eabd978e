package replay

import (
	"testing"

	"tradedb/internal/model"

	"github.com/stretchr/testify/require"
)

func TestBuildGridRetainsOnlyWindowedOrCandleOffsets(t *testing.T) {
	windows := []model.TimePeriod{{Start: 10, Stop: 20, ID: 1}}
	grid := BuildGrid(5000, 60000, windows)

	for _, e := range grid {
		sec := e.OffsetMs / 1000
		inWindow := sec >= 10 && sec <= 20
		require.True(t, inWindow || e.IsCandleBoundary, "offset %dms retained without cause", e.OffsetMs)
	}

	var sawWindow, sawCandle bool
	for _, e := range grid {
		if len(e.PeriodIDs) > 0 {
			sawWindow = true
			require.Equal(t, []int{1}, e.PeriodIDs)
		}
		if e.IsCandleBoundary {
			sawCandle = true
		}
	}
	require.True(t, sawWindow)
	require.True(t, sawCandle)
}

func TestBuildGridSortedAscending(t *testing.T) {
	grid := BuildGrid(1000, 60000, []model.TimePeriod{{Start: 0, Stop: 86399, ID: 1}})
	for i := 1; i < len(grid); i++ {
		require.Less(t, grid[i-1].OffsetMs, grid[i].OffsetMs)
	}
}

func TestStartOfDayMs(t *testing.T) {
	require.Equal(t, int64(0), startOfDayMs(3_600_000))
	require.Equal(t, dayLenMs, startOfDayMs(dayLenMs+1))
}
