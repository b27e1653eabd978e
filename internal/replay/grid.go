package replay

import (
	"sort"

	"tradedb/internal/model"
)

const dayLenMs = int64(model.SecondsPerDay) * 1000

// GridEntry is one retained intra-day offset (spec §4.8 "Time grid").
type GridEntry struct {
	OffsetMs         int64
	PeriodIDs        []int
	IsCandleBoundary bool
}

// BuildGrid precomputes the sorted set of intra-day offsets at which an
// event fires: every tick-period multiple, every timeframe multiple
// (candle boundary), retaining only offsets inside >=1 trade window or
// that are candle boundaries (spec §4.8 "Time grid").
func BuildGrid(tickPeriodMs, timeframeMs int64, windows []model.TimePeriod) []GridEntry {
	isCandleBoundary := make(map[int64]bool)
	offsets := make(map[int64]struct{})

	if tickPeriodMs > 0 {
		for off := int64(0); off < dayLenMs; off += tickPeriodMs {
			offsets[off] = struct{}{}
		}
	}
	if timeframeMs > 0 {
		for off := int64(0); off < dayLenMs; off += timeframeMs {
			offsets[off] = struct{}{}
			isCandleBoundary[off] = true
		}
	}

	sorted := make([]int64, 0, len(offsets))
	for off := range offsets {
		sorted = append(sorted, off)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	grid := make([]GridEntry, 0, len(sorted))
	for _, off := range sorted {
		offsetSec := int(off / 1000)
		var ids []int
		for _, w := range windows {
			if w.Contains(offsetSec) {
				ids = append(ids, w.ID)
			}
		}
		candleBoundary := isCandleBoundary[off]
		if len(ids) == 0 && !candleBoundary {
			continue
		}
		grid = append(grid, GridEntry{OffsetMs: off, PeriodIDs: ids, IsCandleBoundary: candleBoundary})
	}
	return grid
}

// startOfMinuteSec truncates t (UTC seconds) down to the containing minute.
func startOfMinuteSec(t uint64) uint64 {
	return t - t%model.SecondsPerMinute
}

// startOfDayMs truncates tMs (UTC ms) down to the containing day.
func startOfDayMs(tMs int64) int64 {
	dayMs := tMs / dayLenMs
	if tMs < 0 && tMs%dayLenMs != 0 {
		dayMs--
	}
	return dayMs * dayLenMs
}
