package pricebuffer

import (
	"testing"
	"time"

	"tradedb/internal/model"

	"github.com/stretchr/testify/require"
)

func fixedTickHydrator(units map[uint64]map[uint64]model.Tick) TickHydrator {
	return func(hourStartSec uint64) (map[uint64]model.Tick, bool) {
		u, ok := units[hourStartSec]
		return u, ok
	}
}

func fixedCandleHydrator(units map[uint64][model.MinutesPerDay]model.Candle) CandleHydrator {
	return func(dayStartSec uint64) ([model.MinutesPerDay]model.Candle, bool) {
		u, ok := units[dayStartSec]
		return u, ok
	}
}

func TestGetTickMsPointLookup(t *testing.T) {
	b := New(DefaultConfig(), fixedTickHydrator(map[uint64]map[uint64]model.Tick{
		0: {
			0:    {Bid: 1.08000, Ask: 1.08010, TMs: 0},
			1500: {Bid: 1.08002, Ask: 1.08012, TMs: 1500},
		},
	}), nil)

	tick, ok := b.GetTickMs(1000)
	require.True(t, ok)
	require.Equal(t, uint64(0), tick.TMs)

	next, ok := b.GetNextTickMs(500, 10_000)
	require.True(t, ok)
	require.Equal(t, uint64(1500), next.TMs)
}

func TestGetTickMsDeadtimeGating(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickDeadtime = 60 * time.Second
	b := New(cfg, fixedTickHydrator(map[uint64]map[uint64]model.Tick{
		0: {0: {Bid: 1.1, Ask: 1.1002, TMs: 0}},
	}), nil)

	_, ok := b.GetTickMs(61_000)
	require.False(t, ok)

	tick, ok := b.GetTickMs(59_000)
	require.True(t, ok)
	require.Equal(t, uint64(0), tick.TMs)
}

func TestGetNextTickMsWalksForwardAcrossBuckets(t *testing.T) {
	b := New(DefaultConfig(), fixedTickHydrator(map[uint64]map[uint64]model.Tick{
		0:    {},
		3600: {3_600_500: {Bid: 1.2, Ask: 1.2002, TMs: 3_600_500}},
	}), nil)

	next, ok := b.GetNextTickMs(100, 7_200_000)
	require.True(t, ok)
	require.Equal(t, uint64(3_600_500), next.TMs)
}

func TestGetCandleFromCandlesM5Aggregation(t *testing.T) {
	// Day 1 rather than day 0: a candle with Timestamp 0 counts as empty.
	dayStart := uint64(model.SecondsPerDay)
	var day [model.MinutesPerDay]model.Candle
	day[0] = model.Candle{Open: 1.10000, High: 1.10010, Low: 1.09990, Close: 1.10000, Volume: 10, Timestamp: dayStart}
	day[4] = model.Candle{Open: 1.10050, High: 1.10060, Low: 1.10040, Close: 1.10050, Volume: 5, Timestamp: dayStart + 4*model.SecondsPerMinute}

	b := New(DefaultConfig(), nil, fixedCandleHydrator(map[uint64][model.MinutesPerDay]model.Candle{dayStart: day}))

	c, ok := b.GetCandle(dayStart+4*model.SecondsPerMinute, model.M5, model.SourceFromCandles)
	require.True(t, ok)
	require.InDelta(t, 1.10000, c.Open, 1e-9)
	require.InDelta(t, 1.10060, c.High, 1e-9)
	require.InDelta(t, 1.09990, c.Low, 1e-9)
	require.InDelta(t, 1.10050, c.Close, 1e-9)
	require.InDelta(t, 15.0, c.Volume, 1e-9)
}

func TestGetCandleFromCandlesAllEmptyReturnsNotFound(t *testing.T) {
	var day [model.MinutesPerDay]model.Candle
	b := New(DefaultConfig(), nil, fixedCandleHydrator(map[uint64][model.MinutesPerDay]model.Candle{0: day}))

	_, ok := b.GetCandle(4*model.SecondsPerMinute, model.M5, model.SourceFromCandles)
	require.False(t, ok)
}

func TestRangeTicksSeedsOpenPrice(t *testing.T) {
	b := New(DefaultConfig(), fixedTickHydrator(map[uint64]map[uint64]model.Tick{
		0: {
			100: {Bid: 1.0, Ask: 1.0002, TMs: 100},
			500: {Bid: 1.1, Ask: 1.1002, TMs: 500},
			900: {Bid: 1.2, Ask: 1.2002, TMs: 900},
		},
	}), nil)

	ticks := b.RangeTicks(500, 900, true)
	require.Len(t, ticks, 3)
	require.Equal(t, uint64(100), ticks[0].TMs)
}
