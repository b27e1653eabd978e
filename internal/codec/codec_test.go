package codec

import (
	"testing"

	"tradedb/internal/model"

	"github.com/stretchr/testify/require"
)

func sampleDay() [model.MinutesPerDay]model.Candle {
	var day [model.MinutesPerDay]model.Candle
	base := uint64(1_700_000_000)
	base -= base % model.SecondsPerDay
	prices := []float64{1.1000, 1.1005, 1.0998, 1.1050, 1.0900}
	for i, p := range prices {
		minute := i * 37
		day[minute] = model.Candle{
			Open:      p,
			High:      p + 0.0010,
			Low:       p - 0.0007,
			Close:     p + 0.0002,
			Volume:    float64(100 + i*13),
			Timestamp: base + uint64(minute)*model.SecondsPerMinute,
		}
	}
	return day
}

func TestEncodeDecodeCandlesRoundTrip(t *testing.T) {
	day := sampleDay()
	blob, err := EncodeCandles(day, 5, 0)
	require.NoError(t, err)

	got, priceDigits, volumeDigits, err := DecodeCandles(blob, day[37].Timestamp-37*model.SecondsPerMinute)
	require.NoError(t, err)
	require.Equal(t, 5, priceDigits)
	require.Equal(t, 0, volumeDigits)

	for i := range day {
		if day[i].Empty() {
			require.Truef(t, got[i].Empty(), "minute %d expected empty", i)
			continue
		}
		require.InDelta(t, day[i].Open, got[i].Open, 1e-5)
		require.InDelta(t, day[i].High, got[i].High, 1e-5)
		require.InDelta(t, day[i].Low, got[i].Low, 1e-5)
		require.InDelta(t, day[i].Close, got[i].Close, 1e-5)
		require.InDelta(t, day[i].Volume, got[i].Volume, 1e-9)
		require.Equal(t, day[i].Timestamp, got[i].Timestamp)
	}
}

func TestEncodeCandlesAllAbsent(t *testing.T) {
	var day [model.MinutesPerDay]model.Candle
	blob, err := EncodeCandles(day, 5, 2)
	require.NoError(t, err)

	got, _, _, err := DecodeCandles(blob, 0)
	require.NoError(t, err)
	for i := range got {
		require.True(t, got[i].Empty())
	}
}

func TestEncodeCandlesWidensOnLargeOpenJump(t *testing.T) {
	// A minute whose Open diverges sharply from the running close must not
	// collide with the sentinel once the width is sized for it.
	var day [model.MinutesPerDay]model.Candle
	day[0] = model.Candle{Open: 1.0, High: 1.0, Low: 1.0, Close: 1.0, Volume: 1, Timestamp: 60}
	day[1] = model.Candle{Open: 50000.0, High: 50000.0, Low: 50000.0, Close: 50000.0, Volume: 1, Timestamp: 120}

	blob, err := EncodeCandles(day, 0, 0)
	require.NoError(t, err)

	got, _, _, err := DecodeCandles(blob, 0)
	require.NoError(t, err)
	require.False(t, got[1].Empty())
	require.InDelta(t, 50000.0, got[1].Open, 1e-6)
}

func sampleTicks(hourStart uint64) []model.Tick {
	return []model.Tick{
		{Bid: 1.1000, Ask: 1.1002, TMs: hourStart},
		{Bid: 1.1003, Ask: 1.1005, TMs: hourStart + 250},
		{Bid: 1.0998, Ask: 1.1000, TMs: hourStart + 900},
		{Bid: 1.1050, Ask: 1.1053, TMs: hourStart + 3_599_999},
	}
}

func TestEncodeDecodeTicksRoundTrip(t *testing.T) {
	hourStart := uint64(1_700_000_000_000)
	hourStart -= hourStart % model.MsPerHour
	ticks := sampleTicks(hourStart)

	blob, err := EncodeTicks(ticks, 5, hourStart)
	require.NoError(t, err)

	got, priceDigits, err := DecodeTicks(blob, hourStart)
	require.NoError(t, err)
	require.Equal(t, 5, priceDigits)
	require.Len(t, got, len(ticks))

	for i := range ticks {
		require.InDelta(t, ticks[i].Bid, got[i].Bid, 1e-5)
		require.InDelta(t, ticks[i].Ask, got[i].Ask, 1e-5)
		require.Equal(t, ticks[i].TMs, got[i].TMs)
	}
}

func TestEncodeTicksEmptyHour(t *testing.T) {
	blob, err := EncodeTicks(nil, 5, 0)
	require.NoError(t, err)

	got, _, err := DecodeTicks(blob, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWidthCodeBoundaries(t *testing.T) {
	require.Equal(t, widthCode(0), signedCode(127))
	require.Equal(t, widthCode(1), signedCode(128))
	require.Equal(t, widthCode(1), signedCode(32767))
	require.Equal(t, widthCode(2), signedCode(32768))
	require.Equal(t, widthCode(2), signedCode(2147483647))
	require.Equal(t, widthCode(3), signedCode(2147483648))
}

func TestSentinelOutOfRangeForWidth(t *testing.T) {
	for code := widthCode(0); code <= 3; code++ {
		s := sentinel(code)
		// A fully loaded day's max delta-width scan must never choose a
		// width whose in-range values could equal the sentinel pattern.
		require.Equal(t, -(int64(1) << (8*bytesFor(code) - 1)), s)
	}
}
