// Package dictionary holds the static zstd training dictionaries the
// entropy layer uses to compress candle and tick blobs (spec §4.3). Real
// deployments train these offline against a representative corpus of
// encoded units and ship the resulting bytes with the binary; the content
// here is a deterministic stand-in built at package init from a synthetic
// walk-forward price series run through internal/codec, so the shipped
// bytes are genuine codec output (sharing its byte-width and delta-run
// patterns) rather than an arbitrary placeholder.
package dictionary

import (
	"tradedb/internal/codec"
	"tradedb/internal/model"
)

// Kind selects which of the two trained dictionaries a unit uses.
type Kind int

const (
	// Candles is the dictionary trained against day-of-candles blobs.
	Candles Kind = iota
	// Ticks is the dictionary trained against hour-of-ticks blobs.
	Ticks
)

var (
	candlesDict = buildCandlesDict()
	ticksDict   = buildTicksDict()
)

// Bytes returns the raw dictionary content for kind.
func Bytes(kind Kind) []byte {
	switch kind {
	case Ticks:
		return ticksDict
	default:
		return candlesDict
	}
}

// syntheticWalk generates a deterministic, bounded random-walk-like price
// series: no math/rand, no clock — just a fixed-seed linear congruential
// sequence, so the dictionary a fresh build produces is stable.
func syntheticWalk(n int, start, step uint64) []uint64 {
	out := make([]uint64, n)
	state := start
	for i := range out {
		state = state*6364136223846793005 + 1442695040888963407
		drift := int64(state%step) - int64(step/2)
		if i == 0 {
			out[i] = start
		} else {
			next := int64(out[i-1]) + drift
			if next < 0 {
				next = 0
			}
			out[i] = uint64(next)
		}
	}
	return out
}

// buildCandlesDict encodes a handful of synthetic trading days (a mix of
// sparse and dense sessions) and concatenates the resulting blobs, giving
// the encoder real reg_a/reg_b/delta byte patterns to reference.
func buildCandlesDict() []byte {
	var out []byte
	sessions := []struct {
		fillEvery int
		priceBase uint64
	}{
		{fillEvery: 1, priceBase: 110000},
		{fillEvery: 3, priceBase: 95000},
		{fillEvery: 17, priceBase: 130500},
	}

	for _, sess := range sessions {
		walk := syntheticWalk(model.MinutesPerDay, sess.priceBase, 40)
		var day [model.MinutesPerDay]model.Candle
		for i := 0; i < model.MinutesPerDay; i++ {
			if i%sess.fillEvery != 0 {
				continue
			}
			p := float64(walk[i]) / 100000
			day[i] = model.Candle{
				Open:      p,
				High:      p * 1.0004,
				Low:       p * 0.9996,
				Close:     p * 1.0001,
				Volume:    float64(100 + i%50),
				Timestamp: uint64(i * model.SecondsPerMinute),
			}
		}
		blob, err := codec.EncodeCandles(day, 5, 0)
		if err != nil {
			continue
		}
		out = append(out, blob...)
	}
	return out
}

// buildTicksDict encodes a synthetic hour of ticks at a couple of
// densities, mirroring buildCandlesDict's approach for the tick codec.
func buildTicksDict() []byte {
	var out []byte
	densities := []int{1, 5, 37}

	for _, stepMs := range densities {
		const n = 600
		walk := syntheticWalk(n, 108000, 20)
		ticks := make([]model.Tick, n)
		for i := 0; i < n; i++ {
			p := float64(walk[i]) / 100000
			ticks[i] = model.Tick{
				Bid: p,
				Ask: p + 0.00012,
				TMs: uint64(i * stepMs * 1000),
			}
		}
		blob, err := codec.EncodeTicks(ticks, 5, 0)
		if err != nil {
			continue
		}
		out = append(out, blob...)
	}
	return out
}
