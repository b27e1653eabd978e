// Package model holds the wire-level data types shared by the codec, the
// price buffer, the writer buffer, and the symbol engine: candles, ticks,
// and the period/timeframe enumerations used to address them.
package model

const (
	// MinutesPerDay is the number of minute slots in a day-of-candles unit.
	MinutesPerDay = 1440

	// SecondsPerMinute, SecondsPerDay, MsPerHour are the unit-size
	// constants used to derive blob keys from raw timestamps.
	SecondsPerMinute = 60
	SecondsPerDay    = 86400
	MsPerHour        = 3_600_000
)

// Candle is one OHLCV bar. Timestamp is UTC seconds. A candle is "empty"
// iff Timestamp == 0 or Close == 0 (spec §3).
type Candle struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp uint64
}

// Empty reports whether c carries no sample.
func (c Candle) Empty() bool {
	return c.Timestamp == 0 || c.Close == 0
}

// MinuteOfDay returns the candle's minute-of-day index in [0, 1440).
func (c Candle) MinuteOfDay() int {
	return int((c.Timestamp % SecondsPerDay) / SecondsPerMinute)
}

// StartOfDay returns the UTC-seconds start of the day containing t.
func StartOfDay(t uint64) uint64 {
	return t - (t % SecondsPerDay)
}

// Tick is one bid/ask quote. TMs is UTC milliseconds. A tick is "empty" iff
// TMs == 0 (spec §3).
type Tick struct {
	Bid float64
	Ask float64
	TMs uint64
}

// Empty reports whether t carries no sample.
func (t Tick) Empty() bool {
	return t.TMs == 0
}

// HourIndex returns t_ms / 3_600_000 (spec §3).
func (t Tick) HourIndex() uint64 {
	return t.TMs / MsPerHour
}

// StartOfHourMs returns the UTC-ms start of the hour containing tMs.
func StartOfHourMs(tMs uint64) uint64 {
	return tMs - (tMs % MsPerHour)
}

// StartOfHourSec is StartOfHourMs expressed in seconds, the unit used to key
// the ticks table (spec §4.1/§4.5).
func StartOfHourSec(tMs uint64) uint64 {
	return StartOfHourMs(tMs) / 1000
}

// PriceMode selects which side of a tick seeds a synthetic candle built
// from ticks (spec §4.5).
type PriceMode int

const (
	PriceModeBid PriceMode = iota
	PriceModeAsk
	PriceModeMid
)

// Price extracts the configured side of a tick.
func (m PriceMode) Price(t Tick) float64 {
	switch m {
	case PriceModeAsk:
		return t.Ask
	case PriceModeMid:
		return (t.Bid + t.Ask) / 2
	default:
		return t.Bid
	}
}

// Period is a candle timeframe, expressed in source minutes. H1/H4/D1 are
// represented as their minute count so "period_minutes" (spec §4.5) is a
// single field everywhere.
type Period int

const (
	M1  Period = 1
	M5  Period = 5
	M15 Period = 15
	M30 Period = 30
	H1  Period = 60
	H4  Period = 240
	D1  Period = 1440
)

// Minutes returns the period length in minutes.
func (p Period) Minutes() int { return int(p) }

// CandleSource selects how a synthetic bar is built (spec §4.5).
type CandleSource int

const (
	SourceFromCandles CandleSource = iota
	SourceFromTicks
)

// TimePeriod is a user-defined intra-day trading window with an id
// (spec §4.8, GLOSSARY "Trade window"). Start/Stop are seconds-of-day.
type TimePeriod struct {
	Start int
	Stop  int
	ID    int
}

// Contains reports whether offsetSec (seconds since start of day) falls
// within [Start, Stop] inclusive.
func (w TimePeriod) Contains(offsetSec int) bool {
	return offsetSec >= w.Start && offsetSec <= w.Stop
}
