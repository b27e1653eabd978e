// Package pricebuffer implements the two-tier read cache over tick and
// candle units (spec §4.5): hydrate-on-miss, window-based eviction, point
// lookup, next-tick probe, range scan, and synthetic bar aggregation.
package pricebuffer

import (
	"sort"
	"time"

	"tradedb/internal/model"
)

// Config enumerates the cache's window/deadtime/mode knobs (spec §4.5
// "Configuration (enumerated)").
type Config struct {
	TickWindowBack   time.Duration
	TickWindowFwd    time.Duration
	TickDeadtime     time.Duration
	CandleWindowBack time.Duration
	CandleWindowFwd  time.Duration
	CandleDeadtime   time.Duration
	CandleUseTick    bool
	PriceMode        model.PriceMode
}

// DefaultConfig returns the window/deadtime defaults named in spec §4.5.
func DefaultConfig() Config {
	return Config{
		TickWindowBack:   time.Hour,
		TickWindowFwd:    time.Hour,
		TickDeadtime:     60 * time.Second,
		CandleWindowBack: 10 * 24 * time.Hour,
		CandleWindowFwd:  10 * 24 * time.Hour,
		CandleDeadtime:   60 * time.Second,
		CandleUseTick:    false,
		PriceMode:        model.PriceModeBid,
	}
}

// TickHydrator decodes and returns the ticks stored for the hour starting
// at hourStartSec, or ok=false if the unit is absent/unreadable.
type TickHydrator func(hourStartSec uint64) (ticks map[uint64]model.Tick, ok bool)

// CandleHydrator decodes and returns the candles stored for the day
// starting at dayStartSec, or ok=false if the unit is absent/unreadable.
type CandleHydrator func(dayStartSec uint64) (day [model.MinutesPerDay]model.Candle, ok bool)

// Buffer is the per-symbol price cache. It is not safe for concurrent use
// by multiple goroutines — each symbol engine (and each replay thread's own
// symbol handle) owns one.
type Buffer struct {
	cfg Config

	hydrateTicks   TickHydrator
	hydrateCandles CandleHydrator

	ticks   map[uint64]map[uint64]model.Tick // hour_start_sec -> t_ms -> tick
	candles map[uint64][model.MinutesPerDay]model.Candle
}

// New builds a Buffer backed by the given hydration callbacks (spec §4.6
// "get_candle / get_tick ... delegates to C5 with hydration callbacks").
func New(cfg Config, hydrateTicks TickHydrator, hydrateCandles CandleHydrator) *Buffer {
	return &Buffer{
		cfg:            cfg,
		hydrateTicks:   hydrateTicks,
		hydrateCandles: hydrateCandles,
		ticks:          make(map[uint64]map[uint64]model.Tick),
		candles:        make(map[uint64][model.MinutesPerDay]model.Candle),
	}
}

// hourOfSec converts seconds-of-probe into the hour-start-sec bucket key.
func hourOfSec(probeSec uint64) uint64 {
	return probeSec - probeSec%3600
}

func dayOfSec(probeSec uint64) uint64 {
	return model.StartOfDay(probeSec)
}

// hydrateTickWindow fetches every missing hour bucket in
// [probeSec-back, probeSec+fwd], then evicts anything cached outside that
// range (spec §4.5 "Hydration ... Eviction").
func (b *Buffer) hydrateTickWindow(probeSec uint64) {
	back := uint64(b.cfg.TickWindowBack.Seconds())
	fwd := uint64(b.cfg.TickWindowFwd.Seconds())

	var lo uint64
	if probeSec > back {
		lo = hourOfSec(probeSec - back)
	}
	hi := hourOfSec(probeSec + fwd)

	for h := lo; h <= hi; h += 3600 {
		if _, ok := b.ticks[h]; ok {
			continue
		}
		if b.hydrateTicks == nil {
			continue
		}
		if unit, ok := b.hydrateTicks(h); ok {
			b.ticks[h] = unit
		}
	}

	for h := range b.ticks {
		if h < lo || h > hi {
			delete(b.ticks, h)
		}
	}
}

func (b *Buffer) hydrateCandleWindow(probeSec uint64) {
	back := uint64(b.cfg.CandleWindowBack.Hours()/24) * model.SecondsPerDay
	fwd := uint64(b.cfg.CandleWindowFwd.Hours()/24) * model.SecondsPerDay

	var lo uint64
	if probeSec > back {
		lo = dayOfSec(probeSec - back)
	}
	hi := dayOfSec(probeSec + fwd)

	for d := lo; d <= hi; d += model.SecondsPerDay {
		if _, ok := b.candles[d]; ok {
			continue
		}
		if b.hydrateCandles == nil {
			continue
		}
		if unit, ok := b.hydrateCandles(d); ok {
			b.candles[d] = unit
		}
	}

	for d := range b.candles {
		if d < lo || d > hi {
			delete(b.candles, d)
		}
	}
}

// sortedTickKeys returns the sorted t_ms keys of an hour bucket.
func sortedTickKeys(bucket map[uint64]model.Tick) []uint64 {
	keys := make([]uint64, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// sortedHourKeys returns b.ticks' bucket keys in ascending order.
func (b *Buffer) sortedHourKeys() []uint64 {
	keys := make([]uint64, 0, len(b.ticks))
	for k := range b.ticks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// GetTickMs implements the point tick lookup (spec §4.5 "get_tick_ms").
func (b *Buffer) GetTickMs(tMs uint64) (model.Tick, bool) {
	probeSec := tMs / 1000
	hour := hourOfSec(probeSec)

	if _, ok := b.ticks[hour]; !ok {
		b.hydrateTickWindow(probeSec)
	}

	tick, found := lowerBound(b.ticks[hour], tMs)
	if !found {
		hours := b.sortedHourKeys()
		for i := len(hours) - 1; i >= 0; i-- {
			if hours[i] >= hour {
				continue
			}
			bucket := b.ticks[hours[i]]
			if len(bucket) == 0 {
				continue
			}
			keys := sortedTickKeys(bucket)
			tick = bucket[keys[len(keys)-1]]
			found = true
			break
		}
	}
	if !found {
		return model.Tick{}, false
	}

	ageSec := float64(tMs-tick.TMs) / 1000
	if ageSec > b.cfg.TickDeadtime.Seconds() {
		return model.Tick{}, false
	}
	return tick, true
}

// lowerBound returns the entry with the largest key <= tMs.
func lowerBound(bucket map[uint64]model.Tick, tMs uint64) (model.Tick, bool) {
	if len(bucket) == 0 {
		return model.Tick{}, false
	}
	var best uint64
	found := false
	for k := range bucket {
		if k <= tMs && (!found || k > best) {
			best, found = k, true
		}
	}
	if !found {
		return model.Tick{}, false
	}
	return bucket[best], true
}

// GetNextTickMs implements the next-tick probe (spec §4.5
// "get_next_tick_ms").
func (b *Buffer) GetNextTickMs(tMs, tMsMax uint64) (model.Tick, bool) {
	probeSec := tMs / 1000
	hour := hourOfSec(probeSec)
	maxHour := hourOfSec(tMsMax / 1000)

	if _, ok := b.ticks[hour]; !ok {
		b.hydrateTickWindow(probeSec)
	}

	if tick, ok := upperBound(b.ticks[hour], tMs); ok {
		return tick, true
	}

	hours := b.sortedHourKeys()
	for _, h := range hours {
		if h <= hour || h > maxHour {
			continue
		}
		bucket := b.ticks[h]
		if len(bucket) == 0 {
			continue
		}
		keys := sortedTickKeys(bucket)
		return bucket[keys[0]], true
	}
	return model.Tick{}, false
}

// upperBound returns the entry with the smallest key > tMs.
func upperBound(bucket map[uint64]model.Tick, tMs uint64) (model.Tick, bool) {
	if len(bucket) == 0 {
		return model.Tick{}, false
	}
	var best uint64
	found := false
	for k := range bucket {
		if k > tMs && (!found || k < best) {
			best, found = k, true
		}
	}
	if !found {
		return model.Tick{}, false
	}
	return bucket[best], true
}

// RangeTicks returns ticks with t_ms in [a,b], optionally prefixed with the
// most recent tick before a (spec §4.5 "Range tick scan").
func (b *Buffer) RangeTicks(a, bMs uint64, seedOpen bool) []model.Tick {
	startHour := hourOfSec(a / 1000)
	stopHour := hourOfSec(bMs / 1000)

	for h := startHour; h <= stopHour; h += 3600 {
		if _, ok := b.ticks[h]; !ok {
			b.hydrateTickWindow(h)
		}
	}

	var out []model.Tick
	if seedOpen {
		if seed, ok := b.lastTickBefore(a); ok {
			out = append(out, seed)
		}
	}

	for h := startHour; h <= stopHour; h += 3600 {
		bucket := b.ticks[h]
		if len(bucket) == 0 {
			continue
		}
		for _, k := range sortedTickKeys(bucket) {
			if k >= a && k <= bMs {
				out = append(out, bucket[k])
			}
		}
	}
	return out
}

func (b *Buffer) lastTickBefore(tMs uint64) (model.Tick, bool) {
	hour := hourOfSec(tMs / 1000)
	hours := b.sortedHourKeys()
	for i := len(hours) - 1; i >= 0; i-- {
		if hours[i] > hour {
			continue
		}
		bucket := b.ticks[hours[i]]
		if len(bucket) == 0 {
			continue
		}
		keys := sortedTickKeys(bucket)
		for j := len(keys) - 1; j >= 0; j-- {
			if keys[j] < tMs {
				return bucket[keys[j]], true
			}
		}
	}
	return model.Tick{}, false
}

// GetCandle implements the synthetic-bar lookup (spec §4.5 "get_candle").
func (b *Buffer) GetCandle(tSec uint64, period model.Period, source model.CandleSource) (model.Candle, bool) {
	if source == model.SourceFromTicks {
		return b.candleFromTicks(tSec, period)
	}
	return b.candleFromCandles(tSec, period)
}

func (b *Buffer) candleFromCandles(tSec uint64, period model.Period) (model.Candle, bool) {
	day := dayOfSec(tSec)
	if _, ok := b.candles[day]; !ok {
		b.hydrateCandleWindow(tSec)
	}
	slots, ok := b.candles[day]
	if !ok {
		return model.Candle{}, false
	}

	minute := int((tSec % model.SecondsPerDay) / model.SecondsPerMinute)
	if period == model.M1 {
		c := slots[minute]
		if c.Empty() {
			return model.Candle{}, false
		}
		return c, true
	}

	n := period.Minutes()
	m0 := (minute / n) * n
	return foldCandles(slots[m0 : minute+1])
}

func foldCandles(window []model.Candle) (model.Candle, bool) {
	var out model.Candle
	found := false
	for _, c := range window {
		if c.Empty() {
			continue
		}
		if !found {
			out.Open = c.Open
			out.High = c.High
			out.Low = c.Low
			out.Timestamp = c.Timestamp
			found = true
		} else {
			if c.High > out.High {
				out.High = c.High
			}
			if c.Low < out.Low {
				out.Low = c.Low
			}
		}
		out.Close = c.Close
		out.Volume += c.Volume
	}
	return out, found
}

func (b *Buffer) candleFromTicks(tSec uint64, period model.Period) (model.Candle, bool) {
	n := uint64(period.Minutes()) * 60
	startSec := tSec - tSec%n

	ticks := b.RangeTicks(startSec*1000, tSec*1000, true)
	if len(ticks) == 0 {
		return model.Candle{}, false
	}

	last := ticks[len(ticks)-1]
	ageSec := float64(tSec*1000-last.TMs) / 1000
	if ageSec > b.cfg.CandleDeadtime.Seconds() {
		return model.Candle{}, false
	}

	var out model.Candle
	out.Open = b.cfg.PriceMode.Price(ticks[0])
	out.High = out.Open
	out.Low = out.Open
	out.Timestamp = startSec
	for _, t := range ticks {
		p := b.cfg.PriceMode.Price(t)
		if p > out.High {
			out.High = p
		}
		if p < out.Low {
			out.Low = p
		}
		out.Close = p
	}
	return out, true
}
