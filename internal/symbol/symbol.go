// Package symbol is the composition root (C6): one Symbol owns a blob store
// (C1), the compact codec (C2), the entropy layer (C3), a writer buffer
// (C4), and a price buffer (C5) for a single on-disk symbol file.
package symbol

import (
	"context"
	"fmt"

	"tradedb/internal/codec"
	"tradedb/internal/dictionary"
	"tradedb/internal/entropy"
	"tradedb/internal/model"
	"tradedb/internal/pricebuffer"
	"tradedb/internal/store"
	"tradedb/internal/writebuffer"
	"tradedb/internal/xerrors"
)

const (
	metaSymbolName  = "SYMBOL_NAME"
	metaDigits      = "SYMBOL_DIGITS"
	metaDataSource  = "SYMBOL_DATA_FEED_SOURCE"
	defaultVolDigit = 0
)

// Config selects the merge policy, price-buffer tuning, and entropy-layer
// tuning for a Symbol.
type Config struct {
	MergeOnWrite bool
	PriceBuffer  pricebuffer.Config
	Entropy      entropy.Config
}

// DefaultConfig returns merge-off with default price-buffer windows and
// maximum compression.
func DefaultConfig() Config {
	return Config{
		MergeOnWrite: false,
		PriceBuffer:  pricebuffer.DefaultConfig(),
		Entropy:      entropy.DefaultConfig(),
	}
}

// Symbol is the C6 façade over one per-symbol file.
type Symbol struct {
	cfg Config

	st      *store.Store
	entropy *entropy.Codec
	digits  int

	wb *writebuffer.Buffer
	pb *pricebuffer.Buffer

	pendingCandles map[uint64][]byte
	pendingTicks   map[uint64][]byte
}

// Open initializes C1 under path and loads digits from metadata (spec §4.6
// "open"). The symbol name and data source are not cached; GetInfoName and
// GetInfoDataSource read them from the metadata table on each call.
func Open(path string, readOnly bool, cfg Config) (*Symbol, error) {
	scfg := store.DefaultConfig(path)
	scfg.ReadOnly = readOnly
	st, err := store.Open(scfg)
	if err != nil {
		return nil, err
	}

	ent, err := entropy.New(cfg.Entropy)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("symbol: Open: %w", err)
	}

	digits, _ := st.GetInt(metaDigits)

	s := &Symbol{
		cfg:     cfg,
		st:      st,
		entropy: ent,
		digits:  int(digits),
	}
	s.pb = pricebuffer.New(cfg.PriceBuffer, s.hydrateTicks, s.hydrateCandles)
	s.wb = writebuffer.New(s.onSealedTicks, s.onSealedCandles)
	return s, nil
}

// Close releases the underlying store and entropy codec.
func (s *Symbol) Close() error {
	s.entropy.Close()
	return s.st.Close()
}

// --- metadata ---

// SetInfoName sets the SYMBOL_NAME metadata field.
func (s *Symbol) SetInfoName(ctx context.Context, name string) error {
	return s.st.SetStr(ctx, metaSymbolName, name)
}

// GetInfoName returns the SYMBOL_NAME metadata field.
func (s *Symbol) GetInfoName() (string, bool) { return s.st.GetStr(metaSymbolName) }

// SetInfoDigits sets SYMBOL_DIGITS, which also updates the codec's price
// scale (spec §4.6 "digits also updates the codec's price scale").
func (s *Symbol) SetInfoDigits(ctx context.Context, digits int) error {
	if err := s.st.SetInt(ctx, metaDigits, int64(digits)); err != nil {
		return err
	}
	s.digits = digits
	return nil
}

// GetInfoDigits returns the current price-decimals scale.
func (s *Symbol) GetInfoDigits() int { return s.digits }

// SetInfoDataSource sets the SYMBOL_DATA_FEED_SOURCE metadata field.
func (s *Symbol) SetInfoDataSource(ctx context.Context, source string) error {
	return s.st.SetStr(ctx, metaDataSource, source)
}

// GetInfoDataSource returns the SYMBOL_DATA_FEED_SOURCE metadata field.
func (s *Symbol) GetInfoDataSource() (string, bool) { return s.st.GetStr(metaDataSource) }

// --- writing ---

// StartWrite clears the write-staging units (spec §4.6 "start_write").
// Refuses on a read-only-opened Symbol (spec §4.6 "read-only open guard").
func (s *Symbol) StartWrite() error {
	if s.st.ReadOnly() {
		return fmt.Errorf("symbol: StartWrite: %w", xerrors.ErrReadOnly)
	}
	s.wb.Reset()
	s.pendingCandles = make(map[uint64][]byte)
	s.pendingTicks = make(map[uint64][]byte)
	return nil
}

// WriteTick stages a tick via the writer buffer (spec §4.6 "write_tick").
// Refuses on a read-only-opened Symbol.
func (s *Symbol) WriteTick(t model.Tick) error {
	if s.st.ReadOnly() {
		return fmt.Errorf("symbol: WriteTick: %w", xerrors.ErrReadOnly)
	}
	s.wb.WriteTick(t)
	return nil
}

// WriteCandle stages a candle via the writer buffer (spec §4.6
// "write_candle"). Refuses on a read-only-opened Symbol.
func (s *Symbol) WriteCandle(c model.Candle) error {
	if s.st.ReadOnly() {
		return fmt.Errorf("symbol: WriteCandle: %w", xerrors.ErrReadOnly)
	}
	s.wb.WriteCandle(c)
	return nil
}

// StopWrite flushes the writer buffer, then commits the pending candle and
// tick batches. Returns success only when both writes committed (spec §4.6
// "stop_write"). Refuses on a read-only-opened Symbol.
func (s *Symbol) StopWrite(ctx context.Context) error {
	if s.st.ReadOnly() {
		return fmt.Errorf("symbol: StopWrite: %w", xerrors.ErrReadOnly)
	}
	s.wb.Stop()

	if len(s.pendingCandles) > 0 {
		if err := s.st.WriteCandles(ctx, s.pendingCandles); err != nil {
			return fmt.Errorf("symbol: StopWrite: candles: %w", err)
		}
	}
	if len(s.pendingTicks) > 0 {
		if err := s.st.WriteTicks(ctx, s.pendingTicks); err != nil {
			return fmt.Errorf("symbol: StopWrite: ticks: %w", err)
		}
	}
	s.pendingCandles = nil
	s.pendingTicks = nil
	return nil
}

func (s *Symbol) onSealedCandles(sealed writebuffer.SealedCandles) {
	day := sealed.Candles
	if s.cfg.MergeOnWrite {
		if existing, ok := s.loadCandleDay(sealed.DayStart); ok {
			day = writebuffer.MergeCandles(existing, day)
		}
	}

	blob, err := codec.EncodeCandles(day, s.digits, defaultVolDigit)
	if err != nil {
		return
	}
	frame, err := s.entropy.Compress(dictionary.Candles, blob)
	if err != nil {
		return
	}
	if s.pendingCandles == nil {
		s.pendingCandles = make(map[uint64][]byte)
	}
	s.pendingCandles[sealed.DayStart] = frame
}

func (s *Symbol) onSealedTicks(sealed writebuffer.SealedTicks) {
	ticks := sealed.Ticks
	if s.cfg.MergeOnWrite {
		if existing, ok := s.loadTickHour(sealed.HourStart); ok {
			ticks = writebuffer.MergeTicks(existing, ticks)
		}
	}

	ordered := make([]model.Tick, 0, len(ticks))
	for _, t := range ticks {
		ordered = append(ordered, t)
	}
	sortTicksByTime(ordered)

	blob, err := codec.EncodeTicks(ordered, s.digits, sealed.HourStart*1000)
	if err != nil {
		return
	}
	frame, err := s.entropy.Compress(dictionary.Ticks, blob)
	if err != nil {
		return
	}
	if s.pendingTicks == nil {
		s.pendingTicks = make(map[uint64][]byte)
	}
	s.pendingTicks[sealed.HourStart] = frame
}

func sortTicksByTime(ticks []model.Tick) {
	for i := 1; i < len(ticks); i++ {
		for j := i; j > 0 && ticks[j].TMs < ticks[j-1].TMs; j-- {
			ticks[j], ticks[j-1] = ticks[j-1], ticks[j]
		}
	}
}

func (s *Symbol) loadCandleDay(dayStart uint64) ([model.MinutesPerDay]model.Candle, bool) {
	if blob, ok := s.pendingCandles[dayStart]; ok {
		return s.decodeCandleFrame(blob, dayStart)
	}
	return s.fetchCandleDay(dayStart)
}

func (s *Symbol) loadTickHour(hourStart uint64) (map[uint64]model.Tick, bool) {
	if blob, ok := s.pendingTicks[hourStart]; ok {
		ticks, ok := s.decodeTickFrame(blob, hourStart)
		if !ok {
			return nil, false
		}
		return ticksToMap(ticks), true
	}
	raw, found, err := s.st.ReadTick(hourStart)
	if err != nil || !found {
		return nil, false
	}
	ticks, ok := s.decodeTickFrame(raw, hourStart)
	if !ok {
		return nil, false
	}
	return ticksToMap(ticks), true
}

func ticksToMap(ticks []model.Tick) map[uint64]model.Tick {
	out := make(map[uint64]model.Tick, len(ticks))
	for _, t := range ticks {
		out[t.TMs] = t
	}
	return out
}

func (s *Symbol) fetchCandleDay(dayStart uint64) ([model.MinutesPerDay]model.Candle, bool) {
	raw, found, err := s.st.ReadCandle(dayStart)
	if err != nil || !found {
		return [model.MinutesPerDay]model.Candle{}, false
	}
	return s.decodeCandleFrame(raw, dayStart)
}

func (s *Symbol) decodeCandleFrame(frame []byte, dayStart uint64) ([model.MinutesPerDay]model.Candle, bool) {
	blob, err := s.entropy.Decompress(dictionary.Candles, frame)
	if err != nil {
		return [model.MinutesPerDay]model.Candle{}, false
	}
	day, _, _, err := codec.DecodeCandles(blob, dayStart)
	if err != nil {
		return [model.MinutesPerDay]model.Candle{}, false
	}
	return day, true
}

func (s *Symbol) decodeTickFrame(frame []byte, hourStart uint64) ([]model.Tick, bool) {
	blob, err := s.entropy.Decompress(dictionary.Ticks, frame)
	if err != nil {
		return nil, false
	}
	ticks, _, err := codec.DecodeTicks(blob, hourStart*1000)
	if err != nil {
		return nil, false
	}
	return ticks, true
}

// --- deletion ---

// RemoveCandles deletes the day-of-candles unit at t (spec §4.6
// "remove_candles").
func (s *Symbol) RemoveCandles(ctx context.Context, t uint64) error {
	return s.st.RemoveCandle(ctx, model.StartOfDay(t))
}

// RemoveTicks deletes the hour-of-ticks unit at t (spec §4.6
// "remove_ticks").
func (s *Symbol) RemoveTicks(ctx context.Context, t uint64) error {
	return s.st.RemoveTick(ctx, model.StartOfHourSec(t*1000))
}

// RemoveAll clears both tables.
func (s *Symbol) RemoveAll(ctx context.Context) error {
	if err := s.st.RemoveAllCandles(ctx); err != nil {
		return err
	}
	return s.st.RemoveAllTicks(ctx)
}

// --- date range ---

// GetMinMaxDate returns the store's covered date range, with the upper
// bound adjusted to be exclusive (spec §4.6 "get_min_max_date").
func (s *Symbol) GetMinMaxDate(useTicks bool) (tMin, tMax uint64, ok bool) {
	if useTicks {
		min, max, found := s.st.MinMaxTickKey()
		if !found {
			return 0, 0, false
		}
		return min, max + 3600, true
	}
	min, max, found := s.st.MinMaxCandleKey()
	if !found {
		return 0, 0, false
	}
	return min, max + model.SecondsPerDay, true
}

// --- reads (delegate to C5) ---

func (s *Symbol) hydrateTicks(hourStartSec uint64) (map[uint64]model.Tick, bool) {
	raw, found, err := s.st.ReadTick(hourStartSec)
	if err != nil || !found {
		return nil, false
	}
	ticks, ok := s.decodeTickFrame(raw, hourStartSec)
	if !ok {
		return nil, false
	}
	return ticksToMap(ticks), true
}

func (s *Symbol) hydrateCandles(dayStartSec uint64) ([model.MinutesPerDay]model.Candle, bool) {
	return s.fetchCandleDay(dayStartSec)
}

// GetTick returns the synthetic OHLC candle built from ticks for the period
// containing t, covering ticks from the period's start up to t
// (convenience wrapper matching spec §4.5 from_ticks path).
func (s *Symbol) GetTick(t uint64, period model.Period) (model.Candle, bool) {
	return s.pb.GetCandle(t, period, model.SourceFromTicks)
}

// GetCandle delegates to the price buffer (spec §4.6 "get_candle").
func (s *Symbol) GetCandle(t uint64, period model.Period, source model.CandleSource) (model.Candle, bool) {
	return s.pb.GetCandle(t, period, source)
}

// GetTickMs delegates to the price buffer (spec §4.6 "get_tick_ms").
func (s *Symbol) GetTickMs(tMs uint64) (model.Tick, bool) {
	return s.pb.GetTickMs(tMs)
}

// GetNextTickMs delegates to the price buffer (spec §4.6
// "get_next_tick_ms").
func (s *Symbol) GetNextTickMs(tMs, tMsMax uint64) (model.Tick, bool) {
	return s.pb.GetNextTickMs(tMs, tMsMax)
}
