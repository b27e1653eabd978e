// Package replay implements the deterministic, multi-threaded historical
// backtester (spec §4.8): threads own disjoint symbol shards and disjoint
// per-thread handles, driving per-symbol callbacks over a precomputed
// intra-day time grid.
package replay

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"tradedb/internal/model"
	"tradedb/internal/symbol"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// OpenSymbol opens (or reopens) a read-only handle for one symbol. Each
// replay thread calls this once per assigned symbol, so implementations
// must not share state across calls (spec §5 "Replay threads own disjoint
// symbol engines").
type OpenSymbol func(name string) (*symbol.Symbol, error)

// Callbacks is the replay engine's user-supplied extension surface (spec
// §4.8 "Callbacks").
type Callbacks struct {
	OnSymbol        func(s string) bool
	OnCandle        func(s string, tMs uint64, periodIDs []int, c model.Candle)
	OnTick          func(s string, tMs uint64, periodIDs []int, t model.Tick)
	OnTest          func(s string, tMs uint64, periodIDs []int)
	OnDateMsg       func(s string, dayMs int64)
	OnEndTestSymbol func(s string)
	OnEndTestThread func(threadID, total int)
	OnEndTest       func()
	OnMsg           func(msg string)
}

// Config is the replay run's full input (spec §4.8 "Inputs").
type Config struct {
	Symbols         []string
	StartDateSec    int64
	StopDateSec     int64
	PreStartSec     int64
	TickPeriodSec   int64
	TimeframeSec    int64
	UseNewTickMode  bool
	Windows         []model.TimePeriod
	Threads         int // 0 means runtime.GOMAXPROCS(0)
	TickLimiter     *rate.Limiter
}

// Engine runs a replay given an OpenSymbol factory and Callbacks.
type Engine struct {
	cfg       Config
	open      OpenSymbol
	callbacks Callbacks
	grid      []GridEntry

	dateMsgMu sync.Mutex
}

// New builds an Engine with its time grid precomputed once (spec §5
// "The replay engine's grid is computed once and shared read-only").
func New(cfg Config, open OpenSymbol, callbacks Callbacks) *Engine {
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.GOMAXPROCS(0)
	}
	grid := BuildGrid(cfg.TickPeriodSec*1000, cfg.TimeframeSec*1000, cfg.Windows)
	return &Engine{cfg: cfg, open: open, callbacks: callbacks, grid: grid}
}

// Run shards symbols round-robin across threads and executes each shard's
// per-symbol loop (spec §4.8 "Per-thread loop"). A symbol whose store
// cannot be opened causes on_msg and the whole Run returns failure before
// any thread loop runs (spec §4.8 "Cancellation / failure").
func (e *Engine) Run(ctx context.Context) error {
	shards := make([][]string, e.cfg.Threads)
	for i, s := range e.cfg.Symbols {
		t := i % e.cfg.Threads
		shards[t] = append(shards[t], s)
	}

	// Fail fast: verify every symbol opens before any thread loop runs.
	for _, s := range e.cfg.Symbols {
		h, err := e.open(s)
		if err != nil {
			e.logMsg(fmt.Sprintf("open failed for %s: %v", s, err))
			return fmt.Errorf("replay: Run: open %s: %w", s, err)
		}
		h.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	for tid, shard := range shards {
		tid, shard := tid, shard
		if len(shard) == 0 {
			continue
		}
		g.Go(func() error {
			e.runThread(gctx, tid, shard)
			if e.callbacks.OnEndTestThread != nil {
				e.callbacks.OnEndTestThread(tid, e.cfg.Threads)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if e.callbacks.OnEndTest != nil {
		e.callbacks.OnEndTest()
	}
	return nil
}

func (e *Engine) logMsg(msg string) {
	if e.callbacks.OnMsg != nil {
		e.callbacks.OnMsg(msg)
	}
}

func (e *Engine) runThread(ctx context.Context, threadID int, symbols []string) {
	for _, name := range symbols {
		if ctx.Err() != nil {
			return
		}
		if e.callbacks.OnSymbol != nil && !e.callbacks.OnSymbol(name) {
			continue
		}
		e.runSymbol(ctx, name)
	}
}

func (e *Engine) runSymbol(ctx context.Context, name string) {
	h, err := e.open(name)
	if err != nil {
		e.logMsg(fmt.Sprintf("reopen failed for %s: %v", name, err))
		return
	}
	defer h.Close()

	startOfDay := startOfDayMs(e.cfg.StartDateSec * 1000)
	stopOfDay := startOfDayMs(e.cfg.StopDateSec * 1000)
	warmStart := startOfDayMs((e.cfg.StartDateSec - e.cfg.PreStartSec) * 1000)
	requestStart := startOfDay

	var lastUpdateTMs uint64

	for dayMs := warmStart; dayMs <= stopOfDay; dayMs += dayLenMs {
		if ctx.Err() != nil {
			return
		}
		e.emitDateMsg(name, dayMs)

		newTick := false
		for _, entry := range e.grid {
			tMs := uint64(dayMs + entry.OffsetMs)

			if e.cfg.TickLimiter != nil {
				_ = e.cfg.TickLimiter.Wait(ctx)
			}

			if entry.IsCandleBoundary {
				tSec := tMs / 1000
				probeSec := startOfMinuteSec(tSec) - model.SecondsPerMinute
				period := model.Period(e.cfg.TimeframeSec / 60)
				if period < model.M1 {
					period = model.M1
				}
				candle, found := h.GetCandle(probeSec, period, model.SourceFromCandles)
				if found {
					if e.callbacks.OnCandle != nil {
						e.callbacks.OnCandle(name, tMs, entry.PeriodIDs, candle)
					}
					lastUpdateTMs = (candle.Timestamp + model.SecondsPerMinute) * 1000
				}
				if e.cfg.UseNewTickMode {
					if tick, ok := h.GetTickMs(tMs); ok && tick.TMs > tMs-uint64(e.cfg.TickPeriodSec*1000) {
						newTick = true
					}
				}
			} else {
				if tick, ok := h.GetTickMs(tMs); ok && tick.TMs > lastUpdateTMs {
					lastUpdateTMs = tick.TMs
					if e.callbacks.OnTick != nil {
						e.callbacks.OnTick(name, tMs, entry.PeriodIDs, tick)
					}
					newTick = true
				}
			}

			if e.callbacks.OnTest != nil && dayMs >= requestStart && len(entry.PeriodIDs) > 0 {
				if !e.cfg.UseNewTickMode {
					e.callbacks.OnTest(name, tMs, entry.PeriodIDs)
				} else if newTick {
					e.callbacks.OnTest(name, tMs, entry.PeriodIDs)
					newTick = false
				}
			}
		}
	}

	if e.callbacks.OnEndTestSymbol != nil {
		e.callbacks.OnEndTestSymbol(name)
	}
}

// emitDateMsg is serialized behind a dedicated lock so progress output
// stays readable across threads (spec §5 "on_date_msg is serialized").
func (e *Engine) emitDateMsg(symbol string, dayMs int64) {
	if e.callbacks.OnDateMsg == nil {
		return
	}
	e.dateMsgMu.Lock()
	defer e.dateMsgMu.Unlock()
	e.callbacks.OnDateMsg(symbol, dayMs)
}
