// Command qdb-replay drives a historical replay over a directory of
// per-symbol store files, following the teacher's cmd/*/main.go
// flag-then-log startup convention.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"tradedb/internal/model"
	"tradedb/internal/obslog"
	"tradedb/internal/replay"
	"tradedb/internal/symbol"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

type cliConfig struct {
	StoreDir       string
	Symbols        string
	StartDate      string
	StopDate       string
	PreStartSec    int64
	TickPeriodSec  int64
	TimeframeSec   int64
	UseNewTickMode bool
	Windows        string
	Threads        int
}

func main() {
	cfg := parseFlags()

	log.Printf("starting qdb-replay v%s (built: %s)", version, buildTime)
	log.Printf("store dir: %s", cfg.StoreDir)

	symbols := splitNonEmpty(cfg.Symbols, ",")
	if len(symbols) == 0 {
		log.Fatalf("-symbols is required")
	}

	startSec, err := parseDate(cfg.StartDate)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	stopSec, err := parseDate(cfg.StopDate)
	if err != nil {
		log.Fatalf("invalid -stop: %v", err)
	}

	windows, err := parseWindows(cfg.Windows)
	if err != nil {
		log.Fatalf("invalid -windows: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("shutdown signal received, cancelling replay...")
		cancel()
	}()

	var candleCount, tickCount, testCount int64

	openFn := func(name string) (*symbol.Symbol, error) {
		path := filepath.Join(cfg.StoreDir, name+".db")
		return symbol.Open(path, true, symbol.DefaultConfig())
	}

	engineCfg := replay.Config{
		Symbols:        symbols,
		StartDateSec:   startSec,
		StopDateSec:    stopSec,
		PreStartSec:    cfg.PreStartSec,
		TickPeriodSec:  cfg.TickPeriodSec,
		TimeframeSec:   cfg.TimeframeSec,
		UseNewTickMode: cfg.UseNewTickMode,
		Windows:        windows,
		Threads:        cfg.Threads,
	}

	engine := replay.New(engineCfg, openFn, replay.Callbacks{
		OnSymbol: func(s string) bool {
			obslog.LogEvent(ctx, "info", "replay_symbol_start", map[string]any{"symbol": s})
			return true
		},
		OnCandle: func(s string, tMs uint64, periodIDs []int, c model.Candle) {
			atomic.AddInt64(&candleCount, 1)
		},
		OnTick: func(s string, tMs uint64, periodIDs []int, t model.Tick) {
			atomic.AddInt64(&tickCount, 1)
		},
		OnTest: func(s string, tMs uint64, periodIDs []int) {
			atomic.AddInt64(&testCount, 1)
		},
		OnEndTestSymbol: func(s string) {
			obslog.LogEvent(ctx, "info", "replay_symbol_end", map[string]any{"symbol": s})
		},
		OnMsg: func(msg string) {
			obslog.LogEvent(ctx, "warn", "replay_msg", map[string]any{"message": msg})
		},
	})

	start := time.Now()
	if err := engine.Run(ctx); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	duration := time.Since(start)

	obslog.LogEvent(ctx, "info", "replay_complete", map[string]any{
		"symbols":     len(symbols),
		"candles":     atomic.LoadInt64(&candleCount),
		"ticks":       atomic.LoadInt64(&tickCount),
		"tests":       atomic.LoadInt64(&testCount),
		"duration_ms": duration.Milliseconds(),
	})
}

func parseFlags() cliConfig {
	var cfg cliConfig
	flag.StringVar(&cfg.StoreDir, "store-dir", "", "directory containing one .db file per symbol")
	flag.StringVar(&cfg.Symbols, "symbols", "", "comma-separated symbol list")
	flag.StringVar(&cfg.StartDate, "start", "", "replay start date, YYYY-MM-DD (UTC)")
	flag.StringVar(&cfg.StopDate, "stop", "", "replay stop date, YYYY-MM-DD (UTC)")
	flag.Int64Var(&cfg.PreStartSec, "pre-start-sec", 0, "warm-up margin before -start, in seconds")
	flag.Int64Var(&cfg.TickPeriodSec, "tick-period-sec", 1, "seconds between intra-day tick probes")
	flag.Int64Var(&cfg.TimeframeSec, "timeframe-sec", 60, "seconds per candle boundary")
	flag.BoolVar(&cfg.UseNewTickMode, "new-tick-mode", false, "fire on_test only on strictly newer ticks")
	flag.StringVar(&cfg.Windows, "windows", "", "comma-separated start:stop:id trade windows (seconds-of-day)")
	flag.IntVar(&cfg.Threads, "threads", 0, "replay thread count (0 = GOMAXPROCS)")
	flag.Parse()

	if cfg.StoreDir == "" {
		log.Fatalf("-store-dir is required")
	}
	return cfg
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDate(s string) (int64, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return t.Unix(), nil
}

func parseWindows(s string) ([]model.TimePeriod, error) {
	parts := splitNonEmpty(s, ",")
	windows := make([]model.TimePeriod, 0, len(parts))
	for _, p := range parts {
		fields := strings.Split(p, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("window %q must be start:stop:id", p)
		}
		start, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", p, err)
		}
		stop, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", p, err)
		}
		id, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", p, err)
		}
		windows = append(windows, model.TimePeriod{Start: start, Stop: stop, ID: id})
	}
	return windows, nil
}
