package replay

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"tradedb/internal/model"
	"tradedb/internal/symbol"

	"github.com/stretchr/testify/require"
)

var errFakeOpenFailure = errors.New("cannot open")

// seedSymbol writes one tick inside a [10:15:00, 10:15:05] window on a
// fixed day and returns the store path (spec §8 scenario 6).
func seedSymbol(t *testing.T, dir, name string, tickTMs uint64) string {
	t.Helper()
	path := filepath.Join(dir, name+".db")
	s, err := symbol.Open(path, false, symbol.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.SetInfoDigits(context.Background(), 5))

	require.NoError(t, s.StartWrite())
	require.NoError(t, s.WriteTick(model.Tick{Bid: 1.1, Ask: 1.1002, TMs: tickTMs}))
	require.NoError(t, s.StopWrite(context.Background()))
	require.NoError(t, s.Close())
	return path
}

func TestReplayNewTickModeFiresOnTestOnce(t *testing.T) {
	dir := t.TempDir()
	dayStartSec := int64(1_700_000_000)
	dayStartSec -= dayStartSec % model.SecondsPerDay

	windowStartSec := 10*3600 + 15*60
	// Align the tick exactly on a tick-period probe boundary so the grid's
	// very first probe of the window already observes it.
	tickTMs := uint64(dayStartSec+int64(windowStartSec)) * 1000

	path := seedSymbol(t, dir, "EURUSD", tickTMs)

	openFn := func(name string) (*symbol.Symbol, error) {
		return symbol.Open(path, true, symbol.DefaultConfig())
	}

	var mu sync.Mutex
	var onTestCalls []uint64

	cfg := Config{
		Symbols:        []string{"EURUSD"},
		StartDateSec:   dayStartSec,
		StopDateSec:    dayStartSec,
		TickPeriodSec:  1,
		TimeframeSec:   60,
		UseNewTickMode: true,
		Windows:        []model.TimePeriod{{Start: windowStartSec, Stop: windowStartSec + 5, ID: 2}},
		Threads:        1,
	}

	engine := New(cfg, openFn, Callbacks{
		OnTest: func(s string, tMs uint64, periodIDs []int) {
			mu.Lock()
			onTestCalls = append(onTestCalls, tMs)
			mu.Unlock()
		},
	})

	err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, onTestCalls, 1)
	require.Equal(t, tickTMs, onTestCalls[0])
}

func TestReplayFailsFastOnUnopenableSymbol(t *testing.T) {
	openFn := func(name string) (*symbol.Symbol, error) {
		return nil, errFakeOpenFailure
	}
	engine := New(Config{Symbols: []string{"MISSING"}, Threads: 1}, openFn, Callbacks{})
	err := engine.Run(context.Background())
	require.Error(t, err)
}
