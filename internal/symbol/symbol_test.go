package symbol

import (
	"context"
	"path/filepath"
	"testing"

	"tradedb/internal/model"
	"tradedb/internal/xerrors"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, cfg Config) *Symbol {
	t.Helper()
	path := filepath.Join(t.TempDir(), "EURUSD.db")
	s, err := Open(path, false, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteThenReadTicksNoMerge(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, DefaultConfig())
	require.NoError(t, s.SetInfoDigits(ctx, 5))

	require.NoError(t, s.StartWrite())
	require.NoError(t, s.WriteTick(model.Tick{Bid: 1.08000, Ask: 1.08010, TMs: 1_700_000_000_000}))
	require.NoError(t, s.WriteTick(model.Tick{Bid: 1.08002, Ask: 1.08012, TMs: 1_700_000_001_500}))
	require.NoError(t, s.StopWrite(ctx))

	tick, ok := s.GetTickMs(1_700_000_001_000)
	require.True(t, ok)
	require.InDelta(t, 1.08000, tick.Bid, 1e-5)
	require.Equal(t, uint64(1_700_000_000_000), tick.TMs)

	next, ok := s.GetNextTickMs(1_700_000_000_500, 1_700_000_010_000)
	require.True(t, ok)
	require.InDelta(t, 1.08002, next.Bid, 1e-5)
	require.Equal(t, uint64(1_700_000_001_500), next.TMs)
}

func TestMergePreservesOldSamples(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MergeOnWrite = true
	s := openTemp(t, cfg)
	require.NoError(t, s.SetInfoDigits(ctx, 5))

	dayStart := uint64(0)
	require.NoError(t, s.StartWrite())
	require.NoError(t, s.WriteCandle(model.Candle{Open: 1.1, High: 1.1, Low: 1.1, Close: 1.1, Volume: 1, Timestamp: dayStart + 10*model.SecondsPerMinute}))
	require.NoError(t, s.StopWrite(ctx))

	require.NoError(t, s.StartWrite())
	require.NoError(t, s.WriteCandle(model.Candle{Open: 1.2, High: 1.2, Low: 1.2, Close: 1.2, Volume: 2, Timestamp: dayStart + 20*model.SecondsPerMinute}))
	require.NoError(t, s.WriteCandle(model.Candle{Open: 1.3, High: 1.3, Low: 1.3, Close: 1.3, Volume: 3, Timestamp: dayStart + 10*model.SecondsPerMinute}))
	require.NoError(t, s.StopWrite(ctx))

	c10, ok := s.GetCandle(dayStart+10*model.SecondsPerMinute, model.M1, model.SourceFromCandles)
	require.True(t, ok)
	require.InDelta(t, 1.3, c10.Close, 1e-9)

	c20, ok := s.GetCandle(dayStart+20*model.SecondsPerMinute, model.M1, model.SourceFromCandles)
	require.True(t, ok)
	require.InDelta(t, 1.2, c20.Close, 1e-9)

	_, ok = s.GetCandle(dayStart+15*model.SecondsPerMinute, model.M1, model.SourceFromCandles)
	require.False(t, ok)
}

func TestRemoveAndMinMaxDate(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, DefaultConfig())
	require.NoError(t, s.SetInfoDigits(ctx, 5))

	require.NoError(t, s.StartWrite())
	require.NoError(t, s.WriteCandle(model.Candle{Open: 1.1, High: 1.1, Low: 1.1, Close: 1.1, Volume: 1, Timestamp: 10 * model.SecondsPerMinute}))
	require.NoError(t, s.StopWrite(ctx))

	min, max, ok := s.GetMinMaxDate(false)
	require.True(t, ok)
	require.Equal(t, uint64(0), min)
	require.Equal(t, uint64(model.SecondsPerDay), max)

	require.NoError(t, s.RemoveAll(ctx))
	_, _, ok = s.GetMinMaxDate(false)
	require.False(t, ok)
}

func TestReadOnlyOpenRefusesWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "EURUSD.db")
	rw, err := Open(path, false, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, rw.SetInfoName(ctx, "EURUSD"))
	require.NoError(t, rw.Close())

	ro, err := Open(path, true, DefaultConfig())
	require.NoError(t, err)
	defer ro.Close()

	name, ok := ro.GetInfoName()
	require.True(t, ok)
	require.Equal(t, "EURUSD", name)

	require.ErrorIs(t, ro.StartWrite(), xerrors.ErrReadOnly)
	require.ErrorIs(t, ro.WriteTick(model.Tick{Bid: 1.1, Ask: 1.1002, TMs: 1000}), xerrors.ErrReadOnly)
	require.ErrorIs(t, ro.WriteCandle(model.Candle{Close: 1.1, Timestamp: 60}), xerrors.ErrReadOnly)
	require.ErrorIs(t, ro.StopWrite(ctx), xerrors.ErrReadOnly)
}
