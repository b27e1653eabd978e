package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbol.db")
	s, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteReadCandles(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	err := s.WriteCandles(ctx, map[uint64][]byte{100: []byte("a"), 200: []byte("b")})
	require.NoError(t, err)

	v, ok, err := s.ReadCandle(100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("a"), v)

	_, ok, err = s.ReadCandle(999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMinMaxKey(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, _, ok := s.MinMaxCandleKey()
	require.False(t, ok)

	require.NoError(t, s.WriteCandles(ctx, map[uint64][]byte{300: []byte("x"), 100: []byte("y"), 200: []byte("z")}))

	min, max, ok := s.MinMaxCandleKey()
	require.True(t, ok)
	require.Equal(t, uint64(100), min)
	require.Equal(t, uint64(300), max)
}

func TestRemoveAndRemoveAll(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.WriteTicks(ctx, map[uint64][]byte{1: []byte("a"), 2: []byte("b")}))

	require.NoError(t, s.RemoveTick(ctx, 1))
	_, ok, _ := s.ReadTick(1)
	require.False(t, ok)

	require.NoError(t, s.RemoveAllTicks(ctx))
	_, ok, _ = s.ReadTick(2)
	require.False(t, ok)
}

func TestMetaStrAndInt(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, ok := s.GetStr("SYMBOL_NAME")
	require.False(t, ok)

	require.NoError(t, s.SetStr(ctx, "SYMBOL_NAME", "EURUSD"))
	v, ok := s.GetStr("SYMBOL_NAME")
	require.True(t, ok)
	require.Equal(t, "EURUSD", v)

	require.NoError(t, s.SetInt(ctx, "SYMBOL_DIGITS", 5))
	d, ok := s.GetInt("SYMBOL_DIGITS")
	require.True(t, ok)
	require.Equal(t, int64(5), d)
}

func TestReadOnlyRefusesMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbol.db")
	rw, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	require.NoError(t, rw.SetStr(context.Background(), "SYMBOL_NAME", "EURUSD"))
	require.NoError(t, rw.Close())

	cfg := DefaultConfig(path)
	cfg.ReadOnly = true
	ro, err := Open(cfg)
	require.NoError(t, err)
	defer ro.Close()

	require.True(t, ro.ReadOnly())
	err = ro.WriteCandles(context.Background(), map[uint64][]byte{1: []byte("x")})
	require.Error(t, err)

	v, ok := ro.GetStr("SYMBOL_NAME")
	require.True(t, ok)
	require.Equal(t, "EURUSD", v)
}
