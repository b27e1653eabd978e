package entropy

import (
	"bytes"
	"testing"

	"tradedb/internal/dictionary"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	payload := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 256)

	frame, err := c.Compress(dictionary.Candles, payload)
	require.NoError(t, err)

	got, err := c.Decompress(dictionary.Candles, frame)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDecompressRejectsDictionaryMismatch(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	frame, err := c.Compress(dictionary.Candles, []byte("hello"))
	require.NoError(t, err)

	_, err = c.Decompress(dictionary.Ticks, frame)
	require.Error(t, err)
}

func TestDecompressRejectsTruncatedFrame(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Decompress(dictionary.Candles, []byte{0x00})
	require.Error(t, err)
}

func TestCompressLevelConfigurable(t *testing.T) {
	payload := bytes.Repeat([]byte{0x10, 0x20, 0x30, 0x40, 0x50}, 512)

	fast, err := New(Config{Level: zstd.SpeedFastest})
	require.NoError(t, err)
	defer fast.Close()

	best, err := New(Config{Level: zstd.SpeedBestCompression})
	require.NoError(t, err)
	defer best.Close()

	fastFrame, err := fast.Compress(dictionary.Candles, payload)
	require.NoError(t, err)
	bestFrame, err := best.Compress(dictionary.Candles, payload)
	require.NoError(t, err)

	gotFast, err := fast.Decompress(dictionary.Candles, fastFrame)
	require.NoError(t, err)
	require.Equal(t, payload, gotFast)

	gotBest, err := best.Decompress(dictionary.Candles, bestFrame)
	require.NoError(t, err)
	require.Equal(t, payload, gotBest)
}

func TestNewDefaultsZeroLevelToBestCompression(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	defer c.Close()

	frame, err := c.Compress(dictionary.Ticks, []byte("level defaults to best compression"))
	require.NoError(t, err)
	got, err := c.Decompress(dictionary.Ticks, frame)
	require.NoError(t, err)
	require.Equal(t, []byte("level defaults to best compression"), got)
}

func TestCompressEmptyPayload(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	frame, err := c.Compress(dictionary.Ticks, nil)
	require.NoError(t, err)

	got, err := c.Decompress(dictionary.Ticks, frame)
	require.NoError(t, err)
	require.Empty(t, got)
}
