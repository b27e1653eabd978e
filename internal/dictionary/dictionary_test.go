package dictionary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesReturnsDistinctNonEmptyDictionaries(t *testing.T) {
	candles := Bytes(Candles)
	ticks := Bytes(Ticks)

	require.NotEmpty(t, candles)
	require.NotEmpty(t, ticks)
	require.NotEqual(t, candles, ticks)
}

func TestBytesIsDeterministic(t *testing.T) {
	require.Equal(t, Bytes(Candles), buildCandlesDict())
	require.Equal(t, Bytes(Ticks), buildTicksDict())
}
