package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkCandles(from, n int) []Candle {
	out := make([]Candle, n)
	for i := 0; i < n; i++ {
		out[i] = Candle{OpenTime: int64(from + i), Close: float64(from + i)}
	}
	return out
}

func TestMemoryKlineStorePutGet(t *testing.T) {
	s := NewMemoryKlineStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "BTCUSDT", "1m", mkCandles(0, 5), 100))
	got, err := s.Get(ctx, "BTCUSDT", "1m")
	require.NoError(t, err)
	assert.Len(t, got, 5)

	// per symbol and per interval isolation
	other, err := s.Get(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryKlineStoreDedupesReplay(t *testing.T) {
	s := NewMemoryKlineStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "BTCUSDT", "1m", mkCandles(0, 5), 100))

	// same last candle delivered again with a new close
	require.NoError(t, s.Put(ctx, "BTCUSDT", "1m", []Candle{{OpenTime: 4, Close: 42}}, 100))
	got, _ := s.Get(ctx, "BTCUSDT", "1m")
	assert.Len(t, got, 5)
	assert.InDelta(t, 42.0, got[4].Close, 1e-9)

	// out-of-order replay dropped
	require.NoError(t, s.Put(ctx, "BTCUSDT", "1m", []Candle{{OpenTime: 1, Close: 1}}, 100))
	got, _ = s.Get(ctx, "BTCUSDT", "1m")
	assert.Len(t, got, 5)
}

func TestMemoryKlineStoreTrimsToHalf(t *testing.T) {
	s := NewMemoryKlineStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "BTCUSDT", "1m", mkCandles(0, 101), 100))
	got, _ := s.Get(ctx, "BTCUSDT", "1m")
	require.Len(t, got, 50)
	assert.Equal(t, int64(100), got[len(got)-1].OpenTime)
	assert.Equal(t, int64(51), got[0].OpenTime)
}

func TestMemoryKlineStoreRejectsEmptyKeys(t *testing.T) {
	s := NewMemoryKlineStore()
	assert.Error(t, s.Put(context.Background(), "", "1m", mkCandles(0, 1), 10))
	assert.Error(t, s.Put(context.Background(), "BTCUSDT", "", mkCandles(0, 1), 10))
}
