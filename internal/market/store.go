package market

import (
	"context"
	"errors"
	"sync"
)

// KlineStore holds bounded per-symbol, per-interval candle series.
type KlineStore interface {
	Get(ctx context.Context, symbol, interval string) ([]Candle, error)
	Put(ctx context.Context, symbol, interval string, klines []Candle, max int) error
}

// MemoryKlineStore keeps series in memory. When a series exceeds max it is
// trimmed to half of max; older candles are evictable, never re-derived.
type MemoryKlineStore struct {
	mu   sync.RWMutex
	data map[string][]Candle
}

func NewMemoryKlineStore() *MemoryKlineStore {
	return &MemoryKlineStore{data: make(map[string][]Candle)}
}

func key(symbol, interval string) string { return symbol + "@" + interval }

func (s *MemoryKlineStore) Put(ctx context.Context, symbol, interval string, ks []Candle, max int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol and interval are required")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = 1000
	}
	k := key(symbol, interval)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.data[k]
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		if n > 0 && candle.OpenTime < cur[n-1].OpenTime {
			// out-of-order delivery; at-least-once feeds can replay
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > max {
		keep := max / 2
		trimmed := make([]Candle, keep)
		copy(trimmed, cur[len(cur)-keep:])
		cur = trimmed
	}
	s.data[k] = cur
	return nil
}

func (s *MemoryKlineStore) Get(ctx context.Context, symbol, interval string) ([]Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.data[key(symbol, interval)]
	out := make([]Candle, len(cur))
	copy(out, cur)
	return out, nil
}
