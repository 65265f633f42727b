package market

import "context"

// CandleEvent is a timeframe-tagged kline update from the streaming feed.
// Closed reports whether the bar is final; consumers drop unclosed bars.
type CandleEvent struct {
	Symbol   string
	Interval string
	Closed   bool
	Candle   Candle
}

type SubscribeOptions struct {
	Buffer       int
	OnConnect    func()
	OnDisconnect func(error)
}

type SourceStats struct {
	Reconnects      int
	SubscribeErrors int
	LastError       string
}

// Source delivers candles, historical and live. Reconnect-on-drop is the
// source's responsibility; delivery is at-least-once.
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	Subscribe(ctx context.Context, symbol string, intervals []string, opts SubscribeOptions) (<-chan CandleEvent, error)

	Stats() SourceStats

	Close() error
}
