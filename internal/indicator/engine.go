package indicator

import (
	"strings"
	"sync"

	"macdbot/internal/market"
	"macdbot/internal/types"

	talib "github.com/markcheno/go-talib"
)

// EngineConfig carries indicator periods and the two timeframes the engine
// tracks: the fine execution interval and the coarse indicator interval.
type EngineConfig struct {
	ExecutionInterval string
	IndicatorInterval string

	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ATRPeriod  int

	// series bounds; when a series grows past MaxSeries it is trimmed to TrimTo
	MaxSeries int
	TrimTo    int
}

func (c EngineConfig) withDefaults() EngineConfig {
	c.ExecutionInterval = strings.ToLower(strings.TrimSpace(c.ExecutionInterval))
	c.IndicatorInterval = strings.ToLower(strings.TrimSpace(c.IndicatorInterval))
	if c.MACDFast <= 0 {
		c.MACDFast = 12
	}
	if c.MACDSlow <= 0 {
		c.MACDSlow = 26
	}
	if c.MACDSignal <= 0 {
		c.MACDSignal = 9
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.MaxSeries <= 0 {
		c.MaxSeries = 1000
	}
	if c.TrimTo <= 0 || c.TrimTo > c.MaxSeries {
		c.TrimTo = c.MaxSeries / 2
	}
	return c
}

// AlignedFrame is the latest coarse indicator column set carried forward
// onto a fine-timeframe timestamp. Valid is false until the underlying
// indicator values are past their warm-up window.
type AlignedFrame struct {
	Time      int64
	Close     float64
	MACD      float64
	Signal    float64
	Histogram float64
	ATR       float64
	Valid     bool
}

type indicatorColumns struct {
	macd      []float64
	signal    []float64
	histogram []float64
	atr       []float64
	validFrom int
}

// Engine maintains the two candle series and the MACD/ATR column set, and
// produces directional signals on MACD/signal-line crosses.
type Engine struct {
	cfg EngineConfig

	mu      sync.Mutex
	fine    []market.Candle
	coarse  []market.Candle
	columns indicatorColumns
	aligned []AlignedFrame

	// fine timestamp of the frame a signal was last emitted for; a replay
	// of the same frame pair never re-emits
	lastEmit int64
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Ingest appends a candle to the series matching the event's timeframe.
// Unclosed candles and unknown timeframes are dropped. Coarse closes
// trigger a full recompute once past warm-up; both paths refresh the
// aligned frame sequence.
func (e *Engine) Ingest(ev market.CandleEvent) {
	if !ev.Closed {
		return
	}
	interval := strings.ToLower(strings.TrimSpace(ev.Interval))
	e.mu.Lock()
	defer e.mu.Unlock()
	switch interval {
	case e.cfg.ExecutionInterval:
		e.fine = appendBounded(e.fine, ev.Candle, e.cfg.MaxSeries, e.cfg.TrimTo)
		e.realign()
	case e.cfg.IndicatorInterval:
		e.coarse = appendBounded(e.coarse, ev.Candle, e.cfg.MaxSeries, e.cfg.TrimTo)
		if len(e.coarse) > e.cfg.MACDSlow+10 {
			e.recompute()
			e.realign()
		}
	}
}

func appendBounded(series []market.Candle, c market.Candle, max, trimTo int) []market.Candle {
	n := len(series)
	if n > 0 && series[n-1].OpenTime == c.OpenTime {
		series[n-1] = c
		return series
	}
	if n > 0 && c.OpenTime < series[n-1].OpenTime {
		return series
	}
	series = append(series, c)
	if len(series) > max {
		trimmed := make([]market.Candle, trimTo)
		copy(trimmed, series[len(series)-trimTo:])
		series = trimmed
	}
	return series
}

// recompute replaces the full indicator column set from the coarse series.
// Wholesale recomputation is fine because the series length is bounded.
func (e *Engine) recompute() {
	n := len(e.coarse)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range e.coarse {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	macd, signal, hist := talib.Macd(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	atr := talib.Atr(highs, lows, closes, e.cfg.ATRPeriod)

	validFrom := e.cfg.MACDSlow + e.cfg.MACDSignal - 2
	if a := e.cfg.ATRPeriod; a > validFrom {
		validFrom = a
	}
	e.columns = indicatorColumns{
		macd:      macd,
		signal:    signal,
		histogram: hist,
		atr:       atr,
		validFrom: validFrom,
	}
}

// realign re-indexes the latest indicator values onto the fine series'
// timestamps: each fine timestamp carries the last coarse value at or
// before it. No lookahead.
func (e *Engine) realign() {
	if len(e.fine) == 0 || len(e.columns.macd) == 0 {
		e.aligned = nil
		return
	}
	out := make([]AlignedFrame, 0, len(e.fine))
	ci := -1
	for _, fc := range e.fine {
		for ci+1 < len(e.coarse) && e.coarse[ci+1].OpenTime <= fc.OpenTime {
			ci++
		}
		frame := AlignedFrame{Time: fc.OpenTime, Close: fc.Close}
		if ci >= 0 && ci < len(e.columns.macd) {
			frame.MACD = e.columns.macd[ci]
			frame.Signal = e.columns.signal[ci]
			frame.Histogram = e.columns.histogram[ci]
			frame.ATR = e.columns.atr[ci]
			frame.Valid = ci >= e.columns.validFrom
		}
		out = append(out, frame)
	}
	e.aligned = out
}

// GenerateSignal examines the two most recent aligned frames and emits a
// signal on a MACD/signal-line cross. A flat state never emits; a frame
// pair already evaluated for emission never re-emits.
func (e *Engine) GenerateSignal() *types.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.aligned)
	if n < 2 {
		return nil
	}
	cur := e.aligned[n-1]
	prev := e.aligned[n-2]
	if !cur.Valid || !prev.Valid {
		return nil
	}
	if cur.Time == e.lastEmit {
		return nil
	}
	price := e.fine[len(e.fine)-1].Close

	var dir types.Direction
	switch {
	case cur.MACD > cur.Signal && prev.MACD <= prev.Signal:
		dir = types.Long
	case cur.MACD < cur.Signal && prev.MACD >= prev.Signal:
		dir = types.Short
	default:
		return nil
	}
	e.lastEmit = cur.Time
	return &types.Signal{
		Direction: dir,
		Price:     price,
		Timestamp: cur.Time,
		ATR:       cur.ATR,
	}
}

// Aligned returns a copy of the current aligned frame sequence.
func (e *Engine) Aligned() []AlignedFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]AlignedFrame, len(e.aligned))
	copy(out, e.aligned)
	return out
}

// Warm reports whether the coarse series has passed the minimum warm-up.
func (e *Engine) Warm() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.coarse) > e.cfg.MACDSlow+10 && len(e.columns.macd) > 0
}
