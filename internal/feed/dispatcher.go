package feed

import (
	"context"
	"strings"
	"time"

	"macdbot/internal/indicator"
	"macdbot/internal/logger"
	"macdbot/internal/market"
	"macdbot/internal/trader"
)

// Dispatcher routes timeframe-tagged candle events. Execution-interval
// closes feed the fine series, trigger exit checks, and (rate-limited)
// signal generation; indicator-interval closes feed the coarse series.
// Everything runs on the caller's goroutine so position mutations stay
// serialized.
type Dispatcher struct {
	engine  *indicator.Engine
	manager *trader.Manager

	executionInterval string
	indicatorInterval string

	signalEvery time.Duration
	lastSignal  time.Time
	now         func() time.Time
}

func NewDispatcher(engine *indicator.Engine, manager *trader.Manager, executionInterval, indicatorInterval string, signalEvery time.Duration) *Dispatcher {
	if signalEvery <= 0 {
		signalEvery = time.Minute
	}
	return &Dispatcher{
		engine:            engine,
		manager:           manager,
		executionInterval: strings.ToLower(strings.TrimSpace(executionInterval)),
		indicatorInterval: strings.ToLower(strings.TrimSpace(indicatorInterval)),
		signalEvery:       signalEvery,
		now:               time.Now,
	}
}

// Dispatch classifies one feed event. Unclosed candles and unrecognized
// timeframes are dropped silently.
func (d *Dispatcher) Dispatch(ctx context.Context, ev market.CandleEvent) {
	if !ev.Closed {
		return
	}
	switch strings.ToLower(strings.TrimSpace(ev.Interval)) {
	case d.executionInterval:
		d.engine.Ingest(ev)
		d.manager.OnPriceTick(ctx, ev.Candle.Close)
		d.maybeSignal(ctx)
	case d.indicatorInterval:
		d.engine.Ingest(ev)
	default:
	}
}

func (d *Dispatcher) maybeSignal(ctx context.Context) {
	now := d.now()
	if now.Sub(d.lastSignal) < d.signalEvery {
		return
	}
	d.lastSignal = now
	sig := d.engine.GenerateSignal()
	if sig == nil {
		return
	}
	logger.Infof("signal generated: %s @ %.2f", sig.Direction, sig.Price)
	if err := d.manager.OnSignal(ctx, sig); err != nil {
		logger.Warnf("signal not executed: %v", err)
	}
}
