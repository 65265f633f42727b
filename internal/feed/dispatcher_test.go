package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"macdbot/internal/gateway/exchange"
	"macdbot/internal/indicator"
	"macdbot/internal/market"
	"macdbot/internal/strategy"
	"macdbot/internal/trader"
)

type stubExecutor struct{}

func (stubExecutor) Name() string { return "stub" }

func (stubExecutor) GetQuote(context.Context, string) (float64, error) {
	return 0, errors.New("not implemented")
}

func (stubExecutor) SubmitOrder(context.Context, exchange.OrderRequest) (*exchange.OrderResult, error) {
	return nil, errors.New("not implemented")
}

func (stubExecutor) SymbolFilters(context.Context, string) (exchange.SymbolFilters, error) {
	return exchange.SymbolFilters{}, errors.New("not implemented")
}

func (stubExecutor) SetLeverage(context.Context, string, int) error { return nil }

func (stubExecutor) SetMarginType(context.Context, string, string) error { return nil }

func (stubExecutor) GetBalance(context.Context) (exchange.Balance, error) {
	return exchange.Balance{}, nil
}

func testPolicy() strategy.BracketPolicy {
	return strategy.BracketPolicy{
		TakeProfit: strategy.TakeProfitPolicy{Type: strategy.PolicyATR, Value: 2.0},
	}
}

func newTestDispatcher() (*Dispatcher, *indicator.Engine) {
	engine := indicator.NewEngine(indicator.EngineConfig{
		ExecutionInterval: "1m",
		IndicatorInterval: "1h",
	})
	manager := trader.NewManager(trader.Config{
		Symbol:      "BTCUSDT",
		NotionalUSD: 50,
	}, stubExecutor{}, testPolicy)
	return NewDispatcher(engine, manager, "1m", "1h", time.Minute), engine
}

func candleEvent(interval string, openTime int64, close float64, closed bool) market.CandleEvent {
	return market.CandleEvent{
		Symbol:   "BTCUSDT",
		Interval: interval,
		Closed:   closed,
		Candle: market.Candle{
			OpenTime: openTime,
			Open:     close,
			High:     close,
			Low:      close,
			Close:    close,
		},
	}
}

func TestDispatchRoutesByInterval(t *testing.T) {
	d, engine := newTestDispatcher()
	ctx := context.Background()

	hour := int64(3_600_000)
	for i := 0; i < 60; i++ {
		d.Dispatch(ctx, candleEvent("1h", int64(i)*hour, 100+float64(i), true))
	}
	assert.True(t, engine.Warm())

	d.Dispatch(ctx, candleEvent("1m", 60*hour, 160, true))
	assert.NotEmpty(t, engine.Aligned())
}

func TestDispatchDropsUnclosedCandles(t *testing.T) {
	d, engine := newTestDispatcher()
	ctx := context.Background()

	hour := int64(3_600_000)
	for i := 0; i < 60; i++ {
		d.Dispatch(ctx, candleEvent("1h", int64(i)*hour, 100+float64(i), true))
	}
	d.Dispatch(ctx, candleEvent("1m", 60*hour, 160, false))
	assert.Empty(t, engine.Aligned())
}

func TestDispatchIgnoresUnknownInterval(t *testing.T) {
	d, engine := newTestDispatcher()
	d.Dispatch(context.Background(), candleEvent("4h", 0, 100, true))
	assert.False(t, engine.Warm())
}

func TestSignalEvaluationRateLimited(t *testing.T) {
	d, _ := newTestDispatcher()
	ctx := context.Background()

	clock := time.Unix(1_700_000_000, 0)
	d.now = func() time.Time { return clock }

	d.Dispatch(ctx, candleEvent("1m", 0, 100, true))
	first := d.lastSignal
	assert.Equal(t, clock, first)

	// within the cooldown window: no new evaluation
	clock = clock.Add(30 * time.Second)
	d.Dispatch(ctx, candleEvent("1m", 60_000, 101, true))
	assert.Equal(t, first, d.lastSignal)

	clock = clock.Add(31 * time.Second)
	d.Dispatch(ctx, candleEvent("1m", 120_000, 102, true))
	assert.Equal(t, clock, d.lastSignal)
}
