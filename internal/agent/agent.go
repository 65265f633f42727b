package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"macdbot/internal/feed"
	"macdbot/internal/indicator"
	"macdbot/internal/logger"
	"macdbot/internal/market"
	"macdbot/internal/trader"
)

// State is the lifecycle of the agent handle.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

var ErrAlreadyRunning = errors.New("agent already running")

// Config carries the stream subscription parameters.
type Config struct {
	Symbol            string
	ExecutionInterval string
	IndicatorInterval string

	// PreheatBars primes the indicator series from REST history at start
	// so signals don't wait a full warm-up of live candles. 0 disables.
	PreheatBars int
}

// cached candles kept per timeframe for the control surface
const maxCachedKlines = 1000

// Agent owns the background loop: it consumes the market feed and hands
// every event to the dispatcher on a single goroutine. Stopping the agent
// stops feed consumption only; open positions and their bracket orders
// remain live on the exchange.
type Agent struct {
	cfg        Config
	source     market.Source
	engine     *indicator.Engine
	dispatcher *feed.Dispatcher
	manager    *trader.Manager
	klines     market.KlineStore

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	lastErr   string
}

func New(cfg Config, source market.Source, engine *indicator.Engine, dispatcher *feed.Dispatcher, manager *trader.Manager) *Agent {
	return &Agent{
		cfg:        cfg,
		source:     source,
		engine:     engine,
		dispatcher: dispatcher,
		manager:    manager,
		klines:     market.NewMemoryKlineStore(),
		state:      StateCreated,
	}
}

// Start configures the account, preheats indicator series and begins
// consuming the feed. Safe to call again after Stop.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateRunning {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.state = StateRunning
	a.startedAt = time.Now()
	a.lastErr = ""
	a.mu.Unlock()

	a.manager.ConfigureAccount(runCtx)
	a.preheat(runCtx)

	intervals := []string{a.cfg.ExecutionInterval, a.cfg.IndicatorInterval}
	events, err := a.source.Subscribe(runCtx, a.cfg.Symbol, intervals, market.SubscribeOptions{
		OnConnect: func() {
			logger.Infof("feed connected: %s %v", a.cfg.Symbol, intervals)
		},
		OnDisconnect: func(err error) {
			if err != nil {
				a.setLastError(err)
				logger.Warnf("feed disconnected: %v", err)
			}
		},
	})
	if err != nil {
		cancel()
		a.mu.Lock()
		a.state = StateStopped
		a.lastErr = err.Error()
		close(a.done)
		a.mu.Unlock()
		return fmt.Errorf("subscribe feed: %w", err)
	}

	go a.consume(runCtx, events)
	logger.Infof("agent started for %s (%s/%s)", a.cfg.Symbol, a.cfg.ExecutionInterval, a.cfg.IndicatorInterval)
	return nil
}

func (a *Agent) consume(ctx context.Context, events <-chan market.CandleEvent) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Closed {
				_ = a.klines.Put(ctx, ev.Symbol, ev.Interval, []market.Candle{ev.Candle}, maxCachedKlines)
			}
			a.dispatcher.Dispatch(ctx, ev)
		}
	}
}

// preheat loads recent history for both timeframes directly into the
// indicator engine. No ticks or signals fire for historical candles.
func (a *Agent) preheat(ctx context.Context) {
	if a.cfg.PreheatBars <= 0 {
		return
	}
	for _, interval := range []string{a.cfg.IndicatorInterval, a.cfg.ExecutionInterval} {
		candles, err := a.source.FetchHistory(ctx, a.cfg.Symbol, interval, a.cfg.PreheatBars)
		if err != nil {
			logger.Warnf("preheat %s %s failed: %v", a.cfg.Symbol, interval, err)
			continue
		}
		_ = a.klines.Put(ctx, a.cfg.Symbol, interval, candles, maxCachedKlines)
		for _, c := range candles {
			a.engine.Ingest(market.CandleEvent{
				Symbol:   a.cfg.Symbol,
				Interval: interval,
				Closed:   true,
				Candle:   c,
			})
		}
		logger.Infof("preheated %d %s candles for %s", len(candles), interval, a.cfg.Symbol)
	}
}

// Stop cancels feed consumption and joins the consumer goroutine. Open
// positions are deliberately left untouched.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.state != StateRunning {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	cancel()
	<-done

	a.mu.Lock()
	a.state = StateStopped
	a.mu.Unlock()
	logger.Infof("agent stopped; open positions remain live on the exchange")
}

func (a *Agent) setLastError(err error) {
	a.mu.Lock()
	a.lastErr = err.Error()
	a.mu.Unlock()
}

// Status is the control-surface view of the agent.
type Status struct {
	State         State   `json:"state"`
	Running       bool    `json:"running"`
	ActiveCount   int     `json:"active_count"`
	ClosedCount   int     `json:"closed_count"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	LastError     string  `json:"last_error,omitempty"`

	FeedReconnects int `json:"feed_reconnects"`
}

func (a *Agent) Status() Status {
	a.mu.Lock()
	state := a.state
	startedAt := a.startedAt
	lastErr := a.lastErr
	a.mu.Unlock()

	active, closed := a.manager.Counts()
	st := Status{
		State:       state,
		Running:     state == StateRunning,
		ActiveCount: active,
		ClosedCount: closed,
		LastError:   lastErr,
	}
	if state == StateRunning {
		st.UptimeSeconds = time.Since(startedAt).Seconds()
	}
	if a.source != nil {
		st.FeedReconnects = a.source.Stats().Reconnects
	}
	return st
}

// Manager exposes the position manager for the control surface.
func (a *Agent) Manager() *trader.Manager { return a.manager }

// Klines returns the cached candles for one of the subscribed timeframes,
// newest last, at most limit entries.
func (a *Agent) Klines(ctx context.Context, interval string, limit int) ([]market.Candle, error) {
	candles, err := a.klines.Get(ctx, a.cfg.Symbol, interval)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}
