package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"macdbot/internal/logger"
	"macdbot/internal/market"
	"macdbot/internal/pkg/convert"
	"macdbot/internal/scheduler"

	"github.com/adshao/go-binance/v2/futures"
)

const maxHistoryLimit = 1500

// Source implements market.Source on the Binance USD-M futures API.
type Source struct {
	cfg    Config
	client *futures.Client

	mu           sync.Mutex
	candleCancel context.CancelFunc

	statsMu sync.Mutex
	stats   market.SourceStats
}

func NewSource(cfg Config) *Source {
	final := cfg.withDefaults()
	if final.Testnet {
		futures.UseTestnet = true
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	kls, err := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      convert.ParseFloat(kl.Open),
			High:      convert.ParseFloat(kl.High),
			Low:       convert.ParseFloat(kl.Low),
			Close:     convert.ParseFloat(kl.Close),
			Volume:    convert.ParseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if dur, ok := scheduler.ParseIntervalDuration(interval); ok {
		out = dropUnclosedKline(out, dur)
	}
	return out, nil
}

func (s *Source) Subscribe(ctx context.Context, symbol string, intervals []string, opts market.SubscribeOptions) (<-chan market.CandleEvent, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required for subscription")
	}
	mapping := buildSymbolIntervals(symbol, intervals)
	if len(mapping) == 0 {
		return nil, fmt.Errorf("no valid intervals for subscription")
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 512
	}
	out := make(chan market.CandleEvent, buffer)
	subCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.candleCancel != nil {
		s.candleCancel()
	}
	s.candleCancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(out)
		s.runKlineLoop(subCtx, mapping, out, opts)
	}()
	return out, nil
}

func (s *Source) runKlineLoop(ctx context.Context, mapping map[string][]string, out chan<- market.CandleEvent, opts market.SubscribeOptions) {
	delay := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		var errMu sync.Mutex
		var lastErr error
		handler := func(event *futures.WsKlineEvent) {
			ce, ok := convertKlineEvent(event)
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
			case out <- ce:
			default:
				logger.Warnf("[binance] kline channel full, drop %s %s", ce.Symbol, ce.Interval)
			}
		}
		errHandler := func(err error) {
			if err == nil {
				return
			}
			errMu.Lock()
			lastErr = err
			errMu.Unlock()
		}
		doneC, stopC, err := futures.WsCombinedKlineServeMultiInterval(mapping, handler, errHandler)
		if err != nil {
			s.recordSubscribeError(err)
			if opts.OnDisconnect != nil {
				opts.OnDisconnect(err)
			}
			if !sleepWithContext(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second
		if opts.OnConnect != nil {
			opts.OnConnect()
		}
		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
		}
		close(stopC)
		errMu.Lock()
		errCopy := lastErr
		errMu.Unlock()
		s.recordReconnect(errCopy)
		if opts.OnDisconnect != nil {
			opts.OnDisconnect(errCopy)
		}
		if !sleepWithContext(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
}

func (s *Source) Stats() market.SourceStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candleCancel != nil {
		s.candleCancel()
		s.candleCancel = nil
	}
	return nil
}

func (s *Source) recordSubscribeError(err error) {
	s.statsMu.Lock()
	s.stats.SubscribeErrors++
	if err != nil {
		s.stats.LastError = err.Error()
	}
	s.statsMu.Unlock()
}

func (s *Source) recordReconnect(err error) {
	s.statsMu.Lock()
	s.stats.Reconnects++
	if err != nil {
		s.stats.LastError = err.Error()
	}
	s.statsMu.Unlock()
}

func buildSymbolIntervals(symbol string, intervals []string) map[string][]string {
	out := make(map[string][]string)
	for _, iv := range intervals {
		interval := strings.ToLower(strings.TrimSpace(iv))
		if interval == "" {
			continue
		}
		out[symbol] = appendUnique(out[symbol], interval)
	}
	return out
}

func appendUnique(target []string, val string) []string {
	for _, existing := range target {
		if existing == val {
			return target
		}
	}
	return append(target, val)
}

func convertKlineEvent(ev *futures.WsKlineEvent) (market.CandleEvent, bool) {
	if ev == nil {
		return market.CandleEvent{}, false
	}
	k := ev.Kline
	return market.CandleEvent{
		Symbol:   ev.Symbol,
		Interval: k.Interval,
		Closed:   k.IsFinal,
		Candle: market.Candle{
			OpenTime:  k.StartTime,
			CloseTime: k.EndTime,
			Open:      convert.ParseFloat(k.Open),
			High:      convert.ParseFloat(k.High),
			Low:       convert.ParseFloat(k.Low),
			Close:     convert.ParseFloat(k.Close),
			Volume:    convert.ParseFloat(k.Volume),
			Trades:    k.TradeNum,
		},
	}, true
}

// dropUnclosedKline removes the trailing bar the REST endpoint includes for
// the still-forming interval.
func dropUnclosedKline(ks []market.Candle, interval time.Duration) []market.Candle {
	if len(ks) == 0 {
		return ks
	}
	last := ks[len(ks)-1]
	closeAt := time.UnixMilli(last.OpenTime).Add(interval)
	if time.Now().Before(closeAt) {
		return ks[:len(ks)-1]
	}
	return ks
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(cur time.Duration) time.Duration {
	next := cur * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}
