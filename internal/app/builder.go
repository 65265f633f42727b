package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"macdbot/internal/agent"
	"macdbot/internal/config"
	"macdbot/internal/feed"
	"macdbot/internal/gateway/binance"
	"macdbot/internal/gateway/exchange"
	"macdbot/internal/indicator"
	"macdbot/internal/logger"
	"macdbot/internal/market"
	"macdbot/internal/store/csvlog"
	"macdbot/internal/store/eventlog"
	"macdbot/internal/store/gormstore"
	"macdbot/internal/strategy"
	"macdbot/internal/trader"
	livehttp "macdbot/internal/transport/http/live"
)

type AppBuilder struct {
	cfg *config.Config

	sourceOverride   market.Source
	executorOverride exchange.Executor
	tradeLogOverride trader.TradeLog
	storeOverride    trader.PositionStore
	journalOverride  trader.EventJournal
}

type AppBuilderOption func(*AppBuilder)

func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) { b.sourceOverride = src }
}

func WithExecutor(exec exchange.Executor) AppBuilderOption {
	return func(b *AppBuilder) { b.executorOverride = exec }
}

func WithTradeLog(log trader.TradeLog) AppBuilderOption {
	return func(b *AppBuilder) { b.tradeLogOverride = log }
}

func WithPositionStore(store trader.PositionStore) AppBuilderOption {
	return func(b *AppBuilder) { b.storeOverride = store }
}

func WithEventJournal(journal trader.EventJournal) AppBuilderOption {
	return func(b *AppBuilder) { b.journalOverride = journal }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	gwCfg := binance.Config{
		APIKey:      cfg.Exchange.APIKey,
		APISecret:   cfg.Exchange.APISecret,
		Testnet:     cfg.Exchange.Testnet,
		RESTBaseURL: cfg.Exchange.RESTBaseURL,
		HTTPTimeout: time.Duration(cfg.Exchange.HTTPTimeoutSeconds) * time.Second,
	}
	source := b.sourceOverride
	if source == nil {
		source = binance.NewSource(gwCfg)
	}
	executor := b.executorOverride
	if executor == nil {
		executor = binance.NewExecutor(gwCfg)
	}

	engine := indicator.NewEngine(indicator.EngineConfig{
		ExecutionInterval: cfg.Indicator.ExecutionInterval,
		IndicatorInterval: cfg.Indicator.IndicatorInterval,
		MACDFast:          cfg.Indicator.MACDFast,
		MACDSlow:          cfg.Indicator.MACDSlow,
		MACDSignal:        cfg.Indicator.MACDSignal,
		ATRPeriod:         cfg.Indicator.ATRPeriod,
	})

	registry, policyFn, err := buildBracketPolicy(cfg.Bracket)
	if err != nil {
		return nil, err
	}

	tradeLog, posStore, journal, stores, err := b.buildStores(cfg.Store)
	if err != nil {
		return nil, err
	}

	var managerOpts []trader.Option
	if tradeLog != nil {
		managerOpts = append(managerOpts, trader.WithTradeLog(tradeLog))
	}
	if posStore != nil {
		managerOpts = append(managerOpts, trader.WithPositionStore(posStore))
	}
	if journal != nil {
		managerOpts = append(managerOpts, trader.WithEventJournal(journal))
	}
	manager := trader.NewManager(trader.Config{
		Symbol:         cfg.Trading.Symbol,
		NotionalUSD:    cfg.Trading.NotionalUSD,
		Leverage:       cfg.Trading.Leverage,
		MarginType:     cfg.Trading.MarginType,
		MaxConcurrent:  cfg.Trading.MaxConcurrent,
		CommissionRate: cfg.Trading.CommissionRate,
		OrderTimeout:   time.Duration(cfg.Trading.OrderTimeoutSeconds) * time.Second,
	}, executor, policyFn, managerOpts...)

	dispatcher := feed.NewDispatcher(engine, manager,
		cfg.Indicator.ExecutionInterval, cfg.Indicator.IndicatorInterval,
		time.Duration(cfg.Trading.SignalCooldownSecs)*time.Second)

	ag := agent.New(agent.Config{
		Symbol:            cfg.Trading.Symbol,
		ExecutionInterval: cfg.Indicator.ExecutionInterval,
		IndicatorInterval: cfg.Indicator.IndicatorInterval,
		PreheatBars:       cfg.Indicator.PreheatBars,
	}, source, engine, dispatcher, manager)

	httpServer, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr: cfg.App.HTTPAddr,
		Router: &livehttp.Router{
			Symbol:    cfg.Trading.Symbol,
			Agent:     ag,
			Executor:  executor,
			Store:     stores.positions,
			Events:    stores.events,
			Templates: registry,
		},
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		agent:    ag,
		source:   source,
		liveHTTP: httpServer,
	}, nil
}

// buildBracketPolicy wires either the hot-reloading template registry or
// the inline policy from the config file.
func buildBracketPolicy(cfg config.BracketConfig) (*strategy.Registry, trader.PolicyFunc, error) {
	inline := strategy.BracketPolicy{
		TakeProfit: strategy.TakeProfitPolicy{
			Type:  strategy.PolicyType(cfg.TakeProfitType),
			Value: cfg.TakeProfitValue,
		},
		StopLoss: strategy.StopLossPolicy{
			Enabled: cfg.StopLossEnabled,
			Type:    strategy.PolicyType(cfg.StopLossType),
			Value:   cfg.StopLossValue,
		},
		PricePrecision: int32(cfg.PricePrecision),
	}
	if err := inline.Validate(); err != nil {
		return nil, nil, fmt.Errorf("bracket config: %w", err)
	}

	if strings.TrimSpace(cfg.TemplatesPath) == "" || strings.TrimSpace(cfg.Template) == "" {
		return nil, func() strategy.BracketPolicy { return inline }, nil
	}

	registry, err := strategy.NewRegistry(cfg.TemplatesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("bracket templates: %w", err)
	}
	templateID := strings.TrimSpace(cfg.Template)
	policyFn := func() strategy.BracketPolicy {
		if tpl, ok := registry.Template(templateID); ok {
			return tpl.Policy
		}
		logger.Warnf("bracket template %q not found, using inline policy", templateID)
		return inline
	}
	return registry, policyFn, nil
}

type builtStores struct {
	positions *gormstore.Store
	events    *eventlog.Journal
}

func (b *AppBuilder) buildStores(cfg config.StoreConfig) (trader.TradeLog, trader.PositionStore, trader.EventJournal, builtStores, error) {
	var stores builtStores

	tradeLog := b.tradeLogOverride
	if tradeLog == nil && cfg.TradeLogPath != "" {
		log, err := csvlog.New(cfg.TradeLogPath)
		if err != nil {
			return nil, nil, nil, stores, err
		}
		tradeLog = log
	}

	posStore := b.storeOverride
	if posStore == nil && cfg.PositionDB != "" {
		if err := ensureDir(cfg.PositionDB); err != nil {
			return nil, nil, nil, stores, err
		}
		st, err := gormstore.Open(cfg.PositionDB)
		if err != nil {
			return nil, nil, nil, stores, err
		}
		stores.positions = st
		posStore = st
	}

	journal := b.journalOverride
	if journal == nil && cfg.EventDB != "" {
		if err := ensureDir(cfg.EventDB); err != nil {
			return nil, nil, nil, stores, err
		}
		j, err := eventlog.Open(cfg.EventDB)
		if err != nil {
			return nil, nil, nil, stores, err
		}
		stores.events = j
		journal = j
	}

	return tradeLog, posStore, journal, stores, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return nil
}
