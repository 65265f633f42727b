package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9992"
	defaultAppLogPath  = "data/logs/macdbot.log"

	defaultExchangeTimeout = 10

	defaultTradingSymbol        = "BTCUSDT"
	defaultTradingNotional      = 50
	defaultTradingLeverage      = 20
	defaultTradingMargin        = "ISOLATED"
	defaultTradingMaxConcurrent = 1
	defaultTradingCommission    = 0.0004
	defaultTradingOrderTimeout  = 10
	defaultTradingCooldown      = 60

	defaultExecutionInterval = "1m"
	defaultIndicatorInterval = "1h"
	defaultMACDFast          = 12
	defaultMACDSlow          = 26
	defaultMACDSignal        = 9
	defaultATRPeriod         = 14
	defaultPreheatBars       = 200

	defaultBracketTPType  = "atr"
	defaultBracketTPValue = 2.0
	defaultBracketSLType  = "percentage"
	defaultBracketSLValue = 1.0
	defaultPricePrecision = 2

	defaultTradeLogPath = "data/trades.csv"
	defaultPositionDB   = "data/positions.db"
	defaultEventDB      = "data/events.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Indicator.applyDefaults(keys)
	c.Bracket.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "exchange.http_timeout_seconds",
			need:  func() bool { return e.HTTPTimeoutSeconds <= 0 },
			apply: func() { e.HTTPTimeoutSeconds = defaultExchangeTimeout },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trading.symbol", &t.Symbol, defaultTradingSymbol),
		stringFieldDefault("trading.margin_type", &t.MarginType, defaultTradingMargin),
		fieldDefault{
			key:   "trading.notional_usd",
			need:  func() bool { return t.NotionalUSD <= 0 },
			apply: func() { t.NotionalUSD = defaultTradingNotional },
		},
		fieldDefault{
			key:   "trading.leverage",
			need:  func() bool { return t.Leverage <= 0 },
			apply: func() { t.Leverage = defaultTradingLeverage },
		},
		fieldDefault{
			key:   "trading.max_concurrent",
			need:  func() bool { return t.MaxConcurrent <= 0 },
			apply: func() { t.MaxConcurrent = defaultTradingMaxConcurrent },
		},
		fieldDefault{
			key:   "trading.commission_rate",
			need:  func() bool { return t.CommissionRate <= 0 },
			apply: func() { t.CommissionRate = defaultTradingCommission },
		},
		fieldDefault{
			key:   "trading.order_timeout_seconds",
			need:  func() bool { return t.OrderTimeoutSeconds <= 0 },
			apply: func() { t.OrderTimeoutSeconds = defaultTradingOrderTimeout },
		},
		fieldDefault{
			key:   "trading.signal_cooldown_seconds",
			need:  func() bool { return t.SignalCooldownSecs <= 0 },
			apply: func() { t.SignalCooldownSecs = defaultTradingCooldown },
		},
	)
}

func (i *IndicatorConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("indicator.execution_interval", &i.ExecutionInterval, defaultExecutionInterval),
		stringFieldDefault("indicator.indicator_interval", &i.IndicatorInterval, defaultIndicatorInterval),
		fieldDefault{
			key:   "indicator.macd_fast",
			need:  func() bool { return i.MACDFast <= 0 },
			apply: func() { i.MACDFast = defaultMACDFast },
		},
		fieldDefault{
			key:   "indicator.macd_slow",
			need:  func() bool { return i.MACDSlow <= 0 },
			apply: func() { i.MACDSlow = defaultMACDSlow },
		},
		fieldDefault{
			key:   "indicator.macd_signal",
			need:  func() bool { return i.MACDSignal <= 0 },
			apply: func() { i.MACDSignal = defaultMACDSignal },
		},
		fieldDefault{
			key:   "indicator.atr_period",
			need:  func() bool { return i.ATRPeriod <= 0 },
			apply: func() { i.ATRPeriod = defaultATRPeriod },
		},
		fieldDefault{
			key:   "indicator.preheat_bars",
			need:  func() bool { return i.PreheatBars <= 0 },
			apply: func() { i.PreheatBars = defaultPreheatBars },
		},
	)
}

func (b *BracketConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("bracket.take_profit_type", &b.TakeProfitType, defaultBracketTPType),
		stringFieldDefault("bracket.stop_loss_type", &b.StopLossType, defaultBracketSLType),
		fieldDefault{
			key:   "bracket.take_profit_value",
			need:  func() bool { return b.TakeProfitValue <= 0 },
			apply: func() { b.TakeProfitValue = defaultBracketTPValue },
		},
		fieldDefault{
			key:   "bracket.stop_loss_enabled",
			need:  func() bool { return true },
			apply: func() { b.StopLossEnabled = true },
		},
		fieldDefault{
			key:   "bracket.stop_loss_value",
			need:  func() bool { return b.StopLossValue <= 0 },
			apply: func() { b.StopLossValue = defaultBracketSLValue },
		},
		fieldDefault{
			key:   "bracket.price_precision",
			need:  func() bool { return b.PricePrecision <= 0 },
			apply: func() { b.PricePrecision = defaultPricePrecision },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.trade_log_path", &s.TradeLogPath, defaultTradeLogPath),
		stringFieldDefault("store.position_db", &s.PositionDB, defaultPositionDB),
		stringFieldDefault("store.event_db", &s.EventDB, defaultEventDB),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
