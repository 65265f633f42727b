package config

import "strings"

// Config is the main configuration carrier for the agent.
type Config struct {
	App       AppConfig       `toml:"app"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Trading   TradingConfig   `toml:"trading"`
	Indicator IndicatorConfig `toml:"indicator"`
	Bracket   BracketConfig   `toml:"bracket"`
	Store     StoreConfig     `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type ExchangeConfig struct {
	APIKey      string `toml:"api_key"`
	APISecret   string `toml:"api_secret"`
	Testnet     bool   `toml:"testnet"`
	RESTBaseURL string `toml:"rest_base_url"`

	HTTPTimeoutSeconds int `toml:"http_timeout_seconds"`
}

type TradingConfig struct {
	Symbol        string  `toml:"symbol"`
	NotionalUSD   float64 `toml:"notional_usd"`
	Leverage      int     `toml:"leverage"`
	MarginType    string  `toml:"margin_type"` // ISOLATED | CROSSED
	MaxConcurrent int     `toml:"max_concurrent"`

	CommissionRate      float64 `toml:"commission_rate"`
	OrderTimeoutSeconds int     `toml:"order_timeout_seconds"`
	SignalCooldownSecs  int     `toml:"signal_cooldown_seconds"`

	AutoStart bool `toml:"auto_start"`
}

type IndicatorConfig struct {
	ExecutionInterval string `toml:"execution_interval"`
	IndicatorInterval string `toml:"indicator_interval"`

	MACDFast   int `toml:"macd_fast"`
	MACDSlow   int `toml:"macd_slow"`
	MACDSignal int `toml:"macd_signal"`
	ATRPeriod  int `toml:"atr_period"`

	PreheatBars int `toml:"preheat_bars"`
}

type BracketConfig struct {
	// Template selects a bracket template from the templates file. When
	// empty the inline policy fields below apply.
	Template      string `toml:"template"`
	TemplatesPath string `toml:"templates_path"`

	TakeProfitType  string  `toml:"take_profit_type"` // atr | percentage
	TakeProfitValue float64 `toml:"take_profit_value"`

	StopLossEnabled bool    `toml:"stop_loss_enabled"`
	StopLossType    string  `toml:"stop_loss_type"` // percentage | risk_reward
	StopLossValue   float64 `toml:"stop_loss_value"`

	PricePrecision int `toml:"price_precision"`
}

type StoreConfig struct {
	TradeLogPath string `toml:"trade_log_path"`
	PositionDB   string `toml:"position_db"`
	EventDB      string `toml:"event_db"`
}

// keySet tracks field paths explicitly set in the config file so that
// defaults never clobber an explicit zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
