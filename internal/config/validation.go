package config

import (
	"fmt"
	"strings"

	"macdbot/internal/scheduler"
)

func validate(c *Config) error {
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Indicator.validate(); err != nil {
		return err
	}
	if err := c.Bracket.validate(); err != nil {
		return err
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trading.symbol cannot be empty")
	}
	if t.NotionalUSD <= 0 {
		return fmt.Errorf("trading.notional_usd must be > 0")
	}
	if t.Leverage < 1 || t.Leverage > 125 {
		return fmt.Errorf("trading.leverage must be in [1, 125]")
	}
	switch strings.ToUpper(t.MarginType) {
	case "ISOLATED", "CROSSED":
	default:
		return fmt.Errorf("trading.margin_type must be ISOLATED or CROSSED")
	}
	if t.MaxConcurrent != 1 {
		return fmt.Errorf("trading.max_concurrent only supports 1")
	}
	return nil
}

func (i *IndicatorConfig) validate() error {
	execDur, ok := scheduler.ParseIntervalDuration(i.ExecutionInterval)
	if !ok {
		return fmt.Errorf("indicator.execution_interval is not a valid interval: %s", i.ExecutionInterval)
	}
	indDur, ok := scheduler.ParseIntervalDuration(i.IndicatorInterval)
	if !ok {
		return fmt.Errorf("indicator.indicator_interval is not a valid interval: %s", i.IndicatorInterval)
	}
	if execDur >= indDur {
		return fmt.Errorf("indicator.execution_interval must be finer than indicator_interval")
	}
	if i.MACDFast >= i.MACDSlow {
		return fmt.Errorf("indicator.macd_fast must be < macd_slow")
	}
	if i.MACDSignal <= 0 {
		return fmt.Errorf("indicator.macd_signal must be > 0")
	}
	return nil
}

func (b *BracketConfig) validate() error {
	switch b.TakeProfitType {
	case "atr", "percentage":
	default:
		return fmt.Errorf("bracket.take_profit_type must be atr or percentage")
	}
	if b.TakeProfitValue <= 0 {
		return fmt.Errorf("bracket.take_profit_value must be > 0")
	}
	if b.StopLossEnabled {
		switch b.StopLossType {
		case "percentage", "risk_reward":
		default:
			return fmt.Errorf("bracket.stop_loss_type must be percentage or risk_reward")
		}
		if b.StopLossType != "risk_reward" && b.StopLossValue <= 0 {
			return fmt.Errorf("bracket.stop_loss_value must be > 0")
		}
	}
	return nil
}
