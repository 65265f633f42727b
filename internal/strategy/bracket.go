package strategy

import (
	"fmt"

	"macdbot/internal/types"

	"github.com/shopspring/decimal"
)

type PolicyType string

const (
	PolicyATR        PolicyType = "atr"
	PolicyPercentage PolicyType = "percentage"
	PolicyRiskReward PolicyType = "risk_reward"
)

type TakeProfitPolicy struct {
	Type  PolicyType `mapstructure:"type" yaml:"type" json:"type"`
	Value float64    `mapstructure:"value" yaml:"value" json:"value"`
}

type StopLossPolicy struct {
	Enabled bool       `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Type    PolicyType `mapstructure:"type" yaml:"type" json:"type"`
	Value   float64    `mapstructure:"value" yaml:"value" json:"value"`
}

// BracketPolicy configures the protective order levels around an entry.
type BracketPolicy struct {
	TakeProfit TakeProfitPolicy `mapstructure:"take_profit" yaml:"take_profit" json:"take_profit"`
	StopLoss   StopLossPolicy   `mapstructure:"stop_loss" yaml:"stop_loss" json:"stop_loss"`

	// quoted price precision of the instrument; 2 is the conservative
	// default when exchange metadata is unavailable
	PricePrecision int32 `mapstructure:"price_precision" yaml:"price_precision" json:"price_precision"`
}

func (p BracketPolicy) Validate() error {
	switch p.TakeProfit.Type {
	case PolicyATR, PolicyPercentage:
	default:
		return fmt.Errorf("take profit policy %q is not supported", p.TakeProfit.Type)
	}
	if p.TakeProfit.Value <= 0 {
		return fmt.Errorf("take profit value must be positive, got %v", p.TakeProfit.Value)
	}
	if p.StopLoss.Enabled {
		switch p.StopLoss.Type {
		case PolicyRiskReward:
		case PolicyPercentage:
			if p.StopLoss.Value <= 0 {
				return fmt.Errorf("stop loss percentage must be positive, got %v", p.StopLoss.Value)
			}
		default:
			return fmt.Errorf("stop loss policy %q is not supported", p.StopLoss.Type)
		}
	}
	return nil
}

var decHundred = decimal.NewFromInt(100)

// PlanBracket computes the stop-loss and take-profit levels for an entry.
// A disabled stop loss yields the 0 sentinel. Pure and deterministic; both
// results are rounded to the instrument's quoted price precision.
func PlanBracket(entry, atr float64, dir types.Direction, pol BracketPolicy) (stopLoss, takeProfit float64) {
	prec := pol.PricePrecision
	if prec <= 0 {
		prec = 2
	}
	entryDec := decimal.NewFromFloat(entry)

	var offset decimal.Decimal
	switch pol.TakeProfit.Type {
	case PolicyATR:
		offset = decimal.NewFromFloat(atr).Mul(decimal.NewFromFloat(pol.TakeProfit.Value))
	default: // percentage
		offset = entryDec.Mul(decimal.NewFromFloat(pol.TakeProfit.Value)).Div(decHundred)
	}
	var tp decimal.Decimal
	if dir == types.Long {
		tp = entryDec.Add(offset)
	} else {
		tp = entryDec.Sub(offset)
	}

	sl := decimal.Zero
	if pol.StopLoss.Enabled {
		switch pol.StopLoss.Type {
		case PolicyRiskReward:
			// mirror the take-profit distance around entry (1:1)
			sl = entryDec.Sub(tp.Sub(entryDec))
		default: // percentage
			pct := entryDec.Mul(decimal.NewFromFloat(pol.StopLoss.Value)).Div(decHundred)
			if dir == types.Long {
				sl = entryDec.Sub(pct)
			} else {
				sl = entryDec.Add(pct)
			}
		}
	}

	stopLoss, _ = sl.Round(prec).Float64()
	takeProfit, _ = tp.Round(prec).Float64()
	return stopLoss, takeProfit
}
