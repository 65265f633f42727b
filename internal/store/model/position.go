package model

import (
	"time"

	"gorm.io/datatypes"
)

// PositionRow is the persisted form of a trader position. The brackets
// column is a JSON blob so the schema survives bracket-status additions.
type PositionRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TradeID   string `gorm:"size:64;index"`
	Symbol    string `gorm:"size:32;index"`
	Direction string `gorm:"size:8"`

	EntryPrice float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	Commission float64

	State    string         `gorm:"size:16;index"`
	Brackets datatypes.JSON `gorm:"type:json"`

	ExitPrice   float64
	Pnl         float64
	PnlPct      float64
	CloseReason string `gorm:"size:16"`

	OpenedAt time.Time
	ClosedAt time.Time

	CreatedAt time.Time
}

func (PositionRow) TableName() string { return "positions" }
