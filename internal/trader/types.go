package trader

import (
	"context"
	"time"

	"macdbot/internal/types"
)

// BracketStatus records which protective orders were accepted by the
// venue. A false flag with the corresponding local price still set means
// the position is open with a missing protective order.
type BracketStatus struct {
	TakeProfitPlaced bool `json:"take_profit_placed"`
	StopLossPlaced   bool `json:"stop_loss_placed"`
}

// Position is the record owned by the Manager. Exactly zero or one open
// Position exists per configured slot; once State is StateClosed the
// record is terminal and only lives in the closed log.
type Position struct {
	ID         string              `json:"id"`
	Symbol     string              `json:"symbol"`
	Direction  types.Direction     `json:"direction"`
	EntryPrice float64             `json:"entry_price"`
	Quantity   float64             `json:"quantity"`
	StopLoss   float64             `json:"stop_loss"`
	TakeProfit float64             `json:"take_profit"`
	Commission float64             `json:"commission"`
	State      types.PositionState `json:"state"`
	Brackets   BracketStatus       `json:"brackets"`

	ExitPrice   float64           `json:"exit_price,omitempty"`
	Pnl         float64           `json:"pnl,omitempty"`
	PnlPct      float64           `json:"pnl_pct,omitempty"`
	CloseReason types.CloseReason `json:"close_reason,omitempty"`

	OpenedAt time.Time `json:"opened_at"`
	ClosedAt time.Time `json:"closed_at,omitempty"`
}

// TradeLog is the append-only flat-file sink: one row per position
// creation and one more per close; the later row supersedes the earlier.
type TradeLog interface {
	Append(rec Position) error
}

// PositionStore persists position rows for the control surface and
// post-mortem inspection.
type PositionStore interface {
	Save(ctx context.Context, rec Position) error
}

// EventJournal records lifecycle events (signal, submit, reject, close).
type EventJournal interface {
	Append(ctx context.Context, kind, positionID, detail string) error
}

// journal kinds
const (
	EventSignal       = "signal"
	EventEntryFailed  = "entry_failed"
	EventOpened       = "opened"
	EventBracketError = "bracket_error"
	EventCloseFailed  = "close_failed"
	EventClosed       = "closed"
	EventRejected     = "rejected"
)
