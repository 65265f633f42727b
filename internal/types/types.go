package types

// Direction is the side of a trade idea or position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Signal is a directional entry trigger. Produced once, consumed once.
// Price is provisional; the fill price supersedes it for bracket math.
type Signal struct {
	Direction Direction
	Price     float64
	Timestamp int64
	ATR       float64
}

// PositionState tags the lifecycle of a position record. Transitions to
// StateClosed are terminal.
type PositionState string

const (
	StateOpen   PositionState = "open"
	StateClosed PositionState = "closed"
)

// CloseReason records why a position was exited.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "take_profit"
	CloseStopLoss   CloseReason = "stop_loss"
	CloseManual     CloseReason = "manual"
)
