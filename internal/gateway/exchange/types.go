package exchange

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the reducing side for a held side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// OrderRequest describes a single order submission.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      float64
	Price         float64 // limit price; 0 = none
	StopPrice     float64 // trigger price for stop/take-profit market orders
	ReduceOnly    bool
	ClientOrderID string
}

// OrderResult is the venue's acknowledgment of an accepted order.
// AvgPrice may be 0 when the venue has not filled or not reported yet.
type OrderResult struct {
	OrderID       int64
	ClientOrderID string
	Status        string
	AvgPrice      float64
	Commission    float64
}

// SymbolFilters carries the instrument trading rules the agent needs.
type SymbolFilters struct {
	LotStep        float64
	MinQty         float64
	PricePrecision int32
}

type AssetBalance struct {
	Asset     string  `json:"asset"`
	Balance   float64 `json:"balance"`
	Available float64 `json:"available"`
}

type Balance struct {
	Assets []AssetBalance `json:"assets"`
}
