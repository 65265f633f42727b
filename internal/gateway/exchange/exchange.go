package exchange

import "context"

// Executor is the execution venue contract the position manager consumes.
// Every call is a blocking network operation; callers bound it with a
// context deadline.
type Executor interface {
	Name() string

	GetQuote(ctx context.Context, symbol string) (float64, error)

	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)

	SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)

	SetLeverage(ctx context.Context, symbol string, leverage int) error

	SetMarginType(ctx context.Context, symbol, marginType string) error

	GetBalance(ctx context.Context) (Balance, error)
}
