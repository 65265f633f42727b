package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"macdbot/internal/gateway/exchange"
	"macdbot/internal/logger"
	"macdbot/internal/pkg/convert"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Executor implements exchange.Executor on the Binance USD-M futures API.
type Executor struct {
	cfg    Config
	client *futures.Client

	filterMu sync.Mutex
	filters  map[string]exchange.SymbolFilters
}

func NewExecutor(cfg Config) *Executor {
	final := cfg.withDefaults()
	if final.Testnet {
		futures.UseTestnet = true
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Executor{
		cfg:     final,
		client:  client,
		filters: make(map[string]exchange.SymbolFilters),
	}
}

func (e *Executor) Name() string { return "binance-futures" }

func (e *Executor) GetQuote(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	prices, err := e.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch ticker for %s: %w", symbol, err)
	}
	for _, p := range prices {
		if p != nil && p.Symbol == symbol {
			return convert.ParseFloat(p.Price), nil
		}
	}
	return 0, fmt.Errorf("no ticker returned for %s", symbol)
}

func (e *Executor) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %v", req.Quantity)
	}
	svc := e.client.NewCreateOrderService().
		Symbol(strings.ToUpper(strings.TrimSpace(req.Symbol))).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Type)).
		Quantity(formatDecimal(req.Quantity))
	if req.Price > 0 {
		svc = svc.Price(formatDecimal(req.Price)).TimeInForce(futures.TimeInForceTypeGTC)
	}
	if req.StopPrice > 0 {
		svc = svc.StopPrice(formatDecimal(req.StopPrice))
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("submit %s %s order for %s: %w", req.Side, req.Type, req.Symbol, err)
	}
	return &exchange.OrderResult{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Status:        string(resp.Status),
		AvgPrice:      convert.ParseFloat(resp.AvgPrice),
	}, nil
}

// SymbolFilters reads the instrument's LOT_SIZE filter and price precision
// from exchange info. Results are cached per symbol.
func (e *Executor) SymbolFilters(ctx context.Context, symbol string) (exchange.SymbolFilters, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	e.filterMu.Lock()
	if f, ok := e.filters[symbol]; ok {
		e.filterMu.Unlock()
		return f, nil
	}
	e.filterMu.Unlock()

	info, err := e.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return exchange.SymbolFilters{}, fmt.Errorf("fetch exchange info: %w", err)
	}
	for _, sym := range info.Symbols {
		if sym.Symbol != symbol {
			continue
		}
		f, err := parseSymbolFilters(&sym)
		if err != nil {
			return exchange.SymbolFilters{}, err
		}
		e.filterMu.Lock()
		e.filters[symbol] = f
		e.filterMu.Unlock()
		return f, nil
	}
	return exchange.SymbolFilters{}, fmt.Errorf("symbol %s not present in exchange info", symbol)
}

func parseSymbolFilters(sym *futures.Symbol) (exchange.SymbolFilters, error) {
	raw, err := json.Marshal(sym.Filters)
	if err != nil {
		return exchange.SymbolFilters{}, fmt.Errorf("marshal filters for %s: %w", sym.Symbol, err)
	}
	lot := gjson.GetBytes(raw, `#(filterType=="LOT_SIZE")`)
	if !lot.Exists() {
		return exchange.SymbolFilters{}, fmt.Errorf("no LOT_SIZE filter for %s", sym.Symbol)
	}
	step := convert.ToFloat64(lot.Get("stepSize").String())
	if step <= 0 {
		return exchange.SymbolFilters{}, fmt.Errorf("invalid stepSize %q for %s", lot.Get("stepSize").String(), sym.Symbol)
	}
	return exchange.SymbolFilters{
		LotStep:        step,
		MinQty:         convert.ToFloat64(lot.Get("minQty").String()),
		PricePrecision: int32(sym.PricePrecision),
	}, nil
}

func (e *Executor) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := e.client.NewChangeLeverageService().
		Symbol(strings.ToUpper(strings.TrimSpace(symbol))).
		Leverage(leverage).
		Do(ctx)
	return err
}

func (e *Executor) SetMarginType(ctx context.Context, symbol, marginType string) error {
	err := e.client.NewChangeMarginTypeService().
		Symbol(strings.ToUpper(strings.TrimSpace(symbol))).
		MarginType(futures.MarginType(strings.ToUpper(marginType))).
		Do(ctx)
	if err != nil && strings.Contains(err.Error(), "No need to change margin type") {
		logger.Debugf("[binance] margin type already %s for %s", marginType, symbol)
		return nil
	}
	return err
}

func (e *Executor) GetBalance(ctx context.Context) (exchange.Balance, error) {
	acct, err := e.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return exchange.Balance{}, fmt.Errorf("fetch account: %w", err)
	}
	out := exchange.Balance{}
	for _, asset := range acct.Assets {
		if asset == nil {
			continue
		}
		wallet := convert.ParseFloat(asset.WalletBalance)
		if wallet == 0 {
			continue
		}
		out.Assets = append(out.Assets, exchange.AssetBalance{
			Asset:     asset.Asset,
			Balance:   wallet,
			Available: convert.ParseFloat(asset.AvailableBalance),
		})
	}
	return out, nil
}

func formatDecimal(v float64) string {
	return decimal.NewFromFloat(v).String()
}
