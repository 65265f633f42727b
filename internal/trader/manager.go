package trader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"macdbot/internal/gateway/exchange"
	"macdbot/internal/logger"
	"macdbot/internal/strategy"
	"macdbot/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrMaxConcurrent rejects a signal while the position slot is taken.
	ErrMaxConcurrent = errors.New("max concurrent positions reached")
	// ErrQuantityTooSmall rejects a signal whose notional cannot cover one lot step.
	ErrQuantityTooSmall = errors.New("adjusted quantity is not tradable")
	// ErrPositionNotFound is returned for a close request on an unknown id.
	ErrPositionNotFound = errors.New("position not found")
)

// Config carries the trading parameters of the managed instrument.
type Config struct {
	Symbol         string
	NotionalUSD    float64
	Leverage       int
	MarginType     string
	MaxConcurrent  int
	CommissionRate float64
	OrderTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
	if c.OrderTimeout <= 0 {
		c.OrderTimeout = 10 * time.Second
	}
	return c
}

// PolicyFunc resolves the bracket policy at entry time, so template
// reloads take effect without restarting the manager.
type PolicyFunc func() strategy.BracketPolicy

// Manager owns the single position slot and its lifecycle:
// empty → opening → open → closing → empty. All state mutations run under
// one mutex; network results are applied only inside the serialized
// region.
type Manager struct {
	cfg      Config
	exec     exchange.Executor
	policyFn PolicyFunc

	tradeLog TradeLog
	posStore PositionStore
	journal  EventJournal

	mu        sync.Mutex
	active    []*Position
	closed    []*Position
	filters   exchange.SymbolFilters
	filtersOK bool
}

type Option func(*Manager)

func WithTradeLog(l TradeLog) Option { return func(m *Manager) { m.tradeLog = l } }

func WithPositionStore(s PositionStore) Option { return func(m *Manager) { m.posStore = s } }

func WithEventJournal(j EventJournal) Option { return func(m *Manager) { m.journal = j } }

func NewManager(cfg Config, exec exchange.Executor, policyFn PolicyFunc, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg.withDefaults(),
		exec:     exec,
		policyFn: policyFn,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// ConfigureAccount applies leverage and margin type once at startup.
// Failures are logged, not fatal.
func (m *Manager) ConfigureAccount(ctx context.Context) {
	if err := m.exec.SetLeverage(ctx, m.cfg.Symbol, m.cfg.Leverage); err != nil {
		logger.Warnf("set leverage %dx for %s failed: %v", m.cfg.Leverage, m.cfg.Symbol, err)
	} else {
		logger.Infof("leverage set to %dx for %s", m.cfg.Leverage, m.cfg.Symbol)
	}
	if err := m.exec.SetMarginType(ctx, m.cfg.Symbol, m.cfg.MarginType); err != nil {
		logger.Warnf("set margin type %s for %s failed: %v", m.cfg.MarginType, m.cfg.Symbol, err)
	} else {
		logger.Infof("margin type set to %s for %s", m.cfg.MarginType, m.cfg.Symbol)
	}
}

// conservative fallback when exchange lot metadata is unavailable:
// quantize to 6 decimal places
const fallbackLotStep = 1e-6

func (m *Manager) lotFilters(ctx context.Context) exchange.SymbolFilters {
	if m.filtersOK {
		return m.filters
	}
	f, err := m.exec.SymbolFilters(ctx, m.cfg.Symbol)
	if err != nil || f.LotStep <= 0 {
		logger.Warnf("lot filters unavailable for %s, using %g step: %v", m.cfg.Symbol, fallbackLotStep, err)
		return exchange.SymbolFilters{LotStep: fallbackLotStep}
	}
	m.filters = f
	m.filtersOK = true
	return f
}

// quantize computes the order quantity for a notional at the given price,
// rounded to the nearest lot-step multiple without exceeding the notional.
func quantize(notional, price, step, minQty float64) float64 {
	if notional <= 0 || price <= 0 || step <= 0 {
		return 0
	}
	raw := decimal.NewFromFloat(notional).Div(decimal.NewFromFloat(price))
	stepDec := decimal.NewFromFloat(step)
	steps := raw.Div(stepDec).Round(0)
	qty := steps.Mul(stepDec)
	if qty.Mul(decimal.NewFromFloat(price)).GreaterThan(decimal.NewFromFloat(notional)) {
		qty = qty.Sub(stepDec)
	}
	out, _ := qty.Float64()
	if out <= 0 || out < minQty {
		return 0
	}
	return out
}

// OnSignal drives empty → opening → open. The entry order, fill-price
// resolution and bracket placement all happen inside the serialized
// region; a failed entry leaves the slot empty with nothing recorded.
func (m *Manager) OnSignal(ctx context.Context, sig *types.Signal) error {
	if sig == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.journalEvent(ctx, EventSignal, "", fmt.Sprintf("%s @ %.2f atr=%.2f", sig.Direction, sig.Price, sig.ATR))

	if len(m.active) >= m.cfg.MaxConcurrent {
		logger.Infof("signal %s rejected: max concurrent positions (%d) reached", sig.Direction, m.cfg.MaxConcurrent)
		m.journalEvent(ctx, EventRejected, "", "slot occupied")
		return ErrMaxConcurrent
	}

	filters := m.lotFilters(ctx)
	qty := quantize(m.cfg.NotionalUSD, sig.Price, filters.LotStep, filters.MinQty)
	if qty <= 0 {
		logger.Warnf("signal %s rejected: notional %.2f at %.2f yields no tradable quantity", sig.Direction, m.cfg.NotionalUSD, sig.Price)
		return ErrQuantityTooSmall
	}

	side := exchange.Buy
	if sig.Direction == types.Short {
		side = exchange.Sell
	}

	entryCtx, cancel := context.WithTimeout(ctx, m.cfg.OrderTimeout)
	res, err := m.exec.SubmitOrder(entryCtx, exchange.OrderRequest{
		Symbol:        m.cfg.Symbol,
		Side:          side,
		Type:          exchange.OrderTypeMarket,
		Quantity:      qty,
		ClientOrderID: newClientOrderID(),
	})
	cancel()
	if err != nil {
		logger.Errorf("entry order failed for %s %s: %v", sig.Direction, m.cfg.Symbol, err)
		m.journalEvent(ctx, EventEntryFailed, "", err.Error())
		return err
	}

	fill := m.resolveFillPrice(ctx, res, sig.Price)

	// brackets come from the resolved fill price, never the signal price;
	// venue-reported price precision wins over the configured one
	pol := m.policyFn()
	if filters.PricePrecision > 0 {
		pol.PricePrecision = filters.PricePrecision
	}
	stop, take := strategy.PlanBracket(fill, sig.ATR, sig.Direction, pol)

	pos := &Position{
		ID:         strconv.FormatInt(res.OrderID, 10),
		Symbol:     m.cfg.Symbol,
		Direction:  sig.Direction,
		EntryPrice: fill,
		Quantity:   qty,
		StopLoss:   stop,
		TakeProfit: take,
		Commission: m.fillCommission(res, fill, qty),
		State:      types.StateOpen,
		OpenedAt:   time.Now(),
	}
	m.active = append(m.active, pos)
	m.journalEvent(ctx, EventOpened, pos.ID, fmt.Sprintf("%s %.6f @ %.2f tp=%.2f sl=%.2f", pos.Direction, pos.Quantity, fill, take, stop))
	logger.Infof("position %s opened: %s %.6f %s @ %.2f (tp=%.2f sl=%.2f)", pos.ID, pos.Direction, qty, m.cfg.Symbol, fill, take, stop)

	m.placeBrackets(ctx, pos)
	m.persist(ctx, pos)
	return nil
}

// placeBrackets submits the reduce-only protective orders. Each placement
// is independent; a failure leaves the position open with the local price
// recorded and the placed flag false.
func (m *Manager) placeBrackets(ctx context.Context, pos *Position) {
	closeSide := exchange.Sell
	if pos.Direction == types.Short {
		closeSide = exchange.Buy
	}

	tpCtx, cancel := context.WithTimeout(ctx, m.cfg.OrderTimeout)
	_, err := m.exec.SubmitOrder(tpCtx, exchange.OrderRequest{
		Symbol:        pos.Symbol,
		Side:          closeSide,
		Type:          exchange.OrderTypeTakeProfitMarket,
		Quantity:      pos.Quantity,
		StopPrice:     pos.TakeProfit,
		ReduceOnly:    true,
		ClientOrderID: newClientOrderID(),
	})
	cancel()
	if err != nil {
		logger.Errorf("take-profit order at %.2f failed for position %s: %v", pos.TakeProfit, pos.ID, err)
		m.journalEvent(ctx, EventBracketError, pos.ID, "take_profit: "+err.Error())
	} else {
		pos.Brackets.TakeProfitPlaced = true
	}

	if pos.StopLoss <= 0 {
		return
	}
	slCtx, cancel := context.WithTimeout(ctx, m.cfg.OrderTimeout)
	_, err = m.exec.SubmitOrder(slCtx, exchange.OrderRequest{
		Symbol:        pos.Symbol,
		Side:          closeSide,
		Type:          exchange.OrderTypeStopMarket,
		Quantity:      pos.Quantity,
		StopPrice:     pos.StopLoss,
		ReduceOnly:    true,
		ClientOrderID: newClientOrderID(),
	})
	cancel()
	if err != nil {
		logger.Errorf("stop-loss order at %.2f failed for position %s: %v", pos.StopLoss, pos.ID, err)
		m.journalEvent(ctx, EventBracketError, pos.ID, "stop_loss: "+err.Error())
	} else {
		pos.Brackets.StopLossPlaced = true
	}
}

// resolveFillPrice prefers the order's reported average price, then a
// fresh quote, then the provisional price with a warning.
func (m *Manager) resolveFillPrice(ctx context.Context, res *exchange.OrderResult, provisional float64) float64 {
	if res != nil && res.AvgPrice > 0 {
		return res.AvgPrice
	}
	quoteCtx, cancel := context.WithTimeout(ctx, m.cfg.OrderTimeout)
	price, err := m.exec.GetQuote(quoteCtx, m.cfg.Symbol)
	cancel()
	if err == nil && price > 0 {
		return price
	}
	logger.Warnf("fill price unavailable for %s, falling back to provisional %.2f: %v", m.cfg.Symbol, provisional, err)
	return provisional
}

func (m *Manager) fillCommission(res *exchange.OrderResult, price, qty float64) float64 {
	if res != nil && res.Commission > 0 {
		return res.Commission
	}
	return m.cfg.CommissionRate * price * qty
}

// OnPriceTick evaluates exit conditions for every open position against
// the latest fine-timeframe close.
func (m *Manager) OnPriceTick(ctx context.Context, price float64) {
	if price <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range append([]*Position(nil), m.active...) {
		if pos.State != types.StateOpen {
			continue
		}
		reason, hit := exitReason(pos, price)
		if !hit {
			continue
		}
		if err := m.closeLocked(ctx, pos, price, reason); err != nil {
			// stays open; retried on the next qualifying tick
			logger.Errorf("close attempt for position %s failed: %v", pos.ID, err)
		}
	}
}

func exitReason(pos *Position, price float64) (types.CloseReason, bool) {
	if pos.Direction == types.Long {
		if price >= pos.TakeProfit {
			return types.CloseTakeProfit, true
		}
		if pos.StopLoss > 0 && price <= pos.StopLoss {
			return types.CloseStopLoss, true
		}
		return "", false
	}
	if price <= pos.TakeProfit {
		return types.CloseTakeProfit, true
	}
	if pos.StopLoss > 0 && price >= pos.StopLoss {
		return types.CloseStopLoss, true
	}
	return "", false
}

// ClosePosition handles an explicit external close request.
func (m *Manager) ClosePosition(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range m.active {
		if pos.ID != id {
			continue
		}
		ref := pos.EntryPrice
		quoteCtx, cancel := context.WithTimeout(ctx, m.cfg.OrderTimeout)
		if price, err := m.exec.GetQuote(quoteCtx, pos.Symbol); err == nil && price > 0 {
			ref = price
		}
		cancel()
		return m.closeLocked(ctx, pos, ref, types.CloseManual)
	}
	return ErrPositionNotFound
}

// closeLocked drives open → closing → empty. Caller holds m.mu. On order
// failure the position is untouched and remains open.
func (m *Manager) closeLocked(ctx context.Context, pos *Position, refPrice float64, reason types.CloseReason) error {
	closeSide := exchange.Sell
	if pos.Direction == types.Short {
		closeSide = exchange.Buy
	}
	orderCtx, cancel := context.WithTimeout(ctx, m.cfg.OrderTimeout)
	res, err := m.exec.SubmitOrder(orderCtx, exchange.OrderRequest{
		Symbol:        pos.Symbol,
		Side:          closeSide,
		Type:          exchange.OrderTypeMarket,
		Quantity:      pos.Quantity,
		ReduceOnly:    true,
		ClientOrderID: newClientOrderID(),
	})
	cancel()
	if err != nil {
		m.journalEvent(ctx, EventCloseFailed, pos.ID, err.Error())
		return err
	}

	closePrice := m.resolveFillPrice(ctx, res, refPrice)
	pnl, pnlPct := realizedPnl(pos.Direction, pos.EntryPrice, closePrice, pos.Quantity)

	pos.ExitPrice = closePrice
	pos.Pnl = pnl
	pos.PnlPct = pnlPct
	pos.Commission += m.fillCommission(res, closePrice, pos.Quantity)
	pos.CloseReason = reason
	pos.State = types.StateClosed
	pos.ClosedAt = time.Now()

	m.removeActive(pos)
	m.closed = append(m.closed, pos)
	m.persist(ctx, pos)
	m.journalEvent(ctx, EventClosed, pos.ID, fmt.Sprintf("%s pnl=%.2f (%.2f%%)", reason, pnl, pnlPct))
	logger.Infof("position %s closed (%s): pnl=%.2f USDT (%.2f%%)", pos.ID, reason, pnl, pnlPct)
	return nil
}

func realizedPnl(dir types.Direction, entry, exit, qty float64) (pnl, pnlPct float64) {
	entryDec := decimal.NewFromFloat(entry)
	exitDec := decimal.NewFromFloat(exit)
	qtyDec := decimal.NewFromFloat(qty)
	var gross decimal.Decimal
	if dir == types.Long {
		gross = exitDec.Sub(entryDec).Mul(qtyDec)
	} else {
		gross = entryDec.Sub(exitDec).Mul(qtyDec)
	}
	pnl, _ = gross.Float64()
	basis := entryDec.Mul(qtyDec)
	if !basis.IsZero() {
		pnlPct, _ = gross.Div(basis).Mul(decimal.NewFromInt(100)).Float64()
	}
	return pnl, pnlPct
}

func (m *Manager) removeActive(target *Position) {
	out := m.active[:0]
	for _, pos := range m.active {
		if pos != target {
			out = append(out, pos)
		}
	}
	m.active = out
}

func (m *Manager) persist(ctx context.Context, pos *Position) {
	if m.tradeLog != nil {
		if err := m.tradeLog.Append(*pos); err != nil {
			logger.Errorf("trade log append for position %s failed: %v", pos.ID, err)
		}
	}
	if m.posStore != nil {
		if err := m.posStore.Save(ctx, *pos); err != nil {
			logger.Errorf("position store save for %s failed: %v", pos.ID, err)
		}
	}
}

func (m *Manager) journalEvent(ctx context.Context, kind, positionID, detail string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Append(ctx, kind, positionID, detail); err != nil {
		logger.Debugf("event journal append failed: %v", err)
	}
}

// Counts returns the number of active and closed positions.
func (m *Manager) Counts() (active, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active), len(m.closed)
}

// Snapshot returns copies of the active and closed position records.
func (m *Manager) Snapshot() (active, closed []Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range m.active {
		active = append(active, *pos)
	}
	for _, pos := range m.closed {
		closed = append(closed, *pos)
	}
	return active, closed
}

func newClientOrderID() string {
	return "macdbot-" + uuid.NewString()[:18]
}
