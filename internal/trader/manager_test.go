package trader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"macdbot/internal/gateway/exchange"
	"macdbot/internal/strategy"
	"macdbot/internal/types"
)

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Name() string { return "mock" }

func (m *MockExecutor) GetQuote(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockExecutor) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exchange.OrderResult), args.Error(1)
}

func (m *MockExecutor) SymbolFilters(ctx context.Context, symbol string) (exchange.SymbolFilters, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(exchange.SymbolFilters), args.Error(1)
}

func (m *MockExecutor) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	args := m.Called(ctx, symbol, leverage)
	return args.Error(0)
}

func (m *MockExecutor) SetMarginType(ctx context.Context, symbol, marginType string) error {
	args := m.Called(ctx, symbol, marginType)
	return args.Error(0)
}

func (m *MockExecutor) GetBalance(ctx context.Context) (exchange.Balance, error) {
	args := m.Called(ctx)
	return args.Get(0).(exchange.Balance), args.Error(1)
}

type recordingTradeLog struct {
	mu   sync.Mutex
	rows []Position
}

func (r *recordingTradeLog) Append(rec Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rec)
	return nil
}

func defaultPolicy() strategy.BracketPolicy {
	return strategy.BracketPolicy{
		TakeProfit: strategy.TakeProfitPolicy{Type: strategy.PolicyATR, Value: 2.0},
		StopLoss:   strategy.StopLossPolicy{Enabled: true, Type: strategy.PolicyPercentage, Value: 1.0},
	}
}

func newTestManager(exec exchange.Executor, opts ...Option) *Manager {
	return NewManager(Config{
		Symbol:         "BTCUSDT",
		NotionalUSD:    500,
		Leverage:       20,
		MarginType:     "ISOLATED",
		MaxConcurrent:  1,
		CommissionRate: 0.0004,
	}, exec, defaultPolicy, opts...)
}

func stdFilters() exchange.SymbolFilters {
	return exchange.SymbolFilters{LotStep: 0.001, MinQty: 0.001, PricePrecision: 2}
}

func longSignal(price, atr float64) *types.Signal {
	return &types.Signal{Direction: types.Long, Price: price, ATR: atr}
}

func TestOnSignalOpensWithBracketsFromFill(t *testing.T) {
	exec := new(MockExecutor)
	mgr := newTestManager(exec)

	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(stdFilters(), nil)
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.Type == exchange.OrderTypeMarket && !req.ReduceOnly
	})).Return(&exchange.OrderResult{OrderID: 100, AvgPrice: 50000}, nil).Once()
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly
	})).Return(&exchange.OrderResult{OrderID: 101}, nil).Times(2)

	err := mgr.OnSignal(context.Background(), longSignal(50000, 200))
	require.NoError(t, err)

	active, _ := mgr.Snapshot()
	require.Len(t, active, 1)
	pos := active[0]
	assert.Equal(t, types.Long, pos.Direction)
	assert.InDelta(t, 50000.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 0.01, pos.Quantity, 1e-9)
	assert.InDelta(t, 50400.0, pos.TakeProfit, 1e-9)
	assert.InDelta(t, 49500.0, pos.StopLoss, 1e-9)
	assert.True(t, pos.Brackets.TakeProfitPlaced)
	assert.True(t, pos.Brackets.StopLossPlaced)
	exec.AssertExpectations(t)
}

func TestOnSignalUsesVenuePricePrecision(t *testing.T) {
	exec := new(MockExecutor)
	mgr := newTestManager(exec)

	filters := stdFilters()
	filters.PricePrecision = 1
	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(filters, nil)
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return !req.ReduceOnly
	})).Return(&exchange.OrderResult{OrderID: 140, AvgPrice: 50000}, nil).Once()
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly
	})).Return(&exchange.OrderResult{OrderID: 141}, nil).Times(2)

	// atr*2 = 400.14; the venue quotes one decimal, so 50400.14 -> 50400.1
	err := mgr.OnSignal(context.Background(), longSignal(50000, 200.07))
	require.NoError(t, err)

	active, _ := mgr.Snapshot()
	require.Len(t, active, 1)
	assert.InDelta(t, 50400.1, active[0].TakeProfit, 1e-9)
	assert.InDelta(t, 49500.0, active[0].StopLoss, 1e-9)
}

func TestOnSignalBracketsRecomputedFromActualFill(t *testing.T) {
	exec := new(MockExecutor)
	mgr := newTestManager(exec)

	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(stdFilters(), nil)
	// signal at 50000, fill reported at 50100
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return !req.ReduceOnly
	})).Return(&exchange.OrderResult{OrderID: 100, AvgPrice: 50100}, nil).Once()
	exec.On("SubmitOrder", mock.Anything, mock.Anything).Return(&exchange.OrderResult{OrderID: 101}, nil)

	require.NoError(t, mgr.OnSignal(context.Background(), longSignal(50000, 200)))

	active, _ := mgr.Snapshot()
	require.Len(t, active, 1)
	assert.InDelta(t, 50100.0, active[0].EntryPrice, 1e-9)
	assert.InDelta(t, 50500.0, active[0].TakeProfit, 1e-9)
	assert.InDelta(t, 49599.0, active[0].StopLoss, 1e-9)
}

func TestOnSignalRejectsWhileSlotOccupied(t *testing.T) {
	exec := new(MockExecutor)
	mgr := newTestManager(exec)

	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(stdFilters(), nil)
	exec.On("SubmitOrder", mock.Anything, mock.Anything).Return(&exchange.OrderResult{OrderID: 100, AvgPrice: 50000}, nil)

	require.NoError(t, mgr.OnSignal(context.Background(), longSignal(50000, 200)))

	err := mgr.OnSignal(context.Background(), longSignal(50200, 200))
	assert.ErrorIs(t, err, ErrMaxConcurrent)

	active, _ := mgr.Snapshot()
	assert.Len(t, active, 1)
}

func TestOnSignalEntryFailureRecordsNothing(t *testing.T) {
	exec := new(MockExecutor)
	log := &recordingTradeLog{}
	mgr := newTestManager(exec, WithTradeLog(log))

	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(stdFilters(), nil)
	exec.On("SubmitOrder", mock.Anything, mock.Anything).Return(nil, errors.New("insufficient margin"))

	err := mgr.OnSignal(context.Background(), longSignal(50000, 200))
	require.Error(t, err)

	active, closed := mgr.Counts()
	assert.Zero(t, active)
	assert.Zero(t, closed)
	assert.Empty(t, log.rows)
}

func TestOnSignalQuantityTooSmall(t *testing.T) {
	exec := new(MockExecutor)
	mgr := newTestManager(exec)

	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(exchange.SymbolFilters{LotStep: 1, MinQty: 1}, nil)

	err := mgr.OnSignal(context.Background(), longSignal(50000, 200))
	assert.ErrorIs(t, err, ErrQuantityTooSmall)
	exec.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}

func TestBracketFailureLeavesPositionOpen(t *testing.T) {
	exec := new(MockExecutor)
	mgr := newTestManager(exec)

	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(stdFilters(), nil)
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return !req.ReduceOnly
	})).Return(&exchange.OrderResult{OrderID: 100, AvgPrice: 50000}, nil).Once()
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly
	})).Return(nil, errors.New("order rejected"))

	require.NoError(t, mgr.OnSignal(context.Background(), longSignal(50000, 200)))

	active, _ := mgr.Snapshot()
	require.Len(t, active, 1)
	pos := active[0]
	assert.Equal(t, types.StateOpen, pos.State)
	assert.False(t, pos.Brackets.TakeProfitPlaced)
	assert.False(t, pos.Brackets.StopLossPlaced)
	// local exit prices still recorded so tick-based detection works
	assert.InDelta(t, 50400.0, pos.TakeProfit, 1e-9)
	assert.InDelta(t, 49500.0, pos.StopLoss, 1e-9)
}

func TestTakeProfitExitPnl(t *testing.T) {
	exec := new(MockExecutor)
	log := &recordingTradeLog{}
	mgr := newTestManager(exec, WithTradeLog(log))

	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(stdFilters(), nil)
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return !req.ReduceOnly
	})).Return(&exchange.OrderResult{OrderID: 100, AvgPrice: 50000}, nil).Once()
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly && req.Type != exchange.OrderTypeMarket
	})).Return(&exchange.OrderResult{OrderID: 101}, nil)
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly && req.Type == exchange.OrderTypeMarket
	})).Return(&exchange.OrderResult{OrderID: 102, AvgPrice: 50400}, nil).Once()

	require.NoError(t, mgr.OnSignal(context.Background(), longSignal(50000, 200)))

	// below the target: no exit
	mgr.OnPriceTick(context.Background(), 50399.9)
	active, closed := mgr.Counts()
	assert.Equal(t, 1, active)
	assert.Zero(t, closed)

	mgr.OnPriceTick(context.Background(), 50400)
	_, closedPositions := mgr.Snapshot()
	require.Len(t, closedPositions, 1)
	pos := closedPositions[0]
	assert.Equal(t, types.StateClosed, pos.State)
	assert.Equal(t, types.CloseTakeProfit, pos.CloseReason)
	assert.InDelta(t, 4.0, pos.Pnl, 1e-9)
	assert.InDelta(t, 0.8, pos.PnlPct, 1e-9)
}

func TestShortStopLossExit(t *testing.T) {
	exec := new(MockExecutor)
	mgr := newTestManager(exec)

	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(stdFilters(), nil)
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return !req.ReduceOnly
	})).Return(&exchange.OrderResult{OrderID: 200, AvgPrice: 50000}, nil).Once()
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly && req.Type != exchange.OrderTypeMarket
	})).Return(&exchange.OrderResult{OrderID: 201}, nil)
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly && req.Type == exchange.OrderTypeMarket
	})).Return(&exchange.OrderResult{OrderID: 202, AvgPrice: 50500}, nil).Once()

	sig := &types.Signal{Direction: types.Short, Price: 50000, ATR: 200}
	require.NoError(t, mgr.OnSignal(context.Background(), sig))

	active, _ := mgr.Snapshot()
	require.Len(t, active, 1)
	// short: tp below entry, sl above
	assert.InDelta(t, 49600.0, active[0].TakeProfit, 1e-9)
	assert.InDelta(t, 50500.0, active[0].StopLoss, 1e-9)

	mgr.OnPriceTick(context.Background(), 50500)
	_, closed := mgr.Snapshot()
	require.Len(t, closed, 1)
	assert.Equal(t, types.CloseStopLoss, closed[0].CloseReason)
	assert.InDelta(t, -5.0, closed[0].Pnl, 1e-9)
}

func TestCloseFailureRetriesOnNextTick(t *testing.T) {
	exec := new(MockExecutor)
	mgr := newTestManager(exec)

	exec.On("SymbolFilters", mock.Anything, "BTCUSDT").Return(stdFilters(), nil)
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return !req.ReduceOnly
	})).Return(&exchange.OrderResult{OrderID: 300, AvgPrice: 50000}, nil).Once()
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly && req.Type != exchange.OrderTypeMarket
	})).Return(&exchange.OrderResult{OrderID: 301}, nil)
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly && req.Type == exchange.OrderTypeMarket
	})).Return(nil, errors.New("venue unavailable")).Once()
	exec.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.ReduceOnly && req.Type == exchange.OrderTypeMarket
	})).Return(&exchange.OrderResult{OrderID: 302, AvgPrice: 50400}, nil).Once()

	require.NoError(t, mgr.OnSignal(context.Background(), longSignal(50000, 200)))

	mgr.OnPriceTick(context.Background(), 50400)
	active, closed := mgr.Counts()
	assert.Equal(t, 1, active)
	assert.Zero(t, closed)

	mgr.OnPriceTick(context.Background(), 50400)
	active, closed = mgr.Counts()
	assert.Zero(t, active)
	assert.Equal(t, 1, closed)
}

func TestManualCloseUnknownPosition(t *testing.T) {
	exec := new(MockExecutor)
	mgr := newTestManager(exec)

	err := mgr.ClosePosition(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestQuantize(t *testing.T) {
	assert.InDelta(t, 0.01, quantize(500, 50000, 0.001, 0.001), 1e-12)
	assert.InDelta(t, 0.001, quantize(50, 50000, 0.001, 0.001), 1e-12)
	assert.Zero(t, quantize(10, 50000, 0.001, 0.001))
	assert.Zero(t, quantize(500, 0, 0.001, 0.001))
	// never exceeds the notional after rounding up to the nearest step
	qty := quantize(100, 30001, 0.001, 0.001)
	assert.LessOrEqual(t, qty*30001, 100.0)
}
