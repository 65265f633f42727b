package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macdbot/internal/trader"
	"macdbot/internal/types"
)

func closedTrade(pnl, commission float64) trader.Position {
	return trader.Position{
		Symbol:     "BTCUSDT",
		Direction:  types.Long,
		State:      types.StateClosed,
		Pnl:        pnl,
		Commission: commission,
		ClosedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]trader.Position{
		closedTrade(4, 0.4),
		closedTrade(-2.5, 0.4),
		closedTrade(1.25, 0.35),
	})
	assert.Equal(t, 3, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 2.75, s.NetPnl, 1e-9)
	assert.InDelta(t, 1.15, s.Commission, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Trades)
	assert.Zero(t, s.NetPnl)
}

func TestRenderProducesHTML(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, "btcusdt", []trader.Position{closedTrade(4, 0.4), closedTrade(-1, 0.4)})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "BTCUSDT closed trades")
	assert.Contains(t, html, "Cumulative PnL")
}

func TestRenderEmptyTrades(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "BTCUSDT", nil))
	assert.Contains(t, buf.String(), "trades 0")
}
