// Package csvlog appends completed trade operations to a CSV file, one
// row per open and per close, for offline inspection in a spreadsheet.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"macdbot/internal/trader"
	"macdbot/internal/types"
)

var header = []string{
	"timestamp", "operation", "symbol", "direction",
	"entry_price", "quantity", "stop_loss", "take_profit",
	"exit_price", "commission", "pnl", "pnl_pct", "close_reason",
}

// Log writes trade rows to a single CSV file. The file is created with a
// header on first use and rows are flushed per append.
type Log struct {
	mu   sync.Mutex
	path string
}

func New(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create trade log dir: %w", err)
		}
	}
	l := &Log{path: path}
	if err := l.ensureHeader(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) ensureHeader() error {
	if _, err := os.Stat(l.path); err == nil {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("create trade log: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write trade log header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Append writes one row for the position's latest transition. Open
// positions record entry fields; closed positions add exit and pnl.
func (l *Log) Append(p trader.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rowFor(p)); err != nil {
		return fmt.Errorf("write trade log row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func rowFor(p trader.Position) []string {
	operation := "open"
	exitPrice, pnl, pnlPct, reason := "", "", "", ""
	ts := p.OpenedAt
	if p.State == types.StateClosed {
		operation = "close"
		ts = p.ClosedAt
		exitPrice = formatFloat(p.ExitPrice)
		pnl = formatFloat(p.Pnl)
		pnlPct = formatFloat(p.PnlPct)
		reason = string(p.CloseReason)
	}
	return []string{
		ts.UTC().Format(time.RFC3339),
		operation,
		p.Symbol,
		string(p.Direction),
		formatFloat(p.EntryPrice),
		formatFloat(p.Quantity),
		formatFloat(p.StopLoss),
		formatFloat(p.TakeProfit),
		exitPrice,
		formatFloat(p.Commission),
		pnl,
		pnlPct,
		reason,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
