// Package report renders the closed-trade performance page: per-trade
// pnl bars overlaid with the cumulative pnl line.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"macdbot/internal/trader"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorWin           = "#34d399"
	colorLoss          = "#f87171"
	colorCumulative    = "#22d3ee"

	chartWidthPx  = 1200
	chartHeightPx = 480
)

// Summary aggregates the closed trades behind the chart.
type Summary struct {
	Trades     int     `json:"trades"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	NetPnl     float64 `json:"net_pnl"`
	Commission float64 `json:"commission"`
}

func Summarize(closed []trader.Position) Summary {
	var s Summary
	for _, p := range closed {
		s.Trades++
		if p.Pnl >= 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		s.NetPnl += p.Pnl
		s.Commission += p.Commission
	}
	s.NetPnl = round(s.NetPnl, 4)
	s.Commission = round(s.Commission, 6)
	return s
}

// Render writes the HTML report for the given closed trades. An empty
// trade list still renders a page with the summary title.
func Render(w io.Writer, symbol string, closed []trader.Position) error {
	summary := Summarize(closed)
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s closed trades", strings.ToUpper(symbol)),
			Subtitle:      fmt.Sprintf("trades %d | wins %d | losses %d | net pnl %.4f | commission %.6f", summary.Trades, summary.Wins, summary.Losses, summary.NetPnl, summary.Commission),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)

	xAxis := make([]string, len(closed))
	bars := make([]opts.BarData, len(closed))
	cumulative := make([]opts.LineData, len(closed))
	var running float64
	for i, p := range closed {
		xAxis[i] = p.ClosedAt.UTC().Format("01-02 15:04")
		color := colorLoss
		if p.Pnl >= 0 {
			color = colorWin
		}
		bars[i] = opts.BarData{
			Value:     round(p.Pnl, 4),
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.8)},
		}
		running += p.Pnl
		cumulative[i] = opts.LineData{Value: round(running, 4)}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Trade PnL", bars)

	line := charts.NewLine()
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("Cumulative PnL", cumulative, charts.WithLineStyleOpts(opts.LineStyle{Color: colorCumulative, Width: 2}))
	bar.Overlap(line)

	page.AddCharts(bar)
	page.PageTitle = fmt.Sprintf("%s report %s", strings.ToUpper(symbol), time.Now().UTC().Format("2006-01-02"))
	return page.Render(w)
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
