package panels

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/stocksim/internal/market"
	marketview "github.com/zappabad/stocksim/internal/market/view"
	"github.com/zappabad/stocksim/tui/styles"
)

// Candle is one bar of the chart. Prices are floats because they only
// position glyphs.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// ChartMode selects the candle period.
type ChartMode int

const (
	ChartDaily ChartMode = iota
	ChartIntraday
)

// IntradayPeriod is the width of an intraday candle.
const IntradayPeriod = 15 * time.Minute

// DailyCandles turns closed daily rows into candles and appends the running
// session when open.
func DailyCandles(rows []market.HistoricalData, q marketview.Quote, open bool) []Candle {
	candles := make([]Candle, 0, len(rows)+1)
	for _, h := range rows {
		if !h.Close.Valid {
			continue
		}
		candles = append(candles, Candle{
			Time:  h.Date,
			Open:  h.Open.InexactFloat64(),
			High:  h.High.InexactFloat64(),
			Low:   h.Low.InexactFloat64(),
			Close: h.Close.Decimal.InexactFloat64(),
		})
	}
	if open {
		candles = append(candles, Candle{
			Open:  q.Open.InexactFloat64(),
			High:  q.High.InexactFloat64(),
			Low:   q.Low.InexactFloat64(),
			Close: q.Price.InexactFloat64(),
		})
	}
	return candles
}

// IntradayCandles buckets minute prices into candles of period.
func IntradayCandles(points []marketview.PricePoint, period time.Duration) []Candle {
	var candles []Candle
	for _, pt := range points {
		start := pt.Time.Truncate(period)
		price := pt.Price.InexactFloat64()

		n := len(candles)
		if n == 0 || !candles[n-1].Time.Equal(start) {
			candles = append(candles, Candle{Time: start, Open: price, High: price, Low: price, Close: price})
			continue
		}
		c := &candles[n-1]
		if price > c.High {
			c.High = price
		}
		if price < c.Low {
			c.Low = price
		}
		c.Close = price
	}
	return candles
}

// CandlestickPanel charts one stock.
type CandlestickPanel struct {
	symbol  string
	mode    ChartMode
	candles []Candle

	focused bool
	width   int
	height  int
}

// NewCandlestickPanel creates a new candlestick chart panel.
func NewCandlestickPanel() *CandlestickPanel {
	return &CandlestickPanel{}
}

// Init initializes the panel.
func (p *CandlestickPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *CandlestickPanel) Update(msg tea.Msg) (*CandlestickPanel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && p.focused {
		if key.Matches(msg, key.NewBinding(key.WithKeys("t"))) {
			if p.mode == ChartDaily {
				p.mode = ChartIntraday
			} else {
				p.mode = ChartDaily
			}
			p.candles = nil
		}
	}
	return p, nil
}

// View renders the panel.
func (p *CandlestickPanel) View() string {
	name := "No stock"
	if p.symbol != "" {
		name = p.symbol
	}
	period := "daily"
	if p.mode == ChartIntraday {
		period = "15m"
	}

	var content string
	if len(p.candles) == 0 {
		content = styles.MutedStyle.Render("No price data yet...")
	} else {
		content = p.renderChart(p.width-4, p.height-4)
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle(fmt.Sprintf("Chart %s (%s)", name, period), p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content)

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

func (p *CandlestickPanel) renderChart(width, height int) string {
	// 9 chars of price axis plus the separator
	plotWidth := width - 10
	if plotWidth < 6 {
		plotWidth = 6
	}
	show := plotWidth / 2
	if show < 1 {
		show = 1
	}
	candles := p.candles
	if len(candles) > show {
		candles = candles[len(candles)-show:]
	}

	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = hi * 0.01
	}
	lo -= pad
	hi += pad

	rows := height - 3
	if rows < 5 {
		rows = 5
	}

	var b strings.Builder
	for row := 0; row < rows; row++ {
		price := yToPrice(row, lo, hi, rows)
		b.WriteString(styles.ChartAxisStyle.Render(fmt.Sprintf("%8.2f │", price)))

		for _, c := range candles {
			style := styles.CandleUpStyle
			if c.Close < c.Open {
				style = styles.CandleDownStyle
			}
			b.WriteString(style.Render(string(candleGlyph(c, price, (hi-lo)/float64(rows*2)))))
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}

	b.WriteString(styles.ChartAxisStyle.Render("─────────┴" + strings.Repeat("──", len(candles))))
	b.WriteString("\n          ")

	layout := "02"
	if p.mode == ChartIntraday {
		layout = "15"
	}
	for i, c := range candles {
		if (i%5 == 0 || i == len(candles)-1) && !c.Time.IsZero() {
			b.WriteString(styles.ChartLabelStyle.Render(c.Time.Format(layout)))
			continue
		}
		b.WriteString("  ")
	}
	return b.String()
}

// candleGlyph returns what to draw for c at price level y.
func candleGlyph(c Candle, y, tolerance float64) rune {
	top, bottom := c.Open, c.Close
	if c.Close > c.Open {
		top, bottom = c.Close, c.Open
	}

	switch {
	case y <= top+tolerance && y >= bottom-tolerance:
		return '┃'
	case y <= c.High+tolerance && y > top:
		return '│'
	case y >= c.Low-tolerance && y < bottom:
		return '│'
	default:
		return ' '
	}
}

func yToPrice(y int, lo, hi float64, rows int) float64 {
	if rows <= 1 {
		return lo
	}
	return hi - float64(y)/float64(rows-1)*(hi-lo)
}

// SetFocus sets the focus state of the panel.
func (p *CandlestickPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *CandlestickPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetSymbol sets the stock to chart and clears the candles.
func (p *CandlestickPanel) SetSymbol(symbol string) {
	if symbol != p.symbol {
		p.candles = nil
	}
	p.symbol = symbol
}

// Symbol returns the charted stock.
func (p *CandlestickPanel) Symbol() string {
	return p.symbol
}

// Mode returns the chart period.
func (p *CandlestickPanel) Mode() ChartMode {
	return p.mode
}

// SetCandles replaces the candle data.
func (p *CandlestickPanel) SetCandles(candles []Candle) {
	p.candles = candles
}
