package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	marketview "github.com/zappabad/stocksim/internal/market/view"
	"github.com/zappabad/stocksim/tui/styles"
)

// MarketPanel lists the latest quote of every stock.
type MarketPanel struct {
	snap          marketview.MarketSnapshot
	selectedIndex int
	scrollOffset  int
	focused       bool
	width         int
	height        int
}

// NewMarketPanel creates a new market panel.
func NewMarketPanel() *MarketPanel {
	return &MarketPanel{}
}

// Init initializes the panel.
func (p *MarketPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *MarketPanel) Update(msg tea.Msg) (*MarketPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !p.focused {
			return p, nil
		}
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if p.selectedIndex > 0 {
				p.selectedIndex--
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if p.selectedIndex < len(p.snap.Quotes)-1 {
				p.selectedIndex++
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			if q, ok := p.SelectedQuote(); ok {
				return p, func() tea.Msg { return StockSelectedMsg{Quote: q} }
			}
		}
		p.keepSelectionVisible()
	}
	return p, nil
}

func (p *MarketPanel) visibleRows() int {
	rows := p.height - 6
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (p *MarketPanel) keepSelectionVisible() {
	rows := p.visibleRows()
	if p.selectedIndex < p.scrollOffset {
		p.scrollOffset = p.selectedIndex
	}
	if p.selectedIndex >= p.scrollOffset+rows {
		p.scrollOffset = p.selectedIndex - rows + 1
	}
}

// View renders the panel.
func (p *MarketPanel) View() string {
	var content strings.Builder

	session := styles.SessionClosedStyle.Render("CLOSED")
	if p.snap.Open {
		session = styles.SessionOpenStyle.Render("OPEN")
	}
	content.WriteString(styles.TimeStyle.Render(p.snap.Time.Format("Mon 2006-01-02 15:04")) + "  " + session)
	content.WriteString("\n")

	header := fmt.Sprintf("%-5s %10s %9s %10s %10s", "Sym", "Price", "Chg", "High", "Low")
	content.WriteString(styles.HeaderStyle.Render(header))
	content.WriteString("\n")

	if len(p.snap.Quotes) == 0 {
		content.WriteString(styles.MutedStyle.Render("Market not started"))
	}

	end := p.scrollOffset + p.visibleRows()
	if end > len(p.snap.Quotes) {
		end = len(p.snap.Quotes)
	}
	for i := p.scrollOffset; i < end; i++ {
		q := p.snap.Quotes[i]
		sym := q.Symbol
		if q.Trending {
			sym += "*"
		}

		// pad before styling; escape codes break %-width verbs
		change := styles.ChangeStyle(q.Change).Render(fmt.Sprintf("%9s", styles.FormatChange(q.Change)))
		row := fmt.Sprintf("%-5s %10s ", sym, styles.FormatPrice(q.Price)) + change +
			fmt.Sprintf(" %10s %10s", styles.FormatPrice(q.High), styles.FormatPrice(q.Low))

		style := styles.RowStyle
		if i == p.selectedIndex && p.focused {
			style = styles.SelectedRowStyle
		}
		content.WriteString(style.Render(row))
		if i < end-1 {
			content.WriteString("\n")
		}
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle("Market", p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

// SetFocus sets the focus state of the panel.
func (p *MarketPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *MarketPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetSnapshot replaces the quotes.
func (p *MarketPanel) SetSnapshot(snap marketview.MarketSnapshot) {
	p.snap = snap
	if p.selectedIndex >= len(snap.Quotes) {
		p.selectedIndex = 0
	}
}

// SelectedQuote returns the highlighted quote.
func (p *MarketPanel) SelectedQuote() (marketview.Quote, bool) {
	if p.selectedIndex >= 0 && p.selectedIndex < len(p.snap.Quotes) {
		return p.snap.Quotes[p.selectedIndex], true
	}
	return marketview.Quote{}, false
}

// StockSelectedMsg is sent when a stock is picked in the market panel.
type StockSelectedMsg struct {
	Quote marketview.Quote
}
