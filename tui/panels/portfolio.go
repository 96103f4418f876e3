package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/zappabad/stocksim/internal/game"
	"github.com/zappabad/stocksim/internal/market"
	"github.com/zappabad/stocksim/internal/trade"
	"github.com/zappabad/stocksim/tui/styles"
)

// PortfolioPanel shows cash, worth, positions and pending orders. Pending
// orders can be selected and cancelled.
type PortfolioPanel struct {
	summary       game.Portfolio
	symbols       map[market.StockID]string
	selectedOrder int
	focused       bool
	width         int
	height        int
}

// NewPortfolioPanel creates a new portfolio panel.
func NewPortfolioPanel() *PortfolioPanel {
	return &PortfolioPanel{symbols: make(map[market.StockID]string)}
}

// Init initializes the panel.
func (p *PortfolioPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *PortfolioPanel) Update(msg tea.Msg) (*PortfolioPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !p.focused {
			return p, nil
		}
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if p.selectedOrder > 0 {
				p.selectedOrder--
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if p.selectedOrder < len(p.summary.Orders)-1 {
				p.selectedOrder++
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("x", "delete"))):
			if o, ok := p.SelectedOrder(); ok {
				return p, func() tea.Msg { return CancelOrderMsg{ID: o.ID} }
			}
		}
	}
	return p, nil
}

// View renders the panel.
func (p *PortfolioPanel) View() string {
	var content strings.Builder
	s := p.summary

	content.WriteString(fmt.Sprintf("%-9s %12s   %-9s %12s\n", "Funds", styles.FormatPrice(s.Funds), "Balance", styles.FormatPrice(s.Balance)))
	content.WriteString(fmt.Sprintf("%-9s %12s   %-9s %12s\n", "Invested", styles.FormatPrice(s.Invested), "Reserved", styles.FormatPrice(s.Reserved)))
	content.WriteString(styles.HeaderStyle.Render(fmt.Sprintf("%-9s %12s", "Worth", styles.FormatPrice(s.Worth))))
	content.WriteString("\n")

	var perf []string
	for _, days := range game.PerformanceWindows {
		label := fmt.Sprintf("%dd ", days)
		pct, ok := s.Performance[days]
		if !ok {
			perf = append(perf, label+styles.MutedStyle.Render("n/a"))
			continue
		}
		perf = append(perf, label+styles.ChangeStyle(pct).Render(styles.FormatChange(pct)))
	}
	content.WriteString(strings.Join(perf, "  "))
	content.WriteString("\n\n")

	content.WriteString(styles.HeaderStyle.Render(fmt.Sprintf("%-5s %8s %10s %12s", "Sym", "Qty", "Price", "Value")))
	content.WriteString("\n")
	if len(s.Positions) == 0 {
		content.WriteString(styles.MutedStyle.Render("No positions"))
		content.WriteString("\n")
	}
	for _, pos := range s.Positions {
		content.WriteString(fmt.Sprintf("%-5s %8d %10s %12s\n", pos.Symbol, pos.Amount, styles.FormatPrice(pos.Price), styles.FormatPrice(pos.Value)))
	}

	content.WriteString("\n")
	content.WriteString(styles.HeaderStyle.Render(fmt.Sprintf("%-4s %-5s %8s %10s", "Side", "Sym", "Qty", "Limit")))
	content.WriteString("\n")
	if len(s.Orders) == 0 {
		content.WriteString(styles.MutedStyle.Render("No pending orders"))
	}
	for i, o := range s.Orders {
		side := styles.BuyStyle.Render(fmt.Sprintf("%-4s", "BUY"))
		if o.Type == trade.Sell {
			side = styles.SellStyle.Render(fmt.Sprintf("%-4s", "SELL"))
		}
		line := side + fmt.Sprintf(" %-5s %8d %10s", p.symbol(o.StockID), o.Amount, styles.FormatPrice(o.Price))
		if i == p.selectedOrder && p.focused {
			line = styles.SelectedRowStyle.Render(line)
		}
		content.WriteString(line)
		if i < len(s.Orders)-1 {
			content.WriteString("\n")
		}
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle("Portfolio", p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

func (p *PortfolioPanel) symbol(id market.StockID) string {
	if s, ok := p.symbols[id]; ok {
		return s
	}
	return id.String()
}

// SetFocus sets the focus state of the panel.
func (p *PortfolioPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *PortfolioPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetPortfolio replaces the summary. symbols resolves order stock ids.
func (p *PortfolioPanel) SetPortfolio(s game.Portfolio, symbols map[market.StockID]string) {
	p.summary = s
	p.symbols = symbols
	if p.selectedOrder >= len(s.Orders) {
		p.selectedOrder = max(len(s.Orders)-1, 0)
	}
}

// SelectedOrder returns the highlighted pending order.
func (p *PortfolioPanel) SelectedOrder() (trade.TradeOrder, bool) {
	if p.selectedOrder >= 0 && p.selectedOrder < len(p.summary.Orders) {
		return p.summary.Orders[p.selectedOrder], true
	}
	return trade.TradeOrder{}, false
}

// CancelOrderMsg asks to cancel a pending order.
type CancelOrderMsg struct {
	ID uuid.UUID
}
