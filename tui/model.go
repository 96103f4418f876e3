package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/stocksim/internal/game"
	"github.com/zappabad/stocksim/internal/market"
	"github.com/zappabad/stocksim/internal/trade"
	"github.com/zappabad/stocksim/tui/panels"
	"github.com/zappabad/stocksim/tui/styles"
)

// PanelFocus represents which panel is currently focused.
type PanelFocus int

const (
	FocusMarket PanelFocus = iota
	FocusPortfolio
	FocusChart
	FocusNotifications
	FocusOrderInput

	panelCount = 5
)

const (
	refreshInterval = 100 * time.Millisecond
	tapePoints      = 8 * 60
	notificationCap = 50
)

// Model is the main TUI application model.
type Model struct {
	game *game.Game

	marketPanel       *panels.MarketPanel
	portfolioPanel    *panels.PortfolioPanel
	chartPanel        *panels.CandlestickPanel
	notificationPanel *panels.NotificationPanel
	orderInputPanel   *panels.OrderInputPanel

	selected     market.StockID
	focusedPanel PanelFocus

	width  int
	height int

	statusMsg string
	ready     bool
}

// NewModel creates a new TUI model.
func NewModel(g *game.Game) *Model {
	m := &Model{
		game:              g,
		marketPanel:       panels.NewMarketPanel(),
		portfolioPanel:    panels.NewPortfolioPanel(),
		chartPanel:        panels.NewCandlestickPanel(),
		notificationPanel: panels.NewNotificationPanel(),
		orderInputPanel:   panels.NewOrderInputPanel(),
	}
	m.setFocus(FocusMarket)
	return m
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.refresh()
	m.notificationPanel.SetItems(m.game.Notifications(notificationCap))
	return tea.Batch(
		m.marketPanel.Init(),
		m.portfolioPanel.Init(),
		m.chartPanel.Init(),
		m.notificationPanel.Init(),
		m.orderInputPanel.Init(),
		m.listenNotifications(),
		m.tickRefresh(),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			// q is a letter in the symbol field
			if m.focusedPanel != FocusOrderInput {
				return m, tea.Quit
			}
		case "tab":
			m.setFocus((m.focusedPanel + 1) % panelCount)
			return m, nil
		case "shift+tab":
			m.setFocus((m.focusedPanel + panelCount - 1) % panelCount)
			return m, nil
		case "f1":
			m.setFocus(FocusMarket)
			return m, nil
		case "f2":
			m.setFocus(FocusPortfolio)
			return m, nil
		case "f3":
			m.setFocus(FocusChart)
			return m, nil
		case "f4":
			m.setFocus(FocusNotifications)
			return m, nil
		case "f5":
			m.setFocus(FocusOrderInput)
			return m, nil
		case "ctrl+p":
			m.togglePause()
			return m, nil
		case "ctrl+s":
			return m, m.save()
		case " ", "p":
			if m.focusedPanel != FocusOrderInput {
				m.togglePause()
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case panels.StockSelectedMsg:
		m.selected = msg.Quote.ID
		m.chartPanel.SetSymbol(msg.Quote.Symbol)
		m.orderInputPanel.SetStock(msg.Quote)
		m.refreshChart()

	case panels.OrderSubmitMsg:
		cmds = append(cmds, m.submitOrder(msg))

	case panels.OrderInvalidMsg:
		m.statusMsg = "Order rejected: " + msg.Reason

	case panels.CancelOrderMsg:
		if m.game.CancelOrder(msg.ID) {
			m.statusMsg = "Order cancelled"
		} else {
			m.statusMsg = "Order already filled or cancelled"
		}
		m.refresh()

	case panels.NotificationMsg:
		m.notificationPanel.Add(msg.Item)
		cmds = append(cmds, m.listenNotifications())

	case statusMsg:
		m.statusMsg = string(msg)
		m.refresh()

	case tickMsg:
		m.refresh()
		cmds = append(cmds, m.tickRefresh())
	}

	if cmd := m.updateFocusedPanel(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) updateFocusedPanel(msg tea.Msg) tea.Cmd {
	// panels only take keys while focused; data arrives through setters
	if _, ok := msg.(tea.KeyMsg); !ok {
		return nil
	}

	var cmd tea.Cmd
	switch m.focusedPanel {
	case FocusMarket:
		m.marketPanel, cmd = m.marketPanel.Update(msg)
	case FocusPortfolio:
		m.portfolioPanel, cmd = m.portfolioPanel.Update(msg)
	case FocusChart:
		mode := m.chartPanel.Mode()
		m.chartPanel, cmd = m.chartPanel.Update(msg)
		if mode != m.chartPanel.Mode() {
			m.refreshChart()
		}
	case FocusNotifications:
		m.notificationPanel, cmd = m.notificationPanel.Update(msg)
	case FocusOrderInput:
		m.orderInputPanel, cmd = m.orderInputPanel.Update(msg)
	}
	return cmd
}

// View renders the UI.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	// ┌──────────┬────────────┬─────────┐
	// │  Market  │ Portfolio  │  Chart  │
	// ├──────────┼────────────┴─────────┤
	// │  Alerts  │     Order Entry      │
	// └──────────┴──────────────────────┘
	leftWidth := m.width / 3
	middleWidth := m.width / 3
	rightWidth := m.width - leftWidth - middleWidth

	topHeight := (m.height - 1) * 2 / 3
	bottomHeight := m.height - 1 - topHeight

	m.marketPanel.SetSize(leftWidth, topHeight)
	m.portfolioPanel.SetSize(middleWidth, topHeight)
	m.chartPanel.SetSize(rightWidth, topHeight)
	m.notificationPanel.SetSize(leftWidth, bottomHeight)
	m.orderInputPanel.SetSize(m.width-leftWidth, bottomHeight)

	topRow := lipgloss.JoinHorizontal(lipgloss.Top,
		m.marketPanel.View(),
		m.portfolioPanel.View(),
		m.chartPanel.View(),
	)
	bottomRow := lipgloss.JoinHorizontal(lipgloss.Top,
		m.notificationPanel.View(),
		m.orderInputPanel.View(),
	)

	return lipgloss.JoinVertical(lipgloss.Left, topRow, bottomRow, m.renderStatusBar())
}

func (m *Model) renderStatusBar() string {
	hint := func(k, desc string) string {
		return styles.StatusBarKeyStyle.Render(k) + styles.StatusBarDescStyle.Render(" "+desc)
	}

	clock := "running"
	if m.game.Paused() {
		clock = "paused"
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Center,
		hint("F1-F5", "panels"), " │ ",
		hint("p", clock), " │ ",
		hint("^s", "save"), " │ ",
		hint("q", "quit"),
	)
	if m.statusMsg != "" {
		bar += " │ " + m.statusMsg
	}
	return styles.StatusBarStyle.Width(m.width).Render(bar)
}

func (m *Model) setFocus(panel PanelFocus) {
	m.focusedPanel = panel
	m.marketPanel.SetFocus(panel == FocusMarket)
	m.portfolioPanel.SetFocus(panel == FocusPortfolio)
	m.chartPanel.SetFocus(panel == FocusChart)
	m.notificationPanel.SetFocus(panel == FocusNotifications)
	m.orderInputPanel.SetFocus(panel == FocusOrderInput)
}

func (m *Model) togglePause() {
	paused := !m.game.Paused()
	m.game.SetPaused(paused)
	if paused {
		m.statusMsg = "Clock paused"
	} else {
		m.statusMsg = "Clock running"
	}
}

// refresh pulls fresh state from the game into every panel.
func (m *Model) refresh() {
	snap := m.game.Market()
	m.marketPanel.SetSnapshot(snap)
	m.orderInputPanel.SetStocks(snap.Quotes)

	symbols := make(map[market.StockID]string, len(snap.Quotes))
	for _, q := range snap.Quotes {
		symbols[q.ID] = q.Symbol
	}
	m.portfolioPanel.SetPortfolio(m.game.Portfolio(), symbols)

	if m.chartPanel.Symbol() == "" && len(snap.Quotes) > 0 {
		m.selected = snap.Quotes[0].ID
		m.chartPanel.SetSymbol(snap.Quotes[0].Symbol)
	}
	m.refreshChart()
}

func (m *Model) refreshChart() {
	symbol := m.chartPanel.Symbol()
	if symbol == "" {
		return
	}

	if m.chartPanel.Mode() == panels.ChartIntraday {
		m.chartPanel.SetCandles(panels.IntradayCandles(m.game.Tape(m.selected, tapePoints), panels.IntradayPeriod))
		return
	}

	q, err := m.game.Lookup(symbol)
	if err != nil {
		return
	}
	rows, err := m.game.History(q.ID)
	if err != nil {
		return
	}
	m.chartPanel.SetCandles(panels.DailyCandles(rows, q, m.game.Market().Open))
}

func (m *Model) submitOrder(o panels.OrderSubmitMsg) tea.Cmd {
	return func() tea.Msg {
		side := "Buy"
		if o.Side == trade.Sell {
			side = "Sell"
		}

		if !o.Limit {
			var ok bool
			if o.Side == trade.Buy {
				ok = m.game.InstantBuy(o.StockID, o.Amount)
			} else {
				ok = m.game.InstantSell(o.StockID, o.Amount)
			}
			if !ok {
				return statusMsg(fmt.Sprintf("%s %d %s rejected", side, o.Amount, o.Symbol))
			}
			return statusMsg(fmt.Sprintf("%s %d %s done", side, o.Amount, o.Symbol))
		}

		var (
			order trade.TradeOrder
			ok    bool
		)
		if o.Side == trade.Buy {
			order, ok = m.game.BuyLimit(o.StockID, o.Price, o.Amount)
		} else {
			order, ok = m.game.SellLimit(o.StockID, o.Price, o.Amount)
		}
		if !ok {
			return statusMsg(fmt.Sprintf("%s limit %d %s @ %s rejected", side, o.Amount, o.Symbol, styles.FormatPrice(o.Price)))
		}
		return statusMsg(fmt.Sprintf("%s limit %d %s @ %s queued (%s)", side, o.Amount, o.Symbol, styles.FormatPrice(o.Price), order.ID.String()[:8]))
	}
}

func (m *Model) save() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.game.Save(ctx); err != nil {
			return statusMsg("Save failed: " + err.Error())
		}
		return statusMsg("Saved")
	}
}

func (m *Model) listenNotifications() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.game.NotificationEvents()
		if !ok {
			return nil
		}
		return panels.NotificationMsg{Item: ev.Item}
	}
}

// tickMsg is sent periodically to refresh data.
type tickMsg struct{}

func (m *Model) tickRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// statusMsg replaces the status bar message.
type statusMsg string
