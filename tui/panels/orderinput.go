package panels

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/zappabad/stocksim/internal/market"
	marketview "github.com/zappabad/stocksim/internal/market/view"
	"github.com/zappabad/stocksim/internal/trade"
	"github.com/zappabad/stocksim/tui/styles"
)

// OrderInputField is the focused input field.
type OrderInputField int

const (
	FieldSymbol OrderInputField = iota
	FieldSide
	FieldType
	FieldPrice
	FieldQuantity
	FieldSubmit
)

const (
	typeLimit   = 0
	typeInstant = 1
)

// stockChoice is one autocomplete entry.
type stockChoice struct {
	id     market.StockID
	symbol string
	name   string
}

// OrderInputPanel handles order entry with symbol autocomplete.
type OrderInputPanel struct {
	choices       []stockChoice
	symbolInput   textinput.Model
	priceInput    textinput.Model
	quantityInput textinput.Model

	showDropdown bool
	filtered     []stockChoice
	dropdownIdx  int

	sideOptions []string
	sideIndex   int
	typeOptions []string
	typeIndex   int

	currentField OrderInputField
	selected     *stockChoice

	focused bool
	width   int
	height  int
}

// NewOrderInputPanel creates a new order input panel.
func NewOrderInputPanel() *OrderInputPanel {
	symbolInput := textinput.New()
	symbolInput.Placeholder = "Symbol or name..."
	symbolInput.Width = 18
	symbolInput.CharLimit = 24

	priceInput := textinput.New()
	priceInput.Placeholder = "Limit"
	priceInput.Width = 10
	priceInput.CharLimit = 12

	quantityInput := textinput.New()
	quantityInput.Placeholder = "Shares"
	quantityInput.Width = 10
	quantityInput.CharLimit = 9

	return &OrderInputPanel{
		symbolInput:   symbolInput,
		priceInput:    priceInput,
		quantityInput: quantityInput,
		sideOptions:   []string{"BUY", "SELL"},
		typeOptions:   []string{"LIMIT", "INSTANT"},
		currentField:  FieldSymbol,
	}
}

// Init initializes the panel.
func (p *OrderInputPanel) Init() tea.Cmd {
	return textinput.Blink
}

// SetStocks sets the autocomplete entries from quotes.
func (p *OrderInputPanel) SetStocks(quotes []marketview.Quote) {
	if len(quotes) == len(p.choices) {
		return
	}
	p.choices = make([]stockChoice, len(quotes))
	for i, q := range quotes {
		p.choices[i] = stockChoice{id: q.ID, symbol: q.Symbol, name: q.Name}
	}
	p.filtered = p.choices
}

// Update handles messages for the panel.
func (p *OrderInputPanel) Update(msg tea.Msg) (*OrderInputPanel, tea.Cmd) {
	if !p.focused {
		return p, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("down"))):
			p.nextField()
			return p, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("up"))):
			p.prevField()
			return p, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			if p.currentField == FieldSubmit {
				return p, p.submit()
			}
			p.nextField()
			return p, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
			p.showDropdown = false
			return p, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("left"))):
			if p.cycle(-1) {
				return p, nil
			}

		case key.Matches(msg, key.NewBinding(key.WithKeys("right"))):
			if p.cycle(1) {
				return p, nil
			}
		}
	}

	var cmd tea.Cmd
	switch p.currentField {
	case FieldSymbol:
		p.symbolInput, cmd = p.symbolInput.Update(msg)
		p.filter(p.symbolInput.Value())
		p.showDropdown = p.symbolInput.Value() != ""
	case FieldPrice:
		p.priceInput, cmd = p.priceInput.Update(msg)
	case FieldQuantity:
		p.quantityInput, cmd = p.quantityInput.Update(msg)
	}
	return p, cmd
}

// cycle moves the dropdown or option selection. It reports whether the key
// was used.
func (p *OrderInputPanel) cycle(delta int) bool {
	step := func(i, n int) int {
		i += delta
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}

	switch {
	case p.showDropdown:
		p.dropdownIdx = step(p.dropdownIdx, len(p.filtered))
	case p.currentField == FieldSide:
		p.sideIndex = step(p.sideIndex, len(p.sideOptions))
	case p.currentField == FieldType:
		p.typeIndex = step(p.typeIndex, len(p.typeOptions))
	default:
		return false
	}
	return true
}

// View renders the panel.
func (p *OrderInputPanel) View() string {
	var content strings.Builder

	content.WriteString(p.renderField("Stock", FieldSymbol, p.renderSymbolField()))
	content.WriteString("\n")
	content.WriteString(p.renderField("Side", FieldSide, p.renderOptions(FieldSide, p.sideOptions, p.sideIndex)))
	content.WriteString("\n")
	content.WriteString(p.renderField("Type", FieldType, p.renderOptions(FieldType, p.typeOptions, p.typeIndex)))
	content.WriteString("\n")
	if p.typeIndex == typeLimit {
		content.WriteString(p.renderField("Limit", FieldPrice, p.priceInput.View()))
		content.WriteString("\n")
	}
	content.WriteString(p.renderField("Qty", FieldQuantity, p.quantityInput.View()))
	content.WriteString("\n\n")

	submitStyle := styles.InputStyle
	if p.currentField == FieldSubmit && p.focused {
		submitStyle = styles.FocusedInputStyle.Bold(true).Foreground(styles.PrimaryColor)
	}
	content.WriteString(submitStyle.Render("  [Place Order]  "))
	content.WriteString("\n\n")
	content.WriteString(p.renderSummary())

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle("Order Entry", p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

func (p *OrderInputPanel) renderField(label string, field OrderInputField, input string) string {
	labelStyle := styles.LabelStyle
	if p.currentField == field && p.focused {
		labelStyle = labelStyle.Foreground(styles.PrimaryColor)
	}
	return labelStyle.Render(fmt.Sprintf("%-7s", label)) + input
}

func (p *OrderInputPanel) renderSymbolField() string {
	var b strings.Builder

	inputStyle := styles.InputStyle
	if p.currentField == FieldSymbol && p.focused {
		inputStyle = styles.FocusedInputStyle
		p.symbolInput.Focus()
	} else {
		p.symbolInput.Blur()
	}
	b.WriteString(inputStyle.Render(p.symbolInput.View()))

	if p.showDropdown && len(p.filtered) > 0 {
		n := min(len(p.filtered), 5)
		for i := 0; i < n; i++ {
			c := p.filtered[i]
			style := styles.OptionStyle
			if i == p.dropdownIdx {
				style = styles.SelectedOptionStyle
			}
			b.WriteString("\n        ")
			b.WriteString(style.Render(highlight(c.symbol, p.symbolInput.Value()) + " " + c.name))
		}
	}
	return b.String()
}

func (p *OrderInputPanel) renderOptions(field OrderInputField, options []string, index int) string {
	items := make([]string, len(options))
	for i, opt := range options {
		style := styles.OptionStyle
		if i == index {
			if p.currentField == field && p.focused {
				style = styles.SelectedOptionStyle
			} else {
				style = style.Bold(true)
			}
			switch opt {
			case "BUY":
				style = style.Foreground(styles.UpColor)
			case "SELL":
				style = style.Foreground(styles.DownColor)
			}
		}
		items[i] = style.Render(opt)
	}
	return strings.Join(items, " | ")
}

func (p *OrderInputPanel) renderSummary() string {
	symbol := "---"
	if p.selected != nil {
		symbol = p.selected.symbol
	}

	side := p.sideOptions[p.sideIndex]
	sideStyle := styles.BuyStyle
	if side == "SELL" {
		sideStyle = styles.SellStyle
	}

	parts := []string{sideStyle.Render(side), orZero(p.quantityInput.Value()), symbol}
	if p.typeIndex == typeLimit {
		parts = append(parts, "@", orZero(p.priceInput.Value()))
	} else {
		parts = append(parts, "at market")
	}
	return styles.HeaderStyle.Render("Order: ") + strings.Join(parts, " ")
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func (p *OrderInputPanel) filter(query string) {
	query = strings.ToUpper(strings.TrimSpace(query))
	p.filtered = nil
	p.dropdownIdx = 0
	for _, c := range p.choices {
		if strings.Contains(c.symbol, query) || strings.Contains(strings.ToUpper(c.name), query) {
			p.filtered = append(p.filtered, c)
		}
	}
}

func highlight(item, query string) string {
	idx := strings.Index(strings.ToUpper(item), strings.ToUpper(query))
	if query == "" || idx == -1 {
		return item
	}
	end := idx + len(query)
	return item[:idx] + styles.MatchStyle.Render(item[idx:end]) + item[end:]
}

// resolve picks the highlighted dropdown entry, or an exact symbol match.
func (p *OrderInputPanel) resolve() {
	if p.showDropdown && p.dropdownIdx < len(p.filtered) {
		c := p.filtered[p.dropdownIdx]
		p.selected = &c
		p.symbolInput.SetValue(c.symbol)
		return
	}
	value := strings.ToUpper(strings.TrimSpace(p.symbolInput.Value()))
	for i := range p.choices {
		if p.choices[i].symbol == value {
			c := p.choices[i]
			p.selected = &c
			return
		}
	}
}

func (p *OrderInputPanel) nextField() {
	switch p.currentField {
	case FieldSymbol:
		p.resolve()
		p.currentField = FieldSide
		p.symbolInput.Blur()
	case FieldSide:
		p.currentField = FieldType
	case FieldType:
		if p.typeIndex == typeLimit {
			p.currentField = FieldPrice
			p.priceInput.Focus()
		} else {
			p.currentField = FieldQuantity
			p.quantityInput.Focus()
		}
	case FieldPrice:
		p.currentField = FieldQuantity
		p.priceInput.Blur()
		p.quantityInput.Focus()
	case FieldQuantity:
		p.currentField = FieldSubmit
		p.quantityInput.Blur()
	case FieldSubmit:
		p.currentField = FieldSymbol
		p.symbolInput.Focus()
	}
	p.showDropdown = false
}

func (p *OrderInputPanel) prevField() {
	p.showDropdown = false
	switch p.currentField {
	case FieldSymbol:
		p.currentField = FieldSubmit
		p.symbolInput.Blur()
	case FieldSide:
		p.currentField = FieldSymbol
		p.symbolInput.Focus()
	case FieldType:
		p.currentField = FieldSide
	case FieldPrice:
		p.currentField = FieldType
		p.priceInput.Blur()
	case FieldQuantity:
		if p.typeIndex == typeLimit {
			p.currentField = FieldPrice
			p.priceInput.Focus()
		} else {
			p.currentField = FieldType
		}
		p.quantityInput.Blur()
	case FieldSubmit:
		p.currentField = FieldQuantity
		p.quantityInput.Focus()
	}
}

// Order validates the fields and builds the order to place.
func (p *OrderInputPanel) Order() (OrderSubmitMsg, error) {
	if p.selected == nil {
		return OrderSubmitMsg{}, fmt.Errorf("pick a stock")
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(p.quantityInput.Value()), 10, 64)
	if err != nil || amount <= 0 {
		return OrderSubmitMsg{}, fmt.Errorf("quantity must be a positive whole number")
	}

	msg := OrderSubmitMsg{
		StockID: p.selected.id,
		Symbol:  p.selected.symbol,
		Side:    trade.Buy,
		Limit:   p.typeIndex == typeLimit,
		Amount:  amount,
	}
	if p.sideIndex == 1 {
		msg.Side = trade.Sell
	}
	if msg.Limit {
		price, err := decimal.NewFromString(strings.TrimSpace(p.priceInput.Value()))
		if err != nil || !price.IsPositive() {
			return OrderSubmitMsg{}, fmt.Errorf("limit must be a positive price")
		}
		msg.Price = price
	}
	return msg, nil
}

func (p *OrderInputPanel) submit() tea.Cmd {
	order, err := p.Order()
	if err != nil {
		return func() tea.Msg { return OrderInvalidMsg{Reason: err.Error()} }
	}
	return func() tea.Msg { return order }
}

// SetFocus sets the focus state of the panel.
func (p *OrderInputPanel) SetFocus(focused bool) {
	p.focused = focused
	if !focused {
		p.symbolInput.Blur()
		p.priceInput.Blur()
		p.quantityInput.Blur()
		return
	}
	switch p.currentField {
	case FieldSymbol:
		p.symbolInput.Focus()
	case FieldPrice:
		p.priceInput.Focus()
	case FieldQuantity:
		p.quantityInput.Focus()
	}
}

// SetSize sets the panel dimensions.
func (p *OrderInputPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetStock pre-fills the stock field.
func (p *OrderInputPanel) SetStock(q marketview.Quote) {
	c := stockChoice{id: q.ID, symbol: q.Symbol, name: q.Name}
	p.selected = &c
	p.symbolInput.SetValue(q.Symbol)
}

// Reset clears the price and quantity.
func (p *OrderInputPanel) Reset() {
	p.priceInput.SetValue("")
	p.quantityInput.SetValue("")
	p.currentField = FieldSymbol
	p.showDropdown = false
}

// OrderSubmitMsg is sent when an order is submitted.
type OrderSubmitMsg struct {
	StockID market.StockID
	Symbol  string
	Side    trade.OrderType
	// Limit is false for an instant order at the current price.
	Limit  bool
	Price  decimal.Decimal
	Amount int64
}

// OrderInvalidMsg is sent when the form cannot be submitted.
type OrderInvalidMsg struct {
	Reason string
}
