package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/zappabad/stocksim/internal/market"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#2563EB") // Blue
	AccentColor  = lipgloss.Color("#F59E0B") // Amber

	UpColor      = lipgloss.Color("#10B981") // Green
	DownColor    = lipgloss.Color("#EF4444") // Red
	NeutralColor = lipgloss.Color("#6B7280") // Gray

	BackgroundColor      = lipgloss.Color("#1F2937")
	PanelBackgroundColor = lipgloss.Color("#111827")
	BorderColor          = lipgloss.Color("#374151")
	FocusBorderColor     = PrimaryColor

	TextColor          = lipgloss.Color("#F9FAFB")
	TextSecondaryColor = lipgloss.Color("#9CA3AF")
	TextMutedColor     = lipgloss.Color("#6B7280")
)

// Panel styles
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	FocusedPanelStyle = PanelStyle.
				BorderForeground(FocusBorderColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextSecondaryColor)

	RowStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Background(BorderColor)

	MutedStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)
)

// Text styles
var (
	BuyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(UpColor)

	SellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(DownColor)

	PriceUpStyle = lipgloss.NewStyle().
			Foreground(UpColor)

	PriceDownStyle = lipgloss.NewStyle().
			Foreground(DownColor)

	TimeStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	ImportantNoticeStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(AccentColor)

	SessionOpenStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(UpColor)

	SessionClosedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(DownColor)
)

// Input styles
var (
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	FocusedInputStyle = InputStyle.
				BorderForeground(FocusBorderColor)

	LabelStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor)

	OptionStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Padding(0, 1)

	SelectedOptionStyle = OptionStyle.
				Background(BorderColor)

	MatchStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)
)

// Chart styles
var (
	CandleUpStyle = lipgloss.NewStyle().
			Foreground(UpColor)

	CandleDownStyle = lipgloss.NewStyle().
			Foreground(DownColor)

	ChartAxisStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	ChartLabelStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor)
)

// Status bar styles
var (
	StatusBarStyle = lipgloss.NewStyle().
			Background(BackgroundColor).
			Foreground(TextSecondaryColor).
			Padding(0, 1)

	StatusBarKeyStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)

	StatusBarDescStyle = lipgloss.NewStyle().
				Foreground(TextSecondaryColor)
)

// RenderTitle renders a panel title.
func RenderTitle(title string, focused bool) string {
	style := TitleStyle
	if focused {
		style = style.Foreground(FocusBorderColor).Underline(true)
	}
	return style.Render(title)
}

// FormatPrice formats a price with the market precision.
func FormatPrice(price decimal.Decimal) string {
	return price.StringFixed(market.PriceDecimals)
}

// FormatChange formats a signed percentage.
func FormatChange(pct decimal.Decimal) string {
	s := pct.StringFixed(2) + "%"
	if pct.IsPositive() {
		s = "+" + s
	}
	return s
}

// ChangeStyle colors a value by the sign of pct.
func ChangeStyle(pct decimal.Decimal) lipgloss.Style {
	switch {
	case pct.IsPositive():
		return PriceUpStyle
	case pct.IsNegative():
		return PriceDownStyle
	default:
		return MutedStyle
	}
}
