package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/stocksim/internal/notify"
	"github.com/zappabad/stocksim/tui/styles"
)

// NotificationPanel lists fills and session notices, newest last.
type NotificationPanel struct {
	items         []notify.Notification
	selectedIndex int
	scrollOffset  int
	focused       bool
	width         int
	height        int
	maxItems      int
}

// NewNotificationPanel creates a new notification panel.
func NewNotificationPanel() *NotificationPanel {
	return &NotificationPanel{
		maxItems: 50,
	}
}

// Init initializes the panel.
func (p *NotificationPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *NotificationPanel) Update(msg tea.Msg) (*NotificationPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !p.focused {
			return p, nil
		}
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if p.selectedIndex > 0 {
				p.selectedIndex--
				if p.selectedIndex < p.scrollOffset {
					p.scrollOffset = p.selectedIndex
				}
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if p.selectedIndex < len(p.items)-1 {
				p.selectedIndex++
				visible := p.height - 4
				if p.selectedIndex >= p.scrollOffset+visible {
					p.scrollOffset = p.selectedIndex - visible + 1
				}
			}
		}
	}
	return p, nil
}

// View renders the panel.
func (p *NotificationPanel) View() string {
	var content strings.Builder

	if len(p.items) == 0 {
		content.WriteString(styles.MutedStyle.Render("Nothing yet"))
	} else {
		visible := p.height - 4
		if visible < 1 {
			visible = 1
		}
		start := p.scrollOffset
		end := start + visible
		if end > len(p.items) {
			end = len(p.items)
		}

		for i := start; i < end; i++ {
			item := p.items[i]

			headline := item.Label()
			if limit := p.width - 20; limit > 3 && len(headline) > limit {
				headline = headline[:limit-3] + "..."
			}

			style := styles.NoticeStyle
			if item.Severity > 0 {
				style = styles.ImportantNoticeStyle
			}
			line := fmt.Sprintf("%s %s", styles.TimeStyle.Render(item.Time.Format("Jan 02 15:04")), style.Render(headline))
			if i == p.selectedIndex && p.focused {
				line = styles.SelectedRowStyle.Render(line)
			}

			content.WriteString(line)
			if i < end-1 {
				content.WriteString("\n")
			}
		}

		if len(p.items) > visible {
			content.WriteString("\n")
			content.WriteString(styles.MutedStyle.Render(fmt.Sprintf(" (%d/%d)", p.selectedIndex+1, len(p.items))))
		}
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle("Notifications", p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

// SetFocus sets the focus state of the panel.
func (p *NotificationPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *NotificationPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetItems replaces the list.
func (p *NotificationPanel) SetItems(items []notify.Notification) {
	p.items = items
	if p.selectedIndex >= len(p.items) {
		p.selectedIndex = max(len(p.items)-1, 0)
	}
}

// Add appends one notification, keeping the newest maxItems. An item with
// the ID of the newest one replaces it.
func (p *NotificationPanel) Add(item notify.Notification) {
	if n := len(p.items); n > 0 && p.items[n-1].ID == item.ID {
		p.items[n-1] = item
		return
	}
	p.items = append(p.items, item)
	if len(p.items) > p.maxItems {
		p.items = p.items[len(p.items)-p.maxItems:]
	}
}

// Items returns the listed notifications.
func (p *NotificationPanel) Items() []notify.Notification {
	return p.items
}

// NotificationMsg carries a notification from the game.
type NotificationMsg struct {
	Item notify.Notification
}
