// Package notify carries player-facing notifications: order fills and
// session changes.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind int

const (
	KindInfo Kind = iota
	KindOrderFilled
	KindOrderCancelled
	KindSessionOpened
	KindSessionClosed
)

func (k Kind) String() string {
	switch k {
	case KindOrderFilled:
		return "filled"
	case KindOrderCancelled:
		return "cancelled"
	case KindSessionOpened:
		return "open"
	case KindSessionClosed:
		return "close"
	default:
		return "info"
	}
}

// ParseKind parses the name printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindInfo; k <= KindSessionClosed; k++ {
		if strings.EqualFold(strings.TrimSpace(s), k.String()) {
			return k, nil
		}
	}
	return KindInfo, fmt.Errorf("unknown notification kind %q", s)
}

// Notification is a single message to the player.
type Notification struct {
	ID       uuid.UUID
	Time     time.Time // game time
	Kind     Kind
	Symbol   string // optional; empty means market-wide
	Headline string
	Body     string
	Severity int // 0=normal, positive=more important
	// Count is how many notices were merged into this one.
	Count int
}

// Label is the headline with the merge count appended.
func (n Notification) Label() string {
	if n.Count > 1 {
		return fmt.Sprintf("%s (x%d)", n.Headline, n.Count)
	}
	return n.Headline
}

// Notifier accepts notifications.
type Notifier interface {
	Notify(n Notification)
}

// Discard is a Notifier that drops everything.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Notification) {}
