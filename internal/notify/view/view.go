package view

import (
	"sync"

	"github.com/zappabad/stocksim/internal/notify"
)

// NotificationEvent wraps a published notification. Merged marks an update
// of the newest entry rather than a new one.
type NotificationEvent struct {
	Item   notify.Notification
	Merged bool
}

// NotificationView maintains a bounded ring buffer of notifications.
type NotificationView struct {
	mu    sync.RWMutex
	buf   []notify.Notification
	size  int
	start int
	count int
}

// NewNotificationView creates a new NotificationView with the given capacity.
func NewNotificationView(capacity int) *NotificationView {
	if capacity <= 0 {
		capacity = 100
	}
	return &NotificationView{
		buf:  make([]notify.Notification, capacity),
		size: capacity,
	}
}

// Apply adds a notification to the view, or replaces the newest one for a
// merged event with a matching ID.
func (v *NotificationView) Apply(ev NotificationEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if ev.Merged && v.count > 0 {
		newest := (v.start + v.count - 1) % v.size
		if v.buf[newest].ID == ev.Item.ID {
			v.buf[newest] = ev.Item
			return
		}
	}

	if v.count < v.size {
		v.buf[(v.start+v.count)%v.size] = ev.Item
		v.count++
		return
	}
	// overwrite oldest
	v.buf[v.start] = ev.Item
	v.start = (v.start + 1) % v.size
}

// Latest returns the last n notifications, oldest first.
func (v *NotificationView) Latest(n int) []notify.Notification {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if n <= 0 || v.count == 0 {
		return nil
	}
	if n > v.count {
		n = v.count
	}

	out := make([]notify.Notification, n)
	first := (v.start + (v.count - n)) % v.size
	for i := 0; i < n; i++ {
		out[i] = v.buf[(first+i)%v.size]
	}
	return out
}

// Count returns the number of notifications held.
func (v *NotificationView) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.count
}
