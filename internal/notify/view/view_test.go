package view

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/stocksim/internal/notify"
)

func TestMergedEventReplacesNewest(t *testing.T) {
	v := NewNotificationView(2)
	a := notify.Notification{ID: uuid.New(), Headline: "a", Count: 1}
	b := notify.Notification{ID: uuid.New(), Headline: "b", Count: 1}
	v.Apply(NotificationEvent{Item: a})
	v.Apply(NotificationEvent{Item: b})
	v.Apply(NotificationEvent{Item: notify.Notification{ID: uuid.New(), Headline: "c", Count: 1}})

	// wrapped: newest sits at index 0 of the buffer
	c2 := v.Latest(1)[0]
	c2.Count = 2
	v.Apply(NotificationEvent{Item: c2, Merged: true})

	got := v.Latest(5)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Headline)
	assert.Equal(t, 2, got[1].Count)
	assert.Equal(t, 2, v.Count())
}

func TestMergedEventWithUnknownIDAppends(t *testing.T) {
	v := NewNotificationView(4)
	v.Apply(NotificationEvent{Item: notify.Notification{ID: uuid.New()}})
	v.Apply(NotificationEvent{Item: notify.Notification{ID: uuid.New()}, Merged: true})
	assert.Equal(t, 2, v.Count())
}
