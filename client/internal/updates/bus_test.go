package updates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(func(Notification) { order = append(order, "first") })
	bus.Subscribe(func(Notification) { order = append(order, "second") })
	bus.Subscribe(func(Notification) { order = append(order, "third") })

	bus.Publish(Notification{Type: NotificationContextChanged})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	bus := NewBus()

	var received []Notification
	bus.Subscribe(func(n Notification) { received = append(received, n) })
	bus.Subscribe(func(Notification) { panic("handler failure") })
	var receivedAfter int
	bus.Subscribe(func(Notification) { receivedAfter++ })

	require.NotPanics(t, func() {
		bus.Publish(Notification{Type: NotificationError, Err: &ErrorInfo{Message: "x"}})
	})

	require.Len(t, received, 1)
	assert.Equal(t, 1, receivedAfter)
}

func TestBus_NoDeliveryBeforeSubscribe(t *testing.T) {
	bus := NewBus()

	bus.Publish(Notification{Type: NotificationContextChanged})

	var count int
	bus.Subscribe(func(Notification) { count++ })
	bus.Publish(Notification{Type: NotificationContextChanged})

	assert.Equal(t, 1, count)
}

func TestBus_RemoveIsIdempotent(t *testing.T) {
	bus := NewBus()

	var count int
	sub := bus.Subscribe(func(Notification) { count++ })

	sub.Remove()
	sub.Remove()
	bus.Publish(Notification{Type: NotificationContextChanged})

	assert.Equal(t, 0, count)
}

func TestBus_SubscribeDuringDelivery(t *testing.T) {
	bus := NewBus()

	var lateCount int
	bus.Subscribe(func(Notification) {
		bus.Subscribe(func(Notification) { lateCount++ })
	})

	bus.Publish(Notification{Type: NotificationContextChanged})
	assert.Equal(t, 0, lateCount, "handler added during delivery must not see the in-flight notification")

	bus.Publish(Notification{Type: NotificationContextChanged})
	assert.Equal(t, 1, lateCount)
}

func TestBus_RemoveDuringDelivery(t *testing.T) {
	bus := NewBus()

	var removedCount int
	var victim *Subscription
	bus.Subscribe(func(Notification) { victim.Remove() })
	victim = bus.Subscribe(func(Notification) { removedCount++ })

	bus.Publish(Notification{Type: NotificationContextChanged})

	assert.Equal(t, 0, removedCount, "handler removed during delivery must not see the in-flight notification")
}
