package updates

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// NotificationType tags the two kinds of messages multiplexed on the bus
type NotificationType int

const (
	// NotificationContextChanged carries a fresh machine context snapshot
	NotificationContextChanged NotificationType = iota
	// NotificationLogEntriesRead carries the result of a successful log read
	NotificationLogEntriesRead
	// NotificationError carries an asynchronous action failure
	NotificationError
)

// Notification is one message delivered through the Bus. Exactly the fields
// matching Type are set.
type Notification struct {
	Type       NotificationType
	Context    Context
	LogEntries []LogEntry
	Err        *ErrorInfo
}

// Subscription represents one registered bus handler
type Subscription struct {
	id      string
	handler func(Notification)
	removed atomic.Bool
	bus     *Bus
}

// Remove unsubscribes the handler. Safe to call more than once and safe to
// call from inside a handler; a subscription removed during a delivery pass
// does not receive the in-flight notification.
func (s *Subscription) Remove() {
	if s == nil || s.removed.Swap(true) {
		return
	}
	s.bus.remove(s.id)
}

// Bus is a synchronous publish/subscribe channel for update notifications.
// It is an explicitly constructed value owned by its caller, not process
// global state.
type Bus struct {
	mu   sync.Mutex
	subs []*Subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for every notification published after this
// call. Handlers are invoked in subscription order.
func (b *Bus) Subscribe(handler func(Notification)) *Subscription {
	sub := &Subscription{
		id:      uuid.New().String(),
		handler: handler,
		bus:     b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)

	return sub
}

// Publish delivers n to all subscribers registered at the time of the call,
// in subscription order, before returning. Handlers subscribed during the
// delivery pass do not receive n. A panicking handler is isolated and does
// not prevent delivery to the remaining handlers.
func (b *Bus) Publish(n Notification) {
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		if sub.removed.Load() {
			continue
		}
		b.deliver(sub, n)
	}
}

func (b *Bus) deliver(sub *Subscription, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("update notification handler panicked: %v", r)
		}
	}()

	sub.handler(n)
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
