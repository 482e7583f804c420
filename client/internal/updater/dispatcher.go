package updater

import (
	"sync"

	"github.com/updraftio/updraft/client/internal/updates"
)

// contextDispatcher fans machine context snapshots out to registered listeners
type contextDispatcher struct {
	listeners map[*func(updates.Context)]struct{}
	mu        sync.Mutex
}

func newContextDispatcher() *contextDispatcher {
	return &contextDispatcher{
		listeners: make(map[*func(updates.Context)]struct{}),
	}
}

func (d *contextDispatcher) addListener(fn func(updates.Context)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := &fn
	d.listeners[key] = struct{}{}

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, key)
	}
}

func (d *contextDispatcher) notify(machineCtx updates.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for fn := range d.listeners {
		(*fn)(machineCtx)
	}
}
