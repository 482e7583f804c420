package updates

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EventType classifies check-outcome events for the legacy listener API
type EventType string

const (
	EventUpdateAvailable   EventType = "updateAvailable"
	EventNoUpdateAvailable EventType = "noUpdateAvailable"
	EventError             EventType = "error"
)

// Event is emitted to registered event listeners each time an update check
// completes
type Event struct {
	Type     EventType
	Manifest *Manifest
	Err      *ErrorInfo
}

// Watcher composes the bridge: it seeds the public state from the native
// module, folds every context change notification through Reduce, applies
// completion notifications directly, and keeps consumers current through
// change listeners.
type Watcher struct {
	native     NativeModule
	bus        *Bus
	dispatcher *Dispatcher

	mu    sync.Mutex
	state State

	contextSub    *Subscription
	completionSub *Subscription
	removeNative  func()

	changeListeners map[*func(State)]struct{}
	eventListeners  map[*func(Event)]struct{}
	listenerMu      sync.Mutex
}

// NewWatcher creates a watcher bridging native through bus. The watcher is
// inert until Start is called.
func NewWatcher(native NativeModule, bus *Bus) *Watcher {
	return &Watcher{
		native:          native,
		bus:             bus,
		dispatcher:      NewDispatcher(native, bus),
		changeListeners: make(map[*func(State)]struct{}),
		eventListeners:  make(map[*func(Event)]struct{}),
	}
}

// Start seeds the state from the machine's current context and subscribes
// to change and completion notifications until Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.contextSub != nil {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.mu.Unlock()

	machineCtx, err := w.native.StateMachineContext(ctx)
	if err != nil {
		return fmt.Errorf("get state machine context: %w", err)
	}

	w.mu.Lock()
	w.state = Reduce(State{}, machineCtx, time.Now())
	w.contextSub = w.bus.Subscribe(w.onNotification)
	w.completionSub = w.bus.Subscribe(w.onCompletion)
	w.mu.Unlock()

	// Bridge native machine notifications onto the bus
	w.removeNative = w.native.AddContextListener(func(machineCtx Context) {
		w.bus.Publish(Notification{
			Type:    NotificationContextChanged,
			Context: machineCtx,
		})
	})

	return nil
}

// Stop removes all subscriptions. The last observed state remains readable.
func (w *Watcher) Stop() {
	if w.removeNative != nil {
		w.removeNative()
		w.removeNative = nil
	}

	w.mu.Lock()
	contextSub, completionSub := w.contextSub, w.completionSub
	w.contextSub, w.completionSub = nil, nil
	w.mu.Unlock()

	contextSub.Remove()
	completionSub.Remove()
}

// State returns the current public state
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// CurrentlyRunning returns the static properties of the running update
func (w *Watcher) CurrentlyRunning() Constants {
	return w.native.Constants()
}

// CheckForUpdate triggers a native update check
func (w *Watcher) CheckForUpdate(ctx context.Context) <-chan error {
	return w.dispatcher.CheckForUpdate(ctx)
}

// FetchUpdate triggers a native download of the latest available update
func (w *Watcher) FetchUpdate(ctx context.Context) <-chan error {
	return w.dispatcher.FetchUpdate(ctx)
}

// Reload restarts the application into a pending update
func (w *Watcher) Reload(ctx context.Context) <-chan error {
	return w.dispatcher.Reload(ctx)
}

// ReadLogEntries reads client log entries; the result lands in
// State.LogEntries via a completion notification
func (w *Watcher) ReadLogEntries(ctx context.Context, maxAge time.Duration) <-chan error {
	return w.dispatcher.ReadLogEntries(ctx, maxAge)
}

// OnChange registers fn to be called with the new state after every state
// mutation. The returned func removes the listener.
func (w *Watcher) OnChange(fn func(State)) func() {
	w.listenerMu.Lock()
	defer w.listenerMu.Unlock()

	key := &fn
	w.changeListeners[key] = struct{}{}

	return func() {
		w.listenerMu.Lock()
		defer w.listenerMu.Unlock()
		delete(w.changeListeners, key)
	}
}

// AddEventListener registers fn for check-outcome events. The returned func
// removes the listener.
func (w *Watcher) AddEventListener(fn func(Event)) func() {
	w.listenerMu.Lock()
	defer w.listenerMu.Unlock()

	key := &fn
	w.eventListeners[key] = struct{}{}

	return func() {
		w.listenerMu.Lock()
		defer w.listenerMu.Unlock()
		delete(w.eventListeners, key)
	}
}

func (w *Watcher) onNotification(n Notification) {
	if n.Type != NotificationContextChanged {
		return
	}

	w.mu.Lock()
	prev := w.state
	w.state = Reduce(prev, n.Context, time.Now())
	state := w.state
	w.mu.Unlock()

	log.Tracef("update context folded: checking=%t downloading=%t available=%t pending=%t",
		state.IsChecking, state.IsDownloading, state.IsUpdateAvailable, state.IsUpdatePending)

	w.notifyChanged(state)

	if prev.IsChecking && !n.Context.IsChecking {
		w.notifyEvent(checkOutcome(n.Context))
	}
}

func (w *Watcher) onCompletion(n Notification) {
	w.mu.Lock()
	switch n.Type {
	case NotificationLogEntriesRead:
		w.state.LogEntries = n.LogEntries
	case NotificationError:
		w.state.Err = n.Err
	default:
		w.mu.Unlock()
		return
	}
	state := w.state
	w.mu.Unlock()

	w.notifyChanged(state)
}

func (w *Watcher) notifyChanged(state State) {
	w.listenerMu.Lock()
	defer w.listenerMu.Unlock()
	for fn := range w.changeListeners {
		(*fn)(state)
	}
}

func (w *Watcher) notifyEvent(event Event) {
	w.listenerMu.Lock()
	defer w.listenerMu.Unlock()
	for fn := range w.eventListeners {
		(*fn)(event)
	}
}

func checkOutcome(machineCtx Context) Event {
	switch {
	case machineCtx.CheckError != nil:
		return Event{Type: EventError, Err: machineCtx.CheckError}
	case machineCtx.LatestManifest != nil && !machineCtx.IsRollback:
		return Event{Type: EventUpdateAvailable, Manifest: machineCtx.LatestManifest}
	default:
		return Event{Type: EventNoUpdateAvailable}
	}
}
