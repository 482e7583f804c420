package updates

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultLogMaxAge bounds how far back ReadLogEntries reads when the caller
// passes no explicit age.
const DefaultLogMaxAge = time.Hour

// Dispatcher triggers native update operations. Calls are fire-and-forget:
// the returned channel reports the invocation outcome for callers that want
// it, while all resulting state changes arrive later as notifications. A
// dispatcher never mutates State itself.
type Dispatcher struct {
	native NativeModule
	bus    *Bus
}

// NewDispatcher creates a dispatcher invoking native and publishing
// completion notifications on bus
func NewDispatcher(native NativeModule, bus *Bus) *Dispatcher {
	return &Dispatcher{
		native: native,
		bus:    bus,
	}
}

// CheckForUpdate triggers a native update check
func (d *Dispatcher) CheckForUpdate(ctx context.Context) <-chan error {
	return d.dispatch(ctx, "check for update", d.native.CheckForUpdate)
}

// FetchUpdate triggers a native download of the latest available update
func (d *Dispatcher) FetchUpdate(ctx context.Context) <-chan error {
	return d.dispatch(ctx, "fetch update", d.native.FetchUpdate)
}

// Reload restarts the application into a pending update
func (d *Dispatcher) Reload(ctx context.Context) <-chan error {
	return d.dispatch(ctx, "reload", d.native.Reload)
}

// ReadLogEntries reads client log entries no older than maxAge
// (DefaultLogMaxAge when zero) and publishes exactly one completion
// notification: the ordered entries on success, an error notification on
// failure.
func (d *Dispatcher) ReadLogEntries(ctx context.Context, maxAge time.Duration) <-chan error {
	if maxAge <= 0 {
		maxAge = DefaultLogMaxAge
	}

	done := make(chan error, 1)
	go func() {
		entries, err := d.native.ReadLogEntries(ctx, maxAge)
		if err != nil {
			log.Errorf("read log entries failed: %v", err)
			d.bus.Publish(Notification{
				Type: NotificationError,
				Err: &ErrorInfo{
					Name:    "UpdatesError",
					Code:    "ERR_UPDATES_READ_LOGS",
					Message: err.Error(),
				},
			})
			done <- err
			return
		}

		d.bus.Publish(Notification{
			Type:       NotificationLogEntriesRead,
			LogEntries: entries,
		})
		done <- nil
	}()

	return done
}

func (d *Dispatcher) dispatch(ctx context.Context, op string, fn func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		err := fn(ctx)
		if err != nil {
			log.Errorf("%s failed: %v", op, err)
		}
		done <- err
	}()

	return done
}
