package updates

import (
	"context"
	"time"
)

// NativeModule is the external collaborator that performs real update
// checks, downloads and installs and owns the authoritative state machine.
// The bridge consumes it exclusively through this interface.
type NativeModule interface {
	// StateMachineContext returns the current machine context snapshot
	StateMachineContext(ctx context.Context) (Context, error)

	// CheckForUpdate asks the machine to check the update server. The
	// outcome is observed later as context change notifications.
	CheckForUpdate(ctx context.Context) error

	// FetchUpdate asks the machine to download the latest available update
	FetchUpdate(ctx context.Context) error

	// Reload restarts the application into a pending update
	Reload(ctx context.Context) error

	// ReadLogEntries returns client log entries no older than maxAge, in order
	ReadLogEntries(ctx context.Context, maxAge time.Duration) ([]LogEntry, error)

	// Constants returns the static properties of the running update
	Constants() Constants

	// AddContextListener registers fn for machine context change
	// notifications. The returned func removes the listener.
	AddContextListener(fn func(Context)) func()
}
