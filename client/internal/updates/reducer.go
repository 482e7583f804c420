package updates

import "time"

// Reduce folds a machine context snapshot into the public state. It is pure
// in its three arguments: the same previous state, context and timestamp
// always produce the same result.
//
// The context is the single source of truth for the four boolean flags and
// for the derived update values, which are recomputed from scratch on every
// fold so stale values never survive a snapshot that no longer carries them.
// Only LastCheckedAt and LogEntries are carried over from the previous
// state: the former because it is stamped on the checking->idle transition
// and must survive later snapshots, the latter because log entries arrive
// through completion notifications, never through the context.
func Reduce(prev State, machineCtx Context, now time.Time) State {
	next := State{
		IsUpdateAvailable: machineCtx.IsUpdateAvailable,
		IsUpdatePending:   machineCtx.IsUpdatePending,
		IsChecking:        machineCtx.IsChecking,
		IsDownloading:     machineCtx.IsDownloading,
		LastCheckedAt:     prev.LastCheckedAt,
		LogEntries:        prev.LogEntries,
	}

	if prev.IsChecking && !machineCtx.IsChecking {
		checked := now
		next.LastCheckedAt = &checked
	}

	// A rollback context is never surfaced as an installable update
	if !machineCtx.IsRollback {
		next.AvailableUpdate = newAvailableUpdate(machineCtx.LatestManifest)
		next.DownloadedUpdate = newAvailableUpdate(machineCtx.DownloadedManifest)
	}

	switch {
	case machineCtx.CheckError != nil:
		next.Err = machineCtx.CheckError
	case machineCtx.DownloadError != nil:
		next.Err = machineCtx.DownloadError
	}

	return next
}
