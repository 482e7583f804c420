// Package updates bridges the native update state machine to UI consumers.
// It folds machine context snapshots into a stable public State and delivers
// change and completion notifications to any number of subscribers.
package updates

import (
	"time"

	"golang.org/x/exp/maps"
)

// ErrorInfo is the uniform representation of check, download and log-read
// failures surfaced through State.Err.
type ErrorInfo struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Asset references one downloadable file of an update bundle
type Asset struct {
	URL         string `json:"url"`
	Key         string `json:"key,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Hash        string `json:"hash,omitempty"`
}

// Manifest describes one specific update bundle. Immutable once received.
type Manifest struct {
	ID             string            `json:"id"`
	CreatedAt      string            `json:"createdAt"`
	RuntimeVersion string            `json:"runtimeVersion"`
	LaunchAsset    Asset             `json:"launchAsset"`
	Assets         []Asset           `json:"assets"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Clone returns a copy of the manifest
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	c := *m
	c.Assets = append([]Asset(nil), m.Assets...)
	c.Metadata = maps.Clone(m.Metadata)
	return &c
}

// Context is a point-in-time snapshot of the native update state machine.
// It is received from the native module and never mutated by this package.
type Context struct {
	IsChecking        bool
	IsDownloading     bool
	IsUpdateAvailable bool
	IsUpdatePending   bool
	IsRollback        bool
	IsRestarting      bool

	CheckError    *ErrorInfo
	DownloadError *ErrorInfo

	LatestManifest     *Manifest
	DownloadedManifest *Manifest
}

// LogEntry is one client log record returned by the native read-log operation
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
}

// Constants holds the static properties of the currently running update.
// They are read once from the native module and never recomputed.
type Constants struct {
	Channel          string
	UpdateID         string
	CreatedAt        time.Time
	RuntimeVersion   string
	IsEmbeddedLaunch bool
}

// AvailableUpdate describes an update the machine reported as installable
type AvailableUpdate struct {
	UpdateID  string
	CreatedAt time.Time
	Manifest  *Manifest
}

// State is the public, UI-consumable view of the update lifecycle
type State struct {
	AvailableUpdate  *AvailableUpdate
	DownloadedUpdate *AvailableUpdate

	IsUpdateAvailable bool
	IsUpdatePending   bool
	IsChecking        bool
	IsDownloading     bool

	// LastCheckedAt is stamped on the transition out of checking
	LastCheckedAt *time.Time

	Err        *ErrorInfo
	LogEntries []LogEntry
}

func newAvailableUpdate(manifest *Manifest) *AvailableUpdate {
	if manifest == nil {
		return nil
	}

	createdAt, err := time.Parse(time.RFC3339, manifest.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}

	return &AvailableUpdate{
		UpdateID:  manifest.ID,
		CreatedAt: createdAt,
		Manifest:  manifest,
	}
}
