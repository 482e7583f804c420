// Package updater implements the native update module: it owns the
// authoritative update state machine, talks to the update server and stores
// downloaded bundles. The bridge in client/internal/updates consumes it
// through the updates.NativeModule interface.
package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/updraftio/updraft/client/internal/logstore"
	"github.com/updraftio/updraft/client/internal/updates"
	"github.com/updraftio/updraft/util"
)

const (
	checkTimeout   = time.Minute
	installRecord  = "installed.json"
	errCodeCheck   = "ERR_UPDATES_CHECK"
	errCodeFetch   = "ERR_UPDATES_FETCH"
	errCodeReload  = "ERR_UPDATES_RELOAD"
	updatesErrInfo = "UpdatesError"
)

// checkResponse is the update server's answer to a manifest request
type checkResponse struct {
	Manifest *updates.Manifest `json:"manifest,omitempty"`
	Rollback bool              `json:"rollback,omitempty"`
}

// installedUpdate is the persisted record of the last downloaded update
type installedUpdate struct {
	UpdateID     string    `json:"updateId"`
	CreatedAt    string    `json:"createdAt"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// Manager owns the update state machine and performs the real check,
// download and reload operations
type Manager struct {
	cfg        Config
	logStore   *logstore.Store
	dispatcher *contextDispatcher
	httpClient *http.Client
	restartFn  func()

	machineMu  sync.Mutex
	machineCtx updates.Context

	constants updates.Constants
}

// NewManager creates a manager for the given configuration. Log reads are
// served from store.
func NewManager(cfg Config, store *logstore.Store) *Manager {
	constants := updates.Constants{
		Channel:          cfg.Channel,
		UpdateID:         cfg.UpdateID,
		RuntimeVersion:   cfg.RuntimeVersion,
		IsEmbeddedLaunch: true,
	}
	if createdAt, err := time.Parse(time.RFC3339, cfg.CreatedAt); err == nil {
		constants.CreatedAt = createdAt
	}

	// A surviving install record means the process was launched from a
	// downloaded bundle, not the embedded one
	var record installedUpdate
	if err := util.ReadJson(filepath.Join(cfg.UpdatesDir, installRecord), &record); err == nil && record.UpdateID != "" {
		constants.IsEmbeddedLaunch = false
		constants.UpdateID = record.UpdateID
		if createdAt, err := time.Parse(time.RFC3339, record.CreatedAt); err == nil {
			constants.CreatedAt = createdAt
		}
	}

	return &Manager{
		cfg:        cfg,
		logStore:   store,
		dispatcher: newContextDispatcher(),
		httpClient: &http.Client{Timeout: checkTimeout},
		constants:  constants,
	}
}

// WithRestartFunc sets the callback invoked when Reload commits a pending
// update
func (m *Manager) WithRestartFunc(fn func()) *Manager {
	m.restartFn = fn
	return m
}

// StateMachineContext returns the current machine context snapshot
func (m *Manager) StateMachineContext(context.Context) (updates.Context, error) {
	m.machineMu.Lock()
	defer m.machineMu.Unlock()
	return m.machineCtx, nil
}

// Constants returns the static properties of the running update
func (m *Manager) Constants() updates.Constants {
	return m.constants
}

// AddContextListener registers fn for context change notifications
func (m *Manager) AddContextListener(fn func(updates.Context)) func() {
	return m.dispatcher.addListener(fn)
}

// CheckForUpdate queries the update server for the latest manifest on the
// configured channel and folds the outcome into the machine context
func (m *Manager) CheckForUpdate(ctx context.Context) error {
	m.mutate(func(c *updates.Context) {
		c.IsChecking = true
		c.CheckError = nil
	})

	response, err := m.fetchManifest(ctx)
	if err != nil {
		log.WithField("code", errCodeCheck).Errorf("update check failed: %v", err)
		m.mutate(func(c *updates.Context) {
			c.IsChecking = false
			c.CheckError = &updates.ErrorInfo{Name: updatesErrInfo, Code: errCodeCheck, Message: err.Error()}
		})
		return err
	}

	m.mutate(func(c *updates.Context) {
		c.IsChecking = false

		if response.Rollback {
			c.IsRollback = true
			c.IsUpdateAvailable = true
			c.LatestManifest = response.Manifest
			return
		}

		c.IsRollback = false
		if m.isNewUpdate(response.Manifest) {
			c.IsUpdateAvailable = true
			c.LatestManifest = response.Manifest
		} else {
			c.IsUpdateAvailable = false
			c.LatestManifest = nil
		}
	})

	return nil
}

// FetchUpdate downloads the latest available update bundle, verifies every
// asset and marks the update pending
func (m *Manager) FetchUpdate(ctx context.Context) error {
	m.machineMu.Lock()
	manifest := m.machineCtx.LatestManifest.Clone()
	m.machineMu.Unlock()

	if manifest == nil {
		return fmt.Errorf("no update available to fetch")
	}

	m.mutate(func(c *updates.Context) {
		c.IsDownloading = true
		c.DownloadError = nil
	})

	if err := m.downloadUpdate(ctx, manifest); err != nil {
		log.WithField("code", errCodeFetch).Errorf("update download failed: %v", err)
		m.mutate(func(c *updates.Context) {
			c.IsDownloading = false
			c.DownloadError = &updates.ErrorInfo{Name: updatesErrInfo, Code: errCodeFetch, Message: err.Error()}
		})
		return err
	}

	record := installedUpdate{
		UpdateID:     manifest.ID,
		CreatedAt:    manifest.CreatedAt,
		DownloadedAt: time.Now(),
	}
	if err := util.WriteJson(filepath.Join(m.cfg.UpdatesDir, installRecord), record); err != nil {
		log.Errorf("failed to persist install record: %v", err)
	}

	m.mutate(func(c *updates.Context) {
		c.IsDownloading = false
		c.IsUpdatePending = true
		c.DownloadedManifest = manifest
	})

	return nil
}

// Reload commits a pending update by invoking the configured restart callback
func (m *Manager) Reload(context.Context) error {
	m.machineMu.Lock()
	pending := m.machineCtx.IsUpdatePending
	m.machineMu.Unlock()

	if !pending {
		err := fmt.Errorf("no pending update to reload into")
		log.WithField("code", errCodeReload).Errorf("reload rejected: %v", err)
		return err
	}

	m.mutate(func(c *updates.Context) {
		c.IsRestarting = true
	})

	if m.restartFn != nil {
		m.restartFn()
	}
	return nil
}

// ReadLogEntries returns client log entries no older than maxAge
func (m *Manager) ReadLogEntries(_ context.Context, maxAge time.Duration) ([]updates.LogEntry, error) {
	if m.logStore == nil {
		return nil, fmt.Errorf("log store not configured")
	}
	return m.logStore.Entries(maxAge), nil
}

func (m *Manager) mutate(fn func(*updates.Context)) {
	m.machineMu.Lock()
	fn(&m.machineCtx)
	snapshot := m.machineCtx
	m.machineMu.Unlock()

	m.dispatcher.notify(snapshot)
}

func (m *Manager) fetchManifest(ctx context.Context) (*checkResponse, error) {
	url := fmt.Sprintf("%s/manifest?channel=%s&runtimeVersion=%s", m.cfg.UpdateURL, m.cfg.Channel, m.cfg.RuntimeVersion)

	var response *checkResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := m.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request manifest: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				log.Errorf("error closing manifest response body: %v", err)
			}
		}()

		if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(fmt.Errorf("manifest request rejected: %s", resp.Status))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("invalid status code: %d", resp.StatusCode)
		}

		var decoded checkResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("decode manifest: %w", err))
		}

		response = &decoded
		return nil
	}

	expBackOff := backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     200 * time.Millisecond,
		RandomizationFactor: 0.3,
		Multiplier:          2,
		MaxInterval:         3 * time.Second,
		MaxElapsedTime:      15 * time.Second,
		Clock:               backoff.SystemClock,
		Stop:                backoff.Stop,
	}, ctx)

	if err := backoff.Retry(operation, expBackOff); err != nil {
		return nil, err
	}
	return response, nil
}

// isNewUpdate reports whether manifest describes an update this client does
// not already run and can load
func (m *Manager) isNewUpdate(manifest *updates.Manifest) bool {
	if manifest == nil || manifest.ID == "" {
		return false
	}
	if manifest.ID == m.constants.UpdateID {
		return false
	}

	manifestRuntime, err := goversion.NewVersion(manifest.RuntimeVersion)
	if err != nil {
		log.Errorf("failed parsing manifest runtime version `%s`: %v", manifest.RuntimeVersion, err)
		return false
	}
	clientRuntime, err := goversion.NewVersion(m.cfg.RuntimeVersion)
	if err != nil {
		log.Errorf("failed parsing client runtime version `%s`: %v", m.cfg.RuntimeVersion, err)
		return false
	}

	if !manifestRuntime.Equal(clientRuntime) {
		log.Debugf("skipping update %s: runtime version %s does not match %s",
			manifest.ID, manifest.RuntimeVersion, m.cfg.RuntimeVersion)
		return false
	}

	return true
}

func (m *Manager) downloadUpdate(ctx context.Context, manifest *updates.Manifest) error {
	bundleDir := filepath.Join(m.cfg.UpdatesDir, manifest.ID)
	if err := os.MkdirAll(bundleDir, 0750); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	var result *multierror.Error
	assets := append([]updates.Asset{manifest.LaunchAsset}, manifest.Assets...)
	for _, asset := range assets {
		if err := m.downloadAsset(ctx, bundleDir, asset); err != nil {
			result = multierror.Append(result, fmt.Errorf("asset %s: %w", asset.URL, err))
		}
	}

	return result.ErrorOrNil()
}

func (m *Manager) downloadAsset(ctx context.Context, dir string, asset updates.Asset) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Errorf("error closing asset response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("invalid status code: %d", resp.StatusCode)
	}

	out, err := os.Create(filepath.Join(dir, assetFileName(asset)))
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Errorf("error closing asset file: %v", err)
		}
	}()

	hasher := sha256.New()
	if _, err = io.Copy(io.MultiWriter(out, hasher), resp.Body); err != nil {
		return fmt.Errorf("write asset: %w", err)
	}

	if asset.Hash != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if sum != asset.Hash {
			return fmt.Errorf("hash mismatch: expected %s, got %s", asset.Hash, sum)
		}
	}

	log.Tracef("downloaded asset %s to %s", asset.URL, dir)
	return nil
}

func assetFileName(asset updates.Asset) string {
	if asset.Key != "" {
		return asset.Key
	}
	return filepath.Base(asset.URL)
}
