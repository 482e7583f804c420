package updates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testManifest = &Manifest{
	ID:             "0000-2222",
	CreatedAt:      "2026-01-15T10:30:00Z",
	RuntimeVersion: "1.0.0",
	LaunchAsset:    Asset{URL: "https://updates.example.com/bundles/0000-2222.js"},
	Assets: []Asset{
		{URL: "https://updates.example.com/assets/logo.png", ContentType: "image/png"},
	},
}

func TestReduce_Idempotence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	testMatrix := []struct {
		name       string
		prev       State
		machineCtx Context
	}{
		{
			name:       "empty state, empty context",
			prev:       State{},
			machineCtx: Context{},
		},
		{
			name:       "check completed with manifest",
			prev:       State{IsChecking: true},
			machineCtx: Context{IsUpdateAvailable: true, LatestManifest: testManifest},
		},
		{
			name:       "download pending",
			prev:       State{IsDownloading: true},
			machineCtx: Context{IsUpdatePending: true, DownloadedManifest: testManifest},
		},
		{
			name:       "check error",
			prev:       State{Err: &ErrorInfo{Message: "old"}},
			machineCtx: Context{CheckError: &ErrorInfo{Name: "UpdatesError", Code: "ERR_TEST", Message: "boom"}},
		},
	}

	for _, c := range testMatrix {
		t.Run(c.name, func(t *testing.T) {
			once := Reduce(c.prev, c.machineCtx, now)
			twice := Reduce(once, c.machineCtx, now)
			assert.Equal(t, once, twice)
		})
	}
}

func TestReduce_RollbackExcludesAvailableUpdate(t *testing.T) {
	machineCtx := Context{
		IsRollback:        true,
		IsUpdateAvailable: true,
		LatestManifest:    testManifest,
	}

	state := Reduce(State{}, machineCtx, time.Now())

	assert.Nil(t, state.AvailableUpdate)
	assert.Nil(t, state.DownloadedUpdate)
	// the flags still mirror the context verbatim
	assert.True(t, state.IsUpdateAvailable)
}

func TestReduce_FlagFidelity(t *testing.T) {
	testMatrix := []Context{
		{},
		{IsChecking: true},
		{IsDownloading: true, IsUpdateAvailable: true},
		{IsUpdateAvailable: true, IsUpdatePending: true, DownloadedManifest: testManifest},
	}

	for _, machineCtx := range testMatrix {
		state := Reduce(State{}, machineCtx, time.Now())
		assert.Equal(t, machineCtx.IsChecking, state.IsChecking)
		assert.Equal(t, machineCtx.IsDownloading, state.IsDownloading)
		assert.Equal(t, machineCtx.IsUpdateAvailable, state.IsUpdateAvailable)
		assert.Equal(t, machineCtx.IsUpdatePending, state.IsUpdatePending)
	}
}

func TestReduce_ClearsPriorError(t *testing.T) {
	prev := State{
		Err:             &ErrorInfo{Name: "UpdatesError", Code: "ERR_OLD", Message: "stale"},
		AvailableUpdate: newAvailableUpdate(testManifest),
	}

	state := Reduce(prev, Context{}, time.Now())

	assert.Nil(t, state.Err)
	assert.Nil(t, state.AvailableUpdate)
}

func TestReduce_ErrorPrecedence(t *testing.T) {
	checkErr := &ErrorInfo{Name: "UpdatesError", Code: "ERR_CHECK", Message: "check failed"}
	downloadErr := &ErrorInfo{Name: "UpdatesError", Code: "ERR_DOWNLOAD", Message: "download failed"}

	state := Reduce(State{}, Context{CheckError: checkErr}, time.Now())
	assert.Equal(t, checkErr, state.Err)

	state = Reduce(State{}, Context{DownloadError: downloadErr}, time.Now())
	assert.Equal(t, downloadErr, state.Err)
}

func TestReduce_InitialContext(t *testing.T) {
	state := Reduce(State{}, Context{}, time.Now())

	assert.False(t, state.IsUpdateAvailable)
	assert.Nil(t, state.AvailableUpdate)
	assert.Nil(t, state.Err)
	assert.Nil(t, state.LastCheckedAt)
}

func TestReduce_StampsLastCheckedOnCheckCompletion(t *testing.T) {
	checking := Reduce(State{}, Context{IsChecking: true}, time.Now())
	require.True(t, checking.IsChecking)
	assert.Nil(t, checking.LastCheckedAt)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	done := Reduce(checking, Context{IsUpdateAvailable: true, LatestManifest: testManifest}, now)

	require.NotNil(t, done.LastCheckedAt)
	assert.Equal(t, now, *done.LastCheckedAt)
	require.NotNil(t, done.AvailableUpdate)
	assert.Equal(t, "0000-2222", done.AvailableUpdate.UpdateID)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), done.AvailableUpdate.CreatedAt)

	// subsequent idle snapshots keep the stamp
	later := Reduce(done, Context{}, now.Add(time.Minute))
	require.NotNil(t, later.LastCheckedAt)
	assert.Equal(t, now, *later.LastCheckedAt)
}

func TestReduce_CheckError(t *testing.T) {
	machineCtx := Context{
		CheckError: &ErrorInfo{Name: "UpdatesError", Code: "ERR_TEST", Message: "test message"},
	}

	state := Reduce(State{IsChecking: true}, machineCtx, time.Now())

	require.NotNil(t, state.Err)
	assert.Equal(t, "test message", state.Err.Message)
	assert.False(t, state.IsUpdateAvailable)
}

func TestReduce_DownloadedUpdate(t *testing.T) {
	downloading := Reduce(State{}, Context{IsDownloading: true}, time.Now())

	machineCtx := Context{
		IsUpdateAvailable:  true,
		IsUpdatePending:    true,
		LatestManifest:     testManifest,
		DownloadedManifest: testManifest,
	}
	state := Reduce(downloading, machineCtx, time.Now())

	require.NotNil(t, state.DownloadedUpdate)
	assert.Equal(t, testManifest, state.DownloadedUpdate.Manifest)
	assert.True(t, state.IsUpdatePending)
	assert.False(t, state.IsDownloading)
}

func TestReduce_CarriesLogEntries(t *testing.T) {
	prev := State{
		LogEntries: []LogEntry{{Level: "error", Message: "asset hash mismatch"}},
	}

	state := Reduce(prev, Context{IsChecking: true}, time.Now())

	assert.Equal(t, prev.LogEntries, state.LogEntries)
}
