package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/latoulicious/rpsync/internal/reconcile"
	"github.com/latoulicious/rpsync/pkg/cloud"
	"github.com/latoulicious/rpsync/pkg/conflict"
	"github.com/latoulicious/rpsync/pkg/logging"
	"github.com/latoulicious/rpsync/pkg/profile"
	"github.com/latoulicious/rpsync/pkg/savedvars"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const savedVariables = `
TRP3_Profiles = {
	["alpha"] = {
		["profileName"] = "Alpha",
		["player"] = {
			["characteristics"] = {
				["FN"] = "Alpha",
				["IC"] = "INV_Misc_Book_09",
			},
		},
	},
	["beta"] = {
		["profileName"] = "Beta",
		["player"] = {
			["characteristics"] = {
				["FN"] = "Beta",
			},
		},
	},
}
`

type cliFixture struct {
	env   *Env
	store *cloud.MemoryGateway
	out   *bytes.Buffer
	path  string
	args  []string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RPSYNC_DATABASE_URL", "")
	t.Setenv("RPSYNC_SAVED_VARIABLES", "")
	t.Setenv("RPSYNC_ACCOUNT_ID", "")
	t.Setenv("RPSYNC_GAME_PATH", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "WTF", "Account", "ACC", "SavedVariables", "totalRP3.lua")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(savedVariables), 0o644))

	cfgDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	cfg := fmt.Sprintf("logger:\n  level: error\nsyncmeta:\n  path: %q\naddon:\n  saved_variables: %q\n",
		filepath.Join(dir, "data", "meta.db"), path)
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "rpsync.yaml"), []byte(cfg), 0o644))

	store := cloud.NewMemoryGateway("user-1", 0)
	out := &bytes.Buffer{}
	return &cliFixture{
		env:   &Env{Out: out, Err: io.Discard, Gateway: store},
		store: store,
		out:   out,
		path:  path,
		args:  []string{"rpsync", "--config", cfgDir},
	}
}

func (f *cliFixture) run(args ...string) error {
	f.out.Reset()
	return NewApp(f.env).Run(append(append([]string{}, f.args...), args...))
}

func (f *cliFixture) report(t *testing.T) reconcile.Report {
	t.Helper()
	var r reconcile.Report
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &r))
	return r
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestUpload_FirstRun(t *testing.T) {
	f := newCLIFixture(t)

	require.NoError(t, f.run("upload", "-q"))
	r := f.report(t)
	assert.Equal(t, []string{"alpha", "beta"}, r.Uploaded)

	list, err := f.store.ListProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ACC", list[0].AccountID, "account id comes from the SavedVariables path")

	require.NoError(t, f.run("upload", "-q"))
	assert.Equal(t, []string{"alpha", "beta"}, f.report(t).Skipped)
}

func TestUpload_SelectedProfiles(t *testing.T) {
	f := newCLIFixture(t)

	require.NoError(t, f.run("upload", "-q", "beta"))
	assert.Equal(t, []string{"beta"}, f.report(t).Uploaded)

	err := f.run("upload", "-q", "missing")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestUpload_ConflictNeedsResolution(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.store.CreateProfile(context.Background(), cloud.ProfileData{
		ID: "alpha", ProfileName: "Elsewhere", Checksum: "other", RawLua: `{"profileName":"Elsewhere"}`,
	})
	require.NoError(t, err)

	err = f.run("upload", "-q")
	require.Error(t, err)
	assert.Equal(t, ExitConflicts, exitCode(err))
	r := f.report(t)
	require.Len(t, r.Conflicts, 1)
	assert.Equal(t, "alpha", r.Conflicts[0].ProfileID)
	assert.Equal(t, []string{"beta"}, r.Uploaded)

	require.NoError(t, f.run("upload", "-q", "--resolve", "local"))
	assert.Equal(t, []string{"alpha"}, f.report(t).Uploaded)

	cp, err := f.store.GetProfile(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", cp.ProfileName)
	assert.Equal(t, 2, cp.Version)
}

func TestUpload_KeepCloudPulls(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.store.CreateProfile(context.Background(), cloud.ProfileData{
		ID: "alpha", ProfileName: "Elsewhere", Checksum: "other", RawLua: `{"profileName":"Elsewhere"}`,
	})
	require.NoError(t, err)

	require.NoError(t, f.run("upload", "-q", "--resolve", "CLOUD"))
	assert.Equal(t, []string{"alpha"}, f.report(t).Pulled)

	local, err := savedvars.FindProfile(f.path, "ACC", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "Elsewhere", local.Data.ProfileName)
}

func TestUpload_InvalidResolution(t *testing.T) {
	f := newCLIFixture(t)
	err := f.run("upload", "--resolve", "both")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid conflict resolution")
}

func TestStatus(t *testing.T) {
	f := newCLIFixture(t)

	require.NoError(t, f.run("status"))
	var rows []statusRow
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, reconcile.ActionUpload, rows[0].Action)
	assert.Empty(t, rows[0].CloudChecksum)

	require.NoError(t, f.run("upload", "-q"))
	require.NoError(t, f.run("status", "alpha"))
	rows = nil
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, reconcile.ActionSkip, rows[0].Action)
	assert.Equal(t, 1, rows[0].CloudVersion)
	assert.Equal(t, rows[0].LocalChecksum, rows[0].CloudChecksum)
}

func TestShow(t *testing.T) {
	f := newCLIFixture(t)

	require.NoError(t, f.run("show", "alpha"))
	var p profile.Profile
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &p))
	assert.Equal(t, "alpha", p.ID)
	require.NotNil(t, p.Characteristics.Icon)
	assert.Equal(t, "INV_Misc_Book_09", *p.Characteristics.Icon)

	err := f.run("show", "--cloud", "alpha")
	require.Error(t, err)

	require.NoError(t, f.run("upload", "-q"))
	require.NoError(t, f.run("show", "--cloud", "beta"))
	p = profile.Profile{}
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &p))
	assert.Equal(t, "Beta", p.ProfileName)

	assert.Error(t, f.run("show"))
}

func TestVersionsRollbackRestore(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, f.run("upload", "-q"))

	raw := profile.Raw{"profileName": "Alpha Two"}
	require.NoError(t, savedvars.WriteProfiles(f.path, map[string]profile.Raw{"alpha": raw}))
	require.NoError(t, f.run("upload", "-q"))

	require.NoError(t, f.run("versions", "alpha"))
	var versions []cloud.ProfileVersion
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &versions))
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
	assert.Empty(t, versions[0].RawLua)

	require.NoError(t, f.run("rollback", "--restore", "alpha", "1"))
	var cp cloud.CloudProfile
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &cp))
	assert.Equal(t, 3, cp.Version)

	local, err := savedvars.FindProfile(f.path, "ACC", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", local.Data.ProfileName)

	require.NoError(t, f.run("upload", "-q"))
	assert.Contains(t, f.report(t).Skipped, "alpha")

	assert.Error(t, f.run("rollback", "alpha"))
	assert.Error(t, f.run("rollback", "alpha", "zero"))
}

func TestRestore(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, f.run("upload", "-q"))

	require.NoError(t, savedvars.WriteProfiles(f.path, map[string]profile.Raw{"beta": {"profileName": "Scratch"}}))
	require.NoError(t, f.run("restore", "beta"))

	var p profile.Profile
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &p))
	assert.Equal(t, "Beta", p.ProfileName)

	err := f.run("restore", "--version", "9", "beta")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version not found")
}

func TestDelete(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, f.run("upload", "-q"))

	require.NoError(t, f.run("delete", "alpha"))
	var res deleteResult
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &res))
	assert.Equal(t, deleteResult{ID: "alpha", Deleted: true}, res)

	_, err := f.store.GetProfile(context.Background(), "alpha")
	assert.ErrorIs(t, err, cloud.ErrNotFound)

	// the baseline is gone too, so the local copy counts as never synced
	require.NoError(t, f.run("status", "alpha"))
	var rows []statusRow
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, conflict.NotSynced, rows[0].Status)
	assert.Equal(t, reconcile.ActionUpload, rows[0].Action)

	err = f.run("delete", "alpha")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	assert.Error(t, f.run("delete"))
}

const otherAccount = `
TRP3_Profiles = {
	["gamma"] = {
		["profileName"] = "Gamma",
	},
}
`

// newMultiAccountFixture lays out two accounts under a game directory and
// leaves account_id unset
func newMultiAccountFixture(t *testing.T) (*cliFixture, map[string]string) {
	t.Helper()
	f := newCLIFixture(t)

	game := t.TempDir()
	paths := map[string]string{}
	for account, content := range map[string]string{"ONE": savedVariables, "TWO": otherAccount} {
		path := filepath.Join(game, "_retail_", "WTF", "Account", account, "SavedVariables", "totalRP3.lua")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths[account] = path
	}

	cfg := fmt.Sprintf("logger:\n  level: error\nsyncmeta:\n  path: %q\naddon:\n  game_path: %q\n",
		filepath.Join(game, "meta.db"), game)
	require.NoError(t, os.WriteFile(filepath.Join(f.args[2], "rpsync.yaml"), []byte(cfg), 0o644))
	f.path = paths["ONE"]
	return f, paths
}

func TestUpload_AllAccounts(t *testing.T) {
	f, paths := newMultiAccountFixture(t)

	require.NoError(t, f.run("upload", "-q"))
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, f.report(t).Uploaded)

	gamma, err := f.store.GetProfile(context.Background(), "gamma")
	require.NoError(t, err)
	assert.Equal(t, "TWO", gamma.AccountID)
	alpha, err := f.store.GetProfile(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "ONE", alpha.AccountID)

	// restore goes back into the file of the account holding the profile
	require.NoError(t, savedvars.WriteProfiles(paths["TWO"], map[string]profile.Raw{"gamma": {"profileName": "Scratch"}}))
	require.NoError(t, f.run("restore", "gamma"))

	local, err := savedvars.FindProfile(paths["TWO"], "TWO", "gamma")
	require.NoError(t, err)
	assert.Equal(t, "Gamma", local.Data.ProfileName)

	_, err = savedvars.FindProfile(paths["ONE"], "ONE", "gamma")
	assert.ErrorIs(t, err, cloud.ErrNotFound)
}

func TestLogsAndMigrateNeedDatabase(t *testing.T) {
	f := newCLIFixture(t)

	err := f.run("logs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--batch")

	err = f.run("logs", "alpha")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url")

	assert.Error(t, f.run("migrate"))
}

func TestVersionCommand(t *testing.T) {
	f := newCLIFixture(t)

	require.NoError(t, f.run("version"))
	assert.Contains(t, f.out.String(), "rpsync v")

	require.NoError(t, f.run("version", "--json"))
	assert.Contains(t, f.out.String(), `"go_version"`)
}

func TestBadConfigFails(t *testing.T) {
	f := newCLIFixture(t)
	t.Setenv("RPSYNC_LOG_LEVEL", "loud")
	assert.Error(t, f.run("status"))
}

func TestServerMux(t *testing.T) {
	store := cloud.NewMemoryGateway("user-1", 0)
	srv := httptest.NewServer(newServerMux(store, "secret", "memory", logging.NewNopLogger()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "memory", health.Backend)

	resp, err = http.Get(srv.URL + "/api/profiles")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	client := cloud.NewHTTPClient(srv.URL+cloud.APIPrefix, "secret", 5*time.Second, logging.NewNopLogger())
	_, err = client.CreateProfile(context.Background(), cloud.ProfileData{ID: "p1", Checksum: "s"})
	require.NoError(t, err)

	list, err := store.ListProfiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWatcher_RunsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "totalRP3.lua")
	require.NoError(t, os.WriteFile(path, []byte("A = 1"), 0o644))

	var calls atomic.Int32
	w := newWatcher(logging.NewNopLogger(), func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.run(ctx, []string{path}, "@every 1h", 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond, "startup run")

	require.NoError(t, os.WriteFile(path, []byte("A = 2"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, 5*time.Millisecond, "file run")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_InvalidSchedule(t *testing.T) {
	w := newWatcher(logging.NewNopLogger(), func(context.Context) error { return nil })
	err := w.run(context.Background(), []string{filepath.Join(t.TempDir(), "x.lua")}, "whenever", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid watch schedule")
}

func TestWatcher_TriggersDoNotOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	w := newWatcher(logging.NewNopLogger(), func(ctx context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	})

	ctx := context.Background()
	finished := make(chan struct{})
	go func() {
		w.trigger(ctx, "first")
		close(finished)
	}()
	<-started

	w.trigger(ctx, "second")
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	<-finished
	assert.False(t, w.running.Load())
}
