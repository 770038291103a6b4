package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/action-store/tests/testutil"
)

func TestMain(m *testing.M) {
	// Plain text output regardless of the terminal running the tests.
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// runCLI executes the root command against a database in dir and returns
// its stdout.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	base := []string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--db", filepath.Join(dir, "actions.db"),
	}
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(base, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInit_SeedsBuiltinFoldersOnce(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, dir, "init")
	require.NoError(t, err)
	for _, name := range []string{"Inbox", "Queue", "Resolved", "Deleted"} {
		assert.Contains(t, out, "created "+name)
	}
	assert.Contains(t, out, "schema v1")

	out, err = runCLI(t, dir, "init")
	require.NoError(t, err)
	assert.NotContains(t, out, "created")

	out, err = runCLI(t, dir, "folders")
	require.NoError(t, err)
	assert.Contains(t, out, "Inbox")
	assert.Contains(t, out, "0 open / 0")
}

func TestInit_WriteConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	_, err := runCLI(t, dir, "init", "--write-config=false", "--seed=false")
	require.NoError(t, err)
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config written with --write-config=false")

	// Written by default.
	_, err = runCLI(t, dir, "init", "--seed=false")
	require.NoError(t, err)
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "database")
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "init")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "SQLite")
	assert.Contains(t, out, "v1")
	assert.Contains(t, out, filepath.Join(dir, "actions.db"))
}

func TestFolders_Empty(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "folders")
	require.NoError(t, err)
	assert.Contains(t, out, "no folders")
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "init")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "consistent")

	raw := testutil.RawDB(t, filepath.Join(dir, "actions.db"))
	now := time.Now().UTC()
	_, err = raw.Exec(`
		INSERT INTO actions (id, folder_id, position, description, created_at, modified_at)
		VALUES (50, 999, 0, 'stray', ?, ?)`, now, now)
	require.NoError(t, err)

	out, err = runCLI(t, dir, "check")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "action 50")

	_, err = runCLI(t, dir, "check", "--fail-fast")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err = runCLI(t, dir, "check", "--repair")
	require.NoError(t, err)
	assert.Contains(t, out, "1 orphaned action(s) deleted")

	_, err = runCLI(t, dir, "check")
	require.NoError(t, err)
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	backups := filepath.Join(dir, "snapshots")
	_, err := runCLI(t, dir, "init")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "backup", "--dir", backups, "--keep", "1")
	require.NoError(t, err)
	path := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	assert.Equal(t, backups, filepath.Dir(path))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database: [\n"), 0o644))

	_, err := runCLI(t, dir, "info")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(assert.AnError))
	assert.Equal(t, ExitFailure, GetExitCode(&ExitError{Code: ExitFailure, Message: "x"}))
}
