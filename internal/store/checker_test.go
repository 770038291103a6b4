package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/action-store/internal/model"
	"github.com/nhle/action-store/internal/store"
	"github.com/nhle/action-store/tests/testutil"
)

// plantOrphans inserts action rows pointing at a folder that does not exist.
// The raw connection does not enforce foreign keys.
func plantOrphans(t *testing.T, path string, ids ...int64) {
	t.Helper()

	raw := testutil.RawDB(t, path)
	now := time.Now().UTC()
	for _, id := range ids {
		_, err := raw.Exec(`
			INSERT INTO actions (id, folder_id, position, description, created_at, modified_at)
			VALUES (?, 999, 0, 'stray', ?, ?)`, id, now, now)
		require.NoError(t, err)
	}
}

func countActions(t *testing.T, path string) int {
	t.Helper()

	var n int
	require.NoError(t, testutil.RawDB(t, path).Get(&n, "SELECT COUNT(*) FROM actions"))
	return n
}

func TestCheckConsistency_Clean(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t)

	fc, err := s.NewFolder(ctx, 0, "list", model.FolderAction)
	require.NoError(t, err)
	addActions(t, s, fc, "a", "b")

	var reported []store.Finding
	res, err := s.CheckConsistency(ctx, store.ReporterFunc(func(f store.Finding) {
		reported = append(reported, f)
	}), true, false)
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.Empty(t, reported)
	assert.NotEmpty(t, res.RunID)
}

func TestCheckConsistency_ReportOnly(t *testing.T) {
	ctx := context.Background()
	s, path := testutil.NewTestStore(t)
	plantOrphans(t, path, 100, 101)

	var reported []store.Finding
	res, err := s.CheckConsistency(ctx, store.ReporterFunc(func(f store.Finding) {
		reported = append(reported, f)
	}), false, false)
	require.NoError(t, err)

	require.Len(t, reported, 2)
	assert.Equal(t, res.Findings, reported)
	assert.Equal(t, store.FindingOrphanAction, reported[0].Kind)
	assert.Equal(t, int64(100), reported[0].ActionID)
	assert.Equal(t, int64(999), reported[0].FolderID)
	assert.False(t, reported[0].Repaired)
	assert.Zero(t, res.Repaired)
	assert.Equal(t, 2, countActions(t, path), "report-only leaves rows in place")
}

func TestCheckConsistency_FailFast(t *testing.T) {
	ctx := context.Background()
	s, path := testutil.NewTestStore(t)
	plantOrphans(t, path, 100, 101)

	var reported []store.Finding
	res, err := s.CheckConsistency(ctx, store.ReporterFunc(func(f store.Finding) {
		reported = append(reported, f)
	}), true, false)
	require.ErrorIs(t, err, store.ErrInconsistent)
	assert.Contains(t, err.Error(), "action 100")
	assert.Len(t, reported, 1)
	assert.Len(t, res.Findings, 1)
	assert.Equal(t, 2, countActions(t, path))
}

func TestCheckConsistency_Repair(t *testing.T) {
	ctx := context.Background()
	s, path := testutil.NewTestStore(t)

	fc, err := s.NewFolder(ctx, 0, "list", model.FolderAction)
	require.NoError(t, err)
	addActions(t, s, fc, "keep")
	plantOrphans(t, path, 100, 101)

	var reported []store.Finding
	res, err := s.CheckConsistency(ctx, store.ReporterFunc(func(f store.Finding) {
		reported = append(reported, f)
	}), true, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Repaired)
	require.Len(t, reported, 2)
	for _, f := range reported {
		assert.True(t, f.Repaired)
		assert.Contains(t, f.String(), "(deleted)")
	}
	assert.Equal(t, 1, countActions(t, path))

	res, err = s.CheckConsistency(ctx, nil, true, false)
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
}

func TestCheckConsistency_ToleratesDanglingProject(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t)

	fc, err := s.NewFolder(ctx, 0, "list", model.FolderAction)
	require.NoError(t, err)
	hs := addActions(t, s, fc, "a")
	require.NoError(t, hs[0].Update(ctx, func(a *model.Action) {
		a.ProjectID = testutil.Ptr(int64(12345))
	}))

	res, err := s.CheckConsistency(ctx, nil, true, false)
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
}

func TestRestoreSkipsOrphans(t *testing.T) {
	ctx := context.Background()
	s, path := testutil.NewTestStore(t)

	fc, err := s.NewFolder(ctx, 0, "list", model.FolderAction)
	require.NoError(t, err)
	addActions(t, s, fc, "a")
	plantOrphans(t, path, 100)

	folders, err := s.Restore(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, []string{"a"}, descriptions(folders[0]))
	assert.Equal(t, int64(101), s.NextActionID(), "orphan ids still count")
}
