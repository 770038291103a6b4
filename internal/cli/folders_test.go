package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/nhle/action-store/internal/model"
	"github.com/nhle/action-store/tests/testutil"
)

func TestFolders_Golden(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := runCLI(t, dir, "init")
	require.NoError(t, err)

	s := testutil.OpenTestStore(t, filepath.Join(dir, "actions.db"))
	errands, err := s.NewFolder(ctx, 0, "Errands", model.FolderAction)
	require.NoError(t, err)
	stamps, err := s.NewAction(ctx, 0, time.Time{}, nil, "buy stamps")
	require.NoError(t, err)
	require.NoError(t, errands.Add(ctx, stamps))
	letter, err := s.NewAction(ctx, 0, time.Time{}, testutil.Ptr(time.Now()), "post letter")
	require.NoError(t, err)
	require.NoError(t, errands.Add(ctx, letter))
	require.NoError(t, s.Close(false))

	out, err := runCLI(t, dir, "folders", "--actions")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "folders_actions", []byte(out))
}
