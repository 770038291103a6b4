package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/action-store/internal/model"
	"github.com/nhle/action-store/internal/store"
)

// NewTestStore creates a file-backed Store in a temp directory and returns
// it with its path so tests can reopen it. It automatically closes the store
// when the test completes.
func NewTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "actions.db")
	return OpenTestStore(t, path), path
}

// OpenTestStore opens the store at path and closes it on cleanup.
func OpenTestStore(t *testing.T, path string) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(false); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// RawDB opens a second, independent connection to the database at path.
// Foreign keys are not enforced on it, so it can plant broken rows.
func RawDB(t *testing.T, path string) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening raw db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Date returns a UTC instant with nanoseconds, to catch precision loss.
func Date(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 7, 123456789, time.UTC)
}

// RequireSameAction fails unless want and got hold the same values.
// Instants are compared with time.Time.Equal.
func RequireSameAction(t *testing.T, want, got *model.Action) {
	t.Helper()

	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID, "id")
	assert.Equal(t, want.Description, got.Description, "description")
	assertSameTime(t, &want.Created, &got.Created, "created")
	assertSameTime(t, &want.Modified, &got.Modified, "modified")
	assertSameTime(t, want.Resolved, got.Resolved, "resolved")
	assertSameTime(t, want.Start, got.Start, "start")
	assertSameTime(t, want.Remind, got.Remind, "remind")
	assertSameTime(t, want.Due, got.Due, "due")
	assert.Equal(t, want.Resolution, got.Resolution, "resolution")
	assert.Equal(t, want.Priority, got.Priority, "priority")
	assert.Equal(t, want.Type, got.Type, "type")
	assert.Equal(t, want.Queued, got.Queued, "queued")
	assert.Equal(t, want.ProjectID, got.ProjectID, "project")
	assert.Equal(t, want.URL, got.URL, "url")
}

func assertSameTime(t *testing.T, want, got *time.Time, field string) {
	t.Helper()

	if want == nil || got == nil {
		assert.Equal(t, want == nil, got == nil, "%s: nil mismatch", field)
		return
	}
	assert.True(t, want.Equal(*got), "%s: want %v, got %v", field, *want, *got)
}
