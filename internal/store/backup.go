package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const backupPattern = "actions-*.db"

// Backup writes a consistent snapshot of the database into dir and returns
// its path. Pending batched writes are committed first. An existing snapshot
// with the same timestamp is never replaced (ErrBackupExists).
func (s *Store) Backup(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("actions-%s.db", s.now().UTC().Format("20060102-150405.000"))
	final := filepath.Join(dir, name)
	if _, err := os.Lstat(final); err == nil {
		return "", fmt.Errorf("writing backup %s: %w", final, ErrBackupExists)
	}
	// VACUUM INTO refuses to overwrite, so write beside the target and rename.
	tmp := filepath.Join(dir, ".backup-"+uuid.New().String()+".tmp")

	err := s.sess.exclusive(ctx, func(db *sqlx.DB) error {
		_, err := db.ExecContext(ctx, "VACUUM INTO ?", tmp)
		return err
	})
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing backup: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("moving backup into place: %w", err)
	}

	s.logger.Info("backup written", "path", final)
	return final, nil
}

// PruneBackups removes all but the newest keep backups in dir. A keep of
// zero or less keeps everything. It returns the removed paths.
func PruneBackups(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, backupPattern))
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	if len(matches) <= keep {
		return nil, nil
	}

	// Names embed a sortable timestamp.
	slices.Sort(matches)
	stale := matches[:len(matches)-keep]
	for _, p := range stale {
		if err := os.Remove(p); err != nil {
			return nil, fmt.Errorf("removing backup %s: %w", p, err)
		}
	}
	return stale, nil
}
