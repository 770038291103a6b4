package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrClosed is returned by every operation on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrSchema wraps any failure to create or validate the schema.
	ErrSchema = errors.New("schema initialization failed")

	// ErrUnsupportedSchema means the database was written by a newer version.
	ErrUnsupportedSchema = errors.New("unsupported schema version")

	// ErrInconsistent is returned by a fail-fast consistency check.
	ErrInconsistent = errors.New("store is inconsistent")

	ErrDetached           = errors.New("action is not in a folder")
	ErrAttached           = errors.New("action belongs to another folder")
	ErrDuplicateAction    = errors.New("action is already in this folder")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrNotPermutation     = errors.New("order is not a permutation of the folder contents")
	ErrMetaFolder         = errors.New("meta folders cannot hold actions")
	ErrDuplicateSingleton = errors.New("folder type already exists")
	ErrFolderDeleted      = errors.New("folder has been deleted")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateID        = errors.New("id is already in use")
	ErrBackupExists       = errors.New("backup already exists")
)

// isPrimaryKeyConflict reports whether err is SQLite refusing a duplicate
// primary key.
func isPrimaryKeyConflict(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
