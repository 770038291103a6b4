package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// session owns the single live connection to the database.
//
// In immediate mode every statement autocommits. While suspended, a batch
// transaction stays open and every statement of the session runs inside it
// until Flush or the outermost Suspend(false) commits it.
type session struct {
	path   string
	db     *sqlx.DB
	logger *slog.Logger

	mu         sync.Mutex
	tx         *sqlx.Tx
	depth      int  // suspend nesting; >0 means tx is the batch
	scoped     bool // tx was opened by atomic in immediate mode
	savepoints int
	closed     bool
}

// openSession opens (or creates) the database at path, applies pragmas and
// initializes the schema.
func openSession(ctx context.Context, path string, o *options) (*session, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite has one writer; a single connection also keeps the batch
	// transaction and every read on the same view of the data.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", o.busyTimeout.Milliseconds()),
	}
	if o.wal && path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", p, err)
		}
	}

	if err := Initialize(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &session{path: path, db: db, logger: o.logger}, nil
}

// ext returns the executor every statement should use: the open
// transaction if there is one, otherwise the connection.
func (s *session) ext() (sqlx.ExtContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.db, nil
}

// IsClosed reports whether Close has been called.
func (s *session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Suspended reports whether a batch is open.
func (s *session) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth > 0
}

// Suspend enters (on=true) or leaves (on=false) batched mode. Calls nest;
// only the outermost release commits. Releasing an unsuspended session is a
// no-op.
func (s *session) Suspend(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if on {
		if s.depth == 0 {
			if s.scoped {
				return errors.New("cannot suspend inside a transaction")
			}
			if err := s.beginBatch(ctx); err != nil {
				return err
			}
			s.logger.Debug("store suspended", "path", s.path)
		}
		s.depth++
		return nil
	}

	if s.depth == 0 {
		return nil
	}
	s.depth--
	if s.depth > 0 {
		return nil
	}

	if err := s.commitBatch(); err != nil {
		return err
	}
	s.logger.Debug("store resumed", "path", s.path)
	return nil
}

// Flush commits the open batch and starts a new one. It is a no-op in
// immediate mode.
func (s *session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.depth == 0 {
		return nil
	}

	if err := s.commitBatch(); err != nil {
		return err
	}
	if err := s.beginBatch(ctx); err != nil {
		return err
	}
	s.logger.Debug("store flushed", "path", s.path)
	return nil
}

// Close commits any pending batch and closes the connection.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.tx != nil {
		if s.depth > 0 {
			errs = append(errs, s.commitBatch())
		} else {
			errs = append(errs, s.tx.Rollback())
			s.tx = nil
		}
	}
	s.depth = 0
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// atomic runs fn as one unit. In immediate mode it opens a transaction that
// every statement issued by fn joins. Inside an existing transaction (a
// batch or an outer atomic call) it uses a savepoint, so a failed fn leaves
// no partial writes behind.
func (s *session) atomic(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	if tx := s.tx; tx != nil {
		s.savepoints++
		name := fmt.Sprintf("sp_%d", s.savepoints)
		s.mu.Unlock()
		return s.withSavepoint(ctx, tx, name, fn)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("beginning transaction: %w", err)
	}
	s.tx = tx
	s.scoped = true
	s.mu.Unlock()

	fnErr := fn()

	s.mu.Lock()
	s.tx = nil
	s.scoped = false
	s.mu.Unlock()

	if fnErr != nil {
		if err := tx.Rollback(); err != nil {
			s.logger.Error("rolling back transaction", "error", err)
		}
		return fnErr
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *session) withSavepoint(ctx context.Context, tx *sqlx.Tx, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}

	if fnErr := fn(); fnErr != nil {
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO "+name); err != nil {
			s.logger.Error("rolling back savepoint", "savepoint", name, "error", err)
		}
		if _, err := tx.ExecContext(ctx, "RELEASE "+name); err != nil {
			s.logger.Error("releasing savepoint", "savepoint", name, "error", err)
		}
		return fnErr
	}

	if _, err := tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}
	return nil
}

// exclusive commits any open batch, runs fn directly on the connection
// outside of any transaction, then reopens the batch if one was active.
// Used for statements SQLite refuses to run inside a transaction.
func (s *session) exclusive(ctx context.Context, fn func(db *sqlx.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.scoped {
		return errors.New("cannot run outside a transaction while one is open")
	}

	if s.depth > 0 {
		if err := s.commitBatch(); err != nil {
			return err
		}
	}

	fnErr := fn(s.db)

	if s.depth > 0 {
		if err := s.beginBatch(ctx); err != nil {
			return errors.Join(fnErr, err)
		}
	}
	return fnErr
}

// beginBatch opens the batch transaction. The batch outlives the request
// that started it, so it must not be bound to ctx's cancellation.
// Callers hold s.mu.
func (s *session) beginBatch(ctx context.Context) error {
	tx, err := s.db.BeginTxx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}
	s.tx = tx
	return nil
}

// commitBatch commits and clears the batch transaction. Callers hold s.mu.
func (s *session) commitBatch() error {
	tx := s.tx
	s.tx = nil
	if tx == nil {
		return nil
	}
	start := time.Now()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	s.logger.Debug("batch committed", "took", time.Since(start))
	return nil
}
