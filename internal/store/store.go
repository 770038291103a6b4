package store

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nhle/action-store/internal/model"
)

// Option configures Open.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	busyTimeout time.Duration
	wal         bool
	now         func() time.Time
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithWAL toggles write-ahead logging for file-backed databases.
func WithWAL(on bool) Option {
	return func(o *options) { o.wal = on }
}

// WithClock overrides the time source used for new entities and backups.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// idCounter hands out identifiers for one namespace. It only moves forward,
// and remembers every id it issued, so an id is never handed out twice
// within a process run.
type idCounter struct {
	next atomic.Int64

	mu     sync.Mutex
	issued map[int64]struct{}
}

// allocate returns id when it is positive, advancing the counter past it,
// or the next free id otherwise. It reports false when id was already
// issued.
func (c *idCounter) allocate(id int64) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id <= 0 {
		id = c.next.Add(1) - 1
	} else {
		if _, dup := c.issued[id]; dup {
			return id, false
		}
		c.advancePast(id)
	}
	if c.issued == nil {
		c.issued = make(map[int64]struct{})
	}
	c.issued[id] = struct{}{}
	return id, true
}

// wasIssued reports whether id was handed out this run.
func (c *idCounter) wasIssued(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.issued[id]
	return ok
}

func (c *idCounter) advancePast(id int64) {
	for {
		cur := c.next.Load()
		if id < cur {
			return
		}
		if c.next.CompareAndSwap(cur, id+1) {
			return
		}
	}
}

// peek returns the id the next allocation would return.
func (c *idCounter) peek() int64 {
	return c.next.Load()
}

// Store is the entry point to the persistence layer. It is the only owner
// of the connection; folder collections and action handles share it but
// never manage its lifecycle.
type Store struct {
	sess   *session
	logger *slog.Logger
	now    func() time.Time

	folders  map[int64]*FolderCollection
	folderID idCounter
	actionID idCounter
}

// Open opens (or creates) the database at path, initializes the schema and
// computes the id counters. Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	o := &options{
		logger:      slog.Default(),
		busyTimeout: 5 * time.Second,
		wal:         true,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	sess, err := openSession(ctx, path, o)
	if err != nil {
		return nil, err
	}

	s := &Store{
		sess:    sess,
		logger:  o.logger,
		now:     o.now,
		folders: make(map[int64]*FolderCollection),
	}
	s.folderID.next.Store(1)
	s.actionID.next.Store(1)

	if err := s.seedCounters(ctx); err != nil {
		sess.Close()
		return nil, err
	}

	s.logger.Info("store opened", "path", path,
		"next_folder_id", s.folderID.peek(), "next_action_id", s.actionID.peek())
	return s, nil
}

// seedCounters advances both counters past the largest persisted ids.
func (s *Store) seedCounters(ctx context.Context) error {
	ext, err := s.sess.ext()
	if err != nil {
		return err
	}

	var maxFolder, maxAction int64
	if err := ext.QueryRowxContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM folders").Scan(&maxFolder); err != nil {
		return fmt.Errorf("reading max folder id: %w", err)
	}
	if err := ext.QueryRowxContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM actions").Scan(&maxAction); err != nil {
		return fmt.Errorf("reading max action id: %w", err)
	}

	s.folderID.advancePast(maxFolder)
	s.actionID.advancePast(maxAction)
	return nil
}

// NextFolderID returns the id the next auto-allocated folder would get.
func (s *Store) NextFolderID() int64 {
	return s.folderID.peek()
}

// NextActionID returns the id the next auto-allocated action would get.
func (s *Store) NextActionID() int64 {
	return s.actionID.peek()
}

// claimID reserves id, or the next free id when id is not positive, in c.
// An explicit id is refused with ErrDuplicateID when it was already issued
// this run or already has a row in table.
func (s *Store) claimID(ctx context.Context, c *idCounter, table string, id int64) (int64, error) {
	ext, err := s.sess.ext()
	if err != nil {
		return 0, err
	}

	if id > 0 {
		if c.wasIssued(id) {
			return 0, fmt.Errorf("%s id %d: %w", table, id, ErrDuplicateID)
		}
		var n int
		if err := ext.QueryRowxContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n); err != nil {
			return 0, fmt.Errorf("checking %s id %d: %w", table, id, err)
		}
		if n > 0 {
			return 0, fmt.Errorf("%s id %d: %w", table, id, ErrDuplicateID)
		}
	}

	got, ok := c.allocate(id)
	if !ok {
		return 0, fmt.Errorf("%s id %d: %w", table, id, ErrDuplicateID)
	}
	return got, nil
}

// NewFolder inserts a folder and returns its empty collection. A
// non-positive id is allocated; an explicit id advances the counter past it
// and must not be in use (ErrDuplicateID).
func (s *Store) NewFolder(ctx context.Context, id int64, name string, typ model.FolderType) (*FolderCollection, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("creating folder %q: unknown folder type %q", name, typ)
	}
	ext, err := s.sess.ext()
	if err != nil {
		return nil, err
	}

	if typ.Policy().Singleton {
		var n int
		if err := ext.QueryRowxContext(ctx, "SELECT COUNT(*) FROM folders WHERE type = ?", string(typ)).Scan(&n); err != nil {
			return nil, fmt.Errorf("checking %s folders: %w", typ, err)
		}
		if n > 0 {
			return nil, fmt.Errorf("creating folder %q: %s: %w", name, typ, ErrDuplicateSingleton)
		}
	}

	folderID, err := s.claimID(ctx, &s.folderID, "folders", id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	f := &model.Folder{
		ID:       folderID,
		Name:     name,
		Type:     typ,
		Created:  now,
		Modified: now,
	}

	_, err = ext.ExecContext(ctx, `
		INSERT INTO folders (id, name, type, closed, description, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, string(f.Type), boolToInt(f.Closed), f.Description, f.Created, f.Modified,
	)
	if isPrimaryKeyConflict(err) {
		return nil, fmt.Errorf("creating folder %d: %w", f.ID, ErrDuplicateID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating folder %d: %w", f.ID, err)
	}

	fc := newFolderCollection(s.sess, f)
	s.folders[f.ID] = fc
	return fc, nil
}

// NewAction returns a detached handle for a new open action. It becomes
// durable once added to a folder collection. A zero created time means now.
// An explicit id must not be in use (ErrDuplicateID).
func (s *Store) NewAction(ctx context.Context, id int64, created time.Time, resolved *time.Time, description string) (*ActionHandle, error) {
	actionID, err := s.claimID(ctx, &s.actionID, "actions", id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if created.IsZero() {
		created = now
	}
	a := &model.Action{
		ID:          actionID,
		Description: description,
		Created:     created.UTC(),
		Modified:    now,
		Resolved:    utcPtr(resolved),
		Resolution:  model.ResolutionOpen,
	}
	if resolved != nil {
		a.Resolution = model.ResolutionResolved
	}
	return newActionHandle(s.sess, a), nil
}

// CloneAction returns a detached handle holding a copy of src under a new
// id. Creation bookkeeping is fresh; a non-nil project overrides src's
// project reference.
func (s *Store) CloneAction(ctx context.Context, id int64, src *model.Action, project *int64) (*ActionHandle, error) {
	actionID, err := s.claimID(ctx, &s.actionID, "actions", id)
	if err != nil {
		return nil, err
	}

	a := src.Clone()
	now := s.now().UTC()
	a.ID = actionID
	a.Created = now
	a.Modified = now
	if project != nil {
		p := *project
		a.ProjectID = &p
	}
	return newActionHandle(s.sess, a), nil
}

// Restore rebuilds the in-memory model from the database: every folder in
// id order with its actions in persisted order. Collections already handed
// out for surviving folders are reloaded in place, keeping their handles;
// collections whose folder is gone are drained. Both id counters are
// advanced past the largest persisted ids. Action rows whose folder does not
// exist are skipped; CheckConsistency reports them.
func (s *Store) Restore(ctx context.Context) ([]*FolderCollection, error) {
	ext, err := s.sess.ext()
	if err != nil {
		return nil, err
	}

	folderRows, err := ext.QueryxContext(ctx, "SELECT "+folderColumns+" FROM folders ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying folders: %w", err)
	}
	defer folderRows.Close()

	var found []*model.Folder
	for folderRows.Next() {
		f, err := scanFolder(folderRows)
		if err != nil {
			return nil, err
		}
		found = append(found, f)
	}
	if err := folderRows.Err(); err != nil {
		return nil, fmt.Errorf("reading folders: %w", err)
	}
	folderRows.Close()

	actionRows, err := ext.QueryxContext(ctx,
		"SELECT "+actionColumns+" FROM actions ORDER BY folder_id, position, id")
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer actionRows.Close()

	byFolder := make(map[int64][]loadedAction)
	for actionRows.Next() {
		a, folderID, pos, err := scanAction(actionRows)
		if err != nil {
			return nil, err
		}
		byFolder[folderID] = append(byFolder[folderID], loadedAction{action: a, position: pos})
	}
	if err := actionRows.Err(); err != nil {
		return nil, fmt.Errorf("reading actions: %w", err)
	}
	actionRows.Close()

	folders := make(map[int64]*FolderCollection, len(found))
	ordered := make([]*FolderCollection, 0, len(found))
	for _, f := range found {
		fc, ok := s.folders[f.ID]
		if !ok || fc.deleted {
			fc = newFolderCollection(s.sess, f)
		}
		fc.reload(f, byFolder[f.ID])
		delete(byFolder, f.ID)
		folders[f.ID] = fc
		ordered = append(ordered, fc)
	}

	for id, old := range s.folders {
		if _, ok := folders[id]; !ok {
			old.drain()
		}
	}
	s.folders = folders

	if err := s.seedCounters(ctx); err != nil {
		return nil, err
	}

	orphans := 0
	for _, rows := range byFolder {
		orphans += len(rows)
	}
	if orphans > 0 {
		s.logger.Warn("restore skipped orphaned actions", "count", orphans)
	}
	s.logger.Info("store restored", "folders", len(ordered),
		"next_folder_id", s.folderID.peek(), "next_action_id", s.actionID.peek())
	return ordered, nil
}

// Folders returns the known folder collections in id order.
func (s *Store) Folders() []*FolderCollection {
	out := make([]*FolderCollection, 0, len(s.folders))
	for _, fc := range s.folders {
		out = append(out, fc)
	}
	slices.SortFunc(out, func(a, b *FolderCollection) int {
		return cmp.Compare(a.folder.ID, b.folder.ID)
	})
	return out
}

// Folder returns the collection for id.
func (s *Store) Folder(id int64) (*FolderCollection, bool) {
	fc, ok := s.folders[id]
	return fc, ok
}

// FoldersByType returns the known collections of type t in id order.
func (s *Store) FoldersByType(t model.FolderType) []*FolderCollection {
	var out []*FolderCollection
	for _, fc := range s.Folders() {
		if fc.folder.Type == t {
			out = append(out, fc)
		}
	}
	return out
}

// MoveAction reassigns h to folder to at position index (-1 appends) as one
// atomic unit: the row is deleted from its current folder, then re-added to
// the target. For a move within one folder, index refers to the order after
// h has been taken out.
func (s *Store) MoveAction(ctx context.Context, h *ActionHandle, to *FolderCollection, index int) error {
	from := h.parent
	if from == nil {
		if index < 0 {
			index = to.Size()
		}
		return to.Insert(ctx, index, h)
	}

	size := to.Size()
	if from == to {
		size--
	}
	if index < 0 {
		index = size
	}
	if index > size {
		return fmt.Errorf("moving action %d to %d of %d: %w", h.action.ID, index, size, ErrIndexOutOfRange)
	}
	if to.deleted {
		return ErrFolderDeleted
	}
	if to.folder.Type.Policy().Meta {
		return fmt.Errorf("folder %d (%s): %w", to.folder.ID, to.folder.Type, ErrMetaFolder)
	}

	fromSnap, toSnap := from.snapshot(), to.snapshot()
	modified := h.action.Modified
	err := s.sess.atomic(ctx, func() error {
		if _, err := from.Remove(ctx, h); err != nil {
			return err
		}
		h.action.Modified = s.now().UTC()
		return to.Insert(ctx, index, h)
	})
	if err != nil {
		toSnap.restore()
		fromSnap.restore()
		h.action.Modified = modified
		return err
	}
	return nil
}

// DeleteFolder deletes every action of fc, then the folder row, and drains
// the cached collection so its handles cannot be reused.
func (s *Store) DeleteFolder(ctx context.Context, fc *FolderCollection) error {
	if fc.deleted {
		return ErrFolderDeleted
	}

	err := s.sess.atomic(ctx, func() error {
		for _, h := range fc.actions {
			if err := h.Delete(ctx); err != nil {
				return err
			}
		}
		ext, err := s.sess.ext()
		if err != nil {
			return err
		}
		if _, err := ext.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", fc.folder.ID); err != nil {
			return fmt.Errorf("deleting folder %d: %w", fc.folder.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fc.drain()
	delete(s.folders, fc.folder.ID)
	s.logger.Debug("folder deleted", "folder_id", fc.folder.ID)
	return nil
}

// Suspend switches between immediate commits (false) and batched writes
// (true). Calls nest with folder-level brackets.
func (s *Store) Suspend(ctx context.Context, on bool) error {
	return s.sess.Suspend(ctx, on)
}

// Suspended reports whether writes are being batched.
func (s *Store) Suspended() bool {
	return s.sess.Suspended()
}

// Flush makes every pending write durable. It is a no-op in immediate mode.
func (s *Store) Flush(ctx context.Context) error {
	return s.sess.Flush(ctx)
}

// StoreAll is an alias for Flush.
func (s *Store) StoreAll(ctx context.Context) error {
	return s.Flush(ctx)
}

// IsClosed reports whether the store has been closed.
func (s *Store) IsClosed() bool {
	return s.sess.IsClosed()
}

// Close commits pending writes and closes the connection. When terminal is
// true the process is exiting and close errors are logged, not returned.
func (s *Store) Close(terminal bool) error {
	err := s.sess.Close()
	if err != nil {
		if terminal {
			s.logger.Warn("closing store", "error", err)
			return nil
		}
		return fmt.Errorf("closing store: %w", err)
	}
	s.logger.Info("store closed", "path", s.sess.path)
	return nil
}

// SchemaVersion returns the version stamped in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	ext, err := s.sess.ext()
	if err != nil {
		return 0, err
	}
	return SchemaVersion(ctx, ext)
}

// DatabaseType describes the underlying engine for diagnostics.
func (s *Store) DatabaseType(ctx context.Context) string {
	const driver = "modernc.org/sqlite"

	ext, err := s.sess.ext()
	if err != nil {
		return "SQLite (" + driver + ")"
	}
	var version string
	if err := ext.QueryRowxContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return "SQLite (" + driver + ")"
	}
	return fmt.Sprintf("SQLite %s (%s)", strings.TrimSpace(version), driver)
}
