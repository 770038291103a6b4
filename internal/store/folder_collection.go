package store

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/nhle/action-store/internal/model"
)

// FolderCollection is the ordered, cached sequence of action handles
// belonging to one folder. The cache is filled when the collection is built
// and only re-read from the database on Refresh.
//
// A collection is not safe for concurrent mutation; serialize access through
// a single owner.
type FolderCollection struct {
	sess    *session
	folder  *model.Folder
	actions []*ActionHandle
	deleted bool
}

func newFolderCollection(sess *session, f *model.Folder) *FolderCollection {
	return &FolderCollection{sess: sess, folder: f}
}

// Folder returns the folder value. Changes to it are durable only after
// Store.
func (fc *FolderCollection) Folder() *model.Folder {
	return fc.folder
}

// ID is shorthand for Folder().ID.
func (fc *FolderCollection) ID() int64 {
	return fc.folder.ID
}

// Store writes the folder attributes and bumps its modified time.
func (fc *FolderCollection) Store(ctx context.Context) error {
	if fc.deleted {
		return ErrFolderDeleted
	}
	ext, err := fc.sess.ext()
	if err != nil {
		return err
	}

	f := fc.folder
	f.Modified = time.Now().UTC()
	result, err := ext.ExecContext(ctx, `
		UPDATE folders SET
			name = ?, type = ?, closed = ?, description = ?, modified_at = ?
		WHERE id = ?`,
		f.Name, string(f.Type), boolToInt(f.Closed), f.Description, f.Modified,
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("storing folder %d: %w", f.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("folder %d: %w", f.ID, ErrNotFound)
	}
	return nil
}

// Refresh re-reads the folder row and its actions. Handles for actions that
// are still present are kept and updated in place.
func (fc *FolderCollection) Refresh(ctx context.Context) error {
	if fc.deleted {
		return ErrFolderDeleted
	}
	ext, err := fc.sess.ext()
	if err != nil {
		return err
	}

	f, err := scanFolder(ext.QueryRowxContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE id = ?", fc.folder.ID))
	if err != nil {
		return fmt.Errorf("refreshing folder %d: %w", fc.folder.ID, err)
	}

	rows, err := ext.QueryxContext(ctx,
		"SELECT "+actionColumns+" FROM actions WHERE folder_id = ? ORDER BY position, id",
		fc.folder.ID)
	if err != nil {
		return fmt.Errorf("querying actions of folder %d: %w", fc.folder.ID, err)
	}
	defer rows.Close()

	var loaded []loadedAction
	for rows.Next() {
		a, _, pos, err := scanAction(rows)
		if err != nil {
			return err
		}
		loaded = append(loaded, loadedAction{action: a, position: pos})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading actions of folder %d: %w", fc.folder.ID, err)
	}

	fc.reload(f, loaded)
	return nil
}

// loadedAction is one action row read back in folder order.
type loadedAction struct {
	action   *model.Action
	position int64
}

// reload replaces the cached folder and actions with freshly read rows.
// Handles for actions that are still present keep their identity and are
// updated in place; handles for vanished actions are detached.
func (fc *FolderCollection) reload(f *model.Folder, loaded []loadedAction) {
	existing := make(map[int64]*ActionHandle, len(fc.actions))
	for _, h := range fc.actions {
		existing[h.action.ID] = h
	}

	fresh := make([]*ActionHandle, 0, len(loaded))
	for _, l := range loaded {
		h, ok := existing[l.action.ID]
		if ok {
			*h.action = *l.action
			delete(existing, l.action.ID)
		} else {
			h = newActionHandle(fc.sess, l.action)
		}
		h.parent = fc
		h.position = l.position
		h.stored = true
		fresh = append(fresh, h)
	}

	for _, gone := range existing {
		gone.parent = nil
	}
	*fc.folder = *f
	fc.actions = fresh
}

// Size returns the number of cached actions.
func (fc *FolderCollection) Size() int {
	return len(fc.actions)
}

// Get returns the handle at position i.
func (fc *FolderCollection) Get(i int) (*ActionHandle, error) {
	if i < 0 || i >= len(fc.actions) {
		return nil, fmt.Errorf("get %d of %d: %w", i, len(fc.actions), ErrIndexOutOfRange)
	}
	return fc.actions[i], nil
}

// ToArray returns a copy of the cached handles in order.
func (fc *FolderCollection) ToArray() []*ActionHandle {
	return slices.Clone(fc.actions)
}

// Contains reports whether h is in the cache.
func (fc *FolderCollection) Contains(h *ActionHandle) bool {
	return fc.indexOf(h) >= 0
}

// IndexOf returns the position of h, or -1.
func (fc *FolderCollection) IndexOf(h *ActionHandle) int {
	return fc.indexOf(h)
}

func (fc *FolderCollection) indexOf(h *ActionHandle) int {
	return slices.Index(fc.actions, h)
}

// Iterator yields the cached actions matching preset, in order. It never
// queries the database and can be ranged over any number of times.
func (fc *FolderCollection) Iterator(preset model.Preset) iter.Seq[*ActionHandle] {
	return func(yield func(*ActionHandle) bool) {
		for _, h := range fc.actions {
			if preset.Match(h.action) && !yield(h) {
				return
			}
		}
	}
}

// Add appends h and persists it.
func (fc *FolderCollection) Add(ctx context.Context, h *ActionHandle) error {
	return fc.Insert(ctx, len(fc.actions), h)
}

// Insert places h at position i, assigns it to this folder and persists it
// together with any later handles whose position had to shift.
func (fc *FolderCollection) Insert(ctx context.Context, i int, h *ActionHandle) error {
	if err := fc.checkAccepts(h); err != nil {
		return err
	}
	if i < 0 || i > len(fc.actions) {
		return fmt.Errorf("insert at %d of %d: %w", i, len(fc.actions), ErrIndexOutOfRange)
	}

	snap := fc.snapshot()
	fc.actions = slices.Insert(slices.Clone(fc.actions), i, h)
	h.parent = fc
	err := fc.sess.atomic(ctx, func() error {
		return fc.renumberFrom(ctx, i)
	})
	if err != nil {
		snap.restore()
		h.parent = nil
		return err
	}
	return nil
}

// Set replaces the handle at position i with h and returns the replaced
// handle. The replaced action is deleted.
func (fc *FolderCollection) Set(ctx context.Context, i int, h *ActionHandle) (*ActionHandle, error) {
	if i < 0 || i >= len(fc.actions) {
		return nil, fmt.Errorf("set %d of %d: %w", i, len(fc.actions), ErrIndexOutOfRange)
	}
	old := fc.actions[i]
	if old == h {
		return old, h.Store(ctx)
	}
	if err := fc.checkAccepts(h); err != nil {
		return nil, err
	}

	snap := fc.snapshot()
	err := fc.sess.atomic(ctx, func() error {
		if err := old.Delete(ctx); err != nil {
			return err
		}
		fc.actions[i] = h
		h.parent = fc
		h.position = old.position
		return h.Store(ctx)
	})
	if err != nil {
		snap.restore()
		h.parent = nil
		return nil, err
	}
	old.parent = nil
	return old, nil
}

// RemoveAt deletes the action at position i and drops it from the cache.
func (fc *FolderCollection) RemoveAt(ctx context.Context, i int) (*ActionHandle, error) {
	if fc.deleted {
		return nil, ErrFolderDeleted
	}
	if i < 0 || i >= len(fc.actions) {
		return nil, fmt.Errorf("remove %d of %d: %w", i, len(fc.actions), ErrIndexOutOfRange)
	}

	h := fc.actions[i]
	if err := h.Delete(ctx); err != nil {
		return nil, err
	}
	fc.actions = slices.Delete(fc.actions, i, i+1)
	h.parent = nil
	return h, nil
}

// Remove deletes h if it is in this folder. It reports whether h was found.
func (fc *FolderCollection) Remove(ctx context.Context, h *ActionHandle) (bool, error) {
	i := fc.indexOf(h)
	if i < 0 {
		return false, nil
	}
	if _, err := fc.RemoveAt(ctx, i); err != nil {
		return false, err
	}
	return true, nil
}

// Reorder replaces the whole order with order, which must hold exactly the
// current handles.
func (fc *FolderCollection) Reorder(ctx context.Context, order []*ActionHandle) error {
	if fc.deleted {
		return ErrFolderDeleted
	}
	if !fc.isPermutation(order) {
		return fmt.Errorf("reordering folder %d: %w", fc.folder.ID, ErrNotPermutation)
	}

	snap := fc.snapshot()
	fc.actions = slices.Clone(order)
	err := fc.sess.atomic(ctx, func() error {
		for i, h := range fc.actions {
			h.position = int64(i)
			if err := h.Store(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		snap.restore()
		return err
	}
	return nil
}

// Suspend brackets a bulk edit of this folder in batched mode. It shares
// the store-wide batch, so brackets at both levels nest.
func (fc *FolderCollection) Suspend(ctx context.Context, on bool) error {
	return fc.sess.Suspend(ctx, on)
}

// renumberFrom gives the handle at i the position after its predecessor and
// stores it, then shifts later handles only as far as needed to keep
// positions strictly increasing.
func (fc *FolderCollection) renumberFrom(ctx context.Context, i int) error {
	for j := i; j < len(fc.actions); j++ {
		h := fc.actions[j]
		want := int64(0)
		if j > 0 {
			want = fc.actions[j-1].position + 1
		}
		if j > i && h.position >= want {
			return nil
		}
		h.position = want
		if err := h.Store(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (fc *FolderCollection) checkAccepts(h *ActionHandle) error {
	if fc.deleted {
		return ErrFolderDeleted
	}
	if fc.folder.Type.Policy().Meta {
		return fmt.Errorf("folder %d (%s): %w", fc.folder.ID, fc.folder.Type, ErrMetaFolder)
	}
	if h.parent == fc {
		return fmt.Errorf("action %d: %w", h.action.ID, ErrDuplicateAction)
	}
	if h.parent != nil {
		return fmt.Errorf("action %d in folder %d: %w", h.action.ID, h.parent.folder.ID, ErrAttached)
	}
	return nil
}

func (fc *FolderCollection) isPermutation(order []*ActionHandle) bool {
	if len(order) != len(fc.actions) {
		return false
	}
	seen := make(map[*ActionHandle]bool, len(order))
	for _, h := range order {
		if h == nil || h.parent != fc || seen[h] {
			return false
		}
		seen[h] = true
	}
	return true
}

// cacheSnapshot records the cached order and positions of a collection so
// a failed write can put the cache back the way the database still has it.
type cacheSnapshot struct {
	fc        *FolderCollection
	actions   []*ActionHandle
	positions []int64
}

func (fc *FolderCollection) snapshot() cacheSnapshot {
	snap := cacheSnapshot{
		fc:        fc,
		actions:   slices.Clone(fc.actions),
		positions: make([]int64, len(fc.actions)),
	}
	for i, h := range fc.actions {
		snap.positions[i] = h.position
	}
	return snap
}

func (c cacheSnapshot) restore() {
	c.fc.actions = c.actions
	for i, h := range c.actions {
		h.parent = c.fc
		h.position = c.positions[i]
	}
}

// drain detaches every handle and marks the collection deleted.
func (fc *FolderCollection) drain() {
	for _, h := range fc.actions {
		h.parent = nil
	}
	fc.actions = nil
	fc.deleted = true
}

const folderColumns = "id, name, type, closed, description, created_at, modified_at"

// scanFolder scans a folder row selected with folderColumns.
func scanFolder(row interface{ Scan(dest ...interface{}) error }) (*model.Folder, error) {
	var (
		f         model.Folder
		folderTyp string
		closed    int
	)

	err := row.Scan(&f.ID, &f.Name, &folderTyp, &closed, &f.Description, &f.Created, &f.Modified)
	if err != nil {
		return nil, fmt.Errorf("scanning folder row: %w", err)
	}

	if f.Type, err = model.ParseFolderType(folderTyp); err != nil {
		return nil, fmt.Errorf("folder %d: %w", f.ID, err)
	}
	f.Closed = closed != 0
	f.Created = f.Created.UTC()
	f.Modified = f.Modified.UTC()
	return &f, nil
}
