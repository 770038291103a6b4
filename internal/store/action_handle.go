package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/action-store/internal/model"
)

// ActionHandle pairs one action value with its persistence. Nothing is
// written implicitly: every write is an explicit Store, Update or Delete.
type ActionHandle struct {
	sess     *session
	action   *model.Action
	parent   *FolderCollection
	position int64

	// stored is set once the handle has written or loaded its row. Until
	// then a write is a plain insert, so it cannot take over another row.
	stored bool
}

func newActionHandle(sess *session, a *model.Action) *ActionHandle {
	return &ActionHandle{sess: sess, action: a}
}

// Get returns the in-memory action. Changes to it are durable only after
// Store.
func (h *ActionHandle) Get() *model.Action {
	return h.action
}

// ID is shorthand for Get().ID.
func (h *ActionHandle) ID() int64 {
	return h.action.ID
}

// Parent returns the folder collection currently owning the action, or nil.
func (h *ActionHandle) Parent() *FolderCollection {
	return h.parent
}

// SetParent records which folder owns the action. It does no I/O: the
// owning collection sequences the row rewrite through Store.
func (h *ActionHandle) SetParent(fc *FolderCollection) {
	h.parent = fc
}

// Store upserts the full action row under its current parent folder and
// position. Calling it repeatedly is safe. The first write of a new handle
// fails with ErrDuplicateID if its id already has a row.
func (h *ActionHandle) Store(ctx context.Context) error {
	if h.parent == nil {
		return fmt.Errorf("storing action %d: %w", h.action.ID, ErrDetached)
	}
	ext, err := h.sess.ext()
	if err != nil {
		return err
	}

	a := h.action
	upsert := `
		ON CONFLICT(id) DO UPDATE SET
			folder_id = excluded.folder_id,
			position = excluded.position,
			description = excluded.description,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			resolved_at = excluded.resolved_at,
			start_at = excluded.start_at,
			remind_at = excluded.remind_at,
			due_at = excluded.due_at,
			project_id = excluded.project_id,
			queued = excluded.queued,
			resolution = excluded.resolution,
			type = excluded.type,
			priority = excluded.priority,
			url = excluded.url`
	if !h.stored {
		upsert = ""
	}

	_, err = ext.ExecContext(ctx, `
		INSERT INTO actions (
			id, folder_id, position, description,
			created_at, modified_at, resolved_at, start_at, remind_at, due_at,
			project_id, queued, resolution, type, priority, url
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?
		)`+upsert,
		a.ID, h.parent.folder.ID, h.position, a.Description,
		a.Created.UTC(), a.Modified.UTC(), utcPtr(a.Resolved), utcPtr(a.Start), utcPtr(a.Remind), utcPtr(a.Due),
		a.ProjectID, boolToInt(a.Queued), string(resolutionOrOpen(a.Resolution)), a.Type, a.Priority.String(), a.URL,
	)
	if isPrimaryKeyConflict(err) {
		return fmt.Errorf("storing action %d: %w", a.ID, ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("storing action %d: %w", a.ID, err)
	}
	h.stored = true
	return nil
}

// Delete removes the action row. Deleting a row that is already gone
// succeeds.
func (h *ActionHandle) Delete(ctx context.Context) error {
	ext, err := h.sess.ext()
	if err != nil {
		return err
	}
	if _, err := ext.ExecContext(ctx, "DELETE FROM actions WHERE id = ?", h.action.ID); err != nil {
		return fmt.Errorf("deleting action %d: %w", h.action.ID, err)
	}
	return nil
}

// Update applies fn to the action, bumps its modified time and stores it.
// The creation time cannot be changed through fn.
func (h *ActionHandle) Update(ctx context.Context, fn func(a *model.Action)) error {
	created := h.action.Created
	fn(h.action)
	h.action.Created = created
	h.action.Modified = time.Now().UTC()
	return h.Store(ctx)
}

const actionColumns = `id, folder_id, position, description,
	created_at, modified_at, resolved_at, start_at, remind_at, due_at,
	project_id, queued, resolution, type, priority, url`

// scanAction scans an action row selected with actionColumns.
func scanAction(row interface{ Scan(dest ...interface{}) error }) (a *model.Action, folderID, position int64, err error) {
	var (
		act        model.Action
		queued     int
		resolution string
		priority   string
	)

	err = row.Scan(
		&act.ID, &folderID, &position, &act.Description,
		&act.Created, &act.Modified, &act.Resolved, &act.Start, &act.Remind, &act.Due,
		&act.ProjectID, &queued, &resolution, &act.Type, &priority, &act.URL,
	)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("scanning action row: %w", err)
	}

	act.Queued = queued != 0
	if act.Resolution, err = model.ParseResolution(resolution); err != nil {
		return nil, 0, 0, fmt.Errorf("action %d: %w", act.ID, err)
	}
	if act.Priority, err = model.ParsePriority(priority); err != nil {
		return nil, 0, 0, fmt.Errorf("action %d: %w", act.ID, err)
	}

	act.Created = act.Created.UTC()
	act.Modified = act.Modified.UTC()
	act.Resolved = utcPtr(act.Resolved)
	act.Start = utcPtr(act.Start)
	act.Remind = utcPtr(act.Remind)
	act.Due = utcPtr(act.Due)

	return &act, folderID, position, nil
}

func resolutionOrOpen(r model.Resolution) model.Resolution {
	if r == "" {
		return model.ResolutionOpen
	}
	return r
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
