package model

import (
	"fmt"
	"time"
)

// Resolution is the closed set of lifecycle states of an action.
type Resolution string

const (
	ResolutionOpen     Resolution = "open"
	ResolutionResolved Resolution = "resolved"
	ResolutionDeleted  Resolution = "deleted"
)

// ParseResolution converts a persisted tag into a Resolution.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolutionOpen, ResolutionResolved, ResolutionDeleted:
		return r, nil
	}
	return "", fmt.Errorf("unknown resolution %q", s)
}

// Priority is an ordered scale. The zero value is PriorityNone.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

var priorityTags = [...]string{"none", "low", "medium", "high"}

// String returns the persisted tag for p.
func (p Priority) String() string {
	if p < PriorityNone || p > PriorityHigh {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityTags[p]
}

// ParsePriority converts a persisted tag into a Priority.
func ParsePriority(s string) (Priority, error) {
	for i, tag := range priorityTags {
		if tag == s {
			return Priority(i), nil
		}
	}
	return PriorityNone, fmt.Errorf("unknown priority %q", s)
}

// Action is a single task-like record owned by exactly one folder.
type Action struct {
	ID          int64      `json:"id" db:"id"`
	Description string     `json:"description" db:"description"`
	Created     time.Time  `json:"created_at" db:"created_at"`
	Modified    time.Time  `json:"modified_at" db:"modified_at"`
	Resolved    *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	Start       *time.Time `json:"start_at,omitempty" db:"start_at"`
	Remind      *time.Time `json:"remind_at,omitempty" db:"remind_at"`
	Due         *time.Time `json:"due_at,omitempty" db:"due_at"`
	Resolution  Resolution `json:"resolution" db:"resolution"`
	Priority    Priority   `json:"priority" db:"priority"`
	Type        *string    `json:"type,omitempty" db:"type"`
	Queued      bool       `json:"queued" db:"queued"`

	// ProjectID is a weak reference to a project folder. It may dangle.
	ProjectID *int64  `json:"project_id,omitempty" db:"project_id"`
	URL       *string `json:"url,omitempty" db:"url"`
}

// IsOpen reports whether the action is neither resolved nor deleted.
func (a *Action) IsOpen() bool {
	return a.Resolution == ResolutionOpen || a.Resolution == ""
}

// Clone returns a deep copy of a. Pointer fields are not shared.
func (a *Action) Clone() *Action {
	c := *a
	c.Resolved = clonePtr(a.Resolved)
	c.Start = clonePtr(a.Start)
	c.Remind = clonePtr(a.Remind)
	c.Due = clonePtr(a.Due)
	c.Type = clonePtr(a.Type)
	c.ProjectID = clonePtr(a.ProjectID)
	c.URL = clonePtr(a.URL)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
