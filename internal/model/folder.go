package model

import (
	"fmt"
	"time"
)

// FolderType identifies the role a folder plays. Tags are persisted as-is
// and must never change.
type FolderType string

const (
	FolderInbox     FolderType = "inbox"
	FolderAction    FolderType = "action"
	FolderReference FolderType = "reference"
	FolderSomeday   FolderType = "someday"
	FolderProject   FolderType = "project"
	FolderQueue     FolderType = "queue"
	FolderResolved  FolderType = "resolved"
	FolderDeleted   FolderType = "deleted"
)

// FolderPolicy holds the type-dependent rules for a folder.
type FolderPolicy struct {
	// Meta folders are built-in views computed from other folders.
	// They never own actions themselves.
	Meta bool

	// Singleton types may exist at most once per store.
	Singleton bool
}

var folderPolicies = map[FolderType]FolderPolicy{
	FolderInbox:     {Singleton: true},
	FolderAction:    {},
	FolderReference: {},
	FolderSomeday:   {},
	FolderProject:   {},
	FolderQueue:     {Meta: true, Singleton: true},
	FolderResolved:  {Meta: true, Singleton: true},
	FolderDeleted:   {Meta: true, Singleton: true},
}

// FolderTypes returns every known folder type in a stable order.
func FolderTypes() []FolderType {
	return []FolderType{
		FolderInbox, FolderAction, FolderReference, FolderSomeday,
		FolderProject, FolderQueue, FolderResolved, FolderDeleted,
	}
}

// Valid reports whether t is one of the known folder types.
func (t FolderType) Valid() bool {
	_, ok := folderPolicies[t]
	return ok
}

// Policy returns the rules for t. Unknown types get the zero policy.
func (t FolderType) Policy() FolderPolicy {
	return folderPolicies[t]
}

// ParseFolderType converts a persisted tag into a FolderType.
func ParseFolderType(s string) (FolderType, error) {
	t := FolderType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown folder type %q", s)
	}
	return t, nil
}

// Folder is a named, typed container holding an ordered list of actions.
type Folder struct {
	ID          int64      `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Type        FolderType `json:"type" db:"type"`
	Closed      bool       `json:"closed" db:"closed"`
	Description string     `json:"description" db:"description"`
	Created     time.Time  `json:"created_at" db:"created_at"`
	Modified    time.Time  `json:"modified_at" db:"modified_at"`
}
