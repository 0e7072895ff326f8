package models

import (
	"time"
)

// NodeKind is the concrete node variant. The listing comparator matches
// on it exhaustively, so new kinds must be added there as well.
type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindFile   NodeKind = "file"
	KindRoot   NodeKind = "root"
)

// IsContainer reports whether the node can hold children.
func (k NodeKind) IsContainer() bool {
	return k == KindFolder || k == KindRoot
}

// Node is a file or folder snapshot. The listing layer never mutates a
// Node in place; mutations replace the stored value wholesale.
type Node struct {
	ID          string     `json:"id" db:"id"`
	WorkspaceID string     `json:"workspace_id" db:"workspace_id"`
	ParentID    *string    `json:"parent_id" db:"parent_id"` // NULL = workspace root
	Kind        NodeKind   `json:"kind" db:"kind"`
	Name        string     `json:"name" db:"name"`
	Size        *int64     `json:"size,omitempty" db:"size"` // files only, bytes
	MimeType    string     `json:"mime_type,omitempty" db:"mime_type"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	TrashedAt   *time.Time `json:"trashed_at,omitempty" db:"trashed_at"`
}

// SizeOrZero returns the node size, treating folders (no size) as 0.
func (n *Node) SizeOrZero() int64 {
	if n.Size == nil {
		return 0
	}
	return *n.Size
}
