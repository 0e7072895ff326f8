package models

import (
	"time"
)

// NodeVersion is one row of a file node's version history. Versions carry
// metadata only (size and content hash); byte storage lives elsewhere.
type NodeVersion struct {
	ID        string    `json:"id" db:"id"`
	NodeID    string    `json:"node_id" db:"node_id"`
	Number    int       `json:"number" db:"number"` // 1-based, monotonically increasing per node
	Size      int64     `json:"size" db:"size"`
	Hash      string    `json:"hash,omitempty" db:"hash"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
