// Package events provides an SSE event broadcaster for node changes, so
// other open views of the same workspace can apply create/move/remove
// events to their listings without polling.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"cumulus/internal/domain/models"
)

const (
	EventCreate  = "create"
	EventUpdate  = "update"
	EventMove    = "move"
	EventCopy    = "copy"
	EventTrash   = "trash"
	EventRestore = "restore"
	EventDelete  = "delete"
)

// Event represents a node change event.
type Event struct {
	Type        string       `json:"type"`
	WorkspaceID string       `json:"workspace_id"`
	NodeID      string       `json:"node_id"`
	Node        *models.Node `json:"node,omitempty"` // omitted for deletes
	// OldParentID is set on moves so consumers can drop the node from the
	// source listing as well as insert it into the destination.
	OldParentID *string `json:"old_parent_id,omitempty"`
	Timestamp   int64   `json:"timestamp"`
}

// Broadcaster manages SSE subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers rather than stalling the mutation path.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Marshal renders the event as its SSE data payload.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
