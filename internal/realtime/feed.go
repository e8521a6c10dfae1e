// internal/realtime/feed.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is a single row-level change pushed by the backend change feed.
// New carries the row after the change (insert/update), Old the row
// before it (update/delete).
type Event struct {
	Type      EventType       `json:"event_type"`
	Table     string          `json:"table"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	Timestamp time.Time       `json:"commit_timestamp"`
}

// Filter restricts a subscription to rows where Column equals Value.
type Filter struct {
	Column string
	Value  string
}

// String renders the filter in the backend's wire syntax.
func (f Filter) String() string {
	return fmt.Sprintf("%s=eq.%s", f.Column, f.Value)
}

// Subscription is a scoped resource: opened when a user identity becomes
// available, closed exactly once when that identity goes away. Events()
// is closed after Close returns; no event is delivered past that point.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// Feed opens filtered row-change subscriptions against the backend.
type Feed interface {
	Subscribe(ctx context.Context, table string, filter Filter) (Subscription, error)
}
