// internal/service/notification/reducer.go
package notification

import (
	"encoding/json"
	"fmt"

	"ruleboard-service/internal/domain/notification"
	"ruleboard-service/internal/realtime"
)

// Change is a decoded row-change event for the notifications table.
type Change struct {
	Type realtime.EventType
	New  *notification.Notification
	Old  *notification.Notification
}

// DecodeChange turns a raw feed event into a typed change.
func DecodeChange(ev realtime.Event) (Change, error) {
	ch := Change{Type: ev.Type}

	if len(ev.New) > 0 {
		var n notification.Notification
		if err := json.Unmarshal(ev.New, &n); err != nil {
			return Change{}, fmt.Errorf("failed to decode new record: %w", err)
		}
		ch.New = &n
	}
	if len(ev.Old) > 0 {
		var o notification.Notification
		if err := json.Unmarshal(ev.Old, &o); err != nil {
			return Change{}, fmt.Errorf("failed to decode old record: %w", err)
		}
		ch.Old = &o
	}

	switch ev.Type {
	case realtime.EventInsert, realtime.EventUpdate:
		if ch.New == nil {
			return Change{}, fmt.Errorf("%s event without new record", ev.Type)
		}
	case realtime.EventDelete:
		if ch.Old == nil {
			return Change{}, fmt.Errorf("delete event without old record")
		}
	default:
		return Change{}, fmt.Errorf("unknown event type %q", ev.Type)
	}

	return ch, nil
}

// Apply is a pure reducer: it returns the list after one change, leaving
// the input untouched. Inserts prepend and truncate back to the recent
// window; updates replace in place; deletes remove by the old record id.
func Apply(list []notification.Notification, ch Change) []notification.Notification {
	switch ch.Type {
	case realtime.EventInsert:
		return applyInsert(list, *ch.New)
	case realtime.EventUpdate:
		return applyUpdate(list, *ch.New)
	case realtime.EventDelete:
		return applyDelete(list, ch.Old.ID)
	}
	return list
}

func applyInsert(list []notification.Notification, n notification.Notification) []notification.Notification {
	// A replayed insert for a known id is a no-op, keeping ids unique.
	for _, existing := range list {
		if existing.ID == n.ID {
			return list
		}
	}

	next := make([]notification.Notification, 0, len(list)+1)
	next = append(next, n)
	next = append(next, list...)

	if len(next) > notification.RecentWindow {
		next = next[:notification.RecentWindow]
	}
	return next
}

func applyUpdate(list []notification.Notification, n notification.Notification) []notification.Notification {
	next := make([]notification.Notification, len(list))
	copy(next, list)

	for i := range next {
		if next[i].ID == n.ID {
			next[i] = n
			break
		}
	}
	return next
}

func applyDelete(list []notification.Notification, id string) []notification.Notification {
	next := make([]notification.Notification, 0, len(list))
	for _, n := range list {
		if n.ID != id {
			next = append(next, n)
		}
	}
	return next
}

// CountUnread is the unread projection: always recomputed, never stored.
func CountUnread(list []notification.Notification) int {
	count := 0
	for i := range list {
		if list[i].IsUnread() {
			count++
		}
	}
	return count
}
