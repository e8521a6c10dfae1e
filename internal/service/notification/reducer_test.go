// internal/service/notification/reducer_test.go
package notification_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"ruleboard-service/internal/domain/notification"
	"ruleboard-service/internal/realtime"
	notifsvc "ruleboard-service/internal/service/notification"

	"github.com/stretchr/testify/require"
)

func notif(id string, status notification.Status) notification.Notification {
	return notification.Notification{
		ID:        id,
		Type:      "rule_violation",
		Title:     "Rule triggered",
		Message:   "rule " + id + " fired",
		Priority:  notification.PriorityMedium,
		Status:    status,
		UserID:    "user-1",
		CreatedAt: time.Now(),
	}
}

func rawEvent(t *testing.T, typ realtime.EventType, newRec, oldRec *notification.Notification) realtime.Event {
	t.Helper()
	ev := realtime.Event{Type: typ, Table: "notifications", Timestamp: time.Now()}
	if newRec != nil {
		b, err := json.Marshal(newRec)
		require.NoError(t, err)
		ev.New = b
	}
	if oldRec != nil {
		b, err := json.Marshal(oldRec)
		require.NoError(t, err)
		ev.Old = b
	}
	return ev
}

func TestDecodeChange(t *testing.T) {
	n := notif("n1", notification.StatusUnread)

	ch, err := notifsvc.DecodeChange(rawEvent(t, realtime.EventInsert, &n, nil))
	require.NoError(t, err)
	require.Equal(t, realtime.EventInsert, ch.Type)
	require.Equal(t, "n1", ch.New.ID)

	_, err = notifsvc.DecodeChange(rawEvent(t, realtime.EventInsert, nil, nil))
	require.Error(t, err)

	_, err = notifsvc.DecodeChange(rawEvent(t, realtime.EventDelete, nil, nil))
	require.Error(t, err)

	_, err = notifsvc.DecodeChange(realtime.Event{Type: "TRUNCATE"})
	require.Error(t, err)
}

func TestApplyInsertPrepends(t *testing.T) {
	list := []notification.Notification{notif("n1", notification.StatusUnread)}
	n2 := notif("n2", notification.StatusUnread)

	next := notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventInsert, New: &n2})

	require.Len(t, next, 2)
	require.Equal(t, "n2", next[0].ID)
	require.Equal(t, "n1", next[1].ID)
	// input list untouched
	require.Len(t, list, 1)
}

func TestApplyInsertDuplicateIsNoop(t *testing.T) {
	n1 := notif("n1", notification.StatusUnread)
	list := []notification.Notification{n1}

	next := notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventInsert, New: &n1})

	require.Len(t, next, 1)
}

func TestApplyInsertBoundedWindow(t *testing.T) {
	var list []notification.Notification
	for i := 0; i < notification.RecentWindow; i++ {
		n := notif(fmt.Sprintf("n%d", i), notification.StatusUnread)
		list = notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventInsert, New: &n})
	}
	require.Len(t, list, notification.RecentWindow)

	extra := notif("n-extra", notification.StatusUnread)
	list = notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventInsert, New: &extra})

	require.Len(t, list, notification.RecentWindow)
	require.Equal(t, "n-extra", list[0].ID)
	// oldest entry fell off the end
	for _, n := range list {
		require.NotEqual(t, "n0", n.ID)
	}
}

func TestApplyUpdateReplacesInPlace(t *testing.T) {
	list := []notification.Notification{
		notif("n2", notification.StatusUnread),
		notif("n1", notification.StatusUnread),
	}
	updated := notif("n1", notification.StatusRead)

	next := notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventUpdate, New: &updated})

	require.Len(t, next, 2)
	require.Equal(t, "n2", next[0].ID)
	require.Equal(t, notification.StatusRead, next[1].Status)
	require.Equal(t, notification.StatusUnread, list[1].Status)
}

func TestApplyUpdateUnknownIDIsNoop(t *testing.T) {
	list := []notification.Notification{notif("n1", notification.StatusUnread)}
	ghost := notif("ghost", notification.StatusRead)

	next := notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventUpdate, New: &ghost})

	require.Len(t, next, 1)
	require.Equal(t, "n1", next[0].ID)
}

func TestApplyDeleteRemoves(t *testing.T) {
	list := []notification.Notification{
		notif("n2", notification.StatusUnread),
		notif("n1", notification.StatusUnread),
	}
	old := notif("n2", notification.StatusUnread)

	next := notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventDelete, Old: &old})

	require.Len(t, next, 1)
	require.Equal(t, "n1", next[0].ID)
}

func TestLifecycleSequence(t *testing.T) {
	list := []notification.Notification{notif("n1", notification.StatusUnread)}

	n2 := notif("n2", notification.StatusUnread)
	list = notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventInsert, New: &n2})
	require.Equal(t, 2, notifsvc.CountUnread(list))

	n1Read := notif("n1", notification.StatusRead)
	list = notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventUpdate, New: &n1Read})
	require.Equal(t, 1, notifsvc.CountUnread(list))

	list = notifsvc.Apply(list, notifsvc.Change{Type: realtime.EventDelete, Old: &n2})
	require.Len(t, list, 1)
	require.Equal(t, "n1", list[0].ID)
	require.Equal(t, 0, notifsvc.CountUnread(list))
}

func TestCountUnread(t *testing.T) {
	require.Equal(t, 0, notifsvc.CountUnread(nil))

	list := []notification.Notification{
		notif("n1", notification.StatusUnread),
		notif("n2", notification.StatusRead),
		notif("n3", notification.StatusUnread),
	}
	require.Equal(t, 2, notifsvc.CountUnread(list))
}
