// internal/service/notification/synchronizer.go
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ruleboard-service/internal/cache"
	"ruleboard-service/internal/domain/notification"
	xerrors "ruleboard-service/internal/pkg/errors"
	"ruleboard-service/internal/realtime"

	"go.uber.org/zap"
)

const notificationsTable = "notifications"

// Store is the persistence contract the synchronizer needs.
type Store interface {
	GetLatest(ctx context.Context, userID string, limit int) ([]notification.Notification, error)
	MarkAsRead(ctx context.Context, id string, userID string) error
}

// Synchronizer keeps a live, bounded, newest-first notification list for
// one user: initial snapshot, then row-change events applied in arrival
// order. The subscription is opened before the snapshot fetch, so events
// racing the fetch queue up and are applied on top of it — none lost,
// none applied to an uninitialized list.
//
// The list is owned by exactly one synchronizer instance per user scope;
// the mutex only covers reader interleaving with the event goroutine.
type Synchronizer struct {
	store       Store
	feed        realtime.Feed
	invalidator cache.Invalidator
	logger      *zap.Logger

	mu     sync.RWMutex
	gen    uint64
	userID string
	list   []notification.Notification
	sub    realtime.Subscription

	updates chan struct{}
}

func NewSynchronizer(store Store, feed realtime.Feed, invalidator cache.Invalidator, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		store:       store,
		feed:        feed,
		invalidator: invalidator,
		logger:      logger,
		updates:     make(chan struct{}, 1),
	}
}

// Start opens the change feed for the user and loads the snapshot.
// A no-op for an empty userID. Any previous subscription is fully closed
// first, so events scoped to another user can never reach this list.
func (s *Synchronizer) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	s.Stop()

	sub, err := s.feed.Subscribe(ctx, notificationsTable, realtime.Filter{
		Column: "user_id",
		Value:  userID,
	})
	if err != nil {
		return fmt.Errorf("failed to open notification feed: %w", err)
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.userID = userID
	s.sub = sub
	s.list = nil
	s.mu.Unlock()

	go s.run(ctx, gen, userID, sub)
	return nil
}

func (s *Synchronizer) run(ctx context.Context, gen uint64, userID string, sub realtime.Subscription) {
	list, err := s.store.GetLatest(ctx, userID, notification.RecentWindow)
	if err != nil {
		// Reset to empty rather than serving stale data.
		s.logger.Error("notification snapshot fetch failed, starting empty",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		list = nil
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.list = list
	s.mu.Unlock()
	s.notifyUpdate()

	// Events buffered during the snapshot fetch drain here first, in
	// arrival order.
	for ev := range sub.Events() {
		ch, err := DecodeChange(ev)
		if err != nil {
			s.logger.Warn("skipping malformed change event", zap.Error(err))
			continue
		}

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.list = Apply(s.list, ch)
		s.mu.Unlock()
		s.notifyUpdate()

		if err := s.invalidator.Invalidate(context.Background(), cache.ViewNotifications, userID); err != nil {
			s.logger.Warn("cache invalidation failed", zap.Error(err))
		}
	}

	// The events channel only closes from Stop or a lost connection.
	// Stop bumps the generation first, so a current generation here
	// means the feed dropped out from under a live list.
	s.mu.RLock()
	current := s.gen == gen
	s.mu.RUnlock()
	if current {
		s.logger.Error("notification feed ended while active",
			zap.String("user_id", userID),
			zap.Error(xerrors.ErrFeedClosed),
		)
	}
}

// MarkAsRead updates the store scoped to (id, current user) and mirrors
// the confirmed write into the local list. On failure the local list is
// untouched — there is nothing to roll back.
func (s *Synchronizer) MarkAsRead(ctx context.Context, id string) error {
	s.mu.RLock()
	userID := s.userID
	gen := s.gen
	s.mu.RUnlock()

	if userID == "" {
		return xerrors.ErrNoSession
	}

	if err := s.store.MarkAsRead(ctx, id, userID); err != nil {
		s.logger.Warn("mark as read failed, local state unchanged",
			zap.String("notification_id", id),
			zap.Error(err),
		)
		return err
	}

	s.mu.Lock()
	if s.gen == gen {
		for i := range s.list {
			if s.list[i].ID == id {
				now := time.Now()
				s.list[i].Status = notification.StatusRead
				s.list[i].UpdatedAt = &now
				break
			}
		}
	}
	s.mu.Unlock()
	s.notifyUpdate()

	return nil
}

// Stop closes the subscription exactly once and discards the list. Must
// run before a new Start whenever the user identity changes.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.gen++
	s.userID = ""
	s.list = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// Notifications returns a copy of the current list, newest first.
func (s *Synchronizer) Notifications() []notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]notification.Notification, len(s.list))
	copy(out, s.list)
	return out
}

// UnreadCount is recomputed from the list on every call, never cached.
func (s *Synchronizer) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CountUnread(s.list)
}

// Updates signals after every list mutation. Coalescing channel: slow
// consumers see at least one signal for any burst.
func (s *Synchronizer) Updates() <-chan struct{} {
	return s.updates
}

func (s *Synchronizer) notifyUpdate() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
