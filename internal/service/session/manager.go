// internal/service/session/manager.go
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ruleboard-service/internal/authprovider"
	"ruleboard-service/internal/domain/profile"
	domain "ruleboard-service/internal/domain/session"
	xerrors "ruleboard-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type State string

const (
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// resolveTimeout bounds profile resolution for a pushed auth event.
const resolveTimeout = 10 * time.Second

// ProfileStore looks up the application-level profile for a subject id.
type ProfileStore interface {
	FindByID(ctx context.Context, userID string) (*profile.UserProfile, error)
}

type authEvent struct {
	event domain.Event
	sess  *domain.Session
}

// Manager owns the authenticated-identity lifecycle: initial hydration,
// provider push events, profile resolution with fallback, teardown.
//
// Provider events are consumed by a single goroutine, so each event is
// fully handled (profile resolution included) before the next one.
// Authenticated is only observable with a profile attached.
type Manager struct {
	provider authprovider.Provider
	profiles ProfileStore
	logger   *zap.Logger

	mu    sync.RWMutex
	state State
	sess  *domain.Session
	user  *profile.UserProfile

	events   chan authEvent
	sub      authprovider.Subscription
	done     chan struct{}
	teardown sync.Once
}

func NewManager(provider authprovider.Provider, profiles ProfileStore, logger *zap.Logger) *Manager {
	return &Manager{
		provider: provider,
		profiles: profiles,
		logger:   logger,
		state:    StateLoading,
		events:   make(chan authEvent, 16),
		done:     make(chan struct{}),
	}
}

// Initialize fetches the current session once, resolves the profile when
// one exists, then subscribes to provider push events. A transport
// failure on the initial fetch lands in Unauthenticated: the failure is
// logged, never surfaced, and nothing is retried.
func (m *Manager) Initialize(ctx context.Context) {
	sess, err := m.provider.GetSession(ctx)
	switch {
	case err != nil:
		m.logger.Error("initial session fetch failed, treating as signed out", zap.Error(err))
		m.clearSession()
	case sess == nil:
		m.clearSession()
	default:
		m.applySession(ctx, sess)
	}

	m.sub = m.provider.OnAuthStateChange(func(event domain.Event, sess *domain.Session) {
		select {
		case m.events <- authEvent{event: event, sess: sess}:
		case <-m.done:
		}
	})

	go m.loop()
}

func (m *Manager) loop() {
	for {
		select {
		case <-m.done:
			return
		case ev := <-m.events:
			m.handleAuthEvent(ev)
		}
	}
}

func (m *Manager) handleAuthEvent(ev authEvent) {
	if ev.sess == nil {
		m.clearSession()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	m.applySession(ctx, ev.sess)
}

// applySession stores the session synchronously, then resolves a profile
// before entering Authenticated. A profile belonging to a different
// subject is dropped immediately so a new session is never paired with a
// stale user.
func (m *Manager) applySession(ctx context.Context, sess *domain.Session) {
	m.mu.Lock()
	m.sess = sess
	if m.user != nil && m.user.ID != sess.UserID {
		m.user = nil
		m.state = StateLoading
	}
	m.mu.Unlock()

	user := m.resolveProfile(ctx, sess.UserID, sess.Email)

	m.mu.Lock()
	m.user = user
	m.state = StateAuthenticated
	m.mu.Unlock()
}

func (m *Manager) clearSession() {
	m.mu.Lock()
	m.sess = nil
	m.user = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()
}

// resolveProfile never fails the flow: lookup errors and missing rows
// both degrade to the minimal fallback profile.
func (m *Manager) resolveProfile(ctx context.Context, userID, email string) *profile.UserProfile {
	p, err := m.profiles.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, xerrors.ErrNotFound) {
			m.logger.Warn("profile lookup failed, using fallback",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return profile.Fallback(userID, email)
	}

	if p.Role == "" {
		p.Role = profile.DefaultRole
	}
	return p
}

// Teardown unsubscribes from the provider push channel. Idempotent and
// safe to call multiple times.
func (m *Manager) Teardown() {
	m.teardown.Do(func() {
		if m.sub != nil {
			m.sub.Unsubscribe()
		}
		close(m.done)
	})
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CurrentUser returns the resolved profile, nil unless Authenticated.
func (m *Manager) CurrentUser() *profile.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *Manager) CurrentSession() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess
}
