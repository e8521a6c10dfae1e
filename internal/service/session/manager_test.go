// internal/service/session/manager_test.go
package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ruleboard-service/internal/authprovider"
	"ruleboard-service/internal/domain/profile"
	domain "ruleboard-service/internal/domain/session"
	xerrors "ruleboard-service/internal/pkg/errors"
	sessionsvc "ruleboard-service/internal/service/session"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	mu      sync.Mutex
	session *domain.Session
	err     error
	cb      authprovider.Callback
}

func (p *fakeProvider) GetSession(ctx context.Context) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, p.err
}

func (p *fakeProvider) OnAuthStateChange(cb authprovider.Callback) authprovider.Subscription {
	p.mu.Lock()
	p.cb = cb
	p.mu.Unlock()
	return fakeSub{}
}

func (p *fakeProvider) SignOut(ctx context.Context, scope authprovider.SignOutScope) error {
	return nil
}

func (p *fakeProvider) push(event domain.Event, s *domain.Session) {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	cb(event, s)
}

type fakeSub struct{}

func (fakeSub) Unsubscribe() {}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*profile.UserProfile
	err      error
	calls    int
}

func (s *fakeProfileStore) FindByID(ctx context.Context, userID string) (*profile.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type fixture struct {
	provider *fakeProvider
	profiles *fakeProfileStore
	manager  *sessionsvc.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: &fakeProvider{},
		profiles: &fakeProfileStore{profiles: map[string]*profile.UserProfile{}},
	}
	f.manager = sessionsvc.NewManager(f.provider, f.profiles, zap.NewNop())
	t.Cleanup(f.manager.Teardown)
	return f
}

func sessionFor(userID, email string) *domain.Session {
	return &domain.Session{
		AccessToken:  "token-" + userID,
		RefreshToken: "refresh-" + userID,
		UserID:       userID,
		Email:        email,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func waitForState(t *testing.T, m *sessionsvc.Manager, want sessionsvc.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.State() == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInitializeNoSession(t *testing.T) {
	f := newFixture(t)

	f.manager.Initialize(context.Background())

	require.Equal(t, sessionsvc.StateUnauthenticated, f.manager.State())
	require.Nil(t, f.manager.CurrentUser())
	require.Nil(t, f.manager.CurrentSession())
}

func TestInitializeWithSessionAndProfile(t *testing.T) {
	f := newFixture(t)
	f.provider.session = sessionFor("user-1", "a@example.com")
	f.profiles.profiles["user-1"] = &profile.UserProfile{
		ID: "user-1", Email: "a@example.com", Role: "admin", Name: "Ann",
	}

	f.manager.Initialize(context.Background())

	require.Equal(t, sessionsvc.StateAuthenticated, f.manager.State())
	user := f.manager.CurrentUser()
	require.NotNil(t, user)
	require.Equal(t, "user-1", user.ID)
	require.Equal(t, "admin", user.Role)
}

func TestInitializeFallbackProfileOnMissingRow(t *testing.T) {
	f := newFixture(t)
	f.provider.session = sessionFor("user-2", "b@example.com")

	f.manager.Initialize(context.Background())

	require.Equal(t, sessionsvc.StateAuthenticated, f.manager.State())
	user := f.manager.CurrentUser()
	require.NotNil(t, user)
	require.Equal(t, "user-2", user.ID)
	require.Equal(t, "b@example.com", user.Email)
	require.Equal(t, profile.DefaultRole, user.Role)
}

func TestInitializeFallbackProfileOnLookupError(t *testing.T) {
	f := newFixture(t)
	f.provider.session = sessionFor("user-3", "c@example.com")
	f.profiles.err = errors.New("connection refused")

	f.manager.Initialize(context.Background())

	require.Equal(t, sessionsvc.StateAuthenticated, f.manager.State())
	user := f.manager.CurrentUser()
	require.NotNil(t, user)
	require.Equal(t, profile.DefaultRole, user.Role)
}

func TestInitializeFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("network down")

	f.manager.Initialize(context.Background())

	require.Equal(t, sessionsvc.StateUnauthenticated, f.manager.State())
	require.Nil(t, f.manager.CurrentSession())
}

func TestSignedInEvent(t *testing.T) {
	f := newFixture(t)
	f.manager.Initialize(context.Background())
	require.Equal(t, sessionsvc.StateUnauthenticated, f.manager.State())

	f.profiles.mu.Lock()
	f.profiles.profiles["user-1"] = &profile.UserProfile{ID: "user-1", Email: "a@example.com", Role: "analyst"}
	f.profiles.mu.Unlock()

	f.provider.push(domain.EventSignedIn, sessionFor("user-1", "a@example.com"))

	waitForState(t, f.manager, sessionsvc.StateAuthenticated)
	require.Equal(t, "analyst", f.manager.CurrentUser().Role)
}

func TestSignedOutEvent(t *testing.T) {
	f := newFixture(t)
	f.provider.session = sessionFor("user-1", "a@example.com")
	f.manager.Initialize(context.Background())
	require.Equal(t, sessionsvc.StateAuthenticated, f.manager.State())

	f.provider.push(domain.EventSignedOut, nil)

	waitForState(t, f.manager, sessionsvc.StateUnauthenticated)
	require.Nil(t, f.manager.CurrentUser())
	require.Nil(t, f.manager.CurrentSession())
}

func TestTokenRefreshKeepsProfile(t *testing.T) {
	f := newFixture(t)
	f.provider.session = sessionFor("user-1", "a@example.com")
	f.profiles.profiles["user-1"] = &profile.UserProfile{ID: "user-1", Email: "a@example.com", Role: "admin"}
	f.manager.Initialize(context.Background())

	refreshed := sessionFor("user-1", "a@example.com")
	refreshed.AccessToken = "token-user-1-v2"
	f.provider.push(domain.EventTokenRefreshed, refreshed)

	require.Eventually(t, func() bool {
		s := f.manager.CurrentSession()
		return s != nil && s.AccessToken == "token-user-1-v2"
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, sessionsvc.StateAuthenticated, f.manager.State())
	require.Equal(t, "admin", f.manager.CurrentUser().Role)
}

func TestUserUpdatedEventReresolvesProfile(t *testing.T) {
	f := newFixture(t)
	f.provider.session = sessionFor("user-1", "a@example.com")
	f.profiles.profiles["user-1"] = &profile.UserProfile{ID: "user-1", Email: "a@example.com", Role: "viewer"}
	f.manager.Initialize(context.Background())
	require.Equal(t, "viewer", f.manager.CurrentUser().Role)

	f.profiles.mu.Lock()
	f.profiles.profiles["user-1"] = &profile.UserProfile{ID: "user-1", Email: "a@example.com", Role: "admin"}
	f.profiles.mu.Unlock()

	f.provider.push(domain.EventUserUpdated, sessionFor("user-1", "a@example.com"))

	require.Eventually(t, func() bool {
		u := f.manager.CurrentUser()
		return u != nil && u.Role == "admin"
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, sessionsvc.StateAuthenticated, f.manager.State())
}

func TestUserSwitchDropsStaleProfile(t *testing.T) {
	f := newFixture(t)
	f.provider.session = sessionFor("user-1", "a@example.com")
	f.profiles.profiles["user-1"] = &profile.UserProfile{ID: "user-1", Email: "a@example.com", Role: "admin"}
	f.profiles.profiles["user-2"] = &profile.UserProfile{ID: "user-2", Email: "b@example.com", Role: "viewer"}
	f.manager.Initialize(context.Background())

	f.provider.push(domain.EventSignedIn, sessionFor("user-2", "b@example.com"))

	require.Eventually(t, func() bool {
		u := f.manager.CurrentUser()
		return u != nil && u.ID == "user-2"
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "viewer", f.manager.CurrentUser().Role)
}

func TestEventsHandledInOrder(t *testing.T) {
	f := newFixture(t)
	f.manager.Initialize(context.Background())

	f.provider.push(domain.EventSignedIn, sessionFor("user-1", "a@example.com"))
	f.provider.push(domain.EventSignedOut, nil)

	waitForState(t, f.manager, sessionsvc.StateUnauthenticated)
	require.Nil(t, f.manager.CurrentSession())
}

func TestTeardownIdempotent(t *testing.T) {
	f := newFixture(t)
	f.manager.Initialize(context.Background())

	f.manager.Teardown()
	f.manager.Teardown()
}
