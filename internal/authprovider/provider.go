// internal/authprovider/provider.go
package authprovider

import (
	"context"

	"ruleboard-service/internal/domain/session"
)

type SignOutScope string

const (
	// ScopeLocal signs out the current client only.
	ScopeLocal SignOutScope = "local"
	// ScopeGlobal revokes every session for the user.
	ScopeGlobal SignOutScope = "global"
)

// Callback receives auth state changes. A nil session means signed out.
type Callback func(event session.Event, s *session.Session)

// Subscription handles detaching from the provider's push channel.
// Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Provider is the auth backend contract. It is injected into the session
// manager so a test double can stand in for the hosted service.
type Provider interface {
	// GetSession returns the current session, or nil when signed out.
	// It does not block past the context deadline.
	GetSession(ctx context.Context) (*session.Session, error)

	// OnAuthStateChange registers a callback for sign-in, sign-out and
	// token refresh events.
	OnAuthStateChange(cb Callback) Subscription

	// SignOut ends the session with the given scope. Best effort.
	SignOut(ctx context.Context, scope SignOutScope) error
}
