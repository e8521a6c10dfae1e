// internal/authprovider/hosted.go
package authprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ruleboard-service/internal/domain/session"
	xerrors "ruleboard-service/internal/pkg/errors"
	"ruleboard-service/internal/pkg/jwt"
	"ruleboard-service/internal/storage"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// HostedProvider talks to the hosted auth backend. The token bundle lives
// in client-side key-value storage under storage.TokenKey; identity
// fields are decoded from the access token with the project JWT secret.
type HostedProvider struct {
	authURL  string
	http     *http.Client
	verifier *jwt.Verifier
	tokens   storage.KeyValue
	logger   *zap.Logger

	mu     sync.Mutex
	subs   map[int64]Callback
	nextID int64
}

func NewHosted(authURL string, verifier *jwt.Verifier, tokens storage.KeyValue, logger *zap.Logger) *HostedProvider {
	return &HostedProvider{
		authURL:  authURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		verifier: verifier,
		tokens:   tokens,
		logger:   logger,
		subs:     make(map[int64]Callback),
	}
}

// GetSession resolves the persisted token bundle into a session. A
// missing bundle resolves to (nil, nil): signed out, not an error. An
// expired access token is refreshed through the backend when a refresh
// token is available. A still-valid bundle emits INITIAL_SESSION, the
// hydration counterpart of the sign-in event.
func (p *HostedProvider) GetSession(ctx context.Context) (*session.Session, error) {
	data, ok, err := p.tokens.Get(ctx, storage.TokenKey)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to read token bundle")
	}
	if !ok {
		return nil, nil
	}

	var bundle session.TokenBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode token bundle: %w", err)
	}

	sess, err := p.sessionFromBundle(bundle)
	if err == nil && !sess.Expired() {
		p.emit(session.EventInitialSession, sess)
		return sess, nil
	}
	if err == nil || xerrors.Is(err, jwtlib.ErrTokenExpired) {
		err = xerrors.ErrSessionExpired
	}

	if bundle.RefreshToken == "" {
		return nil, fmt.Errorf("cannot restore session without refresh token: %w", err)
	}

	return p.refresh(ctx, bundle)
}

// PersistSession validates and stores a token bundle handed over by the
// sign-in flow, then notifies subscribers.
func (p *HostedProvider) PersistSession(ctx context.Context, bundle session.TokenBundle) (*session.Session, error) {
	sess, err := p.sessionFromBundle(bundle)
	if err != nil {
		return nil, fmt.Errorf("rejecting token bundle: %w", err)
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token bundle: %w", err)
	}
	if err := p.tokens.Set(ctx, storage.TokenKey, data); err != nil {
		return nil, fmt.Errorf("failed to persist token bundle: %w", err)
	}

	p.emit(session.EventSignedIn, sess)
	return sess, nil
}

// SignOut drops the local bundle, notifies the backend best-effort and
// pushes a signed-out event. A failed backend call is logged, not
// returned: local state is already clean at that point.
func (p *HostedProvider) SignOut(ctx context.Context, scope SignOutScope) error {
	data, ok, _ := p.tokens.Get(ctx, storage.TokenKey)

	if err := p.tokens.Del(ctx, storage.TokenKey); err != nil {
		p.logger.Warn("failed to drop local token bundle", zap.Error(err))
	}

	if ok {
		var bundle session.TokenBundle
		if err := json.Unmarshal(data, &bundle); err == nil {
			if err := p.revoke(ctx, bundle.AccessToken, scope); err != nil {
				p.logger.Warn("backend sign-out failed",
					zap.String("scope", string(scope)),
					zap.Error(err),
				)
			}
		}
	}

	p.emit(session.EventSignedOut, nil)
	return nil
}

func (p *HostedProvider) OnAuthStateChange(cb Callback) Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.subs[id] = cb

	return &providerSub{provider: p, id: id}
}

type providerSub struct {
	provider *HostedProvider
	id       int64
	once     sync.Once
}

func (s *providerSub) Unsubscribe() {
	s.once.Do(func() {
		s.provider.mu.Lock()
		defer s.provider.mu.Unlock()
		delete(s.provider.subs, s.id)
	})
}

func (p *HostedProvider) emit(event session.Event, sess *session.Session) {
	p.mu.Lock()
	callbacks := make([]Callback, 0, len(p.subs))
	for _, cb := range p.subs {
		callbacks = append(callbacks, cb)
	}
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(event, sess)
	}
}

func (p *HostedProvider) sessionFromBundle(bundle session.TokenBundle) (*session.Session, error) {
	claims, err := p.verifier.Verify(bundle.AccessToken)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		UserID:       claims.Subject,
		Email:        claims.Email,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}

	return sess, nil
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (p *HostedProvider) refresh(ctx context.Context, bundle session.TokenBundle) (*session.Session, error) {
	body, _ := json.Marshal(map[string]string{"refresh_token": bundle.RefreshToken})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.authURL+"/token?grant_type=refresh_token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token refresh rejected with status %d", resp.StatusCode)
	}

	var refreshed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	newBundle := session.TokenBundle{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
	}
	if newBundle.RefreshToken == "" {
		newBundle.RefreshToken = bundle.RefreshToken
	}

	sess, err := p.sessionFromBundle(newBundle)
	if err != nil {
		return nil, fmt.Errorf("refreshed token is invalid: %w", err)
	}

	data, err := json.Marshal(newBundle)
	if err != nil {
		return nil, fmt.Errorf("failed to encode refreshed bundle: %w", err)
	}
	if err := p.tokens.Set(ctx, storage.TokenKey, data); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed bundle: %w", err)
	}

	p.emit(session.EventTokenRefreshed, sess)
	return sess, nil
}

func (p *HostedProvider) revoke(ctx context.Context, accessToken string, scope SignOutScope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.authURL+"/logout?scope="+string(scope), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("logout rejected with status %d", resp.StatusCode)
	}
	return nil
}
