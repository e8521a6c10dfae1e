// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"ruleboard-service/internal/authprovider"
	domain "ruleboard-service/internal/domain/session"
	"ruleboard-service/internal/middleware"
	xerrors "ruleboard-service/internal/pkg/errors"
	"ruleboard-service/internal/pkg/jwt"
	"ruleboard-service/internal/pkg/response"
	sessionsvc "ruleboard-service/internal/service/session"
	"ruleboard-service/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler bridges the hosted-auth session core to the dashboard UI.
// Each user's token bundle lives in a scoped slice of the durable store;
// the volatile store mirrors it for the lifetime of the process.
type AuthHandler struct {
	durable  storage.KeyValue
	volatile storage.KeyValue
	profiles sessionsvc.ProfileStore
	verifier *jwt.Verifier
	authURL  string
	logger   *zap.Logger
}

func NewAuthHandler(durable, volatile storage.KeyValue, profiles sessionsvc.ProfileStore, verifier *jwt.Verifier, authURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		durable:  durable,
		volatile: volatile,
		profiles: profiles,
		verifier: verifier,
		authURL:  authURL,
		logger:   logger,
	}
}

// providerFor builds the hosted provider over the user's storage slice.
func (h *AuthHandler) providerFor(userID string) *authprovider.HostedProvider {
	scoped := storage.Scoped(h.durable, "user:"+userID+":")
	return authprovider.NewHosted(h.authURL, h.verifier, scoped, h.logger)
}

type persistSessionRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token"`
}

// PersistSession accepts the token bundle handed back by the hosted
// sign-in flow and stores it for this user. Must run before /me or /ws
// can hydrate a session.
func (h *AuthHandler) PersistSession(c *gin.Context) {
	var req persistSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid session payload", err)
		return
	}

	claims, err := h.verifier.Verify(req.AccessToken)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "invalid access token", err)
		return
	}

	bundle := domain.TokenBundle{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	}

	sess, err := h.providerFor(claims.Subject).PersistSession(c.Request.Context(), bundle)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to persist session", err)
		return
	}

	// Volatile mirror, swept alongside the durable copy on sign-out.
	if data, _, err := storage.Scoped(h.durable, "user:"+claims.Subject+":").Get(c.Request.Context(), storage.TokenKey); err == nil {
		scoped := storage.Scoped(h.volatile, "user:"+claims.Subject+":")
		if err := scoped.Set(c.Request.Context(), storage.TokenKey, data); err != nil {
			h.logger.Warn("failed to mirror token bundle", zap.Error(err))
		}
	}

	response.Success(c, http.StatusOK, "session persisted", gin.H{
		"user_id":    sess.UserID,
		"email":      sess.Email,
		"expires_at": sess.ExpiresAt,
	})
}

// GetMe hydrates a request-scoped session manager and returns the
// resolved profile. Profile-store failures degrade to the fallback
// profile inside the manager, so this only 401s when no session exists.
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	mgr := sessionsvc.NewManager(h.providerFor(userID), h.profiles, h.logger)
	mgr.Initialize(c.Request.Context())
	defer mgr.Teardown()

	if mgr.State() != sessionsvc.StateAuthenticated {
		response.Unauthorized(c, "no active session")
		return
	}

	response.Success(c, http.StatusOK, "profile retrieved", mgr.CurrentUser())
}

// Logout sweeps every locally persisted credential first, then tells the
// provider. Cleanup runs even if the provider call would fail, so no
// stale token survives.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	scope := authprovider.SignOutScope(c.DefaultQuery("scope", string(authprovider.ScopeLocal)))
	if scope != authprovider.ScopeLocal && scope != authprovider.ScopeGlobal {
		response.Error(c, http.StatusBadRequest, "invalid sign-out scope", xerrors.ErrInvalidInput)
		return
	}

	storage.CleanupCredentials(c.Request.Context(), h.logger,
		storage.Scoped(h.volatile, "user:"+userID+":"),
		storage.Scoped(h.durable, "user:"+userID+":"),
	)

	if err := h.providerFor(userID).SignOut(c.Request.Context(), scope); err != nil {
		h.logger.Warn("provider sign-out failed", zap.Error(err))
	}

	response.Success(c, http.StatusOK, "signed out", nil)
}
