// internal/middleware/auth_middleware_test.go
package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ruleboard-service/internal/middleware"
	xjwt "ruleboard-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-project-secret"

func signToken(t *testing.T, subject string) string {
	t.Helper()
	claims := xjwt.Claims{
		Email: subject + "@example.com",
		Role:  "analyst",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type identity struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	AccessToken   string `json:"access_token"`
	Authenticated bool   `json:"authenticated"`
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := xjwt.NewVerifier(xjwt.Config{Secret: testSecret})
	authMW := middleware.NewAuthMiddleware(verifier)

	r := gin.New()
	r.GET("/whoami", authMW.Auth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, identity{
			UserID:        middleware.MustGetUserID(c),
			Email:         middleware.GetEmail(c),
			AccessToken:   middleware.GetAccessToken(c),
			Authenticated: middleware.IsAuthenticated(c),
		})
	})
	return r
}

func TestAuthSetsIdentityContext(t *testing.T) {
	r := newRouter()
	token := signToken(t, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var id identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &id))
	require.Equal(t, "user-1", id.UserID)
	require.Equal(t, "user-1@example.com", id.Email)
	require.Equal(t, token, id.AccessToken)
	require.True(t, id.Authenticated)
}

func TestAuthQueryTokenFallback(t *testing.T) {
	r := newRouter()
	token := signToken(t, "user-2")

	// WebSocket clients cannot set headers; the token rides the query
	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var id identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &id))
	require.Equal(t, "user-2", id.UserID)
}

func TestAuthMissingToken(t *testing.T) {
	r := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthInvalidToken(t *testing.T) {
	r := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
