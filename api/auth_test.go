package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key"

func signedToken(t *testing.T, key string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": "analyst@example.com",
		"role":  "analyst",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestParseAccessToken(t *testing.T) {
	m := &ApiHandler{JwtSigningKey: testSigningKey}

	t.Run("happy path", func(t *testing.T) {
		claims, err := m.parseAccessToken(signedToken(t, testSigningKey))
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, "analyst@example.com", claims.Email)
		require.Equal(t, "analyst", claims.Role)
	})

	t.Run("rejects a token signed with another key", func(t *testing.T) {
		_, err := m.parseAccessToken(signedToken(t, "other-key"))
		require.Error(t, err)
	})

	t.Run("rejects an unsigned token", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "user-1",
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.parseAccessToken(unsigned)
		require.Error(t, err)
	})
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := &ApiHandler{JwtSigningKey: testSigningKey}

	router := gin.New()
	router.GET("/protected", m.authMiddleware, func(ctx *gin.Context) {
		claims := ctx.MustGet("claims").(*AccessClaims)
		ctx.JSON(200, gin.H{"subject": claims.Subject})
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, 401, w.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		router.ServeHTTP(w, req)
		require.Equal(t, 401, w.Code)
	})

	t.Run("valid token reaches the handler", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, testSigningKey))
		router.ServeHTTP(w, req)
		require.Equal(t, 200, w.Code)
		require.Contains(t, w.Body.String(), "user-1")
	})
}
