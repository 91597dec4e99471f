package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rendiconto/config"
	"rendiconto/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[uint]*models.User

func (s stubUsers) Get(_ context.Context, id uint) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func initJWTTestConfig() {
	InitJWT(&config.Config{
		JWT: config.JWTConfig{Secret: "test-jwt-secret-key", ExpireTime: time.Hour},
	})
}

func testUsers() stubUsers {
	return stubUsers{
		42: {ID: 42, Role: models.RoleAdministrator, IsActive: true},
		43: {ID: 43, Role: models.RoleGuardian, IsActive: true},
		50: {ID: 50, Role: models.RoleAdministrator, IsActive: false},
	}
}

func doRequest(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorReason(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestGenerateToken(t *testing.T) {
	initJWTTestConfig()

	token, err := IssueToken(1, models.RoleAdministrator)
	require.NoError(t, err)
	assert.Greater(t, len(token), 20)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(1), claims.UserID)
	assert.Equal(t, models.RoleAdministrator, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParseToken(t *testing.T) {
	initJWTTestConfig()

	_, err := ParseToken("")
	assert.ErrorIs(t, err, ErrTokenMalformed)
	_, err = ParseToken("not.a.valid.jwt")
	assert.ErrorIs(t, err, ErrTokenMalformed)
	_, err = ParseToken("eyJhbGciOiJmb29iIn0.xxxx.yyyy")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	// signed with another secret
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1}).SignedString([]byte("altro"))
	require.NoError(t, err)
	_, err = ParseToken(foreign)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	expired, err := GenerateToken(1, "", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTAuth(t *testing.T) {
	initJWTTestConfig()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(JWTAuth(testUsers()))
	router.GET("/protected", func(c *gin.Context) {
		c.String(200, "id:%d role:%s", GetCurrentUserID(c), GetCurrentUserRole(c))
	})

	w := doRequest(router, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ReasonMissingCredential, errorReason(t, w))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Basic xyz")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, "/protected", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ReasonInvalidCredential, errorReason(t, w))

	inactive, _ := IssueToken(50, models.RoleAdministrator)
	w = doRequest(router, "/protected", inactive)
	assert.Equal(t, ReasonUnknownOrInactiveSubject, errorReason(t, w))

	unknown, _ := IssueToken(99, models.RoleAdministrator)
	w = doRequest(router, "/protected", unknown)
	assert.Equal(t, ReasonUnknownOrInactiveSubject, errorReason(t, w))

	token, _ := IssueToken(42, models.RoleAdministrator)
	w = doRequest(router, "/protected", token)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "id:42 role:amministratore", w.Body.String())
}

func TestJWTAuth_ExpiredThenFresh(t *testing.T) {
	initJWTTestConfig()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(JWTAuth(testUsers()))
	router.GET("/protected", func(c *gin.Context) { c.Status(200) })

	expired, err := GenerateToken(42, models.RoleAdministrator, -time.Second)
	require.NoError(t, err)
	w := doRequest(router, "/protected", expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ReasonExpiredCredential, errorReason(t, w))

	fresh, err := IssueToken(42, models.RoleAdministrator)
	require.NoError(t, err)
	w = doRequest(router, "/protected", fresh)
	assert.Equal(t, 200, w.Code)
}

func TestOptionalJWTAuth(t *testing.T) {
	initJWTTestConfig()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(OptionalJWTAuth(testUsers()))
	router.GET("/health", func(c *gin.Context) {
		c.String(200, "id:%d", GetCurrentUserID(c))
	})

	w := doRequest(router, "/health", "")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "id:0", w.Body.String())

	w = doRequest(router, "/health", "garbage")
	assert.Equal(t, "id:0", w.Body.String())

	token, _ := IssueToken(43, models.RoleGuardian)
	w = doRequest(router, "/health", token)
	assert.Equal(t, "id:43", w.Body.String())
}

func TestRequireRoleAndOwnership(t *testing.T) {
	initJWTTestConfig()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/users/:userId/rendiconti",
		JWTAuth(testUsers()),
		RequireRole(models.RoleAdministrator),
		RequireOwnership("userId"),
		func(c *gin.Context) { c.Status(200) })

	admin, _ := IssueToken(42, models.RoleAdministrator)
	guardian, _ := IssueToken(43, models.RoleGuardian)

	w := doRequest(router, "/users/42/rendiconti", admin)
	assert.Equal(t, 200, w.Code)

	w = doRequest(router, "/users/43/rendiconti", admin)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, ReasonNotOwner, errorReason(t, w))

	w = doRequest(router, "/users/abc/rendiconti", admin)
	assert.Equal(t, ReasonNotOwner, errorReason(t, w))

	w = doRequest(router, "/users/43/rendiconti", guardian)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, ReasonRoleNotPermitted, errorReason(t, w))
}

func TestGetCurrentUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uint(0), GetCurrentUserID(c))
	assert.Equal(t, "", GetCurrentUserRole(c))

	c.Set(ContextUserID, uint(99))
	c.Set(ContextUserRole, models.RoleGuardian)
	assert.Equal(t, uint(99), GetCurrentUserID(c))
	assert.Equal(t, models.RoleGuardian, GetCurrentUserRole(c))
}
