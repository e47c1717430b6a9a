package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/missionforge/server/cache"
	"github.com/missionforge/server/config"
	mw "github.com/missionforge/server/middleware"
	"github.com/missionforge/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractJSONField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &m))
	v, _ := m[field].(string)
	return v
}

var testSecurity = config.SecurityConfig{
	JWTSecret: "test-secret",
	JWTTTL:    time.Hour,
}

func newAuthRouter(t *testing.T) (*gin.Engine, cache.Cache) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c := testutil.SetupTestCache(t)
	h := NewAuthHandler(c, testSecurity)
	r := gin.New()
	r.POST("/api/auth/session", h.CreateSession)
	r.POST("/api/auth/revoke", h.RevokeSession)
	return r, c
}

func TestCreateSession_IssuesUsableToken(t *testing.T) {
	r, c := newAuthRouter(t)

	body := `{"steam_id": "76561198000000001", "name": "alice", "flags": ["@vip"]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	token := extractJSONField(t, w.Body.Bytes(), "token")
	require.NotEmpty(t, token)

	claims, err := mw.ParseToken(token, testSecurity.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, uint64(76561198000000001), claims.SteamID)
	assert.Equal(t, "alice", claims.Name)
	assert.Equal(t, []string{"@vip"}, claims.Flags)

	got, err := c.Get(context.Background(), "session:"+token)
	require.NoError(t, err)
	assert.Equal(t, "76561198000000001", got)
}

func TestCreateSession_RejectsBadBody(t *testing.T) {
	r, _ := newAuthRouter(t)

	for _, body := range []string{
		`{}`,
		`{"steam_id": "x", "name": "alice"}`,
		`{"steam_id": "1"}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
	}
}

func TestRevokeSession(t *testing.T) {
	r, c := newAuthRouter(t)
	require.NoError(t, c.Set(context.Background(), "session:tok123", "1", 0))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/revoke", nil)
	req.Header.Set("Authorization", "Bearer tok123")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	_, err := c.Get(context.Background(), "session:tok123")
	assert.Error(t, err, "revoked session must be gone")
}

func TestRevokeSession_MissingToken(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/revoke", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	do := func(key string, header string) int {
		r := gin.New()
		r.Use(AdminAuth(key))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("X-Admin-Key", header)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, do("", "anything"), "empty key disables admin routes")
	assert.Equal(t, http.StatusUnauthorized, do("secret", ""))
	assert.Equal(t, http.StatusUnauthorized, do("secret", "wrong"))
	assert.Equal(t, http.StatusOK, do("secret", "secret"))
}
