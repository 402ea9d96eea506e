package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(m *Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Middleware())
	r.POST("/login/:addr", func(c *gin.Context) {
		SetWallet(c, c.Param("addr"))
		AddFlash(c, "success", "connected")
		c.Status(http.StatusNoContent)
	})
	r.POST("/logout", func(c *gin.Context) {
		c.String(http.StatusOK, ClearWallet(c))
	})
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"wallet": Wallet(c), "flashes": Flashes(c)})
	})
	return r
}

func do(t *testing.T, r http.Handler, method, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", CookieName)
	return nil
}

func TestMiddlewareSetsCookie(t *testing.T) {
	m := NewManager(time.Hour, false)
	w := do(t, setupRouter(m), http.MethodGet, "/whoami", nil)

	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Len(t, cookie.Value, 36)
	assert.Equal(t, 1, m.Len())
}

func TestWalletPersistsAcrossRequests(t *testing.T) {
	m := NewManager(time.Hour, false)
	r := setupRouter(m)

	login := do(t, r, http.MethodPost, "/login/alice", nil)
	require.Equal(t, http.StatusNoContent, login.Code)
	cookie := sessionCookie(t, login)

	w := do(t, r, http.MethodGet, "/whoami", cookie)
	assert.JSONEq(t, `{"wallet":"alice","flashes":[{"category":"success","message":"connected"}]}`, w.Body.String())
	assert.Empty(t, w.Result().Cookies())

	// Flashes are consumed by the first read.
	w = do(t, r, http.MethodGet, "/whoami", cookie)
	assert.JSONEq(t, `{"wallet":"alice","flashes":null}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/logout", cookie)
	assert.Equal(t, "alice", w.Body.String())

	w = do(t, r, http.MethodGet, "/whoami", cookie)
	assert.JSONEq(t, `{"wallet":"","flashes":null}`, w.Body.String())
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(time.Hour, false)
	r := setupRouter(m)

	alice := sessionCookie(t, do(t, r, http.MethodPost, "/login/alice", nil))
	bob := sessionCookie(t, do(t, r, http.MethodPost, "/login/bob", nil))
	assert.NotEqual(t, alice.Value, bob.Value)

	w := do(t, r, http.MethodGet, "/whoami", bob)
	assert.Contains(t, w.Body.String(), `"wallet":"bob"`)
}

func TestUnknownCookieGetsFreshSession(t *testing.T) {
	m := NewManager(time.Hour, false)
	r := setupRouter(m)

	w := do(t, r, http.MethodGet, "/whoami", &http.Cookie{Name: CookieName, Value: "forged"})
	assert.NotEqual(t, "forged", sessionCookie(t, w).Value)
	assert.JSONEq(t, `{"wallet":"","flashes":null}`, w.Body.String())
}

func TestIdleSessionExpires(t *testing.T) {
	m := NewManager(time.Minute, true)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	r := setupRouter(m)

	cookie := sessionCookie(t, do(t, r, http.MethodPost, "/login/alice", nil))
	assert.True(t, cookie.Secure)

	now = now.Add(2 * time.Minute)
	w := do(t, r, http.MethodGet, "/whoami", cookie)
	assert.NotEqual(t, cookie.Value, sessionCookie(t, w).Value)
	assert.JSONEq(t, `{"wallet":"","flashes":null}`, w.Body.String())
	assert.Equal(t, 1, m.Len())
}

func TestHelpersWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Equal(t, "", Wallet(c))
	SetWallet(c, "alice")
	AddFlash(c, "error", "x")
	assert.Nil(t, Flashes(c))
	assert.Equal(t, "", ClearWallet(c))
}
