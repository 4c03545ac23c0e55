package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseToken(t *testing.T) {
	token, err := signToken(adminSubject, "secret", time.Now())
	require.NoError(t, err)

	claims, err := parseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, adminSubject, claims.Subject)

	_, err = parseToken(token, "other")
	assert.Error(t, err)

	expired, err := signToken(adminSubject, "secret", time.Now().Add(-2*tokenExpiry))
	require.NoError(t, err)
	_, err = parseToken(expired, "secret")
	assert.Error(t, err)
}

func TestAuthenticator_Authenticate(t *testing.T) {
	a := NewAuthenticator("hunter2", "secret")

	_, err := a.Authenticate("wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	cookie, err := a.Authenticate("hunter2")
	require.NoError(t, err)
	assert.Equal(t, cookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
}

func TestAuthenticator_EmptyPasswordNeverMatches(t *testing.T) {
	a := NewAuthenticator("", "secret")
	_, err := a.Authenticate("")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticator_IsAuthenticated(t *testing.T) {
	a := NewAuthenticator("hunter2", "secret")
	cookie, err := a.Authenticate("hunter2")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, a.IsAuthenticated(req))

	req.AddCookie(cookie)
	assert.True(t, a.IsAuthenticated(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("anyone", "hunter2")
	assert.True(t, a.IsAuthenticated(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "garbage"})
	assert.False(t, a.IsAuthenticated(req))
}

func TestAuthMiddleware(t *testing.T) {
	a := NewAuthenticator("hunter2", "secret")
	e := echo.New()
	e.GET("/api/links", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, NewAuthMiddleware(a))

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	t.Run("anonymous", func(t *testing.T) {
		rec := serve(httptest.NewRequest(http.MethodGet, "/api/links", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
		req.SetBasicAuth("admin", "nope")
		rec := serve(req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("basic auth sets a cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
		req.SetBasicAuth("admin", "hunter2")
		rec := serve(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Set-Cookie"), cookieName+"=")
	})

	t.Run("cookie", func(t *testing.T) {
		cookie, err := a.Authenticate("hunter2")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
		req.AddCookie(cookie)
		rec := serve(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("forged cookie", func(t *testing.T) {
		forged, err := signToken(adminSubject, "not-the-secret", time.Now())
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
		req.AddCookie(&http.Cookie{Name: cookieName, Value: forged})
		rec := serve(req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestExpireCookie(t *testing.T) {
	cookie := ExpireCookie()
	assert.Equal(t, cookieName, cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}
