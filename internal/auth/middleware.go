package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

var ErrUnauthorized = errors.New("unauthorized")

// Authenticator guards the admin surface with a single shared password.
// A successful login is remembered in a signed cookie.
type Authenticator struct {
	password  string
	jwtSecret string
	now       func() time.Time
}

func NewAuthenticator(password, jwtSecret string) *Authenticator {
	return &Authenticator{password: password, jwtSecret: jwtSecret, now: time.Now}
}

// Authenticate checks the password and returns a session cookie.
func (a *Authenticator) Authenticate(password string) (*http.Cookie, error) {
	if !a.checkPassword(password) {
		return nil, ErrUnauthorized
	}
	return a.generateCookie()
}

// IsAuthenticated reports whether the request carries a valid session
// cookie or the shared password over basic auth.
func (a *Authenticator) IsAuthenticated(r *http.Request) bool {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		if _, err := parseToken(cookie.Value, a.jwtSecret); err == nil {
			return true
		}
	}
	if _, password, ok := r.BasicAuth(); ok {
		return a.checkPassword(password)
	}
	return false
}

func (a *Authenticator) checkPassword(password string) bool {
	if a.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.password), []byte(password)) == 1
}

func (a *Authenticator) generateCookie() (*http.Cookie, error) {
	token, err := signToken(adminSubject, a.jwtSecret, a.now())
	if err != nil {
		return nil, err
	}

	cookie := &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tokenExpiry.Seconds()),
	}
	return cookie, nil
}

func NewAuthMiddleware(auther *Authenticator) echo.MiddlewareFunc {
	type authStrategy func(c echo.Context) (bool, error)
	strategies := []authStrategy{
		auther.authWithCookie,
		auther.authWithBasicAuth,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, strategy := range strategies {
				ok, err := strategy(c)
				if err != nil {
					continue
				}

				if ok {
					return next(c)
				}
			}
			return echo.ErrUnauthorized
		}
	}
}

func (a *Authenticator) authWithCookie(c echo.Context) (bool, error) {
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie == nil || cookie.Value == "" {
		return false, nil
	}

	if _, err := parseToken(cookie.Value, a.jwtSecret); err != nil {
		return false, nil
	}

	refreshed, err := a.generateCookie()
	if err != nil {
		return false, fmt.Errorf("failed to generate cookie: %w", err)
	}
	refreshed.Secure = c.IsTLS()
	c.SetCookie(refreshed)

	return true, nil
}

func (a *Authenticator) authWithBasicAuth(c echo.Context) (bool, error) {
	_, password, ok := c.Request().BasicAuth()
	if !ok {
		return false, nil
	}

	cookie, err := a.Authenticate(password)
	if err != nil {
		return false, err
	}
	cookie.Secure = c.IsTLS()
	c.SetCookie(cookie)

	return true, nil
}

func ExpireCookie() *http.Cookie {
	return &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	}
}
