package handler

import (
	"net/http"

	"github.com/abdusco/linkhub/internal/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct {
	authenticator *auth.Authenticator
}

func NewAuthHandler(authenticator *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authenticator: authenticator}
}

type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// Login handles POST /login - checks the shared password and sets the session cookie
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	cookie, err := h.authenticator.Authenticate(req.Password)
	if err != nil {
		log.Warn().Str("ip", c.RealIP()).Msg("failed login attempt")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	}
	cookie.Secure = c.IsTLS()
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Logout handles GET /logout - clears the session cookie and redirects to /
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(auth.ExpireCookie())
	return c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) Check(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{
		"authenticated": h.authenticator.IsAuthenticated(c.Request()),
	})
}
