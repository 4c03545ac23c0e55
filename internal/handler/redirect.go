package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/abdusco/linkhub/internal"
	"github.com/abdusco/linkhub/internal/metrics"
	"github.com/abdusco/linkhub/internal/redirect"
	"github.com/abdusco/linkhub/internal/render"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// BioGateway loads a bio page with its links. It returns
// internal.ErrBioPageNotFound when nothing matches.
type BioGateway interface {
	LookupBioPage(ctx context.Context, host, slug string) (*internal.BioPage, error)
}

type RedirectHandler struct {
	resolver *redirect.Resolver
	bios     BioGateway
}

func NewRedirectHandler(resolver *redirect.Resolver, bios BioGateway) *RedirectHandler {
	return &RedirectHandler{resolver: resolver, bios: bios}
}

// Serve handles every path not claimed by another route.
func (h *RedirectHandler) Serve(c echo.Context) error {
	route := redirect.Classify(redirect.SplitPath(c.Request().URL.EscapedPath()))

	switch route.Kind {
	case redirect.RouteBioPage:
		return h.serveBioPage(c, route.Slug)
	case redirect.RouteShortLink:
		return h.serveShortLink(c, route)
	default:
		return echo.ErrNotFound
	}
}

// Landing answers the bare host so the default landing URL has a target.
func (h *RedirectHandler) Landing(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", map[string]string{
		"Host": redirect.NormalizeHost(c.Request().Host),
	})
}

func (h *RedirectHandler) serveShortLink(c echo.Context, route redirect.Route) error {
	req := c.Request()

	result := h.resolver.Resolve(req.Context(), redirect.Request{
		Host:      req.Host,
		Slug:      route.Slug,
		Param:     route.Param,
		IP:        redirect.ClientIP(req),
		UserAgent: req.UserAgent(),
		Referer:   req.Referer(),
	})

	switch result.Outcome {
	case redirect.OutcomeInterstitial:
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		return c.Render(http.StatusOK, render.InterstitialTemplate, render.NewInterstitialView(result.Location, *result.Tracking))
	default:
		return c.Redirect(http.StatusFound, result.Location)
	}
}

func (h *RedirectHandler) serveBioPage(c echo.Context, slug string) error {
	ctx := c.Request().Context()
	host := redirect.NormalizeHost(c.Request().Host)

	page, err := h.bios.LookupBioPage(ctx, host, slug)
	if err != nil {
		if !errors.Is(err, internal.ErrBioPageNotFound) {
			log.Error().Err(err).Str("host", host).Str("slug", slug).Msg("failed to look up bio page")
			metrics.RecordBioPage("error")
		} else {
			metrics.RecordBioPage("not_found")
		}
		return c.String(http.StatusNotFound, "Page not found")
	}

	metrics.RecordBioPage("ok")
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=60")
	return c.Render(http.StatusOK, render.BioTemplate, render.NewBioView(page))
}
