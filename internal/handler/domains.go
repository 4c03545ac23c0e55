package handler

import (
	"net/http"

	"github.com/abdusco/linkhub/internal/repo"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type DomainHandler struct {
	domainsRepo *repo.DomainsRepo
	linksRepo   *repo.LinksRepo
	cache       LinkInvalidator
}

func NewDomainHandler(domainsRepo *repo.DomainsRepo, linksRepo *repo.LinksRepo, cache LinkInvalidator) *DomainHandler {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &DomainHandler{
		domainsRepo: domainsRepo,
		linksRepo:   linksRepo,
		cache:       cache,
	}
}

type CreateDomainRequest struct {
	Domain string `json:"domain" validate:"required,hostname_port|hostname|fqdn"`
	Name   string `json:"name" validate:"max=200"`
}

func (h *DomainHandler) ListDomains(c echo.Context) error {
	domains, err := h.domainsRepo.List(c.Request().Context())
	if err != nil {
		return httpError(err, "failed to list domains")
	}
	return c.JSON(http.StatusOK, domains)
}

func (h *DomainHandler) CreateDomain(c echo.Context) error {
	var req CreateDomainRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	domain, err := h.domainsRepo.Create(c.Request().Context(), req.Domain, req.Name)
	if err != nil {
		return httpError(err, "failed to create domain")
	}
	return c.JSON(http.StatusCreated, domain)
}

// DeleteDomain removes the domain and, through the schema, all of its links
// and bio pages. Cached lookups of the removed links are dropped afterwards.
func (h *DomainHandler) DeleteDomain(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	links, err := h.linksRepo.List(ctx, id)
	if err != nil {
		return httpError(err, "failed to list domain links")
	}

	if err := h.domainsRepo.Delete(ctx, id); err != nil {
		return httpError(err, "failed to delete domain")
	}

	for _, link := range links {
		h.cache.Invalidate(ctx, link.Host, link.Slug)
	}
	log.Info().Int64("id", id).Int("links", len(links)).Msg("domain links invalidated")
	return c.NoContent(http.StatusNoContent)
}
