package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/abdusco/linkhub/internal"
	"github.com/abdusco/linkhub/internal/repo"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// LinkInvalidator drops cached lookups after a link changes.
type LinkInvalidator interface {
	Invalidate(ctx context.Context, host, slug string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, string, string) {}

type LinkHandler struct {
	linksRepo *repo.LinksRepo
	cache     LinkInvalidator
}

func NewLinkHandler(linksRepo *repo.LinksRepo, cache LinkInvalidator) *LinkHandler {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &LinkHandler{
		linksRepo: linksRepo,
		cache:     cache,
	}
}

type CreateLinkRequest struct {
	DomainID  int64        `json:"domain_id" validate:"required,gt=0"`
	Slug      string       `json:"slug" validate:"max=100,slug"`
	Name      string       `json:"name" validate:"max=200"`
	TargetURL string       `json:"target_url" validate:"required,http_url"`
	IsActive  *bool        `json:"is_active"`
	AppendUTM bool         `json:"append_utm"`
	UTM       internal.UTM `json:"utm"`
	PixelID   string       `json:"pixel_id"`
	GTMID     string       `json:"gtm_id"`
	GAID      string       `json:"ga_id"`
}

type UpdateLinkRequest struct {
	Slug      *string       `json:"slug" validate:"omitempty,min=1,max=100,slug"`
	Name      *string       `json:"name" validate:"omitempty,max=200"`
	TargetURL *string       `json:"target_url" validate:"omitempty,http_url"`
	IsActive  *bool         `json:"is_active"`
	UseABTest *bool         `json:"use_ab_test"`
	AppendUTM *bool         `json:"append_utm"`
	UTM       *internal.UTM `json:"utm"`
	PixelID   *string       `json:"pixel_id"`
	GTMID     *string       `json:"gtm_id"`
	GAID      *string       `json:"ga_id"`
}

type TargetRequest struct {
	TargetURL string `json:"target_url" validate:"required,http_url"`
	Weight    *int   `json:"weight" validate:"omitempty,gt=0"`
	Name      string `json:"name"`
}

type UpdateTargetRequest struct {
	TargetURL *string `json:"target_url" validate:"omitempty,http_url"`
	Weight    *int    `json:"weight" validate:"omitempty,gt=0"`
	Name      *string `json:"name"`
	IsActive  *bool   `json:"is_active"`
}

type UtmRuleRequest struct {
	ParamPattern string       `json:"param_pattern" validate:"required,max=200"`
	UTM          internal.UTM `json:"utm"`
}

type ListLinksResponse struct {
	Links []*internal.ShortLink `json:"links"`
}

func (h *LinkHandler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if req.Slug == "" {
		req.Slug = repo.GenerateSlug()
	}

	link, err := h.linksRepo.Create(ctx, &internal.ShortLink{
		DomainID:  req.DomainID,
		Slug:      req.Slug,
		Name:      req.Name,
		TargetURL: req.TargetURL,
		IsActive:  lo.FromPtrOr(req.IsActive, true),
		AppendUTM: req.AppendUTM,
		UTM:       req.UTM,
		PixelID:   req.PixelID,
		GTMID:     req.GTMID,
		GAID:      req.GAID,
	})
	if err != nil {
		return httpError(err, "failed to create link")
	}

	return c.JSON(http.StatusCreated, link)
}

func (h *LinkHandler) ListLinks(c echo.Context) error {
	ctx := c.Request().Context()

	var domainID int64
	if raw := c.QueryParam("domain_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid domain_id")
		}
		domainID = id
	}

	links, err := h.linksRepo.List(ctx, domainID)
	if err != nil {
		return httpError(err, "failed to list links")
	}
	return c.JSON(http.StatusOK, ListLinksResponse{Links: links})
}

func (h *LinkHandler) GetLink(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	link, err := h.linksRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "failed to fetch link")
	}
	return c.JSON(http.StatusOK, link)
}

func (h *LinkHandler) UpdateLink(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	before, err := h.linksRepo.GetByID(ctx, id)
	if err != nil {
		return httpError(err, "failed to fetch link")
	}

	link, err := h.linksRepo.Update(ctx, id, repo.LinkUpdate{
		Slug:      req.Slug,
		Name:      req.Name,
		TargetURL: req.TargetURL,
		IsActive:  req.IsActive,
		UseABTest: req.UseABTest,
		AppendUTM: req.AppendUTM,
		UTM:       req.UTM,
		PixelID:   req.PixelID,
		GTMID:     req.GTMID,
		GAID:      req.GAID,
	})
	if err != nil {
		return httpError(err, "failed to update link")
	}

	h.cache.Invalidate(ctx, before.Host, before.Slug)
	log.Info().Int64("id", id).Msg("link updated")
	return c.JSON(http.StatusOK, link)
}

func (h *LinkHandler) DeleteLink(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	link, err := h.linksRepo.GetByID(ctx, id)
	if err != nil {
		return httpError(err, "failed to fetch link")
	}

	if err := h.linksRepo.Delete(ctx, id); err != nil {
		return httpError(err, "failed to delete link")
	}

	h.cache.Invalidate(ctx, link.Host, link.Slug)
	return c.NoContent(http.StatusNoContent)
}

func (h *LinkHandler) ListTargets(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	targets, err := h.linksRepo.ListTargets(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "failed to list targets")
	}
	return c.JSON(http.StatusOK, targets)
}

// CreateTarget adds a split-test target. The link switches to A/B mode.
func (h *LinkHandler) CreateTarget(c echo.Context) error {
	ctx := c.Request().Context()
	link, err := h.link(c)
	if err != nil {
		return err
	}

	var req TargetRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	target, err := h.linksRepo.CreateTarget(ctx, internal.LinkTarget{
		ShortLinkID: link.ID,
		TargetURL:   req.TargetURL,
		Weight:      lo.FromPtrOr(req.Weight, 1),
		Name:        req.Name,
	})
	if err != nil {
		return httpError(err, "failed to create target")
	}

	h.cache.Invalidate(ctx, link.Host, link.Slug)
	return c.JSON(http.StatusCreated, target)
}

func (h *LinkHandler) UpdateTarget(c echo.Context) error {
	ctx := c.Request().Context()
	link, err := h.link(c)
	if err != nil {
		return err
	}
	targetID, err := paramID(c, "targetId")
	if err != nil {
		return err
	}

	var req UpdateTargetRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	target, err := h.linksRepo.UpdateTarget(ctx, link.ID, targetID, repo.TargetUpdate{
		TargetURL: req.TargetURL,
		Weight:    req.Weight,
		Name:      req.Name,
		IsActive:  req.IsActive,
	})
	if err != nil {
		return httpError(err, "failed to update target")
	}

	h.cache.Invalidate(ctx, link.Host, link.Slug)
	return c.JSON(http.StatusOK, target)
}

func (h *LinkHandler) DeleteTarget(c echo.Context) error {
	ctx := c.Request().Context()
	link, err := h.link(c)
	if err != nil {
		return err
	}
	targetID, err := paramID(c, "targetId")
	if err != nil {
		return err
	}

	if err := h.linksRepo.DeleteTarget(ctx, link.ID, targetID); err != nil {
		return httpError(err, "failed to delete target")
	}

	h.cache.Invalidate(ctx, link.Host, link.Slug)
	return c.NoContent(http.StatusNoContent)
}

func (h *LinkHandler) ListRules(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	rules, err := h.linksRepo.ListRules(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "failed to list utm rules")
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *LinkHandler) CreateRule(c echo.Context) error {
	ctx := c.Request().Context()
	link, err := h.link(c)
	if err != nil {
		return err
	}

	var req UtmRuleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	rule, err := h.linksRepo.CreateRule(ctx, internal.ParamUtmRule{
		ShortLinkID:  link.ID,
		ParamPattern: req.ParamPattern,
		UTM:          req.UTM,
	})
	if err != nil {
		return httpError(err, "failed to create utm rule")
	}

	h.cache.Invalidate(ctx, link.Host, link.Slug)
	return c.JSON(http.StatusCreated, rule)
}

func (h *LinkHandler) DeleteRule(c echo.Context) error {
	ctx := c.Request().Context()
	link, err := h.link(c)
	if err != nil {
		return err
	}
	ruleID, err := paramID(c, "ruleId")
	if err != nil {
		return err
	}

	if err := h.linksRepo.DeleteRule(ctx, link.ID, ruleID); err != nil {
		return httpError(err, "failed to delete utm rule")
	}

	h.cache.Invalidate(ctx, link.Host, link.Slug)
	return c.NoContent(http.StatusNoContent)
}

// link loads the link named by the :id path parameter.
func (h *LinkHandler) link(c echo.Context) (*internal.ShortLink, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	link, err := h.linksRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err, "failed to fetch link")
	}
	return link, nil
}
