package handler

import (
	"net/http"

	"github.com/abdusco/linkhub/internal"
	"github.com/abdusco/linkhub/internal/repo"
	"github.com/labstack/echo/v4"
)

type BioHandler struct {
	bioRepo *repo.BioRepo
}

func NewBioHandler(bioRepo *repo.BioRepo) *BioHandler {
	return &BioHandler{bioRepo: bioRepo}
}

type CreateBioRequest struct {
	DomainID int64             `json:"domain_id" validate:"required,gt=0"`
	Slug     string            `json:"slug" validate:"required,max=100,slug"`
	Title    string            `json:"title" validate:"max=200"`
	Bio      string            `json:"bio" validate:"max=2000"`
	LogoURL  string            `json:"logo_url" validate:"omitempty,http_url|len=0"`
	Theme    internal.BioTheme `json:"theme"`
}

type UpdateBioRequest struct {
	Slug    *string            `json:"slug" validate:"omitempty,min=1,max=100,slug"`
	Title   *string            `json:"title" validate:"omitempty,max=200"`
	Bio     *string            `json:"bio" validate:"omitempty,max=2000"`
	LogoURL *string            `json:"logo_url" validate:"omitempty,http_url|len=0"`
	Theme   *internal.BioTheme `json:"theme"`
}

type BioLinkRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	URL   string `json:"url" validate:"required,url"`
	Icon  string `json:"icon" validate:"max=50"`
}

type UpdateBioLinkRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	URL      *string `json:"url" validate:"omitempty,url"`
	Icon     *string `json:"icon" validate:"omitempty,max=50"`
	IsActive *bool   `json:"is_active"`
}

type ReorderRequest struct {
	LinkIDs []int64 `json:"link_ids" validate:"required,dive,gt=0"`
}

func (h *BioHandler) ListPages(c echo.Context) error {
	pages, err := h.bioRepo.List(c.Request().Context())
	if err != nil {
		return httpError(err, "failed to list bio pages")
	}
	return c.JSON(http.StatusOK, pages)
}

func (h *BioHandler) GetPage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	page, err := h.bioRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "failed to fetch bio page")
	}
	return c.JSON(http.StatusOK, page)
}

func (h *BioHandler) CreatePage(c echo.Context) error {
	var req CreateBioRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	page, err := h.bioRepo.Create(c.Request().Context(), &internal.BioPage{
		DomainID: req.DomainID,
		Slug:     req.Slug,
		Title:    req.Title,
		Bio:      req.Bio,
		LogoURL:  req.LogoURL,
		Theme:    req.Theme,
	})
	if err != nil {
		return httpError(err, "failed to create bio page")
	}
	return c.JSON(http.StatusCreated, page)
}

func (h *BioHandler) UpdatePage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateBioRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	page, err := h.bioRepo.Update(c.Request().Context(), id, repo.BioUpdate{
		Slug:    req.Slug,
		Title:   req.Title,
		Bio:     req.Bio,
		LogoURL: req.LogoURL,
		Theme:   req.Theme,
	})
	if err != nil {
		return httpError(err, "failed to update bio page")
	}
	return c.JSON(http.StatusOK, page)
}

func (h *BioHandler) DeletePage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.bioRepo.Delete(c.Request().Context(), id); err != nil {
		return httpError(err, "failed to delete bio page")
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateLink appends a link to the end of the page.
func (h *BioHandler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req BioLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if _, err := h.bioRepo.GetByID(ctx, id); err != nil {
		return httpError(err, "failed to fetch bio page")
	}

	link, err := h.bioRepo.CreateLink(ctx, internal.BioLink{
		BioPageID: id,
		Title:     req.Title,
		URL:       req.URL,
		Icon:      req.Icon,
	})
	if err != nil {
		return httpError(err, "failed to create bio link")
	}
	return c.JSON(http.StatusCreated, link)
}

func (h *BioHandler) UpdateLink(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	linkID, err := paramID(c, "linkId")
	if err != nil {
		return err
	}

	var req UpdateBioLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	link, err := h.bioRepo.UpdateLink(c.Request().Context(), id, linkID, repo.BioLinkUpdate{
		Title:    req.Title,
		URL:      req.URL,
		Icon:     req.Icon,
		IsActive: req.IsActive,
	})
	if err != nil {
		return httpError(err, "failed to update bio link")
	}
	return c.JSON(http.StatusOK, link)
}

func (h *BioHandler) DeleteLink(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	linkID, err := paramID(c, "linkId")
	if err != nil {
		return err
	}

	if err := h.bioRepo.DeleteLink(c.Request().Context(), id, linkID); err != nil {
		return httpError(err, "failed to delete bio link")
	}
	return c.NoContent(http.StatusNoContent)
}

// ReorderLinks sets the display order to the order of link_ids.
func (h *BioHandler) ReorderLinks(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req ReorderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.bioRepo.Reorder(ctx, id, req.LinkIDs); err != nil {
		return httpError(err, "failed to reorder bio links")
	}

	page, err := h.bioRepo.GetByID(ctx, id)
	if err != nil {
		return httpError(err, "failed to fetch bio page")
	}
	return c.JSON(http.StatusOK, page)
}
