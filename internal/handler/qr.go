package handler

import (
	"net/http"
	"strconv"

	"github.com/abdusco/linkhub/internal"
	"github.com/abdusco/linkhub/internal/qr"
	"github.com/abdusco/linkhub/internal/repo"
	"github.com/labstack/echo/v4"
)

type QrHandler struct {
	linksRepo *repo.LinksRepo
}

func NewQrHandler(linksRepo *repo.LinksRepo) *QrHandler {
	return &QrHandler{linksRepo: linksRepo}
}

type QrSettingRequest struct {
	FgColor string `json:"fg_color" validate:"omitempty,hexcolor"`
	BgColor string `json:"bg_color" validate:"omitempty,hexcolor"`
	Size    int    `json:"size" validate:"omitempty,min=64,max=2048"`
}

// Image renders the QR code of a link's public URL. A size query parameter
// overrides the stored size.
func (h *QrHandler) Image(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "linkId")
	if err != nil {
		return err
	}

	link, err := h.linksRepo.GetByID(ctx, id)
	if err != nil {
		return httpError(err, "failed to fetch link")
	}

	settings, err := h.linksRepo.GetQrSetting(ctx, id)
	if err != nil {
		return httpError(err, "failed to fetch qr settings")
	}
	if raw := c.QueryParam("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid size")
		}
		settings.Size = size
	}

	png, err := qr.PNG(qr.ShortURL(link.Host, link.Slug), settings)
	if err != nil {
		return httpError(err, "failed to render qr code")
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *QrHandler) GetSettings(c echo.Context) error {
	id, err := paramID(c, "linkId")
	if err != nil {
		return err
	}

	settings, err := h.linksRepo.GetQrSetting(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "failed to fetch qr settings")
	}
	return c.JSON(http.StatusOK, qr.MergeSettings(settings))
}

func (h *QrHandler) SaveSettings(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "linkId")
	if err != nil {
		return err
	}

	var req QrSettingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if _, err := h.linksRepo.GetByID(ctx, id); err != nil {
		return httpError(err, "failed to fetch link")
	}

	settings := internal.QrSetting{
		ShortLinkID: id,
		FgColor:     req.FgColor,
		BgColor:     req.BgColor,
		Size:        req.Size,
	}
	if err := h.linksRepo.UpsertQrSetting(ctx, settings); err != nil {
		return httpError(err, "failed to save qr settings")
	}
	return c.JSON(http.StatusOK, qr.MergeSettings(settings))
}
