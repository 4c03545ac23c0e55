package handler

import (
	"net/http"
	"strconv"

	"github.com/abdusco/linkhub/internal"
	"github.com/abdusco/linkhub/internal/repo"
	"github.com/labstack/echo/v4"
)

const analyticsLimit = 5000

type ClickHandler struct {
	clicksRepo *repo.ClicksRepo
}

func NewClickHandler(clicksRepo *repo.ClicksRepo) *ClickHandler {
	return &ClickHandler{clicksRepo: clicksRepo}
}

type ClickStatsResponse struct {
	Stats []internal.ClickStats `json:"stats"`
}

type AnalyticsResponse struct {
	Clicks []internal.ClickEntry `json:"clicks"`
}

// Stats returns total and unique click counts, for one link when link_id is
// given and for every clicked link otherwise.
func (h *ClickHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	if raw := c.QueryParam("link_id"); raw != "" {
		linkID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid link_id")
		}
		stats, err := h.clicksRepo.Stats(ctx, linkID)
		if err != nil {
			return httpError(err, "failed to compute click stats")
		}
		return c.JSON(http.StatusOK, ClickStatsResponse{Stats: []internal.ClickStats{stats}})
	}

	stats, err := h.clicksRepo.StatsAll(ctx)
	if err != nil {
		return httpError(err, "failed to compute click stats")
	}
	return c.JSON(http.StatusOK, ClickStatsResponse{Stats: stats})
}

func (h *ClickHandler) Analytics(c echo.Context) error {
	clicks, err := h.clicksRepo.Recent(c.Request().Context(), analyticsLimit)
	if err != nil {
		return httpError(err, "failed to list clicks")
	}
	return c.JSON(http.StatusOK, AnalyticsResponse{Clicks: clicks})
}
