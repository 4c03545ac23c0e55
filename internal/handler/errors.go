package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/abdusco/linkhub/internal"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// httpError maps repository errors to API responses.
func httpError(err error, msg string) error {
	switch {
	case errors.Is(err, internal.ErrLinkNotFound),
		errors.Is(err, internal.ErrBioPageNotFound),
		errors.Is(err, internal.ErrDomainNotFound),
		errors.Is(err, internal.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, internal.ErrSlugExists),
		errors.Is(err, internal.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	log.Error().Err(err).Msg(msg)
	return echo.NewHTTPError(http.StatusInternalServerError, msg).SetInternal(err)
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// bindAndValidate decodes the request body into req and runs the struct
// validator over it.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	return c.Validate(req)
}
