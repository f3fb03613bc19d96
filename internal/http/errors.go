package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/fyrsmithlabs/questd/pkg/auth"
)

const (
	msgInternal    = "internal server error"
	msgUnavailable = "AI service is currently unavailable."
)

// httpError maps an error from the store, planner or auth layers to the
// response it should produce. Errors already carrying a status pass
// through.
func httpError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, apiv1.ErrInvalidArgument):
		return echo.NewHTTPError(http.StatusBadRequest, detail(err, apiv1.ErrInvalidArgument))
	case errors.Is(err, apiv1.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, detail(err, apiv1.ErrNotFound))
	case errors.Is(err, apiv1.ErrConflict):
		return echo.NewHTTPError(http.StatusBadRequest, detail(err, apiv1.ErrConflict))
	case errors.Is(err, apiv1.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, detail(err, apiv1.ErrUnauthorized))
	case errors.Is(err, apiv1.ErrServiceMisconfigured):
		return echo.NewHTTPError(http.StatusInternalServerError, detail(err, apiv1.ErrServiceMisconfigured))
	case errors.Is(err, apiv1.ErrUpstreamUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, msgUnavailable).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternal).SetInternal(err)
	}
}

// detail strips the sentinel prefix so clients see only the specific
// message, e.g. "mission m-1" rather than "not found: mission m-1".
func detail(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

// handleError is the echo error handler.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := httpError(err)
	switch {
	case he.Code == http.StatusUnauthorized:
		auth.Challenge(c.Response().Header())
	case he.Code >= http.StatusInternalServerError:
		s.logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", he.Code),
			zap.Error(err),
		)
	}

	s.echo.DefaultHTTPErrorHandler(he, c)
}
