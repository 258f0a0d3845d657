package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
)

func (s *Server) queryAuditLogs(ctx echo.Context) error {
	filter := audit.Filter{
		Action:   ctx.QueryParam("action"),
		UserID:   ctx.QueryParam("userId"),
		Resource: ctx.QueryParam("resource"),
	}
	if limit := ctx.QueryParam("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Path: "limit", Message: "limit must be a number"})
		}
		filter.Limit = n
	}
	if err := filter.Validate(s.deps.Validate); err != nil {
		return err
	}

	entries, err := s.deps.Recorder.Query(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entries)
}
