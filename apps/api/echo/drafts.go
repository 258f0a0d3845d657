package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core/registration"
)

func (s *Server) registerDraftAPI(g *echo.Group) {
	g.POST("/school", s.saveDraftSchool)
	g.GET("/schools", s.queryDraftSchools)
	g.GET("/school/:code", s.getDraftSchool)
	g.DELETE("/school/:code", s.deleteDraftSchool)
	g.POST("/resources", s.saveDraftResources)
	g.GET("/resources/:code", s.getDraftResources)
	g.POST("/fees", s.saveDraftFees)
	g.GET("/fees/:code", s.getDraftFees)
}

func (s *Server) saveDraftSchool(ctx echo.Context) error {
	var data registration.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	school, err := s.deps.RegistrationSvc.SaveDraftSchool(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving draft school")
	}
	return ctx.JSON(http.StatusOK, school)
}

func (s *Server) queryDraftSchools(ctx echo.Context) error {
	schools, err := s.deps.RegistrationSvc.QueryDraftSchools(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying draft schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (s *Server) getDraftSchool(ctx echo.Context) error {
	school, err := s.deps.RegistrationSvc.GetDraftSchool(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting draft school")
	}
	return ctx.JSON(http.StatusOK, school)
}

func (s *Server) deleteDraftSchool(ctx echo.Context) error {
	if err := s.deps.RegistrationSvc.DeleteDraftSchool(ctx.Request().Context(), ctx.Param("code")); err != nil {
		return errors.Wrap(err, "deleting draft school")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) saveDraftResources(ctx echo.Context) error {
	var data registration.NewResources
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResources")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	res, err := s.deps.RegistrationSvc.SaveDraftResources(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving draft resources")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (s *Server) getDraftResources(ctx echo.Context) error {
	res, err := s.deps.RegistrationSvc.GetDraftResources(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting draft resources")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (s *Server) saveDraftFees(ctx echo.Context) error {
	var data registration.NewFees
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFees")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	f, err := s.deps.RegistrationSvc.SaveDraftFees(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving draft fees")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (s *Server) getDraftFees(ctx echo.Context) error {
	f, err := s.deps.RegistrationSvc.GetDraftFees(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting draft fees")
	}
	return ctx.JSON(http.StatusOK, f)
}
