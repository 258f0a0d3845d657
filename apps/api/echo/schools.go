package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core/fees"
	"github.com/pblportal/registry/core/registration"
)

func (s *Server) registerSchoolAPI(g *echo.Group) {
	g.GET("/schools", s.querySchools, adminMiddleware)

	sg := g.Group("/schools/:code", schoolMiddleware)
	sg.GET("", s.getSchool)
	sg.PATCH("", s.updateSchool)
	sg.DELETE("", s.deleteSchool, adminMiddleware)
	sg.PATCH("/toggle", s.toggleSchool, adminMiddleware)
	sg.POST("/complete", s.completeRegistration, adminMiddleware)
	sg.GET("/credentials", s.getCredentials, adminMiddleware)
	sg.GET("/pdf", s.exportSchoolPDF)

	sg.GET("/resources", s.getResources)
	sg.PATCH("/resources", s.updateResources)
	sg.GET("/fees", s.getFees)
	sg.PATCH("/fees", s.updateFees)

	sg.GET("/student-fees", s.getStudentFees)
	sg.POST("/student-fees", s.createStudentFees)
	sg.PATCH("/student-fees", s.updateStudentFees)
}

func (s *Server) querySchools(ctx echo.Context) error {
	schools, err := s.deps.RegistrationSvc.QuerySchools(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (s *Server) getSchool(ctx echo.Context) error {
	school, err := s.deps.RegistrationSvc.GetSchool(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	return ctx.JSON(http.StatusOK, school)
}

func (s *Server) updateSchool(ctx echo.Context) error {
	var data registration.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	school, err := s.deps.RegistrationSvc.UpdateSchool(ctx.Request().Context(), ctx.Param("code"), data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, school)
}

func (s *Server) deleteSchool(ctx echo.Context) error {
	if err := s.deps.RegistrationSvc.DeleteSchool(ctx.Request().Context(), ctx.Param("code")); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) toggleSchool(ctx echo.Context) error {
	school, err := s.deps.RegistrationSvc.ToggleSchool(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "toggling school")
	}
	return ctx.JSON(http.StatusOK, school)
}

func (s *Server) completeRegistration(ctx echo.Context) error {
	school, err := s.deps.RegistrationSvc.Complete(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "completing registration")
	}
	return ctx.JSON(http.StatusOK, school)
}

func (s *Server) getCredentials(ctx echo.Context) error {
	creds, err := s.deps.RegistrationSvc.GetCredentials(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting credentials")
	}
	return ctx.JSON(http.StatusOK, creds)
}

// exportSchoolPDF renders the registration form; resources and fees are optional.
func (s *Server) exportSchoolPDF(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	code := ctx.Param("code")
	svc := s.deps.RegistrationSvc

	school, err := svc.GetSchool(reqCtx, code)
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	var (
		res *registration.Resources
		f   *registration.Fees
	)
	if r, err := svc.GetResources(reqCtx, code); err == nil {
		res = &r
	} else if errors.Cause(err) != registration.ErrResourcesNotFound {
		return errors.Wrap(err, "getting resources")
	}
	if fs, err := svc.GetFees(reqCtx, code); err == nil {
		f = &fs
	} else if errors.Cause(err) != registration.ErrFeesNotFound {
		return errors.Wrap(err, "getting fees")
	}

	var buf bytes.Buffer
	if err = s.deps.PDF.RenderRegistration(&buf, school, res, f); err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", "registration-"+school.SchoolCode+".pdf"))
	return ctx.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

func (s *Server) getResources(ctx echo.Context) error {
	res, err := s.deps.RegistrationSvc.GetResources(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting resources")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (s *Server) updateResources(ctx echo.Context) error {
	var data registration.ResourcesInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResourcesInput")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	res, err := s.deps.RegistrationSvc.UpdateResources(ctx.Request().Context(), ctx.Param("code"), data)
	if err != nil {
		return errors.Wrap(err, "updating resources")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (s *Server) getFees(ctx echo.Context) error {
	f, err := s.deps.RegistrationSvc.GetFees(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting fees")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (s *Server) updateFees(ctx echo.Context) error {
	var data registration.FeesInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeesInput")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	f, err := s.deps.RegistrationSvc.UpdateFees(ctx.Request().Context(), ctx.Param("code"), data)
	if err != nil {
		return errors.Wrap(err, "updating fees")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (s *Server) getStudentFees(ctx echo.Context) error {
	sf, err := s.deps.FeesSvc.Get(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting student fees")
	}
	return ctx.JSON(http.StatusOK, sf)
}

func (s *Server) createStudentFees(ctx echo.Context) error {
	var data fees.StudentFeesInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentFeesInput")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	sf, err := s.deps.FeesSvc.Create(ctx.Request().Context(), ctx.Param("code"), data)
	if err != nil {
		return errors.Wrap(err, "saving student fees")
	}
	return ctx.JSON(http.StatusCreated, sf)
}

func (s *Server) updateStudentFees(ctx echo.Context) error {
	var data fees.StudentFeesInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentFeesInput")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	sf, err := s.deps.FeesSvc.Update(ctx.Request().Context(), ctx.Param("code"), data)
	if err != nil {
		return errors.Wrap(err, "updating student fees")
	}
	return ctx.JSON(http.StatusOK, sf)
}
