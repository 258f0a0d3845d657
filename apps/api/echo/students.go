package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/student"
	"github.com/pblportal/registry/services/spreadsheet"
)

type (
	ImportResponse struct {
		Success    bool                `json:"success"`
		Count      int                 `json:"count"`
		Duplicates int                 `json:"duplicates"`
		Message    string              `json:"message"`
		FailedRows []student.FailedRow `json:"failedRows"`
	}

	PlaceholdersResponse struct {
		Placeholders []student.Placeholder `json:"placeholders"`
		FailedRows   []student.FailedRow   `json:"failedRows"`
	}
)

func (s *Server) registerStudentAPI(g *echo.Group) {
	g.GET("/students", s.queryStudents, adminMiddleware)
	g.POST("/students/import", s.importStudents, adminMiddleware)
	g.GET("/students/:studentId", s.getStudent)
	g.PATCH("/students/:studentId", s.updateStudent)

	sg := g.Group("/schools/:code/students", schoolMiddleware)
	sg.GET("", s.querySchoolStudents)
	sg.POST("", s.createStudent)
	sg.POST("/import", s.importSchoolStudents)
	sg.POST("/upload", s.uploadSchoolStudents)
	sg.POST("/placeholders", s.validatePlaceholders)
}

func (s *Server) queryStudents(ctx echo.Context) error {
	students, err := s.deps.StudentSvc.Query(ctx.Request().Context(), "")
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (s *Server) querySchoolStudents(ctx echo.Context) error {
	students, err := s.deps.StudentSvc.Query(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

// contextStudent fetches the student of the path, hidden from other schools.
func (s *Server) contextStudent(ctx echo.Context) (student.Student, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return student.Student{}, err
	}
	stud, err := s.deps.StudentSvc.Get(ctx.Request().Context(), ctx.Param("studentId"))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	if !canAccessSchool(claims, stud.SchoolCode) {
		return student.Student{}, student.ErrNotFound
	}
	return stud, nil
}

func (s *Server) getStudent(ctx echo.Context) error {
	stud, err := s.contextStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stud)
}

func (s *Server) updateStudent(ctx echo.Context) error {
	stud, err := s.contextStudent(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	stud, err = s.deps.StudentSvc.Update(ctx.Request().Context(), stud.StudentID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, stud)
}

func (s *Server) createStudent(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	data.SchoolCode = ctx.Param("code")
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	stud, err := s.deps.StudentSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, stud)
}

// importStudents enrols a batch spanning several schools; each row names its school.
func (s *Server) importStudents(ctx echo.Context) error {
	var values []map[string]interface{}
	if err := bindList(ctx, &values); err != nil {
		return err
	}
	return s.runImport(ctx, rawRows(values, ""))
}

// importSchoolStudents enrols a batch of one school. School code columns are ignored.
func (s *Server) importSchoolStudents(ctx echo.Context) error {
	var values []map[string]interface{}
	if err := bindList(ctx, &values); err != nil {
		return err
	}
	for _, v := range values {
		dropSchoolCode(v)
	}
	return s.runImport(ctx, rawRows(values, ctx.Param("code")))
}

func (s *Server) uploadSchoolStudents(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return errMissingFile
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded spreadsheet")
	}
	defer func() { _ = f.Close() }()

	rows, err := spreadsheet.ReadStudents(f, core.CleanString(ctx.Param("code")))
	if err != nil {
		return err
	}
	for _, row := range rows {
		dropSchoolCode(row.Values)
	}
	return s.runImport(ctx, rows)
}

func (s *Server) runImport(ctx echo.Context, rows []student.RawRow) error {
	res, err := s.deps.StudentSvc.Import(ctx.Request().Context(), rows)
	if err != nil && err != student.ErrNothingImported {
		return errors.Wrap(err, "importing students")
	}

	resp := ImportResponse{
		Success:    err == nil,
		Count:      res.Count,
		Duplicates: res.Duplicates,
		Message:    res.Message(),
		FailedRows: res.FailedRows,
	}
	if resp.FailedRows == nil {
		resp.FailedRows = []student.FailedRow{}
	}
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, resp)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (s *Server) validatePlaceholders(ctx echo.Context) error {
	var rows []student.Placeholder
	if err := bindList(ctx, &rows); err != nil {
		return err
	}
	valid, failed := s.deps.StudentSvc.Placeholders(ctx.Param("code"), rows)
	return ctx.JSON(http.StatusOK, PlaceholdersResponse{Placeholders: valid, FailedRows: failed})
}

func rawRows(values []map[string]interface{}, schoolCode string) []student.RawRow {
	rows := make([]student.RawRow, 0, len(values))
	for i, v := range values {
		rows = append(rows, student.RawRow{Line: i + 1, Values: v, SchoolCode: core.CleanString(schoolCode)})
	}
	return rows
}

func dropSchoolCode(values map[string]interface{}) {
	for h := range values {
		if student.MatchHeader(h) == student.FieldSchoolCode {
			delete(values, h)
		}
	}
}
