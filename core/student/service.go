package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("student")
	ErrNothingImported = errors.New("no students were imported")
)

type (
	Repository interface {
		// CreateStudents inserts all students or none of them.
		CreateStudents(ctx context.Context, students []Student) ([]Student, error)
		GetStudent(ctx context.Context, studentID string) (Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		// QueryStudents lists students with the name of their registered school, most recent first.
		QueryStudents(ctx context.Context, filter Filter) ([]Student, error)
		StudentIDsWithPrefix(ctx context.Context, prefix string) ([]string, error)
	}

	// SchoolChecker tells whether a school code belongs to a registered school.
	SchoolChecker interface {
		IsRegistered(ctx context.Context, schoolCode string) (bool, error)
	}

	Service struct {
		repo     Repository
		schools  SchoolChecker
		recorder *audit.Recorder
		validate *validator.Validate
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, schools SchoolChecker, recorder *audit.Recorder, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		schools:  schools,
		recorder: recorder,
		validate: validate,
		nowFunc:  time.Now,
	}
}

func (svc *Service) checkRegistered(ctx context.Context, code string) error {
	ok, err := svc.schools.IsRegistered(ctx, code)
	if err != nil {
		return errors.Wrap(err, "checking school")
	}
	if !ok {
		return core.NewPreconditionError(notRegisteredMsg, code)
	}
	return nil
}

// Create enrols one student of a registered school with the next ID of its grade.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := svc.checkRegistered(ctx, ns.SchoolCode); err != nil {
		return Student{}, err
	}

	grade := Grade(ns.Grade)
	prefix := IDPrefix(ns.SchoolCode, grade)
	ids, err := svc.repo.StudentIDsWithPrefix(ctx, prefix)
	if err != nil {
		return Student{}, errors.Wrap(err, "getting student ids")
	}

	now := svc.nowFunc().UTC()
	stud := Student{
		StudentID:   FormatID(ns.SchoolCode, grade, NextSequence(ids, prefix)),
		SchoolCode:  ns.SchoolCode,
		StudentName: ns.StudentName,
		FatherName:  ns.FatherName,
		Gender:      ns.Gender,
		DateOfBirth: core.DateOnly(ns.DateOfBirth.Time),
		Grade:       grade,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := svc.repo.CreateStudents(ctx, []Student{stud})
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}
	stud = created[0]

	svc.recorder.Log(ctx, audit.StudentCreated, audit.ResourceStudent, stud.StudentID, nil, stud, "")
	return stud, nil
}

func (svc *Service) Get(ctx context.Context, studentID string) (Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanString(studentID))
}

// Query lists every student, or the students of one school when schoolCode is set.
func (svc *Service) Query(ctx context.Context, schoolCode string) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, Filter{SchoolCode: core.CleanString(schoolCode)})
}

func (svc *Service) Update(ctx context.Context, studentID string, us UpdateStudent) (Student, error) {
	old, err := svc.Get(ctx, studentID)
	if err != nil {
		return Student{}, err
	}

	stud := old
	us.applyTo(&stud)
	stud.UpdatedAt = svc.nowFunc().UTC()
	if stud, err = svc.repo.UpdateStudent(ctx, stud); err != nil {
		return Student{}, errors.Wrap(err, "updating student")
	}
	svc.recorder.Log(ctx, audit.StudentUpdated, audit.ResourceStudent, stud.StudentID, old, stud, "")
	return stud, nil
}

// Placeholders validates anonymous candidates of a school. Nothing is persisted.
func (svc *Service) Placeholders(schoolCode string, rows []Placeholder) ([]Placeholder, []FailedRow) {
	valid := make([]Placeholder, 0, len(rows))
	failed := make([]FailedRow, 0)
	for i, p := range rows {
		p.SchoolCode = core.CleanString(schoolCode)
		if err := p.Validate(svc.validate); err != nil {
			failed = append(failed, FailedRow{Row: i + 1, Error: errorText(err)})
			continue
		}
		if p.Level == "" {
			p.Level = Grade(p.Grade).Level()
		}
		valid = append(valid, p)
	}
	return valid, failed
}
