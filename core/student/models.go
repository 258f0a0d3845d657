package student

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/pblportal/registry/core"
)

type Student struct {
	StudentID   string      `json:"studentId" db:"student_id" boil:"student_id"`
	SchoolCode  string      `json:"schoolCode" db:"school_code" boil:"school_code"`
	SchoolName  null.String `json:"schoolName" db:"school_name" boil:"school_name"` // read side only, null once the school is deleted
	StudentName string      `json:"studentName" db:"student_name" boil:"student_name"`
	FatherName  string      `json:"fatherName" db:"father_name" boil:"father_name"`
	Gender      string      `json:"gender" db:"gender" boil:"gender"`
	DateOfBirth time.Time   `json:"dateOfBirth" db:"date_of_birth" boil:"date_of_birth"`
	Grade       Grade       `json:"grade" db:"grade" boil:"grade"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at" boil:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at" boil:"updated_at"`
}

// duplicateKey identifies a student within a school regardless of case and surrounding spaces.
type duplicateKey struct {
	studentName string
	fatherName  string
	dateOfBirth string
}

func keyOf(studentName, fatherName string, dob time.Time) duplicateKey {
	return duplicateKey{
		studentName: core.CleanString(studentName, true /* lower */),
		fatherName:  core.CleanString(fatherName, true /* lower */),
		dateOfBirth: dob.UTC().Format("2006-01-02"),
	}
}

// IDPrefix is the common prefix of the IDs of a school's students in a grade.
func IDPrefix(schoolCode string, grade Grade) string {
	return schoolCode + "-" + grade.Code() + "-"
}

// FormatID builds a student ID: {schoolCode}-{gradeCode}-{seq}, seq zero-padded to 2 digits.
func FormatID(schoolCode string, grade Grade, seq int) string {
	return fmt.Sprintf("%s%02d", IDPrefix(schoolCode, grade), seq)
}

// NextSequence returns the highest numeric suffix among the ids starting with prefix, plus one.
func NextSequence(ids []string, prefix string) int {
	max := 0
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(id, prefix)); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

// NewStudent contains the information needed to enrol a student.
type NewStudent struct {
	SchoolCode  string        `json:"schoolCode" validate:"required,schoolcode"`
	StudentName string        `json:"studentName" validate:"required,max=255"`
	FatherName  string        `json:"fatherName" validate:"required,max=255"`
	Gender      string        `json:"gender" validate:"required,gender"`
	DateOfBirth core.FlexTime `json:"dateOfBirth"`
	Grade       string        `json:"grade" validate:"required,grade"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.SchoolCode = core.CleanString(ns.SchoolCode)
	ns.StudentName = core.CleanString(ns.StudentName)
	ns.FatherName = core.CleanString(ns.FatherName)
	if g, ok := ParseGender(ns.Gender); ok {
		ns.Gender = g
	}
	if g, ok := ParseGrade(ns.Grade); ok {
		ns.Grade = string(g)
	}

	extra := ns.DateOfBirth.FieldErrors("dateOfBirth")
	if !ns.DateOfBirth.Valid && !ns.DateOfBirth.Invalid {
		extra = append(extra, core.FieldError{Path: "dateOfBirth", Message: "this field is required"})
	}
	return core.CheckStruct(validate, ns, extra...)
}

// UpdateStudent defines what may be changed on a student. The student ID never changes.
type UpdateStudent struct {
	StudentName *string       `json:"studentName" validate:"omitempty,max=255"`
	FatherName  *string       `json:"fatherName" validate:"omitempty,max=255"`
	Gender      *string       `json:"gender" validate:"omitempty,gender"`
	DateOfBirth core.FlexTime `json:"dateOfBirth"`
	Grade       *string       `json:"grade" validate:"omitempty,grade"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	if us.Gender != nil {
		if g, ok := ParseGender(*us.Gender); ok {
			us.Gender = &g
		}
	}
	if us.Grade != nil {
		if g, ok := ParseGrade(*us.Grade); ok {
			s := string(g)
			us.Grade = &s
		}
	}

	extra := us.DateOfBirth.FieldErrors("dateOfBirth")
	if us.DateOfBirth.Set && !us.DateOfBirth.Valid && !us.DateOfBirth.Invalid {
		extra = append(extra, core.FieldError{Path: "dateOfBirth", Message: "this field is required"})
	}
	return core.CheckStruct(validate, us, extra...)
}

func (us UpdateStudent) applyTo(s *Student) {
	if name := core.CleanStringPtr(us.StudentName); name != nil && *name != "" {
		s.StudentName = *name
	}
	if name := core.CleanStringPtr(us.FatherName); name != nil && *name != "" {
		s.FatherName = *name
	}
	if us.Gender != nil && *us.Gender != "" {
		s.Gender = *us.Gender
	}
	if us.DateOfBirth.Valid {
		s.DateOfBirth = core.DateOnly(us.DateOfBirth.Time)
	}
	if us.Grade != nil && *us.Grade != "" {
		s.Grade = Grade(*us.Grade)
	}
}

// Placeholder is an anonymous candidate, counted per grade before the student list is known.
type Placeholder struct {
	SchoolCode string `json:"schoolCode" validate:"required,schoolcode"`
	Grade      string `json:"grade" validate:"required,grade"`
	Level      string `json:"level" validate:"omitempty,oneof=primary middle"`
}

func (p *Placeholder) Validate(validate *validator.Validate) error {
	if g, ok := ParseGrade(p.Grade); ok {
		p.Grade = string(g)
	}
	p.Level = core.CleanString(p.Level, true /* lower */)

	var extra []core.FieldError
	if g := Grade(p.Grade); g.IsValid() && p.Level != "" && p.Level != g.Level() {
		extra = append(extra, core.FieldError{Path: "level", Message: fmt.Sprintf("grade %s is %s level", g, g.Level())})
	}
	return core.CheckStruct(validate, p, extra...)
}

type Filter struct {
	SchoolCode string
}
