package student

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
)

const notRegisteredMsg = "School code '%s' is not registered. Please register the school first."

type (
	// RawRow is one spreadsheet or API row keyed by its original headers.
	// SchoolCode and Grade are used when the row itself carries none.
	RawRow struct {
		Line       int
		Values     map[string]interface{}
		SchoolCode string
		Grade      string
	}

	FailedRow struct {
		Row   int    `json:"row"`
		Error string `json:"error"`
	}

	ImportResult struct {
		Imported     []Student
		Count        int
		Duplicates   int
		Unregistered []string
		FailedRows   []FailedRow
	}

	importRow struct {
		line      int
		raw       RawRow
		fields    map[string]interface{}
		unmatched []string
	}
)

// Message summarizes the import for the user.
func (r ImportResult) Message() string {
	var msg string
	switch {
	case r.Count > 0 && r.Duplicates > 0:
		msg = fmt.Sprintf("Successfully imported %d students. %d duplicates were skipped.", r.Count, r.Duplicates)
	case r.Count > 0:
		msg = fmt.Sprintf("Successfully imported %d students.", r.Count)
	case r.Duplicates > 0:
		msg = fmt.Sprintf("No new students imported. %d duplicates were skipped.", r.Duplicates)
	default:
		msg = "No students were imported."
	}
	if len(r.Unregistered) > 0 {
		msg += fmt.Sprintf(" %d school(s) were not registered: %s", len(r.Unregistered), strings.Join(r.Unregistered, ", "))
	}
	return msg
}

// Import enrols a batch of raw rows, possibly spanning several schools.
// Rows of unregistered schools, invalid rows and duplicates are reported, never fatal to the batch.
// All accepted rows are inserted at once. ErrNothingImported is returned along with the result
// when no row was imported or skipped as a duplicate.
func (svc *Service) Import(ctx context.Context, rows []RawRow) (ImportResult, error) {
	res := ImportResult{Imported: []Student{}, FailedRows: []FailedRow{}}
	fail := func(line int, msg string) {
		res.FailedRows = append(res.FailedRows, FailedRow{Row: line, Error: msg})
	}

	// partition by school code, keeping the input order
	var codes []string
	groups := make(map[string][]importRow)
	for i, raw := range rows {
		line := raw.Line
		if line == 0 {
			line = i + 1
		}
		fields, unmatched := mapFields(raw.Values)
		code := valueString(fields[FieldSchoolCode])
		if code == "" {
			code = core.CleanString(raw.SchoolCode)
		}
		if code == "" {
			fail(line, "school code is missing")
			continue
		}
		if _, ok := groups[code]; !ok {
			codes = append(codes, code)
		}
		groups[code] = append(groups[code], importRow{line: line, raw: raw, fields: fields, unmatched: unmatched})
	}

	now := svc.nowFunc().UTC()
	var accepted []Student
	for _, code := range codes {
		registered, err := svc.schools.IsRegistered(ctx, code)
		if err != nil {
			return res, errors.Wrap(err, "checking school")
		}
		if !registered {
			res.Unregistered = append(res.Unregistered, code)
			for _, row := range groups[code] {
				fail(row.line, fmt.Sprintf(notRegisteredMsg, code))
			}
			continue
		}

		existing, err := svc.repo.QueryStudents(ctx, Filter{SchoolCode: code})
		if err != nil {
			return res, errors.Wrap(err, "querying students")
		}
		seen := make(map[duplicateKey]bool, len(existing))
		for _, s := range existing {
			seen[keyOf(s.StudentName, s.FatherName, s.DateOfBirth)] = true
		}

		nextSeq := make(map[Grade]int)
		for _, row := range groups[code] {
			ns, err := svc.parseRow(code, row)
			if err != nil {
				fail(row.line, errorText(err))
				continue
			}

			key := keyOf(ns.StudentName, ns.FatherName, ns.DateOfBirth.Time)
			if seen[key] {
				res.Duplicates++
				continue
			}
			seen[key] = true

			grade := Grade(ns.Grade)
			seq, ok := nextSeq[grade]
			if !ok {
				prefix := IDPrefix(code, grade)
				ids, err := svc.repo.StudentIDsWithPrefix(ctx, prefix)
				if err != nil {
					return res, errors.Wrap(err, "getting student ids")
				}
				seq = NextSequence(ids, prefix)
			}
			nextSeq[grade] = seq + 1

			accepted = append(accepted, Student{
				StudentID:   FormatID(code, grade, seq),
				SchoolCode:  code,
				StudentName: ns.StudentName,
				FatherName:  ns.FatherName,
				Gender:      ns.Gender,
				DateOfBirth: core.DateOnly(ns.DateOfBirth.Time),
				Grade:       grade,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}

	if len(accepted) > 0 {
		created, err := svc.repo.CreateStudents(ctx, accepted)
		if err != nil {
			return res, errors.Wrap(err, "creating students")
		}
		res.Imported = created
		res.Count = len(created)
	}

	if res.Count == 0 && res.Duplicates == 0 {
		return res, ErrNothingImported
	}
	svc.recorder.Log(ctx, audit.StudentImported, audit.ResourceStudent, strings.Join(codes, ","), nil, nil, res.Message())
	return res, nil
}

// parseRow turns the canonical fields of a row into a validated NewStudent.
func (svc *Service) parseRow(code string, row importRow) (NewStudent, error) {
	var missing []core.FieldError
	for _, field := range requiredFields {
		if _, ok := row.fields[field]; !ok {
			missing = append(missing, core.FieldError{Path: field, Message: missingColumnError(field, row.unmatched)})
		}
	}
	grade := valueString(row.fields[FieldGrade])
	if grade == "" {
		grade = row.raw.Grade
	}
	if grade == "" {
		missing = append(missing, core.FieldError{Path: FieldGrade, Message: missingColumnError(FieldGrade, row.unmatched)})
	}
	if len(missing) > 0 {
		return NewStudent{}, core.NewValidationError(nil, missing...)
	}

	ns := NewStudent{
		SchoolCode:  code,
		StudentName: valueString(row.fields[FieldStudentName]),
		FatherName:  valueString(row.fields[FieldFatherName]),
		Gender:      valueString(row.fields[FieldGender]),
		Grade:       grade,
	}
	if v := row.fields[FieldDateOfBirth]; v != nil && valueString(v) != "" {
		dob, err := core.ParseSpreadsheetDate(v)
		if err != nil {
			return NewStudent{}, core.NewValidationError(err, core.FieldError{Path: FieldDateOfBirth, Message: err.Error()})
		}
		ns.DateOfBirth = core.FlexTimeFrom(dob)
	}

	if err := ns.Validate(svc.validate); err != nil {
		return NewStudent{}, err
	}
	return ns, nil
}

// valueString renders a cell as text. Integral numbers lose their decimal part (405.0 -> "405").
func valueString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return core.CleanString(val)
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return core.CleanString(fmt.Sprint(val))
	}
}

func errorText(err error) string {
	if vErr, ok := errors.Cause(err).(*core.ValidationError); ok && len(vErr.Fields) > 0 {
		msgs := make([]string, 0, len(vErr.Fields))
		for _, f := range vErr.Fields {
			msgs = append(msgs, f.Path+": "+f.Message)
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}
