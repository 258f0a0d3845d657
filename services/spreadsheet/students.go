// Package spreadsheet reads student rows out of .xlsx workbooks.
package spreadsheet

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/student"
)

// ReadStudents returns the rows of every sheet named after a grade ("Grade VI", "VII", "6").
// When no sheet is named after a grade, the first sheet is read and rows must carry their grade.
// The first non-empty row of a sheet is its header. Cells keep their raw value so that dates
// stay spreadsheet serial numbers.
func ReadStudents(r io.Reader, schoolCode string) ([]student.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewPreconditionError("could not read the spreadsheet: %v", err)
	}
	defer func() { _ = f.Close() }()

	type gradeSheet struct {
		name  string
		grade student.Grade
	}
	var sheets []gradeSheet
	sheetList := f.GetSheetList()
	for _, name := range sheetList {
		if g, ok := student.ParseGrade(name); ok {
			sheets = append(sheets, gradeSheet{name: name, grade: g})
		}
	}
	if len(sheets) == 0 && len(sheetList) > 0 {
		sheets = append(sheets, gradeSheet{name: sheetList[0]})
	}

	rows := make([]student.RawRow, 0)
	for _, sheet := range sheets {
		cells, err := f.GetRows(sheet.name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, errors.Wrapf(err, "reading sheet %q", sheet.name)
		}
		rows = append(rows, sheetRows(cells, schoolCode, string(sheet.grade))...)
	}
	return rows, nil
}

func sheetRows(cells [][]string, schoolCode, grade string) []student.RawRow {
	var (
		header []string
		rows   []student.RawRow
	)
	for i, cols := range cells {
		if isBlank(cols) {
			continue
		}
		if header == nil {
			header = cols
			continue
		}

		values := make(map[string]interface{}, len(header))
		for j, h := range header {
			h = strings.TrimSpace(h)
			if h == "" {
				continue
			}
			if j < len(cols) {
				values[h] = strings.TrimSpace(cols[j])
			} else {
				values[h] = ""
			}
		}
		rows = append(rows, student.RawRow{
			Line:       i + 1, // spreadsheet row number
			Values:     values,
			SchoolCode: schoolCode,
			Grade:      grade,
		})
	}
	return rows
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
