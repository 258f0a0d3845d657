package spreadsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/student"
)

func workbook(t *testing.T, sheets map[string][][]interface{}, order ...string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	for i, name := range order {
		if i == 0 {
			f.SetSheetName("Sheet1", name)
		} else {
			f.NewSheet(name)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadStudents(t *testing.T) {
	buf := workbook(t, map[string][][]interface{}{
		"Grade VI": {
			{},
			{"Student Name", "Father's Name", "Gender", "DOB"},
			{"Ali", "Raza", "M", 45000},
			{},
			{"Sara", "Ahmed", "F", "15/03/2023"},
		},
		"VII": {
			{"Name of the Student", "Father Name", "Gender", "Date of Birth"},
			{"Hina", "Imran", "F"},
		},
		"Notes": {
			{"ignored"},
		},
	}, "Grade VI", "VII", "Notes")

	rows, err := ReadStudents(buf, "0405")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 3, rows[0].Line)
	assert.Equal(t, "0405", rows[0].SchoolCode)
	assert.Equal(t, string(student.GradeVI), rows[0].Grade)
	assert.Equal(t, "Ali", rows[0].Values["Student Name"])
	assert.Equal(t, "45000", rows[0].Values["DOB"])
	dob, err := core.ParseSpreadsheetDate(rows[0].Values["DOB"])
	require.NoError(t, err)
	assert.Equal(t, "2023-03-15", dob.Format("2006-01-02"))

	assert.Equal(t, 5, rows[1].Line)
	assert.Equal(t, "15/03/2023", rows[1].Values["DOB"])

	assert.Equal(t, string(student.GradeVII), rows[2].Grade)
	assert.Equal(t, "", rows[2].Values["Date of Birth"], "short rows are padded")
}

func TestReadStudents_NoGradeSheet(t *testing.T) {
	buf := workbook(t, map[string][][]interface{}{
		"Students": {
			{"School Code", "Student Name", "Father Name", "Gender", "DOB", "Grade"},
			{"0405", "Ali", "Raza", "M", "01/02/2012", "VI"},
		},
	}, "Students")

	rows, err := ReadStudents(buf, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Grade)
	assert.Equal(t, "VI", rows[0].Values["Grade"])
	assert.Equal(t, "0405", rows[0].Values["School Code"])
}

func TestReadStudents_NotAWorkbook(t *testing.T) {
	_, err := ReadStudents(strings.NewReader("name,father\nAli,Raza\n"), "0405")
	assert.True(t, core.IsPrecondition(err))
}
