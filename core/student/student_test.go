package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGrade(t *testing.T) {
	tests := []struct {
		in    string
		want  Grade
		valid bool
	}{
		{"VI", GradeVI, true},
		{" viii ", GradeVIII, true},
		{"Grade IV", GradeIV, true},
		{"class 7", GradeVII, true},
		{"5", GradeV, true},
		{"3", "", false},
		{"IX", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseGrade(tt.in)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGender(t *testing.T) {
	for in, want := range map[string]string{"m": "M", "Male": "M", "F": "F", " female ": "F", "x": ""} {
		got, ok := ParseGender(in)
		assert.Equal(t, want != "", ok, in)
		assert.Equal(t, want, got, in)
	}
}

func TestGrade_Level(t *testing.T) {
	assert.Equal(t, LevelPrimary, GradeIV.Level())
	assert.Equal(t, LevelPrimary, GradeV.Level())
	assert.Equal(t, LevelMiddle, GradeVI.Level())
	assert.Equal(t, LevelMiddle, GradeVIII.Level())
	assert.Equal(t, "", Grade("IX").Level())
}

func TestFormatID(t *testing.T) {
	assert.Equal(t, "0405-06-01", FormatID("0405", GradeVI, 1))
	assert.Equal(t, "0405-08-12", FormatID("0405", GradeVIII, 12))
	assert.Equal(t, "0405-04-100", FormatID("0405", GradeIV, 100))
}

func TestNextSequence(t *testing.T) {
	prefix := IDPrefix("0405", GradeVI)
	tests := []struct {
		name string
		ids  []string
		want int
	}{
		{"empty", nil, 1},
		{"gaps", []string{"0405-06-01", "0405-06-07", "0405-06-03"}, 8},
		{"other prefixes ignored", []string{"0405-07-09", "04050-06-05", "0405-06-02"}, 3},
		{"non numeric suffix ignored", []string{"0405-06-xx"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextSequence(tt.ids, prefix))
		})
	}
}

func TestMatchHeader(t *testing.T) {
	tests := map[string]string{
		"Student Name":        FieldStudentName,
		"Full Student Name":   FieldStudentName,
		"Name of the Student": FieldStudentName,
		"Father's Name":       FieldFatherName,
		"FULL FATHER NAME":    FieldFatherName,
		"Gender (M/F)":        FieldGender,
		"Date of Birth":       FieldDateOfBirth,
		"DOB (dd/mm/yyyy)":    FieldDateOfBirth,
		"School Code":         FieldSchoolCode,
		"Grade":               FieldGrade,
		"Class":               FieldGrade,
		"Remarks":             "",
		"123":                 "",
	}
	for header, want := range tests {
		t.Run(header, func(t *testing.T) {
			assert.Equal(t, want, MatchHeader(header))
		})
	}
}

func TestMissingColumnError(t *testing.T) {
	assert.Equal(t, `missing column "gender" (did you mean "Gendr"?)`, missingColumnError(FieldGender, []string{"Remarks", "Gendr"}))
	assert.Equal(t, `missing column "gender"`, missingColumnError(FieldGender, []string{"Remarks"}))
}

func TestImportResult_Message(t *testing.T) {
	tests := []struct {
		name string
		res  ImportResult
		want string
	}{
		{"imported", ImportResult{Count: 3}, "Successfully imported 3 students."},
		{"with duplicates", ImportResult{Count: 2, Duplicates: 1}, "Successfully imported 2 students. 1 duplicates were skipped."},
		{"only duplicates", ImportResult{Duplicates: 4}, "No new students imported. 4 duplicates were skipped."},
		{
			"unregistered",
			ImportResult{Count: 1, Unregistered: []string{"0999", "1000"}},
			"Successfully imported 1 students. 2 school(s) were not registered: 0999, 1000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Message())
		})
	}
}
