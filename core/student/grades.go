package student

import (
	"strconv"
	"strings"
)

// Grade is a roman-numeral school grade, IV to VIII.
type Grade string

const (
	GradeIV   Grade = "IV"
	GradeV    Grade = "V"
	GradeVI   Grade = "VI"
	GradeVII  Grade = "VII"
	GradeVIII Grade = "VIII"
)

// Levels
const (
	LevelPrimary = "primary"
	LevelMiddle  = "middle"
)

var (
	Grades = []Grade{GradeIV, GradeV, GradeVI, GradeVII, GradeVIII}

	gradeCodes = map[Grade]string{
		GradeIV:   "04",
		GradeV:    "05",
		GradeVI:   "06",
		GradeVII:  "07",
		GradeVIII: "08",
	}
	numericGrades = map[int]Grade{4: GradeIV, 5: GradeV, 6: GradeVI, 7: GradeVII, 8: GradeVIII}
)

func (g Grade) IsValid() bool {
	_, ok := gradeCodes[g]
	return ok
}

// Code is the two-digit grade code used inside student IDs.
func (g Grade) Code() string {
	return gradeCodes[g]
}

func (g Grade) Level() string {
	switch g {
	case GradeIV, GradeV:
		return LevelPrimary
	case GradeVI, GradeVII, GradeVIII:
		return LevelMiddle
	}
	return ""
}

// ParseGrade accepts "VI", "vi", "Grade VI", "Class 6" or "6".
func ParseGrade(s string) (Grade, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, prefix := range []string{"GRADE", "CLASS"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	if g := Grade(s); g.IsValid() {
		return g, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		g, ok := numericGrades[n]
		return g, ok
	}
	return "", false
}

// ParseGender maps M, Male, F or Female (any case) to M or F.
func ParseGender(s string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MALE":
		return "M", true
	case "F", "FEMALE":
		return "F", true
	}
	return "", false
}
