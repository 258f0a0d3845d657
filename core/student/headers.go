package student

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// Canonical import fields
const (
	FieldStudentName = "studentName"
	FieldFatherName  = "fatherName"
	FieldGender      = "gender"
	FieldDateOfBirth = "dateOfBirth"
	FieldGrade       = "grade"
	FieldSchoolCode  = "schoolCode"
)

// HeaderAliases maps each canonical field to the header spellings it accepts, in normalized form.
// A header matches when it contains one of the aliases. Order matters: father names are checked
// before student names since "fathername" also contains "name".
var HeaderAliases = []struct {
	Field   string
	Aliases []string
}{
	{FieldFatherName, []string{"fullfathername", "fathername", "fathersname"}},
	{FieldStudentName, []string{"fullstudentname", "studentname", "studentsname", "nameofthestudent"}},
	{FieldGender, []string{"gendermf", "gender"}},
	{FieldDateOfBirth, []string{"dateofbirth", "dob"}},
	{FieldSchoolCode, []string{"schoolcode", "code"}},
	{FieldGrade, []string{"grade", "class"}},
}

var requiredFields = []string{FieldStudentName, FieldFatherName, FieldGender, FieldDateOfBirth}

// NormalizeHeader lowercases h and strips everything but letters.
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchHeader returns the canonical field of a spreadsheet header, or "".
func MatchHeader(h string) string {
	norm := NormalizeHeader(h)
	if norm == "" {
		return ""
	}
	for _, entry := range HeaderAliases {
		for _, alias := range entry.Aliases {
			if strings.Contains(norm, alias) {
				return entry.Field
			}
		}
	}
	return ""
}

// mapFields re-keys a raw row by canonical field. When several headers match a field,
// the first in lexical order wins.
func mapFields(values map[string]interface{}) (fields map[string]interface{}, unmatched []string) {
	headers := make([]string, 0, len(values))
	for header := range values {
		headers = append(headers, header)
	}
	sort.Strings(headers)

	fields = make(map[string]interface{}, len(values))
	for _, header := range headers {
		v := values[header]
		field := MatchHeader(header)
		if field == "" {
			unmatched = append(unmatched, header)
			continue
		}
		if _, ok := fields[field]; !ok {
			fields[field] = v
		}
	}
	return fields, unmatched
}

// missingColumnError reports a required field no header matched, suggesting the closest unmatched header.
func missingColumnError(field string, unmatched []string) string {
	msg := fmt.Sprintf("missing column %q", field)
	if suggestion := closestHeader(field, unmatched); suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return msg
}

func closestHeader(field string, headers []string) string {
	target := strings.Split(NormalizeHeader(field), "")
	var (
		best      string
		bestRatio = 0.6
	)
	for _, h := range headers {
		m := difflib.NewMatcher(target, strings.Split(NormalizeHeader(h), ""))
		if r := m.Ratio(); r > bestRatio {
			best, bestRatio = h, r
		}
	}
	return best
}
