// Package export renders registration forms as PDF documents.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/fees"
	"github.com/pblportal/registry/core/registration"
)

const (
	labelWidth = 70
	lineHeight = 7
	dateFormat = "02/01/2006"
)

type PDFRenderer struct {
	title       string
	compression bool
	nowFunc     func() time.Time
}

func NewPDFRenderer(conf *core.Config) *PDFRenderer {
	return &PDFRenderer{
		title:       conf.AppName + " - School Registration",
		compression: true,
		nowFunc:     time.Now,
	}
}

type field struct {
	label, value string
}

// RenderRegistration writes the registration form of a school. Missing resources or fees
// sections are rendered as "not provided".
func (r *PDFRenderer) RenderRegistration(w io.Writer, s registration.School, res *registration.Resources, f *registration.Fees) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compression)
	pdf.SetTitle(r.title, true)
	pdf.SetCreationDate(r.nowFunc().UTC())
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(r.title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight, tr(fmt.Sprintf("School code %s (%s)", s.SchoolCode, s.Status)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section := func(title string, fields []field) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(0, 8, tr(title), "", 1, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		if len(fields) == 0 {
			pdf.CellFormat(0, lineHeight, "Not provided", "", 1, "L", false, 0, "")
		}
		for _, fld := range fields {
			pdf.CellFormat(labelWidth, lineHeight, tr(fld.label), "", 0, "L", false, 0, "")
			pdf.MultiCell(0, lineHeight, tr(fld.value), "", "L", false)
		}
		pdf.Ln(3)
	}

	section("School", schoolFields(s))
	section("Enrolment", enrolmentFields(s))
	if res != nil {
		section("Resources", resourceFields(*res))
	} else {
		section("Resources", nil)
	}
	if f != nil {
		section("Fees", feeFields(*f))
	} else {
		section("Fees", nil)
	}

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "rendering pdf")
	}
	return nil
}

func schoolFields(s registration.School) []field {
	return []field{
		{"School name", s.SchoolName},
		{"Address", str(s.SchoolAddress)},
		{"Contact numbers", str(s.ContactNumbers)},
		{"School type", str(s.SchoolType)},
		{"Academic year", joinNonEmpty(" - ", str(s.AcademicYearStart), str(s.AcademicYearEnd))},
		{"Grade levels", joinNonEmpty(" - ", str(s.GradeLevelFrom), str(s.GradeLevelTill))},
		{"Languages", joinNonEmpty(", ", append(s.Languages.Clone(), str(s.OtherLanguage))...)},
		{"Principal", joinNonEmpty(" / ", str(s.PrincipalName), str(s.PrincipalEmail), str(s.PrincipalCell))},
		{"Primary coordinator", joinNonEmpty(" / ", str(s.PrimaryCoordinatorName), str(s.PrimaryCoordinatorEmail), str(s.PrimaryCoordinatorCell))},
		{"Middle coordinator", joinNonEmpty(" / ", str(s.MiddleCoordinatorName), str(s.MiddleCoordinatorEmail), str(s.MiddleCoordinatorCell))},
		{"PSP / MSP registration", strings.Join(s.PspMspRegistration, ", ")},
		{"Registration completed", timeStr(s.RegistrationCompletedAt)},
	}
}

func enrolmentFields(s registration.School) []field {
	primary, middle := s.CandidateCounts()
	return []field{
		{"Grade IV", strconv.Itoa(s.GradeIV)},
		{"Grade V", strconv.Itoa(s.GradeV)},
		{"Grade VI", strconv.Itoa(s.GradeVI)},
		{"Grade VII", strconv.Itoa(s.GradeVII)},
		{"Grade VIII", strconv.Itoa(s.GradeVIII)},
		{"Primary candidates", strconv.Itoa(primary)},
		{"Middle candidates", strconv.Itoa(middle)},
	}
}

func resourceFields(r registration.Resources) []field {
	return []field{
		{"Primary teachers", intStr(r.PrimaryTeachers)},
		{"Middle teachers", intStr(r.MiddleTeachers)},
		{"Undergraduate teachers", strconv.Itoa(r.UndergraduateTeachers)},
		{"Graduate teachers", strconv.Itoa(r.GraduateTeachers)},
		{"Postgraduate teachers", strconv.Itoa(r.PostgraduateTeachers)},
		{"Education degree teachers", strconv.Itoa(r.EducationDegreeTeachers)},
		{"Total weeks", intStr(r.TotalWeeks)},
		{"Weekly periods", intStr(r.WeeklyPeriods)},
		{"Period duration (min)", intStr(r.PeriodDuration)},
		{"Max students per class", intStr(r.MaxStudents)},
		{"Facilities", joinNonEmpty(", ", append(r.Facilities.Clone(),
			str(r.OtherFacility1), str(r.OtherFacility2), str(r.OtherFacility3))...)},
	}
}

func feeFields(f registration.Fees) []field {
	fields := []field{
		{"Amount", f.Amount},
		{"Payment method", str(f.PaymentMethod)},
	}
	switch f.PaymentMethod.String {
	case fees.MethodCheque:
		fields = append(fields,
			field{"Cheque number", str(f.ChequeNumber)},
			field{"Cheque date", timeStr(f.ChequeDate)})
	case fees.MethodDeposit:
		fields = append(fields,
			field{"Deposit slip number", str(f.DepositSlipNumber)},
			field{"Deposit date", timeStr(f.DepositDate)},
			field{"Pay order number", str(f.DepositPayOrderNumber)})
	}
	accepted := "No"
	if f.DisclaimerAccepted {
		accepted = "Yes"
	}
	return append(fields,
		field{"Head of institution", str(f.HeadOfInstitution)},
		field{"Disclaimer accepted", accepted})
}

func str(s null.String) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

func intStr(i null.Int) string {
	if !i.Valid {
		return ""
	}
	return strconv.Itoa(i.Int)
}

func timeStr(t null.Time) string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format(dateFormat)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
