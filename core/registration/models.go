package registration

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/fees"
)

// Status is the lifecycle phase of a school registration.
type Status string

const (
	StatusDraft Status = "draft"
	StatusFinal Status = "final"
)

type School struct {
	SchoolCode              string          `json:"schoolCode" db:"school_code"`
	Status                  Status          `json:"status" db:"status"`
	SchoolName              string          `json:"schoolName" db:"school_name"`
	SchoolAddress           null.String     `json:"schoolAddress" db:"school_address"`
	ContactNumbers          null.String     `json:"contactNumbers" db:"contact_numbers"`
	SchoolType              null.String     `json:"schoolType" db:"school_type"`
	AcademicYearStart       null.String     `json:"academicYearStart" db:"academic_year_start"`
	AcademicYearEnd         null.String     `json:"academicYearEnd" db:"academic_year_end"`
	GradeLevelFrom          null.String     `json:"gradeLevelFrom" db:"grade_level_from"`
	GradeLevelTill          null.String     `json:"gradeLevelTill" db:"grade_level_till"`
	Languages               core.StringList `json:"languages" db:"languages"`
	OtherLanguage           null.String     `json:"otherLanguage" db:"other_language"`
	PrincipalName           null.String     `json:"principalName" db:"principal_name"`
	PrincipalEmail          null.String     `json:"principalEmail" db:"principal_email"`
	PrincipalCell           null.String     `json:"principalCell" db:"principal_cell"`
	PrimaryCoordinatorName  null.String     `json:"primaryCoordinatorName" db:"primary_coordinator_name"`
	PrimaryCoordinatorEmail null.String     `json:"primaryCoordinatorEmail" db:"primary_coordinator_email"`
	PrimaryCoordinatorCell  null.String     `json:"primaryCoordinatorCell" db:"primary_coordinator_cell"`
	MiddleCoordinatorName   null.String     `json:"middleCoordinatorName" db:"middle_coordinator_name"`
	MiddleCoordinatorEmail  null.String     `json:"middleCoordinatorEmail" db:"middle_coordinator_email"`
	MiddleCoordinatorCell   null.String     `json:"middleCoordinatorCell" db:"middle_coordinator_cell"`
	GradeIV                 int             `json:"gradeIV" db:"grade_iv"`
	GradeV                  int             `json:"gradeV" db:"grade_v"`
	GradeVI                 int             `json:"gradeVI" db:"grade_vi"`
	GradeVII                int             `json:"gradeVII" db:"grade_vii"`
	GradeVIII               int             `json:"gradeVIII" db:"grade_viii"`
	PspMspRegistration      core.StringList `json:"pspMspRegistration" db:"psp_msp_registration"`
	IsActive                bool            `json:"isActive" db:"is_active"`
	RegistrationCompletedAt null.Time       `json:"registrationCompletedAt" db:"registration_completed_at"`
	CreatedAt               time.Time       `json:"createdAt" db:"created_at"` // UTC
	UpdatedAt               time.Time       `json:"updatedAt" db:"updated_at"` // UTC
}

// CandidateCounts is the enrolment per level: IV and V are primary, VI to VIII are middle.
func (s School) CandidateCounts() (primary, middle int) {
	return s.GradeIV + s.GradeV, s.GradeVI + s.GradeVII + s.GradeVIII
}

type Resources struct {
	SchoolCode              string          `json:"schoolCode" db:"school_code"`
	PrimaryTeachers         null.Int        `json:"primaryTeachers" db:"primary_teachers"`
	MiddleTeachers          null.Int        `json:"middleTeachers" db:"middle_teachers"`
	UndergraduateTeachers   int             `json:"undergraduateTeachers" db:"undergraduate_teachers"`
	GraduateTeachers        int             `json:"graduateTeachers" db:"graduate_teachers"`
	PostgraduateTeachers    int             `json:"postgraduateTeachers" db:"postgraduate_teachers"`
	EducationDegreeTeachers int             `json:"educationDegreeTeachers" db:"education_degree_teachers"`
	TotalWeeks              null.Int        `json:"totalWeeks" db:"total_weeks"`
	WeeklyPeriods           null.Int        `json:"weeklyPeriods" db:"weekly_periods"`
	PeriodDuration          null.Int        `json:"periodDuration" db:"period_duration"`
	MaxStudents             null.Int        `json:"maxStudents" db:"max_students"`
	Facilities              core.StringList `json:"facilities" db:"facilities"`
	OtherFacility1          null.String     `json:"otherFacility1" db:"other_facility_1"`
	OtherFacility2          null.String     `json:"otherFacility2" db:"other_facility_2"`
	OtherFacility3          null.String     `json:"otherFacility3" db:"other_facility_3"`
	CreatedAt               time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt               time.Time       `json:"updatedAt" db:"updated_at"`
}

type Fees struct {
	SchoolCode string `json:"schoolCode" db:"school_code"`
	fees.Payment
	Amount             string      `json:"amount" db:"amount"`
	HeadOfInstitution  null.String `json:"headOfInstitution" db:"head_of_institution"`
	DisclaimerAccepted bool        `json:"disclaimerAccepted" db:"disclaimer_accepted"`
	HeadSignature      null.String `json:"headSignature" db:"head_signature"`
	InstitutionStamp   null.String `json:"institutionStamp" db:"institution_stamp"`
	PaymentScreenshot  null.String `json:"paymentScreenshot" db:"payment_screenshot"`
	CreatedAt          time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time   `json:"updatedAt" db:"updated_at"`
}

// Credentials are the login of a registered school.
type Credentials struct {
	ID           int64     `json:"id" db:"id"`
	SchoolCode   string    `json:"schoolCode" db:"school_code"`
	Username     string    `json:"username" db:"username"`
	PasswordHash []byte    `json:"-" db:"password"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

func (c *Credentials) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.PasswordHash = hash
	return nil
}

func (c *Credentials) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(pwd))
}

// SchoolDetails are the optional school fields. Nil fields are left untouched on update.
type SchoolDetails struct {
	SchoolAddress           *string  `json:"schoolAddress" validate:"omitempty,max=1024"`
	ContactNumbers          *string  `json:"contactNumbers" validate:"omitempty,max=255"`
	SchoolType              *string  `json:"schoolType" validate:"omitempty,max=64"`
	AcademicYearStart       *string  `json:"academicYearStart" validate:"omitempty,max=64"`
	AcademicYearEnd         *string  `json:"academicYearEnd" validate:"omitempty,max=64"`
	GradeLevelFrom          *string  `json:"gradeLevelFrom" validate:"omitempty,max=16"`
	GradeLevelTill          *string  `json:"gradeLevelTill" validate:"omitempty,max=16"`
	Languages               []string `json:"languages" validate:"omitempty,dive,max=64"`
	OtherLanguage           *string  `json:"otherLanguage" validate:"omitempty,max=255"`
	PrincipalName           *string  `json:"principalName" validate:"omitempty,max=255"`
	PrincipalEmail          *string  `json:"principalEmail" validate:"omitempty,email"`
	PrincipalCell           *string  `json:"principalCell" validate:"omitempty,max=64"`
	PrimaryCoordinatorName  *string  `json:"primaryCoordinatorName" validate:"omitempty,max=255"`
	PrimaryCoordinatorEmail *string  `json:"primaryCoordinatorEmail" validate:"omitempty,email"`
	PrimaryCoordinatorCell  *string  `json:"primaryCoordinatorCell" validate:"omitempty,max=64"`
	MiddleCoordinatorName   *string  `json:"middleCoordinatorName" validate:"omitempty,max=255"`
	MiddleCoordinatorEmail  *string  `json:"middleCoordinatorEmail" validate:"omitempty,email"`
	MiddleCoordinatorCell   *string  `json:"middleCoordinatorCell" validate:"omitempty,max=64"`
	GradeIV                 *int     `json:"gradeIV" validate:"omitempty,min=0,max=5000"`
	GradeV                  *int     `json:"gradeV" validate:"omitempty,min=0,max=5000"`
	GradeVI                 *int     `json:"gradeVI" validate:"omitempty,min=0,max=5000"`
	GradeVII                *int     `json:"gradeVII" validate:"omitempty,min=0,max=5000"`
	GradeVIII               *int     `json:"gradeVIII" validate:"omitempty,min=0,max=5000"`
	PspMspRegistration      []string `json:"pspMspRegistration" validate:"omitempty,dive,max=64"`
}

func (d SchoolDetails) applyTo(s *School) {
	setString := func(dst *null.String, src *string) {
		if src != nil {
			*dst = fees.OptionalString(src)
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&s.SchoolAddress, d.SchoolAddress)
	setString(&s.ContactNumbers, d.ContactNumbers)
	setString(&s.SchoolType, d.SchoolType)
	setString(&s.AcademicYearStart, d.AcademicYearStart)
	setString(&s.AcademicYearEnd, d.AcademicYearEnd)
	setString(&s.GradeLevelFrom, d.GradeLevelFrom)
	setString(&s.GradeLevelTill, d.GradeLevelTill)
	if d.Languages != nil {
		s.Languages = core.StringList(d.Languages).Clone()
	}
	setString(&s.OtherLanguage, d.OtherLanguage)
	setString(&s.PrincipalName, d.PrincipalName)
	setString(&s.PrincipalEmail, core.CleanStringPtr(d.PrincipalEmail))
	setString(&s.PrincipalCell, d.PrincipalCell)
	setString(&s.PrimaryCoordinatorName, d.PrimaryCoordinatorName)
	setString(&s.PrimaryCoordinatorEmail, d.PrimaryCoordinatorEmail)
	setString(&s.PrimaryCoordinatorCell, d.PrimaryCoordinatorCell)
	setString(&s.MiddleCoordinatorName, d.MiddleCoordinatorName)
	setString(&s.MiddleCoordinatorEmail, d.MiddleCoordinatorEmail)
	setString(&s.MiddleCoordinatorCell, d.MiddleCoordinatorCell)
	setInt(&s.GradeIV, d.GradeIV)
	setInt(&s.GradeV, d.GradeV)
	setInt(&s.GradeVI, d.GradeVI)
	setInt(&s.GradeVII, d.GradeVII)
	setInt(&s.GradeVIII, d.GradeVIII)
	if d.PspMspRegistration != nil {
		s.PspMspRegistration = core.StringList(d.PspMspRegistration).Clone()
	}
}

// NewSchool contains the information needed to save a draft school.
type NewSchool struct {
	SchoolCode string `json:"schoolCode" validate:"required,schoolcode"`
	SchoolName string `json:"schoolName" validate:"required,max=255"`
	SchoolDetails
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.SchoolCode = core.CleanString(ns.SchoolCode)
	ns.SchoolName = core.CleanString(ns.SchoolName)
	return core.CheckStruct(validate, ns)
}

// UpdateSchool defines what may be changed on a registered school, the grade counts alone included.
type UpdateSchool struct {
	SchoolName *string `json:"schoolName" validate:"omitempty,max=255"`
	SchoolDetails
}

func (us *UpdateSchool) Validate(validate *validator.Validate) error {
	return core.CheckStruct(validate, us)
}

func (us UpdateSchool) applyTo(s *School) {
	if name := core.CleanStringPtr(us.SchoolName); name != nil && *name != "" {
		s.SchoolName = *name
	}
	us.SchoolDetails.applyTo(s)
}

type ResourcesInput struct {
	PrimaryTeachers         *int     `json:"primaryTeachers" validate:"omitempty,min=0"`
	MiddleTeachers          *int     `json:"middleTeachers" validate:"omitempty,min=0"`
	UndergraduateTeachers   *int     `json:"undergraduateTeachers" validate:"omitempty,min=0"`
	GraduateTeachers        *int     `json:"graduateTeachers" validate:"omitempty,min=0"`
	PostgraduateTeachers    *int     `json:"postgraduateTeachers" validate:"omitempty,min=0"`
	EducationDegreeTeachers *int     `json:"educationDegreeTeachers" validate:"omitempty,min=0"`
	TotalWeeks              *int     `json:"totalWeeks" validate:"omitempty,min=0,max=53"`
	WeeklyPeriods           *int     `json:"weeklyPeriods" validate:"omitempty,min=0"`
	PeriodDuration          *int     `json:"periodDuration" validate:"omitempty,min=0"`
	MaxStudents             *int     `json:"maxStudents" validate:"omitempty,min=0"`
	Facilities              []string `json:"facilities" validate:"omitempty,dive,max=128"`
	OtherFacility1          *string  `json:"otherFacility1" validate:"omitempty,max=255"`
	OtherFacility2          *string  `json:"otherFacility2" validate:"omitempty,max=255"`
	OtherFacility3          *string  `json:"otherFacility3" validate:"omitempty,max=255"`
}

func (in *ResourcesInput) Validate(validate *validator.Validate) error {
	return core.CheckStruct(validate, in)
}

func (in ResourcesInput) applyTo(r *Resources) {
	setNullInt := func(dst *null.Int, src *int) {
		if src != nil {
			*dst = null.IntFrom(*src)
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	setNullInt(&r.PrimaryTeachers, in.PrimaryTeachers)
	setNullInt(&r.MiddleTeachers, in.MiddleTeachers)
	setInt(&r.UndergraduateTeachers, in.UndergraduateTeachers)
	setInt(&r.GraduateTeachers, in.GraduateTeachers)
	setInt(&r.PostgraduateTeachers, in.PostgraduateTeachers)
	setInt(&r.EducationDegreeTeachers, in.EducationDegreeTeachers)
	setNullInt(&r.TotalWeeks, in.TotalWeeks)
	setNullInt(&r.WeeklyPeriods, in.WeeklyPeriods)
	setNullInt(&r.PeriodDuration, in.PeriodDuration)
	setNullInt(&r.MaxStudents, in.MaxStudents)
	if in.Facilities != nil {
		r.Facilities = core.StringList(in.Facilities).Clone()
	}
	if in.OtherFacility1 != nil {
		r.OtherFacility1 = fees.OptionalString(in.OtherFacility1)
	}
	if in.OtherFacility2 != nil {
		r.OtherFacility2 = fees.OptionalString(in.OtherFacility2)
	}
	if in.OtherFacility3 != nil {
		r.OtherFacility3 = fees.OptionalString(in.OtherFacility3)
	}
}

// NewResources is the draft resources form, keyed by school code.
type NewResources struct {
	SchoolCode string `json:"schoolCode" validate:"required,schoolcode"`
	ResourcesInput
}

func (nr *NewResources) Validate(validate *validator.Validate) error {
	nr.SchoolCode = core.CleanString(nr.SchoolCode)
	return core.CheckStruct(validate, nr)
}

type FeesInput struct {
	fees.PaymentInput
	Amount             *string `json:"amount" validate:"omitempty,money"`
	HeadOfInstitution  *string `json:"headOfInstitution" validate:"omitempty,max=255"`
	DisclaimerAccepted *bool   `json:"disclaimerAccepted"`
	HeadSignature      *string `json:"headSignature"`
	InstitutionStamp   *string `json:"institutionStamp"`
	PaymentScreenshot  *string `json:"paymentScreenshot"`
}

func (in *FeesInput) Validate(validate *validator.Validate) error {
	return core.CheckStruct(validate, in, in.DateErrors()...)
}

func (in FeesInput) applyTo(f *Fees) {
	in.PaymentInput.ApplyTo(&f.Payment)
	if amount := core.CleanStringPtr(in.Amount); amount != nil && *amount != "" {
		f.Amount = *amount
	}
	if in.HeadOfInstitution != nil {
		f.HeadOfInstitution = fees.OptionalString(in.HeadOfInstitution)
	}
	if in.DisclaimerAccepted != nil {
		f.DisclaimerAccepted = *in.DisclaimerAccepted
	}
	if in.HeadSignature != nil {
		f.HeadSignature = fees.OptionalString(in.HeadSignature)
	}
	if in.InstitutionStamp != nil {
		f.InstitutionStamp = fees.OptionalString(in.InstitutionStamp)
	}
	if in.PaymentScreenshot != nil {
		f.PaymentScreenshot = fees.OptionalString(in.PaymentScreenshot)
	}
}

// NewFees is the draft fees form, keyed by school code.
type NewFees struct {
	SchoolCode string `json:"schoolCode" validate:"required,schoolcode"`
	FeesInput
}

func (nf *NewFees) Validate(validate *validator.Validate) error {
	nf.SchoolCode = core.CleanString(nf.SchoolCode)
	return core.CheckStruct(validate, nf, nf.DateErrors()...)
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username)
	return core.CheckStruct(validate, lr)
}
