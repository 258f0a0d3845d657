package fees

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
)

var ErrNotFound = core.NewNotFoundError("student fees")

type (
	Repository interface {
		GetStudentFees(ctx context.Context, schoolCode string) (StudentFees, error)
		// SaveStudentFees inserts or replaces the fees of sf.SchoolCode.
		SaveStudentFees(ctx context.Context, sf StudentFees) (StudentFees, error)
	}

	// CandidateCounter gives the enrolment of a registered school per level.
	CandidateCounter interface {
		CandidateCounts(ctx context.Context, schoolCode string) (primary, middle int, err error)
	}

	Service struct {
		repo     Repository
		schools  CandidateCounter
		recorder *audit.Recorder
		pricing  Pricing
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, schools CandidateCounter, recorder *audit.Recorder, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		schools:  schools,
		recorder: recorder,
		pricing: Pricing{
			PrimaryPerCandidate: conf.Fees.PrimaryPerCandidate,
			MiddlePerCandidate:  conf.Fees.MiddlePerCandidate,
		},
		nowFunc: time.Now,
	}
}

type StudentFeesInput struct {
	PaymentInput
	PrimaryCandidates  *int    `json:"primaryCandidates" validate:"omitempty,min=0,max=10000"`
	MiddleCandidates   *int    `json:"middleCandidates" validate:"omitempty,min=0,max=10000"`
	HeadOfInstitution  *string `json:"headOfInstitution" validate:"omitempty,max=255"`
	DisclaimerAccepted *bool   `json:"disclaimerAccepted"`
	HeadSignature      *string `json:"headSignature"`
	InstitutionStamp   *string `json:"institutionStamp"`
	PaymentScreenshot  *string `json:"paymentScreenshot"`
}

func (in *StudentFeesInput) Validate(validate *validator.Validate) error {
	return core.CheckStruct(validate, in, in.DateErrors()...)
}

func (in StudentFeesInput) applyTo(sf *StudentFees) {
	in.PaymentInput.ApplyTo(&sf.Payment)
	if in.PrimaryCandidates != nil {
		sf.PrimaryCandidates = *in.PrimaryCandidates
	}
	if in.MiddleCandidates != nil {
		sf.MiddleCandidates = *in.MiddleCandidates
	}
	if in.HeadOfInstitution != nil {
		sf.HeadOfInstitution = OptionalString(in.HeadOfInstitution)
	}
	if in.DisclaimerAccepted != nil {
		sf.DisclaimerAccepted = *in.DisclaimerAccepted
	}
	if in.HeadSignature != nil {
		sf.HeadSignature = OptionalString(in.HeadSignature)
	}
	if in.InstitutionStamp != nil {
		sf.InstitutionStamp = OptionalString(in.InstitutionStamp)
	}
	if in.PaymentScreenshot != nil {
		sf.PaymentScreenshot = OptionalString(in.PaymentScreenshot)
	}
}

func (svc *Service) Get(ctx context.Context, schoolCode string) (StudentFees, error) {
	return svc.repo.GetStudentFees(ctx, schoolCode)
}

// Create replaces the student fees of a registered school.
// Candidate counts default to the school's enrolment when omitted.
func (svc *Service) Create(ctx context.Context, schoolCode string, in StudentFeesInput) (StudentFees, error) {
	primary, middle, err := svc.schools.CandidateCounts(ctx, schoolCode)
	if err != nil {
		return StudentFees{}, err
	}

	old, err := svc.repo.GetStudentFees(ctx, schoolCode)
	exists := err == nil
	if err != nil && errors.Cause(err) != ErrNotFound {
		return StudentFees{}, errors.Wrap(err, "getting student fees")
	}

	now := svc.nowFunc().UTC()
	sf := StudentFees{
		SchoolCode:        schoolCode,
		PrimaryCandidates: primary,
		MiddleCandidates:  middle,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if exists {
		sf.CreatedAt = old.CreatedAt
	}
	in.applyTo(&sf)
	svc.pricing.Calculate(&sf)

	sf, err = svc.repo.SaveStudentFees(ctx, sf)
	if err != nil {
		return StudentFees{}, errors.Wrap(err, "saving student fees")
	}

	action := audit.FeesCreated
	var oldData interface{}
	if exists {
		action, oldData = audit.FeesUpdated, old
	}
	svc.recorder.Log(ctx, action, audit.ResourceStudentFees, schoolCode, oldData, sf, "student fees saved")
	return sf, nil
}

// Update applies the supplied fields to existing student fees.
func (svc *Service) Update(ctx context.Context, schoolCode string, in StudentFeesInput) (StudentFees, error) {
	old, err := svc.repo.GetStudentFees(ctx, schoolCode)
	if err != nil {
		return StudentFees{}, err
	}

	sf := old
	in.applyTo(&sf)
	svc.pricing.Calculate(&sf)
	sf.UpdatedAt = svc.nowFunc().UTC()

	sf, err = svc.repo.SaveStudentFees(ctx, sf)
	if err != nil {
		return StudentFees{}, errors.Wrap(err, "updating student fees")
	}
	svc.recorder.Log(ctx, audit.FeesUpdated, audit.ResourceStudentFees, schoolCode, old, sf, "student fees updated")
	return sf, nil
}
