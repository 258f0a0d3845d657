package registration

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
)

var (
	// errors
	ErrSchoolNotFound      = core.NewNotFoundError("school")
	ErrDraftNotFound       = core.NewNotFoundError("draft school")
	ErrResourcesNotFound   = core.NewNotFoundError("resources")
	ErrFeesNotFound        = core.NewNotFoundError("fees")
	ErrCredentialsNotFound = core.NewNotFoundError("credentials")
	ErrAlreadyCompleted    = core.NewPreconditionError("registration is already completed")
	ErrUsernameExists      = core.NewPreconditionError("a school with this username already exists")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInactive            = errors.New("this account is inactive")
)

type (
	// Repository persists schools in both lifecycle phases. Resources and fees share the phase
	// of their school. Every "not found" is reported with the sentinel errors above.
	Repository interface {
		CreateSchool(ctx context.Context, s School) (School, error)
		UpdateSchool(ctx context.Context, s School) (School, error)
		// GetSchool fetches the school in the given phase; an empty status matches either.
		// Inside WithinTx the row is locked until the transaction ends.
		GetSchool(ctx context.Context, code string, status Status) (School, error)
		// QuerySchools lists the schools of a phase, most recent first.
		QuerySchools(ctx context.Context, status Status) ([]School, error)
		// DeleteSchool removes the school with its resources, fees and credentials. Missing rows are not an error.
		DeleteSchool(ctx context.Context, code string, status Status) error
		// FinalizeSchool flips a draft school to final. ErrAlreadyCompleted when no draft row was affected.
		FinalizeSchool(ctx context.Context, code string, completedAt time.Time) (School, error)

		GetResources(ctx context.Context, code string, status Status) (Resources, error)
		SaveResources(ctx context.Context, r Resources) (Resources, error)
		GetFees(ctx context.Context, code string, status Status) (Fees, error)
		SaveFees(ctx context.Context, f Fees) (Fees, error)

		CreateCredentials(ctx context.Context, c Credentials) (Credentials, error)
		GetCredentials(ctx context.Context, username string) (Credentials, error)
		GetCredentialsBySchool(ctx context.Context, code string) (Credentials, error)
		UpdateCredentials(ctx context.Context, c Credentials) (Credentials, error)

		// WithinTx runs fn atomically: any error it returns discards all of its writes.
		WithinTx(ctx context.Context, fn func(repo Repository) error) error
	}

	Service struct {
		repo     Repository
		recorder *audit.Recorder
		mailer   core.EmailService
		logger   core.Logger
		conf     *core.Config
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, recorder *audit.Recorder, mailer core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		mailer:   mailer,
		logger:   logger,
		conf:     conf,
		nowFunc:  time.Now,
	}
}

func (svc *Service) now() time.Time {
	return svc.nowFunc().UTC()
}

// Drafts

// SaveDraftSchool creates the draft school or replaces its fields.
func (svc *Service) SaveDraftSchool(ctx context.Context, ns NewSchool) (School, error) {
	existing, err := svc.repo.GetSchool(ctx, ns.SchoolCode, "")
	exists := err == nil
	if err != nil && errors.Cause(err) != ErrSchoolNotFound {
		return School{}, errors.Wrap(err, "getting school")
	}
	if exists && existing.Status == StatusFinal {
		return School{}, core.NewPreconditionError("school %s is already registered", ns.SchoolCode)
	}

	now := svc.now()
	school := School{
		SchoolCode: ns.SchoolCode,
		Status:     StatusDraft,
		SchoolName: ns.SchoolName,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ns.SchoolDetails.applyTo(&school)

	if exists {
		school.CreatedAt = existing.CreatedAt
		if school, err = svc.repo.UpdateSchool(ctx, school); err != nil {
			return School{}, errors.Wrap(err, "updating draft school")
		}
		svc.recorder.Log(ctx, audit.DraftUpdated, audit.ResourceDraft, school.SchoolCode, existing, school, "")
		return school, nil
	}

	if school, err = svc.repo.CreateSchool(ctx, school); err != nil {
		return School{}, errors.Wrap(err, "creating draft school")
	}
	svc.recorder.Log(ctx, audit.DraftCreated, audit.ResourceDraft, school.SchoolCode, nil, school, "")
	return school, nil
}

func (svc *Service) GetDraftSchool(ctx context.Context, code string) (School, error) {
	school, err := svc.repo.GetSchool(ctx, code, StatusDraft)
	if errors.Cause(err) == ErrSchoolNotFound {
		return School{}, ErrDraftNotFound
	}
	return school, err
}

func (svc *Service) QueryDraftSchools(ctx context.Context) ([]School, error) {
	return svc.repo.QuerySchools(ctx, StatusDraft)
}

// DeleteDraftSchool discards a draft with its resources and fees. Deleting a missing draft is a no-op.
func (svc *Service) DeleteDraftSchool(ctx context.Context, code string) error {
	old, err := svc.GetDraftSchool(ctx, code)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err = svc.repo.DeleteSchool(ctx, code, StatusDraft); err != nil {
		return errors.Wrap(err, "deleting draft school")
	}
	svc.recorder.Log(ctx, audit.DraftDeleted, audit.ResourceDraft, code, old, nil, "")
	return nil
}

func (svc *Service) SaveDraftResources(ctx context.Context, nr NewResources) (Resources, error) {
	if _, err := svc.GetDraftSchool(ctx, nr.SchoolCode); err != nil {
		return Resources{}, err
	}

	now := svc.now()
	res := Resources{SchoolCode: nr.SchoolCode, CreatedAt: now, UpdatedAt: now}
	nr.ResourcesInput.applyTo(&res)
	return svc.saveResources(ctx, StatusDraft, res)
}

func (svc *Service) GetDraftResources(ctx context.Context, code string) (Resources, error) {
	return svc.repo.GetResources(ctx, code, StatusDraft)
}

func (svc *Service) SaveDraftFees(ctx context.Context, nf NewFees) (Fees, error) {
	if _, err := svc.GetDraftSchool(ctx, nf.SchoolCode); err != nil {
		return Fees{}, err
	}

	now := svc.now()
	f := Fees{SchoolCode: nf.SchoolCode, Amount: svc.conf.Fees.DraftAmount, CreatedAt: now, UpdatedAt: now}
	nf.FeesInput.applyTo(&f)
	return svc.saveFees(ctx, StatusDraft, f)
}

func (svc *Service) GetDraftFees(ctx context.Context, code string) (Fees, error) {
	return svc.repo.GetFees(ctx, code, StatusDraft)
}

// Registered schools

func (svc *Service) GetSchool(ctx context.Context, code string) (School, error) {
	return svc.repo.GetSchool(ctx, code, StatusFinal)
}

func (svc *Service) QuerySchools(ctx context.Context) ([]School, error) {
	return svc.repo.QuerySchools(ctx, StatusFinal)
}

func (svc *Service) UpdateSchool(ctx context.Context, code string, us UpdateSchool) (School, error) {
	old, err := svc.GetSchool(ctx, code)
	if err != nil {
		return School{}, err
	}

	school := old
	us.applyTo(&school)
	school.UpdatedAt = svc.now()
	if school, err = svc.repo.UpdateSchool(ctx, school); err != nil {
		return School{}, errors.Wrap(err, "updating school")
	}
	svc.recorder.Log(ctx, audit.SchoolUpdated, audit.ResourceSchool, code, old, school, "")
	return school, nil
}

// ToggleSchool flips the active flag of a registered school.
func (svc *Service) ToggleSchool(ctx context.Context, code string) (School, error) {
	old, err := svc.GetSchool(ctx, code)
	if err != nil {
		return School{}, err
	}

	school := old
	school.IsActive = !old.IsActive
	school.UpdatedAt = svc.now()
	if school, err = svc.repo.UpdateSchool(ctx, school); err != nil {
		return School{}, errors.Wrap(err, "toggling school")
	}

	action := audit.SchoolDeactivated
	if school.IsActive {
		action = audit.SchoolActivated
	}
	svc.recorder.Log(ctx, action, audit.ResourceSchool, code, old, school, "")
	return school, nil
}

// DeleteSchool removes a registered school with its resources, fees and credentials.
// Students are kept; they are listed without a school name afterwards.
func (svc *Service) DeleteSchool(ctx context.Context, code string) error {
	old, err := svc.GetSchool(ctx, code)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err = svc.repo.DeleteSchool(ctx, code, StatusFinal); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	svc.recorder.Log(ctx, audit.SchoolDeleted, audit.ResourceSchool, code, old, nil, "")
	return nil
}

func (svc *Service) GetResources(ctx context.Context, code string) (Resources, error) {
	return svc.repo.GetResources(ctx, code, StatusFinal)
}

// UpdateResources applies the supplied fields to the resources of a registered school, creating them if needed.
func (svc *Service) UpdateResources(ctx context.Context, code string, in ResourcesInput) (Resources, error) {
	if _, err := svc.GetSchool(ctx, code); err != nil {
		return Resources{}, err
	}

	now := svc.now()
	res, err := svc.repo.GetResources(ctx, code, StatusFinal)
	if err != nil {
		if errors.Cause(err) != ErrResourcesNotFound {
			return Resources{}, errors.Wrap(err, "getting resources")
		}
		res = Resources{SchoolCode: code, CreatedAt: now}
	}
	in.applyTo(&res)
	res.UpdatedAt = now
	return svc.saveResources(ctx, StatusFinal, res)
}

func (svc *Service) GetFees(ctx context.Context, code string) (Fees, error) {
	return svc.repo.GetFees(ctx, code, StatusFinal)
}

// UpdateFees applies the supplied fields to the fees of a registered school, creating them if needed.
func (svc *Service) UpdateFees(ctx context.Context, code string, in FeesInput) (Fees, error) {
	if _, err := svc.GetSchool(ctx, code); err != nil {
		return Fees{}, err
	}

	now := svc.now()
	f, err := svc.repo.GetFees(ctx, code, StatusFinal)
	if err != nil {
		if errors.Cause(err) != ErrFeesNotFound {
			return Fees{}, errors.Wrap(err, "getting fees")
		}
		f = Fees{SchoolCode: code, Amount: svc.conf.Fees.DraftAmount, CreatedAt: now}
	}
	in.applyTo(&f)
	f.UpdatedAt = now
	return svc.saveFees(ctx, StatusFinal, f)
}

// IsRegistered reports whether code belongs to a registered school.
func (svc *Service) IsRegistered(ctx context.Context, code string) (bool, error) {
	_, err := svc.GetSchool(ctx, code)
	switch errors.Cause(err) {
	case nil:
		return true, nil
	case ErrSchoolNotFound:
		return false, nil
	default:
		return false, err
	}
}

// CandidateCounts gives the enrolment of a registered school per level.
func (svc *Service) CandidateCounts(ctx context.Context, code string) (primary, middle int, err error) {
	school, err := svc.GetSchool(ctx, code)
	if err != nil {
		return 0, 0, err
	}
	primary, middle = school.CandidateCounts()
	return primary, middle, nil
}

// saveResources upserts the resources of a school in the given phase, keeping the original creation time.
func (svc *Service) saveResources(ctx context.Context, status Status, res Resources) (Resources, error) {
	old, err := svc.repo.GetResources(ctx, res.SchoolCode, status)
	exists := err == nil
	if err != nil && errors.Cause(err) != ErrResourcesNotFound {
		return Resources{}, errors.Wrap(err, "getting resources")
	}
	if exists {
		res.CreatedAt = old.CreatedAt
	}

	if res, err = svc.repo.SaveResources(ctx, res); err != nil {
		return Resources{}, errors.Wrap(err, "saving resources")
	}

	if exists {
		svc.recorder.Log(ctx, audit.ResourcesUpdated, audit.ResourceResources, res.SchoolCode, old, res, string(status))
	} else {
		svc.recorder.Log(ctx, audit.ResourcesCreated, audit.ResourceResources, res.SchoolCode, nil, res, string(status))
	}
	return res, nil
}

func (svc *Service) saveFees(ctx context.Context, status Status, f Fees) (Fees, error) {
	old, err := svc.repo.GetFees(ctx, f.SchoolCode, status)
	exists := err == nil
	if err != nil && errors.Cause(err) != ErrFeesNotFound {
		return Fees{}, errors.Wrap(err, "getting fees")
	}
	if exists {
		f.CreatedAt = old.CreatedAt
	}

	if f, err = svc.repo.SaveFees(ctx, f); err != nil {
		return Fees{}, errors.Wrap(err, "saving fees")
	}

	if exists {
		svc.recorder.Log(ctx, audit.FeesUpdated, audit.ResourceFees, f.SchoolCode, old, f, string(status))
	} else {
		svc.recorder.Log(ctx, audit.FeesCreated, audit.ResourceFees, f.SchoolCode, nil, f, string(status))
	}
	return f, nil
}
