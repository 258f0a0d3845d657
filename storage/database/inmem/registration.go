package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/registration"
)

type registrationRepository struct {
	db   *DB
	inTx bool // the transaction already holds the write lock
}

var _ registration.Repository = (*registrationRepository)(nil) // interface compliance check

func NewRegistrationRepository(db *DB) registration.Repository {
	return &registrationRepository{db: db}
}

func (repo *registrationRepository) rlock() func() {
	if repo.inTx {
		return func() {}
	}
	repo.db.mu.RLock()
	return repo.db.mu.RUnlock
}

func (repo *registrationRepository) lock() func() {
	if repo.inTx {
		return func() {}
	}
	repo.db.mu.Lock()
	return repo.db.mu.Unlock
}

func (repo *registrationRepository) WithinTx(ctx context.Context, fn func(repo registration.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	snap := repo.db.state.snapshot()
	if err := fn(&registrationRepository{db: repo.db, inTx: true}); err != nil {
		repo.db.state = snap
		return err
	}
	return nil
}

func (repo *registrationRepository) getSchool(code string, status registration.Status) (registration.School, bool) {
	s, ok := repo.db.schools[code]
	if !ok || (status != "" && s.Status != status) {
		return registration.School{}, false
	}
	return s, true
}

func (repo *registrationRepository) CreateSchool(_ context.Context, s registration.School) (registration.School, error) {
	defer repo.lock()()

	if _, ok := repo.db.schools[s.SchoolCode]; ok {
		return registration.School{}, core.NewPreconditionError("school %s already exists", s.SchoolCode)
	}
	s.Languages = s.Languages.Clone()
	s.PspMspRegistration = s.PspMspRegistration.Clone()
	repo.db.schools[s.SchoolCode] = s
	return s, nil
}

func (repo *registrationRepository) UpdateSchool(_ context.Context, s registration.School) (registration.School, error) {
	defer repo.lock()()

	if _, ok := repo.getSchool(s.SchoolCode, s.Status); !ok {
		return registration.School{}, registration.ErrSchoolNotFound
	}
	s.Languages = s.Languages.Clone()
	s.PspMspRegistration = s.PspMspRegistration.Clone()
	repo.db.schools[s.SchoolCode] = s
	return s, nil
}

func (repo *registrationRepository) GetSchool(_ context.Context, code string, status registration.Status) (registration.School, error) {
	defer repo.rlock()()

	if s, ok := repo.getSchool(code, status); ok {
		return s, nil
	}
	return registration.School{}, registration.ErrSchoolNotFound
}

func (repo *registrationRepository) QuerySchools(_ context.Context, status registration.Status) ([]registration.School, error) {
	defer repo.rlock()()

	schools := make([]registration.School, 0, len(repo.db.schools))
	for _, s := range repo.db.schools {
		if s.Status == status {
			schools = append(schools, s)
		}
	}
	sort.Slice(schools, func(i, j int) bool {
		if schools[i].CreatedAt.Equal(schools[j].CreatedAt) {
			return schools[i].SchoolCode > schools[j].SchoolCode
		}
		return schools[i].CreatedAt.After(schools[j].CreatedAt)
	})
	return schools, nil
}

func (repo *registrationRepository) DeleteSchool(_ context.Context, code string, status registration.Status) error {
	defer repo.lock()()

	if _, ok := repo.getSchool(code, status); !ok {
		return nil
	}
	delete(repo.db.fees, code)
	delete(repo.db.resources, code)
	delete(repo.db.studentFees, code)
	for username, c := range repo.db.credentials {
		if c.SchoolCode == code {
			delete(repo.db.credentials, username)
		}
	}
	delete(repo.db.schools, code)
	return nil
}

func (repo *registrationRepository) FinalizeSchool(_ context.Context, code string, completedAt time.Time) (registration.School, error) {
	defer repo.lock()()

	s, ok := repo.getSchool(code, registration.StatusDraft)
	if !ok {
		return registration.School{}, registration.ErrAlreadyCompleted
	}
	s.Status = registration.StatusFinal
	s.IsActive = true
	s.RegistrationCompletedAt = null.TimeFrom(completedAt)
	s.UpdatedAt = completedAt
	repo.db.schools[code] = s
	return s, nil
}

func (repo *registrationRepository) GetResources(_ context.Context, code string, status registration.Status) (registration.Resources, error) {
	defer repo.rlock()()

	if _, ok := repo.getSchool(code, status); ok {
		if r, ok := repo.db.resources[code]; ok {
			return r, nil
		}
	}
	return registration.Resources{}, registration.ErrResourcesNotFound
}

func (repo *registrationRepository) SaveResources(_ context.Context, r registration.Resources) (registration.Resources, error) {
	defer repo.lock()()

	if _, ok := repo.db.schools[r.SchoolCode]; !ok {
		return registration.Resources{}, registration.ErrSchoolNotFound
	}
	r.Facilities = r.Facilities.Clone()
	repo.db.resources[r.SchoolCode] = r
	return r, nil
}

func (repo *registrationRepository) GetFees(_ context.Context, code string, status registration.Status) (registration.Fees, error) {
	defer repo.rlock()()

	if _, ok := repo.getSchool(code, status); ok {
		if f, ok := repo.db.fees[code]; ok {
			return f, nil
		}
	}
	return registration.Fees{}, registration.ErrFeesNotFound
}

func (repo *registrationRepository) SaveFees(_ context.Context, f registration.Fees) (registration.Fees, error) {
	defer repo.lock()()

	if _, ok := repo.db.schools[f.SchoolCode]; !ok {
		return registration.Fees{}, registration.ErrSchoolNotFound
	}
	f.Payment.Normalize()
	repo.db.fees[f.SchoolCode] = f
	return f, nil
}

func (repo *registrationRepository) CreateCredentials(_ context.Context, c registration.Credentials) (registration.Credentials, error) {
	defer repo.lock()()

	if _, ok := repo.db.credentials[c.Username]; ok {
		return registration.Credentials{}, registration.ErrUsernameExists
	}
	repo.db.credentialsPK++
	c.ID = repo.db.credentialsPK
	repo.db.credentials[c.Username] = c
	return c, nil
}

func (repo *registrationRepository) GetCredentials(_ context.Context, username string) (registration.Credentials, error) {
	defer repo.rlock()()

	if c, ok := repo.db.credentials[username]; ok {
		return c, nil
	}
	return registration.Credentials{}, registration.ErrCredentialsNotFound
}

func (repo *registrationRepository) GetCredentialsBySchool(_ context.Context, code string) (registration.Credentials, error) {
	defer repo.rlock()()

	var (
		found registration.Credentials
		ok    bool
	)
	for _, c := range repo.db.credentials {
		if c.SchoolCode == code && (!ok || c.ID < found.ID) {
			found, ok = c, true
		}
	}
	if !ok {
		return registration.Credentials{}, registration.ErrCredentialsNotFound
	}
	return found, nil
}

func (repo *registrationRepository) UpdateCredentials(_ context.Context, c registration.Credentials) (registration.Credentials, error) {
	defer repo.lock()()

	orig, ok := repo.db.credentials[c.Username]
	if !ok {
		return registration.Credentials{}, registration.ErrCredentialsNotFound
	}
	c.ID, c.CreatedAt = orig.ID, orig.CreatedAt
	repo.db.credentials[c.Username] = c
	return c, nil
}
