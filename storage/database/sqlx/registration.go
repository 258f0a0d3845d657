package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/registration"
)

var (
	schoolColumns = []string{
		"school_code", "status", "school_name", "school_address", "contact_numbers", "school_type",
		"academic_year_start", "academic_year_end", "grade_level_from", "grade_level_till",
		"languages", "other_language",
		"principal_name", "principal_email", "principal_cell",
		"primary_coordinator_name", "primary_coordinator_email", "primary_coordinator_cell",
		"middle_coordinator_name", "middle_coordinator_email", "middle_coordinator_cell",
		"grade_iv", "grade_v", "grade_vi", "grade_vii", "grade_viii", "psp_msp_registration",
		"is_active", "registration_completed_at", "created_at", "updated_at",
	}
	resourcesColumns = []string{
		"school_code", "primary_teachers", "middle_teachers",
		"undergraduate_teachers", "graduate_teachers", "postgraduate_teachers", "education_degree_teachers",
		"total_weeks", "weekly_periods", "period_duration", "max_students",
		"facilities", "other_facility_1", "other_facility_2", "other_facility_3", "created_at", "updated_at",
	}
	feesColumns = []string{
		"school_code", "payment_method", "cheque_number", "cheque_date",
		"deposit_slip_number", "deposit_date", "deposit_pay_order_number", "amount",
		"head_of_institution", "disclaimer_accepted", "head_signature", "institution_stamp", "payment_screenshot",
		"created_at", "updated_at",
	}
	credentialsColumns = []string{"school_code", "username", "password", "is_active", "created_at", "updated_at"}

	insertSchoolQuery      = insertQuery("schools", schoolColumns)
	updateSchoolQuery      = updateQuery("schools", schoolColumns[2:], "school_code = :school_code AND status = :status")
	upsertResourcesQuery   = upsertQuery("resources", "school_code", resourcesColumns)
	upsertFeesQuery        = upsertQuery("fees", "school_code", feesColumns)
	insertCredentialsQuery = insertQuery("school_credentials", credentialsColumns)
	updateCredentialsQuery = updateQuery("school_credentials", []string{"password", "is_active", "updated_at"}, "username = :username")
)

type registrationRepository struct {
	db   *sqlx.DB
	exec sqlx.ExtContext // db, or the running transaction
	inTx bool
}

var _ registration.Repository = (*registrationRepository)(nil) // interface compliance check

func NewRegistrationRepository(db *sqlx.DB) registration.Repository {
	return &registrationRepository{db: db, exec: db}
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// namedGet runs a named query and scans its first row into dest.
func namedGet(ctx context.Context, exec sqlx.ExtContext, dest interface{}, query string, arg interface{}) error {
	rows, err := sqlx.NamedQueryContext(ctx, exec, query, arg)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	return rows.StructScan(dest)
}

func (repo *registrationRepository) WithinTx(ctx context.Context, fn func(repo registration.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(&registrationRepository{db: repo.db, exec: tx, inTx: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo *registrationRepository) CreateSchool(ctx context.Context, s registration.School) (registration.School, error) {
	var created registration.School
	if err := namedGet(ctx, repo.exec, &created, insertSchoolQuery, s); err != nil {
		if pqCode(err) == uniqueViolation {
			return registration.School{}, core.NewPreconditionError("school %s already exists", s.SchoolCode)
		}
		return registration.School{}, errors.Wrap(err, "inserting school")
	}
	return created, nil
}

func (repo *registrationRepository) UpdateSchool(ctx context.Context, s registration.School) (registration.School, error) {
	var updated registration.School
	if err := namedGet(ctx, repo.exec, &updated, updateSchoolQuery, s); err != nil {
		return registration.School{}, trapNoRowsErr(err, registration.ErrSchoolNotFound, "updating school")
	}
	return updated, nil
}

func (repo *registrationRepository) GetSchool(ctx context.Context, code string, status registration.Status) (registration.School, error) {
	q := `SELECT * FROM schools WHERE school_code = $1 AND ($2::text = '' OR status = $2::text)`
	if repo.inTx {
		q += " FOR UPDATE"
	}

	var s registration.School
	if err := sqlx.GetContext(ctx, repo.exec, &s, q, code, string(status)); err != nil {
		return registration.School{}, trapNoRowsErr(err, registration.ErrSchoolNotFound, "getting school")
	}
	return s, nil
}

func (repo *registrationRepository) QuerySchools(ctx context.Context, status registration.Status) ([]registration.School, error) {
	schools := make([]registration.School, 0)
	q := `SELECT * FROM schools WHERE status = $1 ORDER BY created_at DESC, school_code DESC`
	if err := sqlx.SelectContext(ctx, repo.exec, &schools, q, string(status)); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	return schools, nil
}

// DeleteSchool relies on the foreign keys to cascade to resources, fees and credentials.
func (repo *registrationRepository) DeleteSchool(ctx context.Context, code string, status registration.Status) error {
	_, err := repo.exec.ExecContext(ctx, `DELETE FROM schools WHERE school_code = $1 AND status = $2`, code, string(status))
	return errors.Wrap(err, "deleting school")
}

func (repo *registrationRepository) FinalizeSchool(ctx context.Context, code string, completedAt time.Time) (registration.School, error) {
	q := `UPDATE schools
		SET status = $3, is_active = TRUE, registration_completed_at = $4, updated_at = $4
		WHERE school_code = $1 AND status = $2
		RETURNING *`

	var s registration.School
	err := sqlx.GetContext(ctx, repo.exec, &s, q, code, string(registration.StatusDraft), string(registration.StatusFinal), completedAt.UTC())
	if err != nil {
		return registration.School{}, trapNoRowsErr(err, registration.ErrAlreadyCompleted, "finalizing school")
	}
	return s, nil
}

func (repo *registrationRepository) GetResources(ctx context.Context, code string, status registration.Status) (registration.Resources, error) {
	q := `SELECT r.* FROM resources r
		JOIN schools s ON s.school_code = r.school_code
		WHERE r.school_code = $1 AND s.status = $2`

	var r registration.Resources
	if err := sqlx.GetContext(ctx, repo.exec, &r, q, code, string(status)); err != nil {
		return registration.Resources{}, trapNoRowsErr(err, registration.ErrResourcesNotFound, "getting resources")
	}
	return r, nil
}

func (repo *registrationRepository) SaveResources(ctx context.Context, r registration.Resources) (registration.Resources, error) {
	var saved registration.Resources
	if err := namedGet(ctx, repo.exec, &saved, upsertResourcesQuery, r); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return registration.Resources{}, registration.ErrSchoolNotFound
		}
		return registration.Resources{}, errors.Wrap(err, "saving resources")
	}
	return saved, nil
}

func (repo *registrationRepository) GetFees(ctx context.Context, code string, status registration.Status) (registration.Fees, error) {
	q := `SELECT f.* FROM fees f
		JOIN schools s ON s.school_code = f.school_code
		WHERE f.school_code = $1 AND s.status = $2`

	var f registration.Fees
	if err := sqlx.GetContext(ctx, repo.exec, &f, q, code, string(status)); err != nil {
		return registration.Fees{}, trapNoRowsErr(err, registration.ErrFeesNotFound, "getting fees")
	}
	return f, nil
}

func (repo *registrationRepository) SaveFees(ctx context.Context, f registration.Fees) (registration.Fees, error) {
	f.Payment.Normalize()

	var saved registration.Fees
	if err := namedGet(ctx, repo.exec, &saved, upsertFeesQuery, f); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return registration.Fees{}, registration.ErrSchoolNotFound
		}
		return registration.Fees{}, errors.Wrap(err, "saving fees")
	}
	return saved, nil
}

func (repo *registrationRepository) CreateCredentials(ctx context.Context, c registration.Credentials) (registration.Credentials, error) {
	var created registration.Credentials
	if err := namedGet(ctx, repo.exec, &created, insertCredentialsQuery, c); err != nil {
		switch pqCode(err) {
		case uniqueViolation:
			return registration.Credentials{}, registration.ErrUsernameExists
		case foreignKeyViolation:
			return registration.Credentials{}, registration.ErrSchoolNotFound
		}
		return registration.Credentials{}, errors.Wrap(err, "inserting credentials")
	}
	return created, nil
}

func (repo *registrationRepository) GetCredentials(ctx context.Context, username string) (registration.Credentials, error) {
	var c registration.Credentials
	err := sqlx.GetContext(ctx, repo.exec, &c, `SELECT * FROM school_credentials WHERE username = $1`, username)
	if err != nil {
		return registration.Credentials{}, trapNoRowsErr(err, registration.ErrCredentialsNotFound, "getting credentials")
	}
	return c, nil
}

func (repo *registrationRepository) GetCredentialsBySchool(ctx context.Context, code string) (registration.Credentials, error) {
	var c registration.Credentials
	err := sqlx.GetContext(ctx, repo.exec, &c, `SELECT * FROM school_credentials WHERE school_code = $1 ORDER BY id LIMIT 1`, code)
	if err != nil {
		return registration.Credentials{}, trapNoRowsErr(err, registration.ErrCredentialsNotFound, "getting credentials")
	}
	return c, nil
}

func (repo *registrationRepository) UpdateCredentials(ctx context.Context, c registration.Credentials) (registration.Credentials, error) {
	var updated registration.Credentials
	if err := namedGet(ctx, repo.exec, &updated, updateCredentialsQuery, c); err != nil {
		return registration.Credentials{}, trapNoRowsErr(err, registration.ErrCredentialsNotFound, "updating credentials")
	}
	return updated, nil
}
