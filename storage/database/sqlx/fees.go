package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core/fees"
	"github.com/pblportal/registry/core/registration"
)

var upsertStudentFeesQuery = upsertQuery("student_fees", "school_code", []string{
	"school_code", "payment_method", "cheque_number", "cheque_date",
	"deposit_slip_number", "deposit_date", "deposit_pay_order_number",
	"total_amount", "primary_amount", "middle_amount", "primary_candidates", "middle_candidates",
	"head_of_institution", "disclaimer_accepted", "head_signature", "institution_stamp", "payment_screenshot",
	"created_at", "updated_at",
})

type studentFeesRepository struct {
	db *sqlx.DB
}

var _ fees.Repository = (*studentFeesRepository)(nil) // interface compliance check

func NewStudentFeesRepository(db *sqlx.DB) fees.Repository {
	return &studentFeesRepository{db: db}
}

func (repo *studentFeesRepository) GetStudentFees(ctx context.Context, schoolCode string) (fees.StudentFees, error) {
	var sf fees.StudentFees
	err := repo.db.GetContext(ctx, &sf, `SELECT * FROM student_fees WHERE school_code = $1`, schoolCode)
	if err != nil {
		return fees.StudentFees{}, trapNoRowsErr(err, fees.ErrNotFound, "getting student fees")
	}
	return sf, nil
}

func (repo *studentFeesRepository) SaveStudentFees(ctx context.Context, sf fees.StudentFees) (fees.StudentFees, error) {
	sf.Payment.Normalize()

	var saved fees.StudentFees
	if err := namedGet(ctx, repo.db, &saved, upsertStudentFeesQuery, sf); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return fees.StudentFees{}, registration.ErrSchoolNotFound
		}
		return fees.StudentFees{}, errors.Wrap(err, "saving student fees")
	}
	return saved, nil
}
