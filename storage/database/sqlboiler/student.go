package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/strmangle"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/core/student"
)

var studentColumns = []string{
	"student_id", "school_code", "student_name", "father_name", "gender", "date_of_birth", "grade",
	"created_at", "updated_at",
}

// selectStudents joins registered schools only: a deleted or draft school leaves school_name null.
const selectStudents = `SELECT st.*, s.school_name
	FROM students st
	LEFT JOIN schools s ON s.school_code = st.school_code AND s.status = '` + string(registration.StatusFinal) + `'`

type studentRepository struct {
	exec core.DBExecutor
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) student.Repository {
	return &studentRepository{exec: exec}
}

func studentArgs(s student.Student) []interface{} {
	return []interface{}{
		s.StudentID, s.SchoolCode, s.StudentName, s.FatherName, s.Gender, s.DateOfBirth.UTC(), string(s.Grade),
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	}
}

// postgres caps a statement at 65535 bind parameters
const maxBindParams = 65535

var maxInsertRows = maxBindParams / len(studentColumns)

// CreateStudents inserts the batch with multi-row INSERTs. Batches above maxInsertRows are split
// into several statements run in one transaction, so the batch is still all-or-nothing.
func (repo *studentRepository) CreateStudents(ctx context.Context, students []student.Student) ([]student.Student, error) {
	if len(students) == 0 {
		return []student.Student{}, nil
	}
	if len(students) <= maxInsertRows {
		return insertStudents(ctx, repo.exec, students)
	}

	db, ok := repo.exec.(core.DB)
	if !ok {
		// already inside the caller's transaction
		return insertStudentChunks(ctx, repo.exec, students)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "starting transaction")
	}
	created, err := insertStudentChunks(ctx, tx, students)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing students")
	}
	return created, nil
}

func insertStudentChunks(ctx context.Context, exec core.DBExecutor, students []student.Student) ([]student.Student, error) {
	created := make([]student.Student, 0, len(students))
	for start := 0; start < len(students); start += maxInsertRows {
		end := start + maxInsertRows
		if end > len(students) {
			end = len(students)
		}
		chunk, err := insertStudents(ctx, exec, students[start:end])
		if err != nil {
			return nil, err
		}
		created = append(created, chunk...)
	}
	return created, nil
}

func insertStudents(ctx context.Context, exec core.DBExecutor, students []student.Student) ([]student.Student, error) {
	cols := len(studentColumns)
	args := make([]interface{}, 0, len(students)*cols)
	for _, s := range students {
		args = append(args, studentArgs(s)...)
	}
	q := fmt.Sprintf(
		`WITH ins AS (INSERT INTO students (%s) VALUES %s RETURNING *)
		SELECT ins.*, s.school_name FROM ins
		LEFT JOIN schools s ON s.school_code = ins.school_code AND s.status = '%s'`,
		strings.Join(studentColumns, ", "),
		strmangle.Placeholders(true, len(students)*cols, 1, cols),
		registration.StatusFinal)

	var inserted []student.Student
	if err := queries.Raw(q, args...).Bind(ctx, exec, &inserted); err != nil {
		if isDuplicateID(err) {
			return nil, core.NewPreconditionError("student IDs were taken by a concurrent enrolment, please retry")
		}
		return nil, errors.Wrap(err, "inserting students")
	}

	// RETURNING order is not guaranteed
	byID := make(map[string]student.Student, len(inserted))
	for _, s := range inserted {
		byID[s.StudentID] = s
	}
	created := make([]student.Student, 0, len(students))
	for _, s := range students {
		created = append(created, byID[s.StudentID])
	}
	return created, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, studentID string) (student.Student, error) {
	var s student.Student
	err := queries.Raw(selectStudents+` WHERE st.student_id = $1`, studentID).Bind(ctx, repo.exec, &s)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	return s, nil
}

// UpdateStudent never moves a student to another school.
func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	q := `UPDATE students
		SET student_name = $2, father_name = $3, gender = $4, date_of_birth = $5, grade = $6, updated_at = $7
		WHERE student_id = $1`
	res, err := queries.Raw(q,
		s.StudentID, s.StudentName, s.FatherName, s.Gender, s.DateOfBirth.UTC(), string(s.Grade), s.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudent(ctx, s.StudentID)
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.Filter) ([]student.Student, error) {
	q := selectStudents
	var args []interface{}
	if filter.SchoolCode != "" {
		q += ` WHERE st.school_code = $1`
		args = append(args, filter.SchoolCode)
	}
	q += ` ORDER BY st.created_at DESC, st.student_id DESC`

	students := make([]student.Student, 0)
	if err := queries.Raw(q, args...).Bind(ctx, repo.exec, &students); err != nil && errors.Cause(err) != sql.ErrNoRows {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (repo *studentRepository) StudentIDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := repo.exec.QueryContext(ctx, `SELECT student_id FROM students WHERE starts_with(student_id, $1)`, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "querying student ids")
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scanning student id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "querying student ids")
}

// isDuplicateID reports a concurrent import that took the same student ID.
func isDuplicateID(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}
