package boiledrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/core/student"
	boiledrepos "github.com/pblportal/registry/storage/database/sqlboiler"
	sqlxrepos "github.com/pblportal/registry/storage/database/sqlx"
	"github.com/pblportal/registry/tests"
)

func TestStudentRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	schools := sqlxrepos.NewRegistrationRepository(db)
	repo := boiledrepos.NewStudentRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	dob := time.Date(2012, 3, 4, 0, 0, 0, 0, time.UTC)

	testutil.CreateSchool(t, schools, "0405", "Green Valley", registration.StatusFinal, now)

	batch := []student.Student{
		{StudentID: "0405-06-01", SchoolCode: "0405", StudentName: "Ali", FatherName: "Raza", Gender: "M", DateOfBirth: dob, Grade: student.GradeVI, CreatedAt: now, UpdatedAt: now},
		{StudentID: "0405-06-02", SchoolCode: "0405", StudentName: "Sara", FatherName: "Ahmed", Gender: "F", DateOfBirth: dob, Grade: student.GradeVI, CreatedAt: now, UpdatedAt: now},
		{StudentID: "0777-04-01", SchoolCode: "0777", StudentName: "Hina", FatherName: "Imran", Gender: "F", DateOfBirth: dob, Grade: student.GradeIV, CreatedAt: now, UpdatedAt: now},
	}
	created, err := repo.CreateStudents(ctx, batch)
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, "0405-06-01", created[0].StudentID)
	assert.Equal(t, null.StringFrom("Green Valley"), created[0].SchoolName)
	assert.False(t, created[2].SchoolName.Valid)

	ids, err := repo.StudentIDsWithPrefix(ctx, student.IDPrefix("0405", student.GradeVI))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0405-06-01", "0405-06-02"}, ids)

	students, err := repo.QueryStudents(ctx, student.Filter{SchoolCode: "0405"})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "0405-06-02", students[0].StudentID)

	s := created[1]
	s.StudentName = "Sara Ahmed"
	s.UpdatedAt = now.Add(time.Minute)
	updated, err := repo.UpdateStudent(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "Sara Ahmed", updated.StudentName)

	_, err = repo.GetStudent(ctx, "0405-06-99")
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))

	require.NoError(t, schools.DeleteSchool(ctx, "0405", registration.StatusFinal))
	got, err := repo.GetStudent(ctx, "0405-06-01")
	require.NoError(t, err)
	assert.False(t, got.SchoolName.Valid, "students outlive their school")
}

func TestStudentRepository_LargeBatch(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := boiledrepos.NewStudentRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	dob := time.Date(2012, 3, 4, 0, 0, 0, 0, time.UTC)

	// more rows than fit in one statement's bind parameters
	batch := make([]student.Student, 0, 7300)
	for i := 1; i <= 7300; i++ {
		batch = append(batch, student.Student{
			StudentID: student.FormatID("0405", student.GradeVI, i), SchoolCode: "0405", StudentName: "Ali",
			FatherName: "Raza", Gender: "M", DateOfBirth: dob, Grade: student.GradeVI, CreatedAt: now, UpdatedAt: now,
		})
	}

	t.Run("duplicate in the last chunk rolls back everything", func(t *testing.T) {
		dup := append(append([]student.Student{}, batch...), batch[0])
		_, err := repo.CreateStudents(ctx, dup)
		require.Error(t, err)

		var count int
		require.NoError(t, db.Get(&count, `SELECT count(*) FROM students`))
		assert.Zero(t, count)
	})

	created, err := repo.CreateStudents(ctx, batch)
	require.NoError(t, err)
	require.Len(t, created, len(batch))
	assert.Equal(t, batch[0].StudentID, created[0].StudentID)
	assert.Equal(t, batch[7299].StudentID, created[7299].StudentID)

	ids, err := repo.StudentIDsWithPrefix(ctx, student.IDPrefix("0405", student.GradeVI))
	require.NoError(t, err)
	assert.Len(t, ids, len(batch))
}

func TestAuditRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := boiledrepos.NewAuditRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i, action := range []audit.Action{audit.DraftCreated, audit.DraftUpdated, audit.UserLogin} {
		_, err := repo.CreateEntry(ctx, audit.Entry{
			Action:    action,
			Resource:  null.StringFrom(audit.ResourceDraft),
			NewData:   null.JSONFrom([]byte(`{"schoolCode":"0405"}`)),
			Success:   true,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	entries, err := repo.QueryEntries(ctx, audit.Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.UserLogin, entries[0].Action)
	assert.JSONEq(t, `{"schoolCode":"0405"}`, string(entries[0].NewData.JSON))

	entries, err = repo.QueryEntries(ctx, audit.Filter{Action: string(audit.DraftCreated), Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
}
