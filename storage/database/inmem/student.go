package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

// withSchoolName mimics the left join on registered schools.
func (repo *studentRepository) withSchoolName(s student.Student) student.Student {
	s.SchoolName = null.String{}
	if school, ok := repo.db.schools[s.SchoolCode]; ok && school.Status == registration.StatusFinal {
		s.SchoolName = null.StringFrom(school.SchoolName)
	}
	return s
}

func (repo *studentRepository) CreateStudents(_ context.Context, students []student.Student) ([]student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	seen := make(map[string]bool, len(students))
	for _, s := range students {
		if _, ok := repo.db.students[s.StudentID]; ok || seen[s.StudentID] {
			return nil, errors.Errorf("student %s already exists", s.StudentID)
		}
		seen[s.StudentID] = true
	}

	created := make([]student.Student, 0, len(students))
	for _, s := range students {
		s.SchoolName = null.String{}
		repo.db.studentSeq++
		repo.db.students[s.StudentID] = s
		repo.db.studentOrder[s.StudentID] = repo.db.studentSeq
		created = append(created, repo.withSchoolName(s))
	}
	return created, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, studentID string) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.students[studentID]; ok {
		return repo.withSchoolName(s), nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.students[s.StudentID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	s.SchoolCode, s.CreatedAt = orig.SchoolCode, orig.CreatedAt
	s.SchoolName = null.String{}
	repo.db.students[s.StudentID] = s
	return repo.withSchoolName(s), nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.Filter) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0)
	for _, s := range repo.db.students {
		if filter.SchoolCode != "" && s.SchoolCode != filter.SchoolCode {
			continue
		}
		students = append(students, repo.withSchoolName(s))
	}
	order := repo.db.studentOrder
	sort.Slice(students, func(i, j int) bool {
		if students[i].CreatedAt.Equal(students[j].CreatedAt) {
			return order[students[i].StudentID] > order[students[j].StudentID]
		}
		return students[i].CreatedAt.After(students[j].CreatedAt)
	})
	return students, nil
}

func (repo *studentRepository) StudentIDsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids []string
	for id := range repo.db.students {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
