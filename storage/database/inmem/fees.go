package inmemdb

import (
	"context"

	"github.com/pblportal/registry/core/fees"
)

type studentFeesRepository struct {
	db *DB
}

var _ fees.Repository = (*studentFeesRepository)(nil)

func NewStudentFeesRepository(db *DB) fees.Repository {
	return &studentFeesRepository{db: db}
}

func (repo *studentFeesRepository) GetStudentFees(_ context.Context, schoolCode string) (fees.StudentFees, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sf, ok := repo.db.studentFees[schoolCode]; ok {
		return sf, nil
	}
	return fees.StudentFees{}, fees.ErrNotFound
}

func (repo *studentFeesRepository) SaveStudentFees(_ context.Context, sf fees.StudentFees) (fees.StudentFees, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sf.Payment.Normalize()
	repo.db.studentFees[sf.SchoolCode] = sf
	return sf, nil
}
