package inmemdb

import (
	"context"

	"github.com/pblportal/registry/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(_ context.Context, e audit.Entry) (audit.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.auditPK++
	e.ID = repo.db.auditPK
	repo.db.auditLogs = append(repo.db.auditLogs, e)
	return e, nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]audit.Entry, 0)
	// entries are appended in creation order
	for i := len(repo.db.auditLogs) - 1; i >= 0; i-- {
		if filter.Limit > 0 && len(entries) >= filter.Limit {
			break
		}
		e := repo.db.auditLogs[i]
		if filter.Action != "" && string(e.Action) != filter.Action {
			continue
		}
		if filter.UserID != "" && e.UserID.String != filter.UserID {
			continue
		}
		if filter.Resource != "" && e.Resource.String != filter.Resource {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
