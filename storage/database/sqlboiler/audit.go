package boiledrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/strmangle"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
)

var auditColumns = []string{
	"action", "user_id", "username", "ip_address", "user_agent", "resource", "resource_id",
	"old_data", "new_data", "details", "success", "error_message", "session_id", "created_at",
}

type auditRepository struct {
	exec core.DBExecutor
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(exec core.DBExecutor) audit.Repository {
	return &auditRepository{exec: exec}
}

func (repo *auditRepository) CreateEntry(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	q := fmt.Sprintf(
		"INSERT INTO audit_logs (%s) VALUES %s RETURNING *",
		strings.Join(auditColumns, ", "), strmangle.Placeholders(true, len(auditColumns), 1, len(auditColumns)))

	var created audit.Entry
	err := queries.Raw(q,
		string(e.Action), e.UserID, e.Username, e.IPAddress, e.UserAgent, e.Resource, e.ResourceID,
		e.OldData, e.NewData, e.Details, e.Success, e.ErrorMessage, e.SessionID, e.CreatedAt.UTC(),
	).Bind(ctx, repo.exec, &created)
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return created, nil
}

func (repo *auditRepository) QueryEntries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	addCond := func(col string, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	addCond("action", filter.Action)
	addCond("user_id", filter.UserID)
	addCond("resource", filter.Resource)

	q := "SELECT * FROM audit_logs"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	entries := make([]audit.Entry, 0)
	if err := queries.Raw(q, args...).Bind(ctx, repo.exec, &entries); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}
	return entries, nil
}
