package sqlxrepos

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	uniqueViolation     pq.ErrorCode = "23505"
	foreignKeyViolation pq.ErrorCode = "23503"
)

func pqCode(err error) pq.ErrorCode {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code
	}
	return ""
}

func insertQuery(table string, cols []string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (:%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(cols, ", :"))
}

// upsertQuery inserts a row or overwrites every column but key and created_at.
func upsertQuery(table, key string, cols []string) string {
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == key || col == "created_at" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (:%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(cols, ", :"), key, strings.Join(sets, ", "))
}

func updateQuery(table string, cols []string, where string) string {
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = :%s", col, col))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *", table, strings.Join(sets, ", "), where)
}
