package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint failure. When hints
// are given, at least one must appear in the constraint name or error text
// (postgres reports the index name, sqlite reports "table.column").
func IsUniqueViolation(err error, hints ...string) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == pgUniqueViolation && matchesHint(pgxErr.ConstraintName+" "+pgxErr.Message, hints)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation && matchesHint(pqErr.Constraint+" "+pqErr.Message, hints)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return matchesHint(msg, hints)
}

func matchesHint(text string, hints []string) bool {
	if len(hints) == 0 {
		return true
	}
	for _, hint := range hints {
		if hint != "" && strings.Contains(text, hint) {
			return true
		}
	}
	return false
}
