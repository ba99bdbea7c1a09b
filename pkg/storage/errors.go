package storage

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// pqUniqueViolation is the SQLSTATE postgres raises for a duplicate key
const pqUniqueViolation = "23505"

// UniqueViolation reports whether err is a unique constraint failure and, when
// the driver names it, the offending column.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != pqUniqueViolation {
			return "", false
		}
		// Default constraint names are <table>_<column>_key
		column := strings.TrimSuffix(pqErr.Constraint, "_key")
		return strings.TrimPrefix(column, pqErr.Table+"_"), true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
			return "", false
		}
		// "UNIQUE constraint failed: users.email"
		msg := liteErr.Error()
		if i := strings.LastIndex(msg, ": "); i >= 0 {
			msg = msg[i+2:]
		}
		column := strings.SplitN(msg, ",", 2)[0]
		if i := strings.LastIndex(column, "."); i >= 0 {
			column = column[i+1:]
		}
		return strings.TrimSpace(column), true
	}

	return "", false
}
