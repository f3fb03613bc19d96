package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PostgreSQL SQLSTATE codes for integrity constraint violations.
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// translate maps driver errors onto the apiv1 taxonomy. op and entity only
// decorate the message. Errors already carrying a taxonomy error pass
// through unchanged.
func translate(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		apiv1.ErrInvalidArgument, apiv1.ErrNotFound, apiv1.ErrConflict,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", apiv1.ErrNotFound, entity)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %s already exists", apiv1.ErrConflict, entity)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %s references a missing row", apiv1.ErrNotFound, entity)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: %s violates a constraint", apiv1.ErrInvalidArgument, entity)
		}
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return translateSQLiteMessage(entity, sqliteErr.Error())
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s already exists (%s)", apiv1.ErrConflict, entity, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s references a missing row (%s)", apiv1.ErrNotFound, entity, pgErr.ConstraintName)
		case pgCheckViolation, pgNotNullViolation:
			return fmt.Errorf("%w: %s violates %s", apiv1.ErrInvalidArgument, entity, pgErr.ConstraintName)
		}
	}

	return fmt.Errorf("%s %s: %w", op, entity, err)
}

// translateSQLiteMessage classifies a constraint error that arrived without
// an extended result code.
func translateSQLiteMessage(entity, msg string) error {
	switch {
	case strings.Contains(msg, "UNIQUE"):
		return fmt.Errorf("%w: %s already exists", apiv1.ErrConflict, entity)
	case strings.Contains(msg, "FOREIGN KEY"):
		return fmt.Errorf("%w: %s references a missing row", apiv1.ErrNotFound, entity)
	default:
		return fmt.Errorf("%w: %s violates a constraint", apiv1.ErrInvalidArgument, entity)
	}
}
