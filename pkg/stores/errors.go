package stores

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

var (
	// ErrSchemaExists is returned by CreateTables when the schema is already in place.
	ErrSchemaExists = errors.New("schema already exists")

	// ErrNoSchema marks statements that ran against a database without the tables.
	ErrNoSchema = errors.New("schema not initialized")

	// ErrConstraint marks SQLite constraint violations.
	ErrConstraint = errors.New("constraint violation")

	// ErrProjectNotFound is returned when a project name does not resolve for its owner.
	ErrProjectNotFound = errors.New("project not found")

	// ErrSkillNotFound is returned when a skill name is not in the vocabulary.
	ErrSkillNotFound = errors.New("skill not found")

	// ErrInvalidField is returned for column names outside the update allow-list.
	ErrInvalidField = errors.New("invalid project field")

	// ErrBackupExists is returned when a backup would overwrite an existing file.
	ErrBackupExists = errors.New("backup destination already exists")

	// ErrCorruptDatabase is returned when a restore source fails the integrity check.
	ErrCorruptDatabase = errors.New("database failed integrity check")
)

// classifyError tags SQLite driver errors with a sentinel while keeping the
// driver error in the chain.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return err
	}
	switch {
	case serr.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT:
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	case strings.Contains(serr.Error(), "no such table"):
		return fmt.Errorf("%w: %w", ErrNoSchema, err)
	}
	return err
}

// errorClass buckets an error for the errors_by_class metric.
func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrSkillNotFound):
		return "not_found"
	case errors.Is(err, ErrNoSchema), errors.Is(err, ErrSchemaExists):
		return "schema"
	case errors.Is(err, ErrConstraint):
		return "constraint"
	case errors.Is(err, ErrInvalidField), errors.Is(err, ErrBackupExists):
		return "invalid_argument"
	case errors.Is(err, ErrCorruptDatabase):
		return "corrupt"
	default:
		return "storage"
	}
}
