package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// pqError returns the underlying *pq.Error, if any.
func pqError(err error) (*pq.Error, bool) {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return pqErr, ok
}

// isConstraintErr reports whether err is a violation of the named constraint.
// An empty constraint matches any violation of that code.
func isConstraintErr(err error, code pq.ErrorCode, constraint string) bool {
	pqErr, ok := pqError(err)
	if !ok || pqErr.Code != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// trapNoRowsErr maps psql "no rows" err to notFoundErr
func trapNoRowsErr(err error, notFoundErr error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return errors.Wrap(err, msg)
}

// validIDs drops the ids that are not UUIDs, which no row can match.
func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func newID() string {
	return uuid.New().String()
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// limit applies a positive limit to the query.
func limit(q sq.SelectBuilder, n int) sq.SelectBuilder {
	if n > 0 {
		return q.Limit(uint64(n))
	}
	return q
}
