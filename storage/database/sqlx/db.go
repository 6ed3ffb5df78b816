// Package sqlxrepos implements the repositories on postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
)

// uniqueViolation is the postgres error code of a unique constraint violation.
const uniqueViolation = "23505"

// NewDB wraps a database opened with database.Open.
func NewDB(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "postgres")
}

// trapNoRowsErr maps psql "no rows" err to a core.NotFoundError.
func trapNoRowsErr(err error, entity, id, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return core.NewNotFoundError(entity, id)
	}
	return trapTimeout(err, msg)
}

// trapTimeout marks store timeouts as transient so that services retry them once.
// A connection the pool could not recover is a shutdown error.
func trapTimeout(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrTransient
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return core.NewShutdownError(msg + ": database connection lost: " + err.Error())
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// validUUID guards UUID columns: an id that is not a UUID cannot exist.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// checkAffected turns a version-guarded UPDATE that matched nothing into a core.ConflictError.
func checkAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking affected rows")
	}
	if n == 0 {
		return core.NewConflictError(entity, id, "modified concurrently or deleted")
	}
	return nil
}

// where collects AND-ed conditions; each cond holds one %s for its positional placeholder.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, "$"+strconv.Itoa(len(w.args))))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
