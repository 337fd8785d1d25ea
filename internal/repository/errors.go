// Package repository defines the MySQL and Redis persistence for accounts,
// refresh tokens, questionnaires and messages.  Sentinel errors let higher
// layers distinguish missing rows and unique-key conflicts from driver
// failures, which are wrapped with context.
package repository

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when the requested row does not exist (or, for
// refresh tokens, is revoked or expired).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an account with the same e-mail is
// already stored.
var ErrEmailExists = errors.New("email already exists")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps everything else.
func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}

type rowScanner interface {
	Scan(dest ...any) error
}
