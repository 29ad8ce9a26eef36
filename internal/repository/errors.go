// Package repository holds the MySQL data access layer.  The sentinel
// values below let higher layers distinguish failure scenarios without
// inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert or update would duplicate a
// registered email address.
var ErrEmailExists = errors.New("email already exists")

// ErrReferenceMissing is returned when a foreign key points at a row that
// was removed concurrently (MySQL error 1452).
var ErrReferenceMissing = errors.New("referenced row does not exist")

const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow2 = 1452
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool {
	if mysqlErrNumber(err) == mysqlDuplicateEntry {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "1062")
}

func isMissingReference(err error) bool {
	return mysqlErrNumber(err) == mysqlNoReferencedRow2
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func uint64Args(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
