// Package repository defines error values and classification helpers reused
// across repositories.  These sentinel values allow higher layers such as
// the journey service to distinguish failure scenarios without inspecting
// error message text.  Driver-level conditions (duplicate key, resource
// exhaustion) are detected structurally through the MySQL error number.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a requested record does not exist.  Callers
// decide whether that is a user error (unknown key) or a server defect
// (dangling journey reference).
var ErrNotFound = errors.New("not found")

// ErrTokenUsed is returned when a migration token has already been redeemed.
var ErrTokenUsed = errors.New("migration token already used")

// ErrTokenExpired is returned when a migration token is past its validity
// window.
var ErrTokenExpired = errors.New("migration token expired")

// IsDuplicate reports whether err is a MySQL duplicate-key violation
// (error 1062).  Used to converge concurrent first-writers instead of
// failing them.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// mysqlBusyNumbers are server conditions that indicate temporary resource
// exhaustion rather than a broken request: too many connections, out of
// memory, lock wait timeout, deadlock, table full.
var mysqlBusyNumbers = map[uint16]bool{
	1040: true,
	1041: true,
	1114: true,
	1205: true,
	1213: true,
}

// IsResourceExhausted reports whether err indicates the storage layer is
// temporarily out of capacity.  Such failures are retriable later and are
// surfaced to clients as "temporarily unavailable", not as generic server
// errors.
func IsResourceExhausted(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && mysqlBusyNumbers[me.Number]
}
