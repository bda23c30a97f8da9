// Package repository implements the storage ports of the service layer
// on MySQL through database/sql. Lookups that find nothing return an
// error wrapping service.ErrNoRecord instead of sql.ErrNoRows, and
// unique-key violations (MySQL error 1062) wrap service.ErrDuplicate,
// so callers never depend on driver details. Auth-only repositories
// (users by email, refresh tokens) add their own sentinels here.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/rental-marketplace/internal/service"
)

// ErrEmailExists is returned by UserRepo.Create when the address is
// already registered. Handlers should translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrTokenInvalid is returned when a refresh token is unknown, revoked
// or expired. Handlers should translate this into HTTP 401.
var ErrTokenInvalid = errors.New("refresh token invalid")

const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound converts sql.ErrNoRows into the service sentinel and wraps
// any other error with what.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, service.ErrNoRecord)
	}
	return fmt.Errorf("%s: %w", what, err)
}
