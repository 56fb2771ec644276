package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/genserve/internal/queue"
)

// PostgreSQL error codes and classes
const (
	// invalidTextRepresentationCode is raised for malformed UUID input.
	invalidTextRepresentationCode = "22P02"

	// connectionExceptionClass covers SQLSTATE 08xxx.
	connectionExceptionClass = "08"

	// insufficientResourcesClass covers SQLSTATE 53xxx, e.g. too many connections.
	insufficientResourcesClass = "53"

	// operatorInterventionClass covers SQLSTATE 57xxx, e.g. admin shutdown.
	operatorInterventionClass = "57"
)

// IsUnavailable reports whether err means the database could not be
// reached or is refusing work, as opposed to rejecting a specific query.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case connectionExceptionClass, insufficientResourcesClass, operatorInterventionClass:
			return true
		}
	}
	return false
}

// isInvalidText reports whether Postgres rejected a value's text form.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentationCode
}

// unavailable wraps err so callers can match queue.ErrQueueUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", queue.ErrQueueUnavailable, op, err)
}
