package db

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrStorageUnavailable signals that the database could not be reached or
	// dropped the connection mid-operation.
	ErrStorageUnavailable = errors.New("db: storage unavailable")
	// ErrUniqueViolation signals that a write collided with a unique constraint.
	ErrUniqueViolation = errors.New("db: unique violation")
)

// Error carries a classified storage failure. errors.Is matches both the
// class sentinel and the underlying driver error.
type Error struct {
	Kind       error
	Constraint string
	Err        error
}

func (e *Error) Error() string {
	if e.Constraint != "" {
		return e.Kind.Error() + " (" + e.Constraint + "): " + e.Err.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Classify maps driver errors onto ErrUniqueViolation and ErrStorageUnavailable.
// Context cancellation and errors it does not recognize are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrUniqueViolation) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return &Error{Kind: ErrUniqueViolation, Constraint: pgErr.ConstraintName, Err: err}
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "57P01", // admin_shutdown
			pgErr.Code == "57P02", // crash_shutdown
			pgErr.Code == "57P03", // cannot_connect_now
			pgErr.Code == "53300": // too_many_connections
			return &Error{Kind: ErrStorageUnavailable, Err: err}
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return &Error{Kind: ErrStorageUnavailable, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Kind: ErrStorageUnavailable, Err: err}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || pgconn.SafeToRetry(err) {
		return &Error{Kind: ErrStorageUnavailable, Err: err}
	}
	if strings.Contains(err.Error(), "closed pool") {
		return &Error{Kind: ErrStorageUnavailable, Err: err}
	}
	return err
}

// ConstraintName returns the violated constraint of a classified unique
// violation, or "" when err is not one.
func ConstraintName(err error) string {
	var e *Error
	if errors.As(err, &e) && errors.Is(e.Kind, ErrUniqueViolation) {
		return e.Constraint
	}
	return ""
}
