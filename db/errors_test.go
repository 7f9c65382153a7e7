package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify_UniqueViolation(t *testing.T) {
	src := fmt.Errorf("account: create: %w", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	err := Classify(src)
	if !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}
	if errors.Is(err, ErrStorageUnavailable) {
		t.Fatal("unique violation must not be classified as unavailable")
	}
	if got := ConstraintName(err); got != "accounts_email_key" {
		t.Fatalf("expected constraint accounts_email_key, got %q", got)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatal("expected original PgError to remain in chain")
	}
}

func TestClassify_Unavailable(t *testing.T) {
	cases := map[string]error{
		"admin shutdown":  &pgconn.PgError{Code: "57P01"},
		"connection lost": &pgconn.PgError{Code: "08006"},
		"too many conns":  &pgconn.PgError{Code: "53300"},
		"net error":       &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
		"unexpected eof":  fmt.Errorf("read: %w", io.ErrUnexpectedEOF),
		"closed pool":     errors.New("closed pool"),
	}
	for name, src := range cases {
		if err := Classify(src); !errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("%s: expected ErrStorageUnavailable, got %v", name, err)
		}
	}
}

func TestClassify_PassThrough(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	canceled := fmt.Errorf("account: get: %w", context.Canceled)
	if err := Classify(canceled); err != canceled {
		t.Fatalf("expected context error unchanged, got %v", err)
	}

	check := &pgconn.PgError{Code: "23514"}
	if err := Classify(check); errors.Is(err, ErrUniqueViolation) || errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("unexpected classification for check violation: %v", err)
	}

	already := Classify(&pgconn.PgError{Code: "23505"})
	if Classify(already) != already {
		t.Fatal("expected classified error to be returned as-is")
	}
}
