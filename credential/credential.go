// Package credential verifies login assertions and turns them into identity
// claims. Nothing here touches identity links.
package credential

import (
	"errors"

	"colabatr/identity"
)

var (
	// ErrInvalidCredential never tells an unknown account apart from a wrong secret.
	ErrInvalidCredential = identity.ErrInvalidCredential
	// ErrAlreadyRegistered signals an email signup for an email that has an account.
	ErrAlreadyRegistered = errors.New("credential: account already exists")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("credential: password must be at least 8 characters")
	// ErrMissingField signals a required request field was empty.
	ErrMissingField = errors.New("credential: required field missing")
)
