package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"colabatr/account"
	"colabatr/identity"
)

const minPasswordLength = 8

// AccountFinder looks accounts up by email.
type AccountFinder interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

// SignupRequest contains email signup data supplied by callers. Phone is
// unverified and never part of the claim; callers attach it after resolution.
type SignupRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Phone       string `json:"phone"`
	CountryCode string `json:"country_code"`
}

// LoginRequest contains email login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Password verifies email and password credentials with bcrypt.
type Password struct {
	accounts AccountFinder
	cost     int
	// dummyHash is compared on login misses so they cost as much as a hit.
	dummyHash []byte
	compare   func(hash, password []byte) error
}

func NewPassword(accounts AccountFinder, cost int) *Password {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("colabatr-login-miss"), cost)
	if err != nil {
		panic(fmt.Sprintf("credential: dummy hash: %v", err))
	}
	return &Password{accounts: accounts, cost: cost, dummyHash: dummy, compare: bcrypt.CompareHashAndPassword}
}

// Signup hashes the password and returns an email_password claim carrying the
// hash. An email that already has an account is rejected.
func (p *Password) Signup(ctx context.Context, req SignupRequest) (identity.Claim, error) {
	email := account.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return identity.Claim{}, fmt.Errorf("credential: email and password are required: %w", ErrMissingField)
	}
	if len(req.Password) < minPasswordLength {
		return identity.Claim{}, ErrWeakPassword
	}

	_, err := p.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return identity.Claim{}, ErrAlreadyRegistered
	case !errors.Is(err, account.ErrNotFound):
		return identity.Claim{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.cost)
	if err != nil {
		return identity.Claim{}, fmt.Errorf("credential: hash password: %w", err)
	}

	return identity.Claim{
		Provider:       identity.ProviderEmailPassword,
		ProviderUserID: email,
		Email:          email,
		FullName:       strings.TrimSpace(req.FullName),
		CountryCode:    strings.TrimSpace(req.CountryCode),
		PasswordHash:   string(hash),
	}, nil
}

// Login checks the password against the stored hash. An unknown email, an
// account without a password and a wrong password all yield ErrInvalidCredential.
func (p *Password) Login(ctx context.Context, req LoginRequest) (identity.Claim, error) {
	email := account.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return identity.Claim{}, fmt.Errorf("credential: email and password are required: %w", ErrMissingField)
	}

	acc, err := p.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		return identity.Claim{}, err
	}
	if err != nil || !acc.HasPassword() {
		_ = p.compare(p.dummyHash, []byte(req.Password))
		return identity.Claim{}, ErrInvalidCredential
	}
	if err := p.compare([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		return identity.Claim{}, ErrInvalidCredential
	}

	return identity.Claim{
		Provider:       identity.ProviderEmailPassword,
		ProviderUserID: email,
		Email:          email,
	}, nil
}
