package account

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUnset      Role = ""
	RoleInfluencer Role = "influencer"
	RoleBrand      Role = "brand"
)

// Account is the merged record that every identity link points at.
// Empty strings mean the attribute is absent.
type Account struct {
	ID           string
	FullName     string
	Email        string
	Phone        string
	CountryCode  string
	PasswordHash string
	Role         Role
	IsOnboarded  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can log in with email and password.
func (a Account) HasPassword() bool { return a.PasswordHash != "" }

// Attrs are the identifying attributes merged into an account.
type Attrs struct {
	FullName     string
	Email        string
	Phone        string
	CountryCode  string
	PasswordHash string
}

// Normalize trims every field and lowercases the email.
func (a Attrs) Normalize() Attrs {
	return Attrs{
		FullName:     strings.TrimSpace(a.FullName),
		Email:        NormalizeEmail(a.Email),
		Phone:        NormalizePhone(a.Phone),
		CountryCode:  strings.TrimSpace(a.CountryCode),
		PasswordHash: a.PasswordHash,
	}
}

// IsZero reports whether no attribute is present.
func (a Attrs) IsZero() bool {
	return a.FullName == "" && a.Email == "" && a.Phone == "" && a.CountryCode == "" && a.PasswordHash == ""
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// ParseRole accepts only the roles a caller may choose.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleInfluencer, RoleBrand:
		return r, nil
	default:
		return RoleUnset, ErrRoleInvalid
	}
}
