package identity

import (
	"fmt"
	"strings"
	"time"

	"colabatr/account"
)

// Provider names the authentication mechanism that proved a claim.
type Provider string

const (
	ProviderEmailPassword Provider = "email_password"
	ProviderPhoneOTP      Provider = "phone_otp"
	ProviderGoogle        Provider = "federated_google"
)

// Claim is a verified statement that the caller controls ProviderUserID at
// Provider, with whatever identifying attributes the provider vouched for.
// PasswordHash is only stored on accounts that have none.
type Claim struct {
	Provider       Provider
	ProviderUserID string
	Email          string
	Phone          string
	FullName       string
	CountryCode    string
	PasswordHash   string
}

// Normalize trims the key, lowercases the email and rejects an empty key.
func (c Claim) Normalize() (Claim, error) {
	c.Provider = Provider(strings.TrimSpace(string(c.Provider)))
	c.ProviderUserID = strings.TrimSpace(c.ProviderUserID)
	if c.Provider == "" || c.ProviderUserID == "" {
		return Claim{}, fmt.Errorf("identity: empty provider or provider user id: %w", ErrInvalidCredential)
	}

	attrs := c.attrs().Normalize()
	c.Email = attrs.Email
	c.Phone = attrs.Phone
	c.FullName = attrs.FullName
	c.CountryCode = attrs.CountryCode
	return c, nil
}

func (c Claim) attrs() account.Attrs {
	return account.Attrs{
		FullName:     c.FullName,
		Email:        c.Email,
		Phone:        c.Phone,
		CountryCode:  c.CountryCode,
		PasswordHash: c.PasswordHash,
	}
}

// Link binds one provider identity to one account.
type Link struct {
	Provider       Provider
	ProviderUserID string
	AccountID      string
	LinkedEmail    string
	LinkedPhone    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UpsertResult reports what a link upsert replaced. PreviousAccountID is
// empty when the link was newly inserted.
type UpsertResult struct {
	Link              Link
	PreviousAccountID string
}

func (r UpsertResult) Inserted() bool { return r.PreviousAccountID == "" }

func (r UpsertResult) Reassigned() bool {
	return r.PreviousAccountID != "" && r.PreviousAccountID != r.Link.AccountID
}
