package credential

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"colabatr/identity"
)

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Google verifies Google ID tokens issued for clientID.
type Google struct {
	clientID string
	validate validateFunc
}

func NewGoogle(clientID string) *Google {
	return &Google{clientID: clientID, validate: idtoken.Validate}
}

// GoogleRequest is the body of a federated sign-in.
type GoogleRequest struct {
	IDToken     string `json:"id_token"`
	CountryCode string `json:"country_code"`
}

// Verify validates the token signature, audience and expiry and returns a
// federated_google claim keyed by the token subject. The email is only
// included when Google marks it verified.
func (g *Google) Verify(ctx context.Context, req GoogleRequest) (identity.Claim, error) {
	token := strings.TrimSpace(req.IDToken)
	if token == "" {
		return identity.Claim{}, fmt.Errorf("credential: id_token required: %w", ErrMissingField)
	}
	if g.clientID == "" {
		return identity.Claim{}, fmt.Errorf("credential: google sign-in is not configured")
	}

	payload, err := g.validate(ctx, token, g.clientID)
	if err != nil {
		return identity.Claim{}, fmt.Errorf("credential: google token: %v: %w", err, ErrInvalidCredential)
	}
	if payload.Subject == "" {
		return identity.Claim{}, fmt.Errorf("credential: google token without subject: %w", ErrInvalidCredential)
	}

	claim := identity.Claim{
		Provider:       identity.ProviderGoogle,
		ProviderUserID: payload.Subject,
		CountryCode:    strings.TrimSpace(req.CountryCode),
	}
	if email, _ := payload.Claims["email"].(string); email != "" && emailVerified(payload.Claims["email_verified"]) {
		claim.Email = email
	}
	if name, _ := payload.Claims["name"].(string); name != "" {
		claim.FullName = name
	} else {
		given, _ := payload.Claims["given_name"].(string)
		family, _ := payload.Claims["family_name"].(string)
		claim.FullName = strings.TrimSpace(given + " " + family)
	}
	return claim, nil
}

// Google has sent email_verified both as a bool and as a string.
func emailVerified(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}
