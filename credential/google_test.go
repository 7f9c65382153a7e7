package credential

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/api/idtoken"

	"colabatr/identity"
)

func stubGoogle(payload *idtoken.Payload, err error) *Google {
	g := NewGoogle("client-123")
	g.validate = func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
		if audience != "client-123" {
			return nil, errors.New("audience mismatch")
		}
		return payload, err
	}
	return g
}

func TestGoogle_Verify(t *testing.T) {
	g := stubGoogle(&idtoken.Payload{
		Subject: "g-123",
		Claims: map[string]any{
			"email":          "Jane@X.com",
			"email_verified": true,
			"name":           "Jane Doe",
		},
	}, nil)

	claim, err := g.Verify(context.Background(), GoogleRequest{IDToken: "token", CountryCode: "US"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claim.Provider != identity.ProviderGoogle || claim.ProviderUserID != "g-123" {
		t.Fatalf("unexpected claim key %s/%s", claim.Provider, claim.ProviderUserID)
	}
	if claim.Email != "Jane@X.com" || claim.FullName != "Jane Doe" || claim.CountryCode != "US" {
		t.Fatalf("unexpected claim attrs: %+v", claim)
	}
}

func TestGoogle_UnverifiedEmailIsDropped(t *testing.T) {
	g := stubGoogle(&idtoken.Payload{
		Subject: "g-1",
		Claims: map[string]any{
			"email":          "someone@x.com",
			"email_verified": "false",
			"given_name":     "Some",
			"family_name":    "One",
		},
	}, nil)

	claim, err := g.Verify(context.Background(), GoogleRequest{IDToken: "token"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claim.Email != "" {
		t.Fatalf("unverified email must not be claimed, got %q", claim.Email)
	}
	if claim.FullName != "Some One" {
		t.Fatalf("expected name from given/family, got %q", claim.FullName)
	}
}

func TestGoogle_InvalidToken(t *testing.T) {
	g := stubGoogle(nil, errors.New("idtoken: token expired"))
	if _, err := g.Verify(context.Background(), GoogleRequest{IDToken: "token"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	if _, err := g.Verify(context.Background(), GoogleRequest{}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}

	noSub := stubGoogle(&idtoken.Payload{Claims: map[string]any{}}, nil)
	if _, err := noSub.Verify(context.Background(), GoogleRequest{IDToken: "token"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for missing subject, got %v", err)
	}
}
