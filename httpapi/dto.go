package httpapi

import (
	"time"

	"colabatr/account"
	"colabatr/identity"
)

type userResponse struct {
	ID          string    `json:"id"`
	FullName    string    `json:"full_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	Role        string    `json:"role"`
	IsOnboarded bool      `json:"is_onboarded"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUser(a account.Account) userResponse {
	return userResponse{
		ID:          a.ID,
		FullName:    a.FullName,
		Email:       a.Email,
		Phone:       a.Phone,
		CountryCode: a.CountryCode,
		Role:        string(a.Role),
		IsOnboarded: a.IsOnboarded,
		CreatedAt:   a.CreatedAt,
	}
}

type linkResponse struct {
	Provider    string    `json:"provider"`
	LinkedEmail string    `json:"linked_email,omitempty"`
	LinkedPhone string    `json:"linked_phone,omitempty"`
	LinkedAt    time.Time `json:"linked_at"`
}

func toLinks(links []identity.Link) []linkResponse {
	out := make([]linkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, linkResponse{
			Provider:    string(l.Provider),
			LinkedEmail: l.LinkedEmail,
			LinkedPhone: l.LinkedPhone,
			LinkedAt:    l.CreatedAt,
		})
	}
	return out
}

type roleRequest struct {
	Role string `json:"role"`
}

type profileRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CountryCode string `json:"country_code"`
}

type otpRequest struct {
	Phone string `json:"phone"`
}
