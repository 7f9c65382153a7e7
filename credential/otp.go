package credential

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"colabatr/account"
	"colabatr/identity"
)

var (
	// ErrCodeNotFound signals that no pending code exists for the phone.
	ErrCodeNotFound = errors.New("credential: otp code not found")
	// ErrDeliveryUnavailable signals that no code delivery channel is configured.
	ErrDeliveryUnavailable = errors.New("credential: otp delivery unavailable")
)

// CodeStore keeps one pending code per phone.
type CodeStore interface {
	Save(ctx context.Context, phone, code string, ttl time.Duration) error
	// Take returns the pending code and removes it in one step.
	Take(ctx context.Context, phone string) (string, error)
}

// Sender delivers a code to a phone.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the debug log for local development. The code is
// masked to its last two digits unless Reveal is set.
type LogSender struct {
	Log    *zap.Logger
	Reveal bool
}

func (s LogSender) Send(ctx context.Context, phone, code string) error {
	if s.Log == nil {
		return nil
	}
	shown := maskCode(code)
	if s.Reveal {
		shown = code
	}
	s.Log.Debug("otp code issued", zap.String("phone", phone), zap.String("code", shown))
	return nil
}

// NoSender refuses delivery. It stands in where no SMS gateway is configured.
type NoSender struct{}

func (NoSender) Send(ctx context.Context, phone, code string) error {
	return ErrDeliveryUnavailable
}

func maskCode(code string) string {
	if len(code) <= 2 {
		return strings.Repeat("*", len(code))
	}
	return strings.Repeat("*", len(code)-2) + code[len(code)-2:]
}

// OTPVerifyRequest is the body of a phone code verification.
type OTPVerifyRequest struct {
	Phone       string `json:"phone"`
	Code        string `json:"code"`
	FullName    string `json:"full_name"`
	CountryCode string `json:"country_code"`
}

// OTP issues and verifies one-time phone codes.
type OTP struct {
	store  CodeStore
	sender Sender
	ttl    time.Duration
	length int
	random io.Reader
}

func NewOTP(store CodeStore, sender Sender, ttl time.Duration, length int) *OTP {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if length < 4 || length > 10 {
		length = 6
	}
	return &OTP{store: store, sender: sender, ttl: ttl, length: length, random: rand.Reader}
}

// Request generates a code for the phone, replacing any pending one.
func (o *OTP) Request(ctx context.Context, phone string) error {
	phone = account.NormalizePhone(phone)
	if !validPhone(phone) {
		return fmt.Errorf("credential: phone %q: %w", phone, ErrMissingField)
	}

	code, err := o.newCode()
	if err != nil {
		return fmt.Errorf("credential: generate code: %w", err)
	}
	if err := o.store.Save(ctx, phone, code, o.ttl); err != nil {
		return err
	}
	if err := o.sender.Send(ctx, phone, code); err != nil {
		return fmt.Errorf("credential: send code: %w", err)
	}
	return nil
}

// Verify consumes the pending code and returns a phone_otp claim keyed by the
// phone. A missing, expired or wrong code yields ErrInvalidCredential. Any
// attempt consumes the code, so a wrong guess requires a new request.
func (o *OTP) Verify(ctx context.Context, req OTPVerifyRequest) (identity.Claim, error) {
	phone := account.NormalizePhone(req.Phone)
	code := strings.TrimSpace(req.Code)
	if phone == "" || code == "" {
		return identity.Claim{}, fmt.Errorf("credential: phone and code are required: %w", ErrMissingField)
	}

	want, err := o.store.Take(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return identity.Claim{}, ErrInvalidCredential
		}
		return identity.Claim{}, err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(code)) != 1 {
		return identity.Claim{}, ErrInvalidCredential
	}

	return identity.Claim{
		Provider:       identity.ProviderPhoneOTP,
		ProviderUserID: phone,
		Phone:          phone,
		FullName:       strings.TrimSpace(req.FullName),
		CountryCode:    strings.TrimSpace(req.CountryCode),
	}, nil
}

// newCode draws uniform digits, discarding bytes of 250 and above.
func (o *OTP) newCode() (string, error) {
	code := make([]byte, 0, o.length)
	buf := make([]byte, o.length)
	for len(code) < o.length {
		if _, err := io.ReadFull(o.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 || len(code) == o.length {
				continue
			}
			code = append(code, '0'+b%10)
		}
	}
	return string(code), nil
}

// validPhone accepts E.164: a plus sign followed by 8 to 15 digits.
func validPhone(phone string) bool {
	if len(phone) < 9 || len(phone) > 16 || phone[0] != '+' {
		return false
	}
	for _, r := range phone[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
