package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"colabatr/account"
	"colabatr/account/accounttest"
	"colabatr/credential"
	"colabatr/db"
	"colabatr/identity"
	"colabatr/identity/identitytest"
	"colabatr/session"
)

type stubGoogle struct {
	claim identity.Claim
	err   error
}

func (g stubGoogle) Verify(ctx context.Context, req credential.GoogleRequest) (identity.Claim, error) {
	if g.err != nil {
		return identity.Claim{}, g.err
	}
	c := g.claim
	c.CountryCode = req.CountryCode
	return c, nil
}

type memoryCodes struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *memoryCodes) Save(ctx context.Context, phone, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[phone] = code
	return nil
}

func (m *memoryCodes) Take(ctx context.Context, phone string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[phone]
	if !ok {
		return "", credential.ErrCodeNotFound
	}
	delete(m.codes, phone)
	return code, nil
}

type lastCode struct{ code string }

func (l *lastCode) Send(ctx context.Context, phone, code string) error {
	l.code = code
	return nil
}

type harness struct {
	t        *testing.T
	server   *Server
	accounts *accounttest.Memory
	sent     *lastCode
}

func newHarness(t *testing.T, google GoogleVerifier) *harness {
	t.Helper()
	accounts := accounttest.NewMemory()
	links := identitytest.NewLinks()
	sent := &lastCode{}

	deps := Deps{
		Resolver: identity.NewResolver(accounts, links, nil),
		Accounts: account.NewService(accounts, nil),
		Password: credential.NewPassword(accounts, bcrypt.MinCost),
		Google:   google,
		OTP:      credential.NewOTP(&memoryCodes{codes: map[string]string{}}, sent, time.Minute, 6),
		Sessions: session.NewIssuer("test-secret", time.Hour),
	}
	return &harness{
		t:        t,
		server:   NewServer(deps, Options{FrontendURL: "http://localhost:5173"}, nil),
		accounts: accounts,
		sent:     sent,
	}
}

type response struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func (h *harness) do(method, path, body, token string) response {
	h.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	res := response{status: rec.Code, cookies: rec.Result().Cookies()}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &res.body); err != nil {
			h.t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return res
}

func (r response) userID() string {
	user, _ := r.body["user"].(map[string]any)
	id, _ := user["id"].(string)
	return id
}

func TestSignupLoginAndMe(t *testing.T) {
	h := newHarness(t, stubGoogle{})

	res := h.do(http.MethodPost, "/api/auth/signup-email", `{"full_name":"Jane","email":"Jane@X.com","password":"supersafe"}`, "")
	if res.status != http.StatusOK {
		t.Fatalf("signup: expected 200 got %d %v", res.status, res.body)
	}
	if len(res.cookies) == 0 || res.cookies[0].Name != sessionCookie || !res.cookies[0].HttpOnly {
		t.Fatalf("signup: expected http-only session cookie, got %v", res.cookies)
	}
	accountID := res.userID()

	res = h.do(http.MethodPost, "/api/auth/login-email", `{"email":"jane@x.com","password":"supersafe"}`, "")
	if res.status != http.StatusOK || res.userID() != accountID {
		t.Fatalf("login: expected 200 for %s, got %d %v", accountID, res.status, res.body)
	}
	token, _ := res.body["token"].(string)

	res = h.do(http.MethodGet, "/api/me", "", token)
	if res.status != http.StatusOK || res.userID() != accountID {
		t.Fatalf("me: expected 200 for %s, got %d %v", accountID, res.status, res.body)
	}
	links, _ := res.body["links"].([]any)
	if len(links) != 1 {
		t.Fatalf("me: expected 1 link, got %v", res.body["links"])
	}
	if _, leaked := res.body["user"].(map[string]any)["password_hash"]; leaked {
		t.Fatal("password hash must never be serialized")
	}
}

func TestSignupExistingEmail(t *testing.T) {
	h := newHarness(t, stubGoogle{})
	h.accounts.Insert(account.Attrs{Email: "taken@x.com"})

	res := h.do(http.MethodPost, "/api/auth/signup-email", `{"email":"taken@x.com","password":"supersafe"}`, "")
	if res.status != http.StatusConflict {
		t.Fatalf("expected 409 got %d %v", res.status, res.body)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t, stubGoogle{})
	for _, body := range []string{
		`{"email":"nobody@x.com","password":"irrelevant"}`,
		`{"email":"jane@x.com","password":"wrongpassword"}`,
	} {
		res := h.do(http.MethodPost, "/api/auth/login-email", body, "")
		if res.status != http.StatusUnauthorized || res.body["error"] != "invalid credentials" {
			t.Fatalf("expected 401 invalid credentials, got %d %v", res.status, res.body)
		}
	}
}

func TestGoogleConvergesWithEmailAccount(t *testing.T) {
	h := newHarness(t, stubGoogle{claim: identity.Claim{Provider: identity.ProviderGoogle, ProviderUserID: "g-123", Email: "jane@x.com", FullName: "Janet"}})

	signup := h.do(http.MethodPost, "/api/auth/signup-email", `{"full_name":"Jane","email":"jane@x.com","password":"supersafe"}`, "")
	res := h.do(http.MethodPost, "/api/auth/google", `{"id_token":"tok","country_code":"IN"}`, "")
	if res.status != http.StatusOK {
		t.Fatalf("google: expected 200 got %d %v", res.status, res.body)
	}
	if res.userID() != signup.userID() {
		t.Fatalf("expected google sign-in to reach %s, got %s", signup.userID(), res.userID())
	}
	user := res.body["user"].(map[string]any)
	if user["full_name"] != "Jane" || user["country_code"] != "IN" {
		t.Fatalf("unexpected merged user: %v", user)
	}
}

func TestGoogleInvalidToken(t *testing.T) {
	h := newHarness(t, stubGoogle{err: credential.ErrInvalidCredential})
	res := h.do(http.MethodPost, "/api/auth/google", `{"id_token":"bad"}`, "")
	if res.status != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.status)
	}
}

func TestOTPFlow(t *testing.T) {
	h := newHarness(t, stubGoogle{})

	res := h.do(http.MethodPost, "/api/auth/otp/request", `{"phone":"+15550001"}`, "")
	if res.status != http.StatusAccepted {
		t.Fatalf("otp request: expected 202 got %d %v", res.status, res.body)
	}

	res = h.do(http.MethodPost, "/api/auth/otp/verify", `{"phone":"+15550001","code":"`+h.sent.code+`","full_name":"Sam"}`, "")
	if res.status != http.StatusOK {
		t.Fatalf("otp verify: expected 200 got %d %v", res.status, res.body)
	}
	user := res.body["user"].(map[string]any)
	if user["phone"] != "+15550001" || user["full_name"] != "Sam" {
		t.Fatalf("unexpected user: %v", user)
	}

	res = h.do(http.MethodPost, "/api/auth/otp/verify", `{"phone":"+15550001","code":"`+h.sent.code+`"}`, "")
	if res.status != http.StatusUnauthorized {
		t.Fatalf("reused code: expected 401 got %d", res.status)
	}
}

func TestSessionRequired(t *testing.T) {
	h := newHarness(t, stubGoogle{})
	if res := h.do(http.MethodGet, "/api/me", "", ""); res.status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", res.status)
	}
	if res := h.do(http.MethodGet, "/api/me", "", "not-a-token"); res.status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.status)
	}
}

func TestSessionCookieAuthenticates(t *testing.T) {
	h := newHarness(t, stubGoogle{})
	signup := h.do(http.MethodPost, "/api/auth/signup-email", `{"email":"c@x.com","password":"supersafe"}`, "")

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(signup.cookies[0])
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with cookie, got %d", rec.Code)
	}

	res := h.do(http.MethodPost, "/api/auth/logout", "", "")
	if res.status != http.StatusOK || len(res.cookies) == 0 || res.cookies[0].MaxAge >= 0 {
		t.Fatalf("logout must expire the cookie, got %d %v", res.status, res.cookies)
	}
}

func TestRoleProfileAndOnboarding(t *testing.T) {
	h := newHarness(t, stubGoogle{})
	signup := h.do(http.MethodPost, "/api/auth/signup-email", `{"email":"b@x.com","password":"supersafe"}`, "")
	token, _ := signup.body["token"].(string)
	h.accounts.Insert(account.Attrs{Phone: "+15550100"})

	if res := h.do(http.MethodPatch, "/api/me/role", `{"role":"admin"}`, token); res.status != http.StatusBadRequest {
		t.Fatalf("invalid role: expected 400 got %d", res.status)
	}
	if res := h.do(http.MethodPatch, "/api/me/role", `{"role":"brand"}`, token); res.status != http.StatusOK {
		t.Fatalf("set role: expected 200 got %d %v", res.status, res.body)
	}

	res := h.do(http.MethodPatch, "/api/me/profile", `{"full_name":"Brand Co","phone":"+15550100"}`, token)
	if res.status != http.StatusConflict || res.body["error"] != "contact already in use" {
		t.Fatalf("taken phone: expected 409 got %d %v", res.status, res.body)
	}
	res = h.do(http.MethodPatch, "/api/me/profile", `{"full_name":"Brand Co","country_code":"IN"}`, token)
	if res.status != http.StatusOK {
		t.Fatalf("profile: expected 200 got %d %v", res.status, res.body)
	}

	if res := h.do(http.MethodPost, "/api/onboarding/complete", "", token); res.status != http.StatusOK {
		t.Fatalf("onboarding: expected 200 got %d", res.status)
	}

	me := h.do(http.MethodGet, "/api/me", "", token)
	user := me.body["user"].(map[string]any)
	if user["role"] != "brand" || user["is_onboarded"] != true || user["full_name"] != "Brand Co" {
		t.Fatalf("unexpected user after updates: %v", user)
	}
}

func TestStorageFailuresMapToStatus(t *testing.T) {
	h := newHarness(t, stubGoogle{claim: identity.Claim{Provider: identity.ProviderGoogle, ProviderUserID: "g-1", Email: "x@x.com"}})

	h.accounts.FailOn("Create", &db.Error{Kind: db.ErrUniqueViolation, Constraint: "accounts_email_key", Err: errors.New("duplicate")})
	res := h.do(http.MethodPost, "/api/auth/google", `{"id_token":"tok"}`, "")
	if res.status != http.StatusUnauthorized || res.body["error"] != "could not authenticate" {
		t.Fatalf("conflict: expected 401 could not authenticate, got %d %v", res.status, res.body)
	}
	if strings.Contains(res.body["error"].(string), "email") {
		t.Fatal("public error must not name the colliding attribute")
	}

	h.accounts.FailOn("Create", nil)
	h.accounts.FailOn("GetByEmail", &db.Error{Kind: db.ErrStorageUnavailable, Err: errors.New("connection reset")})
	res = h.do(http.MethodPost, "/api/auth/google", `{"id_token":"tok"}`, "")
	if res.status != http.StatusServiceUnavailable {
		t.Fatalf("unavailable: expected 503 got %d %v", res.status, res.body)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, stubGoogle{})
	if res := h.do(http.MethodGet, "/health", "", ""); res.status != http.StatusOK || res.body["ok"] != true {
		t.Fatalf("health: expected ok, got %d %v", res.status, res.body)
	}

	h.server.deps.Health = func(context.Context) error { return db.ErrStorageUnavailable }
	if res := h.do(http.MethodGet, "/health", "", ""); res.status != http.StatusServiceUnavailable {
		t.Fatalf("health: expected 503, got %d", res.status)
	}
}

func TestSignupPhoneCannotClaimAnotherAccount(t *testing.T) {
	h := newHarness(t, stubGoogle{})

	h.do(http.MethodPost, "/api/auth/otp/request", `{"phone":"+15550001"}`, "")
	victim := h.do(http.MethodPost, "/api/auth/otp/verify", `{"phone":"+15550001","code":"`+h.sent.code+`","full_name":"Victim"}`, "")
	if victim.status != http.StatusOK {
		t.Fatalf("otp verify: expected 200 got %d %v", victim.status, victim.body)
	}

	res := h.do(http.MethodPost, "/api/auth/signup-email", `{"email":"attacker@evil.com","password":"hunter2hunter2","phone":"+15550001"}`, "")
	if res.status != http.StatusOK {
		t.Fatalf("signup: expected 200 got %d %v", res.status, res.body)
	}
	if res.userID() == victim.userID() {
		t.Fatalf("signup with someone else's phone signed in to their account %s", victim.userID())
	}
	user := res.body["user"].(map[string]any)
	if phone, _ := user["phone"].(string); phone != "" {
		t.Fatalf("phone held by another account must not be attached, got %q", phone)
	}

	for _, acc := range h.accounts.All() {
		if acc.ID == victim.userID() && (acc.Email != "" || acc.PasswordHash != "") {
			t.Fatalf("victim account gained credentials: %+v", acc)
		}
	}

	login := h.do(http.MethodPost, "/api/auth/login-email", `{"email":"attacker@evil.com","password":"hunter2hunter2"}`, "")
	if login.userID() == victim.userID() {
		t.Fatal("password login must not reach the phone owner's account")
	}
}

func TestSignupAttachesFreePhone(t *testing.T) {
	h := newHarness(t, stubGoogle{})

	res := h.do(http.MethodPost, "/api/auth/signup-email", `{"email":"p@x.com","password":"supersafe","phone":" +15550200 "}`, "")
	if res.status != http.StatusOK {
		t.Fatalf("signup: expected 200 got %d %v", res.status, res.body)
	}
	user := res.body["user"].(map[string]any)
	if user["phone"] != "+15550200" || user["email"] != "p@x.com" {
		t.Fatalf("expected phone attached to the new account, got %v", user)
	}
}

func TestOTPDeliveryUnavailable(t *testing.T) {
	h := newHarness(t, stubGoogle{})
	h.server.deps.OTP = credential.NewOTP(&memoryCodes{codes: map[string]string{}}, credential.NoSender{}, time.Minute, 6)

	res := h.do(http.MethodPost, "/api/auth/otp/request", `{"phone":"+15550001"}`, "")
	if res.status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d %v", res.status, res.body)
	}
}
