package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"colabatr/account"
	"colabatr/credential"
	"colabatr/identity"
)

func (s *Server) signupEmail(c echo.Context) error {
	var req credential.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed body"))
	}
	ctx := c.Request().Context()
	claim, err := s.deps.Password.Signup(ctx, req)
	if err != nil {
		return s.fail(c, "signup-email", err)
	}
	acc, err := s.deps.Resolver.Resolve(ctx, claim)
	if err != nil {
		return s.fail(c, "signup-email", err)
	}

	// The phone is unverified, so it is only attached when no one else holds it.
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		merged, err := s.deps.Accounts.MergeProfileAttrs(ctx, acc.ID, account.Attrs{Phone: phone})
		switch {
		case err == nil:
			acc = merged
		case errors.Is(err, account.ErrContactInUse):
			s.log.Info("signup phone not attached", zap.String("account_id", acc.ID), zap.Error(err))
		default:
			return s.fail(c, "signup-email", err)
		}
	}
	return s.startSession(c, "signup-email", acc)
}

func (s *Server) loginEmail(c echo.Context) error {
	var req credential.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed body"))
	}
	claim, err := s.deps.Password.Login(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, "login-email", err)
	}
	return s.signIn(c, "login-email", claim)
}

func (s *Server) google(c echo.Context) error {
	var req credential.GoogleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed body"))
	}
	claim, err := s.deps.Google.Verify(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, "google", err)
	}
	return s.signIn(c, "google", claim)
}

func (s *Server) requestOTP(c echo.Context) error {
	var req otpRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed body"))
	}
	if err := s.deps.OTP.Request(c.Request().Context(), req.Phone); err != nil {
		return s.fail(c, "otp-request", err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"ok": true})
}

func (s *Server) verifyOTP(c echo.Context) error {
	var req credential.OTPVerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed body"))
	}
	claim, err := s.deps.OTP.Verify(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, "otp-verify", err)
	}
	return s.signIn(c, "otp-verify", claim)
}

func (s *Server) logout(c echo.Context) error {
	c.SetCookie(s.cookie("", time.Unix(0, 0), -1))
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// signIn resolves the claim to an account and starts a session for it.
func (s *Server) signIn(c echo.Context, op string, claim identity.Claim) error {
	acc, err := s.deps.Resolver.Resolve(c.Request().Context(), claim)
	if err != nil {
		return s.fail(c, op, err)
	}
	return s.startSession(c, op, acc)
}

func (s *Server) startSession(c echo.Context, op string, acc account.Account) error {
	token, expires, err := s.deps.Sessions.Issue(acc.ID)
	if err != nil {
		return s.fail(c, op, err)
	}
	c.SetCookie(s.cookie(token, expires, int(time.Until(expires).Seconds())))
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "user": toUser(acc), "token": token})
}

func (s *Server) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
