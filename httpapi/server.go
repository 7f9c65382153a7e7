// Package httpapi is the JSON HTTP surface over the identity core.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"colabatr/account"
	"colabatr/credential"
	"colabatr/identity"
)

const sessionCookie = "colabatr_session"

type Resolver interface {
	Resolve(ctx context.Context, claim identity.Claim) (account.Account, error)
	Links(ctx context.Context, accountID string) ([]identity.Link, error)
}

type Accounts interface {
	Get(ctx context.Context, id string) (account.Account, error)
	SetRole(ctx context.Context, id, role string) error
	MarkOnboarded(ctx context.Context, id string) error
	MergeProfileAttrs(ctx context.Context, id string, attrs account.Attrs) (account.Account, error)
}

type PasswordVerifier interface {
	Signup(ctx context.Context, req credential.SignupRequest) (identity.Claim, error)
	Login(ctx context.Context, req credential.LoginRequest) (identity.Claim, error)
}

type GoogleVerifier interface {
	Verify(ctx context.Context, req credential.GoogleRequest) (identity.Claim, error)
}

type OTPVerifier interface {
	Request(ctx context.Context, phone string) error
	Verify(ctx context.Context, req credential.OTPVerifyRequest) (identity.Claim, error)
}

type Sessions interface {
	Issue(accountID string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Resolver Resolver
	Accounts Accounts
	Password PasswordVerifier
	Google   GoogleVerifier
	OTP      OTPVerifier
	Sessions Sessions
	// Health reports whether storage is reachable. Nil means always healthy.
	Health func(ctx context.Context) error
}

type Options struct {
	FrontendURL  string
	CookieSecure bool
}

type Server struct {
	echo *echo.Echo
	deps Deps
	opts Options
	log  *zap.Logger
}

func NewServer(deps Deps, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{echo: echo.New(), deps: deps, opts: opts, log: log}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())
	if opts.FrontendURL != "" {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{opts.FrontendURL},
			AllowCredentials: true,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		}))
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)

	auth := s.echo.Group("/api/auth")
	auth.POST("/signup-email", s.signupEmail)
	auth.POST("/login-email", s.loginEmail)
	auth.POST("/google", s.google)
	auth.POST("/otp/request", s.requestOTP)
	auth.POST("/otp/verify", s.verifyOTP)
	auth.POST("/logout", s.logout)

	me := s.echo.Group("/api/me", s.requireSession)
	me.GET("", s.me)
	me.PATCH("/role", s.setRole)
	me.PATCH("/profile", s.updateProfile)

	onboarding := s.echo.Group("/api/onboarding", s.requireSession)
	onboarding.POST("/complete", s.completeOnboarding)
}

func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request().Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"ok": false})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
