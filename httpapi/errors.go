package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"colabatr/account"
	"colabatr/credential"
	"colabatr/db"
	"colabatr/identity"
	"colabatr/session"
)

func errorBody(msg string) echo.Map {
	return echo.Map{"ok": false, "error": msg}
}

// statusFor maps domain errors to a status and a message that never names
// the colliding attribute.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, credential.ErrMissingField):
		return http.StatusBadRequest, "missing or malformed fields"
	case errors.Is(err, credential.ErrWeakPassword):
		return http.StatusBadRequest, "password must be at least 8 characters"
	case errors.Is(err, account.ErrRoleInvalid):
		return http.StatusBadRequest, "invalid role"
	case errors.Is(err, credential.ErrAlreadyRegistered):
		return http.StatusConflict, "account already exists"
	case errors.Is(err, account.ErrContactInUse):
		return http.StatusConflict, "contact already in use"
	case errors.Is(err, identity.ErrInvalidCredential):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, identity.ErrAccountConflict):
		return http.StatusUnauthorized, "could not authenticate"
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid session"
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, db.ErrStorageUnavailable), errors.Is(err, credential.ErrDeliveryUnavailable):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail logs the detailed error and writes the public one.
func (s *Server) fail(c echo.Context, op string, err error) error {
	status, msg := statusFor(err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("status", status),
		zap.Error(err),
	}
	if id := currentAccountID(c); id != "" {
		fields = append(fields, zap.String("account_id", id))
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", fields...)
	} else {
		s.log.Info("request rejected", fields...)
	}
	return c.JSON(status, errorBody(msg))
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = c.JSON(he.Code, errorBody(msg))
		return
	}
	_ = s.fail(c, "unhandled", err)
}
