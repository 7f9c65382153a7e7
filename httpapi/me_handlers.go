package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"colabatr/account"
)

func (s *Server) me(c echo.Context) error {
	ctx := c.Request().Context()
	id := currentAccountID(c)

	acc, err := s.deps.Accounts.Get(ctx, id)
	if err != nil {
		return s.fail(c, "me", err)
	}
	links, err := s.deps.Resolver.Links(ctx, id)
	if err != nil {
		return s.fail(c, "me", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "user": toUser(acc), "links": toLinks(links)})
}

func (s *Server) setRole(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed body"))
	}
	if err := s.deps.Accounts.SetRole(c.Request().Context(), currentAccountID(c), req.Role); err != nil {
		return s.fail(c, "set-role", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (s *Server) updateProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed body"))
	}
	acc, err := s.deps.Accounts.MergeProfileAttrs(c.Request().Context(), currentAccountID(c), account.Attrs{
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		CountryCode: req.CountryCode,
	})
	if err != nil {
		return s.fail(c, "update-profile", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "user": toUser(acc)})
}

func (s *Server) completeOnboarding(c echo.Context) error {
	if err := s.deps.Accounts.MarkOnboarded(c.Request().Context(), currentAccountID(c)); err != nil {
		return s.fail(c, "complete-onboarding", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
