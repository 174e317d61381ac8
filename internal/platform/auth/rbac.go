package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole lets a request through when the caller holds at least one of
// roles. Admins pass every check. Unknown role names panic at route setup.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	mustKnow(roles)
	denied := forbidden(roles)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !HasAnyRole(RolesFromContext(c.Request().Context()), roles...) {
				return denied
			}
			return next(c)
		}
	}
}

// RequireSelfOrRole is RequireRole that also admits the caller when the path
// parameter param names the caller's own user or staff id.
func RequireSelfOrRole(param string, roles ...string) echo.MiddlewareFunc {
	mustKnow(roles)
	denied := forbidden(append([]string{"self"}, roles...))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if isSelf(c.Param(param), UserIDFromContext(ctx), StaffIDFromContext(ctx)) ||
				HasAnyRole(RolesFromContext(ctx), roles...) {
				return next(c)
			}
			return denied
		}
	}
}

func isSelf(target string, ids ...string) bool {
	if target == "" {
		return false
	}
	for _, id := range ids {
		if id != "" && strings.EqualFold(id, target) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether granted satisfies any of required.
func HasAnyRole(granted []string, required ...string) bool {
	for _, has := range granted {
		if has == RoleAdmin {
			return true
		}
		for _, want := range required {
			if has == want {
				return true
			}
		}
	}
	return false
}

func mustKnow(roles []string) {
	for _, r := range roles {
		if !IsKnownRole(r) {
			panic(fmt.Sprintf("auth: unknown role %q", r))
		}
	}
}

func forbidden(roles []string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusForbidden, "required role: "+strings.Join(roles, " or "))
}
