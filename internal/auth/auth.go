// Package auth resolves the acting identity and gates administrative routes
// on permission tokens. Authentication itself happens upstream at the API
// gateway; this service trusts the identity headers the gateway injects.
package auth

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"approvalflow/backend/internal/domain"
)

// Headers the gateway sets on every authenticated request.
const (
	HeaderTenantID    = "X-Tenant-Id"
	HeaderUserID      = "X-User-Id"
	HeaderPermissions = "X-Permissions"
)

const identityContextKey = "auth.identity"

// Identity is the acting user of a request.
type Identity struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Permissions []domain.Permission
}

// Middleware extracts the identity headers and stores an Identity on the
// request context. Requests without a valid tenant and user are rejected.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, err := uuid.Parse(c.Request().Header.Get(HeaderTenantID))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid tenant id")
			}
			userID, err := uuid.Parse(c.Request().Header.Get(HeaderUserID))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid user id")
			}
			c.Set(identityContextKey, Identity{
				TenantID:    tenantID,
				UserID:      userID,
				Permissions: domain.ParsePermissions(c.Request().Header.Get(HeaderPermissions)),
			})
			return next(c)
		}
	}
}

// IdentityFrom returns the Identity stored by Middleware.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityContextKey).(Identity)
	return id, ok
}

// RequirePermission gates a route on one required permission token. The
// identity's held tokens are matched with the wildcard rules of
// domain.Permission.
func RequirePermission(required domain.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no identity on request")
			}
			if !domain.AnyIncludes(id.Permissions, required) {
				return echo.NewHTTPError(http.StatusForbidden, "missing permission "+string(required))
			}
			return next(c)
		}
	}
}
