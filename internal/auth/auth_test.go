package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvalflow/backend/internal/domain"
)

func doRequest(t *testing.T, headers map[string]string, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/", handler, mw...)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareExtractsIdentity(t *testing.T) {
	tenantID := uuid.Must(uuid.NewV7())
	userID := uuid.Must(uuid.NewV7())

	e := echo.New()
	var got Identity
	e.GET("/", func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		got = id
		return c.NoContent(http.StatusOK)
	}, Middleware())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTenantID, tenantID.String())
	req.Header.Set(HeaderUserID, userID.String())
	req.Header.Set(HeaderPermissions, "workflow_instance:read, workflow_definition:*")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenantID, got.TenantID)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, []domain.Permission{"workflow_instance:read", "workflow_definition:*"}, got.Permissions)
}

func TestMiddlewareRejectsMissingHeaders(t *testing.T) {
	rec := doRequest(t, nil, Middleware())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, map[string]string{
		HeaderTenantID: uuid.Must(uuid.NewV7()).String(),
		HeaderUserID:   "not-a-uuid",
	}, Middleware())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	headers := func(perms string) map[string]string {
		return map[string]string{
			HeaderTenantID:    uuid.Must(uuid.NewV7()).String(),
			HeaderUserID:      uuid.Must(uuid.NewV7()).String(),
			HeaderPermissions: perms,
		}
	}

	rec := doRequest(t, headers("workflow_definition:manage"), Middleware(), RequirePermission(PermissionDefinitionManage))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, headers("workflow_definition:*"), Middleware(), RequirePermission(PermissionDefinitionManage))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, headers("*"), Middleware(), RequirePermission(PermissionDefinitionManage))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, headers("workflow_definition:read"), Middleware(), RequirePermission(PermissionDefinitionManage))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, headers(""), Middleware(), RequirePermission(PermissionDefinitionRead))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// permission gate without an identity is unauthorized
	rec = doRequest(t, nil, RequirePermission(PermissionDefinitionRead))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
