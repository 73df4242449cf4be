package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"approvalflow/backend/internal/auth"
	"approvalflow/backend/internal/engine"
)

type definitionRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"definition"`
}

// CreateDefinition creates a Draft definition.
// (POST /api/v1/definitions)
func (s *Server) CreateDefinition(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	var req definitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	def, err := s.Definitions.Create(c.Request().Context(), engine.CreateDefinitionInput{
		TenantID:    id.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Definition:  req.Definition,
		UserID:      id.UserID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, def)
}

// ListDefinitions lists a tenant's definitions in any status.
// (GET /api/v1/definitions)
func (s *Server) ListDefinitions(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	defs, err := s.Definitions.List(c.Request().Context(), id.TenantID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, defs)
}

// GetDefinition returns one definition.
// (GET /api/v1/definitions/:id)
func (s *Server) GetDefinition(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	defID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid definition id")
	}
	def, err := s.Definitions.Get(c.Request().Context(), id.TenantID, defID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, def)
}

// UpdateDefinition updates a Draft definition.
// (PUT /api/v1/definitions/:id)
func (s *Server) UpdateDefinition(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	defID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid definition id")
	}
	var req definitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	def, err := s.Definitions.Update(c.Request().Context(), engine.UpdateDefinitionInput{
		TenantID:    id.TenantID,
		ID:          defID,
		Name:        req.Name,
		Description: req.Description,
		Definition:  req.Definition,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, def)
}

// DeleteDefinition deletes a Draft definition.
// (DELETE /api/v1/definitions/:id)
func (s *Server) DeleteDefinition(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	defID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid definition id")
	}
	if err := s.Definitions.Delete(c.Request().Context(), id.TenantID, defID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type lifecycleRequest struct {
	ExpectedVersion int `json:"expected_version"`
}

// PublishDefinition validates and publishes a Draft definition.
// (POST /api/v1/definitions/:id/publish)
func (s *Server) PublishDefinition(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	defID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid definition id")
	}
	var req lifecycleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	def, err := s.Definitions.Publish(c.Request().Context(), id.TenantID, defID, req.ExpectedVersion)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, def)
}

// ArchiveDefinition archives a Published definition.
// (POST /api/v1/definitions/:id/archive)
func (s *Server) ArchiveDefinition(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	defID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid definition id")
	}
	var req lifecycleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	def, err := s.Definitions.Archive(c.Request().Context(), id.TenantID, defID, req.ExpectedVersion)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, def)
}

type validateRequest struct {
	Definition json.RawMessage `json:"definition"`
}

// ValidateDefinition runs graph validation without persisting anything.
// (POST /api/v1/definitions/validate)
func (s *Server) ValidateDefinition(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return c.JSON(http.StatusOK, s.Definitions.Validate(req.Definition))
}
