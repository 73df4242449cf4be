package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"approvalflow/backend/internal/auth"
	"approvalflow/backend/internal/domain"
	"approvalflow/backend/internal/engine"
)

// Server holds the dependencies for the API server.
type Server struct {
	Engine      *engine.Engine
	Definitions *engine.DefinitionService
}

// NewServer creates a new Server.
func NewServer(eng *engine.Engine, defs *engine.DefinitionService) *Server {
	return &Server{Engine: eng, Definitions: defs}
}

// Register mounts all routes on the echo instance. Everything under /api/v1
// requires an identity; administrative routes additionally require the named
// permission.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", HandleHealth)

	v1 := e.Group("/api/v1", auth.Middleware())

	defs := v1.Group("/definitions")
	defs.GET("", s.ListDefinitions, auth.RequirePermission(auth.PermissionDefinitionRead))
	defs.GET("/:id", s.GetDefinition, auth.RequirePermission(auth.PermissionDefinitionRead))
	defs.POST("", s.CreateDefinition, auth.RequirePermission(auth.PermissionDefinitionManage))
	defs.PUT("/:id", s.UpdateDefinition, auth.RequirePermission(auth.PermissionDefinitionManage))
	defs.DELETE("/:id", s.DeleteDefinition, auth.RequirePermission(auth.PermissionDefinitionManage))
	defs.POST("/:id/publish", s.PublishDefinition, auth.RequirePermission(auth.PermissionDefinitionManage))
	defs.POST("/:id/archive", s.ArchiveDefinition, auth.RequirePermission(auth.PermissionDefinitionManage))
	defs.POST("/validate", s.ValidateDefinition, auth.RequirePermission(auth.PermissionDefinitionRead))

	wf := v1.Group("/workflows")
	wf.GET("", s.ListWorkflows, auth.RequirePermission(auth.PermissionInstanceRead))
	wf.GET("/:ref", s.GetWorkflow, auth.RequirePermission(auth.PermissionInstanceRead))
	wf.POST("", s.CreateWorkflow, auth.RequirePermission(auth.PermissionInstanceWrite))
	wf.POST("/:ref/submit", s.SubmitWorkflow, auth.RequirePermission(auth.PermissionInstanceWrite))
	wf.POST("/:ref/resubmit", s.ResubmitWorkflow, auth.RequirePermission(auth.PermissionInstanceWrite))
	wf.POST("/:ref/steps/:step/decide", s.DecideStep, auth.RequirePermission(auth.PermissionInstanceWrite))
	wf.GET("/:ref/comments", s.ListComments, auth.RequirePermission(auth.PermissionInstanceRead))
	wf.POST("/:ref/comments", s.PostComment, auth.RequirePermission(auth.PermissionInstanceWrite))
}

// instanceRef addresses an instance either by record id or by its display id
// ("WF-42").
type instanceRef struct {
	id            uuid.UUID
	displayNumber int64
	byNumber      bool
}

func parseInstanceRef(raw string) (instanceRef, error) {
	if rest, ok := strings.CutPrefix(raw, "WF-"); ok {
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || n <= 0 {
			return instanceRef{}, domain.BadRequestf("invalid workflow reference %q", raw)
		}
		return instanceRef{displayNumber: n, byNumber: true}, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return instanceRef{}, domain.BadRequestf("invalid workflow reference %q", raw)
	}
	return instanceRef{id: id}, nil
}

// resolve turns a reference into the record id, resolving display numbers
// through a tenant-scoped lookup.
func (s *Server) resolve(c echo.Context, ref instanceRef, tenantID uuid.UUID) (uuid.UUID, error) {
	if !ref.byNumber {
		return ref.id, nil
	}
	agg, err := s.Engine.GetByDisplayNumber(c.Request().Context(), tenantID, ref.displayNumber)
	if err != nil {
		return uuid.Nil, err
	}
	return agg.Instance.ID, nil
}

type createWorkflowRequest struct {
	DefinitionID uuid.UUID       `json:"definition_id"`
	Title        string          `json:"title"`
	FormData     json.RawMessage `json:"form_data"`
}

// CreateWorkflow creates a Draft instance from a published definition.
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	var req createWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	agg, err := s.Engine.CreateInstance(c.Request().Context(), engine.CreateInstanceInput{
		TenantID:     id.TenantID,
		DefinitionID: req.DefinitionID,
		Title:        req.Title,
		FormData:     req.FormData,
		UserID:       id.UserID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, agg)
}

// ListWorkflows lists a tenant's instances. The filter query parameter
// narrows to "mine" (initiated by the caller) or "assigned" (has a step
// assigned to the caller).
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	ctx := c.Request().Context()

	var (
		instances []*domain.WorkflowInstance
		err       error
	)
	switch c.QueryParam("filter") {
	case "mine":
		instances, err = s.Engine.ListByInitiator(ctx, id.TenantID, id.UserID)
	case "assigned":
		instances, err = s.Engine.ListByAssignee(ctx, id.TenantID, id.UserID)
	case "":
		instances, err = s.Engine.ListByTenant(ctx, id.TenantID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown filter")
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, instances)
}

// GetWorkflow returns an instance with its steps, addressed by id or WF-<n>.
// (GET /api/v1/workflows/:ref)
func (s *Server) GetWorkflow(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	ref, err := parseInstanceRef(c.Param("ref"))
	if err != nil {
		return httpError(err)
	}
	var agg *engine.InstanceAggregate
	if ref.byNumber {
		agg, err = s.Engine.GetByDisplayNumber(c.Request().Context(), id.TenantID, ref.displayNumber)
	} else {
		agg, err = s.Engine.Get(c.Request().Context(), id.TenantID, ref.id)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, agg)
}

type submitWorkflowRequest struct {
	Assignments map[string]uuid.UUID `json:"assignments"`
}

// SubmitWorkflow submits a Draft instance for approval.
// (POST /api/v1/workflows/:ref/submit)
func (s *Server) SubmitWorkflow(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	ref, err := parseInstanceRef(c.Param("ref"))
	if err != nil {
		return httpError(err)
	}
	instanceID, err := s.resolve(c, ref, id.TenantID)
	if err != nil {
		return httpError(err)
	}
	var req submitWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	agg, err := s.Engine.Submit(c.Request().Context(), engine.SubmitInput{
		TenantID:    id.TenantID,
		InstanceID:  instanceID,
		Assignments: req.Assignments,
		UserID:      id.UserID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, agg)
}

type resubmitWorkflowRequest struct {
	FormData        json.RawMessage      `json:"form_data"`
	Assignments     map[string]uuid.UUID `json:"assignments"`
	ExpectedVersion int                  `json:"expected_version"`
}

// ResubmitWorkflow resubmits a ChangesRequested instance.
// (POST /api/v1/workflows/:ref/resubmit)
func (s *Server) ResubmitWorkflow(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	ref, err := parseInstanceRef(c.Param("ref"))
	if err != nil {
		return httpError(err)
	}
	instanceID, err := s.resolve(c, ref, id.TenantID)
	if err != nil {
		return httpError(err)
	}
	var req resubmitWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	agg, err := s.Engine.Resubmit(c.Request().Context(), engine.ResubmitInput{
		TenantID:        id.TenantID,
		InstanceID:      instanceID,
		FormData:        req.FormData,
		Assignments:     req.Assignments,
		ExpectedVersion: req.ExpectedVersion,
		UserID:          id.UserID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, agg)
}

type decideStepRequest struct {
	Trigger         string `json:"trigger"`
	ExpectedVersion int    `json:"expected_version"`
	Comment         string `json:"comment"`
}

// DecideStep records an approve, reject, or request_changes decision on a
// step, addressed by step id or STEP-<n> within the instance.
// (POST /api/v1/workflows/:ref/steps/:step/decide)
func (s *Server) DecideStep(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	ref, err := parseInstanceRef(c.Param("ref"))
	if err != nil {
		return httpError(err)
	}
	instanceID, err := s.resolve(c, ref, id.TenantID)
	if err != nil {
		return httpError(err)
	}
	var req decideStepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	in := engine.DecideInput{
		TenantID:        id.TenantID,
		Trigger:         req.Trigger,
		ExpectedVersion: req.ExpectedVersion,
		Comment:         req.Comment,
		UserID:          id.UserID,
	}

	stepRaw := c.Param("step")
	var agg *engine.InstanceAggregate
	if rest, ok := strings.CutPrefix(stepRaw, "STEP-"); ok {
		n, perr := strconv.ParseInt(rest, 10, 64)
		if perr != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid step reference")
		}
		agg, err = s.Engine.DecideByDisplayNumber(c.Request().Context(), n, instanceID, in)
	} else {
		stepID, perr := uuid.Parse(stepRaw)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid step reference")
		}
		in.StepID = stepID
		agg, err = s.Engine.Decide(c.Request().Context(), in)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, agg)
}

type postCommentRequest struct {
	Body string `json:"body"`
}

// PostComment appends a comment to the instance's thread. Participants only.
// (POST /api/v1/workflows/:ref/comments)
func (s *Server) PostComment(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	ref, err := parseInstanceRef(c.Param("ref"))
	if err != nil {
		return httpError(err)
	}
	instanceID, err := s.resolve(c, ref, id.TenantID)
	if err != nil {
		return httpError(err)
	}
	var req postCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	comment, err := s.Engine.Comment(c.Request().Context(), engine.CommentInput{
		TenantID:   id.TenantID,
		InstanceID: instanceID,
		Body:       req.Body,
		UserID:     id.UserID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// ListComments returns the instance's comment thread. Participants only.
// (GET /api/v1/workflows/:ref/comments)
func (s *Server) ListComments(c echo.Context) error {
	id, _ := auth.IdentityFrom(c)
	ref, err := parseInstanceRef(c.Param("ref"))
	if err != nil {
		return httpError(err)
	}
	instanceID, err := s.resolve(c, ref, id.TenantID)
	if err != nil {
		return httpError(err)
	}
	comments, err := s.Engine.Comments(c.Request().Context(), id.TenantID, instanceID, id.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, comments)
}
