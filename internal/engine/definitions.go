package engine

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"approvalflow/backend/internal/domain"
	"approvalflow/backend/internal/repository"
)

// DefinitionService manages the workflow definition lifecycle: Draft
// definitions are mutable, publishing freezes them behind graph validation,
// archiving retires them.
type DefinitionService struct {
	definitions repository.DefinitionRepository
	clock       domain.Clock
}

func NewDefinitionService(definitions repository.DefinitionRepository, clock domain.Clock) *DefinitionService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &DefinitionService{definitions: definitions, clock: clock}
}

// CreateDefinitionInput creates a Draft definition.
type CreateDefinitionInput struct {
	TenantID    uuid.UUID
	Name        string
	Description string
	Definition  json.RawMessage
	UserID      uuid.UUID
}

// Create stores a new Draft definition at version 1. The graph is not
// validated here; invalid drafts are allowed and surface at publish time.
func (s *DefinitionService) Create(ctx context.Context, in CreateDefinitionInput) (*domain.WorkflowDefinition, error) {
	def, err := domain.NewWorkflowDefinition(in.TenantID, in.Name, in.Description, in.Definition, in.UserID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.definitions.Insert(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// UpdateDefinitionInput updates a Draft definition.
type UpdateDefinitionInput struct {
	TenantID    uuid.UUID
	ID          uuid.UUID
	Name        string
	Description string
	Definition  json.RawMessage
}

// Update replaces the mutable fields of a Draft definition, bumping its
// version. Non-draft definitions reject the update.
func (s *DefinitionService) Update(ctx context.Context, in UpdateDefinitionInput) (*domain.WorkflowDefinition, error) {
	def, err := s.definitions.FindByID(ctx, in.ID, in.TenantID)
	if err != nil {
		return nil, err
	}
	expected := def.Version
	if err := def.Update(in.Name, in.Description, in.Definition, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.definitions.UpdateWithExpectedVersion(ctx, def, expected); err != nil {
		return nil, err
	}
	return def, nil
}

// Delete removes a Draft definition. Published and archived definitions are
// kept forever because instances pin their versions.
func (s *DefinitionService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	def, err := s.definitions.FindByID(ctx, id, tenantID)
	if err != nil {
		return err
	}
	if err := def.CanDelete(); err != nil {
		return err
	}
	return s.definitions.Delete(ctx, id, tenantID)
}

// Publish validates the definition graph and moves the definition from Draft
// to Published. The version check runs before validation, so a stale caller
// sees Conflict regardless of whether their graph would have validated.
func (s *DefinitionService) Publish(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int) (*domain.WorkflowDefinition, error) {
	def, err := s.definitions.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	if def.Version != expectedVersion {
		return nil, domain.Conflict("workflow definition was modified concurrently")
	}
	if result := domain.ValidateDefinition(def.Definition); !result.Valid {
		return nil, domain.BadRequestf("definition is not valid: %s", result.Summary())
	}
	if err := def.Publish(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.definitions.UpdateWithExpectedVersion(ctx, def, expectedVersion); err != nil {
		return nil, err
	}
	return def, nil
}

// Archive moves a Published definition to Archived.
func (s *DefinitionService) Archive(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int) (*domain.WorkflowDefinition, error) {
	def, err := s.definitions.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	if def.Version != expectedVersion {
		return nil, domain.Conflict("workflow definition was modified concurrently")
	}
	if err := def.Archive(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.definitions.UpdateWithExpectedVersion(ctx, def, expectedVersion); err != nil {
		return nil, err
	}
	return def, nil
}

// Get returns a definition in any status.
func (s *DefinitionService) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowDefinition, error) {
	return s.definitions.FindByID(ctx, id, tenantID)
}

// List returns all of a tenant's definitions, newest first.
func (s *DefinitionService) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.WorkflowDefinition, error) {
	return s.definitions.FindAllByTenant(ctx, tenantID)
}

// Validate runs graph validation without touching stored state.
func (s *DefinitionService) Validate(raw json.RawMessage) domain.ValidationResult {
	return domain.ValidateDefinition(raw)
}
