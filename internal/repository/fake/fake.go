// Package fake provides in-memory implementations of the repository
// interfaces for engine tests. They honor the same optimistic-concurrency
// contract as the PostgreSQL implementations: version-checked updates fail
// with Conflict, cross-tenant lookups fail with NotFound.
package fake

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"approvalflow/backend/internal/domain"
)

// Store holds every fake repository behind one mutex, so transactional
// semantics reduce to "writes are serialized".
type Store struct {
	mu          sync.Mutex
	definitions map[uuid.UUID]domain.WorkflowDefinition
	instances   map[uuid.UUID]domain.WorkflowInstance
	steps       map[uuid.UUID]domain.WorkflowStep
	comments    map[uuid.UUID]domain.WorkflowComment
	counters    map[counterKey]int64
}

type counterKey struct {
	tenant     uuid.UUID
	entityType domain.DisplayEntityType
}

func NewStore() *Store {
	return &Store{
		definitions: make(map[uuid.UUID]domain.WorkflowDefinition),
		instances:   make(map[uuid.UUID]domain.WorkflowInstance),
		steps:       make(map[uuid.UUID]domain.WorkflowStep),
		comments:    make(map[uuid.UUID]domain.WorkflowComment),
		counters:    make(map[counterKey]int64),
	}
}

// Definitions returns the definition repository view of the store.
func (s *Store) Definitions() *DefinitionRepository { return &DefinitionRepository{store: s} }

// Instances returns the instance repository view of the store.
func (s *Store) Instances() *InstanceRepository { return &InstanceRepository{store: s} }

// Steps returns the step repository view of the store.
func (s *Store) Steps() *StepRepository { return &StepRepository{store: s} }

// Comments returns the comment repository view of the store.
func (s *Store) Comments() *CommentRepository { return &CommentRepository{store: s} }

// DisplayNumbers returns the allocator view of the store.
func (s *Store) DisplayNumbers() *DisplayNumberAllocator { return &DisplayNumberAllocator{store: s} }

// Tx returns a transaction manager that simply runs the function; the store
// is already serialized per operation.
func (s *Store) Tx() *TxManager { return &TxManager{} }

type TxManager struct{}

func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type DefinitionRepository struct {
	store *Store
}

func (r *DefinitionRepository) Insert(_ context.Context, def *domain.WorkflowDefinition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.definitions[def.ID] = *def
	return nil
}

func (r *DefinitionRepository) UpdateWithExpectedVersion(_ context.Context, def *domain.WorkflowDefinition, expectedVersion int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.definitions[def.ID]
	if !ok || stored.TenantID != def.TenantID || stored.Version != expectedVersion {
		return domain.Conflict("workflow definition was modified concurrently")
	}
	r.store.definitions[def.ID] = *def
	return nil
}

func (r *DefinitionRepository) Delete(_ context.Context, id, tenantID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.definitions[id]
	if !ok || stored.TenantID != tenantID {
		return domain.NotFound("workflow definition", id.String())
	}
	delete(r.store.definitions, id)
	return nil
}

func (r *DefinitionRepository) FindByID(_ context.Context, id, tenantID uuid.UUID) (*domain.WorkflowDefinition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.definitions[id]
	if !ok || stored.TenantID != tenantID {
		return nil, domain.NotFound("workflow definition", id.String())
	}
	def := stored
	return &def, nil
}

func (r *DefinitionRepository) FindAllByTenant(_ context.Context, tenantID uuid.UUID) ([]*domain.WorkflowDefinition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var defs []*domain.WorkflowDefinition
	for _, stored := range r.store.definitions {
		if stored.TenantID == tenantID {
			def := stored
			defs = append(defs, &def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].CreatedAt.After(defs[j].CreatedAt) })
	return defs, nil
}

type InstanceRepository struct {
	store *Store
}

func (r *InstanceRepository) Insert(_ context.Context, instance *domain.WorkflowInstance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.instances[instance.ID] = *instance
	return nil
}

func (r *InstanceRepository) UpdateWithExpectedVersion(_ context.Context, instance *domain.WorkflowInstance, expectedVersion int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.instances[instance.ID]
	if !ok || stored.TenantID != instance.TenantID || stored.Version != expectedVersion {
		return domain.Conflict("workflow instance was modified concurrently")
	}
	r.store.instances[instance.ID] = *instance
	return nil
}

func (r *InstanceRepository) FindByID(_ context.Context, id, tenantID uuid.UUID) (*domain.WorkflowInstance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.instances[id]
	if !ok || stored.TenantID != tenantID {
		return nil, domain.NotFound("workflow instance", id.String())
	}
	instance := stored
	return &instance, nil
}

func (r *InstanceRepository) FindByDisplayNumber(_ context.Context, displayNumber int64, tenantID uuid.UUID) (*domain.WorkflowInstance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, stored := range r.store.instances {
		if stored.TenantID == tenantID && stored.DisplayNumber == displayNumber {
			instance := stored
			return &instance, nil
		}
	}
	return nil, domain.NotFound("workflow instance", domain.FormatDisplayID(domain.DisplayEntityWorkflowInstance, displayNumber))
}

func (r *InstanceRepository) FindByTenant(_ context.Context, tenantID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	return r.filter(func(i domain.WorkflowInstance) bool { return i.TenantID == tenantID })
}

func (r *InstanceRepository) FindByInitiator(_ context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	return r.filter(func(i domain.WorkflowInstance) bool {
		return i.TenantID == tenantID && i.InitiatedBy == userID
	})
}

func (r *InstanceRepository) FindByIDs(_ context.Context, ids []uuid.UUID, tenantID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return r.filter(func(i domain.WorkflowInstance) bool {
		return i.TenantID == tenantID && wanted[i.ID]
	})
}

func (r *InstanceRepository) filter(keep func(domain.WorkflowInstance) bool) ([]*domain.WorkflowInstance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var instances []*domain.WorkflowInstance
	for _, stored := range r.store.instances {
		if keep(stored) {
			instance := stored
			instances = append(instances, &instance)
		}
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].DisplayNumber > instances[j].DisplayNumber
	})
	return instances, nil
}

type StepRepository struct {
	store *Store
}

func (r *StepRepository) Insert(_ context.Context, step *domain.WorkflowStep) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.steps[step.ID] = *step
	return nil
}

func (r *StepRepository) UpdateWithExpectedVersion(_ context.Context, step *domain.WorkflowStep, expectedVersion int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.steps[step.ID]
	if !ok || stored.TenantID != step.TenantID || stored.Version != expectedVersion {
		return domain.Conflict("workflow step was modified concurrently")
	}
	r.store.steps[step.ID] = *step
	return nil
}

func (r *StepRepository) FindByID(_ context.Context, id, tenantID uuid.UUID) (*domain.WorkflowStep, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.steps[id]
	if !ok || stored.TenantID != tenantID {
		return nil, domain.NotFound("workflow step", id.String())
	}
	step := stored
	return &step, nil
}

func (r *StepRepository) FindByInstance(_ context.Context, instanceID, tenantID uuid.UUID) ([]*domain.WorkflowStep, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var steps []*domain.WorkflowStep
	for _, stored := range r.store.steps {
		if stored.InstanceID == instanceID && stored.TenantID == tenantID {
			step := stored
			steps = append(steps, &step)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].DisplayNumber < steps[j].DisplayNumber })
	return steps, nil
}

func (r *StepRepository) FindByAssignee(_ context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowStep, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var steps []*domain.WorkflowStep
	for _, stored := range r.store.steps {
		if stored.TenantID == tenantID && stored.AssignedTo == userID {
			step := stored
			steps = append(steps, &step)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].CreatedAt.After(steps[j].CreatedAt) })
	return steps, nil
}

func (r *StepRepository) FindByDisplayNumber(_ context.Context, displayNumber int64, instanceID, tenantID uuid.UUID) (*domain.WorkflowStep, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, stored := range r.store.steps {
		if stored.TenantID == tenantID && stored.InstanceID == instanceID && stored.DisplayNumber == displayNumber {
			step := stored
			return &step, nil
		}
	}
	return nil, domain.NotFound("workflow step", domain.FormatDisplayID(domain.DisplayEntityWorkflowStep, displayNumber))
}

type CommentRepository struct {
	store *Store
}

func (r *CommentRepository) Insert(_ context.Context, comment *domain.WorkflowComment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.comments[comment.ID] = *comment
	return nil
}

func (r *CommentRepository) FindByInstance(_ context.Context, instanceID, tenantID uuid.UUID) ([]*domain.WorkflowComment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var comments []*domain.WorkflowComment
	for _, stored := range r.store.comments {
		if stored.InstanceID == instanceID && stored.TenantID == tenantID {
			c := stored
			comments = append(comments, &c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

type DisplayNumberAllocator struct {
	store *Store
}

func (a *DisplayNumberAllocator) Next(_ context.Context, tenantID uuid.UUID, entityType domain.DisplayEntityType) (int64, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	key := counterKey{tenant: tenantID, entityType: entityType}
	a.store.counters[key]++
	return a.store.counters[key], nil
}
