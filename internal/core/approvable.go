package core

import (
	"fmt"

	"github.com/approvalhq/approvalflow/internal/domain"
)

// SubjectRef is the weak reference the engine keeps to a business object:
// a registered type tag plus the object's id. The engine never owns the
// subject, it resolves it through the registry when it needs to call hooks.
type SubjectRef struct {
	Type string
	ID   int64
}

func (r SubjectRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// Approvable is the contract a business object must satisfy to be driven
// through an approval workflow. All five callbacks are mandatory and are
// invoked synchronously, exactly once per corresponding transition, before
// the orchestrator returns to its caller.
type Approvable interface {
	// Ref identifies the subject for persistence and lookups.
	Ref() SubjectRef

	OnApprovalStarted(instance *domain.WorkflowInstance) error
	OnStageApproved(stage *domain.StageInstance) error
	OnFullyApproved(instance *domain.WorkflowInstance) error
	// OnRejected receives the stage that caused the rejection, nil when the
	// rejection was not tied to a single stage.
	OnRejected(instance *domain.WorkflowInstance, stage *domain.StageInstance) error
	OnCancelled(instance *domain.WorkflowInstance, reason string) error
}

// SubjectResolver loads a concrete subject by id for one registered type tag.
type SubjectResolver func(id int64) (Approvable, error)

// SubjectRegistry maps subject type tags to resolvers. The host application
// populates it at startup, one entry per approvable model type.
type SubjectRegistry struct {
	resolvers map[string]SubjectResolver
}

func NewSubjectRegistry() *SubjectRegistry {
	return &SubjectRegistry{resolvers: make(map[string]SubjectResolver)}
}

// Register binds a type tag to a resolver. Registering a tag twice replaces
// the earlier resolver.
func (r *SubjectRegistry) Register(typeTag string, resolver SubjectResolver) {
	r.resolvers[typeTag] = resolver
}

// Resolve loads the subject behind a reference.
func (r *SubjectRegistry) Resolve(ref SubjectRef) (Approvable, error) {
	resolver, ok := r.resolvers[ref.Type]
	if !ok {
		return nil, fmt.Errorf("no resolver registered for subject type %q", ref.Type)
	}
	return resolver(ref.ID)
}

// Known reports whether a type tag has a registered resolver.
func (r *SubjectRegistry) Known(typeTag string) bool {
	_, ok := r.resolvers[typeTag]
	return ok
}
