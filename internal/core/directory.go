package core

import "github.com/approvalhq/approvalflow/internal/domain"

// RoleDirectory supplies the eligible-actor set for a stage. It is an
// external, read-only dependency owned by the host's access-control
// subsystem; the bundled actors table provides a default implementation.
type RoleDirectory interface {
	// ResolveEligibleActors returns all enabled actors matching the role
	// filter. An empty filter matches every known actor.
	ResolveEligibleActors(roleFilter string) ([]*domain.Actor, error)

	// FindActorByID looks up a single actor. Returns (nil, nil) when the
	// actor does not exist.
	FindActorByID(id int64) (*domain.Actor, error)

	// FindFirstAdmin returns the fallback author for system actions when no
	// system actor is configured. Returns (nil, nil) when there is none.
	FindFirstAdmin() (*domain.Actor, error)
}
