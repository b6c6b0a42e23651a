package engine

import (
	"log/slog"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
	"github.com/approvalhq/approvalflow/internal/repository"
)

// AssignmentResolver materializes the eligible-actor set for a newly
// activated stage instance. Role labels are snapshotted at assignment time
// and never refreshed, even if the actor's role later changes.
type AssignmentResolver struct {
	directory core.RoleDirectory
}

func NewAssignmentResolver(directory core.RoleDirectory) *AssignmentResolver {
	return &AssignmentResolver{directory: directory}
}

// Populate creates one pending assignment per eligible actor and returns the
// created rows. Zero matches means the caller must auto-skip the stage.
func (r *AssignmentResolver) Populate(repos *repository.Repositories, stage *domain.StageInstance, tmpl *domain.StageTemplate) ([]*domain.Assignment, error) {
	roleFilter := ""
	if tmpl.RequiredRole.Valid {
		roleFilter = tmpl.RequiredRole.String
	}

	actors, err := r.directory.ResolveEligibleActors(roleFilter)
	if err != nil {
		return nil, err
	}

	var created []*domain.Assignment
	for _, actor := range actors {
		a := &domain.Assignment{
			StageInstID:  stage.ID,
			ActorID:      actor.ID,
			RoleSnapshot: actor.Role,
			IsMandatory:  true,
			Status:       domain.AssignmentPending,
		}
		if _, err := repos.Assignments.Save(a); err != nil {
			return nil, err
		}
		created = append(created, a)
	}

	slog.Debug("Resolved stage assignments",
		"stage_instance_id", stage.ID, "role_filter", roleFilter, "assignments", len(created))
	return created, nil
}
