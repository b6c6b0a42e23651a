package engine

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
	"github.com/approvalhq/approvalflow/internal/repository"
)

// DelegationRegistry reassigns a pending assignment from one actor to another
// within a stage. Delegation is single-hop: chains are never resolved by the
// engine, each hop is an independent explicit call.
type DelegationRegistry struct {
	directory core.RoleDirectory
}

func NewDelegationRegistry(directory core.RoleDirectory) *DelegationRegistry {
	return &DelegationRegistry{directory: directory}
}

// Delegate hands the source actor's pending assignment to the target: it
// records the delegation, creates a pending assignment for the target
// (inheriting the mandatory flag), marks the source assignment delegated and
// appends a delegate action. The caller holds the instance lock.
func (g *DelegationRegistry) Delegate(repos *repository.Repositories, stage *domain.StageInstance, tmpl *domain.StageTemplate,
	fromActorID, toActorID int64, comment string) (*domain.Delegation, error) {

	if !tmpl.AllowDelegate {
		return nil, ErrActionNotAllowed
	}

	fromAssignment, err := repos.Assignments.FindByStageAndActor(stage.ID, fromActorID)
	if err != nil {
		return nil, err
	}
	if fromAssignment == nil {
		return nil, ErrNoAssignment
	}
	if fromAssignment.Status != domain.AssignmentPending {
		return nil, fmt.Errorf("%w: assignment already processed", ErrInvalidDelegation)
	}

	target, err := g.directory.FindActorByID(toActorID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: target actor %d not found", ErrInvalidDelegation, toActorID)
	}

	existing, err := repos.Assignments.FindByStageAndActor(stage.ID, toActorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: target actor already involved in this stage", ErrInvalidDelegation)
	}

	if comment == "" {
		comment = fmt.Sprintf("Delegated to %s", target.Name)
	}
	delegation := &domain.Delegation{
		FromActorID: fromActorID,
		ToActorID:   toActorID,
		StageInstID: stage.ID,
		StartDate:   sql.NullTime{Time: repos.Clock.Now().UTC(), Valid: true},
		Reason:      comment,
		Active:      true,
	}
	if _, err := repos.Delegations.Save(delegation); err != nil {
		return nil, err
	}

	replacement := &domain.Assignment{
		StageInstID:  stage.ID,
		ActorID:      toActorID,
		RoleSnapshot: target.Role,
		IsMandatory:  fromAssignment.IsMandatory,
		Status:       domain.AssignmentPending,
	}
	if _, err := repos.Assignments.Save(replacement); err != nil {
		return nil, err
	}

	if err := repos.Assignments.UpdateStatus(fromAssignment.ID, domain.AssignmentDelegated); err != nil {
		return nil, err
	}

	_, err = repos.Actions.Save(&domain.Action{
		StageInstID:  stage.ID,
		ActorID:      sql.NullInt64{Int64: fromActorID, Valid: true},
		AssignmentID: sql.NullInt64{Int64: fromAssignment.ID, Valid: true},
		Action:       domain.ActionDelegate,
		Comment:      sql.NullString{String: comment, Valid: true},
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Delegated assignment",
		"stage_instance_id", stage.ID, "from_actor", fromActorID, "to_actor", toActorID)
	return delegation, nil
}
