package engine

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/approvalhq/approvalflow/internal/config"
	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
	"github.com/approvalhq/approvalflow/internal/repository"

	"github.com/google/uuid"
)

// Orchestrator drives workflow instances through their state machine:
// it creates instances from templates, activates stages on demand, evaluates
// completion and invokes the subject's lifecycle hooks.
//
// Every mutation runs inside one transaction that locks the instance row, so
// concurrent actions against the same subject's workflow serialize while
// different subjects proceed in parallel.
type Orchestrator struct {
	db          *sql.DB
	registry    *core.SubjectRegistry
	directory   core.RoleDirectory
	resolver    *AssignmentResolver
	delegations *DelegationRegistry
	clock       core.Clock
}

func NewOrchestrator(db *sql.DB, registry *core.SubjectRegistry, directory core.RoleDirectory, clock core.Clock) *Orchestrator {
	return &Orchestrator{
		db:          db,
		registry:    registry,
		directory:   directory,
		resolver:    NewAssignmentResolver(directory),
		delegations: NewDelegationRegistry(directory),
		clock:       clock,
	}
}

// hookQueue collects subject callbacks during the transaction and fires them
// after commit, still synchronously before control returns to the caller.
// Firing inside the transaction would let subject writes contend with the
// instance lock.
type hookQueue struct {
	fns []func() error
}

func (q *hookQueue) push(fn func() error) {
	q.fns = append(q.fns, fn)
}

func (q *hookQueue) fire() error {
	for _, fn := range q.fns {
		if err := fn(); err != nil {
			return fmt.Errorf("subject hook: %w", err)
		}
	}
	return nil
}

// StartWorkflow begins an approval workflow for the subject: it selects the
// active template for the subject's type, creates a pending instance,
// activates the first stage group and invokes OnApprovalStarted.
func (o *Orchestrator) StartWorkflow(subject core.Approvable) (*domain.WorkflowInstance, error) {
	ref := subject.Ref()
	if !o.registry.Known(ref.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubject, ref.Type)
	}

	tx, err := o.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	repos := repository.New(tx, o.clock)

	existing, err := repos.Instances.FindCurrentBySubject(ref.Type, ref.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w for %s", ErrAlreadyInProgress, ref)
	}

	template, err := repos.Templates.FindActiveBySubjectType(ref.Type)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoTemplate, ref.Type)
	}

	stages, err := repos.Templates.FindStagesByTemplateID(template.ID)
	if err != nil {
		return nil, err
	}
	if err := validateTemplate(template, stages); err != nil {
		return nil, err
	}

	instance := &domain.WorkflowInstance{
		ExternalID:  uuid.NewString(),
		SubjectType: ref.Type,
		SubjectID:   ref.ID,
		TemplateID:  template.ID,
		Status:      domain.InstancePending,
		Started:     o.clock.Now().UTC(),
	}
	if _, err := repos.Instances.Save(instance); err != nil {
		return nil, err
	}
	slog.Info("Starting workflow",
		"instance_id", instance.ID, "subject", ref.String(), "template", template.Code, "version", template.Version)

	hooks := &hookQueue{}
	if err := o.activateNextStage(repos, instance, hooks); err != nil {
		return nil, err
	}
	hooks.push(func() error { return subject.OnApprovalStarted(instance) })

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if err := hooks.fire(); err != nil {
		return instance, err
	}
	return instance, nil
}

// validateTemplate enforces template configuration rules before any instance
// is created from it.
func validateTemplate(template *domain.WorkflowTemplate, stages []*domain.StageTemplate) error {
	for _, s := range stages {
		if s.DecisionPolicy == domain.PolicyQuorum {
			if !s.QuorumCount.Valid || s.QuorumCount.Int32 < 1 {
				return fmt.Errorf("%w: stage %q of template %q requires a quorum count >= 1",
					ErrInvalidTemplate, s.Name, template.Code)
			}
		}
	}
	return nil
}

// activateNextStage materializes the stage group at the next unresolved order
// index. Stage instances for later indexes are never pre-created; a group
// whose role filter matches no one auto-skips and the search recurses. When
// no index remains the instance is approved.
func (o *Orchestrator) activateNextStage(repos *repository.Repositories, instance *domain.WorkflowInstance, hooks *hookQueue) error {
	if instance.IsTerminal() {
		return nil
	}

	after := 0
	maxResolved, err := repos.Stages.MaxResolvedOrderIndex(instance.ID)
	if err != nil {
		return err
	}
	if maxResolved.Valid {
		after = int(maxResolved.Int64)
	}

	next, err := repos.Templates.FindNextOrderIndex(instance.TemplateID, after)
	if err != nil {
		return err
	}
	if !next.Valid {
		// no more stages, the workflow is fully approved
		if err := repos.Instances.MarkFinished(instance.ID, domain.InstanceApproved); err != nil {
			return err
		}
		instance.Status = domain.InstanceApproved
		instance.Finished = sql.NullTime{Time: o.clock.Now().UTC(), Valid: true}
		instance.CurrentStageID = sql.NullInt64{}
		slog.Info("Workflow fully approved", "instance_id", instance.ID, "subject_type", instance.SubjectType, "subject_id", instance.SubjectID)
		hooks.push(func() error {
			subject, err := o.registry.Resolve(core.SubjectRef{Type: instance.SubjectType, ID: instance.SubjectID})
			if err != nil {
				return err
			}
			return subject.OnFullyApproved(instance)
		})
		return nil
	}

	stageTemplates, err := repos.Templates.FindStagesAtOrderIndex(instance.TemplateID, int(next.Int64))
	if err != nil {
		return err
	}

	now := o.clock.Now().UTC()
	anyActive := false
	var leadStageID sql.NullInt64
	for _, st := range stageTemplates {
		si := &domain.StageInstance{
			InstanceID: instance.ID,
			StageID:    st.ID,
			OrderIndex: st.OrderIndex,
			Status:     domain.StageActive,
			Activated:  sql.NullTime{Time: now, Valid: true},
		}
		if _, err := repos.Stages.Save(si); err != nil {
			return err
		}
		if !leadStageID.Valid {
			leadStageID = sql.NullInt64{Int64: si.ID, Valid: true}
		}

		assignments, err := o.resolver.Populate(repos, si, st)
		if err != nil {
			return err
		}
		if len(assignments) == 0 {
			if err := repos.Stages.Resolve(si.ID, domain.StageSkipped); err != nil {
				return err
			}
			_, err := repos.Actions.Save(&domain.Action{
				StageInstID:        si.ID,
				ActorID:            o.systemActorID(),
				Action:             domain.ActionComment,
				Comment:            sql.NullString{String: "Stage auto-skipped: no eligible approvers", Valid: true},
				TriggersCompletion: true,
			})
			if err != nil {
				return err
			}
			slog.Info("Stage auto-skipped, no eligible approvers",
				"instance_id", instance.ID, "stage", st.Name, "order_index", st.OrderIndex)
			continue
		}
		anyActive = true
		slog.Info("Activated stage",
			"instance_id", instance.ID, "stage", st.Name, "order_index", st.OrderIndex, "assignments", len(assignments))
	}

	if err := repos.Instances.MarkInProgress(instance.ID, leadStageID); err != nil {
		return err
	}
	instance.Status = domain.InstanceInProgress
	instance.CurrentStageID = leadStageID

	if !anyActive {
		// the whole group skipped, keep walking
		return o.activateNextStage(repos, instance, hooks)
	}
	return nil
}

// ProcessAction applies one actor action (approve, reject, delegate or
// comment) to the subject's active stage under the instance lock, then
// evaluates the stage group and advances or terminates the workflow when it
// resolves.
func (o *Orchestrator) ProcessAction(subject core.Approvable, actorID int64, action string, comment string, targetActorID int64) (*domain.WorkflowInstance, error) {
	switch action {
	case domain.ActionApprove, domain.ActionReject, domain.ActionDelegate, domain.ActionComment:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	ref := subject.Ref()
	tx, err := o.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	repos := repository.New(tx, o.clock)

	instance, err := repos.Instances.FindCurrentBySubject(ref.Type, ref.ID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoInstance, ref)
	}
	instance, err = repos.Instances.LockByID(instance.ID)
	if err != nil {
		return nil, err
	}

	activeStages, err := repos.Stages.FindActiveByInstanceID(instance.ID)
	if err != nil {
		return nil, err
	}
	if len(activeStages) == 0 {
		return nil, fmt.Errorf("%w on instance %d", ErrNoActiveStage, instance.ID)
	}

	// locate the actor's assignment within the active group
	var actingStage *domain.StageInstance
	var assignment *domain.Assignment
	for _, si := range activeStages {
		a, err := repos.Assignments.FindByStageAndActor(si.ID, actorID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			actingStage = si
			assignment = a
			break
		}
	}
	if assignment == nil {
		return nil, fmt.Errorf("%w: actor %d, instance %d", ErrNoAssignment, actorID, instance.ID)
	}

	stageTemplate, err := repos.Templates.FindStageByID(actingStage.StageID)
	if err != nil {
		return nil, err
	}

	if action == domain.ActionReject && !stageTemplate.AllowReject {
		return nil, fmt.Errorf("%w: rejection not allowed in stage %q", ErrActionNotAllowed, stageTemplate.Name)
	}
	if action == domain.ActionDelegate && !stageTemplate.AllowDelegate {
		return nil, fmt.Errorf("%w: delegation not allowed in stage %q", ErrActionNotAllowed, stageTemplate.Name)
	}

	if action == domain.ActionApprove || action == domain.ActionReject {
		if assignment.Status == domain.AssignmentDelegated {
			return nil, fmt.Errorf("%w: assignment was delegated away", ErrActionNotAllowed)
		}
		decided, err := repos.Actions.HasDecisionByActor(actingStage.ID, actorID)
		if err != nil {
			return nil, err
		}
		if decided {
			return nil, fmt.Errorf("%w: actor %d, stage %q", ErrDuplicateDecision, actorID, stageTemplate.Name)
		}
	}

	if action == domain.ActionDelegate {
		if targetActorID == 0 {
			return nil, fmt.Errorf("%w: target actor required", ErrInvalidDelegation)
		}
		if _, err := o.delegations.Delegate(repos, actingStage, stageTemplate, actorID, targetActorID, comment); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return instance, nil
	}

	_, err = repos.Actions.Save(&domain.Action{
		StageInstID:  actingStage.ID,
		ActorID:      sql.NullInt64{Int64: actorID, Valid: true},
		AssignmentID: sql.NullInt64{Int64: assignment.ID, Valid: true},
		Action:       action,
		Comment:      nullString(comment),
	})
	if err != nil {
		return nil, err
	}

	if action == domain.ActionApprove || action == domain.ActionReject {
		status := domain.AssignmentApproved
		if action == domain.ActionReject {
			status = domain.AssignmentRejected
		}
		if err := repos.Assignments.UpdateStatus(assignment.ID, status); err != nil {
			return nil, err
		}
	}
	slog.Info("Processed action",
		"instance_id", instance.ID, "actor_id", actorID, "action", action, "stage", stageTemplate.Name)

	group, err := o.loadStageGroup(repos, activeStages)
	if err != nil {
		return nil, err
	}
	outcome := EvaluateStageGroup(group)

	hooks := &hookQueue{}
	if outcome != OutcomePending {
		if err := o.completeStageGroup(repos, subject, instance, group, outcome, comment, hooks); err != nil {
			return nil, err
		}
		if outcome == OutcomeApproved {
			if err := o.activateNextStage(repos, instance, hooks); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if err := hooks.fire(); err != nil {
		return instance, err
	}
	return instance, nil
}

// loadStageGroup reloads templates and assignments for the active stage
// group so the policy evaluator sees current rows.
func (o *Orchestrator) loadStageGroup(repos *repository.Repositories, activeStages []*domain.StageInstance) ([]StageEvaluation, error) {
	var group []StageEvaluation
	for _, si := range activeStages {
		tmpl, err := repos.Templates.FindStageByID(si.StageID)
		if err != nil {
			return nil, err
		}
		assignments, err := repos.Assignments.FindByStageInstanceID(si.ID)
		if err != nil {
			return nil, err
		}
		group = append(group, StageEvaluation{Stage: si, Template: tmpl, Assignments: assignments})
	}
	return group, nil
}

// completeStageGroup marks every stage of the resolved group completed,
// deactivates open delegations and discards undecided assignments. On
// rejection the whole instance terminates.
func (o *Orchestrator) completeStageGroup(repos *repository.Repositories, subject core.Approvable, instance *domain.WorkflowInstance,
	group []StageEvaluation, outcome string, comment string, hooks *hookQueue) error {

	for _, ev := range group {
		if err := repos.Stages.Resolve(ev.Stage.ID, domain.StageCompleted); err != nil {
			return err
		}
		if err := repos.Delegations.DeactivateByStageInstanceID(ev.Stage.ID); err != nil {
			return err
		}
		if err := repos.Assignments.DeletePendingByStageInstanceID(ev.Stage.ID); err != nil {
			return err
		}
	}
	if err := repos.Instances.IncrementCompletedStageCount(instance.ID, len(group)); err != nil {
		return err
	}
	instance.CompletedStageCount += len(group)

	if outcome == OutcomeApproved {
		for _, ev := range group {
			stage := ev.Stage
			slog.Info("Stage approved", "instance_id", instance.ID, "stage_instance_id", stage.ID, "order_index", stage.OrderIndex)
			hooks.push(func() error { return subject.OnStageApproved(stage) })
		}
		return nil
	}

	// rejected: terminate the instance, later stages are never materialized
	if err := repos.Instances.MarkFinished(instance.ID, domain.InstanceRejected); err != nil {
		return err
	}
	instance.Status = domain.InstanceRejected
	instance.Finished = sql.NullTime{Time: o.clock.Now().UTC(), Valid: true}
	instance.CurrentStageID = sql.NullInt64{}

	rejectComment := comment
	if rejectComment == "" {
		rejectComment = "Workflow rejected"
	}
	first := group[0].Stage
	_, err := repos.Actions.Save(&domain.Action{
		StageInstID:        first.ID,
		ActorID:            o.systemActorID(),
		Action:             domain.ActionReject,
		Comment:            sql.NullString{String: rejectComment, Valid: true},
		TriggersCompletion: true,
	})
	if err != nil {
		return err
	}
	slog.Info("Workflow rejected", "instance_id", instance.ID, "stage_instance_id", first.ID)
	hooks.push(func() error { return subject.OnRejected(instance, first) })
	return nil
}

// CancelWorkflow cancels the subject's newest workflow instance. Cancelling
// an already-terminal instance is a no-op returning it unchanged.
func (o *Orchestrator) CancelWorkflow(subject core.Approvable, reason string) (*domain.WorkflowInstance, error) {
	ref := subject.Ref()

	tx, err := o.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	repos := repository.New(tx, o.clock)

	instance, err := repos.Instances.FindNewestBySubject(ref.Type, ref.ID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoInstance, ref)
	}
	if instance.IsTerminal() {
		return instance, nil
	}
	instance, err = repos.Instances.LockByID(instance.ID)
	if err != nil {
		return nil, err
	}
	if instance.IsTerminal() {
		return instance, nil
	}

	activeStages, err := repos.Stages.FindActiveByInstanceID(instance.ID)
	if err != nil {
		return nil, err
	}
	for _, si := range activeStages {
		if err := repos.Stages.Resolve(si.ID, domain.StageCancelled); err != nil {
			return nil, err
		}
		if err := repos.Delegations.DeactivateByStageInstanceID(si.ID); err != nil {
			return nil, err
		}
	}

	if err := repos.Instances.MarkFinished(instance.ID, domain.InstanceCancelled); err != nil {
		return nil, err
	}
	instance.Status = domain.InstanceCancelled
	instance.Finished = sql.NullTime{Time: o.clock.Now().UTC(), Valid: true}
	instance.CurrentStageID = sql.NullInt64{}

	if len(activeStages) > 0 {
		cancelComment := "Workflow cancelled. Reason: no reason provided"
		if reason != "" {
			cancelComment = "Workflow cancelled. Reason: " + reason
		}
		_, err := repos.Actions.Save(&domain.Action{
			StageInstID: activeStages[0].ID,
			ActorID:     o.systemActorID(),
			Action:      domain.ActionComment,
			Comment:     sql.NullString{String: cancelComment, Valid: true},
		})
		if err != nil {
			return nil, err
		}
	}
	slog.Info("Workflow cancelled", "instance_id", instance.ID, "subject", ref.String(), "reason", reason)

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if err := subject.OnCancelled(instance, reason); err != nil {
		return instance, fmt.Errorf("subject hook: %w", err)
	}
	return instance, nil
}

// RestartWorkflow cancels the current workflow and starts a fresh instance.
// The old instance stays cancelled; the new one gets a new id.
func (o *Orchestrator) RestartWorkflow(subject core.Approvable) (*domain.WorkflowInstance, error) {
	if _, err := o.CancelWorkflow(subject, "Restarted by system/user"); err != nil {
		return nil, err
	}
	return o.StartWorkflow(subject)
}

// GetWorkflowInstance returns the subject's newest instance, restricted to
// open (pending/in-progress) instances when activeOnly is set. Returns
// (nil, nil) when there is none.
func (o *Orchestrator) GetWorkflowInstance(subject core.Approvable, activeOnly bool) (*domain.WorkflowInstance, error) {
	ref := subject.Ref()
	repos := repository.New(o.db, o.clock)
	if activeOnly {
		return repos.Instances.FindCurrentBySubject(ref.Type, ref.ID)
	}
	return repos.Instances.FindNewestBySubject(ref.Type, ref.ID)
}

// GetUserPendingApprovals returns the in-progress instances waiting on the
// actor's decision.
func (o *Orchestrator) GetUserPendingApprovals(actorID int64) ([]*domain.WorkflowInstance, error) {
	repos := repository.New(o.db, o.clock)
	return repos.Instances.FindPendingByActor(actorID)
}

// IsWorkflowFinished reports whether the subject's newest instance reached a
// terminal status, along with that status ("no_instance" when none exists).
func (o *Orchestrator) IsWorkflowFinished(subject core.Approvable) (bool, string, error) {
	ref := subject.Ref()
	repos := repository.New(o.db, o.clock)
	instance, err := repos.Instances.FindNewestBySubject(ref.Type, ref.ID)
	if err != nil {
		return false, "", err
	}
	if instance == nil {
		return false, "no_instance", nil
	}
	return instance.IsTerminal(), instance.Status, nil
}

// EvaluateActiveStage is the read-only completion check over the active
// stage group, used for external polling. It never mutates state.
func (o *Orchestrator) EvaluateActiveStage(subject core.Approvable) (bool, string, error) {
	ref := subject.Ref()
	repos := repository.New(o.db, o.clock)

	instance, err := repos.Instances.FindCurrentBySubject(ref.Type, ref.ID)
	if err != nil {
		return false, "", err
	}
	if instance == nil {
		return false, "", fmt.Errorf("%w for %s", ErrNoInstance, ref)
	}

	activeStages, err := repos.Stages.FindActiveByInstanceID(instance.ID)
	if err != nil {
		return false, "", err
	}
	if len(activeStages) == 0 {
		return false, OutcomePending, nil
	}

	group, err := o.loadStageGroup(repos, activeStages)
	if err != nil {
		return false, "", err
	}
	outcome := EvaluateStageGroup(group)
	return outcome != OutcomePending, outcome, nil
}

func (o *Orchestrator) systemActorID() sql.NullInt64 {
	if id := config.GetSystemSettingInteger(config.SYSTEM_ACTOR_ID); id > 0 {
		if a, err := o.directory.FindActorByID(int64(id)); err == nil && a != nil {
			return sql.NullInt64{Int64: a.ID, Valid: true}
		}
	}
	if a, err := o.directory.FindFirstAdmin(); err == nil && a != nil {
		return sql.NullInt64{Int64: a.ID, Valid: true}
	}
	return sql.NullInt64{}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
