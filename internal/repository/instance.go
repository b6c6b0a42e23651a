package repository

import (
	"database/sql"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
)

const INSTANCE_COLUMNS = ` id, external_id, subject_type, subject_id, template_id, current_stage_id,
	       status, started, finished, completed_stage_count `

// InstanceRepository persists workflow instances. Mutations run inside the
// orchestrator's transaction; LockByID takes the row lock that serializes
// concurrent decisions against one subject's workflow.
type InstanceRepository struct {
	db    DBTX
	clock core.Clock
}

func NewInstanceRepository(db DBTX, clock core.Clock) *InstanceRepository {
	return &InstanceRepository{db: db, clock: clock}
}

func scanInstance(row interface{ Scan(...interface{}) error }) (*domain.WorkflowInstance, error) {
	var wf domain.WorkflowInstance
	err := row.Scan(
		&wf.ID,
		&wf.ExternalID,
		&wf.SubjectType,
		&wf.SubjectID,
		&wf.TemplateID,
		&wf.CurrentStageID,
		&wf.Status,
		&wf.Started,
		&wf.Finished,
		&wf.CompletedStageCount,
	)
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *InstanceRepository) Save(wf *domain.WorkflowInstance) (int64, error) {
	if wf.Started.IsZero() {
		wf.Started = r.clock.Now().UTC()
	}
	vals := []interface{}{wf.ExternalID, wf.SubjectType, wf.SubjectID, wf.TemplateID, wf.CurrentStageID,
		wf.Status, formatDateInDatabase(wf.Started), formatDateInDatabaseNull(wf.Finished), wf.CompletedStageCount}
	base := `INSERT INTO approval_workflow_instance (
		external_id, subject_type, subject_id, template_id, current_stage_id,
		status, started, finished, completed_stage_count
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `, ` + placeholder(8) + `, ` + placeholder(9) + `)`
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&wf.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				wf.ID = id
			}
		}
	}
	return wf.ID, err
}

func (r *InstanceRepository) FindByID(id int64) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + INSTANCE_COLUMNS + `
		FROM approval_workflow_instance WHERE id = ` + placeholder(1) + `
	`
	return scanInstance(r.db.QueryRow(query, id))
}

func (r *InstanceRepository) FindByExternalID(externalID string) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + INSTANCE_COLUMNS + `
		FROM approval_workflow_instance WHERE external_id = ` + placeholder(1) + `
	`
	wf, err := scanInstance(r.db.QueryRow(query, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return wf, err
}

// LockByID re-reads the instance row under FOR UPDATE, blocking other
// transactions on the same instance until commit.
func (r *InstanceRepository) LockByID(id int64) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + INSTANCE_COLUMNS + `
		FROM approval_workflow_instance WHERE id = ` + placeholder(1) + forUpdate()
	return scanInstance(r.db.QueryRow(query, id))
}

// FindCurrentBySubject returns the newest pending or in-progress instance for
// a subject, or (nil, nil) when the subject has no open workflow.
func (r *InstanceRepository) FindCurrentBySubject(subjectType string, subjectID int64) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + INSTANCE_COLUMNS + `
		FROM approval_workflow_instance
		WHERE subject_type = ` + placeholder(1) + ` AND subject_id = ` + placeholder(2) + `
		  AND status IN ('pending', 'in_progress')
		ORDER BY started DESC, id DESC
		LIMIT 1
	`
	wf, err := scanInstance(r.db.QueryRow(query, subjectType, subjectID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return wf, err
}

// FindNewestBySubject returns the newest instance regardless of status, or
// (nil, nil) when the subject never started a workflow.
func (r *InstanceRepository) FindNewestBySubject(subjectType string, subjectID int64) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + INSTANCE_COLUMNS + `
		FROM approval_workflow_instance
		WHERE subject_type = ` + placeholder(1) + ` AND subject_id = ` + placeholder(2) + `
		ORDER BY started DESC, id DESC
		LIMIT 1
	`
	wf, err := scanInstance(r.db.QueryRow(query, subjectType, subjectID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return wf, err
}

// MarkInProgress sets the instance in progress and points it at the stage
// instance leading the newly activated group.
func (r *InstanceRepository) MarkInProgress(id int64, currentStageID sql.NullInt64) error {
	query := `
		UPDATE approval_workflow_instance
		SET status = 'in_progress', current_stage_id = ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, currentStageID, id)
	return err
}

// MarkFinished moves the instance to a terminal status, stamps finished and
// clears the current-stage pointer.
func (r *InstanceRepository) MarkFinished(id int64, status string) error {
	query := `
		UPDATE approval_workflow_instance
		SET status = ` + placeholder(1) + `, finished = ` + nowFunc(r.clock) + `, current_stage_id = NULL
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, status, id)
	return err
}

func (r *InstanceRepository) IncrementCompletedStageCount(id int64, by int) error {
	query := `
		UPDATE approval_workflow_instance
		SET completed_stage_count = completed_stage_count + ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, by, id)
	return err
}

// FindPendingByActor returns in-progress instances that have an active stage
// holding a pending assignment for the actor.
func (r *InstanceRepository) FindPendingByActor(actorID int64) ([]*domain.WorkflowInstance, error) {
	query := `
		SELECT DISTINCT ` + INSTANCE_COLUMNS + `
		FROM approval_workflow_instance
		WHERE status = 'in_progress'
		  AND id IN (
		      SELECT si.instance_id
		      FROM approval_workflow_stage_instance si
		      JOIN approval_assignment a ON a.stage_instance_id = si.id
		      WHERE si.status = 'active'
		        AND a.actor_id = ` + placeholder(1) + `
		        AND a.status = 'pending'
		  )
		ORDER BY id
	`
	rows, err := r.db.Query(query, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*domain.WorkflowInstance
	for rows.Next() {
		wf, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, wf)
	}
	return instances, rows.Err()
}
