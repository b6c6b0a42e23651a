package repository

import (
	"database/sql"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
)

const STAGE_INSTANCE_COLUMNS = ` id, instance_id, stage_template_id, order_index, status, activated, completed `

// StageInstanceRepository persists activated stage occurrences. Rows are
// created on demand by the orchestrator, never ahead of time.
type StageInstanceRepository struct {
	db    DBTX
	clock core.Clock
}

func NewStageInstanceRepository(db DBTX, clock core.Clock) *StageInstanceRepository {
	return &StageInstanceRepository{db: db, clock: clock}
}

func scanStageInstance(row interface{ Scan(...interface{}) error }) (*domain.StageInstance, error) {
	var si domain.StageInstance
	err := row.Scan(
		&si.ID,
		&si.InstanceID,
		&si.StageID,
		&si.OrderIndex,
		&si.Status,
		&si.Activated,
		&si.Completed,
	)
	if err != nil {
		return nil, err
	}
	return &si, nil
}

func (r *StageInstanceRepository) Save(si *domain.StageInstance) (int64, error) {
	vals := []interface{}{si.InstanceID, si.StageID, si.OrderIndex, si.Status,
		formatDateInDatabaseNull(si.Activated), formatDateInDatabaseNull(si.Completed)}
	base := `INSERT INTO approval_workflow_stage_instance (
		instance_id, stage_template_id, order_index, status, activated, completed
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `)`
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&si.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				si.ID = id
			}
		}
	}
	return si.ID, err
}

func (r *StageInstanceRepository) FindByID(id int64) (*domain.StageInstance, error) {
	query := `
		SELECT ` + STAGE_INSTANCE_COLUMNS + `
		FROM approval_workflow_stage_instance WHERE id = ` + placeholder(1) + `
	`
	return scanStageInstance(r.db.QueryRow(query, id))
}

// FindActiveByInstanceID returns the active stage group ordered by order
// index then id.
func (r *StageInstanceRepository) FindActiveByInstanceID(instanceID int64) ([]*domain.StageInstance, error) {
	query := `
		SELECT ` + STAGE_INSTANCE_COLUMNS + `
		FROM approval_workflow_stage_instance
		WHERE instance_id = ` + placeholder(1) + ` AND status = 'active'
		ORDER BY order_index, id
	`
	return r.queryStageInstances(query, instanceID)
}

func (r *StageInstanceRepository) FindByInstanceID(instanceID int64) ([]*domain.StageInstance, error) {
	query := `
		SELECT ` + STAGE_INSTANCE_COLUMNS + `
		FROM approval_workflow_stage_instance
		WHERE instance_id = ` + placeholder(1) + `
		ORDER BY order_index, id
	`
	return r.queryStageInstances(query, instanceID)
}

// MaxResolvedOrderIndex returns the highest order index among completed and
// skipped stage instances, or invalid when none resolved yet.
func (r *StageInstanceRepository) MaxResolvedOrderIndex(instanceID int64) (sql.NullInt64, error) {
	query := `
		SELECT MAX(order_index)
		FROM approval_workflow_stage_instance
		WHERE instance_id = ` + placeholder(1) + ` AND status IN ('completed', 'skipped')
	`
	var max sql.NullInt64
	err := r.db.QueryRow(query, instanceID).Scan(&max)
	return max, err
}

// Resolve moves a stage instance to a terminal status and stamps completed.
func (r *StageInstanceRepository) Resolve(id int64, status string) error {
	query := `
		UPDATE approval_workflow_stage_instance
		SET status = ` + placeholder(1) + `, completed = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, status, id)
	return err
}

func (r *StageInstanceRepository) queryStageInstances(query string, args ...interface{}) ([]*domain.StageInstance, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []*domain.StageInstance
	for rows.Next() {
		si, err := scanStageInstance(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, si)
	}
	return stages, rows.Err()
}
