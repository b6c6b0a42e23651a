package repository

import (
	"database/sql"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
)

const ASSIGNMENT_COLUMNS = ` id, stage_instance_id, actor_id, role_snapshot, is_mandatory, status, created `

// AssignmentRepository persists the materialized eligible approvers of a
// stage instance.
type AssignmentRepository struct {
	db    DBTX
	clock core.Clock
}

func NewAssignmentRepository(db DBTX, clock core.Clock) *AssignmentRepository {
	return &AssignmentRepository{db: db, clock: clock}
}

func scanAssignment(row interface{ Scan(...interface{}) error }) (*domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(
		&a.ID,
		&a.StageInstID,
		&a.ActorID,
		&a.RoleSnapshot,
		&a.IsMandatory,
		&a.Status,
		&a.Created,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) Save(a *domain.Assignment) (int64, error) {
	if a.Created.IsZero() {
		a.Created = r.clock.Now().UTC()
	}
	vals := []interface{}{a.StageInstID, a.ActorID, a.RoleSnapshot, a.IsMandatory, a.Status,
		formatDateInDatabase(a.Created)}
	base := `INSERT INTO approval_assignment (
		stage_instance_id, actor_id, role_snapshot, is_mandatory, status, created
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `)`
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&a.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				a.ID = id
			}
		}
	}
	return a.ID, err
}

func (r *AssignmentRepository) FindByStageInstanceID(stageInstID int64) ([]*domain.Assignment, error) {
	query := `
		SELECT ` + ASSIGNMENT_COLUMNS + `
		FROM approval_assignment
		WHERE stage_instance_id = ` + placeholder(1) + `
		ORDER BY id
	`
	rows, err := r.db.Query(query, stageInstID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// FindByStageAndActor returns the actor's assignment in a stage instance, or
// (nil, nil) when the actor is not assigned.
func (r *AssignmentRepository) FindByStageAndActor(stageInstID int64, actorID int64) (*domain.Assignment, error) {
	query := `
		SELECT ` + ASSIGNMENT_COLUMNS + `
		FROM approval_assignment
		WHERE stage_instance_id = ` + placeholder(1) + ` AND actor_id = ` + placeholder(2) + `
	`
	a, err := scanAssignment(r.db.QueryRow(query, stageInstID, actorID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *AssignmentRepository) UpdateStatus(id int64, status string) error {
	query := `
		UPDATE approval_assignment
		SET status = ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, status, id)
	return err
}

// DeletePendingByStageInstanceID discards assignments that never decided once
// their stage group resolves.
func (r *AssignmentRepository) DeletePendingByStageInstanceID(stageInstID int64) error {
	query := `
		DELETE FROM approval_assignment
		WHERE stage_instance_id = ` + placeholder(1) + ` AND status = 'pending'
	`
	_, err := r.db.Exec(query, stageInstID)
	return err
}
