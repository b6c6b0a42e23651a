package repository

import (
	"log/slog"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
)

const ACTION_COLUMNS = ` id, stage_instance_id, actor_id, assignment_id, action, comment, created, triggers_completion `

// ActionRepository persists the append-only audit ledger. There are no
// update or delete methods on purpose.
type ActionRepository struct {
	db    DBTX
	clock core.Clock
}

func NewActionRepository(db DBTX, clock core.Clock) *ActionRepository {
	return &ActionRepository{db: db, clock: clock}
}

func scanAction(row interface{ Scan(...interface{}) error }) (*domain.Action, error) {
	var a domain.Action
	err := row.Scan(
		&a.ID,
		&a.StageInstID,
		&a.ActorID,
		&a.AssignmentID,
		&a.Action,
		&a.Comment,
		&a.Created,
		&a.TriggersCompletion,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ActionRepository) Save(a *domain.Action) (int64, error) {
	if a.Created.IsZero() {
		a.Created = r.clock.Now().UTC()
	}
	vals := []interface{}{a.StageInstID, a.ActorID, a.AssignmentID, a.Action, a.Comment,
		formatDateInDatabase(a.Created), a.TriggersCompletion}
	base := `INSERT INTO approval_action (
		stage_instance_id, actor_id, assignment_id, action, comment, created, triggers_completion
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `)`
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
	if err != nil {
		slog.Error("Failed to save approval action", "error", err)
	}
	return a.ID, err
}

// FindByStageInstanceID returns the ledger for one stage instance in
// insertion order.
func (r *ActionRepository) FindByStageInstanceID(stageInstID int64) ([]*domain.Action, error) {
	query := `
		SELECT ` + ACTION_COLUMNS + `
		FROM approval_action
		WHERE stage_instance_id = ` + placeholder(1) + `
		ORDER BY id
	`
	rows, err := r.db.Query(query, stageInstID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*domain.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// HasDecisionByActor reports whether the actor already approved or rejected
// in this stage instance.
func (r *ActionRepository) HasDecisionByActor(stageInstID int64, actorID int64) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM approval_action
		WHERE stage_instance_id = ` + placeholder(1) + `
		  AND actor_id = ` + placeholder(2) + `
		  AND action IN ('approve', 'reject')
	`
	var count int
	if err := r.db.QueryRow(query, stageInstID, actorID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
