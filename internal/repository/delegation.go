package repository

import (
	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
)

const DELEGATION_COLUMNS = ` id, from_actor_id, to_actor_id, stage_instance_id, start_date, end_date,
	       reason, active, created, deactivated `

// DelegationRepository persists hand-offs of pending assignments.
type DelegationRepository struct {
	db    DBTX
	clock core.Clock
}

func NewDelegationRepository(db DBTX, clock core.Clock) *DelegationRepository {
	return &DelegationRepository{db: db, clock: clock}
}

func scanDelegation(row interface{ Scan(...interface{}) error }) (*domain.Delegation, error) {
	var d domain.Delegation
	err := row.Scan(
		&d.ID,
		&d.FromActorID,
		&d.ToActorID,
		&d.StageInstID,
		&d.StartDate,
		&d.EndDate,
		&d.Reason,
		&d.Active,
		&d.Created,
		&d.Deactivated,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DelegationRepository) Save(d *domain.Delegation) (int64, error) {
	if d.Created.IsZero() {
		d.Created = r.clock.Now().UTC()
	}
	vals := []interface{}{d.FromActorID, d.ToActorID, d.StageInstID,
		formatDateInDatabaseNull(d.StartDate), formatDateInDatabaseNull(d.EndDate),
		d.Reason, d.Active, formatDateInDatabase(d.Created), formatDateInDatabaseNull(d.Deactivated)}
	base := `INSERT INTO approval_delegation (
		from_actor_id, to_actor_id, stage_instance_id, start_date, end_date,
		reason, active, created, deactivated
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `, ` + placeholder(8) + `, ` + placeholder(9) + `)`
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&d.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				d.ID = id
			}
		}
	}
	return d.ID, err
}

func (r *DelegationRepository) FindByStageInstanceID(stageInstID int64) ([]*domain.Delegation, error) {
	query := `
		SELECT ` + DELEGATION_COLUMNS + `
		FROM approval_delegation
		WHERE stage_instance_id = ` + placeholder(1) + `
		ORDER BY id
	`
	rows, err := r.db.Query(query, stageInstID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var delegations []*domain.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, err
		}
		delegations = append(delegations, d)
	}
	return delegations, rows.Err()
}

// DeactivateByStageInstanceID closes all open delegations on a stage once it
// resolves or the workflow is cancelled.
func (r *DelegationRepository) DeactivateByStageInstanceID(stageInstID int64) error {
	query := `
		UPDATE approval_delegation
		SET active = ` + placeholder(1) + `, deactivated = ` + nowFunc(r.clock) + `
		WHERE stage_instance_id = ` + placeholder(2) + ` AND active = ` + placeholder(3) + `
	`
	_, err := r.db.Exec(query, false, stageInstID, true)
	return err
}
