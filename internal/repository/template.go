package repository

import (
	"database/sql"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
)

const TEMPLATE_COLUMNS = ` id, code, name, description, subject_type, is_active, version, created, updated `

const STAGE_TEMPLATE_COLUMNS = ` id, template_id, order_index, name, decision_policy, quorum_count,
	       required_role, allow_reject, allow_delegate, sla_hours, created, updated `

// TemplateRepository persists workflow templates and their stage templates.
// Templates are immutable per version; the engine only ever reads them.
type TemplateRepository struct {
	db    DBTX
	clock core.Clock
}

func NewTemplateRepository(db DBTX, clock core.Clock) *TemplateRepository {
	return &TemplateRepository{db: db, clock: clock}
}

func scanTemplate(row interface{ Scan(...interface{}) error }) (*domain.WorkflowTemplate, error) {
	var t domain.WorkflowTemplate
	err := row.Scan(
		&t.ID,
		&t.Code,
		&t.Name,
		&t.Description,
		&t.SubjectType,
		&t.IsActive,
		&t.Version,
		&t.Created,
		&t.Updated,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) Save(t *domain.WorkflowTemplate) (int64, error) {
	if t.Created.IsZero() {
		t.Created = r.clock.Now().UTC()
	}
	t.Updated = r.clock.Now().UTC()
	vals := []interface{}{t.Code, t.Name, t.Description, t.SubjectType, t.IsActive, t.Version,
		formatDateInDatabase(t.Created), formatDateInDatabase(t.Updated)}
	base := `INSERT INTO approval_workflow_template (
		code, name, description, subject_type, is_active, version, created, updated
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `, ` + placeholder(8) + `)`
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&t.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				t.ID = id
			}
		}
	}
	return t.ID, err
}

func (r *TemplateRepository) FindByID(id int64) (*domain.WorkflowTemplate, error) {
	query := `
		SELECT ` + TEMPLATE_COLUMNS + `
		FROM approval_workflow_template WHERE id = ` + placeholder(1) + `
	`
	return scanTemplate(r.db.QueryRow(query, id))
}

// FindActiveBySubjectType returns the highest-version active template for a
// subject type, or (nil, nil) when none exists.
func (r *TemplateRepository) FindActiveBySubjectType(subjectType string) (*domain.WorkflowTemplate, error) {
	query := `
		SELECT ` + TEMPLATE_COLUMNS + `
		FROM approval_workflow_template
		WHERE subject_type = ` + placeholder(1) + ` AND is_active = ` + placeholder(2) + `
		ORDER BY version DESC
		LIMIT 1
	`
	t, err := scanTemplate(r.db.QueryRow(query, subjectType, true))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *TemplateRepository) FindAll() ([]*domain.WorkflowTemplate, error) {
	query := `
		SELECT ` + TEMPLATE_COLUMNS + `
		FROM approval_workflow_template
		ORDER BY subject_type, version DESC, code
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*domain.WorkflowTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) SaveStage(s *domain.StageTemplate) (int64, error) {
	if s.Created.IsZero() {
		s.Created = r.clock.Now().UTC()
	}
	s.Updated = r.clock.Now().UTC()
	vals := []interface{}{s.TemplateID, s.OrderIndex, s.Name, s.DecisionPolicy, s.QuorumCount,
		s.RequiredRole, s.AllowReject, s.AllowDelegate, s.SLAHours,
		formatDateInDatabase(s.Created), formatDateInDatabase(s.Updated)}
	base := `INSERT INTO approval_workflow_stage_template (
		template_id, order_index, name, decision_policy, quorum_count,
		required_role, allow_reject, allow_delegate, sla_hours, created, updated
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `, ` + placeholder(8) + `, ` +
		placeholder(9) + `, ` + placeholder(10) + `, ` + placeholder(11) + `)`
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&s.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				s.ID = id
			}
		}
	}
	return s.ID, err
}

func scanStageTemplate(row interface{ Scan(...interface{}) error }) (*domain.StageTemplate, error) {
	var s domain.StageTemplate
	err := row.Scan(
		&s.ID,
		&s.TemplateID,
		&s.OrderIndex,
		&s.Name,
		&s.DecisionPolicy,
		&s.QuorumCount,
		&s.RequiredRole,
		&s.AllowReject,
		&s.AllowDelegate,
		&s.SLAHours,
		&s.Created,
		&s.Updated,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *TemplateRepository) FindStageByID(id int64) (*domain.StageTemplate, error) {
	query := `
		SELECT ` + STAGE_TEMPLATE_COLUMNS + `
		FROM approval_workflow_stage_template WHERE id = ` + placeholder(1) + `
	`
	return scanStageTemplate(r.db.QueryRow(query, id))
}

// FindStagesByTemplateID returns all stage templates ordered by order index.
func (r *TemplateRepository) FindStagesByTemplateID(templateID int64) ([]*domain.StageTemplate, error) {
	query := `
		SELECT ` + STAGE_TEMPLATE_COLUMNS + `
		FROM approval_workflow_stage_template
		WHERE template_id = ` + placeholder(1) + `
		ORDER BY order_index
	`
	return r.queryStages(query, templateID)
}

// FindStagesAtOrderIndex returns the stage group sharing one order index.
func (r *TemplateRepository) FindStagesAtOrderIndex(templateID int64, orderIndex int) ([]*domain.StageTemplate, error) {
	query := `
		SELECT ` + STAGE_TEMPLATE_COLUMNS + `
		FROM approval_workflow_stage_template
		WHERE template_id = ` + placeholder(1) + ` AND order_index = ` + placeholder(2) + `
		ORDER BY id
	`
	return r.queryStages(query, templateID, orderIndex)
}

// FindNextOrderIndex returns the smallest order index greater than after, or
// invalid when the template has no further stages.
func (r *TemplateRepository) FindNextOrderIndex(templateID int64, after int) (sql.NullInt64, error) {
	query := `
		SELECT MIN(order_index)
		FROM approval_workflow_stage_template
		WHERE template_id = ` + placeholder(1) + ` AND order_index > ` + placeholder(2) + `
	`
	var next sql.NullInt64
	err := r.db.QueryRow(query, templateID, after).Scan(&next)
	return next, err
}

func (r *TemplateRepository) queryStages(query string, args ...interface{}) ([]*domain.StageTemplate, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []*domain.StageTemplate
	for rows.Next() {
		s, err := scanStageTemplate(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}
