package repository

import (
	"database/sql"

	"github.com/approvalhq/approvalflow/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same repositories can
// run standalone reads or participate in the orchestrator's instance
// transaction.
type DBTX interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Repositories bundles one repository per approval entity, all bound to the
// same DBTX.
type Repositories struct {
	Templates   *TemplateRepository
	Instances   *InstanceRepository
	Stages      *StageInstanceRepository
	Assignments *AssignmentRepository
	Actions     *ActionRepository
	Delegations *DelegationRepository
	Actors      *ActorRepository
	Clock       core.Clock
}

func New(db DBTX, clock core.Clock) *Repositories {
	return &Repositories{
		Templates:   NewTemplateRepository(db, clock),
		Instances:   NewInstanceRepository(db, clock),
		Stages:      NewStageInstanceRepository(db, clock),
		Assignments: NewAssignmentRepository(db, clock),
		Actions:     NewActionRepository(db, clock),
		Delegations: NewDelegationRepository(db, clock),
		Actors:      NewActorRepository(db, clock),
		Clock:       clock,
	}
}
