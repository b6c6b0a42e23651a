package domain

import (
	"database/sql"
	"time"
)

// Workflow instance statuses.
const (
	InstancePending    = "pending"
	InstanceInProgress = "in_progress"
	InstanceApproved   = "approved"
	InstanceRejected   = "rejected"
	InstanceCancelled  = "cancelled"
)

// Stage instance statuses. Stage instances are created on demand, so the
// pending status is theoretical; a materialized stage starts out active.
const (
	StagePending   = "pending"
	StageActive    = "active"
	StageCompleted = "completed"
	StageSkipped   = "skipped"
	StageCancelled = "cancelled"
)

// WorkflowInstance is one running execution of a template against one subject.
type WorkflowInstance struct {
	ID                  int64
	ExternalID          string // UUID, host-facing lookup key
	SubjectType         string
	SubjectID           int64
	TemplateID          int64
	CurrentStageID      sql.NullInt64 // stage instance id leading the active group
	Status              string
	Started             time.Time
	Finished            sql.NullTime
	CompletedStageCount int
}

// IsTerminal reports whether the instance can no longer change state.
func (w *WorkflowInstance) IsTerminal() bool {
	switch w.Status {
	case InstanceApproved, InstanceRejected, InstanceCancelled:
		return true
	}
	return false
}

// StageInstance is one activated occurrence of a stage template within an
// instance. At most one exists per order index per instance.
type StageInstance struct {
	ID         int64
	InstanceID int64
	StageID    int64 // stage template id
	OrderIndex int
	Status     string
	Activated  sql.NullTime
	Completed  sql.NullTime
}

// IsTerminal reports whether the stage instance has been resolved.
func (s *StageInstance) IsTerminal() bool {
	switch s.Status {
	case StageCompleted, StageSkipped, StageCancelled:
		return true
	}
	return false
}
