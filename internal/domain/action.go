package domain

import (
	"database/sql"
	"time"
)

// Action kinds.
const (
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionDelegate = "delegate"
	ActionComment  = "comment"
)

// Action is an immutable audit entry of a decision, comment or delegation.
// Rows are append-only; nothing in the engine updates or deletes them.
type Action struct {
	ID           int64
	StageInstID  int64
	ActorID      sql.NullInt64 // null when no system actor is configured
	AssignmentID sql.NullInt64
	Action       string
	Comment      sql.NullString
	Created      time.Time
	// TriggersCompletion marks the action that resolved its stage group.
	TriggersCompletion bool
}
