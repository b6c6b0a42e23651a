package domain

import (
	"database/sql"
	"time"
)

// Assignment statuses.
const (
	AssignmentPending   = "pending"
	AssignmentApproved  = "approved"
	AssignmentRejected  = "rejected"
	AssignmentDelegated = "delegated"
)

// Assignment is one actor's obligation to decide on an active stage.
// Unique per (stage instance, actor).
type Assignment struct {
	ID           int64
	StageInstID  int64
	ActorID      int64
	RoleSnapshot sql.NullString // actor's role at assignment time, never refreshed
	IsMandatory  bool
	Status       string
	Created      time.Time
}
