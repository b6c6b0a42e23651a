package domain

import (
	"database/sql"
	"time"
)

// Decision policies for a stage template.
const (
	PolicyAll    = "ALL"
	PolicyAny    = "ANY"
	PolicyQuorum = "QUORUM"
)

// WorkflowTemplate is a versioned approval definition for one subject type.
// The highest active version per subject type is selected at start time.
type WorkflowTemplate struct {
	ID          int64
	Code        string // unique
	Name        string
	Description sql.NullString
	SubjectType string
	IsActive    bool
	Version     int
	Created     time.Time
	Updated     time.Time
}

// StageTemplate is one ordered step of a workflow template.
type StageTemplate struct {
	ID             int64
	TemplateID     int64
	OrderIndex     int // 1-based, unique within template
	Name           string
	DecisionPolicy string
	QuorumCount    sql.NullInt32  // required when DecisionPolicy = QUORUM
	RequiredRole   sql.NullString // optional role filter
	AllowReject    bool
	AllowDelegate  bool
	SLAHours       sql.NullInt32 // informational only, never enforced
	Created        time.Time
	Updated        time.Time
}
