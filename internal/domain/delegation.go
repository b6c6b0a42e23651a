package domain

import (
	"database/sql"
	"time"
)

// Delegation records one actor handing a pending assignment to another within
// a stage. Single-hop: the engine never resolves A->B->C chains, each hop is
// an explicit call.
type Delegation struct {
	ID          int64
	FromActorID int64
	ToActorID   int64
	StageInstID int64
	StartDate   sql.NullTime
	EndDate     sql.NullTime
	Reason      string
	Active      bool
	Created     time.Time
	Deactivated sql.NullTime
}

// IsActive checks the active flag and the optional date window.
func (d *Delegation) IsActive(now time.Time) bool {
	if !d.Active {
		return false
	}
	if d.StartDate.Valid && now.Before(d.StartDate.Time) {
		return false
	}
	if d.EndDate.Valid && now.After(d.EndDate.Time) {
		return false
	}
	return true
}
