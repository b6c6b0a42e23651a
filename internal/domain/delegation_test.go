package domain

import (
	"database/sql"
	"testing"
	"time"
)

func TestDelegationIsActiveHonorsDateWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)

	cases := []struct {
		name       string
		delegation Delegation
		want       bool
	}{
		{"active without window", Delegation{Active: true}, true},
		{"deactivated", Delegation{Active: false}, false},
		{"inside window", Delegation{Active: true,
			StartDate: sql.NullTime{Time: before, Valid: true},
			EndDate:   sql.NullTime{Time: after, Valid: true}}, true},
		{"not yet started", Delegation{Active: true,
			StartDate: sql.NullTime{Time: after, Valid: true}}, false},
		{"already ended", Delegation{Active: true,
			EndDate: sql.NullTime{Time: before, Valid: true}}, false},
		{"window boundary is inclusive", Delegation{Active: true,
			StartDate: sql.NullTime{Time: now, Valid: true},
			EndDate:   sql.NullTime{Time: now, Valid: true}}, true},
		{"deactivated inside window", Delegation{Active: false,
			StartDate: sql.NullTime{Time: before, Valid: true},
			EndDate:   sql.NullTime{Time: after, Valid: true}}, false},
	}
	for _, tc := range cases {
		if got := tc.delegation.IsActive(now); got != tc.want {
			t.Errorf("%s: expected IsActive=%v, got %v", tc.name, tc.want, got)
		}
	}
}
