package engine

import "github.com/approvalhq/approvalflow/internal/domain"

// Stage group outcomes.
const (
	OutcomePending  = "pending"
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
)

// StageEvaluation is one active stage instance with the rows the policy
// needs: its template and its assignments.
type StageEvaluation struct {
	Stage       *domain.StageInstance
	Template    *domain.StageTemplate
	Assignments []*domain.Assignment
}

// EvaluateStageGroup resolves the active stage group (all stage instances
// sharing one order index) against each stage's decision policy.
//
// A rejection on any stage that allows rejection wins outright, regardless of
// approvals already recorded elsewhere in the group. Otherwise the group is
// approved only when every stage satisfies its own policy. A quorum larger
// than the assignment set can never be met; the group stays pending rather
// than failing.
func EvaluateStageGroup(group []StageEvaluation) string {
	anyRejected := false
	allApproved := true

	for _, ev := range group {
		if ev.Template.AllowReject && hasRejection(ev.Assignments) {
			anyRejected = true
			continue
		}

		approved := 0
		obligated := 0 // delegated assignments hand their obligation to the delegate
		for _, a := range ev.Assignments {
			if a.Status == domain.AssignmentDelegated {
				continue
			}
			obligated++
			if a.Status == domain.AssignmentApproved {
				approved++
			}
		}

		switch ev.Template.DecisionPolicy {
		case domain.PolicyAll:
			if approved != obligated || obligated == 0 {
				allApproved = false
			}
		case domain.PolicyAny:
			if approved < 1 {
				allApproved = false
			}
		case domain.PolicyQuorum:
			quorum := int(ev.Template.QuorumCount.Int32)
			if !ev.Template.QuorumCount.Valid || quorum < 1 {
				// default to simple majority
				quorum = obligated/2 + 1
				if quorum < 1 {
					quorum = 1
				}
			}
			if approved < quorum {
				allApproved = false
			}
		default:
			allApproved = false
		}
	}

	if anyRejected {
		return OutcomeRejected
	}
	if allApproved {
		return OutcomeApproved
	}
	return OutcomePending
}

func hasRejection(assignments []*domain.Assignment) bool {
	for _, a := range assignments {
		if a.Status == domain.AssignmentRejected {
			return true
		}
	}
	return false
}
