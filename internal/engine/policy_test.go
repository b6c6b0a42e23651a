package engine

import (
	"database/sql"
	"testing"

	"github.com/approvalhq/approvalflow/internal/domain"
)

func stageEval(policy string, quorum int32, allowReject bool, statuses ...string) StageEvaluation {
	tmpl := &domain.StageTemplate{
		DecisionPolicy: policy,
		AllowReject:    allowReject,
	}
	if quorum > 0 {
		tmpl.QuorumCount = sql.NullInt32{Int32: quorum, Valid: true}
	}
	var assignments []*domain.Assignment
	for i, s := range statuses {
		assignments = append(assignments, &domain.Assignment{ID: int64(i + 1), ActorID: int64(i + 1), Status: s})
	}
	return StageEvaluation{
		Stage:       &domain.StageInstance{ID: 1, Status: domain.StageActive},
		Template:    tmpl,
		Assignments: assignments,
	}
}

func TestEvaluateAllPolicy(t *testing.T) {
	group := []StageEvaluation{stageEval(domain.PolicyAll, 0, true,
		domain.AssignmentApproved, domain.AssignmentPending)}
	if got := EvaluateStageGroup(group); got != OutcomePending {
		t.Errorf("one of two approved, expected pending, got %s", got)
	}

	group = []StageEvaluation{stageEval(domain.PolicyAll, 0, true,
		domain.AssignmentApproved, domain.AssignmentApproved)}
	if got := EvaluateStageGroup(group); got != OutcomeApproved {
		t.Errorf("all approved, expected approved, got %s", got)
	}
}

func TestEvaluateAllPolicyIgnoresDelegatedSource(t *testing.T) {
	// the delegated assignment handed its obligation to the replacement
	group := []StageEvaluation{stageEval(domain.PolicyAll, 0, true,
		domain.AssignmentDelegated, domain.AssignmentApproved)}
	if got := EvaluateStageGroup(group); got != OutcomeApproved {
		t.Errorf("delegated source should not block ALL, got %s", got)
	}
}

func TestEvaluateAnyPolicy(t *testing.T) {
	group := []StageEvaluation{stageEval(domain.PolicyAny, 0, true,
		domain.AssignmentPending, domain.AssignmentPending, domain.AssignmentApproved)}
	if got := EvaluateStageGroup(group); got != OutcomeApproved {
		t.Errorf("one approval satisfies ANY, got %s", got)
	}

	group = []StageEvaluation{stageEval(domain.PolicyAny, 0, true,
		domain.AssignmentPending, domain.AssignmentPending)}
	if got := EvaluateStageGroup(group); got != OutcomePending {
		t.Errorf("no approvals yet, expected pending, got %s", got)
	}
}

func TestEvaluateQuorumPolicy(t *testing.T) {
	group := []StageEvaluation{stageEval(domain.PolicyQuorum, 2, true,
		domain.AssignmentApproved, domain.AssignmentPending, domain.AssignmentPending)}
	if got := EvaluateStageGroup(group); got != OutcomePending {
		t.Errorf("1 of quorum 2, expected pending, got %s", got)
	}

	group = []StageEvaluation{stageEval(domain.PolicyQuorum, 2, true,
		domain.AssignmentApproved, domain.AssignmentApproved, domain.AssignmentPending)}
	if got := EvaluateStageGroup(group); got != OutcomeApproved {
		t.Errorf("2 of quorum 2, expected approved, got %s", got)
	}
}

func TestEvaluateQuorumDefaultsToMajority(t *testing.T) {
	// quorum unset: floor(n/2)+1, here 3 of 4
	group := []StageEvaluation{stageEval(domain.PolicyQuorum, 0, true,
		domain.AssignmentApproved, domain.AssignmentApproved, domain.AssignmentPending, domain.AssignmentPending)}
	if got := EvaluateStageGroup(group); got != OutcomePending {
		t.Errorf("2 of 4 with default majority 3, expected pending, got %s", got)
	}

	group = []StageEvaluation{stageEval(domain.PolicyQuorum, 0, true,
		domain.AssignmentApproved, domain.AssignmentApproved, domain.AssignmentApproved, domain.AssignmentPending)}
	if got := EvaluateStageGroup(group); got != OutcomeApproved {
		t.Errorf("3 of 4 with default majority 3, expected approved, got %s", got)
	}
}

func TestEvaluateUnreachableQuorumStaysPending(t *testing.T) {
	// quorum larger than the assignment set can never be met; the group
	// stalls rather than failing
	group := []StageEvaluation{stageEval(domain.PolicyQuorum, 5, true,
		domain.AssignmentApproved, domain.AssignmentApproved)}
	if got := EvaluateStageGroup(group); got != OutcomePending {
		t.Errorf("unreachable quorum, expected pending, got %s", got)
	}
}

func TestEvaluateRejectionWinsOutright(t *testing.T) {
	group := []StageEvaluation{
		stageEval(domain.PolicyAll, 0, true, domain.AssignmentApproved, domain.AssignmentApproved),
		stageEval(domain.PolicyAny, 0, true, domain.AssignmentRejected, domain.AssignmentApproved),
	}
	if got := EvaluateStageGroup(group); got != OutcomeRejected {
		t.Errorf("rejection should win over approvals, got %s", got)
	}
}

func TestEvaluateRejectionIgnoredWhenNotAllowed(t *testing.T) {
	group := []StageEvaluation{stageEval(domain.PolicyAny, 0, false,
		domain.AssignmentRejected, domain.AssignmentApproved)}
	if got := EvaluateStageGroup(group); got != OutcomeApproved {
		t.Errorf("stage disallows rejection, ANY approval should carry, got %s", got)
	}
}
