package repository

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/approvalhq/approvalflow/internal/config"
	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
	"github.com/approvalhq/approvalflow/internal/migrations"

	_ "github.com/mattn/go-sqlite3"
)

func setupRepos(t *testing.T) *Repositories {
	t.Helper()
	t.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)
	file := filepath.Join(t.TempDir(), "approvalflow-test.db")
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	for _, name := range []string{"sqllite3/000001_init.up.sql", "sqllite3/000002_invoices.up.sql"} {
		ddl, err := migrations.FS.ReadFile(name)
		if err != nil {
			t.Fatalf("Failed to read migration %s: %v", name, err)
		}
		if _, err := db.Exec(string(ddl)); err != nil {
			t.Fatalf("Failed to apply migration %s: %v", name, err)
		}
	}
	return New(db, core.NewRealClock())
}

func seedTemplate(t *testing.T, repos *Repositories, subjectType string, version int, active bool, orders ...int) *domain.WorkflowTemplate {
	t.Helper()
	tmpl := &domain.WorkflowTemplate{
		Code:        "expense-approval",
		Name:        "Expense approval",
		SubjectType: subjectType,
		IsActive:    active,
		Version:     version,
	}
	if _, err := repos.Templates.Save(tmpl); err != nil {
		t.Fatalf("Failed to save template: %v", err)
	}
	for i, order := range orders {
		stage := &domain.StageTemplate{
			TemplateID:     tmpl.ID,
			OrderIndex:     order,
			Name:           "Stage",
			DecisionPolicy: domain.PolicyAll,
			AllowReject:    true,
			AllowDelegate:  true,
		}
		if _, err := repos.Templates.SaveStage(stage); err != nil {
			t.Fatalf("Failed to save stage %d: %v", i, err)
		}
	}
	return tmpl
}

func TestFindActiveBySubjectTypePrefersHighestVersion(t *testing.T) {
	repos := setupRepos(t)
	seedTemplate(t, repos, "expense", 1, true, 1)
	v2 := seedTemplate(t, repos, "expense", 2, true, 1)
	seedTemplate(t, repos, "expense", 3, false, 1)

	found, err := repos.Templates.FindActiveBySubjectType("expense")
	if err != nil {
		t.Fatalf("FindActiveBySubjectType returned error: %v", err)
	}
	if found == nil || found.ID != v2.ID {
		t.Errorf("Expected active version 2, got %+v", found)
	}

	none, err := repos.Templates.FindActiveBySubjectType("unknown")
	if err != nil || none != nil {
		t.Errorf("Expected (nil, nil) for unknown type, got (%+v, %v)", none, err)
	}
}

func TestFindNextOrderIndexSkipsGaps(t *testing.T) {
	repos := setupRepos(t)
	// order indexes 1, 5, 5, 9: groups at sparse indexes
	tmpl := seedTemplate(t, repos, "expense", 1, true, 1, 5, 5, 9)

	next, err := repos.Templates.FindNextOrderIndex(tmpl.ID, 0)
	if err != nil || !next.Valid || next.Int64 != 1 {
		t.Errorf("Expected next index 1, got %+v %v", next, err)
	}
	next, _ = repos.Templates.FindNextOrderIndex(tmpl.ID, 1)
	if !next.Valid || next.Int64 != 5 {
		t.Errorf("Expected next index 5, got %+v", next)
	}
	next, _ = repos.Templates.FindNextOrderIndex(tmpl.ID, 5)
	if !next.Valid || next.Int64 != 9 {
		t.Errorf("Expected next index 9, got %+v", next)
	}
	next, _ = repos.Templates.FindNextOrderIndex(tmpl.ID, 9)
	if next.Valid {
		t.Errorf("Expected no further index, got %+v", next)
	}

	group, err := repos.Templates.FindStagesAtOrderIndex(tmpl.ID, 5)
	if err != nil || len(group) != 2 {
		t.Errorf("Expected 2 stages at index 5, got %d (%v)", len(group), err)
	}
}

func TestMaxResolvedOrderIndexIgnoresActiveStages(t *testing.T) {
	repos := setupRepos(t)
	tmpl := seedTemplate(t, repos, "expense", 1, true, 1, 2, 3)
	stages, _ := repos.Templates.FindStagesByTemplateID(tmpl.ID)

	inst := &domain.WorkflowInstance{
		ExternalID:  "ext-1",
		SubjectType: "expense",
		SubjectID:   1,
		TemplateID:  tmpl.ID,
		Status:      domain.InstanceInProgress,
	}
	repos.Instances.Save(inst)

	mk := func(tmplStage *domain.StageTemplate, status string) *domain.StageInstance {
		si := &domain.StageInstance{
			InstanceID: inst.ID,
			StageID:    tmplStage.ID,
			OrderIndex: tmplStage.OrderIndex,
			Status:     status,
		}
		if _, err := repos.Stages.Save(si); err != nil {
			t.Fatalf("Failed to save stage instance: %v", err)
		}
		return si
	}
	mk(stages[0], domain.StageCompleted)
	mk(stages[1], domain.StageSkipped)
	mk(stages[2], domain.StageActive)

	max, err := repos.Stages.MaxResolvedOrderIndex(inst.ID)
	if err != nil {
		t.Fatalf("MaxResolvedOrderIndex returned error: %v", err)
	}
	if !max.Valid || max.Int64 != 2 {
		t.Errorf("Expected max resolved index 2 (completed and skipped only), got %+v", max)
	}
}

func TestOpenInstanceUniquePerSubject(t *testing.T) {
	repos := setupRepos(t)
	tmpl := seedTemplate(t, repos, "expense", 1, true, 1)

	first := &domain.WorkflowInstance{ExternalID: "ext-1", SubjectType: "expense", SubjectID: 1,
		TemplateID: tmpl.ID, Status: domain.InstanceInProgress}
	if _, err := repos.Instances.Save(first); err != nil {
		t.Fatalf("Failed to save first instance: %v", err)
	}

	// the partial unique index rejects a second open instance for the subject
	second := &domain.WorkflowInstance{ExternalID: "ext-2", SubjectType: "expense", SubjectID: 1,
		TemplateID: tmpl.ID, Status: domain.InstancePending}
	if _, err := repos.Instances.Save(second); err == nil {
		t.Error("Expected a second open instance for the same subject to be rejected")
	}

	// a finished instance no longer blocks a new one
	if err := repos.Instances.MarkFinished(first.ID, domain.InstanceCancelled); err != nil {
		t.Fatalf("Failed to cancel first instance: %v", err)
	}
	if _, err := repos.Instances.Save(second); err != nil {
		t.Errorf("Expected an open instance after the prior one finished, got %v", err)
	}
}

func TestDeletePendingKeepsDecidedAssignments(t *testing.T) {
	repos := setupRepos(t)
	tmpl := seedTemplate(t, repos, "expense", 1, true, 1)
	stages, _ := repos.Templates.FindStagesByTemplateID(tmpl.ID)

	inst := &domain.WorkflowInstance{ExternalID: "ext-1", SubjectType: "expense", SubjectID: 1,
		TemplateID: tmpl.ID, Status: domain.InstanceInProgress}
	repos.Instances.Save(inst)
	si := &domain.StageInstance{InstanceID: inst.ID, StageID: stages[0].ID, OrderIndex: 1, Status: domain.StageActive}
	repos.Stages.Save(si)

	a1 := &domain.Actor{Name: "Alice", Enabled: sql.NullBool{Bool: true, Valid: true}}
	a2 := &domain.Actor{Name: "Bob", Enabled: sql.NullBool{Bool: true, Valid: true}}
	repos.Actors.Save(a1)
	repos.Actors.Save(a2)

	approved := &domain.Assignment{StageInstID: si.ID, ActorID: a1.ID, IsMandatory: true, Status: domain.AssignmentApproved}
	pending := &domain.Assignment{StageInstID: si.ID, ActorID: a2.ID, IsMandatory: true, Status: domain.AssignmentPending}
	repos.Assignments.Save(approved)
	repos.Assignments.Save(pending)

	if err := repos.Assignments.DeletePendingByStageInstanceID(si.ID); err != nil {
		t.Fatalf("DeletePendingByStageInstanceID returned error: %v", err)
	}
	remaining, _ := repos.Assignments.FindByStageInstanceID(si.ID)
	if len(remaining) != 1 || remaining[0].ActorID != a1.ID {
		t.Errorf("Expected only the decided assignment to survive, got %+v", remaining)
	}
}

func TestHasDecisionByActorIgnoresComments(t *testing.T) {
	repos := setupRepos(t)
	tmpl := seedTemplate(t, repos, "expense", 1, true, 1)
	stages, _ := repos.Templates.FindStagesByTemplateID(tmpl.ID)

	inst := &domain.WorkflowInstance{ExternalID: "ext-1", SubjectType: "expense", SubjectID: 1,
		TemplateID: tmpl.ID, Status: domain.InstanceInProgress}
	repos.Instances.Save(inst)
	si := &domain.StageInstance{InstanceID: inst.ID, StageID: stages[0].ID, OrderIndex: 1, Status: domain.StageActive}
	repos.Stages.Save(si)

	actor := &domain.Actor{Name: "Alice", Enabled: sql.NullBool{Bool: true, Valid: true}}
	repos.Actors.Save(actor)

	repos.Actions.Save(&domain.Action{StageInstID: si.ID,
		ActorID: sql.NullInt64{Int64: actor.ID, Valid: true}, Action: domain.ActionComment})
	decided, err := repos.Actions.HasDecisionByActor(si.ID, actor.ID)
	if err != nil || decided {
		t.Errorf("Comment is not a decision, got (%v, %v)", decided, err)
	}

	repos.Actions.Save(&domain.Action{StageInstID: si.ID,
		ActorID: sql.NullInt64{Int64: actor.ID, Valid: true}, Action: domain.ActionApprove})
	decided, _ = repos.Actions.HasDecisionByActor(si.ID, actor.ID)
	if !decided {
		t.Error("Approve action should count as a decision")
	}
}

func TestResolveEligibleActorsFiltersRoleAndEnabled(t *testing.T) {
	repos := setupRepos(t)
	repos.Actors.Save(&domain.Actor{Name: "Alice", Role: sql.NullString{String: "manager", Valid: true},
		Enabled: sql.NullBool{Bool: true, Valid: true}})
	repos.Actors.Save(&domain.Actor{Name: "Bob", Role: sql.NullString{String: "manager", Valid: true},
		Enabled: sql.NullBool{Bool: false, Valid: true}})
	repos.Actors.Save(&domain.Actor{Name: "Carol", Role: sql.NullString{String: "finance", Valid: true},
		Enabled: sql.NullBool{Bool: true, Valid: true}})

	managers, err := repos.Actors.ResolveEligibleActors("manager")
	if err != nil {
		t.Fatalf("ResolveEligibleActors returned error: %v", err)
	}
	if len(managers) != 1 || managers[0].Name != "Alice" {
		t.Errorf("Expected only enabled managers, got %+v", managers)
	}

	everyone, _ := repos.Actors.ResolveEligibleActors("")
	if len(everyone) != 2 {
		t.Errorf("Expected all enabled actors with empty filter, got %d", len(everyone))
	}
}
