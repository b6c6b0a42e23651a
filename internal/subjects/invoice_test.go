package subjects

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/approvalhq/approvalflow/internal/config"
	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
	"github.com/approvalhq/approvalflow/internal/migrations"
	"github.com/approvalhq/approvalflow/internal/repository"

	_ "github.com/mattn/go-sqlite3"
)

func setupInvoiceStore(t *testing.T) *repository.InvoiceRepository {
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
	return repository.NewInvoiceRepository(db, core.NewRealClock())
}

func TestInvoiceLifecycleHooks(t *testing.T) {
	store := setupInvoiceStore(t)
	registry := core.NewSubjectRegistry()
	RegisterInvoices(registry, store)

	inv := &domain.Invoice{Reference: "INV-1001", Amount: 250.00}
	if _, err := store.Save(inv); err != nil {
		t.Fatalf("Failed to save invoice: %v", err)
	}

	subject, err := registry.Resolve(core.SubjectRef{Type: SubjectTypeInvoice, ID: inv.ID})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ref := subject.Ref(); ref.Type != SubjectTypeInvoice || ref.ID != inv.ID {
		t.Errorf("Unexpected ref %+v", ref)
	}

	if err := subject.OnApprovalStarted(&domain.WorkflowInstance{ID: 1}); err != nil {
		t.Fatalf("OnApprovalStarted returned error: %v", err)
	}
	row, _ := store.FindByID(inv.ID)
	if row.Status != domain.InvoicePendingApproval {
		t.Errorf("Expected pending_approval, got %s", row.Status)
	}

	subject.OnStageApproved(&domain.StageInstance{ID: 1})
	subject.OnStageApproved(&domain.StageInstance{ID: 2})
	row, _ = store.FindByID(inv.ID)
	if row.ApprovedStages != 2 {
		t.Errorf("Expected 2 approved stages, got %d", row.ApprovedStages)
	}

	subject.OnFullyApproved(&domain.WorkflowInstance{ID: 1})
	row, _ = store.FindByID(inv.ID)
	if row.Status != domain.InvoiceApproved {
		t.Errorf("Expected approved, got %s", row.Status)
	}

	subject.OnCancelled(&domain.WorkflowInstance{ID: 1}, "duplicate")
	row, _ = store.FindByID(inv.ID)
	if row.Status != domain.InvoiceDraft {
		t.Errorf("Cancellation returns the invoice to draft, got %s", row.Status)
	}
}

func TestResolveUnknownInvoiceFails(t *testing.T) {
	store := setupInvoiceStore(t)
	registry := core.NewSubjectRegistry()
	RegisterInvoices(registry, store)

	if _, err := registry.Resolve(core.SubjectRef{Type: SubjectTypeInvoice, ID: 999}); err == nil {
		t.Error("Expected an error resolving a missing invoice")
	}
}
