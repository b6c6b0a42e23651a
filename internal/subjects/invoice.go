package subjects

import (
	"fmt"
	"log/slog"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
	"github.com/approvalhq/approvalflow/internal/repository"
)

// SubjectTypeInvoice is the type tag invoices register under.
const SubjectTypeInvoice = "invoice"

// Invoice adapts a stored invoice row to the approval lifecycle. It is the
// bundled demo subject; host applications implement the same interface over
// their own models.
type Invoice struct {
	store *repository.InvoiceRepository
	row   *domain.Invoice
}

// RegisterInvoices binds the invoice resolver into the subject registry.
func RegisterInvoices(registry *core.SubjectRegistry, store *repository.InvoiceRepository) {
	registry.Register(SubjectTypeInvoice, func(id int64) (core.Approvable, error) {
		row, err := store.FindByID(id)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, fmt.Errorf("invoice %d not found", id)
		}
		return &Invoice{store: store, row: row}, nil
	})
}

func (i *Invoice) Ref() core.SubjectRef {
	return core.SubjectRef{Type: SubjectTypeInvoice, ID: i.row.ID}
}

func (i *Invoice) OnApprovalStarted(instance *domain.WorkflowInstance) error {
	slog.Info("Invoice entered approval", "invoice_id", i.row.ID, "instance_id", instance.ID)
	return i.store.UpdateStatus(i.row.ID, domain.InvoicePendingApproval)
}

func (i *Invoice) OnStageApproved(stage *domain.StageInstance) error {
	return i.store.IncrementApprovedStages(i.row.ID)
}

func (i *Invoice) OnFullyApproved(instance *domain.WorkflowInstance) error {
	slog.Info("Invoice fully approved", "invoice_id", i.row.ID, "instance_id", instance.ID)
	return i.store.UpdateStatus(i.row.ID, domain.InvoiceApproved)
}

func (i *Invoice) OnRejected(instance *domain.WorkflowInstance, stage *domain.StageInstance) error {
	slog.Info("Invoice rejected", "invoice_id", i.row.ID, "instance_id", instance.ID)
	return i.store.UpdateStatus(i.row.ID, domain.InvoiceRejected)
}

func (i *Invoice) OnCancelled(instance *domain.WorkflowInstance, reason string) error {
	slog.Info("Invoice approval cancelled", "invoice_id", i.row.ID, "instance_id", instance.ID, "reason", reason)
	return i.store.UpdateStatus(i.row.ID, domain.InvoiceDraft)
}
