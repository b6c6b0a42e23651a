package repository

import (
	"database/sql"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
)

const INVOICE_COLUMNS = ` id, reference, amount, status, approved_stages, created, updated `

// InvoiceRepository backs the bundled demo subject.
type InvoiceRepository struct {
	db    DBTX
	clock core.Clock
}

func NewInvoiceRepository(db DBTX, clock core.Clock) *InvoiceRepository {
	return &InvoiceRepository{db: db, clock: clock}
}

func scanInvoice(row interface{ Scan(...interface{}) error }) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.Reference,
		&inv.Amount,
		&inv.Status,
		&inv.ApprovedStages,
		&inv.Created,
		&inv.Updated,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) Save(inv *domain.Invoice) (int64, error) {
	if inv.Created.IsZero() {
		inv.Created = r.clock.Now().UTC()
	}
	inv.Updated = r.clock.Now().UTC()
	if inv.Status == "" {
		inv.Status = domain.InvoiceDraft
	}
	vals := []interface{}{inv.Reference, inv.Amount, inv.Status, inv.ApprovedStages,
		formatDateInDatabase(inv.Created), formatDateInDatabase(inv.Updated)}
	base := `INSERT INTO invoices (
		reference, amount, status, approved_stages, created, updated
	) VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `)`
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&inv.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				inv.ID = id
			}
		}
	}
	return inv.ID, err
}

func (r *InvoiceRepository) FindByID(id int64) (*domain.Invoice, error) {
	query := `
		SELECT ` + INVOICE_COLUMNS + `
		FROM invoices WHERE id = ` + placeholder(1) + `
	`
	inv, err := scanInvoice(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inv, err
}

func (r *InvoiceRepository) UpdateStatus(id int64, status string) error {
	query := `
		UPDATE invoices SET status = ` + placeholder(1) + `, updated = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, status, id)
	return err
}

func (r *InvoiceRepository) IncrementApprovedStages(id int64) error {
	query := `
		UPDATE invoices SET approved_stages = approved_stages + 1, updated = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}
