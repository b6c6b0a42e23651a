package domain

import "time"

// Invoice statuses used by the sample subject.
const (
	InvoiceDraft           = "draft"
	InvoicePendingApproval = "pending_approval"
	InvoiceApproved        = "approved"
	InvoiceRejected        = "rejected"
)

// Invoice is the bundled demo subject: a minimal payable document that gets
// driven through an approval workflow.
type Invoice struct {
	ID             int64     `json:"id"`
	Reference      string    `json:"reference"`
	Amount         float64   `json:"amount"`
	Status         string    `json:"status"`
	ApprovedStages int       `json:"approvedStages"`
	Created        time.Time `json:"created"`
	Updated        time.Time `json:"updated"`
}
