package invoices

import "time"

// Record is the persisted proof that an invoice was generated for a reference.
// Its presence is what the reconciliation worker and the sweeper check.
type Record struct {
	Reference   string    `dynamodbav:"reference"` // PK, same key as the order record
	InvoiceData string    `dynamodbav:"invoice_data"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
}
