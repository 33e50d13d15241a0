package dto

import "github.com/drogafarto-web/docfiscal/internal/models"

type RejectedFile struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

type EnqueueResponse struct {
	Accepted []string       `json:"accepted"`
	Rejected []RejectedFile `json:"rejected"`
}

type QueuedDocumentResponse struct {
	ID           string             `json:"id"`
	FileName     string             `json:"file_name"`
	State        string             `json:"state"`
	StorageRef   string             `json:"storage_ref,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Extraction   *models.Extraction `json:"extraction,omitempty"`
	DuplicateOf  string             `json:"duplicate_of,omitempty"`
	EnqueuedAt   string             `json:"enqueued_at"`
}

// DecisionRequest carries the reviewed (possibly edited) values for one ready
// document. The client pre-fills every field from the extraction, so an
// untouched field round-trips unchanged.
type DecisionRequest struct {
	Classification string `json:"classification" validate:"required,oneof=receita despesa"`

	Amount         *float64 `json:"amount"`
	IssueDate      string   `json:"issue_date"`
	DueDate        string   `json:"due_date"`
	DigitLine      string   `json:"digit_line"`
	Barcode        string   `json:"barcode"`
	IssuerName     string   `json:"issuer_name"`
	IssuerTaxID    string   `json:"issuer_tax_id"`
	DocumentNumber string   `json:"document_number"`
	PixKey         string   `json:"pix_key"`

	// Required whenever any field above differs from the extraction.
	EditJustification string `json:"edit_justification"`

	// Expense-only supplemental fields.
	ServiceDescription string `json:"service_description"`
	PaymentInstrument  string `json:"payment_instrument"`
	ExpenseCategory    string `json:"expense_category"`
	LinkedInvoiceID    string `json:"linked_invoice_id"`
	NFInSameDocument   bool   `json:"nf_in_same_document"`
	NFExemptionReason  string `json:"nf_exemption_reason"`

	// Revenue-only; nil means the default (true).
	NeedsReconciliation *bool `json:"needs_reconciliation"`
}

type ConfirmResponse struct {
	Outcome    string `json:"outcome"` // created | duplicate | failed
	RecordID   string `json:"record_id,omitempty"`
	ConflictID string `json:"conflict_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type BatchItemResult struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Outcome    string `json:"outcome"` // created | duplicate | skipped | failed
	RecordID   string `json:"record_id,omitempty"`
	ConflictID string `json:"conflict_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type BatchConfirmResponse struct {
	Confirmed int               `json:"confirmed"`
	Duplicate int               `json:"duplicate"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}
