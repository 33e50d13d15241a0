package dto

type MatchCandidateResponse struct {
	InvoiceID      string   `json:"invoice_id"`
	DocumentNumber string   `json:"document_number"`
	SupplierName   string   `json:"supplier_name"`
	TotalValue     float64  `json:"total_value"`
	Score          int      `json:"score"`
	Reasons        []string `json:"reasons"`
}

type MatchSuggestionsResponse struct {
	Stale      bool                     `json:"stale"`
	Candidates []MatchCandidateResponse `json:"candidates"`
}

type CreateInvoiceRequest struct {
	DocumentNumber string  `json:"document_number" validate:"required"`
	Series         string  `json:"series"`
	SupplierName   string  `json:"supplier_name" validate:"required"`
	SupplierTaxID  string  `json:"supplier_tax_id" validate:"required"`
	IssueDate      string  `json:"issue_date" validate:"required"`
	DueDate        string  `json:"due_date"`
	TotalValue     float64 `json:"total_value" validate:"required,gt=0"`
	PaymentMethod  string  `json:"payment_method" validate:"required,oneof=boleto pix transferencia dinheiro"`

	// Optional installment plan: N payables spread monthly from first_due_date.
	Installments int    `json:"installments"`
	FirstDueDate string `json:"first_due_date"`
}

type CreateInvoiceResponse struct {
	InvoiceID        string `json:"invoice_id,omitempty"`
	Outcome          string `json:"outcome"`
	ConflictID       string `json:"conflict_id,omitempty"`
	InstallmentsMade int    `json:"installments_created"`
	InstallmentError string `json:"installment_error,omitempty"`
}
