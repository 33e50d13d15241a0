package models

import (
	"time"

	"github.com/google/uuid"
)

// Revenue is a durable income record created from a confirmed revenue
// document. Duplicate detection keys on (payer_tax_id, document_number).
type Revenue struct {
	ID                  uuid.UUID
	PayerName           string
	PayerTaxID          string
	DocumentNumber      string
	Amount              float64
	IssueDate           time.Time
	Description         string
	NeedsReconciliation bool
	OCRConfidence       float64
	OCREdit             *AuditEdit
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}
