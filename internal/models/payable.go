package models

import (
	"time"

	"github.com/google/uuid"
)

type PayableStatus string

const (
	PayableStatusPending   PayableStatus = "pendente"
	PayableStatusPaid      PayableStatus = "pago"
	PayableStatusCancelled PayableStatus = "cancelado"
	PayableStatusOverdue   PayableStatus = "vencido"
)

type PayableCategory string

const (
	PayableCategoryPurchase PayableCategory = "compra"
	PayableCategoryTax      PayableCategory = "imposto"
	PayableCategoryService  PayableCategory = "servico"
	PayableCategoryOther    PayableCategory = "outro"
)

// NFLinkStatus tracks whether a purchase payable has its supplier invoice
// sorted out: linked to a record, embedded in the same physical document, or
// exempted with a justification.
type NFLinkStatus string

const (
	NFLinkNotRequired NFLinkStatus = "nao_exigida"
	NFLinkPending     NFLinkStatus = "pendente"
	NFLinkLinked      NFLinkStatus = "vinculada"
)

type PaymentInstrument string

const (
	InstrumentCash     PaymentInstrument = "dinheiro"
	InstrumentPix      PaymentInstrument = "pix"
	InstrumentTransfer PaymentInstrument = "transferencia"
)

func (p PaymentInstrument) Valid() bool {
	switch p {
	case InstrumentCash, InstrumentPix, InstrumentTransfer:
		return true
	}
	return false
}

// EditedField records one human override of a machine-extracted value.
type EditedField struct {
	Original string `json:"original"`
	Edited   string `json:"edited"`
}

// AuditEdit is the payload persisted alongside a record whenever any field
// differs from the extraction. Justification must be at least 10 characters;
// validation happens in the workflow, this is only the storage shape.
type AuditEdit struct {
	Edits         map[string]EditedField `json:"edits"`
	Justification string                 `json:"justification"`
	EditedAt      time.Time              `json:"edited_at"`
}

// HasAny reports whether at least one field was overridden.
func (a *AuditEdit) HasAny() bool {
	return a != nil && len(a.Edits) > 0
}

// Payable is a durable expense record (conta a pagar).
type Payable struct {
	ID                uuid.UUID
	BeneficiaryName   string
	BeneficiaryTaxID  string
	DocumentNumber    string
	Amount            float64
	DueDate           time.Time
	DigitLine         string
	Barcode           string
	PixKey            string
	PixKeyType        PixKeyType
	Description       string
	Category          PayableCategory
	Instrument        PaymentInstrument
	Status            PayableStatus
	NFLinkStatus      NFLinkStatus
	NFExemptionReason string
	NFInSameDocument  bool
	SupplierInvoiceID *uuid.UUID
	OCRConfidence     float64
	OCREdit           *AuditEdit
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}
