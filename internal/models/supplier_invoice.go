package models

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusPending        InvoiceStatus = "pendente"
	InvoiceStatusPartial        InvoiceStatus = "parcial"
	InvoiceStatusAwaitingBoleto InvoiceStatus = "aguardando_boleto"
	InvoiceStatusPaid           InvoiceStatus = "pago"
	InvoiceStatusCancelled      InvoiceStatus = "cancelado"
)

type PaymentMethod string

const (
	MethodBoleto   PaymentMethod = "boleto"
	MethodPix      PaymentMethod = "pix"
	MethodTransfer PaymentMethod = "transferencia"
	MethodCash     PaymentMethod = "dinheiro"
)

// SupplierInvoice is a durable record of a supplier's nota fiscal.
// Unique per (document_number, supplier_tax_id, issue_date).
type SupplierInvoice struct {
	ID             uuid.UUID
	DocumentNumber string
	Series         string
	SupplierName   string
	SupplierTaxID  string
	IssueDate      time.Time
	DueDate        time.Time
	TotalValue     float64
	PaymentMethod  PaymentMethod
	Status         InvoiceStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}
