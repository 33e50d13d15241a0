package service

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/drogafarto-web/docfiscal/internal/dto"
	"github.com/drogafarto-web/docfiscal/internal/models"
)

// amountTolerance is the absolute tolerance under which two amounts are the
// same value for edit tracking.
const amountTolerance = 0.01

// minJustificationLen is the minimum length (in runes) for edit and
// exemption justifications.
const minJustificationLen = 10

// FieldError is a validation failure tied to one form field. The handler
// surfaces it against that field, not as a global error, so previously
// entered data survives the rejection.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Classification is the suggested revenue/expense decision for a document.
type Classification struct {
	Suggested models.ClassificationHint
	// Locked pins tax documents to expense; the user may still edit
	// extracted fields, just not the revenue/expense axis.
	Locked bool
	// NeedsConfirmation flags documents whose hint was unknown: the default
	// is expense, but a human must look before batch paths trust it.
	NeedsConfirmation bool
}

// Classify derives the initial classification from the extraction.
func Classify(ext *models.Extraction) Classification {
	if ext.DocumentType.IsTaxDocument() {
		return Classification{Suggested: models.HintExpense, Locked: true}
	}
	switch ext.Hint {
	case models.HintRevenue, models.HintExpense:
		return Classification{Suggested: ext.Hint}
	}
	return Classification{Suggested: models.HintExpense, NeedsConfirmation: true}
}

const dateLayout = "2006-01-02"

// ComputeEdits compares the decision values against the extraction with
// type-appropriate equality: amounts within 0.01, issuer name
// case-insensitive, everything else exact. Returns one entry per changed
// field.
func ComputeEdits(ext *models.Extraction, dec *dto.DecisionRequest) map[string]models.EditedField {
	edits := make(map[string]models.EditedField)

	if dec.Amount != nil && math.Abs(*dec.Amount-ext.GrossAmount) > amountTolerance {
		edits["amount"] = models.EditedField{
			Original: fmt.Sprintf("%.2f", ext.GrossAmount),
			Edited:   fmt.Sprintf("%.2f", *dec.Amount),
		}
	}

	compareDate(edits, "issue_date", ext.IssueDate, dec.IssueDate)
	compareDate(edits, "due_date", ext.DueDate, dec.DueDate)

	compareString(edits, "digit_line", ext.DigitLine, dec.DigitLine, false)
	compareString(edits, "barcode", ext.Barcode, dec.Barcode, false)
	compareString(edits, "issuer_name", ext.IssuerName, dec.IssuerName, true)
	compareString(edits, "issuer_tax_id", ext.IssuerTaxID, dec.IssuerTaxID, false)
	compareString(edits, "document_number", ext.DocumentNumber, dec.DocumentNumber, false)
	compareString(edits, "pix_key", ext.PixKey, dec.PixKey, false)

	return edits
}

func compareDate(edits map[string]models.EditedField, field string, original time.Time, edited string) {
	if edited == "" {
		return
	}
	parsed, err := time.Parse(dateLayout, edited)
	if err != nil {
		return
	}
	oy, om, od := original.Date()
	ey, em, ed := parsed.Date()
	if oy != ey || om != em || od != ed {
		edits[field] = models.EditedField{
			Original: original.Format(dateLayout),
			Edited:   parsed.Format(dateLayout),
		}
	}
}

func compareString(edits map[string]models.EditedField, field, original, edited string, ignoreCase bool) {
	// Empty means the field was not provided; the original stands.
	if edited == "" {
		return
	}
	equal := original == edited
	if ignoreCase {
		equal = strings.EqualFold(original, edited)
	}
	if !equal {
		edits[field] = models.EditedField{Original: original, Edited: edited}
	}
}

// ValidateDecision enforces the confirmation gate: a valid classification,
// a sufficient justification whenever any field was edited, the expense
// supplemental fields, and the purchase NF linkage rule (exactly one of a
// linked invoice, the same-document flag, or an exemption reason).
func ValidateDecision(ext *models.Extraction, dec *dto.DecisionRequest, edits map[string]models.EditedField) error {
	switch dec.Classification {
	case string(models.HintRevenue), string(models.HintExpense):
	default:
		return &FieldError{Field: "classification", Message: "classificação deve ser receita ou despesa"}
	}

	if ext.DocumentType.IsTaxDocument() && dec.Classification != string(models.HintExpense) {
		return &FieldError{Field: "classification", Message: "documentos de imposto são sempre despesa"}
	}

	if len(edits) > 0 {
		justification := strings.TrimSpace(dec.EditJustification)
		if justification == "" {
			return &FieldError{Field: "edit_justification", Message: "justificativa obrigatória para campos editados"}
		}
		if utf8.RuneCountInString(justification) < minJustificationLen {
			return &FieldError{Field: "edit_justification", Message: fmt.Sprintf("justificativa deve ter pelo menos %d caracteres", minJustificationLen)}
		}
	}

	if dec.Classification == string(models.HintExpense) {
		if !models.PaymentInstrument(dec.PaymentInstrument).Valid() {
			return &FieldError{Field: "payment_instrument", Message: "forma de pagamento deve ser dinheiro, pix ou transferencia"}
		}
		if err := validateNFLink(ext, dec); err != nil {
			return err
		}
	}

	return nil
}

// validateNFLink applies the purchase-payable invoice rule. The three paths
// are mutually exclusive here even though the schema does not enforce it.
func validateNFLink(ext *models.Extraction, dec *dto.DecisionRequest) error {
	if DeriveCategory(ext, dec) != models.PayableCategoryPurchase {
		return nil
	}

	satisfied := 0
	if dec.LinkedInvoiceID != "" {
		satisfied++
	}
	if dec.NFInSameDocument {
		satisfied++
	}
	exemption := strings.TrimSpace(dec.NFExemptionReason)
	if exemption != "" {
		if utf8.RuneCountInString(exemption) < minJustificationLen {
			return &FieldError{Field: "nf_exemption_reason", Message: fmt.Sprintf("motivo de isenção deve ter pelo menos %d caracteres", minJustificationLen)}
		}
		satisfied++
	}

	switch {
	case satisfied == 0:
		return &FieldError{Field: "nf_vinculacao", Message: "compra exige nota fiscal vinculada, no mesmo documento ou motivo de isenção"}
	case satisfied > 1:
		return &FieldError{Field: "nf_vinculacao", Message: "escolha apenas uma forma de vinculação da nota fiscal"}
	}
	return nil
}

// DeriveCategory resolves the payable category from the decision, falling
// back to the document type tag.
func DeriveCategory(ext *models.Extraction, dec *dto.DecisionRequest) models.PayableCategory {
	switch models.PayableCategory(dec.ExpenseCategory) {
	case models.PayableCategoryPurchase, models.PayableCategoryTax,
		models.PayableCategoryService, models.PayableCategoryOther:
		return models.PayableCategory(dec.ExpenseCategory)
	}

	switch ext.DocumentType {
	case models.DocTypeTaxGuide:
		return models.PayableCategoryTax
	case models.DocTypeBoleto, models.DocTypeInvoice:
		return models.PayableCategoryPurchase
	case models.DocTypeReceipt:
		return models.PayableCategoryService
	}
	return models.PayableCategoryOther
}

// BuildAudit assembles the persisted audit payload for a set of edits.
// Returns nil when nothing was edited.
func BuildAudit(edits map[string]models.EditedField, justification string, now time.Time) *models.AuditEdit {
	if len(edits) == 0 {
		return nil
	}
	return &models.AuditEdit{
		Edits:         edits,
		Justification: strings.TrimSpace(justification),
		EditedAt:      now,
	}
}
