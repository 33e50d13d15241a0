package models

import (
	"regexp"
	"strings"
	"time"
)

type DocumentTypeTag string

const (
	DocTypeInvoice  DocumentTypeTag = "nota_fiscal"
	DocTypeBoleto   DocumentTypeTag = "boleto"
	DocTypeReceipt  DocumentTypeTag = "recibo"
	DocTypeTaxGuide DocumentTypeTag = "guia_imposto"
	DocTypeOther    DocumentTypeTag = "outro"
)

// IsTaxDocument reports whether the tag is a government levy document.
// Tax documents are always expenses; the classification axis is locked for them.
func (t DocumentTypeTag) IsTaxDocument() bool {
	return t == DocTypeTaxGuide
}

type ClassificationHint string

const (
	HintRevenue ClassificationHint = "receita"
	HintExpense ClassificationHint = "despesa"
	HintUnknown ClassificationHint = "desconhecido"
)

type PixKeyType string

const (
	PixKeyCNPJ   PixKeyType = "cnpj"
	PixKeyCPF    PixKeyType = "cpf"
	PixKeyEmail  PixKeyType = "email"
	PixKeyPhone  PixKeyType = "telefone"
	PixKeyRandom PixKeyType = "aleatoria"
)

var nonDigits = regexp.MustCompile(`\D`)

// OnlyDigits strips every non-digit rune. Used for tax id comparison and
// PIX key type inference.
func OnlyDigits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// InferPixKeyType classifies a PIX key by shape: tax id digit counts,
// e-mail, Brazilian phone, otherwise a random (EVP) key.
func InferPixKeyType(key string) PixKeyType {
	key = strings.TrimSpace(key)
	if strings.Contains(key, "@") {
		return PixKeyEmail
	}
	digits := OnlyDigits(key)
	hasLetters := strings.IndexFunc(key, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}) >= 0
	switch {
	case strings.HasPrefix(key, "+") && len(digits) >= 12:
		return PixKeyPhone
	case !hasLetters && len(digits) == 14:
		return PixKeyCNPJ
	case !hasLetters && len(digits) == 11:
		return PixKeyCPF
	}
	return PixKeyRandom
}

// Extraction is the immutable snapshot returned by the recognition service
// for a single document. All monetary values are in BRL.
type Extraction struct {
	IssuerName     string             `json:"issuer_name"`
	IssuerTaxID    string             `json:"issuer_tax_id"`
	DocumentNumber string             `json:"document_number"`
	GrossAmount    float64            `json:"gross_amount"`
	NetAmount      float64            `json:"net_amount"`
	IssueDate      time.Time          `json:"issue_date"`
	DueDate        time.Time          `json:"due_date"`
	DigitLine      string             `json:"digit_line"`
	Barcode        string             `json:"barcode"`
	PixKey         string             `json:"pix_key"`
	PixKeyType     PixKeyType         `json:"pix_key_type"`
	DocumentType   DocumentTypeTag    `json:"document_type"`
	Hint           ClassificationHint `json:"classification_hint"`
	Confidence     float64            `json:"confidence"`
	Rationale      string             `json:"rationale"`
}
