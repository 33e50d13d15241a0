package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/dto"
	"github.com/drogafarto-web/docfiscal/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CommitOutcome string

const (
	OutcomeCreated   CommitOutcome = "created"
	OutcomeDuplicate CommitOutcome = "duplicate"
	OutcomeFailed    CommitOutcome = "failed"
)

// CommitResult reports what happened to one confirmed document.
type CommitResult struct {
	Outcome    CommitOutcome
	RecordID   uuid.UUID
	ConflictID uuid.UUID
}

// PayableStore is the commit-side contract with payable persistence.
type PayableStore interface {
	Create(ctx context.Context, p *models.Payable) error
	ExistsByBarcode(ctx context.Context, codigoBarras string, excludeID *uuid.UUID) (bool, uuid.UUID, error)
	ExistsByDigitLine(ctx context.Context, linhaDigitavel string, excludeID *uuid.UUID) (bool, uuid.UUID, error)
	FindDuplicateExpense(ctx context.Context, taxID, documentNumber string, amount float64, dueDate time.Time) (bool, uuid.UUID, error)
}

// RevenueStore is the commit-side contract with revenue persistence.
type RevenueStore interface {
	Create(ctx context.Context, r *models.Revenue) error
	FindDuplicate(ctx context.Context, payerTaxID, documentNumber string) (bool, uuid.UUID, error)
}

// InvoiceStore is the commit-side contract with supplier invoice persistence.
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.SupplierInvoice) error
	FindDuplicate(ctx context.Context, documentNumber, supplierTaxID string, issueDate time.Time) (bool, uuid.UUID, error)
}

// CommitService persists confirmed documents as accounting records. Each
// create re-runs duplicate detection right before the insert: no client-side
// lock spans the gap between any earlier check and the write, so this final
// check is the actual correctness boundary against two near-simultaneous
// analyses of the same document.
type CommitService struct {
	payables PayableStore
	revenues RevenueStore
	invoices InvoiceStore
	logger   *zap.Logger
}

func NewCommitService(payables PayableStore, revenues RevenueStore, invoices InvoiceStore, logger *zap.Logger) *CommitService {
	return &CommitService{
		payables: payables,
		revenues: revenues,
		invoices: invoices,
		logger:   logger,
	}
}

// PrecheckDuplicate is the fast, UX-only duplicate check shown while the user
// reviews a document. It is advisory: only the commit-time check inside
// CreateRevenue/CreateExpense is correctness-bearing.
func (s *CommitService) PrecheckDuplicate(ctx context.Context, ext *models.Extraction) (bool, uuid.UUID, error) {
	if dup, id, err := s.payables.ExistsByBarcode(ctx, ext.Barcode, nil); err != nil || dup {
		return dup, id, err
	}
	if dup, id, err := s.payables.ExistsByDigitLine(ctx, ext.DigitLine, nil); err != nil || dup {
		return dup, id, err
	}
	return false, uuid.Nil, nil
}

// CreateRevenue persists a revenue record, re-checking duplicates on
// (payer tax id, document number) first.
func (s *CommitService) CreateRevenue(ctx context.Context, ext *models.Extraction, dec *dto.DecisionRequest, audit *models.AuditEdit) (*CommitResult, error) {
	taxID := effectiveString(dec.IssuerTaxID, ext.IssuerTaxID)
	docNumber := effectiveString(dec.DocumentNumber, ext.DocumentNumber)

	dup, conflictID, err := s.revenues.FindDuplicate(ctx, taxID, docNumber)
	if err != nil {
		return nil, fmt.Errorf("revenue duplicate check failed: %w", err)
	}
	if dup {
		return &CommitResult{Outcome: OutcomeDuplicate, ConflictID: conflictID}, nil
	}

	needsReconciliation := true
	if dec.NeedsReconciliation != nil {
		needsReconciliation = *dec.NeedsReconciliation
	}

	now := time.Now()
	rev := &models.Revenue{
		ID:                  uuid.New(),
		PayerName:           sanitizeText(effectiveString(dec.IssuerName, ext.IssuerName)),
		PayerTaxID:          taxID,
		DocumentNumber:      docNumber,
		Amount:              effectiveAmount(dec.Amount, ext.GrossAmount),
		IssueDate:           effectiveDate(dec.IssueDate, ext.IssueDate),
		Description:         sanitizeText(dec.ServiceDescription),
		NeedsReconciliation: needsReconciliation,
		OCRConfidence:       ext.Confidence,
		OCREdit:             audit,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.revenues.Create(ctx, rev); err != nil {
		s.logger.Error("Failed to persist revenue", zap.Error(err))
		return &CommitResult{Outcome: OutcomeFailed}, err
	}

	s.logger.Info("Revenue record created", zap.String("revenue_id", rev.ID.String()))
	return &CommitResult{Outcome: OutcomeCreated, RecordID: rev.ID}, nil
}

// CreateExpense persists an expense payable. Duplicate detection runs in
// order: barcode, digit line, then the composite
// (tax id, document number, amount, due date) key.
func (s *CommitService) CreateExpense(ctx context.Context, ext *models.Extraction, dec *dto.DecisionRequest, audit *models.AuditEdit) (*CommitResult, error) {
	barcode := effectiveString(dec.Barcode, ext.Barcode)
	digitLine := effectiveString(dec.DigitLine, ext.DigitLine)
	taxID := effectiveString(dec.IssuerTaxID, ext.IssuerTaxID)
	docNumber := effectiveString(dec.DocumentNumber, ext.DocumentNumber)
	amount := effectiveAmount(dec.Amount, ext.GrossAmount)
	dueDate := effectiveDate(dec.DueDate, ext.DueDate)

	if dup, conflictID, err := s.payables.ExistsByBarcode(ctx, barcode, nil); err != nil {
		return nil, fmt.Errorf("barcode duplicate check failed: %w", err)
	} else if dup {
		return &CommitResult{Outcome: OutcomeDuplicate, ConflictID: conflictID}, nil
	}
	if dup, conflictID, err := s.payables.ExistsByDigitLine(ctx, digitLine, nil); err != nil {
		return nil, fmt.Errorf("digit line duplicate check failed: %w", err)
	} else if dup {
		return &CommitResult{Outcome: OutcomeDuplicate, ConflictID: conflictID}, nil
	}
	if dup, conflictID, err := s.payables.FindDuplicateExpense(ctx, taxID, docNumber, amount, dueDate); err != nil {
		return nil, fmt.Errorf("expense duplicate check failed: %w", err)
	} else if dup {
		return &CommitResult{Outcome: OutcomeDuplicate, ConflictID: conflictID}, nil
	}

	category := DeriveCategory(ext, dec)
	pixKey := effectiveString(dec.PixKey, ext.PixKey)

	now := time.Now()
	p := &models.Payable{
		ID:               uuid.New(),
		BeneficiaryName:  sanitizeText(effectiveString(dec.IssuerName, ext.IssuerName)),
		BeneficiaryTaxID: taxID,
		DocumentNumber:   docNumber,
		Amount:           amount,
		DueDate:          dueDate,
		DigitLine:        digitLine,
		Barcode:          barcode,
		PixKey:           pixKey,
		Description:      sanitizeText(dec.ServiceDescription),
		Category:         category,
		Instrument:       models.PaymentInstrument(dec.PaymentInstrument),
		Status:           models.PayableStatusPending,
		OCRConfidence:    ext.Confidence,
		OCREdit:          audit,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if pixKey != "" {
		p.PixKeyType = models.InferPixKeyType(pixKey)
	}
	applyNFLink(p, dec)

	if err := s.payables.Create(ctx, p); err != nil {
		s.logger.Error("Failed to persist payable", zap.Error(err))
		return &CommitResult{Outcome: OutcomeFailed}, err
	}

	s.logger.Info("Payable created",
		zap.String("payable_id", p.ID.String()),
		zap.String("category", string(p.Category)),
		zap.String("nf_status", string(p.NFLinkStatus)),
	)
	return &CommitResult{Outcome: OutcomeCreated, RecordID: p.ID}, nil
}

// applyNFLink resolves the invoice linkage fields. A purchase with none of
// the three paths satisfied is persisted as pendente, never nao_exigida:
// the linkage still has to be sorted out later.
func applyNFLink(p *models.Payable, dec *dto.DecisionRequest) {
	if dec.LinkedInvoiceID != "" {
		if invoiceID, err := uuid.Parse(dec.LinkedInvoiceID); err == nil {
			p.SupplierInvoiceID = &invoiceID
			p.NFLinkStatus = models.NFLinkLinked
			return
		}
	}
	if dec.NFInSameDocument {
		p.NFInSameDocument = true
		p.NFLinkStatus = models.NFLinkNotRequired
		return
	}
	if reason := strings.TrimSpace(dec.NFExemptionReason); reason != "" {
		p.NFExemptionReason = reason
		p.NFLinkStatus = models.NFLinkNotRequired
		return
	}
	if p.Category == models.PayableCategoryPurchase {
		p.NFLinkStatus = models.NFLinkPending
		return
	}
	p.NFLinkStatus = models.NFLinkNotRequired
}

// InvoiceCommitResult reports the invoice + installments pair. The pair is a
// single logical unit without rollback: when installment creation fails after
// the invoice was created, both outcomes are surfaced.
type InvoiceCommitResult struct {
	Outcome            CommitOutcome
	InvoiceID          uuid.UUID
	ConflictID         uuid.UUID
	InstallmentsMade   int
	InstallmentFailure error
}

// CreateInvoiceWithInstallments creates a supplier invoice and, when
// installments > 0, one monthly payable per installment starting at firstDue.
// The last installment absorbs the rounding remainder.
func (s *CommitService) CreateInvoiceWithInstallments(ctx context.Context, inv *models.SupplierInvoice, installments int, firstDue time.Time) (*InvoiceCommitResult, error) {
	dup, conflictID, err := s.invoices.FindDuplicate(ctx, inv.DocumentNumber, inv.SupplierTaxID, inv.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("invoice duplicate check failed: %w", err)
	}
	if dup {
		return &InvoiceCommitResult{Outcome: OutcomeDuplicate, ConflictID: conflictID}, nil
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		s.logger.Error("Failed to persist supplier invoice", zap.Error(err))
		return &InvoiceCommitResult{Outcome: OutcomeFailed}, err
	}

	result := &InvoiceCommitResult{Outcome: OutcomeCreated, InvoiceID: inv.ID}
	if installments <= 0 {
		return result, nil
	}

	base := roundCentavos(inv.TotalValue / float64(installments))
	now := time.Now()
	for i := 0; i < installments; i++ {
		amount := base
		if i == installments-1 {
			amount = roundCentavos(inv.TotalValue - base*float64(installments-1))
		}
		p := &models.Payable{
			ID:                uuid.New(),
			BeneficiaryName:   inv.SupplierName,
			BeneficiaryTaxID:  inv.SupplierTaxID,
			DocumentNumber:    fmt.Sprintf("%s/%d", inv.DocumentNumber, i+1),
			Amount:            amount,
			DueDate:           firstDue.AddDate(0, i, 0),
			Description:       fmt.Sprintf("Parcela %d/%d NF %s", i+1, installments, inv.DocumentNumber),
			Category:          models.PayableCategoryPurchase,
			Status:            models.PayableStatusPending,
			NFLinkStatus:      models.NFLinkLinked,
			SupplierInvoiceID: &inv.ID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.payables.Create(ctx, p); err != nil {
			// The invoice stays; callers must surface both outcomes.
			result.InstallmentFailure = fmt.Errorf("installment %d/%d failed: %w", i+1, installments, err)
			s.logger.Error("Installment creation failed after invoice creation",
				zap.String("invoice_id", inv.ID.String()),
				zap.Int("installment", i+1),
				zap.Error(err),
			)
			return result, nil
		}
		result.InstallmentsMade++
	}

	return result, nil
}

func roundCentavos(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func effectiveString(edited, original string) string {
	if edited != "" {
		return edited
	}
	return original
}

func effectiveAmount(edited *float64, original float64) float64 {
	if edited != nil {
		return *edited
	}
	return original
}

func effectiveDate(edited string, original time.Time) time.Time {
	if edited == "" {
		return original
	}
	if parsed, err := time.Parse(dateLayout, edited); err == nil {
		return parsed
	}
	return original
}
