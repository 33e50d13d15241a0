package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/dto"
	"github.com/drogafarto-web/docfiscal/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePayableStore struct {
	created []*models.Payable
	// duplicate knobs
	barcodeDup   uuid.UUID
	digitLineDup uuid.UUID
	compositeDup uuid.UUID
	createErr    error
	failAfter    int // fail Create once len(created) reaches this count; 0 disables
}

func (f *fakePayableStore) Create(_ context.Context, p *models.Payable) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.failAfter > 0 && len(f.created) >= f.failAfter {
		return errors.New("insert failed")
	}
	f.created = append(f.created, p)
	return nil
}

func (f *fakePayableStore) ExistsByBarcode(_ context.Context, codigoBarras string, _ *uuid.UUID) (bool, uuid.UUID, error) {
	if codigoBarras != "" && f.barcodeDup != uuid.Nil {
		return true, f.barcodeDup, nil
	}
	return false, uuid.Nil, nil
}

func (f *fakePayableStore) ExistsByDigitLine(_ context.Context, linhaDigitavel string, _ *uuid.UUID) (bool, uuid.UUID, error) {
	if linhaDigitavel != "" && f.digitLineDup != uuid.Nil {
		return true, f.digitLineDup, nil
	}
	return false, uuid.Nil, nil
}

func (f *fakePayableStore) FindDuplicateExpense(_ context.Context, _, documentNumber string, _ float64, _ time.Time) (bool, uuid.UUID, error) {
	if documentNumber != "" && f.compositeDup != uuid.Nil {
		return true, f.compositeDup, nil
	}
	return false, uuid.Nil, nil
}

type fakeRevenueStore struct {
	created   []*models.Revenue
	dupID     uuid.UUID
	createErr error
}

func (f *fakeRevenueStore) Create(_ context.Context, r *models.Revenue) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, r)
	return nil
}

func (f *fakeRevenueStore) FindDuplicate(_ context.Context, _, documentNumber string) (bool, uuid.UUID, error) {
	if documentNumber != "" && f.dupID != uuid.Nil {
		return true, f.dupID, nil
	}
	return false, uuid.Nil, nil
}

type fakeInvoiceStore struct {
	created   []*models.SupplierInvoice
	dupID     uuid.UUID
	createErr error
}

func (f *fakeInvoiceStore) Create(_ context.Context, inv *models.SupplierInvoice) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, inv)
	return nil
}

func (f *fakeInvoiceStore) FindDuplicate(_ context.Context, documentNumber, _ string, _ time.Time) (bool, uuid.UUID, error) {
	if documentNumber != "" && f.dupID != uuid.Nil {
		return true, f.dupID, nil
	}
	return false, uuid.Nil, nil
}

func newTestCommitService(p *fakePayableStore, r *fakeRevenueStore, i *fakeInvoiceStore) *CommitService {
	if p == nil {
		p = &fakePayableStore{}
	}
	if r == nil {
		r = &fakeRevenueStore{}
	}
	if i == nil {
		i = &fakeInvoiceStore{}
	}
	return NewCommitService(p, r, i, zap.NewNop())
}

func boletoExtraction() *models.Extraction {
	return &models.Extraction{
		IssuerName:     "Distribuidora Santa Cruz LTDA",
		IssuerTaxID:    "61940292000193",
		DocumentNumber: "12345",
		GrossAmount:    1543.20,
		DueDate:        time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC),
		Barcode:        "34198291070026000001790010104351004791020150",
		DigitLine:      "34191790010104351004791020150008291070026000",
		DocumentType:   models.DocTypeBoleto,
		Hint:           models.HintExpense,
		Confidence:     0.93,
	}
}

func expenseDecision() *dto.DecisionRequest {
	return &dto.DecisionRequest{
		Classification:    string(models.HintExpense),
		PaymentInstrument: string(models.InstrumentPix),
		NFInSameDocument:  true,
	}
}

func TestCreateExpense(t *testing.T) {
	t.Run("creates exactly one payable", func(t *testing.T) {
		payables := &fakePayableStore{}
		svc := newTestCommitService(payables, nil, nil)

		result, err := svc.CreateExpense(context.Background(), boletoExtraction(), expenseDecision(), nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, result.Outcome)
		require.Len(t, payables.created, 1)

		p := payables.created[0]
		assert.Equal(t, result.RecordID, p.ID)
		assert.Equal(t, 1543.20, p.Amount)
		assert.Equal(t, models.PayableCategoryPurchase, p.Category)
		assert.Equal(t, models.PayableStatusPending, p.Status)
		assert.Equal(t, models.NFLinkNotRequired, p.NFLinkStatus)
		assert.True(t, p.NFInSameDocument)
	})

	t.Run("barcode duplicate wins over everything", func(t *testing.T) {
		conflict := uuid.New()
		payables := &fakePayableStore{barcodeDup: conflict, digitLineDup: uuid.New(), compositeDup: uuid.New()}
		svc := newTestCommitService(payables, nil, nil)

		result, err := svc.CreateExpense(context.Background(), boletoExtraction(), expenseDecision(), nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, result.Outcome)
		assert.Equal(t, conflict, result.ConflictID)
		assert.Empty(t, payables.created)
	})

	t.Run("digit line duplicate checked after barcode", func(t *testing.T) {
		conflict := uuid.New()
		payables := &fakePayableStore{digitLineDup: conflict}
		svc := newTestCommitService(payables, nil, nil)

		result, err := svc.CreateExpense(context.Background(), boletoExtraction(), expenseDecision(), nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, result.Outcome)
		assert.Equal(t, conflict, result.ConflictID)
	})

	t.Run("composite duplicate checked last", func(t *testing.T) {
		conflict := uuid.New()
		payables := &fakePayableStore{compositeDup: conflict}
		svc := newTestCommitService(payables, nil, nil)

		result, err := svc.CreateExpense(context.Background(), boletoExtraction(), expenseDecision(), nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, result.Outcome)
		assert.Equal(t, conflict, result.ConflictID)
	})

	t.Run("decision values override extraction", func(t *testing.T) {
		payables := &fakePayableStore{}
		svc := newTestCommitService(payables, nil, nil)

		dec := expenseDecision()
		dec.Amount = floatPtr(1600.00)
		dec.IssuerName = "Profarma Distribuidora S.A."
		audit := &models.AuditEdit{
			Edits: map[string]models.EditedField{
				"amount": {Original: "1543.20", Edited: "1600.00"},
			},
			Justification: "valor corrigido pelo financeiro",
			EditedAt:      time.Now(),
		}

		result, err := svc.CreateExpense(context.Background(), boletoExtraction(), dec, audit)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, result.Outcome)

		p := payables.created[0]
		assert.Equal(t, 1600.00, p.Amount)
		assert.Equal(t, "Profarma Distribuidora S.A.", p.BeneficiaryName)
		require.NotNil(t, p.OCREdit)
		assert.Equal(t, "1543.20", p.OCREdit.Edits["amount"].Original)
		assert.Equal(t, "1600.00", p.OCREdit.Edits["amount"].Edited)
	})

	t.Run("pix key type inferred when key present", func(t *testing.T) {
		payables := &fakePayableStore{}
		svc := newTestCommitService(payables, nil, nil)

		ext := boletoExtraction()
		ext.Barcode = ""
		ext.DigitLine = ""
		ext.PixKey = "61940292000193"

		_, err := svc.CreateExpense(context.Background(), ext, expenseDecision(), nil)
		require.NoError(t, err)
		assert.Equal(t, models.PixKeyCNPJ, payables.created[0].PixKeyType)
	})

	t.Run("persist failure surfaces as failed outcome", func(t *testing.T) {
		payables := &fakePayableStore{createErr: errors.New("connection refused")}
		svc := newTestCommitService(payables, nil, nil)

		result, err := svc.CreateExpense(context.Background(), boletoExtraction(), expenseDecision(), nil)
		require.Error(t, err)
		require.NotNil(t, result)
		assert.Equal(t, OutcomeFailed, result.Outcome)
	})
}

func TestApplyNFLink(t *testing.T) {
	purchase := func() *models.Payable {
		return &models.Payable{Category: models.PayableCategoryPurchase}
	}

	t.Run("linked invoice", func(t *testing.T) {
		invoiceID := uuid.New()
		p := purchase()
		applyNFLink(p, &dto.DecisionRequest{LinkedInvoiceID: invoiceID.String()})
		assert.Equal(t, models.NFLinkLinked, p.NFLinkStatus)
		require.NotNil(t, p.SupplierInvoiceID)
		assert.Equal(t, invoiceID, *p.SupplierInvoiceID)
	})

	t.Run("same document", func(t *testing.T) {
		p := purchase()
		applyNFLink(p, &dto.DecisionRequest{NFInSameDocument: true})
		assert.Equal(t, models.NFLinkNotRequired, p.NFLinkStatus)
		assert.True(t, p.NFInSameDocument)
	})

	t.Run("exemption reason", func(t *testing.T) {
		p := purchase()
		applyNFLink(p, &dto.DecisionRequest{NFExemptionReason: "fornecedor MEI isento de NF"})
		assert.Equal(t, models.NFLinkNotRequired, p.NFLinkStatus)
		assert.Equal(t, "fornecedor MEI isento de NF", p.NFExemptionReason)
	})

	t.Run("unresolved purchase stays pending, never nao_exigida", func(t *testing.T) {
		p := purchase()
		applyNFLink(p, &dto.DecisionRequest{})
		assert.Equal(t, models.NFLinkPending, p.NFLinkStatus)
	})

	t.Run("non-purchase without linkage is not required", func(t *testing.T) {
		p := &models.Payable{Category: models.PayableCategoryService}
		applyNFLink(p, &dto.DecisionRequest{})
		assert.Equal(t, models.NFLinkNotRequired, p.NFLinkStatus)
	})
}

func TestCreateRevenue(t *testing.T) {
	revenueExt := func() *models.Extraction {
		return &models.Extraction{
			IssuerName:     "Convênio Saúde LTDA",
			IssuerTaxID:    "45453214000151",
			DocumentNumber: "REC-881",
			GrossAmount:    980.00,
			DocumentType:   models.DocTypeReceipt,
			Hint:           models.HintRevenue,
		}
	}

	t.Run("creates revenue with reconciliation default", func(t *testing.T) {
		revenues := &fakeRevenueStore{}
		svc := newTestCommitService(nil, revenues, nil)

		dec := &dto.DecisionRequest{Classification: string(models.HintRevenue)}
		result, err := svc.CreateRevenue(context.Background(), revenueExt(), dec, nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, result.Outcome)
		require.Len(t, revenues.created, 1)
		assert.True(t, revenues.created[0].NeedsReconciliation)
	})

	t.Run("explicit reconciliation flag wins", func(t *testing.T) {
		revenues := &fakeRevenueStore{}
		svc := newTestCommitService(nil, revenues, nil)

		noReconciliation := false
		dec := &dto.DecisionRequest{
			Classification:      string(models.HintRevenue),
			NeedsReconciliation: &noReconciliation,
		}
		_, err := svc.CreateRevenue(context.Background(), revenueExt(), dec, nil)
		require.NoError(t, err)
		assert.False(t, revenues.created[0].NeedsReconciliation)
	})

	t.Run("duplicate on payer and document number", func(t *testing.T) {
		conflict := uuid.New()
		revenues := &fakeRevenueStore{dupID: conflict}
		svc := newTestCommitService(nil, revenues, nil)

		dec := &dto.DecisionRequest{Classification: string(models.HintRevenue)}
		result, err := svc.CreateRevenue(context.Background(), revenueExt(), dec, nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, result.Outcome)
		assert.Equal(t, conflict, result.ConflictID)
		assert.Empty(t, revenues.created)
	})
}

func TestPrecheckDuplicate(t *testing.T) {
	t.Run("empty keys short-circuit to not duplicate", func(t *testing.T) {
		svc := newTestCommitService(&fakePayableStore{barcodeDup: uuid.New(), digitLineDup: uuid.New()}, nil, nil)

		ext := boletoExtraction()
		ext.Barcode = ""
		ext.DigitLine = ""

		dup, id, err := svc.PrecheckDuplicate(context.Background(), ext)
		require.NoError(t, err)
		assert.False(t, dup)
		assert.Equal(t, uuid.Nil, id)
	})

	t.Run("barcode hit", func(t *testing.T) {
		conflict := uuid.New()
		svc := newTestCommitService(&fakePayableStore{barcodeDup: conflict}, nil, nil)

		dup, id, err := svc.PrecheckDuplicate(context.Background(), boletoExtraction())
		require.NoError(t, err)
		assert.True(t, dup)
		assert.Equal(t, conflict, id)
	})
}

func TestCreateInvoiceWithInstallments(t *testing.T) {
	newInvoice := func(total float64) *models.SupplierInvoice {
		return &models.SupplierInvoice{
			ID:             uuid.New(),
			DocumentNumber: "NF-7781",
			SupplierName:   "Panpharma Distribuidora",
			SupplierTaxID:  "00886257000131",
			IssueDate:      time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			TotalValue:     total,
			PaymentMethod:  models.MethodBoleto,
			Status:         models.InvoiceStatusAwaitingBoleto,
		}
	}
	firstDue := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	t.Run("no installments", func(t *testing.T) {
		invoices := &fakeInvoiceStore{}
		payables := &fakePayableStore{}
		svc := newTestCommitService(payables, nil, invoices)

		inv := newInvoice(1000)
		result, err := svc.CreateInvoiceWithInstallments(context.Background(), inv, 0, firstDue)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, result.Outcome)
		assert.Equal(t, inv.ID, result.InvoiceID)
		assert.Empty(t, payables.created)
	})

	t.Run("rounding remainder goes to the last installment", func(t *testing.T) {
		invoices := &fakeInvoiceStore{}
		payables := &fakePayableStore{}
		svc := newTestCommitService(payables, nil, invoices)

		inv := newInvoice(1000)
		result, err := svc.CreateInvoiceWithInstallments(context.Background(), inv, 3, firstDue)
		require.NoError(t, err)
		assert.Equal(t, 3, result.InstallmentsMade)
		require.Len(t, payables.created, 3)

		assert.Equal(t, 333.33, payables.created[0].Amount)
		assert.Equal(t, 333.33, payables.created[1].Amount)
		assert.Equal(t, 333.34, payables.created[2].Amount)

		assert.Equal(t, "NF-7781/1", payables.created[0].DocumentNumber)
		assert.Equal(t, "NF-7781/3", payables.created[2].DocumentNumber)

		assert.Equal(t, firstDue, payables.created[0].DueDate)
		assert.Equal(t, firstDue.AddDate(0, 1, 0), payables.created[1].DueDate)
		assert.Equal(t, firstDue.AddDate(0, 2, 0), payables.created[2].DueDate)

		for _, p := range payables.created {
			assert.Equal(t, models.NFLinkLinked, p.NFLinkStatus)
			require.NotNil(t, p.SupplierInvoiceID)
			assert.Equal(t, inv.ID, *p.SupplierInvoiceID)
		}
	})

	t.Run("mid-plan failure keeps the invoice and reports both outcomes", func(t *testing.T) {
		invoices := &fakeInvoiceStore{}
		payables := &fakePayableStore{failAfter: 2}
		svc := newTestCommitService(payables, nil, invoices)

		inv := newInvoice(900)
		result, err := svc.CreateInvoiceWithInstallments(context.Background(), inv, 3, firstDue)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, result.Outcome)
		assert.Equal(t, 2, result.InstallmentsMade)
		require.Error(t, result.InstallmentFailure)
		assert.Contains(t, result.InstallmentFailure.Error(), "3/3")
		assert.Len(t, invoices.created, 1)
	})

	t.Run("duplicate invoice", func(t *testing.T) {
		conflict := uuid.New()
		invoices := &fakeInvoiceStore{dupID: conflict}
		svc := newTestCommitService(nil, nil, invoices)

		result, err := svc.CreateInvoiceWithInstallments(context.Background(), newInvoice(1000), 0, firstDue)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, result.Outcome)
		assert.Equal(t, conflict, result.ConflictID)
		assert.Empty(t, invoices.created)
	})
}
