package service

import (
	"context"
	"testing"

	"github.com/drogafarto-web/docfiscal/internal/dto"
	"github.com/drogafarto-web/docfiscal/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type confirmFixture struct {
	queue    *IntakeService
	payables *fakePayableStore
	revenues *fakeRevenueStore
	svc      *ConfirmService
}

func newConfirmFixture(t *testing.T, rec *fakeRecognizer) *confirmFixture {
	t.Helper()
	queue := newTestIntakeService(2, &fakeFileStore{}, rec)
	payables := &fakePayableStore{}
	revenues := &fakeRevenueStore{}
	commit := NewCommitService(payables, revenues, &fakeInvoiceStore{}, zap.NewNop())
	return &confirmFixture{
		queue:    queue,
		payables: payables,
		revenues: revenues,
		svc:      NewConfirmService(queue, commit, zap.NewNop()),
	}
}

func (f *confirmFixture) enqueueReady(t *testing.T, name string) uuid.UUID {
	t.Helper()
	accepted, _ := f.queue.Enqueue([]UploadFile{upload(name)})
	require.Len(t, accepted, 1)
	waitForState(t, f.queue, accepted[0], models.StateReady)
	return accepted[0]
}

func expenseConfirmDecision() *dto.DecisionRequest {
	return &dto.DecisionRequest{
		Classification:    string(models.HintExpense),
		PaymentInstrument: string(models.InstrumentPix),
		NFInSameDocument:  true,
	}
}

func TestConfirmCreatesAndRemoves(t *testing.T) {
	f := newConfirmFixture(t, &fakeRecognizer{})
	id := f.enqueueReady(t, "boleto.pdf")

	resp, err := f.svc.Confirm(context.Background(), id, expenseConfirmDecision())
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeCreated), resp.Outcome)
	assert.NotEmpty(t, resp.RecordID)
	require.Len(t, f.payables.created, 1)

	// The record exists and the document left the queue.
	_, err = f.queue.Get(id)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestConfirmDuplicateKeepsDocument(t *testing.T) {
	conflict := uuid.New()
	rec := &fakeRecognizer{ext: &models.Extraction{
		DocumentType: models.DocTypeBoleto,
		Hint:         models.HintExpense,
		Barcode:      "34198291070026000001790010104351004791020150",
		GrossAmount:  1543.20,
	}}
	f := newConfirmFixture(t, rec)
	f.payables.barcodeDup = conflict
	id := f.enqueueReady(t, "boleto.pdf")

	resp, err := f.svc.Confirm(context.Background(), id, expenseConfirmDecision())
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeDuplicate), resp.Outcome)
	assert.Equal(t, conflict.String(), resp.ConflictID)
	assert.Empty(t, f.payables.created)

	doc, err := f.queue.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StateReady, doc.State)
	require.NotNil(t, doc.DuplicateOf)
	assert.Equal(t, conflict, *doc.DuplicateOf)
}

func TestConfirmValidationFailureChangesNothing(t *testing.T) {
	f := newConfirmFixture(t, &fakeRecognizer{})
	id := f.enqueueReady(t, "boleto.pdf")

	dec := expenseConfirmDecision()
	dec.Amount = floatPtr(999.99)
	// Edited amount with no justification must be rejected field-level.
	_, err := f.svc.Confirm(context.Background(), id, dec)
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "edit_justification", fieldErr.Field)

	assert.Empty(t, f.payables.created)
	doc, getErr := f.queue.Get(id)
	require.NoError(t, getErr)
	assert.Equal(t, models.StateReady, doc.State)
}

func TestConfirmLockedTaxDocumentForcesExpense(t *testing.T) {
	rec := &fakeRecognizer{ext: &models.Extraction{
		DocumentType: models.DocTypeTaxGuide,
		Hint:         models.HintUnknown,
		GrossAmount:  412.77,
	}}
	f := newConfirmFixture(t, rec)
	id := f.enqueueReady(t, "darf.pdf")

	// The user asked for revenue; tax documents override that.
	dec := &dto.DecisionRequest{
		Classification:    string(models.HintRevenue),
		PaymentInstrument: string(models.InstrumentTransfer),
	}
	resp, err := f.svc.Confirm(context.Background(), id, dec)
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeCreated), resp.Outcome)

	require.Len(t, f.payables.created, 1)
	assert.Empty(t, f.revenues.created)
	assert.Equal(t, models.PayableCategoryTax, f.payables.created[0].Category)
}

func TestConfirmRevenue(t *testing.T) {
	rec := &fakeRecognizer{ext: &models.Extraction{
		DocumentType:   models.DocTypeReceipt,
		Hint:           models.HintRevenue,
		DocumentNumber: "REC-881",
		GrossAmount:    980.00,
	}}
	f := newConfirmFixture(t, rec)
	id := f.enqueueReady(t, "recibo.pdf")

	dec := &dto.DecisionRequest{Classification: string(models.HintRevenue)}
	resp, err := f.svc.Confirm(context.Background(), id, dec)
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeCreated), resp.Outcome)
	require.Len(t, f.revenues.created, 1)
	assert.True(t, f.revenues.created[0].NeedsReconciliation)
}

func TestConfirmUnknownDocument(t *testing.T) {
	f := newConfirmFixture(t, &fakeRecognizer{})
	_, err := f.svc.Confirm(context.Background(), uuid.New(), expenseConfirmDecision())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestReview(t *testing.T) {
	conflict := uuid.New()
	rec := &fakeRecognizer{ext: &models.Extraction{
		DocumentType: models.DocTypeBoleto,
		Hint:         models.HintExpense,
		Barcode:      "34198291070026000001790010104351004791020150",
	}}
	f := newConfirmFixture(t, rec)
	f.payables.barcodeDup = conflict
	id := f.enqueueReady(t, "boleto.pdf")

	cls, dup, conflictID, err := f.svc.Review(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.HintExpense, cls.Suggested)
	assert.True(t, dup)
	assert.Equal(t, conflict, conflictID)

	// Advisory only: the document is untouched by the precheck.
	doc, err := f.queue.Get(id)
	require.NoError(t, err)
	assert.Nil(t, doc.DuplicateOf)
}

func TestConfirmAllReady(t *testing.T) {
	f := newConfirmFixture(t, &fakeRecognizer{})

	accepted, _ := f.queue.Enqueue([]UploadFile{
		upload("a.pdf"), upload("b.pdf"), upload("c.pdf"),
	})
	require.Len(t, accepted, 3)
	for _, id := range accepted {
		waitForState(t, f.queue, id, models.StateReady)
	}

	report := f.svc.ConfirmAllReady(context.Background())
	assert.Equal(t, 3, report.Confirmed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	require.Len(t, report.Items, 3)

	// Batch purchases land with a pending invoice linkage to resolve later.
	require.Len(t, f.payables.created, 3)
	for _, p := range f.payables.created {
		assert.Equal(t, models.NFLinkPending, p.NFLinkStatus)
		assert.Equal(t, models.InstrumentTransfer, p.Instrument)
	}
	assert.Empty(t, f.queue.Ready())
}

func TestConfirmAllReadySkipsUnknownClassification(t *testing.T) {
	rec := &fakeRecognizer{ext: &models.Extraction{
		DocumentType: models.DocTypeOther,
		Hint:         models.HintUnknown,
		GrossAmount:  50,
	}}
	f := newConfirmFixture(t, rec)
	id := f.enqueueReady(t, "misterioso.pdf")

	report := f.svc.ConfirmAllReady(context.Background())
	assert.Equal(t, 0, report.Confirmed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Items, 1)
	assert.Equal(t, "skipped", report.Items[0].Outcome)
	assert.Empty(t, f.payables.created)

	// Still in the queue for manual review.
	_, err := f.queue.Get(id)
	assert.NoError(t, err)
}

func TestConfirmAllReadyPartialFailure(t *testing.T) {
	f := newConfirmFixture(t, &fakeRecognizer{})

	accepted, _ := f.queue.Enqueue([]UploadFile{
		upload("a.pdf"), upload("b.pdf"), upload("c.pdf"),
	})
	for _, id := range accepted {
		waitForState(t, f.queue, id, models.StateReady)
	}

	// Second insert fails; the batch keeps going.
	f.payables.failAfter = 1

	report := f.svc.ConfirmAllReady(context.Background())
	assert.Equal(t, 1, report.Confirmed)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Items, 3)
	assert.Equal(t, string(OutcomeCreated), report.Items[0].Outcome)
	assert.Equal(t, "failed", report.Items[1].Outcome)
	assert.NotEmpty(t, report.Items[1].Reason)
}

func TestConfirmAllReadySkipsMissingStorageRef(t *testing.T) {
	f := newConfirmFixture(t, &fakeRecognizer{})
	id := f.enqueueReady(t, "a.pdf")

	// Simulate a lost storage reference on the tracked document.
	f.queue.mu.Lock()
	f.queue.docs[id].StorageRef = ""
	f.queue.mu.Unlock()

	report := f.svc.ConfirmAllReady(context.Background())
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Confirmed)
	require.Len(t, report.Items, 1)
	assert.Contains(t, report.Items[0].Reason, "armazenamento")
}
