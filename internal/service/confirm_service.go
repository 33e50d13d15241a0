package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/dto"
	"github.com/drogafarto-web/docfiscal/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrExtractionMissing = errors.New("document has no extraction result")

// ConfirmService runs the classification & confirmation workflow over ready
// queue documents: edit tracking, justification enforcement, the two-phase
// duplicate check, and the commit itself.
type ConfirmService struct {
	queue  *IntakeService
	commit *CommitService
	logger *zap.Logger
}

func NewConfirmService(queue *IntakeService, commit *CommitService, logger *zap.Logger) *ConfirmService {
	return &ConfirmService{
		queue:  queue,
		commit: commit,
		logger: logger,
	}
}

// Review returns the classification suggestion and the advisory duplicate
// precheck for one ready document. The precheck is UX-only feedback; the
// authoritative check happens again inside Confirm.
func (s *ConfirmService) Review(ctx context.Context, docID uuid.UUID) (Classification, bool, uuid.UUID, error) {
	doc, err := s.queue.Get(docID)
	if err != nil {
		return Classification{}, false, uuid.Nil, err
	}
	if doc.Extraction == nil {
		return Classification{}, false, uuid.Nil, ErrExtractionMissing
	}

	dup, conflictID, err := s.commit.PrecheckDuplicate(ctx, doc.Extraction)
	if err != nil {
		// Advisory only: a failed precheck does not block review.
		s.logger.Warn("Duplicate precheck failed", zap.Error(err))
		dup, conflictID = false, uuid.Nil
	}
	return Classify(doc.Extraction), dup, conflictID, nil
}

// Confirm validates the decision for one ready document and commits it.
// Outcomes: created (document leaves the queue), duplicate (document stays,
// marked with the conflicting id), failed (document stays for retry).
// Validation failures return a *FieldError and change nothing.
func (s *ConfirmService) Confirm(ctx context.Context, docID uuid.UUID, dec *dto.DecisionRequest) (*dto.ConfirmResponse, error) {
	doc, err := s.queue.Get(docID)
	if err != nil {
		return nil, err
	}
	if doc.State != models.StateReady {
		return nil, ErrDocumentNotReady
	}
	if doc.Extraction == nil {
		return nil, ErrExtractionMissing
	}
	ext := doc.Extraction

	cls := Classify(ext)
	if cls.Locked {
		dec.Classification = string(models.HintExpense)
	}

	edits := ComputeEdits(ext, dec)
	if err := ValidateDecision(ext, dec, edits); err != nil {
		return nil, err
	}
	audit := BuildAudit(edits, dec.EditJustification, time.Now())

	result, err := s.commitDecision(ctx, ext, dec, audit)
	if err != nil && result == nil {
		return nil, err
	}

	switch result.Outcome {
	case OutcomeCreated:
		if err := s.queue.Remove(docID, models.EventConfirmed); err != nil {
			// The record exists; a queue bookkeeping failure must not undo it.
			s.logger.Error("Failed to remove confirmed document from queue",
				zap.String("document_id", docID.String()),
				zap.Error(err),
			)
		}
		return &dto.ConfirmResponse{
			Outcome:  string(OutcomeCreated),
			RecordID: result.RecordID.String(),
		}, nil

	case OutcomeDuplicate:
		s.queue.MarkDuplicate(docID, result.ConflictID)
		return &dto.ConfirmResponse{
			Outcome:    string(OutcomeDuplicate),
			ConflictID: result.ConflictID.String(),
		}, nil
	}

	return &dto.ConfirmResponse{
		Outcome: string(OutcomeFailed),
		Error:   "não foi possível gravar o lançamento; tente novamente",
	}, nil
}

func (s *ConfirmService) commitDecision(ctx context.Context, ext *models.Extraction, dec *dto.DecisionRequest, audit *models.AuditEdit) (*CommitResult, error) {
	if dec.Classification == string(models.HintRevenue) {
		return s.commit.CreateRevenue(ctx, ext, dec, audit)
	}
	return s.commit.CreateExpense(ctx, ext, dec, audit)
}

// ConfirmAllReady applies the two-phase confirm to every ready document with
// no per-item review, trusting the auto-classification. Documents lacking a
// storage reference are skipped, not failed; each document gets its own
// outcome in the report and one failure never aborts the batch.
func (s *ConfirmService) ConfirmAllReady(ctx context.Context) *dto.BatchConfirmResponse {
	report := &dto.BatchConfirmResponse{}

	for _, doc := range s.queue.Ready() {
		item := dto.BatchItemResult{
			DocumentID: doc.ID.String(),
			FileName:   doc.FileName,
		}

		switch {
		case doc.StorageRef == "":
			item.Outcome = "skipped"
			item.Reason = "documento sem referência de armazenamento"
			report.Skipped++
		case doc.Extraction == nil:
			item.Outcome = "skipped"
			item.Reason = "documento sem resultado de extração"
			report.Skipped++
		case Classify(doc.Extraction).NeedsConfirmation:
			item.Outcome = "skipped"
			item.Reason = "classificação indefinida exige confirmação manual"
			report.Skipped++
		default:
			s.confirmBatchItem(ctx, doc, &item, report)
		}

		report.Items = append(report.Items, item)
	}

	s.logger.Info("Batch confirmation finished",
		zap.Int("confirmed", report.Confirmed),
		zap.Int("duplicate", report.Duplicate),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report
}

func (s *ConfirmService) confirmBatchItem(ctx context.Context, doc *models.QueuedDocument, item *dto.BatchItemResult, report *dto.BatchConfirmResponse) {
	dec := defaultDecision(doc.Extraction)

	result, err := s.commitDecision(ctx, doc.Extraction, dec, nil)
	if err != nil && result == nil {
		item.Outcome = "failed"
		item.Reason = err.Error()
		report.Failed++
		return
	}

	switch result.Outcome {
	case OutcomeCreated:
		if err := s.queue.Remove(doc.ID, models.EventConfirmed); err != nil {
			s.logger.Error("Failed to remove batch-confirmed document",
				zap.String("document_id", doc.ID.String()),
				zap.Error(err),
			)
		}
		item.Outcome = string(OutcomeCreated)
		item.RecordID = result.RecordID.String()
		report.Confirmed++

	case OutcomeDuplicate:
		s.queue.MarkDuplicate(doc.ID, result.ConflictID)
		item.Outcome = string(OutcomeDuplicate)
		item.ConflictID = result.ConflictID.String()
		report.Duplicate++

	default:
		item.Outcome = string(OutcomeFailed)
		item.Reason = fmt.Sprintf("falha ao gravar: %v", err)
		report.Failed++
	}
}

// defaultDecision trusts the extraction as-is: suggested classification, no
// edits, and the batch defaults for the supplemental fields. Purchase
// payables land with a pending NF linkage to be resolved later.
func defaultDecision(ext *models.Extraction) *dto.DecisionRequest {
	cls := Classify(ext)
	dec := &dto.DecisionRequest{
		Classification: string(cls.Suggested),
	}
	if cls.Suggested == models.HintExpense {
		dec.PaymentInstrument = string(models.InstrumentTransfer)
	}
	return dec
}
