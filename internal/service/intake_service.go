package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/models"
	"github.com/drogafarto-web/docfiscal/internal/recognition"
	"github.com/drogafarto-web/docfiscal/internal/storage"
	"github.com/drogafarto-web/docfiscal/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrDocumentNotFound = errors.New("document not found in queue")
	ErrDocumentNotReady = errors.New("document is not ready for confirmation")
)

// Recognizer is the narrow contract the intake pipeline has with the external
// recognition service.
type Recognizer interface {
	Analyze(ctx context.Context, data []byte, mimeType string) (*models.Extraction, error)
}

// UploadFile is one file handed to Enqueue by the HTTP layer.
type UploadFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// RejectedUpload names a file refused at the queue door and why.
type RejectedUpload struct {
	FileName string
	Reason   string
}

// IntakeService owns the document intake queue. Documents live in an arena
// (id-indexed map plus an ordered id list for FIFO admission) and move through
// queued → uploading → analyzing → ready|error; at most maxConcurrent
// documents occupy the upload+analysis slots at any instant.
type IntakeService struct {
	mu       sync.Mutex
	docs     map[uuid.UUID]*models.QueuedDocument
	order    []uuid.UUID
	inFlight int

	maxConcurrent int
	stageTimeout  time.Duration
	folder        string
	unitID        string

	store      storage.FileStore
	recognizer Recognizer
	logger     *zap.Logger
}

func NewIntakeService(cfg *config.IntakeConfig, store storage.FileStore, recognizer Recognizer, logger *zap.Logger) *IntakeService {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	stageTimeout := cfg.StageTimeout
	if stageTimeout <= 0 {
		stageTimeout = 2 * time.Minute
	}

	return &IntakeService{
		docs:          make(map[uuid.UUID]*models.QueuedDocument),
		maxConcurrent: maxConcurrent,
		stageTimeout:  stageTimeout,
		folder:        cfg.StorageFolder,
		unitID:        cfg.UnitID,
		store:         store,
		recognizer:    recognizer,
		logger:        logger,
	}
}

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Enqueue accepts the allow-listed files into the queue and reports the rest
// as rejected without aborting the accepted subset. Admission into the bounded
// slots starts immediately.
func (s *IntakeService) Enqueue(files []UploadFile) ([]uuid.UUID, []RejectedUpload) {
	var accepted []uuid.UUID
	var rejected []RejectedUpload

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if !allowedExtensions[ext] {
			rejected = append(rejected, RejectedUpload{
				FileName: f.Name,
				Reason:   fmt.Sprintf("extensão não suportada: %s", ext),
			})
			continue
		}

		mimeType := f.MimeType
		if mimeType == "" {
			mimeType = mime.TypeByExtension(ext)
		}

		doc := &models.QueuedDocument{
			ID:         uuid.New(),
			FileName:   f.Name,
			MimeType:   mimeType,
			Data:       f.Data,
			State:      models.StateQueued,
			EnqueuedAt: time.Now(),
		}
		s.docs[doc.ID] = doc
		s.order = append(s.order, doc.ID)
		accepted = append(accepted, doc.ID)

		s.logger.Info("Document enqueued",
			zap.String("document_id", doc.ID.String()),
			zap.String("file_name", doc.FileName),
		)
	}

	s.admitNextLocked()
	return accepted, rejected
}

// admitNextLocked fills every free slot with queued documents in FIFO order.
// Called whenever the set of occupied slots changes. Caller holds s.mu.
func (s *IntakeService) admitNextLocked() {
	for _, id := range s.order {
		if s.inFlight >= s.maxConcurrent {
			return
		}
		doc, ok := s.docs[id]
		if !ok || doc.State != models.StateQueued {
			continue
		}

		next, ok := models.Transition(doc.State, models.EventAdmit)
		if !ok {
			continue
		}
		doc.State = next
		s.inFlight++

		go s.process(doc.ID, doc.FileName, doc.MimeType, doc.Data)
	}
}

// process runs the upload+analysis sequence for one admitted document.
// The queue lock is never held across a remote call; after each call the
// document is looked up again, and if it was discarded meanwhile the result
// is dropped.
func (s *IntakeService) process(id uuid.UUID, fileName, mimeType string, data []byte) {
	key := storage.BuildKey(s.folder, s.unitID, fileName, time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), s.stageTimeout)
	err := s.store.Save(ctx, key, bytes.NewReader(data))
	cancel()
	if err != nil {
		s.finish(id, models.EventFailed, func(doc *models.QueuedDocument) {
			doc.ErrorMessage = "Falha ao armazenar o arquivo. Tente novamente."
		})
		s.logger.Error("Upload failed",
			zap.String("document_id", id.String()),
			zap.Error(err),
		)
		return
	}

	if !s.advance(id, models.EventUploaded, func(doc *models.QueuedDocument) {
		doc.StorageRef = key
	}) {
		// Discarded mid-upload; the stored file is best-effort removed.
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), s.stageTimeout)
		_ = s.store.Delete(cleanupCtx, key)
		cleanupCancel()
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), s.stageTimeout)
	extraction, err := s.recognizer.Analyze(ctx, data, mimeType)
	cancel()
	if err != nil {
		s.finish(id, models.EventFailed, func(doc *models.QueuedDocument) {
			doc.ErrorMessage = recognition.UserMessageFor(err)
		})
		s.logger.Warn("Analysis failed",
			zap.String("document_id", id.String()),
			zap.Error(err),
		)
		return
	}

	s.finish(id, models.EventAnalyzed, func(doc *models.QueuedDocument) {
		doc.Extraction = extraction
		doc.Data = nil
	})
}

// advance applies a mid-flight transition. Returns false when the document is
// no longer tracked (discarded), in which case the slot is reclaimed.
func (s *IntakeService) advance(id uuid.UUID, event models.QueueEvent, mutate func(*models.QueuedDocument)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		s.inFlight--
		s.admitNextLocked()
		return false
	}

	next, ok := models.Transition(doc.State, event)
	if !ok {
		s.logger.Error("Invalid queue transition",
			zap.String("document_id", id.String()),
			zap.String("state", string(doc.State)),
			zap.String("event", string(event)),
		)
		return false
	}
	doc.State = next
	if mutate != nil {
		mutate(doc)
	}
	return true
}

// finish applies a terminal transition (ready or error) and reclaims the slot.
func (s *IntakeService) finish(id uuid.UUID, event models.QueueEvent, mutate func(*models.QueuedDocument)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	defer s.admitNextLocked()

	doc, ok := s.docs[id]
	if !ok {
		// Discarded while in flight; the late result is dropped.
		return
	}

	next, ok := models.Transition(doc.State, event)
	if !ok {
		s.logger.Error("Invalid queue transition",
			zap.String("document_id", id.String()),
			zap.String("state", string(doc.State)),
			zap.String("event", string(event)),
		)
		return
	}
	doc.State = next
	if event == models.EventFailed {
		doc.Data = nil
	}
	if mutate != nil {
		mutate(doc)
	}

	s.logger.Info("Document state changed",
		zap.String("document_id", id.String()),
		zap.String("state", string(doc.State)),
	)
}

// Discard removes a document at the user's request. Discarding an in-flight
// document does not cancel the remote call, only its effect on queue state.
func (s *IntakeService) Discard(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	if !doc.State.Removable(models.EventDiscarded) {
		return fmt.Errorf("document %s cannot be discarded in state %s", id, doc.State)
	}

	s.removeLocked(id)
	s.logger.Info("Document discarded", zap.String("document_id", id.String()))
	return nil
}

// Remove takes a confirmed document out of the queue. Only ready documents
// can be confirmed.
func (s *IntakeService) Remove(id uuid.UUID, event models.QueueEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	if !doc.State.Removable(event) {
		return ErrDocumentNotReady
	}

	s.removeLocked(id)
	return nil
}

// removeLocked drops the document from the arena and the FIFO order.
// Caller holds s.mu. The in-flight counter is NOT touched here: a discarded
// in-flight document keeps its slot until its goroutine observes the removal.
func (s *IntakeService) removeLocked(id uuid.UUID) {
	delete(s.docs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.admitNextLocked()
}

// MarkDuplicate records the conflicting record id on a ready document after
// a confirmation attempt found a duplicate. The document stays in the queue
// for the user to inspect and discard.
func (s *IntakeService) MarkDuplicate(id, conflictID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.docs[id]; ok {
		cid := conflictID
		doc.DuplicateOf = &cid
	}
}

// Get returns a copy of one queue entry.
func (s *IntakeService) Get(id uuid.UUID) (*models.QueuedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

// Snapshot returns copies of every queue entry in FIFO order.
func (s *IntakeService) Snapshot() []*models.QueuedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.QueuedDocument, 0, len(s.order))
	for _, id := range s.order {
		if doc, ok := s.docs[id]; ok {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out
}

// Ready returns copies of the documents awaiting confirmation, FIFO order.
func (s *IntakeService) Ready() []*models.QueuedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.QueuedDocument
	for _, id := range s.order {
		if doc, ok := s.docs[id]; ok && doc.State == models.StateReady {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out
}

// InFlight reports how many documents currently occupy upload+analysis slots.
func (s *IntakeService) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}
