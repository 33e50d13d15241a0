package handlers

import (
	"errors"
	"io"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/dto"
	"github.com/drogafarto-web/docfiscal/internal/models"
	"github.com/drogafarto-web/docfiscal/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IntakeHandler struct {
	intake  *service.IntakeService
	confirm *service.ConfirmService
	logger  *zap.Logger
}

func NewIntakeHandler(intake *service.IntakeService, confirm *service.ConfirmService, logger *zap.Logger) *IntakeHandler {
	return &IntakeHandler{
		intake:  intake,
		confirm: confirm,
		logger:  logger,
	}
}

// Enqueue accepts a multipart batch of documents into the intake queue.
// Files with unsupported extensions are reported as rejected without
// aborting the accepted ones.
func (h *IntakeHandler) Enqueue(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "multipart form with files is required",
		})
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "at least one file is required",
		})
	}

	var uploads []service.UploadFile
	for _, fh := range fileHeaders {
		src, err := fh.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "failed to open file " + fh.Filename,
			})
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "failed to read file " + fh.Filename,
			})
		}
		uploads = append(uploads, service.UploadFile{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	accepted, rejected := h.intake.Enqueue(uploads)

	resp := dto.EnqueueResponse{}
	for _, id := range accepted {
		resp.Accepted = append(resp.Accepted, id.String())
	}
	for _, r := range rejected {
		resp.Rejected = append(resp.Rejected, dto.RejectedFile{
			FileName: r.FileName,
			Reason:   r.Reason,
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// ListQueue returns the current queue snapshot in FIFO order.
func (h *IntakeHandler) ListQueue(c *fiber.Ctx) error {
	docs := h.intake.Snapshot()
	out := make([]dto.QueuedDocumentResponse, len(docs))
	for i, doc := range docs {
		out[i] = toQueuedDocumentResponse(doc)
	}
	return c.JSON(out)
}

// GetDocument returns one queue entry.
func (h *IntakeHandler) GetDocument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid document id",
		})
	}

	doc, err := h.intake.Get(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "document not found",
		})
	}
	return c.JSON(toQueuedDocumentResponse(doc))
}

// Discard removes a document from the queue at the user's request.
func (h *IntakeHandler) Discard(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid document id",
		})
	}

	if err := h.intake.Discard(id); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "document not found",
			})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Review returns the classification suggestion plus the advisory duplicate
// precheck for a ready document.
func (h *IntakeHandler) Review(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid document id",
		})
	}

	cls, dup, conflictID, err := h.confirm.Review(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "document not found",
			})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp := fiber.Map{
		"suggested_classification": string(cls.Suggested),
		"classification_locked":    cls.Locked,
		"needs_confirmation":       cls.NeedsConfirmation,
		"possible_duplicate":       dup,
	}
	if dup {
		resp["conflict_id"] = conflictID.String()
	}
	return c.JSON(resp)
}

// Confirm validates the reviewed decision and commits the document.
// Validation failures come back as 422 with the offending field so the
// client re-arms the form without losing entered data.
func (h *IntakeHandler) Confirm(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid document id",
		})
	}

	var dec dto.DecisionRequest
	if err := c.BodyParser(&dec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	resp, err := h.confirm.Confirm(c.Context(), id, &dec)
	if err != nil {
		var fieldErr *service.FieldError
		switch {
		case errors.As(err, &fieldErr):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"field": fieldErr.Field,
				"error": fieldErr.Message,
			})
		case errors.Is(err, service.ErrDocumentNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "document not found",
			})
		case errors.Is(err, service.ErrDocumentNotReady), errors.Is(err, service.ErrExtractionMissing):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("Confirmation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to confirm document",
		})
	}
	return c.JSON(resp)
}

// ConfirmAll batch-confirms every ready document and reports each outcome.
func (h *IntakeHandler) ConfirmAll(c *fiber.Ctx) error {
	report := h.confirm.ConfirmAllReady(c.Context())
	return c.JSON(report)
}

func toQueuedDocumentResponse(doc *models.QueuedDocument) dto.QueuedDocumentResponse {
	resp := dto.QueuedDocumentResponse{
		ID:           doc.ID.String(),
		FileName:     doc.FileName,
		State:        string(doc.State),
		StorageRef:   doc.StorageRef,
		ErrorMessage: doc.ErrorMessage,
		Extraction:   doc.Extraction,
		EnqueuedAt:   doc.EnqueuedAt.Format(time.RFC3339),
	}
	if doc.DuplicateOf != nil {
		resp.DuplicateOf = doc.DuplicateOf.String()
	}
	return resp
}
