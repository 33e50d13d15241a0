package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/dto"
	"github.com/drogafarto-web/docfiscal/internal/models"
	"github.com/drogafarto-web/docfiscal/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	matching *service.MatchingService
	commit   *service.CommitService
	logger   *zap.Logger
}

func NewInvoiceHandler(matching *service.MatchingService, commit *service.CommitService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		matching: matching,
		commit:   commit,
		logger:   logger,
	}
}

// MatchSuggestions ranks open supplier invoices against the boleto fields the
// form currently holds. A run superseded by a newer one comes back with
// stale=true and no candidates; the client keeps its current list.
func (h *InvoiceHandler) MatchSuggestions(c *fiber.Ctx) error {
	issuerTaxID := c.Query("issuer_tax_id")
	amount, err := strconv.ParseFloat(c.Query("amount", "0"), 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid amount",
		})
	}

	candidates, err := h.matching.SuggestLatest(c.Context(), issuerTaxID, amount)
	if err != nil {
		if errors.Is(err, service.ErrStaleSearch) {
			return c.JSON(dto.MatchSuggestionsResponse{Stale: true})
		}
		h.logger.Error("Match suggestion failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to compute match suggestions",
		})
	}

	resp := dto.MatchSuggestionsResponse{
		Candidates: make([]dto.MatchCandidateResponse, len(candidates)),
	}
	for i, cand := range candidates {
		resp.Candidates[i] = dto.MatchCandidateResponse{
			InvoiceID:      cand.Invoice.ID.String(),
			DocumentNumber: cand.Invoice.DocumentNumber,
			SupplierName:   cand.Invoice.SupplierName,
			TotalValue:     cand.Invoice.TotalValue,
			Score:          cand.Score,
			Reasons:        cand.Reasons,
		}
	}
	return c.JSON(resp)
}

// LinkInvoice attaches a supplier invoice to an existing payable and moves
// the invoice out of aguardando_boleto when applicable.
func (h *InvoiceHandler) LinkInvoice(c *fiber.Ctx) error {
	payableID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid payable id",
		})
	}
	invoiceID, err := uuid.Parse(c.Params("invoiceId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid invoice id",
		})
	}

	if err := h.matching.LinkBoleto(c.Context(), payableID, invoiceID); err != nil {
		h.logger.Error("Failed to link invoice",
			zap.String("payable_id", payableID.String()),
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to link invoice",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateInvoice registers a supplier invoice, optionally spawning its monthly
// installment payables. Installment failure after invoice creation is not
// rolled back; both outcomes are reported.
func (h *InvoiceHandler) CreateInvoice(c *fiber.Ctx) error {
	var req dto.CreateInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.DocumentNumber == "" || req.SupplierTaxID == "" || req.TotalValue <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "document_number, supplier_tax_id and a positive total_value are required",
		})
	}
	issueDate, err := time.Parse("2006-01-02", req.IssueDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "issue_date must be YYYY-MM-DD",
		})
	}

	method := models.PaymentMethod(req.PaymentMethod)
	switch method {
	case models.MethodBoleto, models.MethodPix, models.MethodTransfer, models.MethodCash:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unsupported payment method",
		})
	}

	status := models.InvoiceStatusPending
	if method == models.MethodBoleto {
		status = models.InvoiceStatusAwaitingBoleto
	}

	now := time.Now()
	inv := &models.SupplierInvoice{
		ID:             uuid.New(),
		DocumentNumber: req.DocumentNumber,
		Series:         req.Series,
		SupplierName:   req.SupplierName,
		SupplierTaxID:  req.SupplierTaxID,
		IssueDate:      issueDate,
		TotalValue:     req.TotalValue,
		PaymentMethod:  method,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.DueDate != "" {
		if due, err := time.Parse("2006-01-02", req.DueDate); err == nil {
			inv.DueDate = due
		}
	}

	firstDue := inv.DueDate
	if req.Installments > 0 {
		if req.FirstDueDate == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "first_due_date is required when installments > 0",
			})
		}
		firstDue, err = time.Parse("2006-01-02", req.FirstDueDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "first_due_date must be YYYY-MM-DD",
			})
		}
	}

	result, err := h.commit.CreateInvoiceWithInstallments(c.Context(), inv, req.Installments, firstDue)
	if err != nil && result == nil {
		h.logger.Error("Invoice creation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create invoice",
		})
	}

	resp := dto.CreateInvoiceResponse{
		Outcome:          string(result.Outcome),
		InstallmentsMade: result.InstallmentsMade,
	}
	switch result.Outcome {
	case service.OutcomeDuplicate:
		resp.ConflictID = result.ConflictID.String()
		return c.Status(fiber.StatusConflict).JSON(resp)
	case service.OutcomeFailed:
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}

	resp.InvoiceID = result.InvoiceID.String()
	if result.InstallmentFailure != nil {
		resp.InstallmentError = result.InstallmentFailure.Error()
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}
