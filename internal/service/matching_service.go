package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/drogafarto-web/docfiscal/internal/models"
	"github.com/drogafarto-web/docfiscal/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrStaleSearch marks a suggestion run that was superseded by a newer one
// before it finished. Its results must be dropped, never merged.
var ErrStaleSearch = errors.New("match search superseded by a newer one")

const (
	scoreAwaitingBoleto = 30
	scoreTaxIDMatch     = 50
	scoreAmountMatch    = 40

	// A candidate survives only if at least one of the tax-id or amount
	// signals fired; the status bonus alone is not enough.
	minMatchScore = 40
)

// InvoicePool supplies the matching candidate pool and the post-link status
// transition.
type InvoicePool interface {
	ListOpenBoletoInvoices(ctx context.Context, windowDays, limit int) ([]*models.SupplierInvoice, error)
	MarkPendingIfAwaitingBoleto(ctx context.Context, id uuid.UUID) error
}

// PayableLinker attaches a supplier invoice to an existing payable.
type PayableLinker interface {
	LinkInvoice(ctx context.Context, payableID, invoiceID uuid.UUID) error
}

// MatchCandidate is a ranked, explainable suggestion that an open supplier
// invoice is settled by the boleto under review.
type MatchCandidate struct {
	Invoice *models.SupplierInvoice
	Score   int
	Reasons []string
}

// MatchingService ranks open supplier invoices against a presented boleto.
type MatchingService struct {
	invoices InvoicePool
	payables PayableLinker

	tolerancePercent float64
	windowDays       int
	maxCandidates    int

	generation atomic.Uint64
	logger     *zap.Logger
}

func NewMatchingService(cfg *config.MatchingConfig, invoices InvoicePool, payables PayableLinker, logger *zap.Logger) *MatchingService {
	tolerance := cfg.TolerancePercent
	if tolerance <= 0 {
		tolerance = 5
	}
	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = 90
	}
	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 100
	}

	return &MatchingService{
		invoices:         invoices,
		payables:         payables,
		tolerancePercent: tolerance,
		windowDays:       windowDays,
		maxCandidates:    maxCandidates,
		logger:           logger,
	}
}

// ScoreInvoice computes the additive match score of one invoice against the
// boleto's issuer tax id and amount. All signals are independent and may fire
// together.
func ScoreInvoice(inv *models.SupplierInvoice, issuerTaxID string, amount, tolerancePercent float64) (int, []string) {
	score := 0
	var reasons []string

	if inv.Status == models.InvoiceStatusAwaitingBoleto {
		score += scoreAwaitingBoleto
		reasons = append(reasons, "Awaiting boleto")
	}

	if issuerTaxID != "" && models.OnlyDigits(issuerTaxID) == models.OnlyDigits(inv.SupplierTaxID) && models.OnlyDigits(issuerTaxID) != "" {
		score += scoreTaxIDMatch
		reasons = append(reasons, "Tax id matches")
	}

	diff := math.Abs(amount - inv.TotalValue)
	band := inv.TotalValue * tolerancePercent / 100
	if amount > 0 && diff <= band {
		score += scoreAmountMatch
		if diff < 0.01 {
			reasons = append(reasons, "Exact amount")
		} else {
			reasons = append(reasons, fmt.Sprintf("Approximate amount (%.1f%% difference)", diff/inv.TotalValue*100))
		}
	}

	return score, reasons
}

// Suggest ranks the open-boleto invoice pool against the given issuer tax id
// and amount. Candidates below the minimum score are dropped; the sort is
// stable, so ties keep the pool's newest-first order.
func (s *MatchingService) Suggest(ctx context.Context, issuerTaxID string, amount float64) ([]MatchCandidate, error) {
	pool, err := s.invoices.ListOpenBoletoInvoices(ctx, s.windowDays, s.maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate invoices: %w", err)
	}

	var candidates []MatchCandidate
	for _, inv := range pool {
		score, reasons := ScoreInvoice(inv, issuerTaxID, amount, s.tolerancePercent)
		if score < minMatchScore {
			continue
		}
		candidates = append(candidates, MatchCandidate{Invoice: inv, Score: score, Reasons: reasons})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	s.logger.Debug("Match suggestions computed",
		zap.Int("pool", len(pool)),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// SuggestLatest is the debounce-replacement entry point for form-driven
// searches. Every call bumps a generation counter; a run that finishes after
// a newer one started returns ErrStaleSearch so the caller drops it
// (last-write-wins on the suggestion list).
func (s *MatchingService) SuggestLatest(ctx context.Context, issuerTaxID string, amount float64) ([]MatchCandidate, error) {
	gen := s.generation.Add(1)

	candidates, err := s.Suggest(ctx, issuerTaxID, amount)
	if err != nil {
		return nil, err
	}
	if s.generation.Load() != gen {
		return nil, ErrStaleSearch
	}
	return candidates, nil
}

// LinkBoleto attaches the chosen invoice to the payable and moves the invoice
// out of aguardando_boleto. The status transition is idempotent: an invoice in
// any other status is left untouched.
func (s *MatchingService) LinkBoleto(ctx context.Context, payableID, invoiceID uuid.UUID) error {
	if err := s.payables.LinkInvoice(ctx, payableID, invoiceID); err != nil {
		return fmt.Errorf("failed to link invoice to payable: %w", err)
	}
	if err := s.invoices.MarkPendingIfAwaitingBoleto(ctx, invoiceID); err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}

	s.logger.Info("Boleto linked to supplier invoice",
		zap.String("payable_id", payableID.String()),
		zap.String("invoice_id", invoiceID.String()),
	)
	return nil
}
