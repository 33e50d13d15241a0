package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/drogafarto-web/docfiscal/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type RevenueRepository struct {
	db     DB
	logger *zap.Logger
}

func NewRevenueRepository(db DB, logger *zap.Logger) *RevenueRepository {
	return &RevenueRepository{
		db:     db,
		logger: logger,
	}
}

func (r *RevenueRepository) Create(ctx context.Context, rev *models.Revenue) error {
	var ocrEdit []byte
	if rev.OCREdit.HasAny() {
		var err error
		ocrEdit, err = json.Marshal(rev.OCREdit)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
	}

	query := squirrel.Insert("revenues").
		Columns(
			"id", "payer_name", "payer_tax_id", "document_number", "valor",
			"issue_date", "description", "needs_reconciliation",
			"ocr_confidence", "ocr_edit", "created_at", "updated_at",
		).
		Values(
			rev.ID, rev.PayerName, rev.PayerTaxID, rev.DocumentNumber, rev.Amount,
			rev.IssueDate, rev.Description, rev.NeedsReconciliation,
			rev.OCRConfidence, ocrEdit, rev.CreatedAt, rev.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// FindDuplicate checks revenue uniqueness on (payer_tax_id, document_number).
// Empty document number short-circuits to not-a-duplicate without querying.
func (r *RevenueRepository) FindDuplicate(ctx context.Context, payerTaxID, documentNumber string) (bool, uuid.UUID, error) {
	if documentNumber == "" {
		return false, uuid.Nil, nil
	}

	query := squirrel.Select("id").
		From("revenues").
		Where(squirrel.Eq{"document_number": documentNumber}).
		Where("deleted_at IS NULL").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)
	if payerTaxID != "" {
		query = query.Where(squirrel.Eq{"payer_tax_id": payerTaxID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return false, uuid.Nil, err
	}

	var id uuid.UUID
	err = r.db.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, uuid.Nil, nil
	}
	if err != nil {
		return false, uuid.Nil, err
	}
	return true, id, nil
}
