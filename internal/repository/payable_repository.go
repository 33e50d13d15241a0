package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PayableRepository struct {
	db     DB
	logger *zap.Logger
}

func NewPayableRepository(db DB, logger *zap.Logger) *PayableRepository {
	return &PayableRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PayableRepository) Create(ctx context.Context, p *models.Payable) error {
	var ocrEdit []byte
	if p.OCREdit.HasAny() {
		var err error
		ocrEdit, err = json.Marshal(p.OCREdit)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
	}

	query := squirrel.Insert("payables").
		Columns(
			"id", "beneficiary_name", "beneficiary_tax_id", "document_number",
			"valor", "due_date", "linha_digitavel", "codigo_barras",
			"pix_key", "pix_key_type", "description", "category", "instrument",
			"status", "nf_vinculacao_status", "nf_exemption_reason",
			"nf_in_same_document", "supplier_invoice_id",
			"ocr_confidence", "ocr_edit", "created_at", "updated_at",
		).
		Values(
			p.ID, p.BeneficiaryName, p.BeneficiaryTaxID, p.DocumentNumber,
			p.Amount, p.DueDate, p.DigitLine, p.Barcode,
			p.PixKey, p.PixKeyType, p.Description, p.Category, p.Instrument,
			p.Status, p.NFLinkStatus, p.NFExemptionReason,
			p.NFInSameDocument, p.SupplierInvoiceID,
			p.OCRConfidence, ocrEdit, p.CreatedAt, p.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// ExistsByBarcode reports whether a non-deleted payable already carries the
// barcode. An empty barcode is never a duplicate and issues no query: empty
// identifying fields must not collide with each other.
func (r *PayableRepository) ExistsByBarcode(ctx context.Context, codigoBarras string, excludeID *uuid.UUID) (bool, uuid.UUID, error) {
	return r.existsByKey(ctx, "codigo_barras", codigoBarras, excludeID)
}

// ExistsByDigitLine is the linha digitável counterpart of ExistsByBarcode,
// with the same empty-key short circuit.
func (r *PayableRepository) ExistsByDigitLine(ctx context.Context, linhaDigitavel string, excludeID *uuid.UUID) (bool, uuid.UUID, error) {
	return r.existsByKey(ctx, "linha_digitavel", linhaDigitavel, excludeID)
}

func (r *PayableRepository) existsByKey(ctx context.Context, column, value string, excludeID *uuid.UUID) (bool, uuid.UUID, error) {
	if value == "" {
		return false, uuid.Nil, nil
	}

	query := squirrel.Select("id").
		From("payables").
		Where(squirrel.Eq{column: value}).
		Where("deleted_at IS NULL").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)
	if excludeID != nil {
		query = query.Where(squirrel.NotEq{"id": *excludeID})
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

// FindDuplicateExpense is the commit-time authoritative duplicate check for
// expenses: beneficiary tax id + document number + amount + due date. The tax
// id joins the filter only when present.
func (r *PayableRepository) FindDuplicateExpense(ctx context.Context, taxID, documentNumber string, amount float64, dueDate time.Time) (bool, uuid.UUID, error) {
	if documentNumber == "" {
		return false, uuid.Nil, nil
	}

	query := squirrel.Select("id").
		From("payables").
		Where(squirrel.Eq{"document_number": documentNumber}).
		Where(squirrel.Eq{"valor": amount}).
		Where(squirrel.Eq{"due_date": dueDate}).
		Where("deleted_at IS NULL").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)
	if taxID != "" {
		query = query.Where(squirrel.Eq{"beneficiary_tax_id": taxID})
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

// LinkInvoice attaches a supplier invoice to the payable and marks its NF
// linkage resolved.
func (r *PayableRepository) LinkInvoice(ctx context.Context, payableID, invoiceID uuid.UUID) error {
	query := squirrel.Update("payables").
		Set("supplier_invoice_id", invoiceID).
		Set("nf_vinculacao_status", models.NFLinkLinked).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": payableID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}
