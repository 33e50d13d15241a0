package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var invoiceColumns = []string{
	"id", "document_number", "series", "supplier_name", "supplier_tax_id",
	"issue_date", "due_date", "total_value", "payment_method", "status",
	"created_at", "updated_at",
}

type InvoiceRepository struct {
	db     DB
	logger *zap.Logger
}

func NewInvoiceRepository(db DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *models.SupplierInvoice) error {
	query := squirrel.Insert("supplier_invoices").
		Columns(invoiceColumns...).
		Values(
			inv.ID, inv.DocumentNumber, inv.Series, inv.SupplierName, inv.SupplierTaxID,
			inv.IssueDate, inv.DueDate, inv.TotalValue, inv.PaymentMethod, inv.Status,
			inv.CreatedAt, inv.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SupplierInvoice, error) {
	query := squirrel.Select(invoiceColumns...).
		From("supplier_invoices").
		Where(squirrel.Eq{"id": id}).
		Where("deleted_at IS NULL").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var inv models.SupplierInvoice
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&inv.ID, &inv.DocumentNumber, &inv.Series, &inv.SupplierName, &inv.SupplierTaxID,
		&inv.IssueDate, &inv.DueDate, &inv.TotalValue, &inv.PaymentMethod, &inv.Status,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindDuplicate checks the supplier invoice uniqueness key
// (document_number, supplier_tax_id, issue_date). The tax id joins the filter
// only when present; an empty document number is never a duplicate and issues
// no query.
func (r *InvoiceRepository) FindDuplicate(ctx context.Context, documentNumber, supplierTaxID string, issueDate time.Time) (bool, uuid.UUID, error) {
	if documentNumber == "" {
		return false, uuid.Nil, nil
	}

	query := squirrel.Select("id").
		From("supplier_invoices").
		Where(squirrel.Eq{"document_number": documentNumber}).
		Where(squirrel.Eq{"issue_date": issueDate}).
		Where("deleted_at IS NULL").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)
	if supplierTaxID != "" {
		query = query.Where(squirrel.Eq{"supplier_tax_id": supplierTaxID})
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

// ListOpenBoletoInvoices returns the matching candidate pool: boleto invoices
// still open, issued within the window, newest first, capped to bound the
// scoring work downstream.
func (r *InvoiceRepository) ListOpenBoletoInvoices(ctx context.Context, windowDays, limit int) ([]*models.SupplierInvoice, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	query := squirrel.Select(invoiceColumns...).
		From("supplier_invoices").
		Where(squirrel.Eq{"payment_method": models.MethodBoleto}).
		Where(squirrel.Eq{"status": []models.InvoiceStatus{
			models.InvoiceStatusPending,
			models.InvoiceStatusPartial,
			models.InvoiceStatusAwaitingBoleto,
		}}).
		Where(squirrel.GtOrEq{"issue_date": cutoff}).
		Where("deleted_at IS NULL").
		OrderBy("issue_date DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.SupplierInvoice
	for rows.Next() {
		var inv models.SupplierInvoice
		if err := rows.Scan(
			&inv.ID, &inv.DocumentNumber, &inv.Series, &inv.SupplierName, &inv.SupplierTaxID,
			&inv.IssueDate, &inv.DueDate, &inv.TotalValue, &inv.PaymentMethod, &inv.Status,
			&inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		invoices = append(invoices, &inv)
	}

	return invoices, rows.Err()
}

// MarkPendingIfAwaitingBoleto moves an invoice out of aguardando_boleto after
// a boleto is linked to it. The status guard in the WHERE clause makes the
// transition idempotent: any other status is left untouched.
func (r *InvoiceRepository) MarkPendingIfAwaitingBoleto(ctx context.Context, id uuid.UUID) error {
	query := squirrel.Update("supplier_invoices").
		Set("status", models.InvoiceStatusPending).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": models.InvoiceStatusAwaitingBoleto}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("Invoice not awaiting boleto, status unchanged",
			zap.String("invoice_id", id.String()),
		)
	}
	return nil
}
