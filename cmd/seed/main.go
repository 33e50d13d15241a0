package main

import (
	"context"
	"log"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/models"
	"github.com/drogafarto-web/docfiscal/internal/repository"
	"github.com/drogafarto-web/docfiscal/pkg/auth"
	"github.com/drogafarto-web/docfiscal/pkg/config"
	"github.com/drogafarto-web/docfiscal/pkg/logger"
	"github.com/drogafarto-web/docfiscal/pkg/postgres"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Seeds a demo backoffice user and a batch of open supplier invoices so the
// matching flow has candidates to rank on a fresh database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db, appLogger)
	invoiceRepo := repository.NewInvoiceRepository(db, appLogger)

	appLogger.Info("Starting database seeding")

	if err := seedDemoUser(ctx, userRepo); err != nil {
		appLogger.Warn("Demo user not created (may already exist)", zap.Error(err))
	}
	created, err := seedSupplierInvoices(ctx, invoiceRepo)
	if err != nil {
		appLogger.Fatal("Failed to seed supplier invoices", zap.Error(err))
	}

	appLogger.Info("Database seeding completed", zap.Int("invoices", created))
}

func seedDemoUser(ctx context.Context, repo *repository.UserRepository) error {
	hash, err := auth.HashPassword("drogafarto123")
	if err != nil {
		return err
	}

	now := time.Now()
	return repo.Create(ctx, &models.User{
		ID:        uuid.New(),
		Username:  "backoffice",
		Email:     "backoffice@drogafarto.com.br",
		Password:  hash,
		Role:      models.RoleBackoffice,
		UnitID:    "matriz",
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func seedSupplierInvoices(ctx context.Context, repo *repository.InvoiceRepository) (int, error) {
	now := time.Now()
	seeds := []struct {
		docNumber string
		supplier  string
		taxID     string
		total     float64
		ageDays   int
		status    models.InvoiceStatus
	}{
		{"12345", "Distribuidora Santa Cruz LTDA", "61940292000193", 15430.50, 3, models.InvoiceStatusAwaitingBoleto},
		{"12399", "Distribuidora Santa Cruz LTDA", "61940292000193", 8210.00, 10, models.InvoiceStatusAwaitingBoleto},
		{"98021", "Profarma Distribuidora S.A.", "45453214000151", 22018.75, 7, models.InvoiceStatusAwaitingBoleto},
		{"55410", "Panpharma Distribuidora", "00886257000131", 4387.90, 21, models.InvoiceStatusPending},
		{"55482", "Panpharma Distribuidora", "00886257000131", 12950.00, 2, models.InvoiceStatusAwaitingBoleto},
		{"77001", "Servimed Comercial LTDA", "20695458000104", 1890.30, 45, models.InvoiceStatusPartial},
	}

	created := 0
	for _, s := range seeds {
		issueDate := now.AddDate(0, 0, -s.ageDays)
		inv := &models.SupplierInvoice{
			ID:             uuid.New(),
			DocumentNumber: s.docNumber,
			SupplierName:   s.supplier,
			SupplierTaxID:  s.taxID,
			IssueDate:      issueDate,
			DueDate:        issueDate.AddDate(0, 0, 28),
			TotalValue:     s.total,
			PaymentMethod:  models.MethodBoleto,
			Status:         s.status,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := repo.Create(ctx, inv); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
