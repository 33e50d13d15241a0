package api

import (
	"github.com/drogafarto-web/docfiscal/internal/api/handlers"
	"github.com/drogafarto-web/docfiscal/pkg/auth"
	"github.com/drogafarto-web/docfiscal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func SetupRouter(
	authHandler *handlers.AuthHandler,
	intakeHandler *handlers.IntakeHandler,
	invoiceHandler *handlers.InvoiceHandler,
	jwtManager *auth.JWTManager,
	appLogger *zap.Logger,
	uploadDir string,
) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // batch uploads of scanned PDFs
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	// Stored documents, only meaningful for the disk backend.
	if uploadDir != "" {
		app.Static("/uploads", uploadDir)
	}

	// Auth routes (public)
	authGroup := app.Group("/user/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Protected routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, appLogger))

	// Intake queue
	intake := protected.Group("/intake/documents")
	intake.Post("", intakeHandler.Enqueue)
	intake.Get("", intakeHandler.ListQueue)
	intake.Get("/:id", intakeHandler.GetDocument)
	intake.Delete("/:id", intakeHandler.Discard)
	intake.Get("/:id/review", intakeHandler.Review)
	intake.Post("/confirm-all", intakeHandler.ConfirmAll)
	intake.Post("/:id/confirm", intakeHandler.Confirm)

	// Supplier invoices and boleto matching
	protected.Get("/invoices/match-suggestions", invoiceHandler.MatchSuggestions)
	protected.Post("/invoices", invoiceHandler.CreateInvoice)
	protected.Post("/payables/:id/link-invoice/:invoiceId", invoiceHandler.LinkInvoice)

	return app
}
