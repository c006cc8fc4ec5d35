package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/config"
	handler "bank-reconciliation-backend/internal/handlers"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/services/history"
	"bank-reconciliation-backend/internal/services/matching"
	service "bank-reconciliation-backend/internal/services/reconciliation"
)

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, error) {
	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	RegisterRoutes(r, db)
	return r, nil
}

func RegisterRoutes(r *gin.Engine, db *gorm.DB) {
	fileRepo := repository.NewFileRepository(db)
	bankMatchRepo := repository.NewBankMatchRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	entityRepo := repository.NewEntityRepository(db)

	reconService := service.NewReconciliationService(fileRepo)
	searcher := matching.NewSearcher(fileRepo)
	aggregator := history.NewAggregator(bankMatchRepo, invoiceRepo, paymentRepo, entityRepo)

	reconHandler := handler.NewReconciliationHandler(reconService, searcher, entityRepo)
	entityHandler := handler.NewEntityHandler(entityRepo, paymentRepo, aggregator)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	recon := api.Group("/reconciliation")
	recon.GET("/search", reconHandler.Search)
	recon.GET("/files", reconHandler.ListOpenFiles)
	recon.GET("/files/:fileId", reconHandler.GetFile)
	recon.GET("/files/:fileId/stats", reconHandler.GetFileStats)
	recon.POST("/files/:fileId/entries/:index/match", reconHandler.RecordMatch)
	recon.POST("/files/:fileId/entries/:index/release", reconHandler.ReleaseMatch)

	entities := api.Group("/entities")
	{
		entities.GET("/:kind", entityHandler.ListEntities)
		entities.GET("/:kind/:id/history", entityHandler.History)
	}

	api.POST("/payments", entityHandler.RecordPayment)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP())
	}
}
