// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/config"
	"github.com/rafat/cronosflow/internal/handlers"
	"github.com/rafat/cronosflow/internal/middleware"
	"github.com/rafat/cronosflow/internal/services"
	"github.com/rafat/cronosflow/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	locks := services.NewAssetLocks()
	notificationService := services.NewNotificationService(db)
	authorizationService := services.NewAuthorizationService(db)
	cashflowService := services.NewCashflowService(db)
	vaultService := services.NewVaultService(db, cashflowService, locks)
	sharesService := services.NewSharesService(db, vaultService, locks)
	registryService := services.NewRegistryService(db, cfg, cashflowService, vaultService, sharesService, notificationService, locks)
	complianceService := services.NewComplianceService(db)
	authService := services.NewAuthService(db, cfg)
	paymentService := services.NewPaymentService(db, cfg, registryService, vaultService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	assetHandler := handlers.NewAssetHandler(registryService, authorizationService)
	vaultHandler := handlers.NewVaultHandler(vaultService, authorizationService)
	sharesHandler := handlers.NewSharesHandler(sharesService, authorizationService)
	complianceHandler := handlers.NewComplianceHandler(complianceService, authorizationService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, authorizationService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Asset registry routes
		assets := v1.Group("/assets")
		{
			assets.GET("", middleware.OptionalAuth(), assetHandler.ListAssets)
			assets.GET("/:id", middleware.OptionalAuth(), assetHandler.GetAsset)
			assets.GET("/:id/schedule", assetHandler.GetSchedule)
			assets.GET("/:id/health", assetHandler.PreviewHealth)
			assets.GET("/:id/rent", middleware.AuthRequired(), paymentHandler.ListRentPayments)

			protected := assets.Group("")
			protected.Use(middleware.AuthRequired(), middleware.MutationRateLimit())
			{
				protected.POST("", assetHandler.Register)
				protected.POST("/:id/link", assetHandler.LinkComponents)
				protected.POST("/:id/activate", assetHandler.Activate)
				protected.POST("/:id/payments", assetHandler.RecordPayment)
				protected.POST("/:id/default-check", assetHandler.DefaultCheck)
				protected.POST("/:id/pause", assetHandler.Pause)
				protected.POST("/:id/unpause", assetHandler.Unpause)
				protected.POST("/:id/review", assetHandler.MarkUnderReview)
				protected.POST("/:id/liquidate", assetHandler.StartLiquidation)
				protected.POST("/:id/liquidate/complete", assetHandler.CompleteLiquidation)
				protected.POST("/:id/rent/intent", paymentHandler.CreateRentIntent)
				protected.POST("/:id/rent/confirm", paymentHandler.ConfirmRentPayment)
			}
		}

		// Revenue vault routes
		vaults := v1.Group("/vaults")
		{
			vaults.GET("/:id", vaultHandler.GetVault)
			vaults.GET("/:id/available/investors", vaultHandler.AvailableForInvestors)
			vaults.GET("/:id/available/deployment", vaultHandler.AvailableForDeployment)
			vaults.GET("/:id/rewards", middleware.AuthRequired(), vaultHandler.PendingRewards)

			protected := vaults.Group("")
			protected.Use(middleware.AuthRequired(), middleware.MutationRateLimit())
			{
				protected.POST("/:id/deposits", vaultHandler.Deposit)
				protected.POST("/:id/distributions", vaultHandler.CommitToDistribution)
				protected.POST("/:id/claims", vaultHandler.ClaimYield)
				protected.POST("/:id/deployments", vaultHandler.DeployCapital)
				protected.POST("/:id/fees/withdraw", vaultHandler.WithdrawFees)
			}
		}

		// Ownership ledger routes
		ledgers := v1.Group("/ledgers")
		{
			ledgers.GET("/:id", sharesHandler.GetLedger)
			ledgers.GET("/:id/holders/:holderId/share-bps", sharesHandler.OwnershipShareBps)

			protected := ledgers.Group("")
			protected.Use(middleware.AuthRequired(), middleware.MutationRateLimit())
			{
				protected.POST("/:id/mint", sharesHandler.Mint)
				protected.POST("/:id/burn", sharesHandler.Burn)
				protected.POST("/:id/transfer", sharesHandler.Transfer)
			}
		}

		// Compliance routes
		compliance := v1.Group("/compliance")
		compliance.Use(middleware.AuthRequired())
		{
			compliance.POST("/kyc/:identityId/approve", complianceHandler.ApproveKYC)
			compliance.POST("/kyc/:identityId/reject", complianceHandler.RejectKYC)
			compliance.POST("/assets/:id/verify", complianceHandler.VerifyAsset)
			compliance.POST("/whitelist", complianceHandler.Whitelist)
			compliance.DELETE("/whitelist", complianceHandler.RemoveFromWhitelist)
		}

		// Notifications
		v1.GET("/notifications", middleware.AuthRequired(), notificationHandler.List)

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.PUT("/identities/:id/roles", authHandler.AssignRoles)
		}
	}

	return r
}
