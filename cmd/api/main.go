package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/cache"
	"github.com/GTDGit/gtd_backoffice/internal/config"
	"github.com/GTDGit/gtd_backoffice/internal/database"
	"github.com/GTDGit/gtd_backoffice/internal/handler"
	"github.com/GTDGit/gtd_backoffice/internal/middleware"
	"github.com/GTDGit/gtd_backoffice/internal/repository"
	"github.com/GTDGit/gtd_backoffice/internal/service"
	"github.com/GTDGit/gtd_backoffice/internal/sse"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
	"github.com/GTDGit/gtd_backoffice/internal/worker"
	"github.com/GTDGit/gtd_backoffice/pkg/identity"
	"github.com/GTDGit/gtd_backoffice/pkg/marketplace"
)

const (
	moduleMarketplace = "marketplace"
	moduleFinance     = "finance"
)

// main is the application entrypoint for the back-office API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting back-office api")
	utils.SetJWTSecret(cfg.JWTSecret)

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis. The API keeps serving without it; caches and the
	// bulk lock are simply disabled.
	var (
		entitlementCache       service.EntitlementCacheStore
		entitlementInvalidator service.EntitlementInvalidator
		expiryEntitlements     worker.CacheInvalidator
		directoryCache         service.DirectoryCacheStore
		directoryInvalidator   service.DirectoryInvalidator
		expiryDirectory        worker.DirectoryRefresher
		bulkLocker             service.BulkLocker
		redisPinger            handler.Pinger
	)

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable - caches and bulk lock disabled")
	} else {
		defer redisClient.Close()
		log.Info().Msg("redis connected successfully")

		ec := cache.NewEntitlementCache(redisClient, cfg.Cache.EntitlementTTL)
		dc := cache.NewDirectoryCache(redisClient, cfg.Cache.DirectoryTTL)
		entitlementCache, entitlementInvalidator, expiryEntitlements = ec, ec, ec
		directoryCache, directoryInvalidator, expiryDirectory = dc, dc, dc
		bulkLocker = cache.NewLocker(redisClient, cfg.Cache.BulkLockTTL)
		redisPinger = handler.PingerFunc(redisClient.Ping)
	}

	// 4. Initialize repositories
	txRunner := repository.NewTxRunner(db)
	tenantRepo := repository.NewTenantRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	planRepo := repository.NewPlanRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	marketRepo := repository.NewMarketplaceRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	loanRepo := repository.NewLoanRepository(db)

	// 5. Initialize external clients
	identityClient := identity.NewClient(identity.Config{
		BaseURL:    cfg.Identity.BaseURL,
		ServiceKey: cfg.Identity.ServiceKey,
		Timeout:    cfg.Identity.Timeout,
	})
	gatewayClient := marketplace.NewClient(marketplace.Config{
		GatewayURL: cfg.Marketplace.GatewayURL,
		Token:      cfg.Marketplace.GatewayToken,
		Timeout:    cfg.Marketplace.Timeout,
	})

	// 6. Initialize services
	adminAuthSvc := service.NewAdminAuthService(adminRepo)
	directorySvc := service.NewTenantDirectoryService(subRepo, tenantRepo, directoryCache)
	subscriptionSvc := service.NewSubscriptionService(
		subRepo, planRepo, tenantRepo, txRunner, identityClient,
		entitlementInvalidator, directoryInvalidator,
	)
	entitlementSvc := service.NewEntitlementService(planRepo, subRepo, entitlementCache)
	catalogSvc := service.NewCatalogService(productRepo, marketRepo, tenantRepo, txRunner, directoryInvalidator)
	pricingSvc := service.NewPricingService(marketRepo, productRepo, bulkLocker)
	reconciliationSvc := service.NewReconciliationService(marketRepo, productRepo)
	ledgerSvc := service.NewLedgerService(ledgerRepo, tenantRepo, txRunner, directoryInvalidator)
	loanSvc := service.NewLoanService(loanRepo, ledgerRepo, txRunner)

	// 6a. Admin event stream fed by the workers
	hub := sse.NewHub(sse.HubConfig{
		ClientBuffer: cfg.Events.ClientBuffer,
		DropPolicy:   sse.DropPolicy(cfg.Events.DropPolicy),
	})
	notifier := sse.NewHubNotifier(hub)

	// 7. Initialize middleware
	authLimiter := middleware.NewInvalidAuthRateLimiter(10, 15*time.Minute)
	jwtMw := middleware.NewJWTMiddleware(authLimiter)

	// 8. Initialize handlers
	handlers := &Handlers{
		Health:         handler.NewHealthHandler(db, redisPinger),
		Auth:           handler.NewAuthHandler(adminAuthSvc, authLimiter),
		Tenant:         handler.NewTenantHandler(directorySvc, subscriptionSvc),
		Plan:           handler.NewPlanHandler(entitlementSvc),
		Catalog:        handler.NewCatalogHandler(catalogSvc),
		Pricing:        handler.NewPricingHandler(pricingSvc),
		Reconciliation: handler.NewReconciliationHandler(reconciliationSvc),
		Ledger:         handler.NewLedgerHandler(ledgerSvc, loanSvc),
		Events:         handler.NewSSEHandler(hub, cfg.Events.Heartbeat),
	}

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSHosts))
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	setupRoutes(router, handlers, jwtMw, entitlementSvc)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start workers
	go authLimiter.Run(ctx)

	priceSync := worker.NewPriceSyncWorker(marketRepo, gatewayClient, cfg.Worker.PriceSyncInterval, cfg.Worker.PriceSyncBatch)
	priceSync.SetNotifier(notifier)
	go priceSync.Start(ctx)

	expiry := worker.NewSubscriptionExpiryWorker(subRepo, expiryEntitlements, expiryDirectory, cfg.Worker.SubscriptionExpirySchedule)
	expiry.SetNotifier(notifier)
	go expiry.Start(ctx)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health         *handler.HealthHandler
	Auth           *handler.AuthHandler
	Tenant         *handler.TenantHandler
	Plan           *handler.PlanHandler
	Catalog        *handler.CatalogHandler
	Pricing        *handler.PricingHandler
	Reconciliation *handler.ReconciliationHandler
	Ledger         *handler.LedgerHandler
	Events         *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware, entitlements middleware.EntitlementChecker) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/v1/health", handlers.Health.GetHealth)
	router.POST("/v1/auth/login", handlers.Auth.Login)

	// EventSource cannot send headers; the handler validates ?token= itself.
	router.GET("/v1/admin/events", handlers.Events.Stream)

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.Use(jwtMiddleware.Handle())
	{
		admin.POST("/admins", handlers.Auth.CreateAdmin)

		// Tenant directory and subscriptions
		admin.GET("/tenants", handlers.Tenant.ListTenants)
		admin.POST("/tenants", handlers.Tenant.CreateManualTenant)
		admin.GET("/tenants/stats", handlers.Tenant.GetStats)
		admin.POST("/tenants/refresh", handlers.Tenant.RefreshDirectory)
		admin.GET("/tenants/:tenantId/subscription", handlers.Tenant.GetSubscription)
		admin.POST("/tenants/:tenantId/subscription", handlers.Tenant.GrantSubscription)
		admin.PATCH("/tenants/:tenantId/subscription/status", handlers.Tenant.UpdateStatus)
		admin.GET("/tenants/:tenantId/entitlements/:moduleId", handlers.Plan.CheckTenantEntitlement)
		admin.GET("/identity/users", handlers.Tenant.ListIdentityUsers)

		// Plans, modules and rules
		admin.GET("/plans", handlers.Plan.ListPlans)
		admin.PUT("/plans/:planId", handlers.Plan.UpsertPlan)
		admin.GET("/plans/:planId/rules", handlers.Plan.ListRules)
		admin.PUT("/plans/:planId/rules", handlers.Plan.UpsertRule)
		admin.DELETE("/rules/:id", handlers.Plan.DeleteRule)
		admin.GET("/modules", handlers.Plan.ListModules)
		admin.PUT("/modules/:moduleId", handlers.Plan.UpsertModule)
	}

	// Tenant routes
	tenant := router.Group("/v1/tenant")
	tenant.Use(jwtMiddleware.Handle(), middleware.TenantMiddleware())
	{
		tenant.GET("/entitlements/:moduleId", handlers.Plan.CheckOwnEntitlement)

		// Catalog
		tenant.GET("/products", handlers.Catalog.ListProducts)
		tenant.POST("/products", handlers.Catalog.CreateProduct)
		tenant.GET("/products/:id", handlers.Catalog.GetProduct)
		tenant.PUT("/products/:id", handlers.Catalog.UpdateProduct)
	}

	market := tenant.Group("")
	market.Use(middleware.RequireModule(entitlements, moduleMarketplace))
	{
		market.GET("/products/:id/mirrors", handlers.Catalog.ListProductMirrors)
		market.GET("/marketplaces", handlers.Catalog.ListConnections)
		market.POST("/marketplaces", handlers.Catalog.CreateConnection)
		market.PATCH("/marketplaces/:id", handlers.Catalog.SetConnectionActive)
		market.GET("/marketplaces/:id/mirrors", handlers.Catalog.ListMirrors)
		market.GET("/marketplaces/:id/unlinked", handlers.Reconciliation.ListUnlinked)
		market.GET("/mirrors/:id", handlers.Catalog.GetMirror)
		market.PUT("/mirrors/:id/price", handlers.Pricing.UpdateListingPrice)
		market.DELETE("/mirrors/:id", handlers.Reconciliation.Unlink)
		market.POST("/mirrors/link", handlers.Reconciliation.ManualLink)
		market.POST("/prices/bulk", handlers.Pricing.BulkUpdatePrices)
	}

	finance := tenant.Group("")
	finance.Use(middleware.RequireModule(entitlements, moduleFinance))
	{
		finance.GET("/transactions", handlers.Ledger.ListTransactions)
		finance.POST("/transactions", handlers.Ledger.RecordTransaction)
		finance.GET("/accounts", handlers.Ledger.ListAccounts)
		finance.POST("/accounts", handlers.Ledger.CreateAccount)
		finance.GET("/accounts/:id", handlers.Ledger.GetAccount)
		finance.GET("/contacts", handlers.Ledger.ListContacts)
		finance.POST("/contacts", handlers.Ledger.CreateContact)
		finance.GET("/contacts/:id", handlers.Ledger.GetContact)
		finance.POST("/loans", handlers.Ledger.CreateLoan)
		finance.GET("/loans/:id", handlers.Ledger.GetLoan)
		finance.POST("/installments/:id/pay", handlers.Ledger.PayInstallment)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
