package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/monedero/backend/src/config"
	"github.com/username/monedero/backend/src/database"
	"github.com/username/monedero/backend/src/handlers"
	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/scheduler"
	"github.com/username/monedero/backend/src/security"
	"github.com/username/monedero/backend/src/services"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Monedero backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath, config.Cfg.MigrationsDir)

	vault, err := security.NewTokenVault(config.Cfg.TokenEncryptionKey)
	if err != nil {
		logger.L.Error("Token vault initialization failed", "error", err)
		os.Exit(1)
	}

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	rateService := services.NewRateService(config.Cfg.RateProviderURL, config.Cfg.HTTPClientTimeout)
	tokenStore := services.NewTokenStore(database.DB, vault)
	brokerService := services.NewBrokerService(
		config.Cfg.BrokerBaseURL,
		config.Cfg.HTTPClientTimeout,
		tokenStore,
		rateService,
		config.Cfg.InstrumentCacheTTL,
	)
	portfolioService := services.NewPortfolioService(database.DB, rateService, brokerService, reportCache)

	ledgerHandler := handlers.NewLedgerHandler(database.DB, rateService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	brokerHandler := handlers.NewBrokerHandler(brokerService, portfolioService)
	rateHandler := handlers.NewRateHandler(rateService)

	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), config.Cfg.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(handlers.CORSMiddleware(config.Cfg.AllowedOrigins))
	r.Use(handlers.RateLimitMiddleware(limiter))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Monedero Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/broker/login", brokerHandler.HandleLogin)
		r.Post("/broker/logout", brokerHandler.HandleLogout)

		r.Get("/rate", rateHandler.HandleGetRate)

		r.Get("/expenses", ledgerHandler.HandleListExpenses)
		r.Post("/expenses", ledgerHandler.HandleCreateExpense)
		r.Get("/expenses/totals", ledgerHandler.HandleExpenseTotals)
		r.Delete("/expenses/{id}", ledgerHandler.HandleDeleteExpense)

		r.Get("/incomes", ledgerHandler.HandleListIncomes)
		r.Post("/incomes", ledgerHandler.HandleCreateIncome)
		r.Get("/incomes/totals", ledgerHandler.HandleIncomeTotals)
		r.Delete("/incomes/{id}", ledgerHandler.HandleDeleteIncome)

		r.Get("/gross-income", ledgerHandler.HandleGetGrossIncome)
		r.Post("/gross-income", ledgerHandler.HandleSetGrossIncome)
		r.Post("/gross-income/add", ledgerHandler.HandleAddGrossIncome)

		r.Get("/portfolio/positions", portfolioHandler.HandleGetPositions)
		r.Post("/portfolio/reconcile", portfolioHandler.HandleReconcile)
		r.Post("/portfolio/refresh", portfolioHandler.HandleRefreshPositions)
		r.Post("/portfolio/sync-operations", portfolioHandler.HandleSyncOperations)
		r.Get("/portfolio/valuation/latest", portfolioHandler.HandleGetLatestValuation)
		r.Get("/portfolio/valuation/previous", portfolioHandler.HandleGetPreviousValuation)
		r.Get("/portfolio/performance", portfolioHandler.HandleGetPerformance)
		r.Get("/portfolio/operations", portfolioHandler.HandleListOperations)
	})

	sched := scheduler.New()
	if config.Cfg.RefreshSchedule != "" {
		job := &scheduler.ReconcileJob{Portfolio: portfolioService}
		if err := sched.AddJob(config.Cfg.RefreshSchedule, job); err != nil {
			logger.L.Error("Failed to register reconcile job", "schedule", config.Cfg.RefreshSchedule, "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	} else {
		logger.L.Info("Scheduled reconciliation disabled")
	}

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
