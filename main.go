package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/username/contaflow/src/config"
	"github.com/username/contaflow/src/database"
	"github.com/username/contaflow/src/handlers"
	"github.com/username/contaflow/src/logger"
	"github.com/username/contaflow/src/processors"
	"github.com/username/contaflow/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("ContaFlow backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	columnMapper := processors.NewColumnMapper()
	rowNormalizer := processors.NewRowNormalizer()

	entityProvider := services.NewSQLEntityProvider(database.DB)
	matchLedger := services.NewMatchLedger()

	scoringCfg := services.ScoringConfig{
		AmountTolerancePercent: config.Cfg.AmountTolerancePercent,
		AmountToleranceAbs:     decimal.NewFromFloat(config.Cfg.AmountToleranceAbs),
		DateWindowDays:         config.Cfg.DateWindowDays,
		ConfidenceFloor:        config.Cfg.ConfidenceFloor,
		SuggestionLimit:        config.Cfg.SuggestionLimit,
	}

	importService := services.NewImportService(database.DB, columnMapper, rowNormalizer)
	reconService := services.NewReconciliationService(database.DB, entityProvider, matchLedger, scoringCfg)

	importHandler := handlers.NewImportHandler(importService)
	reconHandler := handlers.NewReconciliationHandler(reconService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "ContaFlow Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/imports", importHandler.HandleUpload)
		r.Post("/imports/{importID}/mapping", importHandler.HandleSupplyMapping)
		r.Get("/imports/{importID}", importHandler.HandleGetImportSummary)

		r.Get("/transactions/unmatched", reconHandler.HandleListUnmatched)
		r.Post("/transactions/{transactionID}/suggestions", reconHandler.HandleSuggest)
		r.Post("/transactions/{transactionID}/matches/{matchID}/confirm", reconHandler.HandleConfirm)
		r.Post("/transactions/{transactionID}/unmatch", reconHandler.HandleUnmatch)
		r.Post("/transactions/{transactionID}/ignore", reconHandler.HandleIgnore)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
