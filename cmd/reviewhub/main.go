package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Xeno9948/KiyohMobileUI/internal/ai"
	"github.com/Xeno9948/KiyohMobileUI/internal/api/handlers"
	"github.com/Xeno9948/KiyohMobileUI/internal/api/middleware"
	authfacebook "github.com/Xeno9948/KiyohMobileUI/internal/auth/facebook"
	authgoogle "github.com/Xeno9948/KiyohMobileUI/internal/auth/google"
	"github.com/Xeno9948/KiyohMobileUI/internal/auth/token"
	"github.com/Xeno9948/KiyohMobileUI/internal/config"
	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/logging"
	"github.com/Xeno9948/KiyohMobileUI/internal/metrics"
	"github.com/Xeno9948/KiyohMobileUI/internal/notify"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/facebook"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/googlebiz"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/kiyoh"
	revsync "github.com/Xeno9948/KiyohMobileUI/internal/sync"
	"github.com/Xeno9948/KiyohMobileUI/internal/version"
)

const clientTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.Init(cfg.Log.Level, cfg.Log.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	// Provider clients
	kiyohClient := kiyoh.NewClient(clientTimeout)
	googleClient := googlebiz.NewClient(clientTimeout)
	fbClient := facebook.NewClient(clientTimeout)

	// Token manager for the OAuth providers
	tokenManager := token.NewManager(database, cfg.Google.ClientID, cfg.Google.ClientSecret)

	// AI draft generator: env-configured defaults plus an optional backend
	// catalog file for gateways.
	catalog, err := ai.LoadCatalog(cfg.AI.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load AI backend catalog", zap.Error(err))
	}
	backends := ai.BuildBackends(catalog)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		backends[ai.KindOpenAI] = ai.NewOpenAIBackend(key)
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		backends[ai.KindAnthropic] = ai.NewAnthropicBackend(key)
	}
	generator := ai.NewGenerator(backends, ai.DefaultModels(catalog))
	if !generator.Enabled() {
		logger.Warn("no AI backends configured, reply drafts disabled")
	}

	// Sync orchestrator
	orchestrator := revsync.NewOrchestrator(
		database, tokenManager, kiyohClient, googleClient, fbClient,
		generator, logger,
		revsync.WithAIDefaults(cfg.AI.DefaultProvider, cfg.AI.DefaultModel),
	)

	// Notification state machine
	machine := notify.NewMachine(database, tokenManager, map[string]notify.Replier{
		review.ProviderKiyoh:    kiyohClient,
		review.ProviderGoogle:   googleClient,
		review.ProviderFacebook: fbClient,
	}, logger)

	// OAuth connect flows
	googleOAuth := authgoogle.NewHandlers(database,
		authgoogle.GetOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret,
			cfg.Server.BaseURL+"/auth/google/callback"),
		googleClient, logger)
	fbOAuth := authfacebook.NewHandlers(database,
		cfg.Facebook.AppID, cfg.Facebook.AppSecret,
		cfg.Server.BaseURL+"/auth/facebook/callback", logger)

	// API handlers
	syncHandler := handlers.NewSyncHandler(database, orchestrator, logger)
	notificationsHandler := handlers.NewNotificationsHandler(database, machine, logger)
	replyHandler := handlers.NewReplyHandler(machine, logger)
	statsHandler := handlers.NewStatsHandler(database, kiyohClient, logger)
	aiHandler := handlers.NewAIHandler(database, generator, cfg.AI.DefaultProvider, cfg.AI.DefaultModel, logger)
	companiesHandler := handlers.NewCompaniesHandler(database, logger)
	invitesHandler := handlers.NewInvitesHandler(database, kiyohClient, logger)

	// Create router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.RequestLogger(logger))
	r.Use(metrics.Middleware)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"` + version.Version + `"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// OAuth flows
	r.Get("/auth/google/login", googleOAuth.HandleLogin)
	r.Get("/auth/google/callback", googleOAuth.HandleCallback)
	r.Post("/auth/google/disconnect", googleOAuth.HandleDisconnect)
	r.Get("/auth/facebook/login", fbOAuth.HandleLogin)
	r.Get("/auth/facebook/callback", fbOAuth.HandleCallback)
	r.Post("/auth/facebook/disconnect", fbOAuth.HandleDisconnect)

	// API routes (API key required)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(database))

		r.Post("/sync", syncHandler.HandleSync)
		r.Get("/sync/history", syncHandler.HandleSyncHistory)

		r.Get("/notifications", notificationsHandler.HandleList)
		r.Patch("/notifications/{id}", notificationsHandler.HandleUpdate)
		r.Patch("/notifications", notificationsHandler.HandleBulkUpdate)

		r.Put("/reply", replyHandler.HandleReply)

		r.Get("/stats", statsHandler.HandleStats)

		r.Post("/ai/analyze", aiHandler.HandleAnalyze)
		r.Get("/ai/analyze", aiHandler.HandleCachedAnalysis)
		r.Post("/ai/draft", aiHandler.HandleDraft)

		r.Post("/invites", invitesHandler.HandleSend)
		r.Get("/invites", invitesHandler.HandleList)

		r.Post("/companies", companiesHandler.HandleCreate)
		r.Get("/companies/current", companiesHandler.HandleGet)

		r.Post("/admin/api-key", companiesHandler.HandleRegenerateAPIKey)
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("reviewhub starting",
			zap.String("addr", cfg.Server.Addr()),
			zap.String("version", version.Version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
