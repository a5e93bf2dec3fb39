package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/auth"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/company"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/dealer"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/gateway"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/images"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/session"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/user"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/config"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/database"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/logger"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	l, err := logger.Init(cfg.Log.Level, cfg.Server.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer l.Sync()
	l.Info("Starting watchdealer API", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		l.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		l.Fatal("Migrations failed", zap.Error(err))
	}
	gdb, err := database.OpenGorm(db, cfg.Server.Env)
	if err != nil {
		l.Fatal("Gorm session failed", zap.Error(err))
	}
	l.Info("Successfully connected to the database")

	signingKey := []byte(cfg.JWT.SigningKey)

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.Middleware)
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", metrics.Handler())

	// ── Identity & Tenancy ──────────────────────────────────
	userRepo := user.NewPostgresRepository(db)
	userHandler := user.NewHandler(user.NewService(userRepo))
	auth.NewHandler(auth.NewService(userRepo, signingKey, time.Duration(cfg.JWT.ExpirationHours)*time.Hour)).RegisterRoutes(router)

	companyHandler := company.NewHandler(company.NewService(db))
	companyHandler.RegisterPublicRoutes(router)

	// ── Images ──────────────────────────────────────────────
	blobs, err := images.NewFileStore(cfg.Images.Dir)
	if err != nil {
		l.Fatal("Image store failed", zap.Error(err))
	}
	imageService := images.NewService(images.NewGormRepository(gdb), blobs, images.Options{
		BaseURL:  cfg.Images.BaseURL,
		MaxBytes: cfg.Images.MaxBytes,
	})

	// ── Dealer workflows ────────────────────────────────────
	gw := gateway.NewPostgres(db, gateway.Options{
		CallTimeout: cfg.Gateway.CallTimeout,
		ReadRetries: cfg.Gateway.ReadRetries,
	})
	sessions := session.NewManager(gw, cfg.Session.IdleTTL)
	sessions.LoadTimeout = cfg.Gateway.CallTimeout * time.Duration(cfg.Gateway.ReadRetries+1)
	go sessions.Run(ctx, time.Minute)

	router.Group(func(r chi.Router) {
		r.Use(tenant.Middleware(signingKey))
		userHandler.RegisterRoutes(r)
		companyHandler.RegisterRoutes(r)
		images.NewHandler(imageService, cfg.Images.MaxBytes).RegisterRoutes(r)
		dealer.NewHandler(sessions).RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		l.Info("Watchdealer API server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Graceful shutdown failed", zap.Error(err))
	}
}
