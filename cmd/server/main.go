package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ventline/ventline-api/internal/config"
	"github.com/ventline/ventline-api/internal/database"
	"github.com/ventline/ventline-api/internal/handler"
	"github.com/ventline/ventline-api/internal/identity"
	"github.com/ventline/ventline-api/internal/journey"
	"github.com/ventline/ventline-api/internal/middleware"
	"github.com/ventline/ventline-api/internal/moderation"
	"github.com/ventline/ventline-api/internal/repository"
	"github.com/ventline/ventline-api/internal/router"
)

func main() {
	_ = godotenv.Load() // optional .env for local development

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	migCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.ApplyMigrations(migCtx, db, "migrations"); err != nil {
		cancel()
		log.Fatalf("migrations: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient() // nil disables rate limiting

	// Repositories.
	journeys := repository.NewJourneyRepo(db)
	keys := repository.NewKeyRepo(db)
	tokens := repository.NewMigrationTokenRepo(db)
	stats := repository.NewStatsRepo(db)
	content := repository.NewContentRepo(db)
	reports := repository.NewReportRepo(db)

	// Identity core.
	hasher := identity.NewHasher(cfg.IdentitySalt)
	resolver := journey.NewResolver(journeys, hasher)
	merger := journey.NewMerger(content, stats)
	svc := journey.NewService(journeys, keys, tokens, merger, content, hasher, cfg.KeySalt, cfg.MigrationTokenTTL)

	mod := moderation.New(cfg.ModerationURL)

	e := echo.New()
	e.HideBanner = true
	// Identity resolution runs on every request; routes opt into
	// RequireDevice individually.
	e.Use(middleware.ResolveDevice(resolver, hasher))

	router.RegisterRoutes(e, db)
	router.RegisterIdentity(e, handler.NewJourneyHandler(svc, resolver), handler.NewMigrationHandler(svc), cfg, rlCfg, rdb)
	router.RegisterContent(e, handler.NewMessageHandler(content, stats, mod), handler.NewReportHandler(reports, stats), rlCfg, rdb)
	router.RegisterAdmin(e, handler.NewAdminHandler(cfg, reports, content), cfg.AdminJWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
