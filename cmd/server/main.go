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

	"wellness-at-work/backend/internal/audit"
	auditrepo "wellness-at-work/backend/internal/audit/repository"
	"wellness-at-work/backend/internal/config"
	"wellness-at-work/backend/internal/db"
	healthhandler "wellness-at-work/backend/internal/health/handler"
	identityhandler "wellness-at-work/backend/internal/identity/handler"
	identityservice "wellness-at-work/backend/internal/identity/service"
	samplehandler "wellness-at-work/backend/internal/sample/handler"
	samplerepo "wellness-at-work/backend/internal/sample/repository"
	sampleservice "wellness-at-work/backend/internal/sample/service"
	"wellness-at-work/backend/internal/security"
	"wellness-at-work/backend/internal/server"
	"wellness-at-work/backend/internal/server/middleware"
	sessionhandler "wellness-at-work/backend/internal/session/handler"
	sessionrepo "wellness-at-work/backend/internal/session/repository"
	sessionservice "wellness-at-work/backend/internal/session/service"
	"wellness-at-work/backend/internal/telemetry"
	"wellness-at-work/backend/internal/telemetry/otel"
	"wellness-at-work/backend/internal/telemetry/producer"
	userhandler "wellness-at-work/backend/internal/user/handler"
	userrepo "wellness-at-work/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "waw-api", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	var emitter telemetry.EventEmitter
	var requestProducer producer.Producer
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		emitter = kafkaProducer
		requestProducer = kafkaProducer
	} else {
		emitter = otel.NewEventEmitter(providers.LoggerProvider)
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		// Development fallback; Load rejects an empty secret in production.
		secret = []byte("dev-secret-do-not-use-in-production")
	}
	tokens := security.NewTokenProvider(secret, cfg.JWTIssuer, cfg.AccessTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	users := userrepo.NewPostgresRepository(conn)
	samples := samplerepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	audits := auditrepo.NewPostgresRepository(conn)
	auditor := audit.NewLogger(audits, middleware.ClientIPFromContext)

	storageTimeout := cfg.StorageCallTimeout()
	authService := identityservice.NewAuthService(users, hasher, tokens)
	ingestor := sampleservice.NewIngestor(samples, users, cfg.MaxBatchSize, storageTimeout)
	aggregator := sessionservice.NewAggregator(sessions, samples, storageTimeout)

	router := server.NewRouter(server.Deps{
		Tokens:             tokens,
		Auth:               identityhandler.NewAuthHandler(authService, auditor),
		Users:              userhandler.NewUserHandler(users, samples, sessions, auditor),
		Samples:            samplehandler.NewSampleHandler(ingestor, samples, auditor, emitter),
		Sessions:           sessionhandler.NewSessionHandler(sessions, aggregator, auditor),
		Health:             healthhandler.NewHealthHandler(samples),
		Producer:           requestProducer,
		CORSAllowedOrigins: cfg.CORSOrigins(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// In-flight telemetry emits run on background contexts; give them a beat.
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Println("HTTP server stopped")
}
