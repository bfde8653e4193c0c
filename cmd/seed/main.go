// seed inserts development data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"wellness-at-work/backend/internal/config"
	"wellness-at-work/backend/internal/db"
	sampledomain "wellness-at-work/backend/internal/sample/domain"
	samplerepo "wellness-at-work/backend/internal/sample/repository"
	"wellness-at-work/backend/internal/security"
	sessiondomain "wellness-at-work/backend/internal/session/domain"
	sessionrepo "wellness-at-work/backend/internal/session/repository"
	userdomain "wellness-at-work/backend/internal/user/domain"
	userrepo "wellness-at-work/backend/internal/user/repository"
)

const (
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
	devDeviceID  = "dev-device-001"
	devSessionID = "dev-session-20250101"
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
	users := userrepo.NewPostgresRepository(conn)
	samples := samplerepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	user := &userdomain.User{
		ID:               uuid.New().String(),
		Email:            devUserEmail,
		Name:             "Dev User",
		PasswordHash:     passwordHash,
		ConsentGrantedAt: &now,
		CreatedAt:        now,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	// One hour-long tracking session with a sample every five minutes.
	sessionID := devSessionID
	startedAt := now.Add(-2 * time.Hour).Truncate(time.Minute)
	endedAt := startedAt.Add(time.Hour)
	totalBlinks := 0
	for i := 0; i < 12; i++ {
		blinks := 12 + (i*7)%9
		totalBlinks += blinks
		cpu := 6.5 + float64(i%4)
		mem := 180.0 + float64(i*3)
		energy := sampledomain.EnergyImpactLow
		s := &sampledomain.Sample{
			UserID:          user.ID,
			DeviceID:        devDeviceID,
			ClientSequence:  int64(i + 1),
			ClientSessionID: &sessionID,
			CapturedAt:      startedAt.Add(time.Duration(i) * 5 * time.Minute),
			BlinkCount:      blinks,
			AppVersion:      "1.0.0",
			CPUPercent:      &cpu,
			MemoryMB:        &mem,
			EnergyImpact:    &energy,
		}
		if _, err := samples.InsertIfAbsent(ctx, s); err != nil {
			log.Fatalf("insert sample %d: %v", i+1, err)
		}
	}

	if err := sessions.Upsert(ctx, &sessiondomain.Session{
		UserID:              user.ID,
		ClientSessionID:     sessionID,
		DeviceID:            devDeviceID,
		AppVersion:          "1.0.0",
		StartedAt:           startedAt,
		EndedAt:             &endedAt,
		DeclaredTotalBlinks: &totalBlinks,
		UpdatedAt:           now,
	}); err != nil {
		log.Fatalf("declare session: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devUserEmail, devPassword)
}
