package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.JWTIssuer != "waw-api" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "waw-api")
	}
	if cfg.JWTAccessTTL != "24h" {
		t.Errorf("JWTAccessTTL = %q, want %q", cfg.JWTAccessTTL, "24h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.MaxBatchSize != 1000 {
		t.Errorf("MaxBatchSize = %d, want 1000", cfg.MaxBatchSize)
	}
	if cfg.TelemetryKafkaTopic != "waw-telemetry" {
		t.Errorf("TelemetryKafkaTopic = %q, want %q", cfg.TelemetryKafkaTopic, "waw-telemetry")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("MAX_BATCH_SIZE", "250")
	os.Setenv("BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.MaxBatchSize != 250 {
		t.Errorf("MaxBatchSize = %d, want 250", cfg.MaxBatchSize)
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	os.Clearenv()
	os.Setenv("BCRYPT_COST", "99")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject BCRYPT_COST=99")
	}
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	os.Clearenv()
	os.Setenv("MAX_BATCH_SIZE", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject MAX_BATCH_SIZE=-1")
	}
}

func TestLoad_ProductionRequiresJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("Load should require JWT_SECRET in production")
	}
}

func TestAccessTTL(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "15m"}
	if got := cfg.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", got)
	}
	cfg = &Config{JWTAccessTTL: "bogus"}
	if got := cfg.AccessTTL(); got != 24*time.Hour {
		t.Errorf("AccessTTL fallback = %v, want 24h", got)
	}
}

func TestStorageCallTimeout(t *testing.T) {
	cfg := &Config{StorageTimeout: "2s"}
	if got := cfg.StorageCallTimeout(); got != 2*time.Second {
		t.Errorf("StorageCallTimeout = %v, want 2s", got)
	}
	cfg = &Config{}
	if got := cfg.StorageCallTimeout(); got != 5*time.Second {
		t.Errorf("StorageCallTimeout fallback = %v, want 5s", got)
	}
}

func TestCORSOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: "http://localhost:3000, https://dashboard.example.com ,"}
	got := cfg.CORSOrigins()
	if len(got) != 2 {
		t.Fatalf("CORSOrigins = %v, want 2 entries", got)
	}
	if got[0] != "http://localhost:3000" || got[1] != "https://dashboard.example.com" {
		t.Errorf("CORSOrigins = %v", got)
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	cfg := &Config{TelemetryKafkaBrokers: "k1:9092,k2:9092"}
	got := cfg.TelemetryKafkaBrokersList()
	if len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Errorf("TelemetryKafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.TelemetryKafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}
