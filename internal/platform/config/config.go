package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers the platform can run on. Memory keeps everything
// in-process, sqlite runs single-node durable, postgres is the shared
// deployment target.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName   string
	HTTPPort      string
	StorageDriver string
	PostgresDSN   string
	SQLitePath    string
	KafkaBrokers  []string

	// VoterSalt keys the fallback voter fingerprint for requests that carry
	// no explicit voter id.
	VoterSalt string

	ResultsCacheSize     int
	ResultsCacheTTL      time.Duration
	ResultsFinalCacheTTL time.Duration

	WorkerPollInterval time.Duration
	WorkerBatchSize    int

	EnablePollExpiry      bool
	EnableOutboxRelay     bool
	EnableDriftSweep      bool
	EnableResultsRefresh  bool
	EnableResultsConsumer bool
}

func Load() (Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "agora"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	driver := strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_DRIVER")))
	switch driver {
	case "":
		driver = DriverMemory
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return Config{}, fmt.Errorf("unsupported STORAGE_DRIVER %q", driver)
	}

	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if sqlitePath == "" {
		sqlitePath = "agora.db"
	}

	salt := strings.TrimSpace(os.Getenv("VOTER_SALT"))
	if salt == "" {
		salt = "agora-local-voter-salt"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:   service,
		HTTPPort:      port,
		StorageDriver: driver,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		SQLitePath:    sqlitePath,
		KafkaBrokers:  brokers,

		VoterSalt: salt,

		ResultsCacheSize:     envInt("RESULTS_CACHE_SIZE", 10_000),
		ResultsCacheTTL:      envDuration("RESULTS_CACHE_TTL", 15*time.Second),
		ResultsFinalCacheTTL: envDuration("RESULTS_FINAL_CACHE_TTL", 24*time.Hour),

		WorkerPollInterval: envDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		WorkerBatchSize:    envInt("WORKER_BATCH_SIZE", 100),

		EnablePollExpiry:      envBool("ENABLE_POLL_EXPIRY", true),
		EnableOutboxRelay:     envBool("ENABLE_OUTBOX_RELAY", true),
		EnableDriftSweep:      envBool("ENABLE_DRIFT_SWEEP", true),
		EnableResultsRefresh:  envBool("ENABLE_RESULTS_REFRESH", true),
		EnableResultsConsumer: envBool("ENABLE_RESULTS_CONSUMER", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
