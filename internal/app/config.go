package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store backends understood by LoadConfig
const (
	StoreBackendMemory    = "memory"
	StoreBackendFirestore = "firestore"
)

// Config holds application configuration
type Config struct {
	Port            string
	HomeServer      int
	ValidServers    []int
	StoreBackend    string
	ProjectID       string
	CredentialsFile string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	AuthSecret  string
	CORSOrigins []string

	ParseTimeout   time.Duration
	MaxUploadBytes int64

	BigQueryDataset string
	BigQueryTable   string
}

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	// Configure logging
	if os.Getenv("ENV") == "production" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	levelStr := strings.ToLower(os.Getenv("LOGLEVEL"))
	switch levelStr {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "disabled":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	case "":
		// Default based on environment
		if os.Getenv("ENV") == "production" {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
	}

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	homeStr := os.Getenv("HOME_SERVER")
	if homeStr == "" {
		return nil, fmt.Errorf("HOME_SERVER environment variable is required")
	}
	homeServer, err := strconv.Atoi(strings.TrimSpace(homeStr))
	if err != nil || homeServer <= 0 {
		return nil, fmt.Errorf("HOME_SERVER must be a positive integer, got %q", homeStr)
	}

	validServers, err := ParseServerList(os.Getenv("VALID_SERVERS"))
	if err != nil {
		return nil, fmt.Errorf("invalid VALID_SERVERS: %w", err)
	}
	if len(validServers) == 0 {
		validServers = []int{homeServer}
	}

	backend := strings.ToLower(envOr("STORE_BACKEND", StoreBackendMemory))
	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	switch backend {
	case StoreBackendMemory:
	case StoreBackendFirestore:
		if projectID == "" {
			return nil, fmt.Errorf("FIREBASE_PROJECT_ID environment variable is required for the firestore backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}

	redisDB, err := strconv.Atoi(envOr("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cacheTTL, err := time.ParseDuration(envOr("CACHE_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	parseTimeout, err := time.ParseDuration(envOr("PARSE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PARSE_TIMEOUT: %w", err)
	}

	maxUploadMB, err := strconv.ParseInt(envOr("MAX_UPLOAD_MB", "32"), 10, 64)
	if err != nil || maxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be a positive integer")
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		Port:            envOr("PORT", "8080"),
		HomeServer:      homeServer,
		ValidServers:    validServers,
		StoreBackend:    backend,
		ProjectID:       projectID,
		CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		CacheTTL:        cacheTTL,
		AuthSecret:      os.Getenv("AUTH_JWT_SECRET"),
		CORSOrigins:     origins,
		ParseTimeout:    parseTimeout,
		MaxUploadBytes:  maxUploadMB << 20,
		BigQueryDataset: os.Getenv("BIGQUERY_DATASET"),
		BigQueryTable:   envOr("BIGQUERY_TABLE", "player_snapshots"),
	}, nil
}

// ParseServerList parses a comma separated list of server numbers such as "101, 102".
// Empty entries are ignored.
func ParseServerList(s string) ([]int, error) {
	var servers []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid server %q", part)
		}
		servers = append(servers, n)
	}
	return servers, nil
}

// ServerSet converts a server list to a lookup set
func ServerSet(servers []int) map[int]bool {
	set := make(map[int]bool, len(servers))
	for _, s := range servers {
		set[s] = true
	}
	return set
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
