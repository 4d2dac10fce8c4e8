package config

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
)

// DateLayout is the format of START_DATE and of the API's start_date field.
const DateLayout = "2006-01-02"

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string
	LogFile  string

	// Datasets
	DataDir      string
	OutputDir    string
	StartDate    time.Time
	Radius       float64
	Templates    []domain.DatasetTemplate
	CustomerSeed uint64
	TerminalSeed uint64

	// Generator tuning
	Workers       int
	GridThreshold int

	// Neo4j
	Neo4jURI       string // may contain %d, replaced by the dataset size
	Neo4jUser      string
	Neo4jPassword  string
	Neo4jChunkSize int

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int // concurrent generations served by the API

	// Registry
	CacheTTL  time.Duration
	RedisAddr string

	// Observability
	OTLPEndpoint string

	// API
	JWTSecret       string
	MaxAPICustomers int
	MaxAPITerminals int
	MaxAPIDays      int
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		DataDir:      getEnv("DATA_DIR", "./data"),
		OutputDir:    getEnv("OUTPUT_DIR", "./output"),
		StartDate:    getEnvDate("START_DATE", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)),
		Radius:       getEnvFloat("RADIUS", 5),
		Templates:    getEnvTemplates("DATASET_TEMPLATES", "100=2500:5000:365;200=5000:10000:365;300=7500:15000:365"),
		CustomerSeed: uint64(getEnvInt("CUSTOMER_SEED", 0)),
		TerminalSeed: uint64(getEnvInt("TERMINAL_SEED", 1)),

		Workers:       getEnvInt("WORKERS", runtime.NumCPU()),
		GridThreshold: getEnvInt("GRID_THRESHOLD", 2000),

		Neo4jURI:       getEnv("NEO4J_URI", "neo4j://neo4j_%d:7687"),
		Neo4jUser:      getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:  getEnv("NEO4J_PASSWORD", "neo4jpassword"),
		Neo4jChunkSize: getEnvInt("NEO4J_CHUNK_SIZE", 5000),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 500*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),

		CacheTTL:  getEnvDuration("CACHE_TTL", 24*time.Hour),
		RedisAddr: getEnv("REDIS_ADDR", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret:       getEnv("API_JWT_SECRET", ""),
		MaxAPICustomers: getEnvInt("MAX_API_CUSTOMERS", 10000),
		MaxAPITerminals: getEnvInt("MAX_API_TERMINALS", 20000),
		MaxAPIDays:      getEnvInt("MAX_API_DAYS", 730),
	}
}

// Neo4jURIFor returns the graph store URI of a dataset size.
func (c *Config) Neo4jURIFor(size int) string {
	if strings.Contains(c.Neo4jURI, "%d") {
		return fmt.Sprintf(c.Neo4jURI, size)
	}
	return c.Neo4jURI
}

// ParseTemplates parses "size=customers:terminals:days" entries separated by
// ';'. Entries are returned sorted by size.
func ParseTemplates(s string) ([]domain.DatasetTemplate, error) {
	var templates []domain.DatasetTemplate
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		size, counts, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("template %q: missing '='", entry)
		}
		parts := strings.Split(counts, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("template %q: want customers:terminals:days", entry)
		}

		values := make([]int, 4)
		for i, raw := range append([]string{size}, parts...) {
			v, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("template %q: %w", entry, err)
			}
			values[i] = v
		}

		templates = append(templates, domain.DatasetTemplate{
			Size:      values[0],
			Customers: values[1],
			Terminals: values[2],
			Days:      values[3],
		})
	}

	sort.Slice(templates, func(i, j int) bool { return templates[i].Size < templates[j].Size })
	return templates, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDate(key string, fallback time.Time) time.Time {
	if v := os.Getenv(key); v != "" {
		if d, err := time.Parse(DateLayout, v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvTemplates(key, fallback string) []domain.DatasetTemplate {
	if v := os.Getenv(key); v != "" {
		if t, err := ParseTemplates(v); err == nil {
			return t
		}
	}
	t, _ := ParseTemplates(fallback)
	return t
}
