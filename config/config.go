// Package config loads the service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Store backend selectors.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Planner/describer provider selectors.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Config holds the full service configuration.
type Config struct {
	// HTTP
	Addr string

	// Collaborators
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	ClaudeModel     string
	GeminiAPIKey    string
	GeminiModel     string
	ApifyToken      string

	DescriberProvider string
	PlannerProvider   string

	// Orchestration knobs
	FanoutConcurrency int
	DescribeTimeout   time.Duration
	ExtractionLimit   int
	MaxInputBytes     int

	// Session store
	StoreBackend string
	RedisAddr    string
	RedisDB      int
	PostgresHost string
	PostgresPort int
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	MongoURI     string
	MongoDB      string

	// Session TTL sweep
	SessionMaxIdle time.Duration
}

// Load reads the configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Addr: getEnv("TRIPFLOW_ADDR", ":8080"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("TRIPFLOW_OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:     getEnv("TRIPFLOW_CLAUDE_MODEL", "claude-3-5-sonnet-20241022"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("TRIPFLOW_GEMINI_MODEL", "gemini-1.5-flash"),
		ApifyToken:      os.Getenv("APIFY_API_KEY"),

		DescriberProvider: getEnv("TRIPFLOW_DESCRIBER", ProviderOpenAI),
		PlannerProvider:   getEnv("TRIPFLOW_PLANNER", ProviderOpenAI),

		FanoutConcurrency: getEnvInt("TRIPFLOW_FANOUT_CONCURRENCY", 5),
		DescribeTimeout:   getEnvDuration("TRIPFLOW_DESCRIBE_TIMEOUT", 30*time.Second),
		ExtractionLimit:   getEnvInt("TRIPFLOW_EXTRACTION_LIMIT", 10),
		MaxInputBytes:     getEnvInt("TRIPFLOW_MAX_INPUT_BYTES", 16384),

		StoreBackend: getEnv("TRIPFLOW_STORE", StoreMemory),
		RedisAddr:    getEnv("TRIPFLOW_REDIS_ADDR", "localhost:6379"),
		RedisDB:      getEnvInt("TRIPFLOW_REDIS_DB", 0),
		PostgresHost: getEnv("TRIPFLOW_POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvInt("TRIPFLOW_POSTGRES_PORT", 5432),
		PostgresUser: getEnv("TRIPFLOW_POSTGRES_USER", "postgres"),
		PostgresPass: getEnv("TRIPFLOW_POSTGRES_PASSWORD", "postgres"),
		PostgresDB:   getEnv("TRIPFLOW_POSTGRES_DB", "tripflow"),
		MongoURI:     getEnv("TRIPFLOW_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("TRIPFLOW_MONGO_DB", "tripflow"),

		SessionMaxIdle: getEnvDuration("TRIPFLOW_SESSION_MAX_IDLE", 24*time.Hour),
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := NewValidator()

	v.RequireNonEmpty("addr", c.Addr)
	v.RequirePositive("fanoutConcurrency", c.FanoutConcurrency)
	v.RequirePositive("extractionLimit", c.ExtractionLimit)
	v.ValidateOneOf("storeBackend", c.StoreBackend, StoreMemory, StoreRedis, StorePostgres, StoreMongo)
	v.ValidateOneOf("describerProvider", c.DescriberProvider, ProviderOpenAI, ProviderGemini)
	v.ValidateOneOf("plannerProvider", c.PlannerProvider, ProviderOpenAI, ProviderClaude)

	switch c.DescriberProvider {
	case ProviderOpenAI:
		v.RequireNonEmpty("openAIAPIKey", c.OpenAIAPIKey)
	case ProviderGemini:
		v.RequireNonEmpty("geminiAPIKey", c.GeminiAPIKey)
	}
	switch c.PlannerProvider {
	case ProviderOpenAI:
		v.RequireNonEmpty("openAIAPIKey", c.OpenAIAPIKey)
	case ProviderClaude:
		v.RequireNonEmpty("anthropicAPIKey", c.AnthropicAPIKey)
	}
	if c.StoreBackend == StoreRedis {
		v.ValidateRange("redisDB", c.RedisDB, 0, 15)
	}
	if c.StoreBackend == StorePostgres {
		v.ValidateRange("postgresPort", c.PostgresPort, 1, 65535)
	}

	return v.Error()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
