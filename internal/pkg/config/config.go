package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresURL string `env:"POSTGRES_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR,required"`

	APIServerAddr   string `env:"API_SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`
	JWTSecret       string `env:"JWT_SECRET,required"`

	QueueCapacity    int           `env:"QUEUE_CAPACITY" envDefault:"500"`
	QueueRatePerSec  float64       `env:"QUEUE_RATE_PER_SEC" envDefault:"50"`
	QueueBurst       int           `env:"QUEUE_BURST" envDefault:"100"`
	WindowBatchSize  int           `env:"WINDOW_BATCH_SIZE" envDefault:"200"`
	WindowInterval   time.Duration `env:"WINDOW_INTERVAL" envDefault:"15m"`
	ClusterThreshold float64       `env:"CLUSTER_THRESHOLD" envDefault:"0.3"`

	AnthropicAPIKey        string        `env:"ANTHROPIC_API_KEY"`
	GenerationModel        string        `env:"GENERATION_MODEL" envDefault:"claude-sonnet-4-5"`
	GenerationTimeout      time.Duration `env:"GENERATION_TIMEOUT" envDefault:"30s"`
	GenerationRetries      int           `env:"GENERATION_RETRIES" envDefault:"3"`
	MaxParallelGenerations int           `env:"MAX_PARALLEL_GENERATIONS" envDefault:"4"`

	SafetyBlocklist   string        `env:"SAFETY_BLOCKLIST"` // comma-separated additions
	RecommendationTTL time.Duration `env:"RECOMMENDATION_TTL" envDefault:"720h"`
	ExpiryInterval    time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"1h"`
	TenantCacheTTL    time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
