package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/careerbot?charset=utf8mb4&parseTime=true&loc=Local
	// sqlite:./data/careerbot.db
	// empty keeps sessions in memory only
	DBDSN       string `envconfig:"DB_DSN"`
	JWTSecret   string `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	AdminAPIKey string `envconfig:"ADMIN_API_KEY"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// rate limit
	RateLimitBackend  string        `envconfig:"RATE_LIMIT_BACKEND" default:"memory"`
	RateLimitMessages int           `envconfig:"RATE_LIMIT_MESSAGES" default:"50"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"3h"`

	// session memory
	ChatContextWindowSize int           `envconfig:"CHAT_CONTEXT_WINDOW_SIZE" default:"15"`
	SessionIdleTTL        time.Duration `envconfig:"SESSION_IDLE_TTL" default:"168h"`
	SessionSweepSchedule  string        `envconfig:"SESSION_SWEEP_SCHEDULE" default:"@every 1h"`

	// AI provider
	AIProvider        string `envconfig:"AI_PROVIDER" default:"openai"`
	OpenAIAPIKey      string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel       string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OllamaBaseURL     string `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	OllamaModel       string `envconfig:"OLLAMA_MODEL" default:"llama3:latest"`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterModel   string `envconfig:"OPENROUTER_MODEL" default:"openrouter/auto"`
	OpenRouterSiteURL string `envconfig:"OPENROUTER_SITE_URL"`
	OpenRouterAppName string `envconfig:"OPENROUTER_APP_NAME"`

	ClassifierTemperature     float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0.1"`
	FactualTemperature        float32 `envconfig:"FACTUAL_TEMPERATURE" default:"0.3"`
	ConversationalTemperature float32 `envconfig:"CONVERSATIONAL_TEMPERATURE" default:"0.7"`
	MaxOutputTokens           int     `envconfig:"MAX_OUTPUT_TOKENS" default:"1500"`

	// rabbitMQ, empty url disables async chat
	RabbitURL         string `envconfig:"RABBIT_URL"`
	RabbitQueue       string `envconfig:"RABBIT_QUEUE" default:"chat_jobs"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"2"`

	// per-IP request throttle
	ThrottleRPS   float64 `envconfig:"THROTTLE_RPS" default:"5"`
	ThrottleBurst int     `envconfig:"THROTTLE_BURST" default:"10"`

	LogFile string `envconfig:"LOG_FILE"`
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	cfg.AIProvider = strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	cfg.RateLimitBackend = strings.ToLower(strings.TrimSpace(cfg.RateLimitBackend))

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 2
	}
	if cfg.WorkerConcurrency > 50 {
		cfg.WorkerConcurrency = 50
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.RateLimitMessages <= 0 {
		return fmt.Errorf("RATE_LIMIT_MESSAGES must be > 0")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND=%q", c.RateLimitBackend)
	}
	switch c.AIProvider {
	case "openai", "ollama", "openrouter":
	default:
		return fmt.Errorf("unsupported AI_PROVIDER=%q", c.AIProvider)
	}
	if c.ChatContextWindowSize <= 0 {
		return fmt.Errorf("CHAT_CONTEXT_WINDOW_SIZE must be > 0")
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("MAX_OUTPUT_TOKENS must be > 0")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c Config) AsyncEnabled() bool {
	return strings.TrimSpace(c.RabbitURL) != ""
}
