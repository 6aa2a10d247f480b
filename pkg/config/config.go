package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port        string
	AppName     string
	FrontendURL string

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json

	// GitHub
	GitHubToken            string
	GitHubAPIURL           string
	GitHubMaxRateLimitWait time.Duration

	// Repository registry
	Repositories    string // JSON list of {name,url}
	RepositoryURLs  string // comma separated fallback
	RepositoryNames string // comma separated fallback

	// Storage
	StorageBackend string // memory or postgres
	DatabaseURL    string
	CacheTTL       time.Duration
	CacheMaxItems  int

	// LLM
	LLMProvider     string // deepseek or ollama
	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string
	OllamaChatURL   string
	OllamaChatModel string
	OllamaChatToken string // Bearer token for Ollama Cloud (empty = local)
	LLMTimeout      time.Duration
	ReportLanguage  string

	// Async pipeline
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	JobAttempts        int
	JobBackoff         time.Duration
	JobLease           time.Duration
	NATSURL            string // empty = in-process notifier

	// Rate limiting of the synchronous report routes
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Tracing
	TracingEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:        envOrDefault("PORT", "3000"),
		AppName:     envOrDefault("APP_NAME", "Commit Reporter"),
		FrontendURL: envOrDefault("FRONTEND_URL", "*"),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),

		GitHubToken:            os.Getenv("GITHUB_TOKEN"),
		GitHubAPIURL:           envOrDefault("GITHUB_API_URL", "https://api.github.com/"),
		GitHubMaxRateLimitWait: envOrDefaultDuration("GITHUB_MAX_RATE_LIMIT_WAIT", time.Minute),

		Repositories:    os.Getenv("GITHUB_REPOSITORIES"),
		RepositoryURLs:  os.Getenv("GITHUB_REPOSITORY_URLS"),
		RepositoryNames: os.Getenv("GITHUB_REPOSITORY_NAMES"),

		StorageBackend: envOrDefault("STORAGE_BACKEND", StorageMemory),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		CacheTTL:       envOrDefaultDuration("CACHE_TTL", time.Hour),
		CacheMaxItems:  envOrDefaultInt("CACHE_MAX_ITEMS", 100),

		LLMProvider:     envOrDefault("LLM_PROVIDER", "deepseek"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL: envOrDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:   envOrDefault("DEEPSEEK_MODEL", "deepseek-chat"),
		OllamaChatURL:   envOrDefault("OLLAMA_CHAT_URL", "http://localhost:11434"),
		OllamaChatModel: envOrDefault("OLLAMA_CHAT_MODEL", "qwen3"),
		OllamaChatToken: os.Getenv("OLLAMA_CHAT_TOKEN"),
		LLMTimeout:      envOrDefaultDuration("LLM_TIMEOUT", 2*time.Minute),
		ReportLanguage:  envOrDefault("REPORT_LANGUAGE", "English"),

		WorkerEnabled:      envOrDefaultBool("WORKER_ENABLED", true),
		WorkerConcurrency:  envOrDefaultInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: envOrDefaultDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		JobAttempts:        envOrDefaultInt("JOB_ATTEMPTS", 3),
		JobBackoff:         envOrDefaultDuration("JOB_BACKOFF", 5*time.Second),
		JobLease:           envOrDefaultDuration("JOB_LEASE", 10*time.Minute),
		NATSURL:            os.Getenv("NATS_URL"),

		RateLimitMax:    envOrDefaultInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow: envOrDefaultDuration("RATE_LIMIT_WINDOW", time.Minute),

		TracingEnabled: envOrDefaultBool("TRACING_ENABLED", false),
	}
}

// Validate reports configuration combinations that cannot start.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORAGE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.LLMProvider {
	case "deepseek", "ollama":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

// DSN returns the database URL for logging (password masked).
func (c *Config) DSN() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil || c.DatabaseURL == "" {
		return "(unset)"
	}
	return u.Redacted()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

// envOrDefaultDuration accepts Go durations ("90s") or plain milliseconds ("5000").
func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
