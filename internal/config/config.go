package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendLocal   = "local"
	BackendGraphQL = "graphql"
)

type Config struct {
	Backend string `yaml:"backend"`

	GraphQLURL   string `yaml:"graphql_url"`
	GraphQLWSURL string `yaml:"graphql_ws_url"`
	AuthURL      string `yaml:"auth_url"`
	AuthEmail    string `yaml:"auth_email"`
	AuthPassword string `yaml:"auth_password"`
	AccessToken  string `yaml:"access_token"`

	DatabaseURL      string `yaml:"database_url"`
	GeminiAPIKey     string `yaml:"gemini_api_key"`
	GeminiModel      string `yaml:"gemini_model"`
	GeneratorWorkers int    `yaml:"generator_workers"`
	JWTSecret        string `yaml:"jwt_secret"`

	HTTPPort string `yaml:"http_port"`
	APIToken string `yaml:"api_token"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	AllowConcurrentSubmit bool          `yaml:"allow_concurrent_submit"`
	FeedReconnectInterval time.Duration `yaml:"feed_reconnect_interval"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
}

var AppConfig Config

func defaults() Config {
	return Config{
		Backend:               BackendLocal,
		DatabaseURL:           "chatsync.db",
		GeminiModel:           "gemini-1.5-flash-latest",
		GeneratorWorkers:      2,
		HTTPPort:              "8080",
		LogLevel:              "INFO",
		FeedReconnectInterval: 2 * time.Second,
		RequestTimeout:        30 * time.Second,
	}
}

// LoadConfig populates AppConfig and exits the process on invalid settings.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	AppConfig = cfg
}

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE,
// then environment variables, later sources overriding earlier ones.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := defaults()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Backend = strings.ToLower(getEnv("BACKEND", cfg.Backend))
	cfg.GraphQLURL = getEnv("GRAPHQL_URL", cfg.GraphQLURL)
	cfg.GraphQLWSURL = getEnv("GRAPHQL_WS_URL", cfg.GraphQLWSURL)
	cfg.AuthURL = getEnv("AUTH_URL", cfg.AuthURL)
	cfg.AuthEmail = getEnv("AUTH_EMAIL", cfg.AuthEmail)
	cfg.AuthPassword = getEnv("AUTH_PASSWORD", cfg.AuthPassword)
	cfg.AccessToken = getEnv("ACCESS_TOKEN", cfg.AccessToken)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.GeneratorWorkers = getEnvAsInt("GENERATOR_WORKERS", cfg.GeneratorWorkers)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.APIToken = getEnv("API_TOKEN", cfg.APIToken)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.AllowConcurrentSubmit = getEnvAsBool("ALLOW_CONCURRENT_SUBMIT", cfg.AllowConcurrentSubmit)
	cfg.FeedReconnectInterval = getEnvAsDuration("FEED_RECONNECT_INTERVAL", cfg.FeedReconnectInterval)
	cfg.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the local backend")
		}
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required for the local backend")
		}
	case BackendGraphQL:
		if c.GraphQLURL == "" {
			return errors.New("GRAPHQL_URL is required for the graphql backend")
		}
		if c.AccessToken == "" && c.AuthURL == "" {
			return errors.New("either ACCESS_TOKEN or AUTH_URL is required for the graphql backend")
		}
	default:
		return fmt.Errorf("unknown BACKEND %q (want %q or %q)", c.Backend, BackendLocal, BackendGraphQL)
	}
	if c.GeneratorWorkers < 1 {
		return errors.New("GENERATOR_WORKERS must be at least 1")
	}
	return nil
}

// WebsocketURL returns GRAPHQL_WS_URL or, when unset, GRAPHQL_URL with its
// scheme switched to ws/wss.
func (c Config) WebsocketURL() string {
	if c.GraphQLWSURL != "" {
		return c.GraphQLWSURL
	}
	switch {
	case strings.HasPrefix(c.GraphQLURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.GraphQLURL, "https://")
	case strings.HasPrefix(c.GraphQLURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.GraphQLURL, "http://")
	}
	return c.GraphQLURL
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
