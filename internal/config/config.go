package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL  = "https://api.groq.com/openai/v1"
	DefaultModel    = "llama-3.1-8b-instant"
	DefaultDataFile = "data.json"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Inference InferenceConfig
	Store     StoreConfig
	Log       LogConfig
	Telegram  TelegramConfig
	Backup    BackupConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// InferenceConfig points at an OpenAI-compatible chat-completions
// endpoint. The default targets Groq, which the rest of the deployment
// is provisioned for.
type InferenceConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type StoreConfig struct {
	// Driver is "file" (indented JSON snapshot) or "sqlite".
	Driver string
	Path   string
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}

type BackupConfig struct {
	Enabled  bool
	Schedule string
	Dir      string
}

func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "triagelog"),
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "0.0.0"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8000),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 2*time.Minute),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Inference: InferenceConfig{
			APIKey:     getEnv("GROQ_API_KEY", os.Getenv("LLM_API_KEY")),
			BaseURL:    getEnv("LLM_BASE_URL", DefaultBaseURL),
			Model:      getEnv("LLM_MODEL", DefaultModel),
			Timeout:    getEnvDuration("LLM_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvInt("LLM_MAX_RETRIES", 2),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "file"),
			Path:   getEnv("DATA_FILE", DefaultDataFile),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Telegram: TelegramConfig{
			Enabled: getEnvBool("TELEGRAM_ALERTS_ENABLED", false),
			Token:   getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:  getEnvInt64("TELEGRAM_CHAT_ID", 0),
		},
		Backup: BackupConfig{
			Enabled:  getEnvBool("BACKUP_ENABLED", false),
			Schedule: getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			Dir:      getEnv("BACKUP_DIR", "backups"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if strings.TrimSpace(cfg.Inference.APIKey) == "" {
		errs = append(errs, "GROQ_API_KEY is required")
	}

	switch cfg.Store.Driver {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be \"file\" or \"sqlite\", got %q", cfg.Store.Driver))
	}

	if cfg.Telegram.Enabled {
		if cfg.Telegram.Token == "" {
			errs = append(errs, "TELEGRAM_BOT_TOKEN is required when alerts are enabled")
		}
		if cfg.Telegram.ChatID == 0 {
			errs = append(errs, "TELEGRAM_CHAT_ID is required when alerts are enabled")
		}
	}

	if cfg.Backup.Enabled && strings.TrimSpace(cfg.Backup.Schedule) == "" {
		errs = append(errs, "BACKUP_SCHEDULE is required when backups are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
