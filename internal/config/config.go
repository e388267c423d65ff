package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

const (
	DefaultGroqModel      = "llama3-8b-8192"
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel    = "gpt-4o-mini"

	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1/"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// DisabledDBPath turns off run history.
const DisabledDBPath = "-"

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`

	LLMProvider    string `yaml:"llm_provider"`
	LLMModel       string `yaml:"llm_model"`
	LLMBatchSize   int    `yaml:"llm_batch_size"`
	LLMConcurrency int    `yaml:"llm_concurrency"`
	LLMMaxTokens   int    `yaml:"llm_max_tokens"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	GroqAPIKey      string `yaml:"groq_api_key"`
	GroqBaseURL     string `yaml:"groq_base_url"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	DBPath string `yaml:"db_path"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	InboxDir      string `yaml:"inbox_dir"`
	InboxSchedule string `yaml:"inbox_schedule"`

	LogLevel string `yaml:"log_level"`
}

// LoadConfig loads configuration and exits the process when it is invalid.
func LoadConfig() Config {
	cfg, err := Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	return cfg
}

// Load reads .env, then config.yaml (or CONFIG_PATH), then applies env
// overrides, defaults and validation.
func Load() (Config, error) {
	var cfg Config

	envFile := ".env"
	if p := os.Getenv("ENV_FILE"); p != "" {
		envFile = p
	}
	if err := gotenv.Load(envFile); err != nil {
		slog.Debug("no .env file loaded, using OS environment", slog.String("path", envFile))
	}

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", configPath, err)
		}
		slog.Info("loaded config", slog.String("path", configPath))
	}

	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	if err := envOverrideInt(&cfg.MaxUploadMB, "MAX_UPLOAD_MB"); err != nil {
		return Config{}, err
	}
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	for field, key := range map[*int]string{
		&cfg.LLMBatchSize:               "LLM_BATCH_SIZE",
		&cfg.LLMConcurrency:             "LLM_CONCURRENCY",
		&cfg.LLMMaxTokens:               "LLM_MAX_TOKENS",
		&cfg.ExternalHTTPTimeoutSeconds: "EXTERNAL_HTTP_TIMEOUT_SECONDS",
	} {
		if err := envOverrideInt(field, key); err != nil {
			return Config{}, err
		}
	}
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverride(&cfg.GroqAPIKey, "GROQ_API_KEY")
	envOverride(&cfg.GroqBaseURL, "GROQ_BASE_URL")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.InboxDir, "INBOX_DIR")
	envOverrideAllowEmpty(&cfg.InboxSchedule, "INBOX_SCHEDULE")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8000"
	}
	if cfg.MaxUploadMB == 0 {
		cfg.MaxUploadMB = 10
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = ProviderGroq
	}
	if cfg.LLMModel == "" {
		switch cfg.LLMProvider {
		case ProviderAnthropic:
			cfg.LLMModel = DefaultAnthropicModel
		case ProviderOpenAI:
			cfg.LLMModel = DefaultOpenAIModel
		case ProviderGroq:
			cfg.LLMModel = DefaultGroqModel
		}
	}
	if cfg.LLMBatchSize == 0 {
		cfg.LLMBatchSize = 10
	}
	if cfg.LLMConcurrency == 0 {
		cfg.LLMConcurrency = 1
	}
	if cfg.LLMMaxTokens == 0 {
		cfg.LLMMaxTokens = 1024
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = DefaultOpenAIBaseURL
	}
	if cfg.GroqBaseURL == "" {
		cfg.GroqBaseURL = DefaultGroqBaseURL
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./reviewsentiment.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("groq_api_key is required when llm_provider=groq")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai_api_key is required when llm_provider=openai")
		}
	default:
		return fmt.Errorf("llm_provider must be 'groq', 'anthropic' or 'openai', got '%s'", c.LLMProvider)
	}

	if c.LLMBatchSize < 1 {
		return fmt.Errorf("invalid llm_batch_size '%d': must be >= 1", c.LLMBatchSize)
	}
	if c.LLMConcurrency < 1 || c.LLMConcurrency > 8 {
		return fmt.Errorf("invalid llm_concurrency '%d': must be between 1 and 8", c.LLMConcurrency)
	}
	if c.LLMMaxTokens < 16 {
		return fmt.Errorf("invalid llm_max_tokens '%d': must be >= 16", c.LLMMaxTokens)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("invalid max_upload_mb '%d': must be >= 1", c.MaxUploadMB)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if (c.SlackBotToken == "") != (c.SlackChannelID == "") {
		return fmt.Errorf("slack_bot_token and slack_channel_id must be set together")
	}
	if c.InboxSchedule != "" {
		if c.InboxDir == "" {
			return fmt.Errorf("inbox_schedule is set but inbox_dir is empty")
		}
		sched, err := ParseSchedule(c.InboxSchedule)
		if err != nil {
			return fmt.Errorf("invalid inbox_schedule '%s': %w", c.InboxSchedule, err)
		}
		if sched.Next(time.Now()).IsZero() {
			return fmt.Errorf("invalid inbox_schedule '%s': never fires", c.InboxSchedule)
		}
	}
	return nil
}

// ParseSchedule parses a standard 5-field cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(spec))
}

func (c Config) HistoryEnabled() bool {
	return c.DBPath != DisabledDBPath
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) InboxConfigured() bool {
	return c.InboxDir != "" && c.InboxSchedule != ""
}

func (c Config) ExternalHTTPTimeout() time.Duration {
	return time.Duration(c.ExternalHTTPTimeoutSeconds) * time.Second
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
