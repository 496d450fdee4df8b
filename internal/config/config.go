package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
	ProviderGemini LLMProvider = "gemini"
)

type StoreDriver string

const (
	StoreBadger StoreDriver = "badger"
	StoreMemory StoreDriver = "memory"
)

type Config struct {
	// HTTP transport
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	APIToken string `env:"API_TOKEN"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// LLM settings
	LLMProvider         LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey        string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL       string        `env:"OPENAI_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenAIModel         string        `env:"OPENAI_MODEL" envDefault:"openai/gpt-4o-mini"`
	OpenAIFallbackModel string        `env:"OPENAI_FALLBACK_MODEL" envDefault:"google/gemini-2.5-flash-lite"`
	YandexOAuthToken    string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID      string        `env:"YANDEX_FOLDER_ID"`
	GeminiAPIKey        string        `env:"GEMINI_API_KEY"`
	GeminiModel         string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	LLMTimeout          time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	LLMRatePerSec       float64       `env:"LLM_RATE_PER_SEC" envDefault:"0"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Session store
	StoreDriver     StoreDriver   `env:"STORE_DRIVER" envDefault:"badger"`
	StorePath       string        `env:"STORE_PATH" envDefault:"data/sessions"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	StoreGCSchedule string        `env:"STORE_GC_SCHEDULE" envDefault:"@every 10m"`

	// Exports and prompts
	ExportDir   string `env:"EXPORT_DIR" envDefault:"exports"`
	PromptsPath string `env:"PROMPTS_PATH"`

	// Interview tuning
	MaxStrikes           int     `env:"MAX_STRIKES" envDefault:"2"`
	MaxRegenerations     int     `env:"MAX_REGENERATIONS" envDefault:"3"`
	RegenTemperatureStep float64 `env:"REGEN_TEMPERATURE_STEP" envDefault:"0.2"`
	RequireBranding      bool    `env:"REQUIRE_BRANDING" envDefault:"false"`

	// Telegram transport
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers     []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AllowlistPath    string  `env:"ALLOWLIST_PATH" envDefault:"data/allowlist.json"`
}

// Load parses the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// Model returns the primary and fallback model names for the configured
// provider.
func (c *Config) Model() (primary, fallback string) {
	switch c.LLMProvider {
	case ProviderGemini:
		return c.GeminiModel, ""
	case ProviderYandex:
		return "", ""
	default:
		return c.OpenAIModel, c.OpenAIFallbackModel
	}
}
