package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "SCRIPTWRITER_CONFIG"
	providerEnv       = "SCRIPTWRITER_PROVIDER"
	listenAddrEnv     = "SCRIPTWRITER_ADDR"
	databasePathEnv   = "SCRIPTWRITER_DB"
	logLevelEnv       = "LOG_LEVEL"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	geminiModelEnv    = "GEMINI_MODEL"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Generation    GenerationConfig   `yaml:"generation"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Storage       StorageConfig      `yaml:"storage"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// GenerationConfig selects and configures the text generation backend.
type GenerationConfig struct {
	Provider          string        `yaml:"provider"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	Gemini            GeminiConfig  `yaml:"gemini"`
	ChatGPT           ChatGPTConfig `yaml:"chatgpt"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// PipelineConfig tunes the stage handlers.
type PipelineConfig struct {
	GatherAttempts        int  `yaml:"gatherAttempts"`
	ExtractionConcurrency int  `yaml:"extractionConcurrency"`
	FetchPages            bool `yaml:"fetchPages"`
	PageExcerptChars      int  `yaml:"pageExcerptChars"`
}

// StorageConfig points at the SQLite script archive.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Credentialed reports whether the selected provider has an API key.
func (g GenerationConfig) Credentialed() bool {
	switch g.Provider {
	case "gemini":
		return g.Gemini.APIKey != ""
	case "chatgpt":
		return g.ChatGPT.APIKey != ""
	default:
		return false
	}
}

// Load reads the YAML file named by SCRIPTWRITER_CONFIG (if any) and applies
// environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom is Load with an explicit file path; empty means defaults only.
func LoadFrom(path string) Config {
	cfg := Default()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(providerEnv); v != "" {
		c.Generation.Provider = v
	}

	if v := os.Getenv(listenAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(databasePathEnv); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Generation.Gemini.APIKey = v
	}

	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Generation.Gemini.Model = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.Generation.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.Generation.ChatGPT.Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Generation.Provider != "" {
		base.Generation.Provider = override.Generation.Provider
	}
	if override.Generation.RequestTimeout > 0 {
		base.Generation.RequestTimeout = override.Generation.RequestTimeout
	}
	if override.Generation.RequestsPerSecond > 0 {
		base.Generation.RequestsPerSecond = override.Generation.RequestsPerSecond
	}
	if override.Generation.Burst > 0 {
		base.Generation.Burst = override.Generation.Burst
	}
	if override.Generation.Gemini.Model != "" {
		base.Generation.Gemini.Model = override.Generation.Gemini.Model
	}
	if override.Generation.Gemini.APIKey != "" {
		base.Generation.Gemini.APIKey = override.Generation.Gemini.APIKey
	}
	if override.Generation.Gemini.BaseURL != "" {
		base.Generation.Gemini.BaseURL = override.Generation.Gemini.BaseURL
	}
	if override.Generation.ChatGPT.Endpoint != "" {
		base.Generation.ChatGPT.Endpoint = override.Generation.ChatGPT.Endpoint
	}
	if override.Generation.ChatGPT.Model != "" {
		base.Generation.ChatGPT.Model = override.Generation.ChatGPT.Model
	}
	if override.Generation.ChatGPT.APIKey != "" {
		base.Generation.ChatGPT.APIKey = override.Generation.ChatGPT.APIKey
	}
	if override.Generation.ChatGPT.SystemPrompt != "" {
		base.Generation.ChatGPT.SystemPrompt = override.Generation.ChatGPT.SystemPrompt
	}

	if override.Pipeline.GatherAttempts > 0 {
		base.Pipeline.GatherAttempts = override.Pipeline.GatherAttempts
	}
	if override.Pipeline.ExtractionConcurrency > 0 {
		base.Pipeline.ExtractionConcurrency = override.Pipeline.ExtractionConcurrency
	}
	if override.Pipeline.FetchPages {
		base.Pipeline.FetchPages = true
	}
	if override.Pipeline.PageExcerptChars > 0 {
		base.Pipeline.PageExcerptChars = override.Pipeline.PageExcerptChars
	}

	if override.Storage.Path != "" {
		base.Storage.Path = override.Storage.Path
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	return base
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Generation: GenerationConfig{
			Provider:          "gemini",
			RequestTimeout:    60 * time.Second,
			RequestsPerSecond: 4,
			Burst:             6,
			Gemini:            GeminiConfig{Model: "gemini-2.0-flash"},
			ChatGPT: ChatGPTConfig{
				Endpoint:     "https://api.openai.com/v1/chat/completions",
				Model:        "gpt-4o-mini",
				SystemPrompt: "You are an expert short-form video scriptwriter and researcher.",
			},
		},
		Pipeline: PipelineConfig{
			GatherAttempts:        2,
			ExtractionConcurrency: 6,
			PageExcerptChars:      2000,
		},
		Storage: StorageConfig{Path: "scriptwriter.db"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
