package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Log      LogConfig      `json:"log"`
	Gateway  GatewayConfig  `json:"gateway"`
	Chatwoot ChatwootConfig `json:"chatwoot"`
	Billing  BillingConfig  `json:"billing"`
	AI       AIConfig       `json:"ai"`
	Bot      BotConfig      `json:"bot"`
}

type LogConfig struct {
	Level string `env:"ATENDEBOT_LOG_LEVEL" json:"level"`
}

type GatewayConfig struct {
	Host        string `env:"ATENDEBOT_GATEWAY_HOST"         json:"host"`
	Port        int    `env:"ATENDEBOT_GATEWAY_PORT"         json:"port"`
	WebhookPath string `env:"ATENDEBOT_GATEWAY_WEBHOOK_PATH" json:"webhook_path"`
}

// ChatwootConfig holds the helpdesk platform connection and sign-in identity.
type ChatwootConfig struct {
	BaseURL       string `env:"ATENDEBOT_CHATWOOT_BASE_URL"       json:"base_url"`
	AccountID     int    `env:"ATENDEBOT_CHATWOOT_ACCOUNT_ID"     json:"account_id"`
	Email         string `env:"ATENDEBOT_CHATWOOT_EMAIL"          json:"email"`
	Password      string `env:"ATENDEBOT_CHATWOOT_PASSWORD"       json:"password"`
	KeepaliveCron string `env:"ATENDEBOT_CHATWOOT_KEEPALIVE_CRON" json:"keepalive_cron"`
}

// BillingConfig holds the overdue-invoice lookup service settings.
type BillingConfig struct {
	BaseURL        string `env:"ATENDEBOT_BILLING_BASE_URL"        json:"base_url"`
	APIKey         string `env:"ATENDEBOT_BILLING_API_KEY"         json:"api_key"`
	Status         string `env:"ATENDEBOT_BILLING_STATUS"          json:"status"`
	TimeoutSeconds int    `env:"ATENDEBOT_BILLING_TIMEOUT_SECONDS" json:"timeout_seconds"`
}

type AIConfig struct {
	OpenAI      OpenAIConfig    `json:"openai"`
	Anthropic   AnthropicConfig `json:"anthropic"`
	Model       string          `env:"ATENDEBOT_AI_MODEL"        json:"model"`
	VisionModel string          `env:"ATENDEBOT_AI_VISION_MODEL" json:"vision_model"`
}

type OpenAIConfig struct {
	APIKey  string `env:"ATENDEBOT_AI_OPENAI_API_KEY"  json:"api_key"`
	APIBase string `env:"ATENDEBOT_AI_OPENAI_API_BASE" json:"api_base"`
}

type AnthropicConfig struct {
	APIKey  string `env:"ATENDEBOT_AI_ANTHROPIC_API_KEY"  json:"api_key"`
	APIBase string `env:"ATENDEBOT_AI_ANTHROPIC_API_BASE" json:"api_base"`
}

// BotConfig holds orchestration tunables.
type BotConfig struct {
	DedupeTTLSeconds   int   `env:"ATENDEBOT_BOT_DEDUPE_TTL_SECONDS"   json:"dedupe_ttl_seconds"`
	AttachmentMaxBytes int64 `env:"ATENDEBOT_BOT_ATTACHMENT_MAX_BYTES" json:"attachment_max_bytes"`
}

// DefaultConfig returns the built-in defaults, applied before the config
// file and env overrides.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Gateway: GatewayConfig{
			Host:        "0.0.0.0",
			Port:        8920,
			WebhookPath: "/webhooks/chatwoot",
		},
		Chatwoot: ChatwootConfig{
			KeepaliveCron: "*/30 * * * *",
		},
		Billing: BillingConfig{
			Status:         "overdue",
			TimeoutSeconds: 8,
		},
		AI: AIConfig{
			Model:       "gpt-4o-mini",
			VisionModel: "gpt-4o",
		},
		Bot: BotConfig{
			DedupeTTLSeconds:   120,
			AttachmentMaxBytes: 5 * 1024 * 1024,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No file: defaults plus env are still a valid configuration.
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks cross-field consistency. It is intentionally lenient about
// backends that are simply not configured (the gateway degrades instead).
func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway port %d out of range", c.Gateway.Port)
	}
	if c.Chatwoot.BaseURL != "" && c.Chatwoot.AccountID <= 0 {
		return errors.New("chatwoot.account_id is required when chatwoot.base_url is set")
	}
	if c.Bot.DedupeTTLSeconds <= 0 {
		return errors.New("bot.dedupe_ttl_seconds must be positive")
	}
	return nil
}

// HasAIConfig reports whether any completion provider has credentials.
func (c *Config) HasAIConfig() bool {
	return c.AI.OpenAI.APIKey != "" || c.AI.Anthropic.APIKey != ""
}
