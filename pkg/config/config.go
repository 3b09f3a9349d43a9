package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Routing    RoutingConfig    `json:"routing"`
	Channels   ChannelsConfig   `json:"channels"`
	Summarizer SummarizerConfig `json:"summarizer,omitzero"`
	Reminders  RemindersConfig  `json:"reminders,omitzero"`
	Gateway    GatewayConfig    `json:"gateway"`
}

type RoutingConfig struct {
	AggregationRequired     bool   `env:"RELAYBOT_ROUTING_AGGREGATION_REQUIRED"      json:"aggregation_required"`
	AutoAccept              bool   `env:"RELAYBOT_ROUTING_AUTO_ACCEPT"               json:"auto_accept"`
	CommandPrefix           string `env:"RELAYBOT_ROUTING_COMMAND_PREFIX"            json:"command_prefix"`
	BroadcastTimeoutSeconds int    `env:"RELAYBOT_ROUTING_BROADCAST_TIMEOUT_SECONDS" json:"broadcast_timeout_seconds"`
	StatePath               string `env:"RELAYBOT_ROUTING_STATE_PATH"                json:"state_path"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	Slack    SlackConfig    `json:"slack"`
	Webchat  WebchatConfig  `json:"webchat"`
}

type TelegramConfig struct {
	Enabled   bool                `env:"RELAYBOT_CHANNELS_TELEGRAM_ENABLED"    json:"enabled"`
	Token     string              `env:"RELAYBOT_CHANNELS_TELEGRAM_TOKEN"      json:"token"`
	AllowFrom FlexibleStringSlice `env:"RELAYBOT_CHANNELS_TELEGRAM_ALLOW_FROM" json:"allow_from"`
}

type DiscordConfig struct {
	Enabled     bool                `env:"RELAYBOT_CHANNELS_DISCORD_ENABLED"      json:"enabled"`
	Token       string              `env:"RELAYBOT_CHANNELS_DISCORD_TOKEN"        json:"token"`
	AllowFrom   FlexibleStringSlice `env:"RELAYBOT_CHANNELS_DISCORD_ALLOW_FROM"   json:"allow_from"`
	MentionOnly bool                `env:"RELAYBOT_CHANNELS_DISCORD_MENTION_ONLY" json:"mention_only"`
}

type SlackConfig struct {
	Enabled   bool                `env:"RELAYBOT_CHANNELS_SLACK_ENABLED"    json:"enabled"`
	BotToken  string              `env:"RELAYBOT_CHANNELS_SLACK_BOT_TOKEN"  json:"bot_token"`
	AppToken  string              `env:"RELAYBOT_CHANNELS_SLACK_APP_TOKEN"  json:"app_token"`
	AllowFrom FlexibleStringSlice `env:"RELAYBOT_CHANNELS_SLACK_ALLOW_FROM" json:"allow_from"`
}

type WebchatConfig struct {
	Enabled   bool                `env:"RELAYBOT_CHANNELS_WEBCHAT_ENABLED"    json:"enabled"`
	Host      string              `env:"RELAYBOT_CHANNELS_WEBCHAT_HOST"       json:"host"`
	Port      int                 `env:"RELAYBOT_CHANNELS_WEBCHAT_PORT"       json:"port"`
	AllowFrom FlexibleStringSlice `env:"RELAYBOT_CHANNELS_WEBCHAT_ALLOW_FROM" json:"allow_from"`
}

type SummarizerConfig struct {
	Enabled bool   `env:"RELAYBOT_SUMMARIZER_ENABLED"  json:"enabled"`
	APIKey  string `env:"RELAYBOT_SUMMARIZER_API_KEY"  json:"api_key,omitempty"`
	BaseURL string `env:"RELAYBOT_SUMMARIZER_BASE_URL" json:"base_url,omitempty"`
	Model   string `env:"RELAYBOT_SUMMARIZER_MODEL"    json:"model,omitempty"`
}

type RemindersConfig struct {
	Enabled      bool   `env:"RELAYBOT_REMINDERS_ENABLED"       json:"enabled"`
	Schedule     string `env:"RELAYBOT_REMINDERS_SCHEDULE"      json:"schedule"`
	AfterSeconds int    `env:"RELAYBOT_REMINDERS_AFTER_SECONDS" json:"after_seconds"`
}

type GatewayConfig struct {
	Host string `env:"RELAYBOT_GATEWAY_HOST" json:"host"`
	Port int    `env:"RELAYBOT_GATEWAY_PORT" json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Routing: RoutingConfig{
			AggregationRequired:     true,
			CommandPrefix:           "",
			BroadcastTimeoutSeconds: 10,
			StatePath:               "~/.relaybot/routing.json",
		},
		Channels: ChannelsConfig{
			Webchat: WebchatConfig{
				Host: "0.0.0.0",
				Port: 18812,
			},
		},
		Summarizer: SummarizerConfig{
			Model: "claude-3-5-haiku-latest",
		},
		Reminders: RemindersConfig{
			Schedule:     "*/5 * * * *",
			AfterSeconds: 300,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18800,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
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

// StatePath returns the routing state file path with ~ expanded.
func (c *Config) StatePath() string {
	return expandHome(c.Routing.StatePath)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
