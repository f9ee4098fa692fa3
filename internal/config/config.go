// Package config holds the linebridge configuration: a JSON file with
// ${VAR} environment expansion plus a YAML allow-list of trusted user-ID
// prefixes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for linebridge.
type Config struct {
	General GeneralConfig `json:"general"`
	Server  ServerConfig  `json:"server"`
	Discord DiscordConfig `json:"discord"`
	Line    LineConfig    `json:"line"`
	Metrics MetricsConfig `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel      string `json:"logLevel"`
	AllowListPath string `json:"allowListPath"`
}

// ServerConfig configures the webhook HTTP server LINE delivers to.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DiscordConfig configures the Discord side: the bot running /stl and the
// inbound webhook messages are relayed to.
type DiscordConfig struct {
	BotToken               string `json:"botToken"`
	GuildID                string `json:"guildId"`
	AllowedParentChannelID string `json:"allowedParentChannelId"`
	WebhookURL             string `json:"webhookUrl"`
}

// LineConfig configures the LINE Messaging API channel.
type LineConfig struct {
	ChannelAccessToken string `json:"channelAccessToken"`
	TargetGroupID      string `json:"targetGroupId"`
	APIBase            string `json:"apiBase,omitempty"`     // override for tests
	DataAPIBase        string `json:"dataApiBase,omitempty"` // override for tests
	PushTimeoutSeconds int    `json:"pushTimeoutSeconds"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// DefaultConfigDir returns the default config directory (~/.linebridge).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".linebridge"
	}
	return filepath.Join(home, ".linebridge")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.AllowListPath = ExpandPath(cfg.General.AllowListPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values. Secret fields that
// still carry an unexpanded ${VAR} placeholder count as unset.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Line.PushTimeoutSeconds < 1 {
		errs = append(errs, "line.pushTimeoutSeconds must be >= 1")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	required := map[string]string{
		"discord.botToken":               cfg.Discord.BotToken,
		"discord.guildId":                cfg.Discord.GuildID,
		"discord.allowedParentChannelId": cfg.Discord.AllowedParentChannelID,
		"discord.webhookUrl":             cfg.Discord.WebhookURL,
		"line.channelAccessToken":        cfg.Line.ChannelAccessToken,
		"line.targetGroupId":             cfg.Line.TargetGroupID,
	}
	for name, val := range required {
		if val == "" || strings.Contains(val, "${") {
			errs = append(errs, fmt.Sprintf("%s is required (set the environment variable referenced in the config)", name))
		}
	}

	if cfg.Discord.WebhookURL != "" && !strings.Contains(cfg.Discord.WebhookURL, "${") &&
		!strings.HasPrefix(cfg.Discord.WebhookURL, "https://") {
		errs = append(errs, "discord.webhookUrl must be an https URL")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Defaults returns a config pre-wired to the conventional environment
// variables; Load expands them.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:      "info",
			AllowListPath: "~/.linebridge/allowlist.yaml",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Discord: DiscordConfig{
			BotToken:               "${DISCORD_BOT_TOKEN}",
			GuildID:                "${GUILD_ID}",
			AllowedParentChannelID: "${DISCORD_ALLOWED_PARENT_CHANNEL_ID}",
			WebhookURL:             "${DISCORD_WEBHOOK_URL}",
		},
		Line: LineConfig{
			ChannelAccessToken: "${LINE_CHANNEL_ACCESS_TOKEN}",
			TargetGroupID:      "${LINE_TARGET_GROUP_ID}",
			PushTimeoutSeconds: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
