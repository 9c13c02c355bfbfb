package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Queue backend selectors.
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

const (
	configPathEnv     = "STATUSWATCH_CONFIG"
	redisAddrEnv      = "STATUSWATCH_REDIS_ADDR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Sources       map[string]string  `yaml:"sources"`
	Collection    CollectionConfig   `yaml:"collection"`
	Queue         QueueConfig        `yaml:"queue"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CollectionConfig bounds the scheduling loop and the per-source retry loop.
// All durations are milliseconds.
type CollectionConfig struct {
	IntervalMs     int `yaml:"intervalMs"`
	MaxRetries     int `yaml:"maxRetries"`
	RetryDelayMs   int `yaml:"retryDelayMs"`
	FetchTimeoutMs int `yaml:"fetchTimeoutMs"`
}

// Interval is the collection dispatch period.
func (c CollectionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// RetryDelay is the fixed wait between fetch attempts.
func (c CollectionConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// FetchTimeout bounds a single feed fetch.
func (c CollectionConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

// QueueConfig selects and parameterizes the queue backend.
type QueueConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig describes the networked broker connection.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send digests.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Queue.Redis.Addr = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	if override.Collection.IntervalMs > 0 {
		base.Collection.IntervalMs = override.Collection.IntervalMs
	}
	if override.Collection.MaxRetries > 0 {
		base.Collection.MaxRetries = override.Collection.MaxRetries
	}
	if override.Collection.RetryDelayMs > 0 {
		base.Collection.RetryDelayMs = override.Collection.RetryDelayMs
	}
	if override.Collection.FetchTimeoutMs > 0 {
		base.Collection.FetchTimeoutMs = override.Collection.FetchTimeoutMs
	}

	if override.Queue.Backend != "" {
		base.Queue.Backend = override.Queue.Backend
	}
	if override.Queue.Redis.Addr != "" {
		base.Queue.Redis.Addr = override.Queue.Redis.Addr
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Sources: map[string]string{
			"aws":   "https://status.aws.amazon.com/rss/all.rss",
			"azure": "https://azurestatuscdn.azureedge.net/en-us/status/feed/",
			"gcp":   "https://status.cloud.google.com/en/feed.atom",
		},
		Collection: CollectionConfig{
			IntervalMs:     int((15 * time.Minute).Milliseconds()),
			MaxRetries:     3,
			RetryDelayMs:   5000,
			FetchTimeoutMs: 10000,
		},
		Queue: QueueConfig{
			Backend: QueueBackendMemory,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
	}
}
