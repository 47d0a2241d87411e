package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	filterDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/filter/domain"
	messageDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	monitorDomain "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/monitor/domain"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

type Config struct {
	AppEnv      AppEnv             `koanf:"app_env"`
	HTTPPort    string             `koanf:"http_port"`
	StoragePath string             `koanf:"storage_path"`
	LogLevel    string             `koanf:"log_level"`
	Source      SourceKind         `koanf:"source"`
	MonitorMode monitorDomain.Mode `koanf:"monitor_mode"`

	TelegramBotToken    string `koanf:"telegram_bot_token"`
	TelegramAPIID       int    `koanf:"telegram_api_id"`
	TelegramAPIHash     string `koanf:"telegram_api_hash"`
	TelegramPhone       string `koanf:"telegram_phone"`
	TelegramPassword    string `koanf:"telegram_password"`
	TelegramSessionPath string `koanf:"telegram_session_path"`

	TargetChats      []string `koanf:"-"`
	Keywords         []string `koanf:"-"`
	ExcludeKeywords  []string `koanf:"-"`
	MinMessageLength int      `koanf:"min_message_length"`
	TargetChatID     string   `koanf:"target_chat_id"`

	DelayedMessagesEnabled bool   `koanf:"delayed_messages_enabled"`
	DelayedMessageDelay    int    `koanf:"delayed_message_delay"`
	DelayedMessageText     string `koanf:"delayed_message_text"`
	LogChatID              string `koanf:"log_chat_id"`
	DelayedRetryDelay      int    `koanf:"delayed_retry_delay"`
	DelayedMaxAttempts     int    `koanf:"delayed_max_attempts"`

	PollInterval     int `koanf:"poll_interval"`
	PollHistoryLimit int `koanf:"poll_history_limit"`
	PollChannelDelay int `koanf:"poll_channel_delay"`
	ReadyTimeout     int `koanf:"ready_timeout"`
	SendTimeout      int `koanf:"send_timeout"`

	Timezone     string  `koanf:"timezone"`
	AllowedUsers []int64 `koanf:"-"`
}

var defaults = map[string]any{
	"app_env":               "production",
	"http_port":             "8080",
	"storage_path":          "./data",
	"log_level":             "info",
	"source":                "bot",
	"monitor_mode":          "push",
	"telegram_session_path": "./data/session.json",
	"delayed_message_delay": 30,
	"delayed_retry_delay":   5,
	"delayed_max_attempts":  3,
	"poll_interval":         30,
	"poll_history_limit":    10,
	"poll_channel_delay":    1000,
	"ready_timeout":         60,
	"send_timeout":          30,
	"timezone":              "UTC",
}

func Load() (*Config, error) {
	k := koanf.New(".")

	configFiles := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"config.toml",
	}

	configFile, found := lo.Find(configFiles, func(file string) bool {
		_, err := os.Stat(file)
		return err == nil
	})

	if found {
		var parser koanf.Parser
		ext := filepath.Ext(configFile)

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, oops.Errorf("unsupported config file extension: %s", ext)
		}

		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, oops.With("config_file", configFile).Wrap(err)
		}
	}

	// Environment variables override config file values
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, oops.With("context", "loading environment variables").Wrap(err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("context", "unmarshaling config").Wrap(err)
	}

	cfg.TargetChats = ParseList(k.Get("target_chats"), messageDomain.NormalizeID)
	cfg.Keywords = ParseList(k.Get("keywords"), keywordString)
	cfg.ExcludeKeywords = ParseList(k.Get("exclude_keywords"), keywordString)
	cfg.TargetChatID = messageDomain.NormalizeID(k.Get("target_chat_id"))
	cfg.LogChatID = messageDomain.NormalizeID(k.Get("log_chat_id"))

	if allowedUsers := k.Get("allowed_users"); allowedUsers != nil {
		switch v := allowedUsers.(type) {
		case string:
			cfg.AllowedUsers = ParseAllowedUsers(v)
		case []interface{}:
			cfg.AllowedUsers = lo.FilterMap(v, func(item interface{}, _ int) (int64, bool) {
				switch val := item.(type) {
				case int64:
					return val, true
				case int:
					return int64(val), true
				case float64:
					return int64(val), true
				case string:
					ids := ParseAllowedUsers(val)
					return lo.FirstOr(ids, 0), len(ids) == 1
				default:
					return 0, false
				}
			})
		}
	}

	if appEnv, err := ParseAppEnv(k.String("app_env")); err == nil {
		cfg.AppEnv = appEnv
	} else {
		cfg.AppEnv = AppEnvProduction
	}

	source, err := ParseSourceKind(k.String("source"))
	if err != nil {
		return nil, oops.With("source", k.String("source")).Wrapf(errors.ErrConfiguration, "%v", err)
	}
	cfg.Source = source

	mode, err := monitorDomain.ParseMode(k.String("monitor_mode"))
	if err != nil {
		return nil, oops.With("monitor_mode", k.String("monitor_mode")).Wrapf(errors.ErrConfiguration, "%v", err)
	}
	cfg.MonitorMode = mode

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field requirements. The keyword policy is
// validated as part of it.
func (c *Config) Validate() error {
	errorBuilder := oops.In("config")

	switch c.Source {
	case SourceKindBot:
		if c.TelegramBotToken == "" {
			return errors.ErrMissingBotToken
		}
		if c.MonitorMode == monitorDomain.ModePoll {
			return errorBuilder.With("source", c.Source, "monitor_mode", c.MonitorMode).
				Wrapf(errors.ErrConfiguration, "poll mode needs message history, which the bot source cannot fetch: %v", errors.ErrFetchUnsupported)
		}
	case SourceKindMtproto:
		if c.TelegramAPIID == 0 || c.TelegramAPIHash == "" || c.TelegramPhone == "" {
			return errorBuilder.Wrapf(errors.ErrConfiguration, "telegram_api_id, telegram_api_hash and telegram_phone are required for the mtproto source")
		}
	default:
		return errorBuilder.With("source", c.Source).Wrapf(errors.ErrConfiguration, "unknown source")
	}

	positive := map[string]int{
		"poll_interval":        c.PollInterval,
		"poll_history_limit":   c.PollHistoryLimit,
		"ready_timeout":        c.ReadyTimeout,
		"send_timeout":         c.SendTimeout,
		"delayed_retry_delay":  c.DelayedRetryDelay,
		"delayed_max_attempts": c.DelayedMaxAttempts,
	}
	for key, value := range positive {
		if value <= 0 {
			return errorBuilder.With(key, value).Wrapf(errors.ErrConfiguration, "%s must be positive", key)
		}
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if _, err := c.Policy(); err != nil {
		return err
	}

	return nil
}

// Policy builds the immutable keyword policy for this run
func (c *Config) Policy() (filterDomain.Policy, error) {
	return filterDomain.NewPolicy(filterDomain.Policy{
		TargetChats:      c.TargetChats,
		Keywords:         c.Keywords,
		ExcludeKeywords:  c.ExcludeKeywords,
		MinMessageLength: c.MinMessageLength,
		TargetChatID:     c.TargetChatID,
		DelayedReplies: filterDomain.DelayedReplies{
			Enabled:      c.DelayedMessagesEnabled,
			DelayMinutes: c.DelayedMessageDelay,
			Text:         c.DelayedMessageText,
			LogChatID:    c.LogChatID,
		},
	})
}

// Location returns the time zone used when rendering timestamps
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, oops.With("timezone", c.Timezone).Wrapf(errors.ErrConfiguration, "%v", err)
	}
	return loc, nil
}

func (c *Config) PollEvery() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

func (c *Config) ChannelPause() time.Duration {
	return time.Duration(c.PollChannelDelay) * time.Millisecond
}

func (c *Config) ReadyWait() time.Duration {
	return time.Duration(c.ReadyTimeout) * time.Second
}

func (c *Config) SendWait() time.Duration {
	return time.Duration(c.SendTimeout) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.DelayedRetryDelay) * time.Minute
}

// ParseList reads a list setting given either as a comma-separated string
// or as an array, converting each element with conv and dropping empties
func ParseList(v any, conv func(any) string) []string {
	var items []any
	switch val := v.(type) {
	case nil:
		return []string{}
	case string:
		items = lo.Map(strings.Split(val, ","), func(s string, _ int) any { return s })
	case []interface{}:
		items = val
	case []string:
		items = lo.Map(val, func(s string, _ int) any { return s })
	default:
		items = []any{val}
	}

	list := lo.FilterMap(items, func(item any, _ int) (string, bool) {
		s := conv(item)
		return s, s != ""
	})
	return lo.Uniq(list)
}

// ParseAllowedUsers parses comma-separated user IDs string into []int64
func ParseAllowedUsers(s string) []int64 {
	if s == "" {
		return []int64{}
	}
	parts := strings.Split(s, ",")
	return lo.FilterMap(parts, func(part string, _ int) (int64, bool) {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, false
		}
		var id int64
		if _, err := fmt.Sscanf(part, "%d", &id); err == nil {
			return id, true
		}
		return 0, false
	})
}

func keywordString(v any) string {
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}
