// Package config loads the bot configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/miou/go/internal/dbconfig"
)

type Config struct {
	TMars  TMarsConfig  `yaml:"tmars"`
	Alerts AlertsConfig `yaml:"alerts"`
	Store  StoreConfig  `yaml:"store"`
	Notify NotifyConfig `yaml:"notify"`
	NATS   NATSConfig   `yaml:"nats"`
	HTTP   HTTPConfig   `yaml:"http"`
	Log    LogConfig    `yaml:"log"`

	// Database is read from DB_* variables only.
	Database dbconfig.Config `yaml:"-" validate:"-"`
}

type TMarsConfig struct {
	URL              string `yaml:"url" validate:"required,url"`
	ServerID         string `yaml:"server_id" validate:"required"`
	PollingInterval  int    `yaml:"polling_interval" validate:"min=10,max=86400"`
	RequestTimeout   int    `yaml:"request_timeout" validate:"min=1,ltefield=PollingInterval"`
	HardStopCooldown int    `yaml:"hard_stop_cooldown" validate:"min=1,max=86400"`
}

type AlertsConfig struct {
	MinDelay         int `yaml:"min_delay" validate:"min=1"`
	MaxDelay         int `yaml:"max_delay" validate:"gtefield=MinDelay,max=10080"`
	PruneAfterMisses int `yaml:"prune_after_misses" validate:"min=1,max=1000"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=file postgres"`
	Path   string `yaml:"path" validate:"required_if=Driver file"`
}

type NotifyConfig struct {
	SendTimeout int    `yaml:"send_timeout" validate:"min=1,max=300"`
	Workers     int    `yaml:"workers" validate:"min=1,max=64"`
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
}

type NATSConfig struct {
	URL            string `yaml:"url"`
	NotifySubject  string `yaml:"notify_subject" validate:"required_with=URL"`
	CommandSubject string `yaml:"command_subject" validate:"required_with=URL"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used for every key the file and the
// environment leave unset.
func Default() Config {
	return Config{
		TMars: TMarsConfig{
			PollingInterval:  120,
			RequestTimeout:   30,
			HardStopCooldown: 120,
		},
		Alerts: AlertsConfig{
			MinDelay:         1,
			MaxDelay:         10080,
			PruneAfterMisses: 3,
		},
		Store: StoreConfig{
			Driver: "file",
			Path:   "./data/alerts.json",
		},
		Notify: NotifyConfig{
			SendTimeout: 10,
			Workers:     4,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			NotifySubject:  "miou.notifications",
			CommandSubject: "miou.commands",
		},
		HTTP: HTTPConfig{Addr: ":8082"},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	if cfg.Notify.BaseURL == "" {
		cfg.Notify.BaseURL = cfg.TMars.URL
	}
	cfg.Database = dbconfig.NewConfigFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.TMars.URL = getEnv("TMARS_URL", cfg.TMars.URL)
	cfg.TMars.ServerID = getEnv("TMARS_SERVER_ID", cfg.TMars.ServerID)
	cfg.TMars.PollingInterval = getEnvAsInt("TMARS_POLLING_INTERVAL", cfg.TMars.PollingInterval)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.Path = getEnv("STORE_PATH", cfg.Store.Path)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every key against its bounds.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	// Namespace is "Config.tmars.polling_interval"; drop the root type.
	key := fe.Namespace()
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}

	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return key + " is required"
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", key, fe.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s, got %v", key, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", key, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", key, strings.ToLower(fe.Param()))
	case "gtefield":
		return fmt.Sprintf("%s must not be lower than %s", key, strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}

func (c TMarsConfig) Interval() time.Duration { return time.Duration(c.PollingInterval) * time.Second }

func (c TMarsConfig) Timeout() time.Duration { return time.Duration(c.RequestTimeout) * time.Second }

func (c TMarsConfig) Cooldown() time.Duration { return time.Duration(c.HardStopCooldown) * time.Second }

func (c AlertsConfig) MinDelayDuration() time.Duration { return time.Duration(c.MinDelay) * time.Minute }

func (c AlertsConfig) MaxDelayDuration() time.Duration { return time.Duration(c.MaxDelay) * time.Minute }

func (c NotifyConfig) Timeout() time.Duration { return time.Duration(c.SendTimeout) * time.Second }

// ZerologLevel maps the configured level.
func (c LogConfig) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
