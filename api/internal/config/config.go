package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	HTTP       HTTPConfig       `yaml:"http"`
	Prediction PredictionConfig `yaml:"prediction"`
	Consul     ConsulConfig     `yaml:"consul"`
	NATS       NATSConfig       `yaml:"nats"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	// WebhookURL switches the bot to webhook mode; empty means long polling.
	WebhookURL string `yaml:"webhook_url"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

type PredictionConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	ConsulService string        `yaml:"consul_service"`
}

type ConsulConfig struct {
	Address string `yaml:"address"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() Config {
	return Config{
		HTTP:       HTTPConfig{Port: "8080"},
		Prediction: PredictionConfig{BaseURL: "http://127.0.0.1:8000", Timeout: 30 * time.Second},
		Consul:     ConsulConfig{Address: "localhost:8500"},
		NATS:       NATSConfig{Subject: "agrismart.submissions"},
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path (a missing file is not an error), fills
// unset keys with defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			var fileCfg Config
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return nil, fmt.Errorf("unmarshal config data: %w", err)
			}
			applyDefaultsIfNotSet(&fileCfg, &cfg)
			cfg = fileCfg
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaultsIfNotSet(cfg, def *Config) {
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = def.HTTP.Port
	}
	if cfg.Prediction.BaseURL == "" {
		cfg.Prediction.BaseURL = def.Prediction.BaseURL
	}
	if cfg.Prediction.Timeout == 0 {
		cfg.Prediction.Timeout = def.Prediction.Timeout
	}
	if cfg.Consul.Address == "" {
		cfg.Consul.Address = def.Consul.Address
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = def.NATS.Subject
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func applyEnv(cfg *Config) error {
	cfg.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", cfg.Telegram.Token)
	cfg.Telegram.WebhookURL = getEnv("WEBHOOK_URL", cfg.Telegram.WebhookURL)
	cfg.HTTP.Port = getEnv("PORT", cfg.HTTP.Port)
	cfg.Prediction.BaseURL = getEnv("PREDICTION_BASE_URL", cfg.Prediction.BaseURL)
	cfg.Prediction.ConsulService = getEnv("PREDICTION_CONSUL_SERVICE", cfg.Prediction.ConsulService)
	cfg.Consul.Address = getEnv("CONSUL_ADDRESS", cfg.Consul.Address)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.Subject = getEnv("NATS_SUBJECT", cfg.NATS.Subject)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if v := getEnv("PREDICTION_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PREDICTION_TIMEOUT: %w", err)
		}
		cfg.Prediction.Timeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("missing telegram token: set TELEGRAM_BOT_TOKEN or telegram.token")
	}
	if c.Prediction.Timeout <= 0 {
		return fmt.Errorf("prediction timeout must be positive, got %s", c.Prediction.Timeout)
	}
	if c.Prediction.BaseURL == "" && c.Prediction.ConsulService == "" {
		return errors.New("prediction service address is not configured")
	}
	return nil
}
