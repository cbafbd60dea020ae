package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                      string `yaml:"port"`
	DatabaseURL               string `yaml:"databaseURL"`
	RedisAddr                 string `yaml:"redisAddr"`
	RedisPassword             string `yaml:"redisPassword"`
	LogLevel                  string `yaml:"logLevel"`
	AnswerKey                 string `yaml:"answerKey"` // base64, 32 bytes decoded
	AMQPURL                   string `yaml:"amqpURL"`
	AMQPExchange              string `yaml:"amqpExchange"`
	PairingTTL                string `yaml:"pairingTTL"`
	RevealRateLimitPerMinute  int    `yaml:"revealRateLimitPerMinute"`
	PairingRateLimitPerMinute int    `yaml:"pairingRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("ANSWER_KEY"); v != "" {
		cfg.AnswerKey = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("AMQP_EXCHANGE"); v != "" {
		cfg.AMQPExchange = v
	}
	if v := os.Getenv("PAIRING_TTL"); v != "" {
		cfg.PairingTTL = v
	}
	if v := os.Getenv("REVEAL_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RevealRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("PAIRING_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PairingRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for pairing requests and scheduler locks")
	}
	if cfg.AnswerKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.AnswerKey)
		if err != nil {
			return fmt.Errorf("config: answerKey must be base64: %w", err)
		}
		if len(key) != 32 {
			return errors.New("config: answerKey must decode to 32 bytes")
		}
	}
	if cfg.RevealRateLimitPerMinute < 0 || cfg.PairingRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

// ParseAnswerKey decodes the optional base64 answer encryption key.
func ParseAnswerKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid answerKey: %w", err)
	}
	return key, nil
}

// ParsePairingTTL parses the optional pairing request TTL duration string.
func ParsePairingTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid pairingTTL duration: %w", err)
	}
	return dur, nil
}
