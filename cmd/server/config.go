package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML application config. Every field has a
// default so the server runs with no config file at all; secrets come
// from the environment, never from the file.
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Auth struct {
		TokenTTLHours int `yaml:"token_ttl_hours"`
	} `yaml:"auth"`
	Match struct {
		QuestionCount   int `yaml:"question_count"`
		StartDifficulty int `yaml:"start_difficulty"`
	} `yaml:"match"`
	Nats struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Outbox struct {
		PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	} `yaml:"outbox"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Auth.TokenTTLHours = 24
	cfg.Match.QuestionCount = 20
	cfg.Match.StartDifficulty = 1
	cfg.Nats.URL = ""
	cfg.Outbox.PollIntervalSeconds = 5
	return &cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Environment variables win over the file.
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.Nats.URL = url
	}

	return cfg, nil
}

func (c *Config) tokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

func (c *Config) outboxPollInterval() time.Duration {
	return time.Duration(c.Outbox.PollIntervalSeconds) * time.Second
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
