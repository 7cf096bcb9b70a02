// Package config loads settings from the environment, optionally seeded
// from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"summarizer-agents/client"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	TransportOllama = "ollama"
	TransportOpenAI = "openai"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	ListenAddr        string        `env:"LISTEN_ADDR"         envDefault:":5000"`
	OllamaHost        string        `env:"OLLAMA_HOST"         envDefault:"localhost"`
	OllamaPort        int           `env:"OLLAMA_PORT"         envDefault:"11434"`
	Transport         string        `env:"TRANSPORT"           envDefault:"ollama"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	ProfilesDir       string        `env:"PROFILES_DIR"`
	HistoryDB         string        `env:"HISTORY_DB"          envDefault:"history.sqlite"`
	HistoryLimit      int           `env:"HISTORY_LIMIT"       envDefault:"10"`
	RequestsPerMinute int           `env:"REQUESTS_PER_MINUTE" envDefault:"60"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"     envDefault:"5m"`
	AgentFailureTTL   time.Duration `env:"AGENT_FAILURE_TTL"   envDefault:"0s"`
	LogLevel          string        `env:"LOG_LEVEL"           envDefault:"info"`
}

// Load reads a .env file from the working directory when one exists and
// then parses the environment. Variables already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env file: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportOllama, TransportOpenAI:
	default:
		errs = append(errs, fmt.Errorf("%w: TRANSPORT must be %q or %q, got %q", ErrInvalid, TransportOllama, TransportOpenAI, c.Transport))
	}
	if c.OllamaPort <= 0 || c.OllamaPort > 65535 {
		errs = append(errs, fmt.Errorf("%w: OLLAMA_PORT out of range: %d", ErrInvalid, c.OllamaPort))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: HISTORY_LIMIT must be positive", ErrInvalid))
	}
	if c.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("%w: REQUESTS_PER_MINUTE must be positive", ErrInvalid))
	}
	if c.RequestTimeout < 0 || c.AgentFailureTTL < 0 {
		errs = append(errs, fmt.Errorf("%w: durations must not be negative", ErrInvalid))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// Endpoint returns the generation service address.
func (c Config) Endpoint() client.Endpoint {
	return client.Endpoint{Host: c.OllamaHost, Port: c.OllamaPort}
}

// Logger builds the process logger at the configured level.
func (c Config) Logger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "summarizer",
	})
	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
