// Package config reads the environment of each binary. Configuration is read
// once in main and passed down; nothing below cmd/ touches the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	SessionBackendDynamo = "dynamodb"
	SessionBackendRedis  = "redis"

	ClassifierLex    = "lex"
	ClassifierOpenAI = "openai"

	WorkerModeSQS  = "sqs"
	WorkerModePoll = "poll"
)

type Logging struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// ChatConfig configures the conversational front door.
type ChatConfig struct {
	Logging

	QueueURL          string        `env:"REQUEST_QUEUE_URL,notEmpty"`
	ClassifierBackend string        `env:"CLASSIFIER_BACKEND" envDefault:"lex"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"3s"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH" envDefault:"300"`
	Timezone          string        `env:"TIMEZONE" envDefault:"America/New_York"`

	LexBotID      string `env:"LEX_BOT_ID"`
	LexBotAliasID string `env:"LEX_BOT_ALIAS_ID"`
	LexLocaleID   string `env:"LEX_LOCALE_ID" envDefault:"en_US"`

	ParamPrefix   string        `env:"PARAM_PREFIX"`
	ParamCacheTTL time.Duration `env:"PARAM_CACHE_TTL" envDefault:"5m"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`

	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"dynamodb"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	StateTable     string        `env:"STATE_TABLE"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`

	location *time.Location
}

// WorkerConfig configures the fulfillment worker.
type WorkerConfig struct {
	Logging

	Mode          string `env:"WORKER_MODE" envDefault:"sqs"`
	QueueURL      string `env:"REQUEST_QUEUE_URL,notEmpty"`
	DeadLetterURL string `env:"DEAD_LETTER_QUEUE_URL"`
	CatalogTable  string `env:"CATALOG_TABLE" envDefault:"yelp-restaurants"`

	SenderEmail      string        `env:"SENDER_EMAIL"`
	SenderEmailParam string        `env:"SENDER_EMAIL_PARAM"`
	ParamCacheTTL    time.Duration `env:"PARAM_CACHE_TTL" envDefault:"5m"`
	SESConfigSet     string        `env:"SES_CONFIGURATION_SET"`

	MaxResults   int           `env:"MAX_RESULTS" envDefault:"3"`
	PoolSize     int           `env:"CANDIDATE_POOL_SIZE" envDefault:"50"`
	CacheSize    int           `env:"CATALOG_CACHE_SIZE" envDefault:"1024"`
	BatchSize    int           `env:"POLL_BATCH_SIZE" envDefault:"10"`
	Concurrency  int           `env:"POLL_CONCURRENCY" envDefault:"4"`
	BatchTimeout time.Duration `env:"POLL_BATCH_TIMEOUT" envDefault:"25s"`
	PollWait     time.Duration `env:"POLL_WAIT" envDefault:"1s"`
}

// DevConfig runs both halves in one process behind a local HTTP server.
type DevConfig struct {
	Chat   ChatConfig
	Worker WorkerConfig

	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	PollSchedule    string        `env:"POLL_SCHEDULE" envDefault:"@every 1m"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func LoadChat() (*ChatConfig, error) {
	cfg := &ChatConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadWorker() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDev reads .env files before parsing so local runs need no exports.
func LoadDev() (*DevConfig, error) {
	LoadEnvFiles(".env", "../.env")
	cfg := &DevConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Chat.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Worker.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.PollSchedule) == "" {
		return nil, errors.New("POLL_SCHEDULE must not be empty")
	}
	return cfg, nil
}

func (c *ChatConfig) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc

	switch c.ClassifierBackend {
	case ClassifierLex:
		if strings.TrimSpace(c.LexBotID) == "" || strings.TrimSpace(c.LexBotAliasID) == "" {
			return errors.New("LEX_BOT_ID and LEX_BOT_ALIAS_ID are required when CLASSIFIER_BACKEND is lex")
		}
	case ClassifierOpenAI:
		if strings.TrimSpace(c.ParamPrefix) == "" {
			return errors.New("PARAM_PREFIX is required when CLASSIFIER_BACKEND is openai")
		}
	default:
		return fmt.Errorf("unsupported CLASSIFIER_BACKEND %q", c.ClassifierBackend)
	}

	switch c.SessionBackend {
	case SessionBackendDynamo:
		if strings.TrimSpace(c.StateTable) == "" {
			return errors.New("STATE_TABLE is required when SESSION_BACKEND is dynamodb")
		}
	case SessionBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("REDIS_ADDR is required when SESSION_BACKEND is redis")
		}
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.SessionBackend)
	}
	return nil
}

func (c *WorkerConfig) Validate() error {
	if c.Mode != WorkerModeSQS && c.Mode != WorkerModePoll {
		return fmt.Errorf("unsupported WORKER_MODE %q", c.Mode)
	}
	if strings.TrimSpace(c.SenderEmail) == "" && strings.TrimSpace(c.SenderEmailParam) == "" {
		return errors.New("one of SENDER_EMAIL or SENDER_EMAIL_PARAM is required")
	}
	if c.MaxResults <= 0 {
		return errors.New("MAX_RESULTS must be positive")
	}
	if c.PoolSize < c.MaxResults {
		return errors.New("CANDIDATE_POOL_SIZE must not be smaller than MAX_RESULTS")
	}
	return nil
}

// Location is the zone in which diners' dates are read. It is UTC until
// Validate has run.
func (c *ChatConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Addr returns the HTTP listen address.
func (c *DevConfig) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// LoadEnvFiles overlays the first existing files onto the process
// environment. Missing files are ignored.
func LoadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
