package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Empty disables the transcript cache; acquisition still works.
	DatabaseURL string `env:"DATABASE_URL"`

	// Empty disables MQTT ingest.
	MQTTBrokerURL    string `env:"MQTT_BROKER_URL"`
	MQTTClientID     string `env:"MQTT_CLIENT_ID" envDefault:"ta-engine"`
	MQTTRequestTopic string `env:"MQTT_REQUEST_TOPIC" envDefault:"transcripts/request"`
	MQTTResultTopic  string `env:"MQTT_RESULT_TOPIC" envDefault:"transcripts/result"`
	MQTTUsername     string `env:"MQTT_USERNAME"`
	MQTTPassword     string `env:"MQTT_PASSWORD"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AuthToken    string        `env:"AUTH_TOKEN"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`

	// Primary metadata service (highest-confidence transcript source).
	PrimaryBaseURL string        `env:"PRIMARY_BASE_URL"`
	PrimaryAPIKey  string        `env:"PRIMARY_API_KEY"`
	PrimaryTimeout time.Duration `env:"PRIMARY_TIMEOUT" envDefault:"15s"`

	// Innertube scraper tuning.
	InnertubeTimeout         time.Duration `env:"INNERTUBE_TIMEOUT" envDefault:"30s"`
	InnertubeUserAgent       string        `env:"INNERTUBE_USER_AGENT"`
	InnertubeRequireLanguage bool          `env:"INNERTUBE_REQUIRE_LANGUAGE" envDefault:"false"`
	InnertubeRPM             int           `env:"INNERTUBE_RPM" envDefault:"30"`

	// Speech-to-text gateway (paid last resort).
	SpeechGatewayURL string        `env:"SPEECH_GATEWAY_URL"`
	SpeechAPIKey     string        `env:"SPEECH_API_KEY"`
	SpeechModel      string        `env:"SPEECH_MODEL" envDefault:"whisper-large-v3"`
	SpeechTimeout    time.Duration `env:"SPEECH_TIMEOUT" envDefault:"30s"`

	DefaultLanguage string `env:"DEFAULT_LANGUAGE" envDefault:"en"`
	Workers         int    `env:"WORKERS" envDefault:"4"`
	QueueSize       int    `env:"QUEUE_SIZE" envDefault:"256"`

	// Result archive: local directory, optionally S3.
	ArchiveDir string `env:"ARCHIVE_DIR" envDefault:"./archive"`
	S3         S3Config
}

// S3Config configures the optional S3 result archive backend.
type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"S3_BUCKET"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Prefix    string `env:"S3_PREFIX"`
}

// Enabled reports whether the S3 backend is configured.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile       string
	HTTPAddr      string
	LogLevel      string
	DatabaseURL   string
	MQTTBrokerURL string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.MQTTBrokerURL != "" {
		cfg.MQTTBrokerURL = overrides.MQTTBrokerURL
	}

	return cfg, nil
}
