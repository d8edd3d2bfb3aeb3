package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"DATABASE_URL":    "postgres://localhost/test",
		"MQTT_BROKER_URL": "tcp://localhost:1883",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.MQTTClientID != "ta-engine" {
			t.Errorf("MQTTClientID = %q, want ta-engine", cfg.MQTTClientID)
		}
		if cfg.MQTTRequestTopic != "transcripts/request" {
			t.Errorf("MQTTRequestTopic = %q, want transcripts/request", cfg.MQTTRequestTopic)
		}
		if cfg.DefaultLanguage != "en" {
			t.Errorf("DefaultLanguage = %q, want en", cfg.DefaultLanguage)
		}
		if cfg.Workers != 4 {
			t.Errorf("Workers = %d, want 4", cfg.Workers)
		}
		if cfg.QueueSize != 256 {
			t.Errorf("QueueSize = %d, want 256", cfg.QueueSize)
		}
		if cfg.InnertubeRPM != 30 {
			t.Errorf("InnertubeRPM = %d, want 30", cfg.InnertubeRPM)
		}
		if cfg.InnertubeRequireLanguage {
			t.Error("InnertubeRequireLanguage = true, want false")
		}
		if cfg.SpeechModel != "whisper-large-v3" {
			t.Errorf("SpeechModel = %q, want whisper-large-v3", cfg.SpeechModel)
		}
		if cfg.PrimaryTimeout != 15*time.Second {
			t.Errorf("PrimaryTimeout = %v, want 15s", cfg.PrimaryTimeout)
		}
		if cfg.ArchiveDir != "./archive" {
			t.Errorf("ArchiveDir = %q, want ./archive", cfg.ArchiveDir)
		}
		if cfg.S3.Enabled() {
			t.Error("S3.Enabled() = true without S3_BUCKET, want false")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:       "nonexistent.env",
			HTTPAddr:      ":9090",
			LogLevel:      "debug",
			DatabaseURL:   "postgres://override/db",
			MQTTBrokerURL: "tcp://override:1883",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.DatabaseURL != "postgres://override/db" {
			t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
		}
		if cfg.MQTTBrokerURL != "tcp://override:1883" {
			t.Errorf("MQTTBrokerURL = %q, want override", cfg.MQTTBrokerURL)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.DatabaseURL != "postgres://localhost/test" {
			t.Errorf("DatabaseURL = %q, want postgres://localhost/test", cfg.DatabaseURL)
		}
		if cfg.MQTTBrokerURL != "tcp://localhost:1883" {
			t.Errorf("MQTTBrokerURL = %q, want tcp://localhost:1883", cfg.MQTTBrokerURL)
		}
	})
}

func TestLoadOptionalBackends(t *testing.T) {
	// Cache and MQTT are optional: an empty environment must still load.
	cleanup := setEnvs(t, map[string]string{
		"DATABASE_URL":    "",
		"MQTT_BROKER_URL": "",
	})
	defer cleanup()
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("MQTT_BROKER_URL")

	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err != nil {
		t.Fatalf("Load with no backends: %v", err)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.MQTTBrokerURL != "" {
		t.Errorf("MQTTBrokerURL = %q, want empty", cfg.MQTTBrokerURL)
	}
}

func TestS3ConfigEnabled(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"S3_BUCKET":   "transcripts",
		"S3_ENDPOINT": "http://minio:9000",
	})
	defer cleanup()

	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.S3.Enabled() {
		t.Error("S3.Enabled() = false with S3_BUCKET set, want true")
	}
	if cfg.S3.Region != "us-east-1" {
		t.Errorf("S3.Region = %q, want us-east-1", cfg.S3.Region)
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
