package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT", "LOG_LEVEL", "LOG_FORMAT",
	"STORE_BACKEND", "STORAGE_BACKEND", "STORAGE_BUCKET", "STORAGE_PRESIGN_TTL",
	"LEDGER_VERIFY_UPLOADS",
	"ASSEMBLY_MAX_ARTIFACT_BYTES", "ASSEMBLY_MAX_CHUNKS", "ASSEMBLY_TIMEOUT",
	"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ", "STT_AUDIO_ENCODING",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
}

func clearEnv() {
	for _, v := range configEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-speech-upload" {
		t.Errorf("expected default principal 'svc-speech-upload', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default http port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default grpc port '50051', got %s", cfg.Service.GRPCPort)
	}

	// Backends
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected default store backend 'memory', got %s", cfg.Store.Backend)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected default storage backend 'memory', got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Bucket != "audio-bucket" {
		t.Errorf("expected default bucket 'audio-bucket', got %s", cfg.Storage.Bucket)
	}
	if cfg.Storage.PresignTTL != 15*time.Minute {
		t.Errorf("expected default presign ttl 15m, got %v", cfg.Storage.PresignTTL)
	}
	if !cfg.Ledger.VerifyUploads {
		t.Error("expected upload verification on by default")
	}

	// Assembly limits
	if cfg.Assembly.MaxArtifactBytes != 100*1024*1024 {
		t.Errorf("expected default max artifact bytes 100MB, got %d", cfg.Assembly.MaxArtifactBytes)
	}
	if cfg.Assembly.MaxChunks != 10000 {
		t.Errorf("expected default max chunks 10000, got %d", cfg.Assembly.MaxChunks)
	}
	if cfg.Assembly.Timeout != 5*time.Minute {
		t.Errorf("expected default assembly timeout 5m, got %v", cfg.Assembly.Timeout)
	}

	// STT defaults
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.WhisperModel != "whisper-large-v3" {
		t.Errorf("expected default whisper model 'whisper-large-v3', got %s", cfg.STT.WhisperModel)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no default brokers, got %v", cfg.Kafka.Brokers)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogFormat != "json" {
		t.Errorf("expected default log format 'json', got %s", cfg.Observability.LogFormat)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("STORE_BACKEND", "dynamodb")
	os.Setenv("STORAGE_BACKEND", "s3")
	os.Setenv("STORAGE_PRESIGN_TTL", "2m")
	os.Setenv("LEDGER_VERIFY_UPLOADS", "false")
	os.Setenv("ASSEMBLY_MAX_ARTIFACT_BYTES", "1048576")
	os.Setenv("ASSEMBLY_MAX_CHUNKS", "12")
	os.Setenv("ASSEMBLY_TIMEOUT", "30s")
	os.Setenv("STT_PROVIDER", "google")
	os.Setenv("STT_SAMPLE_RATE_HZ", "8000")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Store.Backend != "dynamodb" {
		t.Errorf("expected store backend 'dynamodb', got %s", cfg.Store.Backend)
	}
	if cfg.Storage.Backend != "s3" {
		t.Errorf("expected storage backend 's3', got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.PresignTTL != 2*time.Minute {
		t.Errorf("expected presign ttl 2m, got %v", cfg.Storage.PresignTTL)
	}
	if cfg.Ledger.VerifyUploads {
		t.Error("expected upload verification disabled")
	}
	if cfg.Assembly.MaxArtifactBytes != 1048576 {
		t.Errorf("expected max artifact bytes 1048576, got %d", cfg.Assembly.MaxArtifactBytes)
	}
	if cfg.Assembly.MaxChunks != 12 {
		t.Errorf("expected max chunks 12, got %d", cfg.Assembly.MaxChunks)
	}
	if cfg.Assembly.Timeout != 30*time.Second {
		t.Errorf("expected assembly timeout 30s, got %v", cfg.Assembly.Timeout)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("LEDGER_VERIFY_UPLOADS", "invalid")
	os.Setenv("ASSEMBLY_MAX_ARTIFACT_BYTES", "invalid")
	os.Setenv("ASSEMBLY_TIMEOUT", "invalid")
	os.Setenv("STORAGE_PRESIGN_TTL", "invalid")
	defer clearEnv()

	cfg := Load()

	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.Ledger.VerifyUploads {
		t.Error("expected default upload verification on invalid input")
	}
	if cfg.Assembly.MaxArtifactBytes != 100*1024*1024 {
		t.Errorf("expected default max artifact bytes on invalid input, got %d", cfg.Assembly.MaxArtifactBytes)
	}
	if cfg.Assembly.Timeout != 5*time.Minute {
		t.Errorf("expected default assembly timeout on invalid input, got %v", cfg.Assembly.Timeout)
	}
	if cfg.Storage.PresignTTL != 15*time.Minute {
		t.Errorf("expected default presign ttl on invalid input, got %v", cfg.Storage.PresignTTL)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected int
	}{
		{"single", "a:9092", 1},
		{"multiple", "a:9092,b:9092,c:9092", 3},
		{"blanks dropped", "a:9092, ,b:9092,", 2},
		{"only separators", ",,", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_LIST_VAR"
			os.Setenv(key, tt.envValue)
			defer os.Unsetenv(key)

			got := envOrDefaultList(key, nil)
			if len(got) != tt.expected {
				t.Errorf("envOrDefaultList(%q) = %v, want %d entries", tt.envValue, got, tt.expected)
			}
		})
	}
}
