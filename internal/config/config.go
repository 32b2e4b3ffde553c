// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Store         StoreConfig
	Storage       StorageConfig
	Ledger        LedgerConfig
	Assembly      AssemblyConfig
	STT           STTConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds identity and listener settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	GRPCPort  string
}

// StoreConfig selects the persistent store for sessions and chunk slots.
type StoreConfig struct {
	Backend       string // memory, dynamodb
	Region        string
	Endpoint      string
	SessionsTable string
	ChunksTable   string
}

// StorageConfig selects the object store holding chunk and artifact bytes.
type StorageConfig struct {
	Backend      string // memory, s3
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	PresignTTL   time.Duration
	SigningKey   string // memory backend only
	BaseURL      string // memory backend only
}

// LedgerConfig controls chunk confirmation behavior.
type LedgerConfig struct {
	VerifyUploads bool
}

// AssemblyConfig bounds a single assembly.
type AssemblyConfig struct {
	MaxArtifactBytes int64
	MaxChunks        int
	Timeout          time.Duration
}

// STTConfig selects and configures the transcription provider.
type STTConfig struct {
	Provider       string // mock, google, whisper
	LanguageCode   string
	SampleRateHz   int
	AudioEncoding  string
	WhisperBaseURL string
	WhisperAPIKey  string
	WhisperModel   string
	RequestTimeout time.Duration
}

// KafkaConfig configures the lifecycle event publisher.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicSessions string
	TopicChunks   string
	Principal     string
}

// ObservabilityConfig configures logging and the metrics listener.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads the configuration from environment variables.
// Values that fail to parse fall back to their defaults.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-speech-upload")

	cfg := &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
		},
		Store: StoreConfig{
			Backend:       envOrDefault("STORE_BACKEND", "memory"),
			Region:        envOrDefault("AWS_REGION", "us-east-1"),
			Endpoint:      os.Getenv("DYNAMODB_ENDPOINT"),
			SessionsTable: envOrDefault("DYNAMODB_SESSIONS_TABLE", "upload_sessions"),
			ChunksTable:   envOrDefault("DYNAMODB_CHUNKS_TABLE", "audio_chunks"),
		},
		Storage: StorageConfig{
			Backend:      envOrDefault("STORAGE_BACKEND", "memory"),
			Bucket:       envOrDefault("STORAGE_BUCKET", "audio-bucket"),
			Region:       envOrDefault("AWS_REGION", "us-east-1"),
			Endpoint:     os.Getenv("S3_ENDPOINT"),
			UsePathStyle: envOrDefaultBool("S3_USE_PATH_STYLE", false),
			PresignTTL:   envOrDefaultDuration("STORAGE_PRESIGN_TTL", 15*time.Minute),
			SigningKey:   envOrDefault("STORAGE_SIGNING_KEY", "change-me"),
			BaseURL:      envOrDefault("STORAGE_BASE_URL", "http://localhost:8080/objects"),
		},
		Ledger: LedgerConfig{
			VerifyUploads: envOrDefaultBool("LEDGER_VERIFY_UPLOADS", true),
		},
		Assembly: AssemblyConfig{
			MaxArtifactBytes: envOrDefaultInt64("ASSEMBLY_MAX_ARTIFACT_BYTES", 100*1024*1024),
			MaxChunks:        envOrDefaultInt("ASSEMBLY_MAX_CHUNKS", 10000),
			Timeout:          envOrDefaultDuration("ASSEMBLY_TIMEOUT", 5*time.Minute),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			WhisperBaseURL: envOrDefault("WHISPER_BASE_URL", "https://api.groq.com/openai/v1"),
			WhisperAPIKey:  os.Getenv("WHISPER_API_KEY"),
			WhisperModel:   envOrDefault("WHISPER_MODEL", "whisper-large-v3"),
			RequestTimeout: envOrDefaultDuration("STT_REQUEST_TIMEOUT", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicSessions: envOrDefault("KAFKA_TOPIC_SESSIONS", "upload.session.lifecycle"),
			TopicChunks:   envOrDefault("KAFKA_TOPIC_CHUNKS", "upload.chunk.confirmed"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
