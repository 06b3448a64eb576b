// Package config loads process configuration from environment variables so
// main stays lean. A .env file is honored in development via godotenv.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	dErrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// PostgresConfig configures the relational store. Empty DSN means the process
// runs on in-memory stores (development and tests).
type PostgresConfig struct {
	DSN string
}

// RedisConfig configures the session store backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit event stream. Empty brokers disable the
// Kafka mirror.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// S3Config configures document ciphertext storage. When EndpointURL is set
// (LocalStack), it overrides the endpoint and enables path-style addressing.
type S3Config struct {
	Bucket      string
	Region      string
	AccessKeyID string
	SecretKey   string
	EndpointURL string
}

// SNSConfig configures the user notification sink.
type SNSConfig struct {
	Region   string
	TopicARN string
}

// VendorConfig holds one verification vendor's connection settings.
type VendorConfig struct {
	BaseURL       string
	APIToken      string
	SigningSecret string
	WebhookSecret string
}

// ProvidersConfig selects and configures verification vendors.
type ProvidersConfig struct {
	// Default names the adapter used when no routing policy applies.
	Default string
	// DistributeByUser enables per-user hash distribution across adapters.
	DistributeByUser bool
	VendorA          VendorConfig
	VendorB          VendorConfig
}

// SessionConfig bounds verification session lifetime.
type SessionConfig struct {
	Timeout time.Duration
}

// DocumentConfig bounds uploads and retention.
type DocumentConfig struct {
	MaxUploadBytes    int64
	AllowedExtensions []string
	RetentionWindow   time.Duration
	CaptureMaxAge     time.Duration
	CaptureMinBytes   int64
}

// Config is the root configuration object.
type Config struct {
	Server    Server
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	S3        S3Config
	SNS       SNSConfig
	Providers ProvidersConfig
	Session   SessionConfig
	Document  DocumentConfig
	// EncryptionMasterKey seeds purpose-scoped envelope keys. Base64, 32 bytes.
	EncryptionMasterKey string
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr:          getString("KYC_ADDR", ":8080"),
			JWTSigningKey: getString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    getList("KAFKA_BROKERS"),
			AuditTopic: getString("KAFKA_AUDIT_TOPIC", "kyc.audit.events"),
		},
		S3: S3Config{
			Bucket:      getString("S3_DOCUMENT_BUCKET", "kyc-documents"),
			Region:      getString("AWS_REGION", "eu-west-1"),
			AccessKeyID: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
			EndpointURL: os.Getenv("AWS_ENDPOINT_URL"),
		},
		SNS: SNSConfig{
			Region:   getString("SNS_REGION", getString("AWS_REGION", "eu-west-1")),
			TopicARN: os.Getenv("SNS_NOTIFICATION_TOPIC_ARN"),
		},
		Providers: ProvidersConfig{
			Default:          getString("KYC_DEFAULT_PROVIDER", "vendora"),
			DistributeByUser: os.Getenv("KYC_DISTRIBUTE_BY_USER") == "true",
			VendorA: VendorConfig{
				BaseURL:       getString("VENDORA_BASE_URL", "https://api.vendora.example"),
				APIToken:      os.Getenv("VENDORA_API_TOKEN"),
				WebhookSecret: os.Getenv("VENDORA_WEBHOOK_SECRET"),
			},
			VendorB: VendorConfig{
				BaseURL:       getString("VENDORB_BASE_URL", "https://api.vendorb.example"),
				SigningSecret: os.Getenv("VENDORB_SIGNING_SECRET"),
				WebhookSecret: os.Getenv("VENDORB_WEBHOOK_SECRET"),
			},
		},
		Session: SessionConfig{
			Timeout: getDuration("KYC_SESSION_TIMEOUT", 30*time.Minute),
		},
		Document: DocumentConfig{
			MaxUploadBytes:    getInt64("KYC_MAX_UPLOAD_BYTES", 10*1024*1024),
			AllowedExtensions: getListDefault("KYC_ALLOWED_EXTENSIONS", []string{".jpg", ".jpeg", ".png", ".pdf"}),
			RetentionWindow:   getDuration("KYC_DOCUMENT_RETENTION", 30*24*time.Hour),
			CaptureMaxAge:     getDuration("KYC_CAPTURE_MAX_AGE", 5*time.Minute),
			CaptureMinBytes:   getInt64("KYC_CAPTURE_MIN_BYTES", 10*1024),
		},
		EncryptionMasterKey: os.Getenv("KYC_ENCRYPTION_MASTER_KEY"),
	}
}

// ValidateVendor checks that the secrets a configured adapter needs are set.
func (c VendorConfig) ValidateVendor(name string) error {
	if c.BaseURL == "" {
		return dErrors.Newf(dErrors.CodeConfiguration, "%s base URL is not configured", name)
	}
	if c.WebhookSecret == "" {
		return dErrors.Newf(dErrors.CodeConfiguration, "%s webhook secret is not configured", name)
	}
	return nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getListDefault(key string, fallback []string) []string {
	if v := getList(key); v != nil {
		return v
	}
	return fallback
}
