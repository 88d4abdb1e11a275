package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string
	CORSOrigins []string

	// DocumentStore selects the backend: "firestore" or "memory".
	DocumentStore           string
	FirebaseProject         string
	FirebaseCredentialsFile string
	FirebaseApiKey          string

	// BlobStore selects attachment storage: "gcs" or "s3".
	BlobStore     string
	StorageBucket string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	PublicBaseURL string

	RedisURL       string
	DedupeTTL      time.Duration
	PolicyFile     string
	OTLPEndpoint   string
	ServiceName    string
	VAPIDPublicKey string
	VAPIDPrivate   string
	VAPIDSubject   string

	TypingIdle       time.Duration
	TypingRefresh    time.Duration
	TypingTTL        time.Duration
	SessionTick      time.Duration
	SentAfter        time.Duration
	DeliveredAfter   time.Duration
	NotificationPage int
	MaxUploadBytes   int64
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),

		DocumentStore:           getEnv("DOCUMENT_STORE", "firestore"),
		FirebaseProject:         getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", "firebase-service-account.json"),
		FirebaseApiKey:          getEnv("FIREBASE_API_KEY", ""),

		BlobStore:     getEnv("BLOB_STORE", "gcs"),
		StorageBucket: getEnv("STORAGE_BUCKET", ""),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Region:      getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		PublicBaseURL: getEnv("BLOB_PUBLIC_BASE_URL", ""),

		RedisURL:       getEnv("REDIS_URL", ""),
		DedupeTTL:      getEnvAsDuration("NOTIFICATION_DEDUPE_TTL", 10*time.Minute),
		PolicyFile:     getEnv("CAPABILITY_POLICY_FILE", ""),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:    getEnv("OTEL_SERVICE_NAME", "shopdesk"),
		VAPIDPublicKey: getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivate:   getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:   getEnv("VAPID_SUBJECT", "mailto:ops@shopdesk.local"),

		TypingIdle:       getEnvAsDuration("TYPING_IDLE", 2*time.Second),
		TypingRefresh:    getEnvAsDuration("TYPING_REFRESH", 1*time.Second),
		TypingTTL:        getEnvAsDuration("TYPING_TTL", 3*time.Second),
		SessionTick:      getEnvAsDuration("SESSION_TICK", 1*time.Second),
		SentAfter:        getEnvAsDuration("SIMULATED_SENT_AFTER", 500*time.Millisecond),
		DeliveredAfter:   getEnvAsDuration("SIMULATED_DELIVERED_AFTER", 1000*time.Millisecond),
		NotificationPage: int(getEnvAsInt64("NOTIFICATION_PAGE_SIZE", 50)),
		MaxUploadBytes:   getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20), // 10MB
	}

	return config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("750ms") or plain milliseconds ("750").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
