package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	DatabaseURL         string
	JWTSecret           string
	JWTAccessExpiry     time.Duration
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleProjectID     string
	GoogleCredentials   string
	GooglePubSubTopic   string
	FirebaseCredentials string

	// AI analysis gateway
	AIProvider    string
	GeminiAPIKey  string
	OllamaBaseURL string
	OllamaModel   string

	// Credential sealing key (base64, 32 bytes) for IMAP passwords at rest
	CredentialsKey string

	// Ingestion pipeline knobs
	PollInterval        time.Duration // hybrid fallback interval
	MaxMessagesPerPoll  int           // batch cap per user per provider per pass
	MessageDelay        time.Duration // pacing between analysis calls in a batch
	RenewalBuffer       time.Duration // renew subscriptions expiring within this window
	RenewalInterval     time.Duration // how often the renewal scan runs
	IdleTimeout         time.Duration // IMAP IDLE re-issue ceiling (protocol bound, ~29m)
	ImportanceThreshold int           // analyses at or above this create a note
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", "host=localhost user=postgres dbname=zenith port=5432 sslmode=disable"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:     getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GoogleCredentials:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GooglePubSubTopic:   getEnv("GMAIL_PUBSUB_TOPIC", "gmail-updates"),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),

		CredentialsKey: getEnv("CREDENTIALS_KEY", ""),

		PollInterval:        getDuration("EMAIL_POLL_INTERVAL", 30*time.Minute),
		MaxMessagesPerPoll:  getInt("EMAIL_MAX_PER_POLL", 1),
		MessageDelay:        getDuration("EMAIL_MESSAGE_DELAY", 15*time.Second),
		RenewalBuffer:       getDuration("WEBHOOK_RENEWAL_BUFFER", 24*time.Hour),
		RenewalInterval:     getDuration("WEBHOOK_RENEWAL_INTERVAL", time.Hour),
		IdleTimeout:         getDuration("IMAP_IDLE_TIMEOUT", 29*time.Minute),
		ImportanceThreshold: getInt("EMAIL_IMPORTANCE_THRESHOLD", 7),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
