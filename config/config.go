package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Backend API
	APIBaseURL string

	// Legacy member portal
	LegacyBaseURL  string
	LegacyUsername string
	LegacyPassword string

	// Payment confirmation
	PaymentBaseURL    string
	PaymentReturnPath string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUUID         string
	ReminderChannel    string

	// Local storage
	StorePath string
	VaultPath string
	VaultKey  string

	// Background loops
	SyncInterval   time.Duration
	NotifyInterval time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	// Missing .env is fine; the environment still wins.
	_ = godotenv.Load()

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Backend API
		APIBaseURL: getEnv("API_BASE_URL", "https://api.example.org"),

		// Legacy portal
		LegacyBaseURL:  getEnv("LEGACY_BASE_URL", ""),
		LegacyUsername: getEnv("LEGACY_USERNAME", ""),
		LegacyPassword: getEnv("LEGACY_PASSWORD", ""),

		// Payment
		PaymentBaseURL:    getEnv("PAYMENT_BASE_URL", ""),
		PaymentReturnPath: getEnv("PAYMENT_RETURN_PATH", "/payment/return"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUUID:         getEnv("PUBNUB_UUID", "memberhub-device"),
		ReminderChannel:    getEnv("REMINDER_CHANNEL", "member-reminders"),

		// Storage
		StorePath: getEnv("STORE_PATH", "memberhub.db"),
		VaultPath: getEnv("VAULT_PATH", "memberhub.vault"),
		VaultKey:  getEnv("VAULT_KEY", ""),

		// Background loops
		SyncInterval:   getEnvAsDuration("SYNC_INTERVAL", "15m"),
		NotifyInterval: getEnvAsDuration("NOTIFY_INTERVAL", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
