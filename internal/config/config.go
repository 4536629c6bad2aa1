package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	VerifyToken string
	LogLevel    string

	// Meta app secret; when set, webhook payloads must carry a valid
	// X-Hub-Signature-256.
	AppSecret string

	// Secrets source for the credential store. Used only when all three are set.
	WhatsAppToken             string
	PhoneNumberID             string
	WhatsAppBusinessAccountID string
	CredentialsFile           string

	GraphAPIURL      string
	HTTPTimeout      time.Duration
	SendDelay        time.Duration
	TemplateCacheTTL time.Duration

	DBDriver   string
	DBPath     string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string

	// bcrypt hash of the operator password; empty disables the gate.
	AppPasswordHash string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:                      getEnv("PORT", "8080"),
		VerifyToken:               getEnv("VERIFY_TOKEN", ""),
		AppSecret:                 getEnv("APP_SECRET", ""),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		WhatsAppToken:             getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:             getEnv("PHONE_NUMBER_ID", ""),
		WhatsAppBusinessAccountID: getEnv("WABA_ID", ""),
		CredentialsFile:           getEnv("CREDENTIALS_FILE", "config.txt"),
		GraphAPIURL:               getEnv("GRAPH_API_URL", "https://graph.facebook.com/v18.0"),
		HTTPTimeout:               getDuration("HTTP_TIMEOUT", 30*time.Second),
		SendDelay:                 getDuration("SEND_DELAY", 50*time.Millisecond),
		TemplateCacheTTL:          getDuration("TEMPLATE_CACHE_TTL", time.Hour),
		DBDriver:                  getEnv("DB_DRIVER", "sqlite"),
		DBPath:                    getEnv("DB_PATH", "./whatsapp-sender.db"),
		DBHost:                    getEnv("DB_HOST", "localhost"),
		DBUser:                    getEnv("DB_USER", "postgres"),
		DBPassword:                getEnv("DB_PASSWORD", ""),
		DBName:                    getEnv("DB_NAME", "whatsapp_sender"),
		DBPort:                    getEnv("DB_PORT", "5432"),
		DBSSLMode:                 getEnv("DB_SSLMODE", "disable"),
		RedisAddr:                 getEnv("REDIS_ADDR", ""),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		AppPasswordHash:           getEnv("APP_PASSWORD_HASH", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getDuration parses values like "50ms" or "1h". Bad values fall back with a warning.
func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return d
}
