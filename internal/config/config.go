package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pocketai/receipt-service/internal/domain"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxWorkers   int
	LogFormat    string
	LogLevel     string

	// OCR service configuration (Azure Document Intelligence)
	OCREndpoint     string
	OCRKey          string
	OCRAPIVersion   string
	OCRTimeout      time.Duration
	OCRPollInterval time.Duration

	// Categorizer configuration (Azure OpenAI)
	OpenAIEndpoint   string
	OpenAIKey        string
	OpenAIDeployment string
	OpenAITimeout    time.Duration

	// Category set
	Categories       []string
	FallbackCategory string

	// Database configuration
	PostgresURL string

	// Image archive configuration (S3-compatible storage)
	ArchiveEndpoint        string
	ArchiveAccessKeyID     string
	ArchiveAccessKeySecret string
	ArchiveBucket          string
	ArchiveRegion          string
}

// LoadConfig loads the application configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env file. Using environment variables.")
	}

	config := &Config{
		// Server configuration
		Port:         getEnvInt("PORT", 8080),
		ReadTimeout:  time.Duration(getEnvInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvInt("WRITE_TIMEOUT", 120)) * time.Second,
		MaxWorkers:   getEnvInt("MAX_WORKERS", 5),
		LogFormat:    getEnvString("LOG_FORMAT", "json"),
		LogLevel:     getEnvString("LOG_LEVEL", "info"),

		// OCR configuration
		OCREndpoint:     os.Getenv("AZURE_DOCINTEL_ENDPOINT"),
		OCRKey:          os.Getenv("AZURE_DOCINTEL_KEY"),
		OCRAPIVersion:   getEnvString("AZURE_DOCINTEL_API_VERSION", "2023-07-31"),
		OCRTimeout:      time.Duration(getEnvInt("OCR_TIMEOUT", 60)) * time.Second,
		OCRPollInterval: time.Duration(getEnvInt("OCR_POLL_INTERVAL_MS", 1000)) * time.Millisecond,

		// Categorizer configuration
		OpenAIEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		OpenAIKey:        os.Getenv("AZURE_OPENAI_KEY"),
		OpenAIDeployment: getEnvString("AZURE_OPENAI_DEPLOYMENT", "gpt-4o-mini"),
		OpenAITimeout:    time.Duration(getEnvInt("OPENAI_TIMEOUT", 60)) * time.Second,

		// Category set
		Categories:       getEnvStringSlice("CATEGORIES", domain.DefaultCategories),
		FallbackCategory: getEnvString("FALLBACK_CATEGORY", domain.DefaultFallbackCategory),

		// Database configuration
		PostgresURL: os.Getenv("POSTGRES_DB_URL"),

		// Image archive configuration
		ArchiveEndpoint:        os.Getenv("ARCHIVE_S3_ENDPOINT"),
		ArchiveAccessKeyID:     os.Getenv("ARCHIVE_S3_ACCESS_KEY_ID"),
		ArchiveAccessKeySecret: os.Getenv("ARCHIVE_S3_ACCESS_KEY_SECRET"),
		ArchiveBucket:          getEnvString("ARCHIVE_S3_BUCKET", "receipts"),
		ArchiveRegion:          getEnvString("ARCHIVE_S3_REGION", "us-east-1"),
	}

	validateConfig(config)

	return config, nil
}

// validateConfig checks if critical configuration values are set and logs warnings if they're missing
func validateConfig(config *Config) {
	if config.OCRKey == "" || config.OCREndpoint == "" {
		log.Println("Warning: Azure Document Intelligence is not configured. OCR requests will fail.")
	}

	if config.OpenAIKey == "" || config.OpenAIEndpoint == "" {
		log.Println("Warning: Azure OpenAI is not configured. Categorization will fall back to uncategorized output.")
	}

	if config.PostgresURL == "" {
		log.Println("Warning: POSTGRES_DB_URL is not set. Receipts will be kept in memory only.")
	}

	if config.ArchiveEndpoint == "" {
		log.Println("Warning: No image archive endpoint configured. Uploaded images will not be archived.")
	}
}

// getEnvInt gets an integer from an environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// getEnvString gets a string from an environment variable with a default value
func getEnvString(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvStringSlice gets a string slice from a comma-separated environment variable
func getEnvStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}
