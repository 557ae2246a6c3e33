package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Env           string
	ServerAddress string
	PublicBaseURL string

	JWTSecret      string
	JWTAccessTTL   time.Duration
	JWTRefreshTTL  time.Duration
	CookieSecure   bool
	AllowedOrigins []string
	RequestTimeout time.Duration

	DataDir         string
	UploadDir       string
	MaxUploadSizeMB int64

	Mongo    MongoConfig
	Redis    RedisConfig
	GCS      GCSConfig
	Firebase FirebaseConfig
	Avatar   AvatarConfig
	Contact  ContactConfig
	Logging  LoggingConfig
}

type MongoConfig struct {
	URI        string
	Database   string
	ForceTLS12 bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type GCSConfig struct {
	Bucket string
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsJSON string
}

type AvatarConfig struct {
	FetchTimeout time.Duration
	MaxBytes     int64
}

// ContactConfig enables the contact-the-owner form. It is off unless a
// SendGrid key and sender are set.
type ContactConfig struct {
	SendGridAPIKey  string
	FromEmail       string
	RecaptchaSecret string
}

func (c ContactConfig) Enabled() bool {
	return c.SendGridAPIKey != "" && c.FromEmail != ""
}

type LoggingConfig struct {
	Level string
	File  string
}

// Load reads the environment, after applying an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		JWTSecret:      getEnv("JWT_SECRET", defaultJWTSecret),
		JWTAccessTTL:   time.Duration(getEnvInt("JWT_ACCESS_TTL_MINUTES", 15)) * time.Minute,
		JWTRefreshTTL:  time.Duration(getEnvInt("JWT_REFRESH_TTL_HOURS", 168)) * time.Hour,
		CookieSecure:   getEnvBool("COOKIE_SECURE", false),
		AllowedOrigins: parseCommaSeparated(getEnv("ALLOWED_ORIGINS", "*")),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,

		DataDir:         getEnv("DATA_DIR", "./data"),
		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadSizeMB: int64(getEnvInt("MAX_UPLOAD_SIZE_MB", 10)),

		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", ""),
			Database:   getEnv("MONGO_DB", "idcard"),
			ForceTLS12: getEnvBool("MONGO_FORCE_TLS12", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("CARD_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		GCS: GCSConfig{
			Bucket: getEnv("GCS_BUCKET", ""),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		},
		Avatar: AvatarConfig{
			FetchTimeout: time.Duration(getEnvInt("AVATAR_FETCH_TIMEOUT_SECONDS", 5)) * time.Second,
			MaxBytes:     int64(getEnvInt("AVATAR_MAX_BYTES", 1<<20)),
		},
		Contact: ContactConfig{
			SendGridAPIKey:  strings.TrimSpace(getEnv("SENDGRID_API_KEY", "")),
			FromEmail:       strings.TrimSpace(getEnv("CONTACT_FROM_EMAIL", "")),
			RecaptchaSecret: strings.TrimSpace(getEnv("RECAPTCHA_SECRET", "")),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Env == "production" && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT token lifetimes must be positive")
	}
	if c.JWTRefreshTTL <= c.JWTAccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL_HOURS must outlive JWT_ACCESS_TTL_MINUTES")
	}
	if !strings.HasPrefix(c.PublicBaseURL, "http://") && !strings.HasPrefix(c.PublicBaseURL, "https://") {
		return fmt.Errorf("PUBLIC_BASE_URL must be an http(s) URL")
	}
	if c.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.Avatar.MaxBytes <= 0 {
		return fmt.Errorf("AVATAR_MAX_BYTES must be positive")
	}
	if c.Firebase.CredentialsJSON != "" && c.Firebase.ProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required with FIREBASE_CREDENTIALS_JSON")
	}
	if c.Env == "production" && c.Contact.Enabled() && c.Contact.RecaptchaSecret == "" {
		return fmt.Errorf("RECAPTCHA_SECRET must be set in production when the contact form is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
