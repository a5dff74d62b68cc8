package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Endpoint classes for rate limiting. Each class has its own threshold and
// window since brute-force risk differs per endpoint.
const (
	ClassLogin              = "login"
	ClassRegister           = "register"
	ClassPasswordReset      = "password_reset"
	ClassResendVerification = "resend_verification"
	ClassRefresh            = "refresh"
)

type RateLimitPolicy struct {
	MaxRequests int
	Window      time.Duration
}

type Config struct {
	Port           string
	Environment    string
	FrontendURL    string
	AllowedOrigins []string

	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret         string
	AccessTokenTTL    time.Duration
	AccessTokenLeeway time.Duration

	RefreshTokenTTL    time.Duration
	SessionGracePeriod time.Duration

	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration

	BcryptCost           int
	RequireVerifiedEmail bool

	RateLimits map[string]RateLimitPolicy
}

func LoadConfig() *Config {
	frontendURL := GetEnv("FRONTEND_URL", "http://localhost:5173")

	allowedOrigins := []string{frontendURL}
	if extras := GetEnv("ALLOWED_ORIGINS", ""); extras != "" {
		for _, origin := range strings.Split(extras, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
	}

	return &Config{
		Port:           GetEnv("PORT", "8080"),
		Environment:    GetEnv("ENVIRONMENT", "development"),
		FrontendURL:    frontendURL,
		AllowedOrigins: allowedOrigins,

		DatabaseURL:          GetEnv("DATABASE_URL", ""),
		DBMaxOpenConns:       GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       GetEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetimeMin: GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),

		RedisAddr:     GetEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvAsInt("REDIS_DB", 0),

		JWTSecret:         GetEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		AccessTokenTTL:    GetEnvAsDuration("ACCESS_TOKEN_TTL", 5*time.Minute),
		AccessTokenLeeway: GetEnvAsDuration("ACCESS_TOKEN_LEEWAY", 30*time.Second),

		RefreshTokenTTL:    GetEnvAsDuration("REFRESH_TOKEN_TTL", 24*time.Hour),
		SessionGracePeriod: GetEnvAsDuration("SESSION_GRACE_PERIOD", 24*time.Hour),

		VerifyTokenTTL: GetEnvAsDuration("VERIFY_TOKEN_TTL", 24*time.Hour),
		ResetTokenTTL:  GetEnvAsDuration("RESET_TOKEN_TTL", 2*time.Hour),

		BcryptCost:           GetEnvAsInt("BCRYPT_COST", 12),
		RequireVerifiedEmail: GetEnvAsBool("REQUIRE_VERIFIED_EMAIL", true),

		RateLimits: map[string]RateLimitPolicy{
			ClassLogin: {
				MaxRequests: GetEnvAsInt("RATE_LIMIT_LOGIN_MAX", 5),
				Window:      GetEnvAsDuration("RATE_LIMIT_LOGIN_WINDOW", time.Minute),
			},
			ClassRegister: {
				MaxRequests: GetEnvAsInt("RATE_LIMIT_REGISTER_MAX", 10),
				Window:      GetEnvAsDuration("RATE_LIMIT_REGISTER_WINDOW", time.Hour),
			},
			ClassPasswordReset: {
				MaxRequests: GetEnvAsInt("RATE_LIMIT_PASSWORD_RESET_MAX", 3),
				Window:      GetEnvAsDuration("RATE_LIMIT_PASSWORD_RESET_WINDOW", time.Hour),
			},
			ClassResendVerification: {
				MaxRequests: GetEnvAsInt("RATE_LIMIT_RESEND_VERIFICATION_MAX", 3),
				Window:      GetEnvAsDuration("RATE_LIMIT_RESEND_VERIFICATION_WINDOW", time.Hour),
			},
			ClassRefresh: {
				MaxRequests: GetEnvAsInt("RATE_LIMIT_REFRESH_MAX", 30),
				Window:      GetEnvAsDuration("RATE_LIMIT_REFRESH_WINDOW", time.Minute),
			},
		},
	}
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
