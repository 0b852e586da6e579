package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// minJWTSecretLen is the shortest HS256 key accepted at startup.
const minJWTSecretLen = 32

type Config struct {
	DatabaseURL       string
	StorageBackend    string
	RevocationBackend string
	AutoMigrate       bool

	JWTSecret        string
	JWTIssuer        string
	RefreshTokenSalt string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	PasswordResetTTL time.Duration
	BcryptCost       int
	ResetLinkBaseURL string

	RevocationSweepInterval time.Duration

	ServerPort      string
	ServerHost      string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	RedisURL               string
	RateLimitEnabled       bool
	RateLimitIPAttempts    int
	RateLimitIPWindow      time.Duration
	RateLimitUserAttempts  int
	RateLimitUserWindow    time.Duration
	RateLimitBlockDuration time.Duration

	LogLevel               string
	LogFormat              string
	LogCorrelationIDHeader string
	LogEnableRequestLog    bool

	CORSEnabled          bool
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means the connection address is used.
	TrustedProxies []*net.IPNet
}

var (
	ErrMissingDatabaseURL    = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret      = errors.New("JWT_SECRET is required")
	ErrWeakJWTSecret         = errors.New("JWT_SECRET must be at least 32 bytes")
	ErrMissingRefreshSalt    = errors.New("REFRESH_TOKEN_SALT is required")
	ErrInvalidTokenTTL       = errors.New("invalid token TTL format")
	ErrInvalidStorageBackend = errors.New("STORAGE_BACKEND must be postgres or memory")
	ErrInvalidRevocation     = errors.New("REVOCATION_BACKEND must be postgres, redis or memory")
	ErrMissingRedisURL       = errors.New("REDIS_URL is required when REVOCATION_BACKEND=redis")
	ErrInvalidTrustedProxy   = errors.New("TRUSTED_PROXIES entries must be IP addresses or CIDR ranges")
)

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		StorageBackend:         getEnvOrDefault("STORAGE_BACKEND", BackendPostgres),
		AutoMigrate:            getEnvOrDefaultBool("AUTO_MIGRATE", true),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		JWTIssuer:              getEnvOrDefault("JWT_ISSUER", "expensetrack"),
		RefreshTokenSalt:       os.Getenv("REFRESH_TOKEN_SALT"),
		BcryptCost:             getEnvOrDefaultInt("BCRYPT_COST", 12),
		ResetLinkBaseURL:       getEnvOrDefault("RESET_LINK_BASE_URL", "http://localhost:5173/reset-password"),
		ServerPort:             getEnvOrDefault("SERVER_PORT", "8080"),
		ServerHost:             getEnvOrDefault("SERVER_HOST", "localhost"),
		Environment:            getEnvOrDefault("ENV", "development"),
		ReadTimeout:            getEnvOrDefaultDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:           getEnvOrDefaultDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout:        getEnvOrDefaultDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		RedisURL:               os.Getenv("REDIS_URL"),
		RateLimitEnabled:       getEnvOrDefaultBool("RATE_LIMIT_ENABLED", true),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", "json"),
		LogCorrelationIDHeader: getEnvOrDefault("LOG_CORRELATION_ID_HEADER", "X-Correlation-ID"),
		LogEnableRequestLog:    getEnvOrDefaultBool("LOG_ENABLE_REQUEST_LOG", true),

		RevocationSweepInterval: getEnvOrDefaultDuration("REVOCATION_SWEEP_INTERVAL", 10*time.Minute),

		CORSEnabled:          getEnvOrDefaultBool("CORS_ENABLED", true),
		CORSAllowCredentials: getEnvOrDefaultBool("CORS_ALLOW_CREDENTIALS", true),
		CORSAllowedOrigins:   parseList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "")),
	}

	switch cfg.StorageBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, ErrMissingDatabaseURL
		}
	case BackendMemory:
	default:
		return nil, ErrInvalidStorageBackend
	}

	cfg.RevocationBackend = getEnvOrDefault("REVOCATION_BACKEND", cfg.StorageBackend)
	switch cfg.RevocationBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, ErrMissingDatabaseURL
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, ErrMissingRedisURL
		}
	case BackendMemory:
	default:
		return nil, ErrInvalidRevocation
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return nil, ErrWeakJWTSecret
	}
	if cfg.RefreshTokenSalt == "" {
		return nil, ErrMissingRefreshSalt
	}

	var err error
	if cfg.AccessTokenTTL, err = parseTokenTTL(getEnvOrDefault("JWT_ACCESS_TOKEN_TTL", "900")); err != nil {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.RefreshTokenTTL, err = parseTokenTTL(getEnvOrDefault("JWT_REFRESH_TOKEN_TTL", "2592000")); err != nil {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.PasswordResetTTL, err = parseTokenTTL(getEnvOrDefault("PASSWORD_RESET_TTL", "900")); err != nil {
		return nil, ErrInvalidTokenTTL
	}

	cfg.RateLimitIPAttempts = getEnvOrDefaultInt("RATE_LIMIT_IP_ATTEMPTS", 5)
	cfg.RateLimitUserAttempts = getEnvOrDefaultInt("RATE_LIMIT_USER_ATTEMPTS", 10)
	if cfg.RateLimitIPWindow, err = parseTokenTTL(getEnvOrDefault("RATE_LIMIT_IP_WINDOW", "900")); err != nil {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.RateLimitUserWindow, err = parseTokenTTL(getEnvOrDefault("RATE_LIMIT_USER_WINDOW", "3600")); err != nil {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.RateLimitBlockDuration, err = parseTokenTTL(getEnvOrDefault("RATE_LIMIT_BLOCK_DURATION", "1800")); err != nil {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.TrustedProxies, err = parseTrustedProxies(getEnvOrDefault("TRUSTED_PROXIES", "")); err != nil {
		return nil, err
	}

	// rate limiting needs redis; without it the limiter is disabled
	if cfg.RedisURL == "" {
		cfg.RateLimitEnabled = false
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// parseTokenTTL reads a whole number of seconds. Zero and negative values are rejected.
func parseTokenTTL(value string) (time.Duration, error) {
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, ErrInvalidTokenTTL
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

// parseTrustedProxies reads a comma separated list of IPs and CIDR ranges.
// A bare IP is treated as a single-host range.
func parseTrustedProxies(value string) ([]*net.IPNet, error) {
	entries := parseList(value)
	nets := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTrustedProxy, entry)
		}
		bits := 128
		if v4 := ip.To4(); v4 != nil {
			ip, bits = v4, 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

// getEnvOrDefaultDuration accepts plain seconds or a Go duration string.
func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return d
	}
	return defaultValue
}
