package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

const defaultJWTSecret = "supersecretkey"

type Config struct {
	Port string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	JWTSecret string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string
	// LogLevel is one of debug, info (default), warn, error.
	LogLevel string

	// CORSAllowedOrigins is a list of origins allowed for CORS (e.g. https://app.example.com, http://localhost:3000).
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent (same-origin only).
	CORSAllowedOrigins []string

	// StoreDriver is "postgres" (default) or "memory". Memory mode keeps everything in process
	// and loads the asset registry from RegistrySeedFile.
	StoreDriver      string
	RegistrySeedFile string

	// AuditCodePrefix is the fixed prefix of generated audit codes (LEV-202610-001).
	AuditCodePrefix string

	// RedisAddr enables the per-audit scan lock when set (host:port).
	RedisAddr      string
	LockTTLSeconds int

	// ScanRatePerSecond and ScanRateBurst bound scan requests per client IP.
	ScanRatePerSecond int
	ScanRateBurst     int

	MaxBodyBytes int
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "assetdb"),
		DBUser: getEnv("DB_USER", "assetuser"),
		DBPass: getEnv("DB_PASS", "assetpass"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
		Env:       getEnv("ENV", "dev"),

		// Optional TLS configuration for HTTPS.
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),

		StoreDriver:      getEnv("STORE_DRIVER", "postgres"),
		RegistrySeedFile: getEnv("REGISTRY_SEED_FILE", ""),

		AuditCodePrefix: getEnv("AUDIT_CODE_PREFIX", "LEV"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		LockTTLSeconds: getEnvInt("LOCK_TTL_SECONDS", 30),

		ScanRatePerSecond: getEnvInt("SCAN_RATE_PER_SECOND", 5),
		ScanRateBurst:     getEnvInt("SCAN_RATE_BURST", 10),

		MaxBodyBytes: getEnvInt("MAX_BODY_BYTES", 1<<20),
	}
}

// Validate rejects configurations that must not reach production.
func (c Config) Validate() error {
	if c.Env == "prod" && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return errors.New("JWT_SECRET must be set to a non-default value when ENV=prod")
	}
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return errors.New("STORE_DRIVER must be postgres or memory")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// DatabaseURL returns the postgres URL form of the connection settings, as golang-migrate expects it.
func (c Config) DatabaseURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPass + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=disable"
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
