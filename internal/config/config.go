// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable.
type Config struct {
	Env            string // APP_ENV (e.g. "dev", "prod")
	Port           string // APP_PORT
	DBUser         string // DB_USER
	DBPass         string // DB_PASS, empty allowed
	DBHost         string // DB_HOST
	DBPort         string // DB_PORT
	DBName         string // DB_NAME
	DBMigrate      bool   // DB_MIGRATE, apply migrations on start
	JWTSecret      string // JWT_SECRET
	AccessTTLMin   int    // ACCESS_TOKEN_TTL_MIN
	RefreshTTLDays int    // REFRESH_TOKEN_TTL_DAYS
	BcryptCost     int    // BCRYPT_COST
	CookieSecure   bool   // COOKIE_SECURE
	AMQPURL        string // RABBITMQ_URL or AMQP_URL, empty disables events
	BookingLogPath string // BOOKING_LOG_PATH
	TokenPurgeSpec string // TOKEN_PURGE_SPEC, cron expression
}

// Load reads .env (when present) and the environment. Missing or
// malformed required variables are fatal.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// FromEnv builds a Config from getenv. It reports the first missing or
// malformed variable.
func FromEnv(getenv func(string) string) (Config, error) {
	e := envReader{getenv: getenv}
	cfg := Config{
		Env:            e.def("APP_ENV", "dev"),
		Port:           e.def("APP_PORT", "8080"),
		DBUser:         e.must("DB_USER"),
		DBPass:         getenv("DB_PASS"),
		DBHost:         e.must("DB_HOST"),
		DBPort:         e.def("DB_PORT", "3306"),
		DBName:         e.must("DB_NAME"),
		DBMigrate:      e.boolean("DB_MIGRATE", true),
		JWTSecret:      e.must("JWT_SECRET"),
		AccessTTLMin:   e.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: e.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     e.intDef("BCRYPT_COST", 12),
		CookieSecure:   e.boolean("COOKIE_SECURE", false),
		AMQPURL:        firstNonEmpty(getenv("RABBITMQ_URL"), getenv("AMQP_URL")),
		BookingLogPath: e.def("BOOKING_LOG_PATH", "logs/booking.log"),
		TokenPurgeSpec: e.def("TOKEN_PURGE_SPEC", "@every 1h"),
	}
	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, nil
}

// envReader records the first error so FromEnv can read every key in
// one expression.
type envReader struct {
	getenv func(string) string
	err    error
}

// must retrieves a required variable.
func (e *envReader) must(key string) string {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" && e.err == nil {
		e.err = fmt.Errorf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must but converts the value into an int.
func (e *envReader) mustInt(key string) int {
	s := e.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid int for %s: %q", key, s)
	}
	return n
}

func (e *envReader) def(key, fallback string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e *envReader) intDef(key string, fallback int) int {
	s := strings.TrimSpace(e.getenv(key))
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid int for %s: %q", key, s)
	}
	return n
}

func (e *envReader) boolean(key string, fallback bool) bool {
	s := strings.TrimSpace(e.getenv(key))
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid bool for %s: %q", key, s)
	}
	return b
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
