package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// CacheConfig controls the Redis cache in front of listing and review
// reads. Responses larger than MaxBodyBytes are served but not stored;
// zero means no limit.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

var defaultCache = CacheConfig{
	Enabled:      true,
	TTL:          30 * time.Second,
	Prefix:       "rentals",
	MaxBodyBytes: 1 << 20,
}

// LoadCacheConfig reads CACHE_* from the environment. A malformed value
// is logged and the defaults are used instead.
func LoadCacheConfig() CacheConfig {
	cc, err := CacheFromEnv(os.Getenv)
	if err != nil {
		log.Printf("config: %v; using cache defaults", err)
		return defaultCache
	}
	return cc
}

// CacheFromEnv builds a CacheConfig from getenv:
//
//	CACHE_ENABLED         bool, default true
//	CACHE_TTL             Go duration, default 30s
//	CACHE_PREFIX          key namespace, default "rentals"
//	CACHE_MAX_BODY_BYTES  default 1 MiB
func CacheFromEnv(getenv func(string) string) (CacheConfig, error) {
	e := envReader{getenv: getenv}
	cc := CacheConfig{
		Enabled:      e.boolean("CACHE_ENABLED", defaultCache.Enabled),
		TTL:          e.duration("CACHE_TTL", defaultCache.TTL),
		Prefix:       strings.TrimSuffix(e.def("CACHE_PREFIX", defaultCache.Prefix), ":"),
		MaxBodyBytes: e.intDef("CACHE_MAX_BODY_BYTES", defaultCache.MaxBodyBytes),
	}
	if e.err != nil {
		return CacheConfig{}, e.err
	}
	return cc, nil
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	s := strings.TrimSpace(e.getenv(key))
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		if e.err == nil {
			e.err = fmt.Errorf("invalid duration for %s: %q", key, s)
		}
		return fallback
	}
	return d
}
