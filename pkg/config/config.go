package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	RateLimit RateLimitConfig
	Tenants   TenantsConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	MaxConns    int
	MinConns    int
	MaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type NATSConfig struct {
	URL string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// TenantConfig is one clinic's connection and key material. Keys and
// connection strings come from the environment and stay out of logs.
type TenantConfig struct {
	ID          string
	DisplayName string
	LogoRef     string
	DatabaseURL string
	PGPKey      string
}

type TenantsConfig struct {
	Tenants       []TenantConfig
	DefaultTenant string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			MaxConns:    getInt("DB_MAX_CONNS", 10),
			MinConns:    getInt("DB_MIN_CONNS", 1),
			MaxLifetime: getDuration("DB_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
		RateLimit: RateLimitConfig{
			Requests: getInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Tenants: loadTenants(),
	}
}

// loadTenants reads the tenant set from TENANTS plus per-tenant variables,
// e.g. TENANTS=transfit,pro-imp with TENANT_TRANSFIT_DB_URL,
// TENANT_TRANSFIT_PGP_KEY, TENANT_TRANSFIT_NAME, TENANT_TRANSFIT_LOGO.
// The set is fixed for the lifetime of the process.
func loadTenants() TenantsConfig {
	ids := strings.Split(getEnv("TENANTS", ""), ",")

	var tenants []TenantConfig
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		prefix := "TENANT_" + envKey(id) + "_"
		tenants = append(tenants, TenantConfig{
			ID:          id,
			DisplayName: getEnv(prefix+"NAME", id),
			LogoRef:     getEnv(prefix+"LOGO", ""),
			DatabaseURL: getEnv(prefix+"DB_URL", ""),
			PGPKey:      getEnv(prefix+"PGP_KEY", ""),
		})
	}

	def := getEnv("DEFAULT_TENANT", "")
	if def == "" && len(tenants) > 0 {
		def = tenants[0].ID
	}

	return TenantsConfig{Tenants: tenants, DefaultTenant: def}
}

func envKey(id string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(id))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
