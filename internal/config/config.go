package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Broker   BrokerConfig
	Push     PushConfig
	Orders   OrdersConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path
}

// HTTPConfig contains HTTP server settings.
type HTTPConfig struct {
	Address string // listen address (e.g., ":8080")
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string // JWT signing secret
}

// BrokerConfig contains the optional cross-instance fanout bridge settings.
// The bridge is disabled when URL is empty.
type BrokerConfig struct {
	URL      string // AMQP connection URL
	Exchange string // topic exchange for room events
}

// PushConfig contains Web Push (VAPID) settings. Push delivery is disabled
// when the key pair is empty.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string // contact mailto/URL sent to push services
}

// OrdersConfig contains order-lifecycle tuning knobs.
type OrdersConfig struct {
	DedupeWindow    time.Duration // duplicate-submission absorption window
	NotificationTTL time.Duration // durable notification retention
	SweepInterval   time.Duration // expiry sweep cadence
}

// Load loads configuration from environment variables. JWT_SECRET is
// required; everything else has a sensible default.
func Load() (*Config, error) {
	cfg, err := LoadWithDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in
// development. WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	dedupe, err := getEnvSeconds("DEDUPE_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	ttlDays, err := getEnvInt("NOTIFICATION_TTL_DAYS", 30)
	if err != nil {
		return nil, err
	}
	sweep, err := getEnvSeconds("NOTIFICATION_SWEEP_SECONDS", 3600)
	if err != nil {
		return nil, err
	}
	return &Config{
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "flashbites.db"),
		},
		HTTP: HTTPConfig{
			Address: getEnv("HTTP_ADDRESS", ":8080"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
		},
		Broker: BrokerConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "flashbites.rooms"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			Subscriber:      getEnv("VAPID_SUBSCRIBER", "mailto:ops@flashbites.example"),
		},
		Orders: OrdersConfig{
			DedupeWindow:    dedupe,
			NotificationTTL: time.Duration(ttlDays) * 24 * time.Hour,
			SweepInterval:   sweep,
		},
	}, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvSeconds(key string, defaultVal int) (time.Duration, error) {
	n, err := getEnvInt(key, defaultVal)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	broker := "disabled"
	if c.Broker.URL != "" {
		broker = c.Broker.Exchange
	}
	return fmt.Sprintf("Config{DB: %s, HTTP: %s, Broker: %s, Auth: *** (masked) ***}",
		c.Database.Path, c.HTTP.Address, broker)
}
