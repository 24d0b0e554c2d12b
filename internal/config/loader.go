package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures configuration values for the coordinator service.
type Config struct {
	HTTPPort          int
	SQLiteDSN         string
	SessionTTL        time.Duration
	SwapTimeout       time.Duration
	ReminderPeriod    time.Duration
	ReminderSecret    string
	VAPIDPublicKey    string
	VAPIDPrivateKey   string
	VAPIDSubscriber   string
	BootstrapEmail    string
	BootstrapPassword string
	BootstrapFullName string
}

// fileConfig mirrors Config for YAML decoding. Durations are plain strings
// in "24h" / "1m" notation and parsed after decoding.
type fileConfig struct {
	HTTPPort          int    `yaml:"http_port"`
	SQLiteDSN         string `yaml:"sqlite_dsn"`
	SessionTTL        string `yaml:"session_ttl"`
	SwapTimeout       string `yaml:"swap_timeout"`
	ReminderPeriod    string `yaml:"reminder_period"`
	ReminderSecret    string `yaml:"reminder_secret"`
	VAPIDPublicKey    string `yaml:"vapid_public_key"`
	VAPIDPrivateKey   string `yaml:"vapid_private_key"`
	VAPIDSubscriber   string `yaml:"vapid_subscriber"`
	BootstrapEmail    string `yaml:"bootstrap_email"`
	BootstrapPassword string `yaml:"bootstrap_password"`
	BootstrapFullName string `yaml:"bootstrap_full_name"`
}

// Load builds the configuration from an optional YAML file named by
// COORDINATOR_CONFIG_FILE, then applies environment variable overrides.
// Environment always wins so deployments can patch a shared file per host.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:       8080,
		SQLiteDSN:      "file:coordinator.db?_foreign_keys=on",
		SessionTTL:     24 * time.Hour,
		SwapTimeout:    0,
		ReminderPeriod: time.Minute,
	}

	if path := strings.TrimSpace(os.Getenv("COORDINATOR_CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("COORDINATOR_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "COORDINATOR_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("COORDINATOR_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("COORDINATOR_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "COORDINATOR_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("COORDINATOR_SWAP_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout < 0 {
			invalid = append(invalid, "COORDINATOR_SWAP_TIMEOUT")
		} else {
			cfg.SwapTimeout = timeout
		}
	}

	if periodValue := strings.TrimSpace(os.Getenv("COORDINATOR_REMINDER_PERIOD")); periodValue != "" {
		period, err := time.ParseDuration(periodValue)
		if err != nil || period <= 0 {
			invalid = append(invalid, "COORDINATOR_REMINDER_PERIOD")
		} else {
			cfg.ReminderPeriod = period
		}
	}

	if secret := strings.TrimSpace(os.Getenv("COORDINATOR_REMINDER_SECRET")); secret != "" {
		cfg.ReminderSecret = secret
	}
	if cfg.ReminderSecret == "" {
		missing = append(missing, "COORDINATOR_REMINDER_SECRET")
	}

	if key := strings.TrimSpace(os.Getenv("COORDINATOR_VAPID_PUBLIC_KEY")); key != "" {
		cfg.VAPIDPublicKey = key
	}
	if key := strings.TrimSpace(os.Getenv("COORDINATOR_VAPID_PRIVATE_KEY")); key != "" {
		cfg.VAPIDPrivateKey = key
	}
	if subscriber := strings.TrimSpace(os.Getenv("COORDINATOR_VAPID_SUBSCRIBER")); subscriber != "" {
		cfg.VAPIDSubscriber = subscriber
	}

	if email := strings.TrimSpace(os.Getenv("COORDINATOR_BOOTSTRAP_EMAIL")); email != "" {
		cfg.BootstrapEmail = email
	}
	if password := os.Getenv("COORDINATOR_BOOTSTRAP_PASSWORD"); password != "" {
		cfg.BootstrapPassword = password
	}
	if name := strings.TrimSpace(os.Getenv("COORDINATOR_BOOTSTRAP_FULL_NAME")); name != "" {
		cfg.BootstrapFullName = name
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if file.HTTPPort > 0 {
		c.HTTPPort = file.HTTPPort
	}
	if file.SQLiteDSN != "" {
		c.SQLiteDSN = file.SQLiteDSN
	}
	if file.SessionTTL != "" {
		ttl, err := time.ParseDuration(file.SessionTTL)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("config file %s: invalid session_ttl %q", path, file.SessionTTL)
		}
		c.SessionTTL = ttl
	}
	if file.SwapTimeout != "" {
		timeout, err := time.ParseDuration(file.SwapTimeout)
		if err != nil || timeout < 0 {
			return fmt.Errorf("config file %s: invalid swap_timeout %q", path, file.SwapTimeout)
		}
		c.SwapTimeout = timeout
	}
	if file.ReminderPeriod != "" {
		period, err := time.ParseDuration(file.ReminderPeriod)
		if err != nil || period <= 0 {
			return fmt.Errorf("config file %s: invalid reminder_period %q", path, file.ReminderPeriod)
		}
		c.ReminderPeriod = period
	}
	if file.ReminderSecret != "" {
		c.ReminderSecret = file.ReminderSecret
	}
	if file.VAPIDPublicKey != "" {
		c.VAPIDPublicKey = file.VAPIDPublicKey
	}
	if file.VAPIDPrivateKey != "" {
		c.VAPIDPrivateKey = file.VAPIDPrivateKey
	}
	if file.VAPIDSubscriber != "" {
		c.VAPIDSubscriber = file.VAPIDSubscriber
	}
	if file.BootstrapEmail != "" {
		c.BootstrapEmail = file.BootstrapEmail
	}
	if file.BootstrapPassword != "" {
		c.BootstrapPassword = file.BootstrapPassword
	}
	if file.BootstrapFullName != "" {
		c.BootstrapFullName = file.BootstrapFullName
	}
	return nil
}

// PushEnabled reports whether a usable VAPID key pair was configured.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}
