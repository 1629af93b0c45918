package infra

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/attaboy/siteadmin/internal/secret"
	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

const insecureJWTSecret = "change-me-in-production"

// Store drivers.
const (
	StoreDriverFile     = "file"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Admin record storage
	DataDir     string `env:"DATA_DIR" envDefault:"data"`
	AdminFile   string `env:"ADMIN_FILE" envDefault:"admin.json"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"file"`
	StoreStrict bool   `env:"STORE_STRICT" envDefault:"false"`
	SQLiteFile  string `env:"SQLITE_FILE" envDefault:"admin.db"`

	// Database
	DatabaseURL   string `env:"DATABASE_URL"`
	PGHost        string `env:"PGHOST" envDefault:"localhost"`
	PGPort        int    `env:"PGPORT" envDefault:"5435"`
	PGUser        string `env:"PGUSER" envDefault:"siteadmin"`
	PGPassword    string `env:"PGPASSWORD" envDefault:"siteadmin"`
	PGDatabase    string `env:"PGDATABASE" envDefault:"siteadmin"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	PGMaxConns    int32  `env:"PG_MAX_CONNS" envDefault:"4"`
	PGMinConns    int32  `env:"PG_MIN_CONNS" envDefault:"0"`

	// Sessions and secrets
	JWTSecret           string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAdminExpiry      time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`
	LoginChallengeTTL   time.Duration `env:"LOGIN_CHALLENGE_TTL" envDefault:"10m"`
	SuperActionCodeHash string        `env:"SUPER_ACTION_CODE_HASH"`
	BcryptCost          int           `env:"BCRYPT_COST" envDefault:"10"`

	// Login throttling per client IP; 0 disables it
	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT" envDefault:"30"`
	LoginRateWindow time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m"`

	// Kafka
	KafkaBrokers         string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled         bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaRevalidateTopic string `env:"KAFKA_REVALIDATE_TOPIC" envDefault:"site.revalidate"`
	KafkaConsumerGroup   string `env:"KAFKA_CONSUMER_GROUP" envDefault:"siteadmin-revalidate"`

	// Site revalidation webhook
	RevalidateURL          string        `env:"REVALIDATE_URL"`
	RevalidateSecret       string        `env:"REVALIDATE_SECRET"`
	RevalidateFailures     int           `env:"REVALIDATE_BREAKER_FAILURES" envDefault:"5"`
	RevalidateBreakerReset time.Duration `env:"REVALIDATE_BREAKER_RESET" envDefault:"30s"`

	// HTTP edge. X-Forwarded-For is honored only from TRUSTED_PROXIES (IPs or CIDRs).
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	TrustedProxies     string `env:"TRUSTED_PROXIES"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects malformed settings, and insecure ones that must not run in
// production. Set ALLOW_INSECURE_DEFAULTS=true to bypass the latter (local dev only).
func (c *Config) Validate() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if c.JWTAdminExpiry <= 0 {
		return fmt.Errorf("JWT_ADMIN_EXPIRY must be positive")
	}
	if c.LoginChallengeTTL <= 0 {
		return fmt.Errorf("LOGIN_CHALLENGE_TTL must be positive")
	}
	if c.LoginRateLimit > 0 && c.LoginRateWindow <= 0 {
		return fmt.Errorf("LOGIN_RATE_WINDOW must be positive when LOGIN_RATE_LIMIT is set")
	}
	if c.RevalidateFailures < 1 {
		return fmt.Errorf("REVALIDATE_BREAKER_FAILURES must be at least 1")
	}

	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == insecureJWTSecret {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.RevalidateURL != "" && c.RevalidateSecret == "" {
		return fmt.Errorf("REVALIDATE_SECRET is required when REVALIDATE_URL is set")
	}
	return nil
}

// ValidateStorage checks only what is needed to read and change the admin
// record, which is all adminctl uses.
func (c *Config) ValidateStorage() error {
	switch c.StoreDriver {
	case StoreDriverFile, StoreDriverSQLite, StoreDriverPostgres:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q", StoreDriverFile, StoreDriverSQLite, StoreDriverPostgres, c.StoreDriver)
	}
	if c.StoreDriver == StoreDriverPostgres && (c.PGMaxConns < 1 || c.PGMinConns < 0 || c.PGMinConns > c.PGMaxConns) {
		return fmt.Errorf("PG_MAX_CONNS must be at least 1 and PG_MIN_CONNS between 0 and PG_MAX_CONNS")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.SuperActionCodeHash != "" && !secret.IsHash(c.SuperActionCodeHash) {
		return fmt.Errorf("SUPER_ACTION_CODE_HASH is not a bcrypt hash; generate one with adminctl hash-secret")
	}
	return nil
}

// AdminPath returns the admin collection file.
func (c *Config) AdminPath() string {
	return filepath.Join(c.DataDir, c.AdminFile)
}

// SQLitePath returns the admin database file for the sqlite driver.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, c.SQLiteFile)
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
