package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validConfig() *Config {
	return &Config{
		StoreDriver:        StoreDriverFile,
		BcryptCost:         10,
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		JWTAdminExpiry:     8 * time.Hour,
		LoginChallengeTTL:  10 * time.Minute,
		LoginRateLimit:     30,
		LoginRateWindow:    time.Minute,
		RevalidateFailures: 5,
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3100, cfg.APIPort)
	assert.Equal(t, StoreDriverFile, cfg.StoreDriver)
	assert.Equal(t, 8*time.Hour, cfg.JWTAdminExpiry)
	assert.Equal(t, 10*time.Minute, cfg.LoginChallengeTTL)
	assert.Equal(t, "site.revalidate", cfg.KafkaRevalidateTopic)
	assert.Equal(t, "data/admin.json", cfg.AdminPath())
	assert.Equal(t, "data/admin.db", cfg.SQLitePath())
	assert.Equal(t, 30, cfg.LoginRateLimit)
	assert.Equal(t, 5, cfg.RevalidateFailures)
	assert.Equal(t, int32(4), cfg.PGMaxConns)
	assert.Equal(t, int32(0), cfg.PGMinConns)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("STORE_STRICT", "true")
	t.Setenv("LOGIN_CHALLENGE_TTL", "90s")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.True(t, cfg.StoreStrict)
	assert.Equal(t, 90*time.Second, cfg.LoginChallengeTTL)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

func TestConfigValidate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("code"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"valid recovery hash", func(c *Config) { c.SuperActionCodeHash = string(hash) }, ""},
		{"sqlite driver", func(c *Config) { c.StoreDriver = StoreDriverSQLite }, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mysql" }, "STORE_DRIVER"},
		{"bcrypt cost too low", func(c *Config) { c.BcryptCost = 1 }, "BCRYPT_COST"},
		{"non-positive challenge ttl", func(c *Config) { c.LoginChallengeTTL = 0 }, "LOGIN_CHALLENGE_TTL"},
		{"rate limit without window", func(c *Config) { c.LoginRateWindow = 0 }, "LOGIN_RATE_WINDOW"},
		{"rate limit disabled", func(c *Config) {
			c.LoginRateLimit = 0
			c.LoginRateWindow = 0
		}, ""},
		{"postgres pool", func(c *Config) {
			c.StoreDriver = StoreDriverPostgres
			c.PGMaxConns = 4
		}, ""},
		{"postgres pool without connections", func(c *Config) { c.StoreDriver = StoreDriverPostgres }, "PG_MAX_CONNS"},
		{"postgres min above max", func(c *Config) {
			c.StoreDriver = StoreDriverPostgres
			c.PGMaxConns = 2
			c.PGMinConns = 3
		}, "PG_MIN_CONNS"},
		{"breaker threshold", func(c *Config) { c.RevalidateFailures = 0 }, "REVALIDATE_BREAKER_FAILURES"},
		{"plain text recovery code", func(c *Config) { c.SuperActionCodeHash = "letmein" }, "SUPER_ACTION_CODE_HASH"},
		{"insecure default secret", func(c *Config) { c.JWTSecret = insecureJWTSecret }, "insecure default"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "too short"},
		{"webhook without secret", func(c *Config) { c.RevalidateURL = "http://site/api/revalidate" }, "REVALIDATE_SECRET"},
		{"insecure allowed in dev", func(c *Config) {
			c.JWTSecret = insecureJWTSecret
			c.AllowInsecureDefaults = true
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN_FromParts(t *testing.T) {
	cfg := &Config{PGUser: "u", PGPassword: "p", PGHost: "h", PGPort: 5432, PGDatabase: "d"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", cfg.DSN())
}

func TestWebhookInvalidator(t *testing.T) {
	var gotSecret string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get(RevalidateSecretHeader)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inv := NewWebhookInvalidator(srv.URL, "s3cret")
	require.NoError(t, inv.Invalidate(context.Background(), domain.NewAdminSettingsChanged("test")))

	assert.Equal(t, "s3cret", gotSecret)
	assert.Equal(t, domain.TagAdminSettings, gotBody["tag"])
	assert.Equal(t, domain.AdminSettingsPath, gotBody["path"])
}

func TestWebhookInvalidator_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewWebhookInvalidator(srv.URL, "wrong").Invalidate(context.Background(), domain.NewAdminSettingsChanged("test"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewInvalidator_Selection(t *testing.T) {
	logger := discard()

	disabled := NewKafkaProducer("localhost:9092", "site.revalidate", false, logger)
	cfg := validConfig()
	assert.IsType(t, &LogInvalidator{}, NewInvalidator(cfg, disabled, logger))

	cfg.RevalidateURL = "http://site/api/revalidate"
	assert.IsType(t, &BreakerInvalidator{}, NewInvalidator(cfg, disabled, logger))

	enabled := NewKafkaProducer("localhost:9092", "site.revalidate", true, logger)
	defer enabled.Close()
	assert.IsType(t, &KafkaInvalidator{}, NewInvalidator(cfg, enabled, logger))
}

type flakyInvalidator struct {
	calls int
	err   error
}

func (f *flakyInvalidator) Invalidate(context.Context, domain.RevalidationEvent) error {
	f.calls++
	return f.err
}

func TestBreakerInvalidator(t *testing.T) {
	ctx := context.Background()
	ev := domain.NewAdminSettingsChanged("test")
	next := &flakyInvalidator{err: errors.New("site down")}
	inv := NewBreakerInvalidator(next, guard.NewCircuitBreaker(2, time.Hour), "site", discard())

	assert.Error(t, inv.Invalidate(ctx, ev))
	assert.Error(t, inv.Invalidate(ctx, ev))
	assert.Equal(t, 2, next.calls)

	err := inv.Invalidate(ctx, ev)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, next.calls, "open circuit skips the call")
}

func TestBreakerInvalidator_SuccessKeepsClosed(t *testing.T) {
	ctx := context.Background()
	next := &flakyInvalidator{}
	inv := NewBreakerInvalidator(next, guard.NewCircuitBreaker(1, time.Hour), "site", discard())

	for i := 0; i < 3; i++ {
		require.NoError(t, inv.Invalidate(ctx, domain.NewAdminSettingsChanged("test")))
	}
	assert.Equal(t, 3, next.calls)
}

func TestKafkaDisabled(t *testing.T) {
	logger := discard()
	p := NewKafkaProducer("", "site.revalidate", true, logger)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Publish(context.Background(), []byte("k"), []byte("v")))
	assert.NoError(t, NewKafkaInvalidator(p).Invalidate(context.Background(), domain.NewAdminSettingsChanged("test")))
	assert.NoError(t, p.Close())

	c := NewKafkaConsumer("", "site.revalidate", "g", true, logger)
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrKafkaDisabled)
	assert.NoError(t, c.Close())
}
