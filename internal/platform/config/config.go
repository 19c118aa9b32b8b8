package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	pstrings "regflow/pkg/platform/strings"
)

// State backends for the per-session workflow snapshot.
const (
	StateBackendMemory = "memory"
	StateBackendRedis  = "redis"
	StateBackendSQLite = "sqlite"
)

// Config is the service configuration, read from the environment.
type Config struct {
	Server    Server
	Log       Log
	Postgres  Postgres
	Redis     Redis
	State     State
	Session   Session
	Kafka     Kafka
	Payment   Payment
	RateLimit RateLimit
}

type Server struct {
	Addr           string
	AdminAPIToken  string
	PaymentLinkURL string
}

type Log struct {
	Level  string
	Format string
}

// Postgres selects the document store. An empty URL keeps documents in memory.
type Postgres struct {
	URL string
}

// Redis is optional; when URL is empty the submission lock is in-process.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type State struct {
	Backend    string
	SQLitePath string
	TTL        time.Duration
}

type Session struct {
	SigningKey string
	TTL        time.Duration
	IdleTTL    time.Duration
}

// Kafka carries audit events. No brokers means audit stays in memory.
type Kafka struct {
	Brokers    []string
	AuditTopic string
}

type Payment struct {
	Delay             time.Duration
	Timeout           time.Duration
	FeePerInvestor    decimal.Decimal
	Currency          string
	TransactionPrefix string
}

// RateLimit caps per-caller request rates. Zero disables a limit.
type RateLimit struct {
	SessionsPerMinute int
	InspectPerMinute  int
	LinksPerHour      int
}

func defaults(v *viper.Viper) {
	v.SetDefault("REGFLOW_ADDR", ":8080")
	v.SetDefault("ADMIN_API_TOKEN", "")
	v.SetDefault("PAYMENT_LINK_BASE_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")
	v.SetDefault("STATE_BACKEND", StateBackendMemory)
	v.SetDefault("STATE_SQLITE_PATH", "regflow-state.db")
	v.SetDefault("STATE_TTL", "720h")
	v.SetDefault("SESSION_SIGNING_KEY", "dev-secret-key-change-in-production")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("SESSION_IDLE_TTL", "30m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_AUDIT_TOPIC", "regflow.audit")
	v.SetDefault("PAYMENT_DELAY", "2s")
	v.SetDefault("PAYMENT_TIMEOUT", "30s")
	v.SetDefault("PAYMENT_FEE_PER_INVESTOR", "280")
	v.SetDefault("PAYMENT_CURRENCY", "USD")
	v.SetDefault("PAYMENT_TXN_PREFIX", "REG")
	v.SetDefault("RATE_LIMIT_SESSIONS_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_INSPECT_PER_MINUTE", 300)
	v.SetDefault("RATE_LIMIT_LINKS_PER_HOUR", 10)
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	fee, err := decimal.NewFromString(v.GetString("PAYMENT_FEE_PER_INVESTOR"))
	if err != nil {
		return Config{}, fmt.Errorf("PAYMENT_FEE_PER_INVESTOR: %w", err)
	}
	if fee.IsNegative() {
		return Config{}, fmt.Errorf("PAYMENT_FEE_PER_INVESTOR must not be negative")
	}

	cfg := Config{
		Server: Server{
			Addr:           v.GetString("REGFLOW_ADDR"),
			AdminAPIToken:  v.GetString("ADMIN_API_TOKEN"),
			PaymentLinkURL: strings.TrimRight(v.GetString("PAYMENT_LINK_BASE_URL"), "/"),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Postgres: Postgres{URL: v.GetString("DATABASE_URL")},
		Redis: Redis{
			URL:          v.GetString("REDIS_URL"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		State: State{
			Backend:    strings.ToLower(v.GetString("STATE_BACKEND")),
			SQLitePath: v.GetString("STATE_SQLITE_PATH"),
			TTL:        v.GetDuration("STATE_TTL"),
		},
		Session: Session{
			SigningKey: v.GetString("SESSION_SIGNING_KEY"),
			TTL:        v.GetDuration("SESSION_TTL"),
			IdleTTL:    v.GetDuration("SESSION_IDLE_TTL"),
		},
		Kafka: Kafka{
			Brokers:    pstrings.DedupeAndTrim(strings.Split(v.GetString("KAFKA_BROKERS"), ",")),
			AuditTopic: v.GetString("KAFKA_AUDIT_TOPIC"),
		},
		Payment: Payment{
			Delay:             v.GetDuration("PAYMENT_DELAY"),
			Timeout:           v.GetDuration("PAYMENT_TIMEOUT"),
			FeePerInvestor:    fee,
			Currency:          strings.ToUpper(v.GetString("PAYMENT_CURRENCY")),
			TransactionPrefix: v.GetString("PAYMENT_TXN_PREFIX"),
		},
		RateLimit: RateLimit{
			SessionsPerMinute: v.GetInt("RATE_LIMIT_SESSIONS_PER_MINUTE"),
			InspectPerMinute:  v.GetInt("RATE_LIMIT_INSPECT_PER_MINUTE"),
			LinksPerHour:      v.GetInt("RATE_LIMIT_LINKS_PER_HOUR"),
		},
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.State.Backend {
	case StateBackendMemory, StateBackendSQLite:
	case StateBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("STATE_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}
	if c.Session.SigningKey == "" {
		return fmt.Errorf("SESSION_SIGNING_KEY must be set")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}
	if c.RateLimit.SessionsPerMinute < 0 || c.RateLimit.InspectPerMinute < 0 || c.RateLimit.LinksPerHour < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	return nil
}
