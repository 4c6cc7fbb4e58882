package config

import (
	"errors"
	"strings"
	"time"
)

const minSecretLength = 8

type Config struct {
	Service   *ServiceConfig
	Gateway   *GatewayConfig
	API       *APIConfig
	Redis     *RedisConfig
	Postgres  *PostgresConfig
	RateLimit *RateLimitConfig
	Logger    *LoggerConfig
	Tracer    *TracerConfig
}

type ServiceConfig struct {
	Name string
	Env  string
}

// GatewayConfig configures the WebSocket gateway and the internal publish bridge.
// PublicURL and InternalURL are how other processes reach it.
type GatewayConfig struct {
	Host            string
	Port            int
	AuthSecret      string
	InternalSecret  string
	CORSOrigin      string
	PublicURL       string
	InternalURL     string
	TokenTTL        time.Duration
	PublishTimeout  time.Duration
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

type APIConfig struct {
	Addr      string
	JWTSecret string
	JWTIssuer string
	// SeedUsers are written to the user directory at startup, for local runs without the
	// account service.
	SeedUsers []SeedUser
}

type SeedUser struct {
	ID   string
	Name string
}

// RedisConfig is optional; an empty URL selects in-process last-seen and rate limiting.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
	KeyPrefix    string
}

// PostgresConfig is optional; an empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	Migrate         bool
}

type RateLimitConfig struct {
	MessagesPerMinute int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Gateway.AuthSecret) < minSecretLength {
		errs = append(errs, errors.New("config: WS_AUTH_SECRET must be at least 8 bytes"))
	}
	if len(c.Gateway.InternalSecret) < minSecretLength {
		errs = append(errs, errors.New("config: WS_INTERNAL_SECRET must be at least 8 bytes"))
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, errors.New("config: WS_PORT out of range"))
	}
	if c.Gateway.TokenTTL <= 0 || c.Gateway.PublishTimeout <= 0 {
		errs = append(errs, errors.New("config: WS_TOKEN_TTL and WS_PUBLISH_TIMEOUT must be positive"))
	}
	if c.Gateway.SendBuffer <= 0 {
		errs = append(errs, errors.New("config: WS_SEND_BUFFER must be positive"))
	}
	if c.Gateway.PingInterval <= 0 {
		errs = append(errs, errors.New("config: WS_PING_INTERVAL must be positive"))
	} else if c.Gateway.PingInterval >= c.Gateway.PongWait {
		errs = append(errs, errors.New("config: WS_PING_INTERVAL must be shorter than WS_PONG_WAIT"))
	}
	if c.RateLimit.MessagesPerMinute < 0 {
		errs = append(errs, errors.New("config: RATE_LIMIT_MESSAGES_PER_MINUTE must be >= 0"))
	}
	return errors.Join(errs...)
}

// ValidateAPI checks the settings only the API binary needs.
func (c *Config) ValidateAPI() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.API.JWTSecret) < minSecretLength {
		return errors.New("config: JWT_SECRET must be at least 8 bytes")
	}
	if strings.TrimSpace(c.Gateway.PublicURL) == "" {
		return errors.New("config: WS_URL is required")
	}
	return nil
}
