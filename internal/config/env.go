package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultAuthSecret = "dev-ws-auth-secret"

// source resolves a key from the environment first, then from the optional YAML file.
// The file is a flat mapping keyed by the same names as the environment variables.
type source struct {
	file map[string]string
}

// Load reads CONFIG_FILE (if set) and the environment.
func Load() (*Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return src.load(), nil
}

func newSource(path string) (*source, error) {
	src := &source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &src.file); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return src, nil
}

func (s *source) load() *Config {
	authSecret := s.getEnv("WS_AUTH_SECRET", s.getEnv("SESSION_SECRET", defaultAuthSecret))
	host := s.getEnv("WS_HOST", "127.0.0.1")
	port := s.getEnvInt("WS_PORT", 3011)

	return &Config{
		Service: &ServiceConfig{
			Name: s.getEnv("SERVICE_NAME", "marketchat"),
			Env:  s.getEnv("SERVICE_ENV", "development"),
		},
		Gateway: &GatewayConfig{
			Host:            host,
			Port:            port,
			AuthSecret:      authSecret,
			InternalSecret:  s.getEnv("WS_INTERNAL_SECRET", authSecret),
			CORSOrigin:      s.getEnv("WS_CORS_ORIGIN", "*"),
			PublicURL:       s.getEnv("WS_URL", fmt.Sprintf("ws://%s:%d/ws", host, port)),
			InternalURL:     s.getEnv("WS_INTERNAL_URL", fmt.Sprintf("http://%s:%d/internal/publish", host, port)),
			TokenTTL:        s.getEnvDuration("WS_TOKEN_TTL", 24*time.Hour),
			PublishTimeout:  s.getEnvDuration("WS_PUBLISH_TIMEOUT", 1200*time.Millisecond),
			SendBuffer:      s.getEnvInt("WS_SEND_BUFFER", 256),
			PingInterval:    s.getEnvDuration("WS_PING_INTERVAL", 25*time.Second),
			PongWait:        s.getEnvDuration("WS_PONG_WAIT", 60*time.Second),
			WriteWait:       s.getEnvDuration("WS_WRITE_WAIT", 10*time.Second),
			MaxMessageBytes: int64(s.getEnvInt("WS_MAX_MESSAGE_BYTES", 64*1024)),
		},
		API: &APIConfig{
			Addr:      s.getEnv("API_ADDR", ":8080"),
			JWTSecret: s.getEnv("JWT_SECRET", ""),
			JWTIssuer: s.getEnv("JWT_ISSUER", "marketchat"),
			SeedUsers: parseSeedUsers(s.getEnv("SEED_USERS", "")),
		},
		Redis: &RedisConfig{
			URL:          s.getEnv("REDIS_URL", ""),
			DialTimeout:  s.getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  s.getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: s.getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     s.getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: s.getEnvInt("REDIS_MIN_IDLE", 2),
			PingTimeout:  s.getEnvDuration("REDIS_PING_TIMEOUT", 2*time.Second),
			KeyPrefix:    s.getEnv("REDIS_KEY_PREFIX", "marketchat"),
		},
		Postgres: &PostgresConfig{
			DSN:             s.getEnv("DATABASE_URL", ""),
			MaxOpenConns:    s.getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    s.getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: s.getEnvDuration("DB_CONN_LIFETIME", 15*time.Minute),
			ConnMaxIdleTime: s.getEnvDuration("DB_CONN_IDLE_TIME", 5*time.Minute),
			PingTimeout:     s.getEnvDuration("DB_PING_TIMEOUT", 5*time.Second),
			Migrate:         s.getEnvBool("DB_MIGRATE", true),
		},
		RateLimit: &RateLimitConfig{
			MessagesPerMinute: s.getEnvInt("RATE_LIMIT_MESSAGES_PER_MINUTE", 30),
		},
		Logger: &LoggerConfig{
			Level:  s.getEnv("LOG_LEVEL", "info"),
			Format: s.getEnv("LOG_FORMAT", "json"),
		},
		Tracer: &TracerConfig{
			Endpoint:    s.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    s.getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio: s.getEnvFloat("OTEL_TRACES_SAMPLER_RATIO", 1.0),
		},
	}
}

func (s *source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	if v, ok := s.file[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

func (s *source) getEnv(key, fallback string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return fallback
}

func (s *source) getEnvInt(key string, fallback int) int {
	if v, ok := s.lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (s *source) getEnvBool(key string, fallback bool) bool {
	if v, ok := s.lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func (s *source) getEnvFloat(key string, fallback float64) float64 {
	if v, ok := s.lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func (s *source) getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := s.lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// parseSeedUsers reads "id:name,id:name". A missing name becomes "User"; blank ids are skipped.
func parseSeedUsers(raw string) []SeedUser {
	var out []SeedUser
	for _, item := range strings.Split(raw, ",") {
		id, name, _ := strings.Cut(item, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" {
			continue
		}
		if name == "" {
			name = "User"
		}
		out = append(out, SeedUser{ID: id, Name: name})
	}
	return out
}
