package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendMemory  = "memory"
	BackendSurreal = "surreal"
	BackendMongo   = "mongo"
)

// Provider exposes configuration to components that should not depend on
// the concrete Config struct.
type Provider interface {
	GetAppAddr() string
	GetStoreBackend() string
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
	GetDBQueryTimeout() time.Duration
	GetDBExecuteTimeout() time.Duration
	GetMongoURI() string
	GetMongoDB() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetMessageRatePerMinute() int
	GetJWTSecret() string
	GetJWTTTL() time.Duration
	GetWSSendBuffer() int
	GetWSReadLimit() int64
	GetWSAllowedOrigins() []string
	GetHTTPRateLimit() float64
	GetOnlineBroadcast() bool
	GetReconnect() Reconnect
}

// Reconnect holds the client-side reconnection policy.
type Reconnect struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// Config holds all configuration for the application.
type Config struct {
	AppAddr      string
	StoreBackend string

	DBUrl            string
	DBNs             string
	DBDb             string
	DBUser           string
	DBPass           string
	DBQueryTimeout   time.Duration
	DBExecuteTimeout time.Duration

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MessageRatePerMinute int

	JWTSecret string
	JWTTTL    time.Duration

	WSSendBuffer     int
	WSReadLimit      int64
	WSAllowedOrigins []string

	HTTPRateLimit   float64
	OnlineBroadcast bool

	Reconnect Reconnect
}

var _ Provider = (*Config)(nil)

// New loads configuration from a .env file (if present) and the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	return &Config{
		AppAddr:      getEnv("APP_ADDR", ":8080"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),

		DBUrl:            os.Getenv("SURREAL_URL"),
		DBNs:             os.Getenv("SURREAL_NS"),
		DBDb:             os.Getenv("SURREAL_DB"),
		DBUser:           os.Getenv("SURREAL_USER"),
		DBPass:           os.Getenv("SURREAL_PASS"),
		DBQueryTimeout:   getDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		DBExecuteTimeout: getDuration("DB_EXECUTE_TIMEOUT", 10*time.Second),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getEnv("MONGO_DB", "collabhub"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		MessageRatePerMinute: getInt("MESSAGE_RATE_PER_MINUTE", 60),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getDuration("JWT_TTL", 24*time.Hour),

		WSSendBuffer:     getInt("WS_SEND_BUFFER", 256),
		WSReadLimit:      int64(getInt("WS_READ_LIMIT", 64*1024)),
		WSAllowedOrigins: getList("WS_ALLOWED_ORIGINS"),

		HTTPRateLimit:   getFloat("HTTP_RATE_LIMIT", 20),
		OnlineBroadcast: getEnv("ONLINE_BROADCAST", "all") != "off",

		Reconnect: Reconnect{
			Initial:     getDuration("CLIENT_RECONNECT_INITIAL", time.Second),
			Max:         getDuration("CLIENT_RECONNECT_MAX", 5*time.Second),
			MaxAttempts: getInt("CLIENT_RECONNECT_ATTEMPTS", 5),
		},
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendSurreal:
		if c.DBUrl == "" || c.DBNs == "" || c.DBDb == "" {
			errs = append(errs, errors.New("SURREAL_URL, SURREAL_NS and SURREAL_DB are required for the surreal backend"))
		}
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.WSSendBuffer <= 0 {
		errs = append(errs, errors.New("WS_SEND_BUFFER must be positive"))
	}
	if c.Reconnect.Initial <= 0 || c.Reconnect.Max < c.Reconnect.Initial {
		errs = append(errs, errors.New("CLIENT_RECONNECT_INITIAL must be positive and not above CLIENT_RECONNECT_MAX"))
	}
	return errors.Join(errs...)
}

func (c *Config) GetAppAddr() string                 { return c.AppAddr }
func (c *Config) GetStoreBackend() string            { return c.StoreBackend }
func (c *Config) GetDBURL() string                   { return c.DBUrl }
func (c *Config) GetDBNs() string                    { return c.DBNs }
func (c *Config) GetDBDb() string                    { return c.DBDb }
func (c *Config) GetDBUser() string                  { return c.DBUser }
func (c *Config) GetDBPass() string                  { return c.DBPass }
func (c *Config) GetDBQueryTimeout() time.Duration   { return c.DBQueryTimeout }
func (c *Config) GetDBExecuteTimeout() time.Duration { return c.DBExecuteTimeout }
func (c *Config) GetMongoURI() string                { return c.MongoURI }
func (c *Config) GetMongoDB() string                 { return c.MongoDB }
func (c *Config) GetRedisAddr() string               { return c.RedisAddr }
func (c *Config) GetRedisPassword() string           { return c.RedisPassword }
func (c *Config) GetRedisDB() int                    { return c.RedisDB }
func (c *Config) GetMessageRatePerMinute() int       { return c.MessageRatePerMinute }
func (c *Config) GetJWTSecret() string               { return c.JWTSecret }
func (c *Config) GetJWTTTL() time.Duration           { return c.JWTTTL }
func (c *Config) GetWSSendBuffer() int               { return c.WSSendBuffer }
func (c *Config) GetWSReadLimit() int64              { return c.WSReadLimit }
func (c *Config) GetWSAllowedOrigins() []string      { return c.WSAllowedOrigins }
func (c *Config) GetHTTPRateLimit() float64          { return c.HTTPRateLimit }
func (c *Config) GetOnlineBroadcast() bool           { return c.OnlineBroadcast }
func (c *Config) GetReconnect() Reconnect            { return c.Reconnect }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("Invalid number in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
