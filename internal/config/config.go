package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Broadcast BroadcastConfig
	Queue     QueueConfig
	Client    ClientConfig
	Kafka     KafkaConfig
	OTel      OTelConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, production
	LogLevel    string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite file
}

// DSN returns the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string // pub/sub channel for division change relay
}

type CacheConfig struct {
	Backend    string // memory or redis
	TTL        time.Duration
	MaxEntries int
}

type BroadcastConfig struct {
	TickInterval time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int
	QueryTimeout time.Duration
}

type QueueConfig struct {
	AvgServiceMinutes int
	ExpirySchedule    string // cron spec with seconds
	Location          string
}

type ClientConfig struct {
	URL            string
	ConnectTimeout time.Duration
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	MaxAttempts    int
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Enabled reports whether any broker is configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type OTelConfig struct {
	Enabled       bool
	ServiceName   string
	CollectorAddr string
}

// Load reads .env (unless ENV_CHEK is set) and environment variables
func Load() (*Config, error) {
	if os.Getenv("ENV_CHEK") == "" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := bind(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "branchqueue")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "branchqueue")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "branchqueue.sqlite3")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CHANNEL", "branchqueue:division-changed")

	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("CACHE_TTL", "500ms")
	v.SetDefault("CACHE_MAX_ENTRIES", 1024)

	v.SetDefault("BROADCAST_TICK_INTERVAL", "1s")
	v.SetDefault("WS_PING_INTERVAL", "30s")
	v.SetDefault("WS_PONG_WAIT", "40s")
	v.SetDefault("WS_WRITE_WAIT", "10s")
	v.SetDefault("WS_SEND_BUFFER", 64)
	v.SetDefault("BROADCAST_QUERY_TIMEOUT", "5s")

	v.SetDefault("QUEUE_AVG_SERVICE_MINUTES", 15)
	v.SetDefault("QUEUE_EXPIRY_SCHEDULE", "0 0 0 * * *")
	v.SetDefault("QUEUE_LOCATION", "Local")

	v.SetDefault("CLIENT_URL", "ws://localhost:8080/api/ws")
	v.SetDefault("CLIENT_CONNECT_TIMEOUT", "3s")
	v.SetDefault("CLIENT_BASE_DELAY", "500ms")
	v.SetDefault("CLIENT_MULTIPLIER", 1.5)
	v.SetDefault("CLIENT_MAX_DELAY", "3s")
	v.SetDefault("CLIENT_MAX_ATTEMPTS", 10)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "branchqueue.tickets")
	v.SetDefault("KAFKA_CLIENT_ID", "branchqueue")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "branchqueue")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
}

func bind(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENV")
	cfg.App.LogLevel = v.GetString("LOG_LEVEL")

	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")

	cfg.Database.Driver = v.GetString("DB_DRIVER")
	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetInt("DB_PORT")
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.Name = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSLMODE")
	cfg.Database.Path = v.GetString("DB_PATH")

	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.Channel = v.GetString("REDIS_CHANNEL")

	cfg.Cache.Backend = v.GetString("CACHE_BACKEND")
	cfg.Cache.TTL = v.GetDuration("CACHE_TTL")
	cfg.Cache.MaxEntries = v.GetInt("CACHE_MAX_ENTRIES")

	cfg.Broadcast.TickInterval = v.GetDuration("BROADCAST_TICK_INTERVAL")
	cfg.Broadcast.PingInterval = v.GetDuration("WS_PING_INTERVAL")
	cfg.Broadcast.PongWait = v.GetDuration("WS_PONG_WAIT")
	cfg.Broadcast.WriteWait = v.GetDuration("WS_WRITE_WAIT")
	cfg.Broadcast.SendBuffer = v.GetInt("WS_SEND_BUFFER")
	cfg.Broadcast.QueryTimeout = v.GetDuration("BROADCAST_QUERY_TIMEOUT")

	cfg.Queue.AvgServiceMinutes = v.GetInt("QUEUE_AVG_SERVICE_MINUTES")
	cfg.Queue.ExpirySchedule = v.GetString("QUEUE_EXPIRY_SCHEDULE")
	cfg.Queue.Location = v.GetString("QUEUE_LOCATION")

	cfg.Client.URL = v.GetString("CLIENT_URL")
	cfg.Client.ConnectTimeout = v.GetDuration("CLIENT_CONNECT_TIMEOUT")
	cfg.Client.BaseDelay = v.GetDuration("CLIENT_BASE_DELAY")
	cfg.Client.Multiplier = v.GetFloat64("CLIENT_MULTIPLIER")
	cfg.Client.MaxDelay = v.GetDuration("CLIENT_MAX_DELAY")
	cfg.Client.MaxAttempts = v.GetInt("CLIENT_MAX_ATTEMPTS")

	if brokers := strings.TrimSpace(v.GetString("KAFKA_BROKERS")); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")

	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("cache backend redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.Broadcast.TickInterval <= 0 {
		return fmt.Errorf("broadcast tick interval must be positive")
	}
	if c.Broadcast.PongWait <= c.Broadcast.PingInterval {
		return fmt.Errorf("ws pong wait (%s) must exceed ping interval (%s)", c.Broadcast.PongWait, c.Broadcast.PingInterval)
	}
	if c.Queue.AvgServiceMinutes <= 0 {
		return fmt.Errorf("average service time must be positive")
	}
	if _, err := c.Queue.TimeLocation(); err != nil {
		return err
	}
	if c.Client.Multiplier < 1 {
		return fmt.Errorf("client backoff multiplier must be >= 1")
	}
	return nil
}

// TimeLocation resolves the location that defines a calendar day for queue numbering
func (q QueueConfig) TimeLocation() (*time.Location, error) {
	if q.Location == "" || q.Location == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(q.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid queue location %q: %w", q.Location, err)
	}
	return loc, nil
}

// IsDevelopment returns true in the development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
