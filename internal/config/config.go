package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port" env:"SERVER_PORT"`
	Interface    string        `yaml:"interface" env:"SERVER_INTERFACE"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
}

// WebSocketConfig holds realtime session configuration
type WebSocketConfig struct {
	// ReadLimit is the maximum inbound message size in bytes
	ReadLimit int64 `yaml:"read_limit" env:"WS_READ_LIMIT"`
	// PongWait is how long to wait for a pong before dropping the connection
	PongWait time.Duration `yaml:"pong_wait" env:"WS_PONG_WAIT"`
	// PingInterval is the keepalive ping period; must be shorter than PongWait
	PingInterval time.Duration `yaml:"ping_interval" env:"WS_PING_INTERVAL"`
	// WriteWait is the per-message write deadline
	WriteWait time.Duration `yaml:"write_wait" env:"WS_WRITE_WAIT"`
	// SendBufferSize is the per-client outbound queue depth; a client that
	// falls this far behind is dropped
	SendBufferSize int `yaml:"send_buffer_size" env:"WS_SEND_BUFFER_SIZE"`
	// HistoryDepth bounds the per-room undo snapshot history
	HistoryDepth int `yaml:"history_depth" env:"WS_HISTORY_DEPTH"`
}

// RedisConfig holds board store configuration
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     string `yaml:"port" env:"REDIS_PORT"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// Addr returns the host:port address, or "" when Redis is not configured
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

// AuthConfig holds identity resolution configuration
type AuthConfig struct {
	// JWTSecret verifies bearer tokens supplied by the identity provider.
	// Empty disables token verification; every participant is a guest.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOG_LEVEL"`
	IsDev            bool   `yaml:"is_dev" env:"LOG_IS_DEV"`
	LogDir           string `yaml:"log_dir" env:"LOG_DIR"`
	MaxAgeDays       int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS"`
	MaxSizeMB        int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB"`
	MaxBackups       int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console" env:"LOG_CONSOLE"`
}

// TelemetryConfig holds metrics configuration
type TelemetryConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
	ServiceName    string `yaml:"service_name" env:"SERVICE_NAME"`
}

const envPrefix = "BOARDSYNC_"

// Default returns the baseline configuration before file and env overrides
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Interface:    "0.0.0.0",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadLimit:      64 * 1024,
			PongWait:       60 * time.Second,
			PingInterval:   30 * time.Second,
			WriteWait:      10 * time.Second,
			SendBufferSize: 256,
			HistoryDepth:   50,
		},
		Redis: RedisConfig{
			Port: "6379",
		},
		Logging: LoggingConfig{
			Level:            "info",
			LogDir:           "logs",
			MaxAgeDays:       7,
			MaxSizeMB:        100,
			MaxBackups:       10,
			AlsoLogToConsole: true,
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled: true,
			ServiceName:    "boardsync",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// BOARDSYNC_* environment variable overrides, in that precedence order
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile) // #nosec G304 - path supplied by operator
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime failures
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket.ping_interval (%s) must be shorter than websocket.pong_wait (%s)",
			c.WebSocket.PingInterval, c.WebSocket.PongWait)
	}
	if c.WebSocket.SendBufferSize <= 0 {
		return fmt.Errorf("websocket.send_buffer_size must be positive")
	}
	if c.WebSocket.HistoryDepth <= 0 {
		return fmt.Errorf("websocket.history_depth must be positive")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	envString(&c.Server.Port, "SERVER_PORT")
	envString(&c.Server.Interface, "SERVER_INTERFACE")
	envDuration(&c.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	envDuration(&c.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	envDuration(&c.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT")

	envInt64(&c.WebSocket.ReadLimit, "WS_READ_LIMIT")
	envDuration(&c.WebSocket.PongWait, "WS_PONG_WAIT")
	envDuration(&c.WebSocket.PingInterval, "WS_PING_INTERVAL")
	envDuration(&c.WebSocket.WriteWait, "WS_WRITE_WAIT")
	envInt(&c.WebSocket.SendBufferSize, "WS_SEND_BUFFER_SIZE")
	envInt(&c.WebSocket.HistoryDepth, "WS_HISTORY_DEPTH")

	envString(&c.Redis.Host, "REDIS_HOST")
	envString(&c.Redis.Port, "REDIS_PORT")
	envString(&c.Redis.Password, "REDIS_PASSWORD")
	envInt(&c.Redis.DB, "REDIS_DB")

	envString(&c.Auth.JWTSecret, "JWT_SECRET")

	envString(&c.Logging.Level, "LOG_LEVEL")
	envBool(&c.Logging.IsDev, "LOG_IS_DEV")
	envString(&c.Logging.LogDir, "LOG_DIR")
	envInt(&c.Logging.MaxAgeDays, "LOG_MAX_AGE_DAYS")
	envInt(&c.Logging.MaxSizeMB, "LOG_MAX_SIZE_MB")
	envInt(&c.Logging.MaxBackups, "LOG_MAX_BACKUPS")
	envBool(&c.Logging.AlsoLogToConsole, "LOG_CONSOLE")

	envBool(&c.Telemetry.MetricsEnabled, "METRICS_ENABLED")
	envString(&c.Telemetry.ServiceName, "SERVICE_NAME")
}

func envString(target *string, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		*target = v
	}
}

func envInt(target *int, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*target = parsed
		}
	}
}

func envInt64(target *int64, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func envBool(target *bool, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*target = parsed
		}
	}
}

func envDuration(target *time.Duration, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			*target = parsed
		}
	}
}
