package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for tankbot.
// All configuration is loaded from YAML and can be overridden by environment variables.
// It is read once at startup; there is no runtime reload.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Link      LinkConfig      `yaml:"link"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DeviceConfig identifies the chassis this process drives.
type DeviceConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// LinkConfig contains network link monitoring settings.
type LinkConfig struct {
	// Interface is the network interface to watch (e.g. "wlan0").
	// Empty means the first non-loopback interface with an IPv4 address.
	Interface string `yaml:"interface"`

	// PollInterval is how often the interface is sampled (milliseconds).
	PollInterval int `yaml:"poll_interval"`

	// ReconnectCommand is run on station start and on every disconnect.
	// Empty means the link is managed externally and connect requests are no-ops.
	ReconnectCommand []string `yaml:"reconnect_command"`

	// ReconnectTimeout bounds a single reconnect command run (seconds).
	ReconnectTimeout int `yaml:"reconnect_timeout"`

	// Backoff between reconnect requests. All zero means retry immediately.
	Backoff LinkBackoffConfig `yaml:"backoff"`
}

// LinkBackoffConfig contains reconnect backoff settings (milliseconds).
type LinkBackoffConfig struct {
	InitialDelay int     `yaml:"initial_delay"`
	MaxDelay     int     `yaml:"max_delay"`
	Multiplier   float64 `yaml:"multiplier"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	Protocol  int                 `yaml:"protocol"` // 3 (MQTT 3.1.1) or 5
	Topic     string              `yaml:"topic"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keep_alive"` // seconds
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	URI      string `yaml:"uri"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains the broker client's own reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DispatchConfig contains the Valkey command channel settings.
type DispatchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Channel  string `yaml:"channel"`
	Password string `yaml:"password"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT verification settings.
// An empty secret disables authentication on command endpoints.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TANKBOT_SECTION_KEY
// For example: TANKBOT_MQTT_URI, TANKBOT_MQTT_PASSWORD
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// Used when no config file is present.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:        "RobotMqtt",
			Description: "Tracked robot chassis: moves on tracks and can grab objects with a claw",
		},
		Link: LinkConfig{
			PollInterval:     1000,
			ReconnectTimeout: 10,
			Backoff: LinkBackoffConfig{
				Multiplier: 2.0,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				URI:      "mqtt://192.168.1.1:1883",
				ClientID: "tankbot",
			},
			Protocol:  3,
			Topic:     "tankrobot-topic",
			QoS:       1,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/tankbot.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Dispatch: DispatchConfig{
			Address: "localhost:6379",
			Channel: "tankbot-commands",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TANKBOT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Link
	if v := os.Getenv("TANKBOT_LINK_INTERFACE"); v != "" {
		cfg.Link.Interface = v
	}

	// MQTT
	if v := os.Getenv("TANKBOT_MQTT_URI"); v != "" {
		cfg.MQTT.Broker.URI = v
	}
	if v := os.Getenv("TANKBOT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TANKBOT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("TANKBOT_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}

	// Database
	if v := os.Getenv("TANKBOT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("TANKBOT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Dispatch
	if v := os.Getenv("TANKBOT_DISPATCH_PASSWORD"); v != "" {
		cfg.Dispatch.Password = v
	}

	// Security
	if v := os.Getenv("TANKBOT_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.URI == "" {
		errs = append(errs, "mqtt.broker.uri is required")
	} else if u, err := url.Parse(c.MQTT.Broker.URI); err != nil || u.Host == "" {
		errs = append(errs, "mqtt.broker.uri must be a URI such as mqtt://host:1883")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Protocol != 3 && c.MQTT.Protocol != 5 {
		errs = append(errs, "mqtt.protocol must be 3 or 5")
	}

	// Link validation
	if c.Link.PollInterval <= 0 {
		errs = append(errs, "link.poll_interval must be positive")
	}
	if c.Link.Backoff.InitialDelay < 0 || c.Link.Backoff.MaxDelay < 0 {
		errs = append(errs, "link.backoff delays must not be negative")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the audit database is enabled")
	}

	// Dispatch validation
	if c.Dispatch.Enabled {
		if c.Dispatch.Address == "" {
			errs = append(errs, "dispatch.address is required when dispatch is enabled")
		}
		if c.Dispatch.Channel == "" {
			errs = append(errs, "dispatch.channel is required when dispatch is enabled")
		}
	}

	// JWT secret is optional, but a configured one must not be trivially guessable.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
