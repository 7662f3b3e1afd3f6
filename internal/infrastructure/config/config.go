package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for PiOpener.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Door      DoorConfig      `yaml:"door"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DoorConfig describes the door hardware and the control loop timing.
type DoorConfig struct {
	// ID names the door in MQTT topics and telemetry tags.
	ID string `yaml:"id"`

	// Chip is the GPIO character device, e.g. "gpiochip0".
	Chip string `yaml:"chip"`

	CloseLimitPin int `yaml:"close_limit_pin"`
	OpenLimitPin  int `yaml:"open_limit_pin"`
	CouplerPin    int `yaml:"coupler_pin"`

	// LimitActiveLow is true when a pressed switch pulls its line low.
	LimitActiveLow bool `yaml:"limit_active_low"`

	// LimitDebounceMS enables kernel debouncing of the limit inputs. 0 disables it.
	LimitDebounceMS int `yaml:"limit_debounce_ms"`

	// CouplerActiveLow drives the relay by pulling the line low.
	CouplerActiveLow bool `yaml:"coupler_active_low"`

	PollIntervalMS      int `yaml:"poll_interval_ms"`
	ExpectedShutTimeSec int `yaml:"expected_shut_time_sec"`

	// ShutTimeBufferSec is the limit switch cooldown window.
	ShutTimeBufferSec int `yaml:"shut_time_buffer_sec"`

	// CouplerDurationIntervals is the press width in poll intervals.
	CouplerDurationIntervals int `yaml:"coupler_duration_intervals"`

	// CouplerRestIntervals is the rest between reversing presses, in poll intervals.
	CouplerRestIntervals int `yaml:"coupler_rest_intervals"`

	// Simulate replaces the GPIO lines with a kinematic door model.
	Simulate bool `yaml:"simulate"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
//
// Write applies to ordinary requests only; the status feeds are long-lived
// and clear their own deadline.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	// APIKey is the shared bearer token accepted on every protected route.
	APIKey string    `yaml:"api_key"`
	JWT    JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. Token issuance is disabled when
// Secret is empty.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Minimum secret lengths enforced by Validate.
const (
	minAPIKeyLength    = 16
	minJWTSecretLength = 32
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PIOPENER_SECTION_KEY
// For example: PIOPENER_DATABASE_PATH, PIOPENER_API_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Door: DoorConfig{
			ID:                       "garage",
			Chip:                     "gpiochip0",
			CloseLimitPin:            23,
			OpenLimitPin:             24,
			CouplerPin:               25,
			LimitActiveLow:           true,
			PollIntervalMS:           100,
			ExpectedShutTimeSec:      15,
			ShutTimeBufferSec:        3,
			CouplerDurationIntervals: 5,
			CouplerRestIntervals:     10,
		},
		Database: DatabaseConfig{
			Path:        "./data/piopener.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "piopener",
			},
			QoS:         1,
			TopicPrefix: "piopener",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "piopener",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PIOPENER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Door
	if v := os.Getenv("PIOPENER_SIMULATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Door.Simulate = b
		}
	}

	// Database
	if v := os.Getenv("PIOPENER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PIOPENER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PIOPENER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PIOPENER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("PIOPENER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("PIOPENER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security (IMPORTANT: keep secrets out of the config file in production)
	if v := os.Getenv("PIOPENER_API_KEY"); v != "" {
		cfg.Security.APIKey = v
	}
	if v := os.Getenv("PIOPENER_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.Door.validate()...)

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The API key guards a physical entrance.
	if c.Security.APIKey == "" {
		errs = append(errs, "security.api_key is required (set PIOPENER_API_KEY environment variable)")
	} else if len(c.Security.APIKey) < minAPIKeyLength {
		errs = append(errs, fmt.Sprintf("security.api_key must be at least %d characters", minAPIKeyLength))
	}
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, fmt.Sprintf("security.jwt.secret must be at least %d characters for adequate security", minJWTSecretLength))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (d DoorConfig) validate() []string {
	var errs []string

	if d.ID == "" {
		errs = append(errs, "door.id is required")
	} else if strings.ContainsAny(d.ID, "/+#") {
		errs = append(errs, "door.id must not contain MQTT topic characters (/, +, #)")
	}

	pins := map[string]int{
		"door.close_limit_pin": d.CloseLimitPin,
		"door.open_limit_pin":  d.OpenLimitPin,
		"door.coupler_pin":     d.CouplerPin,
	}
	seen := make(map[int]bool, len(pins))
	for _, name := range []string{"door.close_limit_pin", "door.open_limit_pin", "door.coupler_pin"} {
		pin := pins[name]
		if pin < 0 {
			errs = append(errs, name+" must not be negative")
		}
		if seen[pin] {
			errs = append(errs, name+" duplicates another door pin")
		}
		seen[pin] = true
	}

	if d.PollIntervalMS <= 0 {
		errs = append(errs, "door.poll_interval_ms must be positive")
	}
	if d.ExpectedShutTimeSec <= 0 {
		errs = append(errs, "door.expected_shut_time_sec must be positive")
	}
	if d.ShutTimeBufferSec < 0 || d.ShutTimeBufferSec >= d.ExpectedShutTimeSec {
		errs = append(errs, "door.shut_time_buffer_sec must be at least 0 and below door.expected_shut_time_sec")
	}
	if d.CouplerDurationIntervals < 1 {
		errs = append(errs, "door.coupler_duration_intervals must be at least 1")
	}
	if d.CouplerRestIntervals < 1 {
		errs = append(errs, "door.coupler_rest_intervals must be at least 1")
	}
	if d.LimitDebounceMS < 0 {
		errs = append(errs, "door.limit_debounce_ms must not be negative")
	}

	return errs
}

// PollInterval returns the control loop tick period.
func (d DoorConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalMS) * time.Millisecond
}

// ExpectedShutTime returns the time for a full traverse.
func (d DoorConfig) ExpectedShutTime() time.Duration {
	return time.Duration(d.ExpectedShutTimeSec) * time.Second
}

// Cooldown returns the limit switch cooldown window.
func (d DoorConfig) Cooldown() time.Duration {
	return time.Duration(d.ShutTimeBufferSec) * time.Second
}

// LimitDebounce returns the kernel debounce period for the limit inputs.
func (d DoorConfig) LimitDebounce() time.Duration {
	return time.Duration(d.LimitDebounceMS) * time.Millisecond
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

// GetAccessTokenTTL returns the lifetime of issued access tokens.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
