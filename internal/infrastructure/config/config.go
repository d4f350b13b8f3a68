package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Shark bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Ayla     AylaConfig     `yaml:"ayla"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains bridge identity settings.
type BridgeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// AylaConfig contains Ayla Networks cloud settings.
//
// The default endpoints and application credentials are the ones the Shark
// Android app uses against the field environment. They rarely need changing;
// the overrides exist for the EU region and for test servers.
type AylaConfig struct {
	// UserURL is the base URL for the identity service (sign in, refresh).
	UserURL string `yaml:"user_url"`

	// DeviceURL is the base URL for the device service (devices, properties).
	DeviceURL string `yaml:"device_url"`

	// AppID and AppSecret identify the client application to the identity
	// service. They are sent with every password login.
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`

	// RequestTimeout is the per-request HTTP timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// PollInterval is the normal polling cadence in seconds.
	PollInterval int `yaml:"poll_interval"`

	// FastPollInterval is the shortened cadence used after an outbound
	// command, in seconds.
	FastPollInterval int `yaml:"fast_poll_interval"`

	// FastPollWindow is how long the fast cadence applies after a command,
	// in seconds.
	FastPollWindow int `yaml:"fast_poll_window"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// APIConfig contains the admin HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// AuthToken protects mutating endpoints. When empty, the API accepts
	// unauthenticated requests (suitable only for trusted networks).
	AuthToken string `yaml:"auth_token"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHARKBRIDGE_SECTION_KEY
// For example: SHARKBRIDGE_DATABASE_PATH, SHARKBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:   "shark",
			Name: "Shark Robot Bridge",
		},
		Ayla: AylaConfig{
			UserURL:          "https://user-field.aylanetworks.com",
			DeviceURL:        "https://ads-field.aylanetworks.com",
			AppID:            "Shark-Android-field-id",
			AppSecret:        "Shark-Android-field-Wv43MbdXRM297HUHotqe6lU1n-w",
			RequestTimeout:   15,
			PollInterval:     10,
			FastPollInterval: 1,
			FastPollWindow:   10,
		},
		Database: DatabaseConfig{
			Path:        "./data/sharkbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sharkbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8093,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SHARKBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SHARKBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SHARKBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHARKBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHARKBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SHARKBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SHARKBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("SHARKBRIDGE_API_AUTH_TOKEN"); v != "" {
		cfg.API.AuthToken = v
	}

	// Ayla cloud (test servers, EU region)
	if v := os.Getenv("SHARKBRIDGE_AYLA_USER_URL"); v != "" {
		cfg.Ayla.UserURL = v
	}
	if v := os.Getenv("SHARKBRIDGE_AYLA_DEVICE_URL"); v != "" {
		cfg.Ayla.DeviceURL = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Bridge validation
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	// Ayla validation
	if c.Ayla.UserURL == "" {
		errs = append(errs, "ayla.user_url is required")
	}
	if c.Ayla.DeviceURL == "" {
		errs = append(errs, "ayla.device_url is required")
	}
	if c.Ayla.AppID == "" || c.Ayla.AppSecret == "" {
		errs = append(errs, "ayla.app_id and ayla.app_secret are required")
	}
	if c.Ayla.PollInterval < 1 {
		errs = append(errs, "ayla.poll_interval must be at least 1 second")
	}
	if c.Ayla.FastPollInterval < 1 {
		errs = append(errs, "ayla.fast_poll_interval must be at least 1 second")
	}
	if c.Ayla.FastPollInterval > c.Ayla.PollInterval {
		errs = append(errs, "ayla.fast_poll_interval must not exceed ayla.poll_interval")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the cloud HTTP request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Ayla.RequestTimeout) * time.Second
}

// GetPollInterval returns the normal poll cadence as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Ayla.PollInterval) * time.Second
}

// GetFastPollInterval returns the fast poll cadence as a Duration.
func (c *Config) GetFastPollInterval() time.Duration {
	return time.Duration(c.Ayla.FastPollInterval) * time.Second
}

// GetFastPollWindow returns the fast poll window as a Duration.
func (c *Config) GetFastPollWindow() time.Duration {
	return time.Duration(c.Ayla.FastPollWindow) * time.Second
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
