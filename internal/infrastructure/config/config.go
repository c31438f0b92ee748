package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure returned from Load.
// Callers treat it as fatal at startup.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root configuration structure for the Tuya bridge.
// Values come from hard-coded defaults, then the YAML file, then environment
// variables (see the env tags).
type Config struct {
	Tuya       TuyaConfig       `yaml:"tuya"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Poll       PollConfig       `yaml:"poll"`
	Governance GovernanceConfig `yaml:"governance"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TuyaConfig contains Tuya Cloud OpenAPI credentials and endpoint settings.
type TuyaConfig struct {
	// Region selects the OpenAPI data centre (cn, us, us-e, eu, eu-w, in, sg).
	Region string `yaml:"region" env:"TUYA_REGION"`

	// BaseURL overrides the region lookup. Mostly useful for tests and proxies.
	BaseURL string `yaml:"base_url" env:"TUYA_BASE_URL"`

	// APIKey is the cloud project Access ID.
	APIKey string `yaml:"api_key" env:"TUYA_API_KEY"`

	// APISecret is the cloud project Access Secret.
	// WARNING: never log this value.
	APISecret string `yaml:"api_secret" env:"TUYA_API_SECRET"`

	// Timeout bounds every HTTP request to the registry (seconds).
	Timeout int `yaml:"timeout" env:"TUYA_TIMEOUT"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos" env:"MQTT_QOS"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix is the root of every device topic (prefix/{id}/...).
	TopicPrefix string `yaml:"topic_prefix" env:"MQTT_TOPIC_PREFIX"`

	// DiscoveryPrefix is the root of device descriptor topics
	// (discovery/device/{id}/config).
	DiscoveryPrefix string `yaml:"discovery_prefix" env:"MQTT_DISCOVERY_PREFIX"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"MQTT_BROKER"`
	Port     int    `yaml:"port" env:"MQTT_PORT"`
	TLS      bool   `yaml:"tls" env:"MQTT_TLS"`
	ClientID string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"MQTT_USERNAME"`
	Password string `yaml:"password" env:"MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// PollConfig controls the registry polling loop.
type PollConfig struct {
	// Interval is the sleep between the end of one cycle and the start of the next.
	Interval time.Duration `yaml:"interval" env:"TUYABRIDGE_POLL_INTERVAL"`
}

// GovernanceConfig declares which devices gate persistence of others.
type GovernanceConfig struct {
	Rules []GovernanceRule `yaml:"rules"`
}

// GovernanceRule binds dependent devices to one governing device.
// While the governing device reports switch=false, neither it nor its
// dependents are persisted.
type GovernanceRule struct {
	// Governing is the registry device ID of the gating device (e.g. a main relay).
	Governing string `yaml:"governing"`

	// Dependents are registry device IDs whose readings are only meaningful
	// while the governing device is on.
	Dependents []string `yaml:"dependents"`
}

// DatabaseConfig contains SQLite persistence settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled" env:"TUYABRIDGE_DATABASE_ENABLED"`
	Path        string `yaml:"path" env:"TUYABRIDGE_DATABASE_PATH"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"TUYABRIDGE_INFLUXDB_ENABLED"`
	URL           string `yaml:"url" env:"TUYABRIDGE_INFLUXDB_URL"`
	Token         string `yaml:"token" env:"TUYABRIDGE_INFLUXDB_TOKEN"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the status API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled" env:"TUYABRIDGE_API_ENABLED"`
	Host     string           `yaml:"host" env:"TUYABRIDGE_API_HOST"`
	Port     int              `yaml:"port" env:"TUYABRIDGE_API_PORT"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"TUYABRIDGE_LOG_LEVEL"`
	Format string `yaml:"format" env:"TUYABRIDGE_LOG_FORMAT"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults); skipped when path is empty
//  3. Environment variables (override file values)
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults plus environment
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Tuya: TuyaConfig{
			Region:  "sg",
			Timeout: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "tuya-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix:     "tuya",
			DiscoveryPrefix: "discovery",
		},
		Poll: PollConfig{
			Interval: 2 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/tuyabridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
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

// Validate checks the configuration for missing credentials and inconsistent settings.
//
// Returns:
//   - error: Wraps ErrInvalidConfig and lists every problem found, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Registry credentials are the one thing without a usable default.
	if c.Tuya.APIKey == "" {
		errs = append(errs, "tuya.api_key is required (set TUYA_API_KEY)")
	}
	if c.Tuya.APISecret == "" {
		errs = append(errs, "tuya.api_secret is required (set TUYA_API_SECRET)")
	}
	if c.Tuya.BaseURL == "" && c.Tuya.Region == "" {
		errs = append(errs, "tuya.region or tuya.base_url is required")
	}
	if c.Tuya.Timeout <= 0 {
		errs = append(errs, "tuya.timeout must be positive")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if err := validateTopicRoot("mqtt.topic_prefix", c.MQTT.TopicPrefix); err != "" {
		errs = append(errs, err)
	}
	if err := validateTopicRoot("mqtt.discovery_prefix", c.MQTT.DiscoveryPrefix); err != "" {
		errs = append(errs, err)
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, "poll.interval must be positive")
	}

	errs = append(errs, c.Governance.validate()...)

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// validate checks that every device appears in at most one role.
func (g GovernanceConfig) validate() []string {
	var errs []string
	governing := make(map[string]bool)
	dependentOf := make(map[string]string)

	for i, rule := range g.Rules {
		if rule.Governing == "" {
			errs = append(errs, fmt.Sprintf("governance.rules[%d].governing is required", i))
			continue
		}
		if governing[rule.Governing] {
			errs = append(errs, fmt.Sprintf("governance: device %s is governing in more than one rule", rule.Governing))
		}
		governing[rule.Governing] = true
	}

	for _, rule := range g.Rules {
		for _, dep := range rule.Dependents {
			switch {
			case dep == "":
				errs = append(errs, fmt.Sprintf("governance: empty dependent under %s", rule.Governing))
			case governing[dep]:
				errs = append(errs, fmt.Sprintf("governance: device %s is both governing and dependent", dep))
			case dependentOf[dep] != "" && dependentOf[dep] != rule.Governing:
				errs = append(errs, fmt.Sprintf("governance: device %s depends on both %s and %s", dep, dependentOf[dep], rule.Governing))
			default:
				dependentOf[dep] = rule.Governing
			}
		}
	}

	return errs
}

// validateTopicRoot rejects empty roots and roots containing MQTT wildcards.
func validateTopicRoot(field, root string) string {
	switch {
	case root == "":
		return field + " is required"
	case strings.ContainsAny(root, "+#"):
		return field + " must not contain MQTT wildcards"
	case strings.HasPrefix(root, "/") || strings.HasSuffix(root, "/"):
		return field + " must not start or end with '/'"
	}
	return ""
}

// RegistryTimeout returns the registry request timeout as a Duration.
func (c TuyaConfig) RegistryTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
