package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
tuya:
  region: "eu"
  api_key: "key-123"
  api_secret: "secret-456"
mqtt:
  broker:
    host: "broker.local"
    port: 1884
    client_id: "test-client"
  qos: 1
  topic_prefix: "home/tuya"
poll:
  interval: 5s
governance:
  rules:
    - governing: "relay1"
      dependents: ["plug1", "plug2"]
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: 9090
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tuya.Region != "eu" {
		t.Errorf("Tuya.Region = %q, want %q", cfg.Tuya.Region, "eu")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.TopicPrefix != "home/tuya" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "home/tuya")
	}
	// Unset in the file, so the default survives.
	if cfg.MQTT.DiscoveryPrefix != "discovery" {
		t.Errorf("MQTT.DiscoveryPrefix = %q, want %q", cfg.MQTT.DiscoveryPrefix, "discovery")
	}
	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("Poll.Interval = %v, want 5s", cfg.Poll.Interval)
	}
	if len(cfg.Governance.Rules) != 1 || len(cfg.Governance.Rules[0].Dependents) != 2 {
		t.Errorf("Governance.Rules = %+v, want one rule with two dependents", cfg.Governance.Rules)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
}

func TestLoad_EmptyPathUsesEnvironment(t *testing.T) {
	t.Setenv("TUYA_API_KEY", "env-key")
	t.Setenv("TUYA_API_SECRET", "env-secret")
	t.Setenv("MQTT_BROKER", "mqtt.example.com")
	t.Setenv("MQTT_PORT", "8883")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}

	if cfg.Tuya.APIKey != "env-key" {
		t.Errorf("Tuya.APIKey = %q, want %q", cfg.Tuya.APIKey, "env-key")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.Tuya.Region != "sg" {
		t.Errorf("Tuya.Region = %q, want default %q", cfg.Tuya.Region, "sg")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	content := `
tuya:
  api_key: "file-key"
  api_secret: "file-secret"
mqtt:
  auth:
    username: "file-user"
`
	t.Setenv("TUYA_API_SECRET", "env-secret")
	t.Setenv("MQTT_USERNAME", "env-user")
	t.Setenv("MQTT_PASSWORD", "env-pass")
	t.Setenv("TUYABRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("TUYABRIDGE_INFLUXDB_TOKEN", "secret-token")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tuya.APIKey != "file-key" {
		t.Errorf("Tuya.APIKey = %q, want %q", cfg.Tuya.APIKey, "file-key")
	}
	if cfg.Tuya.APISecret != "env-secret" {
		t.Errorf("Tuya.APISecret = %q, want %q", cfg.Tuya.APISecret, "env-secret")
	}
	if cfg.MQTT.Auth.Username != "env-user" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "env-user")
	}
	if cfg.MQTT.Auth.Password != "env-pass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "env-pass")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("TUYA_API_KEY", "")
	t.Setenv("TUYA_API_SECRET", "")

	_, err := Load(writeConfig(t, "mqtt:\n  qos: 1\n"))
	if err == nil {
		t.Fatal("Load() expected validation error for missing credentials, got nil")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want wrapping ErrInvalidConfig", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Tuya.APIKey = "key"
		cfg.Tuya.APISecret = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Tuya.APIKey = "" },
			wantErr: true,
		},
		{
			name:    "missing api secret",
			mutate:  func(c *Config) { c.Tuya.APISecret = "" },
			wantErr: true,
		},
		{
			name:    "no region and no base url",
			mutate:  func(c *Config) { c.Tuya.Region = "" },
			wantErr: true,
		},
		{
			name:    "base url without region",
			mutate:  func(c *Config) { c.Tuya.Region = ""; c.Tuya.BaseURL = "http://localhost:9999" },
			wantErr: false,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "wildcard in topic prefix",
			mutate:  func(c *Config) { c.MQTT.TopicPrefix = "tuya/#" },
			wantErr: true,
		},
		{
			name:    "trailing slash in topic prefix",
			mutate:  func(c *Config) { c.MQTT.TopicPrefix = "tuya/" },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Poll.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "database enabled without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "database disabled without path",
			mutate:  func(c *Config) { c.Database.Enabled = false; c.Database.Path = "" },
			wantErr: false,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Org = "o"; c.InfluxDB.Bucket = "b" },
			wantErr: true,
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "governance rule without governing",
			mutate: func(c *Config) {
				c.Governance.Rules = []GovernanceRule{{Dependents: []string{"a"}}}
			},
			wantErr: true,
		},
		{
			name: "device both governing and dependent",
			mutate: func(c *Config) {
				c.Governance.Rules = []GovernanceRule{
					{Governing: "relay1", Dependents: []string{"relay2"}},
					{Governing: "relay2", Dependents: []string{"plug1"}},
				}
			},
			wantErr: true,
		},
		{
			name: "dependent under two governors",
			mutate: func(c *Config) {
				c.Governance.Rules = []GovernanceRule{
					{Governing: "relay1", Dependents: []string{"plug1"}},
					{Governing: "relay2", Dependents: []string{"plug1"}},
				}
			},
			wantErr: true,
		},
		{
			name: "two independent rules",
			mutate: func(c *Config) {
				c.Governance.Rules = []GovernanceRule{
					{Governing: "relay1", Dependents: []string{"plug1"}},
					{Governing: "relay2", Dependents: []string{"plug2"}},
				}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want wrapping ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Tuya: TuyaConfig{Timeout: 15},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.Tuya.RegistryTimeout(); got != 15*time.Second {
		t.Errorf("RegistryTimeout() = %v, want 15s", got)
	}
	if got := cfg.API.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.API.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.API.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.TopicPrefix != "tuya" {
		t.Errorf("defaultConfig MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "tuya")
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Errorf("defaultConfig Poll.Interval = %v, want 2s", cfg.Poll.Interval)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	t.Setenv("TUYA_API_KEY", "key")
	t.Setenv("TUYA_API_SECRET", "secret")

	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load(sample) error = %v", err)
	}
	if cfg.Tuya.Region != "eu" || cfg.MQTT.TopicPrefix != "tuya" {
		t.Errorf("sample config = %+v", cfg)
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Errorf("Poll.Interval = %v, want 2s", cfg.Poll.Interval)
	}
}
