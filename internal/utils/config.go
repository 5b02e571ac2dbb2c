package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/o4o-platform/signage-agent/internal/constants"
	"github.com/o4o-platform/signage-agent/pkg/file"
)

// Config holds the resolved agent configuration. Immutable after LoadConfig.
type Config struct {
	CoreServerURL   string // Core HTTP base URL
	CoreServerWSURL string // Core realtime (WebSocket) base URL
	HardwareID      string // Optional fixed hardware ID
	DeviceName      string // Optional display name

	HeartbeatInterval    time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	ConnectionTimeout    time.Duration
	ActionTimeout        time.Duration
	ActionRetention      time.Duration // How long terminal actions stay queryable

	SystemStats bool   // Attach host CPU/memory stats to heartbeats
	LogLevel    string // zerolog level name
}

// Overrides is a partial configuration layer. Nil fields leave the value
// from earlier layers untouched. Layers apply in order: defaults, config
// file, environment, caller overrides.
type Overrides struct {
	CoreServerURL        *string
	CoreServerWSURL      *string
	HardwareID           *string
	DeviceName           *string
	HeartbeatInterval    *time.Duration
	ReconnectInterval    *time.Duration
	MaxReconnectAttempts *int
	ConnectionTimeout    *time.Duration
	ActionTimeout        *time.Duration
	ActionRetention      *time.Duration
	SystemStats          *bool
	LogLevel             *string
}

// apply copies every non-nil override field onto the config.
func (o Overrides) apply(c *Config) {
	if o.CoreServerURL != nil {
		c.CoreServerURL = *o.CoreServerURL
	}
	if o.CoreServerWSURL != nil {
		c.CoreServerWSURL = *o.CoreServerWSURL
	}
	if o.HardwareID != nil {
		c.HardwareID = *o.HardwareID
	}
	if o.DeviceName != nil {
		c.DeviceName = *o.DeviceName
	}
	if o.HeartbeatInterval != nil {
		c.HeartbeatInterval = *o.HeartbeatInterval
	}
	if o.ReconnectInterval != nil {
		c.ReconnectInterval = *o.ReconnectInterval
	}
	if o.MaxReconnectAttempts != nil {
		c.MaxReconnectAttempts = *o.MaxReconnectAttempts
	}
	if o.ConnectionTimeout != nil {
		c.ConnectionTimeout = *o.ConnectionTimeout
	}
	if o.ActionTimeout != nil {
		c.ActionTimeout = *o.ActionTimeout
	}
	if o.ActionRetention != nil {
		c.ActionRetention = *o.ActionRetention
	}
	if o.SystemStats != nil {
		c.SystemStats = *o.SystemStats
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
}

// DefaultConfig returns the hard defaults every other layer merges onto.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    constants.DefaultHeartbeatInterval,
		ReconnectInterval:    constants.DefaultReconnectInterval,
		MaxReconnectAttempts: constants.DefaultMaxReconnectAttempts,
		ConnectionTimeout:    constants.DefaultConnectionTimeout,
		ActionTimeout:        constants.DefaultActionTimeout,
		ActionRetention:      constants.DefaultActionRetention,
		SystemStats:          true,
		LogLevel:             constants.DefaultLogLevel,
	}
}

// fileConfig mirrors the YAML configuration file layout.
type fileConfig struct {
	CoreServerURL        string `yaml:"core_server_url"`
	CoreServerWSURL      string `yaml:"core_server_ws_url"`
	HardwareID           string `yaml:"hardware_id"`
	DeviceName           string `yaml:"device_name"`
	HeartbeatIntervalMs  int    `yaml:"heartbeat_interval_ms"`
	ReconnectIntervalMs  int    `yaml:"reconnect_interval_ms"`
	MaxReconnectAttempts *int   `yaml:"max_reconnect_attempts"`
	ConnectionTimeoutMs  int    `yaml:"connection_timeout_ms"`
	ActionTimeoutMs      int    `yaml:"action_timeout_ms"`
	ActionRetentionMs    int    `yaml:"action_retention_ms"`
	SystemStats          *bool  `yaml:"system_stats"`
	LogLevel             string `yaml:"log_level"`
}

// fileLayer reads the optional YAML config file into an override layer. A
// missing file yields an empty layer, not an error.
func fileLayer(filename string, fileClient file.FileOperations) (Overrides, error) {
	var o Overrides
	if filename == "" {
		return o, nil
	}
	exists, err := fileClient.IsFileExists(filename)
	if err != nil || !exists {
		return o, err
	}

	var fc fileConfig
	if err := fileClient.ReadYamlFile(filename, &fc); err != nil {
		return o, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	o.CoreServerURL = strOverride(fc.CoreServerURL)
	o.CoreServerWSURL = strOverride(fc.CoreServerWSURL)
	o.HardwareID = strOverride(fc.HardwareID)
	o.DeviceName = strOverride(fc.DeviceName)
	o.HeartbeatInterval = msOverride(fc.HeartbeatIntervalMs)
	o.ReconnectInterval = msOverride(fc.ReconnectIntervalMs)
	o.MaxReconnectAttempts = fc.MaxReconnectAttempts
	o.ConnectionTimeout = msOverride(fc.ConnectionTimeoutMs)
	o.ActionTimeout = msOverride(fc.ActionTimeoutMs)
	o.ActionRetention = msOverride(fc.ActionRetentionMs)
	o.SystemStats = fc.SystemStats
	o.LogLevel = strOverride(fc.LogLevel)
	return o, nil
}

// envLayer derives an override layer from the process environment.
func envLayer() Overrides {
	var o Overrides
	o.CoreServerURL = envStr("CORE_SERVER_URL")
	o.CoreServerWSURL = envStr("CORE_SERVER_WS_URL")
	o.HardwareID = envStr("HARDWARE_ID")
	o.DeviceName = envStr("DEVICE_NAME")
	o.HeartbeatInterval = envMs("HEARTBEAT_INTERVAL_MS")
	o.ReconnectInterval = envMs("RECONNECT_INTERVAL_MS")
	o.MaxReconnectAttempts = envInt("MAX_RECONNECT_ATTEMPTS")
	o.ConnectionTimeout = envMs("CONNECTION_TIMEOUT_MS")
	o.ActionTimeout = envMs("ACTION_TIMEOUT_MS")
	o.LogLevel = envStr("LOG_LEVEL")
	return o
}

// LoadConfig builds the effective configuration by merging, in order: hard
// defaults, the optional YAML file, environment variables, and finally the
// caller-supplied overrides. The merged result is validated before return.
func LoadConfig(filename string, fileClient file.FileOperations, overrides Overrides) (*Config, error) {
	config := DefaultConfig()

	fileOverrides, err := fileLayer(filename, fileClient)
	if err != nil {
		return nil, err
	}
	fileOverrides.apply(&config)
	envLayer().apply(&config)
	overrides.apply(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate enforces the post-merge invariants.
func (c *Config) Validate() error {
	if c.CoreServerURL == "" {
		return fmt.Errorf("core server URL is required")
	}
	if c.CoreServerWSURL == "" {
		return fmt.Errorf("core server WebSocket URL is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", c.HeartbeatInterval)
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive, got %v", c.ReconnectInterval)
	}
	if c.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("max reconnect attempts must be positive, got %d", c.MaxReconnectAttempts)
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection timeout must be positive, got %v", c.ConnectionTimeout)
	}
	return nil
}

func strOverride(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func msOverride(ms int) *time.Duration {
	if ms <= 0 {
		return nil
	}
	d := time.Duration(ms) * time.Millisecond
	return &d
}

func envStr(key string) *string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return &v
	}
	return nil
}

func envMs(key string) *time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			d := time.Duration(ms) * time.Millisecond
			return &d
		}
	}
	return nil
}

func envInt(key string) *int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return &n
		}
	}
	return nil
}
