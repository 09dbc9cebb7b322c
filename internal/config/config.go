package config

import (
	"fmt"
	"time"
)

// Config represents the complete agent configuration
type Config struct {
	Agent   AgentConfig   `mapstructure:"agent"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AgentConfig represents the high-availability agent configuration
type AgentConfig struct {
	MgrCommand string `mapstructure:"mgr_command"` // Management binary invoked for mount/start actions
	Namespace  string `mapstructure:"namespace"`   // Key prefix in the coordinator KV store
	// WatchFanout bounds how many peer hosts this node monitors. Every
	// non-standalone host ends up watched by at most this many
	// non-standalone peers; standalone hosts pick their ring successors on
	// top of that.
	WatchFanout int `mapstructure:"watch_fanout"`
	// LocalHostname overrides os.Hostname(). Useful when the kernel hostname
	// differs from the name used in the cluster configuration.
	LocalHostname string `mapstructure:"local_hostname"`
}

// EtcdConfig represents etcd configuration
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`

	// TLS material. All three must be set together for mutual TLS; only
	// TrustedCAFile for server-auth only.
	CertFile      string `mapstructure:"cert_file"`
	KeyFile       string `mapstructure:"key_file"`
	TrustedCAFile string `mapstructure:"trusted_ca_file"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}

	if err := c.Etcd.Validate(); err != nil {
		return fmt.Errorf("etcd config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates agent configuration
func (c *AgentConfig) Validate() error {
	if c.MgrCommand == "" {
		return fmt.Errorf("agent.mgr_command is required")
	}

	if c.Namespace == "" {
		return fmt.Errorf("agent.namespace is required")
	}

	if c.WatchFanout < 1 {
		return fmt.Errorf("agent.watch_fanout must be at least 1")
	}

	return nil
}

// Validate validates etcd configuration
func (c *EtcdConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required")
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("etcd.dial_timeout must be positive")
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("etcd.cert_file and etcd.key_file must be set together")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
