// Package config provides configuration management for netbinder.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (NETWORK_URL, COMPUTE_AVAILABILITY_ZONE, LOG_LEVEL, ...)
// 3. Default values
//
// Import Path: netbinder.io/netbinder/internal/config
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Network backends.
const (
	BackendNeutron = "neutron"
	BackendMemory  = "memory"
)

// Auth strategies for the neutron backend.
const (
	AuthKeystone = "keystone"
	AuthNoAuth   = "noauth"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Network NetworkConfig `mapstructure:"network"`
	Compute ComputeConfig `mapstructure:"compute"`
	Worker  WorkerConfig  `mapstructure:"worker"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// NetworkConfig describes how to reach the remote network service.
type NetworkConfig struct {
	Backend string        `mapstructure:"backend"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Region  string        `mapstructure:"region"`

	AuthStrategy    string `mapstructure:"auth_strategy"`
	AdminUsername   string `mapstructure:"admin_username"`
	AdminPassword   string `mapstructure:"admin_password"`
	AdminTenantName string `mapstructure:"admin_tenant_name"`
	AdminAuthURL    string `mapstructure:"admin_auth_url"`

	// SeedFile is a YAML fixture loaded into the memory backend at startup.
	SeedFile string `mapstructure:"seed_file"`

	HealthInterval time.Duration `mapstructure:"health_interval"`
}

// ComputeConfig carries the compute-node values stamped onto ports and models.
type ComputeConfig struct {
	AvailabilityZone string `mapstructure:"availability_zone"`
	FlatInjected     bool   `mapstructure:"flat_injected"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	NetworkPoolSize int `mapstructure:"network_pool_size"`
}

// Load reads configuration from the default search paths and the environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path when non-empty, otherwise from the
// default search paths. Environment variables always take precedence.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/netbinder")
	}

	// network.admin_password → NETWORK_ADMIN_PASSWORD
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	switch c.Network.Backend {
	case BackendMemory:
		return nil
	case BackendNeutron:
	default:
		return fmt.Errorf("network.backend %q is not one of %s, %s", c.Network.Backend, BackendNeutron, BackendMemory)
	}

	if strings.TrimSpace(c.Network.URL) == "" {
		return fmt.Errorf("network.url must not be empty")
	}
	switch c.Network.AuthStrategy {
	case AuthNoAuth:
	case AuthKeystone:
		if c.Network.AdminAuthURL == "" {
			return fmt.Errorf("network.admin_auth_url is required for keystone auth")
		}
		if c.Network.AdminUsername == "" || c.Network.AdminPassword == "" {
			return fmt.Errorf("network.admin_username and network.admin_password are required for keystone auth")
		}
	default:
		return fmt.Errorf("network.auth_strategy %q is not one of %s, %s", c.Network.AuthStrategy, AuthKeystone, AuthNoAuth)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allow_credentials", true)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Network service
	v.SetDefault("network.backend", BackendNeutron)
	v.SetDefault("network.url", "http://127.0.0.1:9696")
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.region", "")
	v.SetDefault("network.auth_strategy", AuthKeystone)
	v.SetDefault("network.admin_username", "")
	v.SetDefault("network.admin_password", "")
	v.SetDefault("network.admin_tenant_name", "")
	v.SetDefault("network.admin_auth_url", "http://localhost:5000/v2.0")
	v.SetDefault("network.seed_file", "")
	v.SetDefault("network.health_interval", "30s")

	// Compute
	v.SetDefault("compute.availability_zone", "nova")
	v.SetDefault("compute.flat_injected", false)

	// Worker pools
	v.SetDefault("worker.general_pool_size", 100)
	v.SetDefault("worker.network_pool_size", 50)
}
