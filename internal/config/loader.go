package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const configName = "gatesession"

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for gatesession.yaml/.yml in standard locations.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// ReadInConfig then returns ConfigFileNotFoundError, which callers tolerate.
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	// Environment variable support: GATESESSION_GATEWAY_HTTP_ADDR
	viper.SetEnvPrefix("GATESESSION")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches the current directory, $HOME/.gatesession and
// /etc/gatesession. An explicit extension keeps the binary itself from matching.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	return findConfigFileInPaths([]string{
		".",
		filepath.Join(home, ".gatesession"),
		"/etc/gatesession",
	})
}

// findConfigFileInPaths returns the first gatesession.yaml or .yml found in paths.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, configName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested keys so that they can be set from the environment.
// Example: GATESESSION_SESSIOND_REDIS_ADDR overrides sessiond.redis.addr
func bindNestedEnvKeys() {
	_ = viper.BindEnv("log_level")

	// Gateway
	_ = viper.BindEnv("gateway.http_addr")
	_ = viper.BindEnv("gateway.profiles_url")
	_ = viper.BindEnv("gateway.profiles_timeout")
	_ = viper.BindEnv("gateway.session.store_url")
	_ = viper.BindEnv("gateway.session.expires_after")
	_ = viper.BindEnv("gateway.session.timeout")
	_ = viper.BindEnv("gateway.session.attempts")
	_ = viper.BindEnv("gateway.session.cookie_name")
	_ = viper.BindEnv("gateway.session.cookie_domain")
	_ = viper.BindEnv("gateway.session.secure")
	_ = viper.BindEnv("gateway.session.same_site")

	// Session service
	_ = viper.BindEnv("sessiond.http_addr")
	_ = viper.BindEnv("sessiond.base_path")
	_ = viper.BindEnv("sessiond.backend")
	_ = viper.BindEnv("sessiond.dsn")
	_ = viper.BindEnv("sessiond.memcached_servers")
	_ = viper.BindEnv("sessiond.redis.addr")
	_ = viper.BindEnv("sessiond.redis.password")
	_ = viper.BindEnv("sessiond.redis.db")
	_ = viper.BindEnv("sessiond.redis.prefix")
	_ = viper.BindEnv("sessiond.retention")
	_ = viper.BindEnv("sessiond.cleanup_interval")
	_ = viper.BindEnv("sessiond.max_session_bytes")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults and validates the result.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: environment variables only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded configuration file, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
