package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/researchapps/job-maker/internal/utils"
	"github.com/spf13/viper"
)

// AppName names the config directories and prefixes environment variables
const AppName = "job-maker"

// EnvPrefix is the prefix of environment variable overrides (JOB_MAKER_*)
const EnvPrefix = "JOB_MAKER"

// ConfigFilename is the name of the config file
const ConfigFilename = "config"

// ConfigType is the type of config file (yaml, json, toml)
const ConfigType = "yaml"

// Keys is the list of known configuration keys
var Keys = []string{
	"catalog.source",
	"catalog.timeout",
	"serve.listen_addr",
	"serve.shutdown_timeout",
	"log.level",
	"log.format",
	"log.output",
	"log.file",
}

// ErrUnknownKey is returned when setting a key that job-maker does not read
var ErrUnknownKey = errors.New("unknown config key")

// InitViper initializes Viper with proper search paths and defaults
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (JOB_MAKER_*)
// 3. User config file (~/.config/job-maker/config.yaml)
// 4. System config file (/etc/job-maker/config.yaml)
// 5. Defaults
func InitViper() error {
	viper.SetConfigName(ConfigFilename)
	viper.SetConfigType(ConfigType)

	for _, dir := range SearchPaths() {
		viper.AddConfigPath(dir)
	}

	// Environment variables; "catalog.source" reads JOB_MAKER_CATALOG_SOURCE
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults (lowest priority)
	setDefaults()

	// Read config file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SearchPaths returns the config directories in lookup order.
func SearchPaths() []string {
	var paths []string
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userConfigDir, AppName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+AppName))
	}
	paths = append(paths, filepath.Join("/etc", AppName), ".")
	return paths
}

// setDefaults sets default values for all config keys
func setDefaults() {
	viper.SetDefault("catalog.source", DefaultCatalogSource)
	viper.SetDefault("catalog.timeout", "10s")
	viper.SetDefault("serve.listen_addr", DefaultListenAddr)
	viper.SetDefault("serve.shutdown_timeout", DefaultShutdownTimeout.String())
	viper.SetDefault("log.level", DefaultLogLevel)
	viper.SetDefault("log.format", DefaultLogFormat)
	viper.SetDefault("log.output", DefaultLogOutput)
	viper.SetDefault("log.file", "")
}

// GetUserConfigPath returns the path to the user config file
func GetUserConfigPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "."+AppName, ConfigFilename+"."+ConfigType), nil
	}

	return filepath.Join(userConfigDir, AppName, ConfigFilename+"."+ConfigType), nil
}

// SaveConfig saves current Viper config to user config file
func SaveConfig() error {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	// Create directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateValue checks that value is acceptable for key before it is saved.
func ValidateValue(key, value string) error {
	if !slices.Contains(Keys, key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	switch key {
	case "catalog.timeout", "serve.shutdown_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, value)
		}
	case "log.level":
		if _, err := utils.ParseLogLevel(value); err != nil {
			return err
		}
	case "log.format":
		if value != "text" && value != "json" {
			return fmt.Errorf("log.format must be text or json, got %q", value)
		}
	case "log.output":
		if value != "stdout" && value != "stderr" && value != "file" {
			return fmt.Errorf("log.output must be stdout, stderr or file, got %q", value)
		}
	case "catalog.source", "serve.listen_addr":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	}
	return nil
}

// ValueCompletion returns suggested values for a config key
func ValueCompletion(key string) []string {
	switch key {
	case "catalog.timeout", "serve.shutdown_timeout":
		return []string{"5s", "10s", "30s", "1m"}
	case "log.level":
		return []string{"debug", "info", "warn", "error"}
	case "log.format":
		return []string{"text", "json"}
	case "log.output":
		return []string{"stdout", "stderr", "file"}
	default:
		return nil
	}
}

// EnvVar returns the environment variable that overrides key
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadFromViper loads config from Viper into Global struct
func LoadFromViper() {
	if source := viper.GetString("catalog.source"); source != "" {
		Global.CatalogSource = source
	}
	if timeout := viper.GetDuration("catalog.timeout"); timeout > 0 {
		Global.CatalogTimeout = timeout
	}
	if addr := viper.GetString("serve.listen_addr"); addr != "" {
		Global.ListenAddr = addr
	}
	if timeout := viper.GetDuration("serve.shutdown_timeout"); timeout > 0 {
		Global.ShutdownTimeout = timeout
	}

	if level := viper.GetString("log.level"); level != "" {
		Global.Log.Level = level
	}
	if format := viper.GetString("log.format"); format != "" {
		Global.Log.Format = format
	}
	if output := viper.GetString("log.output"); output != "" {
		Global.Log.Output = output
	}
	Global.Log.File = viper.GetString("log.file")
}
