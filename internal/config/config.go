package config

import (
	"time"

	"github.com/researchapps/job-maker/internal/catalog"
)

const VERSION = "0.3.0"

// Config holds global application settings
type Config struct {
	Debug   bool
	Version string

	CatalogSource  string
	CatalogTimeout time.Duration

	ListenAddr      string
	ShutdownTimeout time.Duration

	Log LogConfig
}

// LogConfig holds structured logging settings for the web server
type LogConfig struct {
	Level  string
	Format string // text or json
	Output string // stdout, stderr or file
	File   string
}

// Global holds the singleton configuration instance
var Global Config

// Default values, shared by LoadDefaults and the viper defaults
const (
	DefaultCatalogSource   = "data/machines.json"
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultLogOutput       = "stderr"
)

// LoadDefaults resets Global to built-in defaults.
func LoadDefaults() {
	Global = Config{
		Debug:           false,
		Version:         VERSION,
		CatalogSource:   DefaultCatalogSource,
		CatalogTimeout:  catalog.DefaultTimeout,
		ListenAddr:      DefaultListenAddr,
		ShutdownTimeout: DefaultShutdownTimeout,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
	}
}
