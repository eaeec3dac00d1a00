// Package config provides configuration management for the autocut agent.
// Configuration is loaded from environment variables, optionally seeded from
// a .env file, with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort        = 8788
	DefaultLogLevel    = "info"
	DefaultDataDir     = ".autocut"
	DefaultThreshold   = 5.0
	DefaultMinSceneLen = 12
	DefaultContainer   = "mp4"
	DefaultClipPrefix  = "clip"
	DefaultDetectWidth = 128

	// Environment variable names
	EnvPort        = "AUTOCUT_PORT"
	EnvLogLevel    = "AUTOCUT_LOG_LEVEL"
	EnvDataDir     = "AUTOCUT_DATA_DIR"
	EnvHeadless    = "AUTOCUT_HEADLESS"
	EnvThreshold   = "AUTOCUT_THRESHOLD"
	EnvMinSceneLen = "AUTOCUT_MIN_SCENE_LEN"
	EnvContainer   = "AUTOCUT_CONTAINER"
	EnvClipPrefix  = "AUTOCUT_CLIP_PREFIX"
	EnvDetectWidth = "AUTOCUT_DETECT_WIDTH"

	// Database filename
	DBFilename = "autocut.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportDir() string
	Headless() bool
	Threshold() float64
	MinSceneLen() int
	Container() string
	ClipPrefix() string
	DetectWidth() int
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port        int
	logLevel    string
	dataDir     string
	headless    bool
	threshold   float64
	minSceneLen int
	container   string
	clipPrefix  string
	detectWidth int
}

// New loads ./.env if present, then builds an EnvConfig from defaults and
// environment overrides. Variables already set in the environment win over
// the file.
func New() (*EnvConfig, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds an EnvConfig from the process environment only.
func FromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:        DefaultPort,
		logLevel:    DefaultLogLevel,
		dataDir:     defaultDataDir(),
		threshold:   DefaultThreshold,
		minSceneLen: DefaultMinSceneLen,
		container:   DefaultContainer,
		clipPrefix:  DefaultClipPrefix,
		detectWidth: DefaultDetectWidth,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		switch strings.ToLower(ll) {
		case "debug", "info", "warn", "warning", "error":
			cfg.logLevel = strings.ToLower(ll)
		default:
			return nil, fmt.Errorf("invalid %s: %q", EnvLogLevel, ll)
		}
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	if th := os.Getenv(EnvThreshold); th != "" {
		v, err := strconv.ParseFloat(th, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvThreshold, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvThreshold)
		}
		cfg.threshold = v
	}

	if ml := os.Getenv(EnvMinSceneLen); ml != "" {
		v, err := strconv.Atoi(ml)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMinSceneLen, err)
		}
		if v < 1 {
			return nil, fmt.Errorf("invalid %s: must be at least 1", EnvMinSceneLen)
		}
		cfg.minSceneLen = v
	}

	if c := os.Getenv(EnvContainer); c != "" {
		c = strings.TrimPrefix(strings.ToLower(c), ".")
		if c == "" || strings.ContainsAny(c, `/\ `) {
			return nil, fmt.Errorf("invalid %s: %q", EnvContainer, c)
		}
		cfg.container = c
	}

	if cp := os.Getenv(EnvClipPrefix); cp != "" {
		cfg.clipPrefix = cp
	}

	if dw := os.Getenv(EnvDetectWidth); dw != "" {
		v, err := strconv.Atoi(dw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvDetectWidth, err)
		}
		if v < 16 {
			return nil, fmt.Errorf("invalid %s: must be at least 16", EnvDetectWidth)
		}
		cfg.detectWidth = v
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportDir is where clips go when a request names no output directory.
func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) Threshold() float64 {
	return c.threshold
}

func (c *EnvConfig) MinSceneLen() int {
	return c.minSceneLen
}

func (c *EnvConfig) Container() string {
	return c.container
}

func (c *EnvConfig) ClipPrefix() string {
	return c.clipPrefix
}

// DetectWidth is the width frames are scaled to before scene detection.
func (c *EnvConfig) DetectWidth() int {
	return c.detectWidth
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
