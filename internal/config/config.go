package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"streamcharts/internal/analysis"
)

// Sources of activity data
const (
	SourceAPI   = "api"
	SourceLocal = "local"
)

// Environment variables that override API credentials
const (
	EnvClientID     = "STREAMCHARTS_CLIENT_ID"
	EnvClientSecret = "STREAMCHARTS_CLIENT_SECRET"
	EnvAccessToken  = "STREAMCHARTS_ACCESS_TOKEN"
	EnvBaseURL      = "STREAMCHARTS_BASE_URL"
)

// Config represents the application configuration
type Config struct {
	Source   string        `json:"source"`
	Database string        `json:"database,omitempty"`
	API      APIConfig     `json:"api"`
	Athlete  AthleteConfig `json:"athlete"`
	Display  DisplayConfig `json:"display"`
	Live     LiveConfig    `json:"live"`
	Charts   ChartsConfig  `json:"charts"`
}

// APIConfig holds the activity server location and credentials
type APIConfig struct {
	BaseURL      string `json:"base_url"`
	TokenURL     string `json:"token_url,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
}

// AthleteConfig holds athlete-specific settings
type AthleteConfig struct {
	RestingHR *float64 `json:"resting_hr,omitempty"`
	MaxHR     float64  `json:"max_hr"`
	FTP       float64  `json:"ftp"`
}

// DisplayConfig holds display preferences
type DisplayConfig struct {
	UnitSystem string `json:"unit_system"`
}

// LiveConfig controls polling of activities that are still recording
type LiveConfig struct {
	PollSeconds int `json:"poll_seconds"`
}

// ChartsConfig holds chart behavior switches
type ChartsConfig struct {
	Deletable        bool `json:"deletable"`
	ResampleGradient bool `json:"resample_gradient"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Source:   SourceLocal,
		Database: "streamcharts.db",
		Athlete: AthleteConfig{
			MaxHR: 185,
			FTP:   200,
		},
		Display: DisplayConfig{
			UnitSystem: string(analysis.Metric),
		},
		Live: LiveConfig{
			PollSeconds: 5,
		},
	}
}

// Load reads the configuration from ~/.streamcharts/config.json and applies
// overrides from .env files and the environment
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	return cfg, nil
}

// LoadFile reads a configuration file and fills in defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for missing values
	defaults := DefaultConfig()
	if cfg.Source == "" {
		cfg.Source = defaults.Source
	}
	if cfg.Database == "" {
		cfg.Database = defaults.Database
	}
	if cfg.Athlete.MaxHR == 0 {
		cfg.Athlete.MaxHR = defaults.Athlete.MaxHR
	}
	if cfg.Athlete.FTP == 0 {
		cfg.Athlete.FTP = defaults.Athlete.FTP
	}
	if cfg.Display.UnitSystem == "" {
		cfg.Display.UnitSystem = defaults.Display.UnitSystem
	}
	if cfg.Live.PollSeconds == 0 {
		cfg.Live.PollSeconds = defaults.Live.PollSeconds
	}

	return &cfg, nil
}

// loadDotEnv loads .env from the working directory and the config
// directory. Variables already set in the environment win.
func loadDotEnv(configDir string) error {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// applyEnv overrides API settings with environment variables
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvClientID); v != "" {
		c.API.ClientID = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		c.API.ClientSecret = v
	}
	if v := os.Getenv(EnvAccessToken); v != "" {
		c.API.AccessToken = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.API.BaseURL = v
	}
}

// Save writes the configuration to ~/.streamcharts/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

// SaveFile writes the configuration to path, creating its directory
func SaveFile(path string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	resting := 50.0
	example := DefaultConfig()
	example.API = APIConfig{
		BaseURL:      "https://example.com",
		TokenURL:     "https://example.com/oauth/token",
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
	}
	example.Athlete.RestingHR = &resting

	return SaveFile(path, &example)
}

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	switch c.Source {
	case SourceLocal:
	case SourceAPI:
		if c.API.BaseURL == "" {
			return errors.New("api.base_url is required when source is \"api\"")
		}
		if c.API.AccessToken == "" {
			if c.API.ClientID == "" || c.API.ClientID == "YOUR_CLIENT_ID" {
				return errors.New("api.client_id is required without an access token")
			}
			if c.API.ClientSecret == "" || c.API.ClientSecret == "YOUR_CLIENT_SECRET" {
				return errors.New("api.client_secret is required without an access token")
			}
			if c.API.TokenURL == "" {
				return errors.New("api.token_url is required without an access token")
			}
		}
	default:
		return fmt.Errorf("source must be %q or %q, got %q", SourceAPI, SourceLocal, c.Source)
	}

	if c.Display.UnitSystem != "" {
		if _, err := analysis.ParseUnitSystem(c.Display.UnitSystem); err != nil {
			return fmt.Errorf("display.unit_system: %w", err)
		}
	}

	// Validate resting_hr < max_hr when both are set
	if c.Athlete.RestingHR != nil && c.Athlete.MaxHR > 0 && *c.Athlete.RestingHR >= c.Athlete.MaxHR {
		return fmt.Errorf("athlete.resting_hr (%v) must be less than athlete.max_hr (%v)", *c.Athlete.RestingHR, c.Athlete.MaxHR)
	}
	if c.Athlete.FTP < 0 {
		return fmt.Errorf("athlete.ftp must not be negative, got %v", c.Athlete.FTP)
	}
	if c.Live.PollSeconds < 0 {
		return fmt.Errorf("live.poll_seconds must not be negative, got %d", c.Live.PollSeconds)
	}

	return nil
}

// UnitSystem returns the configured unit system, metric when unset or invalid
func (c *Config) UnitSystem() analysis.UnitSystem {
	u, err := analysis.ParseUnitSystem(c.Display.UnitSystem)
	if err != nil {
		return analysis.Metric
	}
	return u
}

// PollInterval returns how often live activities are polled
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Live.PollSeconds) * time.Second
}

// DatabasePath resolves the database location relative to the config directory
func (c *Config) DatabasePath() (string, error) {
	if filepath.IsAbs(c.Database) {
		return c.Database, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Database), nil
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".streamcharts"), nil
}
