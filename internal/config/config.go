package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "timely/internal/log"
	"timely/internal/slots"
)

// EnvConfigPath overrides the default config path when set.
const EnvConfigPath = "TIMELY_CONFIG"

// DefaultPath is used when neither --config nor TIMELY_CONFIG is given.
const DefaultPath = "/etc/timely/config.yaml"

// ICSConfig describes a single ICS subscription that contributes busy time.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging and cache keys.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// CatalogConfig points at the remote activity template table.
type CatalogConfig struct {
	// URL of an Airtable-style records endpoint. Empty means built-in
	// activities only.
	URL     string `yaml:"url" json:"url"`
	APIKey  string `yaml:"api_key" json:"-"`
	Timeout int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// StoreConfig selects the preference store backend.
type StoreConfig struct {
	// Backend is "file" (default) or "redis".
	Backend       string `yaml:"backend" json:"backend"`
	Path          string `yaml:"path" json:"path"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone whose civil calendar bounds days and
	// working hours (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel   string `yaml:"log_level" json:"log_level"`
	LogConsole bool   `yaml:"log_console" json:"log_console"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for
	// re-fetching ICS sources in the background.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is how many days a proposal covers when the caller does
	// not say.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// WorkingHours is the initial policy; user preferences override it.
	WorkingHours slots.WorkingHoursPolicy `yaml:"working_hours" json:"working_hours"`

	// DefaultDuration in minutes, used when an activity has none.
	DefaultDuration int `yaml:"default_duration" json:"default_duration"`

	// Cadence in minutes between candidate slot starts.
	Cadence int `yaml:"cadence" json:"cadence"`

	// ICS is the list of calendars whose events count as busy time.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LocalCalendar is the ICS file confirmed events are written to.
	LocalCalendar string `yaml:"local_calendar" json:"local_calendar"`

	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`
	Store   StoreConfig   `yaml:"store" json:"store"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		Timezone:        "Local",
		LogLevel:        "info",
		RefreshCron:     "*/15 * * * *",
		HorizonDays:     7,
		WorkingHours:    slots.DefaultWorkingHours(),
		DefaultDuration: slots.DefaultDurationMinutes,
		Cadence:         slots.DefaultCadenceMinutes,
		ICS:             []ICSConfig{},
		CacheDir:        "/var/lib/timely/ics-cache",
		LocalCalendar:   "/var/lib/timely/timely.ics",
		Catalog:         CatalogConfig{Timeout: 10},
		Store: StoreConfig{
			Backend:     "file",
			Path:        "/var/lib/timely/store.yaml",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "timely:",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if err := c.WorkingHours.Validate(); err != nil {
		// Zero value or garbage; keep the service usable.
		if c.WorkingHours != (slots.WorkingHoursPolicy{}) {
			appLog.Warn("invalid working hours in config; using defaults",
				"start_hour", c.WorkingHours.StartHour, "end_hour", c.WorkingHours.EndHour)
		}
		c.WorkingHours = def.WorkingHours
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = def.DefaultDuration
	}
	if c.Cadence <= 0 {
		c.Cadence = def.Cadence
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			if c.ICS[i].Name != "" {
				c.ICS[i].ID = c.ICS[i].Name
			} else {
				c.ICS[i].ID = c.ICS[i].URL
			}
		}
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.LocalCalendar == "" {
		c.LocalCalendar = def.LocalCalendar
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = def.Catalog.Timeout
	}
	switch strings.ToLower(c.Store.Backend) {
	case "file", "redis":
		c.Store.Backend = strings.ToLower(c.Store.Backend)
	default:
		c.Store.Backend = def.Store.Backend
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = def.Store.RedisAddr
	}
	if c.Store.RedisPrefix == "" {
		c.Store.RedisPrefix = def.Store.RedisPrefix
	}
}

// Location resolves Timezone, falling back to time.Local for "Local" or an
// unknown zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// CatalogTimeout returns Catalog.Timeout as a duration.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.Timeout) * time.Second
}

// ResolvePath picks the config path: explicit flag, then TIMELY_CONFIG,
// then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return DefaultPath
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, write a default config with 0600 perms
//     (creating the parent directory) and return it.
//   - Otherwise read YAML, unmarshal, and normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether a read-only location is fatal.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data next to path and renames it into place, so
// readers never observe a half-written file. The parent directory is
// created with 0700 and the file ends up 0600.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".timely-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
