// Package config loads the layered runtime configuration: built-in
// defaults, then the user and project YAML files, then STARGRID_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/stargrid/core/colony"
	"github.com/adalundhe/stargrid/core/edsm"
	"github.com/adalundhe/stargrid/core/galaxydb/ingest"
	"github.com/adalundhe/stargrid/core/journal"
)

const (
	// DefaultStorePath is the store file used when nothing else names one.
	DefaultStorePath = "galaxy_grid.sqlite"

	// ProjectConfigFile is the project-level file searched in the working
	// directory.
	ProjectConfigFile = "stargrid.yaml"

	userConfigDir  = "stargrid"
	userConfigFile = "config.yaml"
)

type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Colony  ColonyConfig  `yaml:"colony"`
	EDSM    EDSMConfig    `yaml:"edsm"`
	Journal JournalConfig `yaml:"journal"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig tunes the commit policy for snapshot loads. Zero values
// keep the per-command profiles.
type IngestConfig struct {
	BatchSize         int64   `yaml:"batch_size"`
	TimeInterval      string  `yaml:"time_interval"`
	MinTimeCheckBatch int     `yaml:"min_time_check_batch"`
	MaxTimeCheckBatch int     `yaml:"max_time_check_batch"`
	RateSmoothing     float64 `yaml:"rate_smoothing"`
}

type ColonyConfig struct {
	CandidateRange float64 `yaml:"candidate_range"`
	ReportInterval string  `yaml:"report_interval"`
	Workers        int     `yaml:"workers"`
}

type EDSMConfig struct {
	BaseURL       string  `yaml:"base_url"`
	CacheDir      string  `yaml:"cache_dir"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Timeout       string  `yaml:"timeout"`
}

type JournalConfig struct {
	Pattern    string `yaml:"pattern"`
	DedupeSize int    `yaml:"dedupe_size"`
}

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: DefaultStorePath,
		},
		Colony: ColonyConfig{
			CandidateRange: colony.DefaultCandidateRange,
			ReportInterval: colony.DefaultReportInterval.String(),
			Workers:        colony.DefaultScanWorkers,
		},
		EDSM: EDSMConfig{
			BaseURL:       edsm.DefaultBaseURL,
			CacheDir:      edsm.DefaultCacheDir,
			RatePerSecond: float64(edsm.DefaultRateLimit),
			Timeout:       edsm.DefaultTimeout.String(),
		},
		Journal: JournalConfig{
			Pattern:    journal.DefaultPattern,
			DedupeSize: journal.DefaultDedupeSize,
		},
	}
}

// Load builds the effective configuration. With an empty path the layered
// files are consulted (missing ones tolerated); an explicit path replaces
// them and must exist. A .env file in the working directory is folded into
// the environment first.
func Load(explicit string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if explicit != "" {
		data, err := os.ReadFile(explicit)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", explicit, err)
		}
	} else {
		if err := loadYAMLFile(userConfigPath(), cfg); err != nil {
			return nil, fmt.Errorf("user config: %w", err)
		}
		if err := loadYAMLFile(ProjectConfigFile, cfg); err != nil {
			return nil, fmt.Errorf("project config: %w", err)
		}
	}

	applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv folds a .env file into the process environment when present.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// userConfigPath resolves the per-user file, ~/.config/stargrid/config.yaml
// on Linux. Empty when no user config directory is resolvable.
func userConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, userConfigDir, userConfigFile)
}

func loadYAMLFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("STARGRID_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("STARGRID_INGEST_BATCH_SIZE"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Ingest.BatchSize = int64(n)
		}
	}
	if v := os.Getenv("STARGRID_INGEST_TIME_INTERVAL"); v != "" {
		cfg.Ingest.TimeInterval = v
	}
	if v := os.Getenv("STARGRID_INGEST_MIN_TIME_CHECK_BATCH"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Ingest.MinTimeCheckBatch = n
		}
	}
	if v := os.Getenv("STARGRID_INGEST_MAX_TIME_CHECK_BATCH"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Ingest.MaxTimeCheckBatch = n
		}
	}
	if v := os.Getenv("STARGRID_INGEST_RATE_SMOOTHING"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Ingest.RateSmoothing = f
		}
	}
	if v := os.Getenv("STARGRID_COLONY_CANDIDATE_RANGE"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Colony.CandidateRange = f
		}
	}
	if v := os.Getenv("STARGRID_COLONY_REPORT_INTERVAL"); v != "" {
		cfg.Colony.ReportInterval = v
	}
	if v := os.Getenv("STARGRID_COLONY_WORKERS"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Colony.Workers = n
		}
	}
	if v := os.Getenv("STARGRID_EDSM_BASE_URL"); v != "" {
		cfg.EDSM.BaseURL = v
	}
	if v := os.Getenv("STARGRID_EDSM_CACHE_DIR"); v != "" {
		cfg.EDSM.CacheDir = v
	}
	if v := os.Getenv("STARGRID_EDSM_RATE"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.EDSM.RatePerSecond = f
		}
	}
	if v := os.Getenv("STARGRID_EDSM_TIMEOUT"); v != "" {
		cfg.EDSM.Timeout = v
	}
	if v := os.Getenv("STARGRID_JOURNAL_PATTERN"); v != "" {
		cfg.Journal.Pattern = v
	}
	if v := os.Getenv("STARGRID_JOURNAL_DEDUPE_SIZE"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Journal.DedupeSize = n
		}
	}
}

// Validate rejects tuning values that cannot produce a working process.
// Unset optional values pass; their consumers apply defaults.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	if c.Ingest.BatchSize < 0 {
		return fmt.Errorf("ingest.batch_size cannot be negative: %d", c.Ingest.BatchSize)
	}
	if err := validateDuration("ingest.time_interval", c.Ingest.TimeInterval); err != nil {
		return err
	}
	if c.Ingest.MinTimeCheckBatch < 0 {
		return fmt.Errorf("ingest.min_time_check_batch cannot be negative: %d", c.Ingest.MinTimeCheckBatch)
	}
	if c.Ingest.MaxTimeCheckBatch < 0 {
		return fmt.Errorf("ingest.max_time_check_batch cannot be negative: %d", c.Ingest.MaxTimeCheckBatch)
	}
	if c.Ingest.MinTimeCheckBatch > 0 && c.Ingest.MaxTimeCheckBatch > 0 &&
		c.Ingest.MinTimeCheckBatch > c.Ingest.MaxTimeCheckBatch {
		return fmt.Errorf("ingest.min_time_check_batch %d exceeds ingest.max_time_check_batch %d",
			c.Ingest.MinTimeCheckBatch, c.Ingest.MaxTimeCheckBatch)
	}
	if c.Ingest.RateSmoothing < 0 || c.Ingest.RateSmoothing > 1 {
		return fmt.Errorf("ingest.rate_smoothing must be within (0, 1]: %v", c.Ingest.RateSmoothing)
	}

	if c.Colony.CandidateRange <= 0 {
		return fmt.Errorf("colony.candidate_range must be positive: %v", c.Colony.CandidateRange)
	}
	if err := validateDuration("colony.report_interval", c.Colony.ReportInterval); err != nil {
		return err
	}
	if c.Colony.Workers < 1 {
		return fmt.Errorf("colony.workers must be at least 1: %d", c.Colony.Workers)
	}

	if c.EDSM.BaseURL == "" {
		return fmt.Errorf("edsm.base_url is required")
	}
	if c.EDSM.CacheDir == "" {
		return fmt.Errorf("edsm.cache_dir is required")
	}
	if c.EDSM.RatePerSecond <= 0 {
		return fmt.Errorf("edsm.rate_per_second must be positive: %v", c.EDSM.RatePerSecond)
	}
	if err := validateDuration("edsm.timeout", c.EDSM.Timeout); err != nil {
		return err
	}

	if c.Journal.Pattern == "" {
		return fmt.Errorf("journal.pattern is required")
	}
	if _, err := glob.Compile(c.Journal.Pattern); err != nil {
		return fmt.Errorf("journal.pattern: %w", err)
	}
	if c.Journal.DedupeSize < 1 {
		return fmt.Errorf("journal.dedupe_size must be at least 1: %d", c.Journal.DedupeSize)
	}

	return nil
}

func validateDuration(key, value string) error {
	if value == "" {
		return nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive: %s", key, value)
	}
	return nil
}

// TrackerConfig converts the tuning values into commit tracker overrides.
// Unset fields stay zero so the per-command profiles keep their defaults.
func (c IngestConfig) TrackerConfig() ingest.TrackerConfig {
	return ingest.TrackerConfig{
		BatchSize:         c.BatchSize,
		TimeInterval:      parseDuration(c.TimeInterval),
		MinTimeCheckBatch: c.MinTimeCheckBatch,
		MaxTimeCheckBatch: c.MaxTimeCheckBatch,
		RateSmoothing:     c.RateSmoothing,
	}
}

// Interval returns the parsed progress report interval.
func (c ColonyConfig) Interval() time.Duration {
	if d := parseDuration(c.ReportInterval); d > 0 {
		return d
	}
	return colony.DefaultReportInterval
}

// RequestTimeout returns the parsed enrichment request timeout.
func (c EDSMConfig) RequestTimeout() time.Duration {
	if d := parseDuration(c.Timeout); d > 0 {
		return d
	}
	return edsm.DefaultTimeout
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err
}
