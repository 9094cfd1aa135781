package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/stargrid/core/colony"
	"github.com/adalundhe/stargrid/core/edsm"
	"github.com/adalundhe/stargrid/core/galaxydb/ingest"
	"github.com/adalundhe/stargrid/core/journal"
)

// isolate moves the test into an empty working directory and points the
// user config root at a scratch directory so host files cannot leak in.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultStorePath, cfg.Store.Path)
	assert.Equal(t, colony.DefaultCandidateRange, cfg.Colony.CandidateRange)
	assert.Equal(t, colony.DefaultScanWorkers, cfg.Colony.Workers)
	assert.Equal(t, edsm.DefaultBaseURL, cfg.EDSM.BaseURL)
	assert.Equal(t, edsm.DefaultCacheDir, cfg.EDSM.CacheDir)
	assert.Equal(t, journal.DefaultPattern, cfg.Journal.Pattern)
	assert.Equal(t, journal.DefaultDedupeSize, cfg.Journal.DedupeSize)

	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultStorePath, cfg.Store.Path)
	assert.Equal(t, colony.DefaultScanWorkers, cfg.Colony.Workers)
}

func TestLoadLayersProjectOverUser(t *testing.T) {
	dir := isolate(t)

	writeFile(t, filepath.Join(dir, "xdg", "stargrid", "config.yaml"), `
edsm:
  cache_dir: /var/cache/edsm
colony:
  workers: 2
`)
	writeFile(t, filepath.Join(dir, ProjectConfigFile), `
colony:
  workers: 8
`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/edsm", cfg.EDSM.CacheDir)
	assert.Equal(t, 8, cfg.Colony.Workers)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := isolate(t)

	writeFile(t, filepath.Join(dir, ProjectConfigFile), `
store:
  path: layered.sqlite
`)
	explicit := filepath.Join(dir, "override.yaml")
	writeFile(t, explicit, `
store:
  path: explicit.sqlite
`)

	cfg, err := Load(explicit)
	require.NoError(t, err)

	// The explicit file replaces the layered files entirely.
	assert.Equal(t, "explicit.sqlite", cfg.Store.Path)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := isolate(t)

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "store: [unterminated")

	_, err := Load(bad)
	assert.Error(t, err)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	isolate(t)

	t.Setenv("STARGRID_STORE_PATH", "env.sqlite")
	t.Setenv("STARGRID_INGEST_BATCH_SIZE", "12500")
	t.Setenv("STARGRID_COLONY_WORKERS", "9")
	t.Setenv("STARGRID_EDSM_RATE", "2.5")
	t.Setenv("STARGRID_JOURNAL_PATTERN", "*.journal")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env.sqlite", cfg.Store.Path)
	assert.Equal(t, int64(12500), cfg.Ingest.BatchSize)
	assert.Equal(t, 9, cfg.Colony.Workers)
	assert.Equal(t, 2.5, cfg.EDSM.RatePerSecond)
	assert.Equal(t, "*.journal", cfg.Journal.Pattern)
}

func TestLoadEnvironmentBeatsFiles(t *testing.T) {
	dir := isolate(t)

	writeFile(t, filepath.Join(dir, ProjectConfigFile), `
store:
  path: file.sqlite
`)
	t.Setenv("STARGRID_STORE_PATH", "env.sqlite")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env.sqlite", cfg.Store.Path)
}

func TestLoadDotEnvBootstrap(t *testing.T) {
	dir := isolate(t)

	// godotenv sets real process variables; drop the one we plant.
	t.Cleanup(func() { os.Unsetenv("STARGRID_STORE_PATH") })
	writeFile(t, filepath.Join(dir, ".env"), "STARGRID_STORE_PATH=dotenv.sqlite\n")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dotenv.sqlite", cfg.Store.Path)
}

func TestValidateRejectsBadTuning(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty store path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: "store.path",
		},
		{
			name:    "negative batch size",
			mutate:  func(c *Config) { c.Ingest.BatchSize = -1 },
			wantErr: "ingest.batch_size",
		},
		{
			name:    "unparseable interval",
			mutate:  func(c *Config) { c.Ingest.TimeInterval = "soon" },
			wantErr: "ingest.time_interval",
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Ingest.TimeInterval = "-5s" },
			wantErr: "ingest.time_interval",
		},
		{
			name: "inverted time check bounds",
			mutate: func(c *Config) {
				c.Ingest.MinTimeCheckBatch = 500
				c.Ingest.MaxTimeCheckBatch = 100
			},
			wantErr: "min_time_check_batch",
		},
		{
			name:    "smoothing above one",
			mutate:  func(c *Config) { c.Ingest.RateSmoothing = 1.5 },
			wantErr: "ingest.rate_smoothing",
		},
		{
			name:    "zero candidate range",
			mutate:  func(c *Config) { c.Colony.CandidateRange = 0 },
			wantErr: "colony.candidate_range",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Colony.Workers = 0 },
			wantErr: "colony.workers",
		},
		{
			name:    "zero edsm rate",
			mutate:  func(c *Config) { c.EDSM.RatePerSecond = 0 },
			wantErr: "edsm.rate_per_second",
		},
		{
			name:    "invalid journal glob",
			mutate:  func(c *Config) { c.Journal.Pattern = "[" },
			wantErr: "journal.pattern",
		},
		{
			name:    "zero dedupe size",
			mutate:  func(c *Config) { c.Journal.DedupeSize = 0 },
			wantErr: "journal.dedupe_size",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestIngestTrackerConfig(t *testing.T) {
	ic := IngestConfig{
		BatchSize:         1_000,
		TimeInterval:      "2s",
		MinTimeCheckBatch: 20,
		MaxTimeCheckBatch: 5_000,
		RateSmoothing:     0.5,
	}

	tc := ic.TrackerConfig()
	assert.Equal(t, int64(1_000), tc.BatchSize)
	assert.Equal(t, 2*time.Second, tc.TimeInterval)
	assert.Equal(t, 20, tc.MinTimeCheckBatch)
	assert.Equal(t, 5_000, tc.MaxTimeCheckBatch)
	assert.Equal(t, 0.5, tc.RateSmoothing)

	// Unset tuning converts to the zero config so profiles stay in charge.
	assert.Equal(t, ingest.TrackerConfig{}, IngestConfig{}.TrackerConfig())
}

func TestDurationAccessors(t *testing.T) {
	assert.Equal(t, colony.DefaultReportInterval, ColonyConfig{}.Interval())
	assert.Equal(t, 3*time.Second, ColonyConfig{ReportInterval: "3s"}.Interval())

	assert.Equal(t, edsm.DefaultTimeout, EDSMConfig{}.RequestTimeout())
	assert.Equal(t, time.Minute, EDSMConfig{Timeout: "1m"}.RequestTimeout())
}
