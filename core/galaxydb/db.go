package galaxydb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// GalaxyDB is the sqlite-backed record store for star systems and their
// population data. It owns all persisted rows; the spatial grid columns are
// a derived projection maintained on every system upsert.
type GalaxyDB struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// DBConfig configures the database connection pool.
//
// Reads (point lookups, radius scans) benefit from a modest pool. Bulk
// ingestion pins a single connection through its explicit transaction, so
// BulkDBConfig narrows the pool to one writer. In-memory paths must use a
// single connection: each new connection to :memory: is a distinct database.
type DBConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Connection pool configuration bounds.
const (
	// MinOpenConns is the minimum allowed value for MaxOpenConns.
	MinOpenConns = 1
	// MaxOpenConnsLimit is the maximum allowed value for MaxOpenConns.
	MaxOpenConnsLimit = 100
	// DefaultMaxOpenConns suits read-mostly query workloads.
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns keeps warm connections for repeated scans.
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime prevents stale connections.
	DefaultConnMaxLifetime = time.Hour
	// DefaultConnMaxIdleTime releases idle connections after inactivity.
	DefaultConnMaxIdleTime = 30 * time.Minute

	// MemoryPath opens a private in-memory store.
	MemoryPath = ":memory:"
)

// DefaultDBConfig returns a configuration suitable for query workloads.
func DefaultDBConfig(path string) DBConfig {
	return DBConfig{
		Path:            path,
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxIdleConns:    DefaultMaxIdleConns,
		ConnMaxLifetime: DefaultConnMaxLifetime,
		ConnMaxIdleTime: DefaultConnMaxIdleTime,
	}
}

// BulkDBConfig returns a single-writer configuration for snapshot ingestion.
func BulkDBConfig(path string) DBConfig {
	return DBConfig{
		Path:            path,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Validate checks the configuration values and returns an error if invalid.
func (c DBConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("db config: path is required")
	}
	if c.MaxOpenConns < MinOpenConns || c.MaxOpenConns > MaxOpenConnsLimit {
		return fmt.Errorf("db config: MaxOpenConns must be between %d and %d, got %d",
			MinOpenConns, MaxOpenConnsLimit, c.MaxOpenConns)
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("db config: MaxIdleConns must not be negative, got %d", c.MaxIdleConns)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("db config: MaxIdleConns (%d) cannot exceed MaxOpenConns (%d)",
			c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.Path == MemoryPath && c.MaxOpenConns != 1 {
		return fmt.Errorf("db config: in-memory store requires MaxOpenConns=1, got %d", c.MaxOpenConns)
	}
	return nil
}

// DBOption is a functional option for configuring DBConfig.
type DBOption func(*DBConfig)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) DBOption {
	return func(c *DBConfig) { c.MaxOpenConns = n }
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) DBOption {
	return func(c *DBConfig) { c.MaxIdleConns = n }
}

// WithConnMaxLifetime sets the maximum connection lifetime.
func WithConnMaxLifetime(d time.Duration) DBOption {
	return func(c *DBConfig) { c.ConnMaxLifetime = d }
}

// Open opens a store with default configuration.
func Open(path string) (*GalaxyDB, error) {
	return OpenWithConfig(DefaultDBConfig(path))
}

// OpenWithOptions opens a store with functional options applied to defaults.
func OpenWithOptions(path string, opts ...DBOption) (*GalaxyDB, error) {
	config := DefaultDBConfig(path)
	for _, opt := range opts {
		opt(&config)
	}
	return OpenWithConfig(config)
}

// OpenWithConfig opens a store with the given configuration.
// The configuration is validated before opening the database.
func OpenWithConfig(config DBConfig) (*GalaxyDB, error) {
	if config.Path == MemoryPath {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_synchronous=normal", config.Path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", config.Path, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at %s: %w", config.Path, err)
	}

	gdb := &GalaxyDB{
		db:   db,
		path: config.Path,
	}

	if err := gdb.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database at %s: %w", config.Path, err)
	}

	if err := gdb.EnsureIndexes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create indexes at %s: %w", config.Path, err)
	}

	return gdb, nil
}

func (g *GalaxyDB) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.db == nil {
		return nil
	}

	return g.db.Close()
}

func (g *GalaxyDB) Migrate() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.db.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema on %s: %w", g.path, err)
	}

	return nil
}

// EnsureIndexes creates any missing indexes. Idempotent; pairs with
// DropIndexes around bulk loads.
func (g *GalaxyDB) EnsureIndexes() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_grid_coords ON systems(grid_x, grid_y, grid_z)",
		"CREATE INDEX IF NOT EXISTS idx_sys_name ON systems(name)",
		"CREATE INDEX IF NOT EXISTS idx_controlling_faction ON population_data(controlling_faction)",
	}

	for _, idx := range indexes {
		if _, err := g.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// DropIndexes removes the secondary indexes ahead of a bulk load. The grid
// projection itself lives in the row columns, so dropping indexes never
// loses bucket data.
func (g *GalaxyDB) DropIndexes() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	indexes := []string{
		"DROP INDEX IF EXISTS idx_grid_coords",
		"DROP INDEX IF EXISTS idx_sys_name",
		"DROP INDEX IF EXISTS idx_controlling_faction",
	}

	for _, idx := range indexes {
		if _, err := g.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to drop index: %w", err)
		}
	}

	return nil
}

// Analyze refreshes the query planner statistics. Ingestion calls this after
// its final commit so large loads do not leave the planner with stale row
// estimates.
func (g *GalaxyDB) Analyze() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.db.Exec("ANALYZE")
	if err != nil {
		return fmt.Errorf("failed to analyze database at %s: %w", g.path, err)
	}

	return nil
}

func (g *GalaxyDB) Vacuum() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.db.Exec("VACUUM")
	if err != nil {
		return fmt.Errorf("failed to vacuum database at %s: %w", g.path, err)
	}

	return nil
}

// DBStats summarizes store contents.
type DBStats struct {
	TotalSystems    int64
	TotalPopulated  int64
	TotalFactions   int64
	UnclaimedOwners int64
	DBSizeBytes     int64
}

func (g *GalaxyDB) Stats() (*DBStats, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := &DBStats{}

	if err := g.db.QueryRow("SELECT COUNT(*) FROM systems").Scan(&stats.TotalSystems); err != nil {
		return nil, fmt.Errorf("failed to count systems: %w", err)
	}

	if err := g.db.QueryRow("SELECT COUNT(*) FROM population_data").Scan(&stats.TotalPopulated); err != nil {
		return nil, fmt.Errorf("failed to count population rows: %w", err)
	}

	if err := g.db.QueryRow(
		"SELECT COUNT(DISTINCT controlling_faction) FROM population_data WHERE controlling_faction != ''",
	).Scan(&stats.TotalFactions); err != nil {
		return nil, fmt.Errorf("failed to count factions: %w", err)
	}

	if err := g.db.QueryRow(
		"SELECT COUNT(*) FROM population_data WHERE controlling_faction = ''",
	).Scan(&stats.UnclaimedOwners); err != nil {
		return nil, fmt.Errorf("failed to count unclaimed rows: %w", err)
	}

	g.collectDBSize(stats)
	return stats, nil
}

func (g *GalaxyDB) collectDBSize(stats *DBStats) {
	if g.path == MemoryPath {
		return
	}
	fileInfo, err := os.Stat(g.path)
	if err == nil {
		stats.DBSizeBytes = fileInfo.Size()
	}
}

func (g *GalaxyDB) DB() *sql.DB {
	return g.db
}

func (g *GalaxyDB) Path() string {
	return g.path
}

func (g *GalaxyDB) BeginTx() (*sql.Tx, error) {
	return g.db.Begin()
}
