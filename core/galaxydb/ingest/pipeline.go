package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/stargrid/core/galaxydb"
)

// =============================================================================
// Ingestion Pipeline
// =============================================================================

// Bulk connection tuning for sustained writes.
const (
	bulkCacheSizeKB = 100_000
	bulkMmapBytes   = 1 << 30
)

// Pipeline streams galaxy dumps into the store under the adaptive commit
// policy. One explicit transaction spans each commit interval; statements
// are prepared per transaction and rebuilt after every commit.
type Pipeline struct {
	db        *galaxydb.GalaxyDB
	logger    *slog.Logger
	progress  ProgressFunc
	batchSize int64
	overrides TrackerConfig
}

// ProgressFunc receives tracker snapshots on every commit and once at
// completion.
type ProgressFunc func(stats TrackerStats)

// PipelineOption is a functional option for configuring a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the structured logger for ingestion runs.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithProgress sets the commit-time progress callback.
func WithProgress(fn ProgressFunc) PipelineOption {
	return func(p *Pipeline) { p.progress = fn }
}

// WithBatchSize overrides the commit batch size for both load kinds. Zero
// keeps the per-command defaults.
func WithBatchSize(n int64) PipelineOption {
	return func(p *Pipeline) { p.batchSize = n }
}

// WithTrackerConfig overlays non-zero commit tuning values onto the
// per-command tracker profile. An explicit WithBatchSize still wins.
func WithTrackerConfig(config TrackerConfig) PipelineOption {
	return func(p *Pipeline) { p.overrides = config }
}

// NewPipeline creates a pipeline writing to db.
func NewPipeline(db *galaxydb.GalaxyDB, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Result summarizes one ingestion run.
type Result struct {
	// Records is the count of rows written.
	Records int64
	// Skipped counts records dropped by the not-populated rule.
	Skipped int64
	// Malformed counts records dropped because required fields were
	// missing or undecodable.
	Malformed int64
	// Commits is the number of transactions committed, final included.
	Commits int64
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// txWriter is the write path for one commit interval: a record transform
// bound to statements prepared on the live transaction.
type txWriter struct {
	// write persists one record. A false return with nil error is a
	// silent skip.
	write func(rec *RawRecord) (bool, error)
	close func() error
}

// bindFunc prepares a txWriter on a fresh transaction.
type bindFunc func(tx *sql.Tx) (*txWriter, error)

// IngestSystems streams a systems dump into the systems table.
func (p *Pipeline) IngestSystems(ctx context.Context, path string) (*Result, error) {
	store := galaxydb.NewSystemStore(p.db)

	bind := func(tx *sql.Tx) (*txWriter, error) {
		up, err := store.PrepareUpsert(tx)
		if err != nil {
			return nil, err
		}
		return &txWriter{
			write: func(rec *RawRecord) (bool, error) {
				sys, err := rec.System()
				if err != nil {
					return false, err
				}
				return true, up.Upsert(sys)
			},
			close: up.Close,
		}, nil
	}

	return p.run(ctx, path, "systems", SystemsTrackerConfig(), bind)
}

// IngestPopulation streams a dump into the population table. Systems
// without meaningful population are skipped, not erased: staleness from a
// snapshot that no longer lists a system is accepted.
func (p *Pipeline) IngestPopulation(ctx context.Context, path string) (*Result, error) {
	store := galaxydb.NewPopulationStore(p.db)

	bind := func(tx *sql.Tx) (*txWriter, error) {
		up, err := store.PrepareUpsert(tx)
		if err != nil {
			return nil, err
		}
		return &txWriter{
			write: func(rec *RawRecord) (bool, error) {
				pop, err := rec.PopulationRecord()
				if err != nil {
					return false, err
				}
				if pop == nil {
					return false, nil
				}
				return true, up.Upsert(pop)
			},
			close: up.Close,
		}, nil
	}

	return p.run(ctx, path, "population", PopulationTrackerConfig(), bind)
}

// run drives the streaming load: read, transform, write, commit on tracker
// triggers, then final commit and ANALYZE.
func (p *Pipeline) run(ctx context.Context, path, kind string, config TrackerConfig, bind bindFunc) (*Result, error) {
	config = config.withOverrides(p.overrides)
	if p.batchSize > 0 {
		config.BatchSize = p.batchSize
	}

	runID := uuid.New().String()[:8]
	log := p.logger.With("run", runID, "kind", kind, "file", path)

	reader, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if err := p.applyBulkPragmas(ctx); err != nil {
		return nil, err
	}

	tracker := NewCommitTracker(config)
	result := &Result{}

	tx, err := p.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	// Rollback whatever is still open on any error path
	var committed bool
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	writer, err := bind(tx)
	if err != nil {
		return nil, err
	}

	log.Info("ingestion started")

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, ErrMalformedRecord) {
				result.Malformed++
				log.Warn("skipping record", "error", err)
				continue
			}
			return nil, err
		}

		written, err := writer.write(rec)
		if err != nil {
			if errors.Is(err, ErrMalformedRecord) {
				result.Malformed++
				log.Warn("skipping record", "error", err)
				continue
			}
			return nil, err
		}
		if !written {
			result.Skipped++
			continue
		}

		result.Records++
		if !tracker.ShouldCommit() {
			continue
		}

		// Commit boundary: release statements, commit, begin anew, re-prepare
		if err := writer.close(); err != nil {
			return nil, fmt.Errorf("close statements: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit batch: %w", err)
		}
		result.Commits++

		stats := tracker.Stats()
		p.report(stats)
		log.Debug("batch committed",
			"records", stats.Records,
			"rate", stats.Rate,
			"time_check_batch", stats.TimeCheckBatch)

		tx, err = p.db.BeginTx()
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		writer, err = bind(tx)
		if err != nil {
			return nil, err
		}
	}

	// Final commit always happens, trigger or not
	if err := writer.close(); err != nil {
		return nil, fmt.Errorf("close statements: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit final batch: %w", err)
	}
	committed = true
	result.Commits++

	// Refresh planner statistics after the load
	if err := p.db.Analyze(); err != nil {
		return nil, err
	}

	stats := tracker.Stats()
	result.Elapsed = stats.Elapsed
	p.report(stats)

	log.Info("ingestion complete",
		"records", result.Records,
		"skipped", result.Skipped,
		"malformed", result.Malformed,
		"commits", result.Commits,
		"elapsed", result.Elapsed.Round(time.Millisecond),
		"rate", stats.Rate)

	return result, nil
}

// applyBulkPragmas tunes the connection for sustained writes. These are
// connection-scoped, so bulk loads should run on a single-connection pool
// (BulkDBConfig) to guarantee the transaction lands on the tuned
// connection.
func (p *Pipeline) applyBulkPragmas(ctx context.Context) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = -%d", bulkCacheSizeKB),
		"PRAGMA temp_store = MEMORY",
		fmt.Sprintf("PRAGMA mmap_size = %d", bulkMmapBytes),
	}

	for _, pragma := range pragmas {
		if _, err := p.db.DB().ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("bulk tuning %q: %w", pragma, err)
		}
	}

	return nil
}

// report invokes the progress callback when one is configured.
func (p *Pipeline) report(stats TrackerStats) {
	if p.progress != nil {
		p.progress(stats)
	}
}
