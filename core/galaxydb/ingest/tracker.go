package ingest

import (
	"math"
	"time"
)

// =============================================================================
// Adaptive Commit Tracker
// =============================================================================

// Tracker defaults. Snapshot loads override BatchSize and the time-check
// ceiling; everything else rarely needs tuning.
const (
	DefaultTimeInterval          = 5 * time.Second
	DefaultInitialTimeCheckBatch = 100
	DefaultMinTimeCheckBatch     = 10
	DefaultMaxTimeCheckBatch     = 10_000
	DefaultRateSmoothing         = 0.3

	// SnapshotBatchSize is the commit batch for full galaxy snapshot loads.
	SnapshotBatchSize = 50_000
)

// TrackerConfig configures the commit cadence policy.
type TrackerConfig struct {
	// BatchSize commits after every exact multiple of this many records.
	// Zero disables the count trigger, leaving only the time trigger.
	BatchSize int64
	// TimeInterval is the maximum wall-clock time between commits.
	TimeInterval time.Duration
	// InitialTimeCheckBatch is the starting record count between clock reads.
	InitialTimeCheckBatch int
	// MinTimeCheckBatch bounds the adaptive clock-read granularity below.
	MinTimeCheckBatch int
	// MaxTimeCheckBatch bounds the adaptive clock-read granularity above.
	MaxTimeCheckBatch int
	// RateSmoothing is the EMA factor applied to throughput samples.
	RateSmoothing float64
}

// withOverrides returns a copy of c with every non-zero field of o applied.
// Zero fields in o leave the profile value untouched.
func (c TrackerConfig) withOverrides(o TrackerConfig) TrackerConfig {
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.TimeInterval > 0 {
		c.TimeInterval = o.TimeInterval
	}
	if o.InitialTimeCheckBatch > 0 {
		c.InitialTimeCheckBatch = o.InitialTimeCheckBatch
	}
	if o.MinTimeCheckBatch > 0 {
		c.MinTimeCheckBatch = o.MinTimeCheckBatch
	}
	if o.MaxTimeCheckBatch > 0 {
		c.MaxTimeCheckBatch = o.MaxTimeCheckBatch
	}
	if o.RateSmoothing > 0 {
		c.RateSmoothing = o.RateSmoothing
	}
	return c
}

// applyDefaults fills in zero values with defaults.
func (c *TrackerConfig) applyDefaults() {
	if c.TimeInterval <= 0 {
		c.TimeInterval = DefaultTimeInterval
	}
	if c.InitialTimeCheckBatch <= 0 {
		c.InitialTimeCheckBatch = DefaultInitialTimeCheckBatch
	}
	if c.MinTimeCheckBatch <= 0 {
		c.MinTimeCheckBatch = DefaultMinTimeCheckBatch
	}
	if c.MaxTimeCheckBatch <= 0 {
		c.MaxTimeCheckBatch = DefaultMaxTimeCheckBatch
	}
	if c.RateSmoothing <= 0 || c.RateSmoothing > 1 {
		c.RateSmoothing = DefaultRateSmoothing
	}
}

// SystemsTrackerConfig tunes the tracker for full system snapshot loads,
// which sustain high enough throughput to warrant a larger time-check
// ceiling.
func SystemsTrackerConfig() TrackerConfig {
	return TrackerConfig{
		BatchSize:         SnapshotBatchSize,
		MaxTimeCheckBatch: SnapshotBatchSize,
	}
}

// PopulationTrackerConfig tunes the tracker for population snapshot loads.
func PopulationTrackerConfig() TrackerConfig {
	return TrackerConfig{
		BatchSize: SnapshotBatchSize,
	}
}

// CommitTracker decides when a streaming load should commit its open
// transaction: after every BatchSize records, or once TimeInterval has
// elapsed since the last commit. Reading the clock per record would
// dominate the loop at high throughput, so elapsed time is only checked
// every timeCheckBatch records, and that granularity adapts to the
// observed processing rate so roughly one clock read happens per
// TimeInterval.
//
// Not safe for concurrent use; each load owns its tracker.
type CommitTracker struct {
	config TrackerConfig

	now func() time.Time

	startTime       time.Time
	lastCommitTime  time.Time
	lastCommitTotal int64
	totalCount      int64
	sinceTimeCheck  int
	timeCheckBatch  int
	emaRate         float64
	emaSet          bool
}

// TrackerOption is a functional option for configuring a CommitTracker.
type TrackerOption func(*CommitTracker)

// WithClock replaces the wall-clock source. Tests substitute a fake clock.
func WithClock(now func() time.Time) TrackerOption {
	return func(ct *CommitTracker) { ct.now = now }
}

// NewCommitTracker creates a tracker with the given configuration.
func NewCommitTracker(config TrackerConfig, opts ...TrackerOption) *CommitTracker {
	config.applyDefaults()

	ct := &CommitTracker{
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ct)
	}

	start := ct.now()
	ct.startTime = start
	ct.lastCommitTime = start
	ct.timeCheckBatch = config.InitialTimeCheckBatch

	return ct
}

// ShouldCommit records one processed record and reports whether the caller
// must commit now. A true return already accounts for the commit: counters
// and the throughput estimate are updated before it is returned.
func (ct *CommitTracker) ShouldCommit() bool {
	ct.totalCount++
	ct.sinceTimeCheck++

	if ct.config.BatchSize > 0 && ct.totalCount%ct.config.BatchSize == 0 {
		ct.noteCommit()
		return true
	}

	if ct.sinceTimeCheck >= ct.timeCheckBatch {
		ct.sinceTimeCheck = 0
		if ct.now().Sub(ct.lastCommitTime) >= ct.config.TimeInterval {
			ct.noteCommit()
			return true
		}
	}

	return false
}

// noteCommit folds the just-finished interval into the throughput EMA and
// resizes timeCheckBatch toward one clock read per TimeInterval.
func (ct *CommitTracker) noteCommit() {
	now := ct.now()
	elapsed := now.Sub(ct.lastCommitTime).Seconds()
	recordsSinceCommit := ct.totalCount - ct.lastCommitTotal

	if elapsed > 0 && recordsSinceCommit > 0 {
		currentRate := float64(recordsSinceCommit) / elapsed
		if !ct.emaSet {
			ct.emaRate = currentRate
			ct.emaSet = true
		} else {
			ct.emaRate = ct.config.RateSmoothing*currentRate +
				(1-ct.config.RateSmoothing)*ct.emaRate
		}

		next := ct.emaRate * ct.config.TimeInterval.Seconds()
		next = math.Max(float64(ct.config.MinTimeCheckBatch),
			math.Min(float64(ct.config.MaxTimeCheckBatch), next))
		ct.timeCheckBatch = int(math.Round(next))
	}

	ct.lastCommitTime = now
	ct.lastCommitTotal = ct.totalCount
	ct.sinceTimeCheck = 0
}

// TrackerStats is a point-in-time snapshot of tracker progress.
type TrackerStats struct {
	Records        int64
	Elapsed        time.Duration
	Rate           float64
	TimeCheckBatch int
}

// Stats reports progress since the tracker was created.
func (ct *CommitTracker) Stats() TrackerStats {
	elapsed := ct.now().Sub(ct.startTime)

	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(ct.totalCount) / secs
	}

	return TrackerStats{
		Records:        ct.totalCount,
		Elapsed:        elapsed,
		Rate:           rate,
		TimeCheckBatch: ct.timeCheckBatch,
	}
}
