package colony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adalundhe/stargrid/core/galaxydb"
)

var (
	// ErrMissingFaction rejects a search without a faction name.
	ErrMissingFaction = errors.New("faction name is required")
	// ErrMissingReferenceRange rejects a reference search without a radius.
	ErrMissingReferenceRange = errors.New("reference range is required with a reference system")
	// ErrUnknownReferenceSystem reports a reference system name with no row.
	ErrUnknownReferenceSystem = errors.New("reference system not found")
	// ErrNoFactionSystems reports an empty faction-system set. Downstream
	// emptiness (no candidates) is a clean result, not this error.
	ErrNoFactionSystems = errors.New("no controlled systems in the search area")
)

const (
	// DefaultCandidateRange is the candidate scan radius in light years.
	DefaultCandidateRange = 15.0
	// DefaultScanWorkers bounds the concurrent per-system radius scans.
	DefaultScanWorkers = 4
	// DefaultReportInterval paces progress callbacks during long scans.
	DefaultReportInterval = 10 * time.Second
)

// Params describes one candidate search.
type Params struct {
	// Faction is the owning faction name, or the ANY wildcard.
	Faction string
	// CandidateRange is the scan radius around each faction system.
	// Zero means DefaultCandidateRange.
	CandidateRange float64
	// ReferenceSystem optionally anchors the faction-system set to a
	// region instead of the faction's full holdings.
	ReferenceSystem string
	// ReferenceRange is the region radius; required with ReferenceSystem.
	ReferenceRange float64
}

func (p Params) validate() error {
	if p.Faction == "" {
		return ErrMissingFaction
	}
	if p.CandidateRange < 0 {
		return fmt.Errorf("candidate range must not be negative, got %g", p.CandidateRange)
	}
	if p.ReferenceSystem != "" && p.ReferenceRange <= 0 {
		return ErrMissingReferenceRange
	}
	return nil
}

// Candidate is one verified colonization target: an unclaimed system within
// the candidate range of at least one faction system.
type Candidate struct {
	System     *galaxydb.StarSystem
	Population *galaxydb.PopulationRecord

	// Distance is the distance to the closest faction system found.
	Distance float64
	// ClosestFactionSystem is the faction system that distance refers to.
	ClosestFactionSystem *galaxydb.StarSystem
	// ReferenceDistance is the distance to the reference system; only
	// meaningful when the search had one.
	ReferenceDistance float64
}

// Report is the outcome of one search.
type Report struct {
	Faction        string
	Reference      *galaxydb.StarSystem
	FactionSystems int
	Candidates     []Candidate
	Elapsed        time.Duration
}

// Progress is a periodic snapshot of the scan phase.
type Progress struct {
	Processed int
	Total     int
	Found     int
	Elapsed   time.Duration
}

// ProgressFunc receives scan progress at the configured report interval.
type ProgressFunc func(Progress)

// Searcher finds unclaimed systems adjacent to a faction's holdings. The
// scan is greedy per faction system; it reports the nearest claim of any
// member, not a global nearest-neighbor answer.
type Searcher struct {
	systems   *galaxydb.SystemStore
	pops      *galaxydb.PopulationStore
	proximity *galaxydb.ProximityStore

	logger   *slog.Logger
	progress ProgressFunc
	workers  int
	interval time.Duration
}

// SearcherOption is a functional option for configuring a Searcher.
type SearcherOption func(*Searcher)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) SearcherOption {
	return func(s *Searcher) { s.logger = logger }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) SearcherOption {
	return func(s *Searcher) { s.progress = fn }
}

// WithWorkers bounds the concurrent radius scans.
func WithWorkers(n int) SearcherOption {
	return func(s *Searcher) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithReportInterval overrides the progress cadence.
func WithReportInterval(d time.Duration) SearcherOption {
	return func(s *Searcher) { s.interval = d }
}

// NewSearcher creates a Searcher over db.
func NewSearcher(db *galaxydb.GalaxyDB, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		systems:   galaxydb.NewSystemStore(db),
		pops:      galaxydb.NewPopulationStore(db),
		proximity: galaxydb.NewProximityStore(db),
		logger:    slog.Default(),
		workers:   DefaultScanWorkers,
		interval:  DefaultReportInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// claim records the best faction system seen for one candidate id.
type claim struct {
	distance  float64
	factionID int64
}

// Search runs the two-phase candidate search: a radius scan around every
// faction system collecting unclaimed neighbors, then a batched re-read
// that verifies each surviving candidate against the freshest rows.
func (s *Searcher) Search(ctx context.Context, params Params) (*Report, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	candidateRange := params.CandidateRange
	if candidateRange == 0 {
		candidateRange = DefaultCandidateRange
	}

	start := time.Now()
	log := s.logger.With("faction", params.Faction, "candidate_range", candidateRange)

	reference, factionSystems, err := s.factionSystems(params)
	if err != nil {
		return nil, err
	}
	if len(factionSystems) == 0 {
		return nil, fmt.Errorf("faction %q: %w", params.Faction, ErrNoFactionSystems)
	}

	log.Info("candidate search started", "faction_systems", len(factionSystems))

	candidates, err := s.scanFactionSystems(ctx, factionSystems, candidateRange, start)
	if err != nil {
		return nil, err
	}

	verified, err := s.verifyCandidates(candidates, factionSystems, reference)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Faction:        params.Faction,
		Reference:      reference,
		FactionSystems: len(factionSystems),
		Candidates:     verified,
		Elapsed:        time.Since(start),
	}

	log.Info("candidate search complete",
		"candidates", len(verified),
		"elapsed", report.Elapsed.Round(time.Millisecond))

	return report, nil
}

// factionSystems resolves the set of systems whose neighborhoods will be
// scanned: the faction's full holdings, or only those inside the reference
// region when one is given.
func (s *Searcher) factionSystems(params Params) (*galaxydb.StarSystem, []galaxydb.SystemWithPopulation, error) {
	if params.ReferenceSystem == "" {
		systems, err := s.pops.SystemsControlledBy(params.Faction)
		if err != nil {
			return nil, nil, err
		}
		return nil, systems, nil
	}

	reference, err := s.systems.ByName(params.ReferenceSystem)
	if err == galaxydb.ErrSystemNotFound {
		return nil, nil, fmt.Errorf("reference system %q: %w", params.ReferenceSystem, ErrUnknownReferenceSystem)
	}
	if err != nil {
		return nil, nil, err
	}

	nearby, err := s.proximity.WithinRadius(reference.Coords(), params.ReferenceRange)
	if err != nil {
		return nil, nil, err
	}

	anyFaction := galaxydb.IsAnyFaction(params.Faction)
	var systems []galaxydb.SystemWithPopulation
	for _, res := range nearby {
		if res.Population == nil {
			continue
		}
		owner := res.Population.ControllingFaction
		if owner == params.Faction || (anyFaction && owner != "") {
			systems = append(systems, galaxydb.SystemWithPopulation{
				System:     res.System,
				Population: res.Population,
			})
		}
	}
	return reference, systems, nil
}

// scanFactionSystems runs the per-faction-system radius scans on a bounded
// worker pool, merging unclaimed neighbors into the candidate map. Updates
// take effect only on strictly smaller distances, so the first claim seen
// wins ties.
func (s *Searcher) scanFactionSystems(
	ctx context.Context,
	factionSystems []galaxydb.SystemWithPopulation,
	candidateRange float64,
	start time.Time,
) (map[int64]claim, error) {
	var (
		mu         sync.Mutex
		candidates = make(map[int64]claim)
		processed  int
		lastReport = start
	)

	sem := make(chan struct{}, s.workers)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	for _, fs := range factionSystems {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}

		wg.Add(1)
		go func(fs galaxydb.SystemWithPopulation) {
			defer wg.Done()
			defer func() { <-sem }()

			results, err := s.proximity.WithinRadius(fs.System.Coords(), candidateRange)
			if err != nil {
				select {
				case errCh <- fmt.Errorf("scan around system %d: %w", fs.System.ID64, err):
				default:
				}
				return
			}

			mu.Lock()
			defer mu.Unlock()

			for _, res := range results {
				if res.System.ID64 == fs.System.ID64 {
					continue
				}
				if !galaxydb.Unclaimed(res.Population) {
					continue
				}
				current, ok := candidates[res.System.ID64]
				if !ok || res.Distance < current.distance {
					candidates[res.System.ID64] = claim{
						distance:  res.Distance,
						factionID: fs.System.ID64,
					}
				}
			}

			processed++
			if s.progress != nil {
				now := time.Now()
				if now.Sub(lastReport) >= s.interval || processed == len(factionSystems) {
					s.progress(Progress{
						Processed: processed,
						Total:     len(factionSystems),
						Found:     len(candidates),
						Elapsed:   now.Sub(start),
					})
					lastReport = now
				}
			}
		}(fs)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	return candidates, nil
}

// verifyCandidates re-reads every candidate through the batch lookup and
// keeps only those still unclaimed, attaching the closest faction system
// and, when present, the distance to the reference system. Results sort by
// distance, then id64.
func (s *Searcher) verifyCandidates(
	candidates map[int64]claim,
	factionSystems []galaxydb.SystemWithPopulation,
	reference *galaxydb.StarSystem,
) ([]Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	factionByID := make(map[int64]*galaxydb.StarSystem, len(factionSystems))
	for _, fs := range factionSystems {
		factionByID[fs.System.ID64] = fs.System
	}

	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	systems, err := s.systems.ByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("refetch candidate systems: %w", err)
	}
	pops, err := s.pops.ByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("refetch candidate population: %w", err)
	}

	verified := make([]Candidate, 0, len(ids))
	for i, id := range ids {
		sys := systems[i]
		if sys == nil {
			continue
		}
		pop := pops[i]
		if !galaxydb.Unclaimed(pop) {
			continue
		}

		cl := candidates[id]
		cand := Candidate{
			System:               sys,
			Population:           pop,
			Distance:             cl.distance,
			ClosestFactionSystem: factionByID[cl.factionID],
		}
		if reference != nil {
			cand.ReferenceDistance = sys.DistanceTo(reference.Coords())
		}
		verified = append(verified, cand)
	}

	sort.Slice(verified, func(i, j int) bool {
		if verified[i].Distance != verified[j].Distance {
			return verified[i].Distance < verified[j].Distance
		}
		return verified[i].System.ID64 < verified[j].System.ID64
	})

	return verified, nil
}
