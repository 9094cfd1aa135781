package galaxydb

import (
	"database/sql"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ProximityStore answers radius queries by composing the grid index with an
// exact Euclidean post-filter. It is the only read path over the grid
// columns outside ingestion.
type ProximityStore struct {
	db *GalaxyDB
}

// NewProximityStore creates a ProximityStore over the given database.
func NewProximityStore(db *GalaxyDB) *ProximityStore {
	return &ProximityStore{db: db}
}

// WithinRadius returns every system whose true distance to center is at most
// radius, each paired with its population record when one exists. Result
// order follows scan order and is not specified; callers wanting an order
// sort explicitly.
//
// The grid range is a coarse cuboid filter, so candidates are re-checked
// against the exact squared distance before the square root is taken.
func (qs *ProximityStore) WithinRadius(center r3.Vec, radius float64) ([]ProximityResult, error) {
	if radius < 0 {
		return nil, fmt.Errorf("radius must not be negative, got %g", radius)
	}

	min, max := BucketRange(center, radius)

	rows, err := qs.db.db.Query(`
		SELECT
			s.id64, s.x, s.y, s.z, s.name, s.main_star,
			p.id64, p.population, p.security, p.controlling_faction,
			p.primary_economy, p.secondary_economy
		FROM systems s
		LEFT JOIN population_data p ON p.id64 = s.id64
		WHERE s.grid_x BETWEEN ? AND ?
		  AND s.grid_y BETWEEN ? AND ?
		  AND s.grid_z BETWEEN ? AND ?
	`, min.X, max.X, min.Y, max.Y, min.Z, max.Z)
	if err != nil {
		return nil, fmt.Errorf("radius scan: %w", err)
	}
	defer rows.Close()

	radiusSq := radius * radius

	var results []ProximityResult
	for rows.Next() {
		sys, rec, err := scanSystemWithPopulation(rows)
		if err != nil {
			return nil, err
		}

		distSq := r3.Norm2(r3.Sub(sys.Coords(), center))
		if distSq > radiusSq {
			continue
		}

		results = append(results, ProximityResult{
			System:     sys,
			Population: rec,
			Distance:   math.Sqrt(distSq),
		})
	}
	return results, rows.Err()
}

func scanSystemWithPopulation(rows *sql.Rows) (*StarSystem, *PopulationRecord, error) {
	var sys StarSystem
	var popID, population sql.NullInt64
	var security, faction, primary, secondary sql.NullString

	err := rows.Scan(&sys.ID64, &sys.X, &sys.Y, &sys.Z, &sys.Name, &sys.MainStar,
		&popID, &population, &security, &faction, &primary, &secondary)
	if err != nil {
		return nil, nil, fmt.Errorf("scan radius row: %w", err)
	}

	if !popID.Valid {
		return &sys, nil, nil
	}

	rec := &PopulationRecord{
		ID64:               popID.Int64,
		Population:         population.Int64,
		Security:           security.String,
		ControllingFaction: faction.String,
		PrimaryEconomy:     primary.String,
		SecondaryEconomy:   secondary.String,
	}
	return &sys, rec, nil
}
