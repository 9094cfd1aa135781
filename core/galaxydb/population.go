package galaxydb

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrPopulationNotFound = errors.New("population record not found")
)

const populationColumns = "id64, population, security, controlling_faction, primary_economy, secondary_economy"

// PopulationStore provides access to the socio-economic extension rows.
// Rows share the id64 namespace with systems; a system without a row is a
// valid state and reads distinguish it with ErrPopulationNotFound.
type PopulationStore struct {
	db *GalaxyDB
}

// NewPopulationStore creates a PopulationStore over the given database.
func NewPopulationStore(db *GalaxyDB) *PopulationStore {
	return &PopulationStore{db: db}
}

// Upsert inserts or fully replaces the row for rec.ID64.
func (ps *PopulationStore) Upsert(rec *PopulationRecord) error {
	_, err := ps.db.db.Exec(upsertPopulationSQL, upsertPopulationArgs(rec)...)
	if err != nil {
		return fmt.Errorf("upsert population %d: %w", rec.ID64, err)
	}
	return nil
}

// UpsertTx is the transactional variant used by bulk ingestion.
func (ps *PopulationStore) UpsertTx(tx *sql.Tx, rec *PopulationRecord) error {
	_, err := tx.Exec(upsertPopulationSQL, upsertPopulationArgs(rec)...)
	if err != nil {
		return fmt.Errorf("upsert population %d: %w", rec.ID64, err)
	}
	return nil
}

const upsertPopulationSQL = `
	INSERT OR REPLACE INTO population_data (id64, population, security, controlling_faction, primary_economy, secondary_economy)
	VALUES (?, ?, ?, ?, ?, ?)
`

func upsertPopulationArgs(rec *PopulationRecord) []any {
	return []any{rec.ID64, rec.Population, rec.Security, rec.ControllingFaction, rec.PrimaryEconomy, rec.SecondaryEconomy}
}

// PopulationUpserter is a prepared upsert bound to one transaction, the
// population counterpart of SystemUpserter.
type PopulationUpserter struct {
	stmt *sql.Stmt
}

// PrepareUpsert prepares the upsert statement on tx.
func (ps *PopulationStore) PrepareUpsert(tx *sql.Tx) (*PopulationUpserter, error) {
	stmt, err := tx.Prepare(upsertPopulationSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare population upsert: %w", err)
	}
	return &PopulationUpserter{stmt: stmt}, nil
}

// Upsert writes one population record through the prepared statement.
func (pu *PopulationUpserter) Upsert(rec *PopulationRecord) error {
	if _, err := pu.stmt.Exec(upsertPopulationArgs(rec)...); err != nil {
		return fmt.Errorf("upsert population %d: %w", rec.ID64, err)
	}
	return nil
}

// Close releases the prepared statement.
func (pu *PopulationUpserter) Close() error {
	return pu.stmt.Close()
}

// ByID returns the population record for id64, or ErrPopulationNotFound.
func (ps *PopulationStore) ByID(id64 int64) (*PopulationRecord, error) {
	row := ps.db.db.QueryRow(
		"SELECT "+populationColumns+" FROM population_data WHERE id64 = ?", id64)
	return scanPopulationRow(row)
}

// ByIDs resolves a batch of identifiers under the same contract as
// SystemStore.ByIDs: duplicates allowed, one query per unique id, nil at
// positions whose id has no row.
func (ps *PopulationStore) ByIDs(ids []int64) ([]*PopulationRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[int64]*PopulationRecord, len(ids))
	err := forEachIDChunk(ids, func(chunk []int64) error {
		placeholders, args := idPlaceholders(chunk)
		rows, err := ps.db.db.Query(
			"SELECT "+populationColumns+" FROM population_data WHERE id64 IN ("+placeholders+")", args...)
		if err != nil {
			return fmt.Errorf("batch query population: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanPopulationRows(rows)
			if err != nil {
				return err
			}
			found[rec.ID64] = rec
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	result := make([]*PopulationRecord, len(ids))
	for i, id := range ids {
		result[i] = found[id]
	}
	return result, nil
}

// ListFactions returns faction names with their controlled-system counts,
// sorted case-insensitively. The unclaimed sentinel is never listed. An
// optional SQL LIKE pattern narrows the result.
func (ps *PopulationStore) ListFactions(pattern string) ([]FactionCount, error) {
	query := `
		SELECT controlling_faction, COUNT(*) AS count
		FROM population_data
		WHERE controlling_faction != ''
	`
	var args []any
	if pattern != "" {
		query += " AND controlling_faction LIKE ?"
		args = append(args, pattern)
	}
	query += `
		GROUP BY controlling_faction
		ORDER BY controlling_faction COLLATE NOCASE
	`

	rows, err := ps.db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list factions: %w", err)
	}
	defer rows.Close()

	var factions []FactionCount
	for rows.Next() {
		var fc FactionCount
		if err := rows.Scan(&fc.Name, &fc.Systems); err != nil {
			return nil, fmt.Errorf("scan faction row: %w", err)
		}
		factions = append(factions, fc)
	}
	return factions, rows.Err()
}

// SystemsControlledBy returns every system owned by the named faction,
// paired with its population record. The AnyFaction wildcard matches all
// systems with a non-empty controlling faction.
func (ps *PopulationStore) SystemsControlledBy(faction string) ([]SystemWithPopulation, error) {
	where := "p.controlling_faction = ?"
	args := []any{faction}
	if IsAnyFaction(faction) {
		where = "p.controlling_faction != ''"
		args = nil
	}

	rows, err := ps.db.db.Query(`
		SELECT
			s.id64, s.x, s.y, s.z, s.name, s.main_star,
			p.population, p.security, p.controlling_faction,
			p.primary_economy, p.secondary_economy
		FROM population_data p
		JOIN systems s ON p.id64 = s.id64
		WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query faction systems: %w", err)
	}
	defer rows.Close()

	var results []SystemWithPopulation
	for rows.Next() {
		var sys StarSystem
		var rec PopulationRecord
		if err := rows.Scan(&sys.ID64, &sys.X, &sys.Y, &sys.Z, &sys.Name, &sys.MainStar,
			&rec.Population, &rec.Security, &rec.ControllingFaction,
			&rec.PrimaryEconomy, &rec.SecondaryEconomy); err != nil {
			return nil, fmt.Errorf("scan faction system row: %w", err)
		}
		rec.ID64 = sys.ID64
		results = append(results, SystemWithPopulation{System: &sys, Population: &rec})
	}
	return results, rows.Err()
}

func scanPopulationRow(row *sql.Row) (*PopulationRecord, error) {
	var rec PopulationRecord
	err := row.Scan(&rec.ID64, &rec.Population, &rec.Security,
		&rec.ControllingFaction, &rec.PrimaryEconomy, &rec.SecondaryEconomy)
	if err == sql.ErrNoRows {
		return nil, ErrPopulationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan population: %w", err)
	}
	return &rec, nil
}

func scanPopulationRows(rows *sql.Rows) (*PopulationRecord, error) {
	var rec PopulationRecord
	if err := rows.Scan(&rec.ID64, &rec.Population, &rec.Security,
		&rec.ControllingFaction, &rec.PrimaryEconomy, &rec.SecondaryEconomy); err != nil {
		return nil, fmt.Errorf("scan population row: %w", err)
	}
	return &rec, nil
}
