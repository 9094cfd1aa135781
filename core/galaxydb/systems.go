package galaxydb

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrSystemNotFound = errors.New("system not found")
)

// batchLookupChunk caps the number of host variables per IN clause. SQLite
// rejects statements above its variable limit, so batch lookups split into
// chunks of this size.
const batchLookupChunk = 999

const systemColumns = "id64, x, y, z, name, main_star"

// SystemStore provides point, batch, and grid-range access to star systems.
//
// Upserts recompute the grid bucket from the row's coordinates on every
// write, so the spatial projection can never drift from the coordinates.
type SystemStore struct {
	db *GalaxyDB
}

// NewSystemStore creates a SystemStore over the given database.
func NewSystemStore(db *GalaxyDB) *SystemStore {
	return &SystemStore{db: db}
}

// Upsert inserts or fully replaces the row for sys.ID64.
func (ss *SystemStore) Upsert(sys *StarSystem) error {
	_, err := ss.db.db.Exec(upsertSystemSQL, upsertSystemArgs(sys)...)
	if err != nil {
		return fmt.Errorf("upsert system %d: %w", sys.ID64, err)
	}
	return nil
}

// UpsertTx is the transactional variant used by bulk ingestion. The caller
// owns commit and rollback; no implicit commit happens here.
func (ss *SystemStore) UpsertTx(tx *sql.Tx, sys *StarSystem) error {
	_, err := tx.Exec(upsertSystemSQL, upsertSystemArgs(sys)...)
	if err != nil {
		return fmt.Errorf("upsert system %d: %w", sys.ID64, err)
	}
	return nil
}

const upsertSystemSQL = `
	INSERT OR REPLACE INTO systems (id64, grid_x, grid_y, grid_z, x, y, z, name, main_star)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func upsertSystemArgs(sys *StarSystem) []any {
	bucket := sys.Bucket()
	return []any{sys.ID64, bucket.X, bucket.Y, bucket.Z, sys.X, sys.Y, sys.Z, sys.Name, sys.MainStar}
}

// SystemUpserter is a prepared upsert bound to one transaction. Bulk loads
// prepare once per commit interval instead of per row.
type SystemUpserter struct {
	stmt *sql.Stmt
}

// PrepareUpsert prepares the upsert statement on tx. The statement is
// invalidated when tx commits or rolls back; prepare again on the next
// transaction.
func (ss *SystemStore) PrepareUpsert(tx *sql.Tx) (*SystemUpserter, error) {
	stmt, err := tx.Prepare(upsertSystemSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare system upsert: %w", err)
	}
	return &SystemUpserter{stmt: stmt}, nil
}

// Upsert writes one system through the prepared statement.
func (su *SystemUpserter) Upsert(sys *StarSystem) error {
	if _, err := su.stmt.Exec(upsertSystemArgs(sys)...); err != nil {
		return fmt.Errorf("upsert system %d: %w", sys.ID64, err)
	}
	return nil
}

// Close releases the prepared statement.
func (su *SystemUpserter) Close() error {
	return su.stmt.Close()
}

// ByID returns the system with the given id64, or ErrSystemNotFound.
func (ss *SystemStore) ByID(id64 int64) (*StarSystem, error) {
	row := ss.db.db.QueryRow(
		"SELECT "+systemColumns+" FROM systems WHERE id64 = ?", id64)
	return scanSystemRow(row)
}

// ByName returns one system with the given display name. Names are not
// guaranteed unique; the first match wins.
func (ss *SystemStore) ByName(name string) (*StarSystem, error) {
	row := ss.db.db.QueryRow(
		"SELECT "+systemColumns+" FROM systems WHERE name = ? LIMIT 1", name)
	return scanSystemRow(row)
}

// ByIDs resolves a batch of identifiers. The input may repeat ids in any
// order; each unique id is queried once and the result slice matches the
// input positionally, with nil where an id does not exist.
func (ss *SystemStore) ByIDs(ids []int64) ([]*StarSystem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[int64]*StarSystem, len(ids))
	err := forEachIDChunk(ids, func(chunk []int64) error {
		placeholders, args := idPlaceholders(chunk)
		rows, err := ss.db.db.Query(
			"SELECT "+systemColumns+" FROM systems WHERE id64 IN ("+placeholders+")", args...)
		if err != nil {
			return fmt.Errorf("batch query systems: %w", err)
		}
		defer rows.Close()

		systems, err := scanSystems(rows)
		if err != nil {
			return err
		}
		for _, sys := range systems {
			found[sys.ID64] = sys
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]*StarSystem, len(ids))
	for i, id := range ids {
		result[i] = found[id]
	}
	return result, nil
}

// RangeScan returns every system whose bucket falls inside the inclusive
// cuboid [min, max]. This is the coarse spatial filter: results can lie
// farther from any query center than the radius that produced the range.
func (ss *SystemStore) RangeScan(min, max Bucket) ([]*StarSystem, error) {
	rows, err := ss.db.db.Query(`
		SELECT `+systemColumns+`
		FROM systems
		WHERE grid_x BETWEEN ? AND ?
		  AND grid_y BETWEEN ? AND ?
		  AND grid_z BETWEEN ? AND ?
	`, min.X, max.X, min.Y, max.Y, min.Z, max.Z)
	if err != nil {
		return nil, fmt.Errorf("range scan: %w", err)
	}
	defer rows.Close()

	return scanSystems(rows)
}

func scanSystemRow(row *sql.Row) (*StarSystem, error) {
	var sys StarSystem
	err := row.Scan(&sys.ID64, &sys.X, &sys.Y, &sys.Z, &sys.Name, &sys.MainStar)
	if err == sql.ErrNoRows {
		return nil, ErrSystemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan system: %w", err)
	}
	return &sys, nil
}

func scanSystems(rows *sql.Rows) ([]*StarSystem, error) {
	var systems []*StarSystem
	for rows.Next() {
		var sys StarSystem
		if err := rows.Scan(&sys.ID64, &sys.X, &sys.Y, &sys.Z, &sys.Name, &sys.MainStar); err != nil {
			return nil, fmt.Errorf("scan system row: %w", err)
		}
		systems = append(systems, &sys)
	}
	return systems, rows.Err()
}

// forEachIDChunk deduplicates ids preserving first-seen order and invokes fn
// per chunk of at most batchLookupChunk unique ids.
func forEachIDChunk(ids []int64, fn func(chunk []int64) error) error {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	for start := 0; start < len(unique); start += batchLookupChunk {
		end := start + batchLookupChunk
		if end > len(unique) {
			end = len(unique)
		}
		if err := fn(unique[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func idPlaceholders(ids []int64) (string, []any) {
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}
	return string(placeholders), args
}
