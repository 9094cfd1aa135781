package ingest

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/adalundhe/stargrid/core/galaxydb"
)

// =============================================================================
// Dump Stream Reader
// =============================================================================

var (
	// ErrMalformedRecord marks a single bad record. The stream stays
	// usable; callers log and skip.
	ErrMalformedRecord = errors.New("malformed record")
)

// unknownMainStar fills in for systems whose dump record omits the star class.
const unknownMainStar = "N/A"

// RawCoords is the nested coordinate object of a dump record.
type RawCoords struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RawFaction is the nested controlling faction object of a dump record.
type RawFaction struct {
	Name string `json:"name"`
}

// RawRecord is one element of a galaxy dump array. System and population
// loads stream the same shape and pull different fields from it. Optional
// fields are pointers so absence stays distinguishable from a zero value;
// controllingFaction stays raw because dumps disagree on its type.
type RawRecord struct {
	ID64               *int64          `json:"id64"`
	Name               *string         `json:"name"`
	Coords             *RawCoords      `json:"coords"`
	MainStar           *string         `json:"mainStar"`
	Population         *int64          `json:"population"`
	Security           *string         `json:"security"`
	PrimaryEconomy     *string         `json:"primaryEconomy"`
	SecondaryEconomy   *string         `json:"secondaryEconomy"`
	ControllingFaction json.RawMessage `json:"controllingFaction"`
}

// FactionName extracts controllingFaction.name, tolerating records where
// the field is absent, null, or not an object.
func (r *RawRecord) FactionName() string {
	if len(r.ControllingFaction) == 0 {
		return ""
	}

	var ref RawFaction
	if err := json.Unmarshal(r.ControllingFaction, &ref); err != nil {
		return ""
	}
	return ref.Name
}

// System converts the record into a StarSystem. id64, name, and coords are
// required; a missing star class defaults to unknownMainStar.
func (r *RawRecord) System() (*galaxydb.StarSystem, error) {
	if r.ID64 == nil {
		return nil, fmt.Errorf("%w: missing id64", ErrMalformedRecord)
	}
	if r.Name == nil {
		return nil, fmt.Errorf("%w: record %d missing name", ErrMalformedRecord, *r.ID64)
	}
	if r.Coords == nil {
		return nil, fmt.Errorf("%w: record %d missing coords", ErrMalformedRecord, *r.ID64)
	}

	mainStar := unknownMainStar
	if r.MainStar != nil {
		mainStar = *r.MainStar
	}

	return &galaxydb.StarSystem{
		ID64:     *r.ID64,
		Name:     *r.Name,
		X:        r.Coords.X,
		Y:        r.Coords.Y,
		Z:        r.Coords.Z,
		MainStar: mainStar,
	}, nil
}

// PopulationRecord converts the record into persistable population data.
// A (nil, nil) return means the system carries no meaningful population
// and must be skipped without noise: zero or absent population, or no
// primary economy.
func (r *RawRecord) PopulationRecord() (*galaxydb.PopulationRecord, error) {
	if r.ID64 == nil {
		return nil, fmt.Errorf("%w: missing id64", ErrMalformedRecord)
	}

	if r.Population == nil || *r.Population == 0 {
		return nil, nil
	}
	if r.PrimaryEconomy == nil || *r.PrimaryEconomy == "" {
		return nil, nil
	}

	rec := &galaxydb.PopulationRecord{
		ID64:               *r.ID64,
		Population:         *r.Population,
		PrimaryEconomy:     *r.PrimaryEconomy,
		ControllingFaction: r.FactionName(),
	}
	if r.Security != nil {
		rec.Security = *r.Security
	}
	if r.SecondaryEconomy != nil {
		rec.SecondaryEconomy = *r.SecondaryEconomy
	}
	return rec, nil
}

// Reader streams records out of a gzip-compressed JSON array one element at
// a time. Memory use is bounded by the largest single record, not the file.
type Reader struct {
	file *os.File
	gz   *gzip.Reader
	dec  *json.Decoder
	path string
}

// OpenReader opens a dump file and positions the decoder inside the
// top-level array.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump %s: %w", path, err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip stream %s: %w", path, err)
	}

	dec := json.NewDecoder(gz)

	tok, err := dec.Token()
	if err != nil {
		gz.Close()
		f.Close()
		return nil, fmt.Errorf("read dump %s: %w", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		gz.Close()
		f.Close()
		return nil, fmt.Errorf("dump %s: expected top-level JSON array, got %v", path, tok)
	}

	return &Reader{
		file: f,
		gz:   gz,
		dec:  dec,
		path: path,
	}, nil
}

// Next returns the next record. io.EOF signals a cleanly finished stream.
// An ErrMalformedRecord-wrapped error covers one undecodable element and
// leaves the stream positioned at the next one; any other error is a broken
// stream and fatal.
func (r *Reader) Next() (*RawRecord, error) {
	if !r.dec.More() {
		if _, err := r.dec.Token(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read dump %s: %w", r.path, err)
		}
		return nil, io.EOF
	}

	// Decode to raw bytes first: a record whose fields have surprising
	// types is skippable, a stream that stops mid-element is not.
	var raw json.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("read dump %s: %w", r.path, err)
	}

	var rec RawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return &rec, nil
}

// Close releases the underlying decompressor and file.
func (r *Reader) Close() error {
	gzErr := r.gz.Close()
	fileErr := r.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}
