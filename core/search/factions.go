// Package search provides fuzzy lookup over faction names using an
// in-memory Bleve index built on demand from stored faction counts.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/adalundhe/stargrid/core/galaxydb"
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultSearchLimit caps result counts when the caller passes no limit.
	DefaultSearchLimit = 25

	// DefaultFuzziness is the Levenshtein edit distance applied to match
	// queries. Bleve caps the usable range at 2.
	DefaultFuzziness = 1

	// factionTypeName is the document type name in the index mapping.
	factionTypeName = "faction"

	// nameField is the indexed field holding the faction name.
	nameField = "name"
)

// IndexConfig holds faction index configuration.
type IndexConfig struct {
	// Fuzziness is the edit distance applied to match queries.
	Fuzziness int

	// Limit is the default maximum number of results per search.
	Limit int
}

// DefaultIndexConfig returns the defaults used by the CLI path.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Fuzziness: DefaultFuzziness,
		Limit:     DefaultSearchLimit,
	}
}

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrIndexClosed indicates an operation was attempted on a closed index.
	ErrIndexClosed = errors.New("faction index is closed")

	// ErrEmptyQuery indicates a search was attempted with an empty query.
	ErrEmptyQuery = errors.New("search query cannot be empty")
)

// =============================================================================
// FactionIndex
// =============================================================================

// factionDocument is the document shape indexed for each faction.
type factionDocument struct {
	Name string `json:"name"`
}

// FactionIndex is an ephemeral full-text index over faction names. It is
// built from faction counts and discarded after use; nothing is persisted
// to disk.
type FactionIndex struct {
	index  bleve.Index
	mu     sync.RWMutex
	closed bool

	config IndexConfig

	// counts maps the indexed document ID (the faction name) back to the
	// full count record for result conversion.
	counts map[string]galaxydb.FactionCount
}

// NewFactionIndex creates an empty in-memory faction index with default
// configuration.
func NewFactionIndex() (*FactionIndex, error) {
	return NewFactionIndexWithConfig(DefaultIndexConfig())
}

// NewFactionIndexWithConfig creates an empty in-memory faction index with
// the provided configuration. Non-positive values fall back to defaults.
func NewFactionIndexWithConfig(config IndexConfig) (*FactionIndex, error) {
	if config.Fuzziness <= 0 {
		config.Fuzziness = DefaultFuzziness
	}
	if config.Limit <= 0 {
		config.Limit = DefaultSearchLimit
	}

	index, err := bleve.NewMemOnly(buildFactionMapping())
	if err != nil {
		return nil, fmt.Errorf("create faction index: %w", err)
	}

	return &FactionIndex{
		index:  index,
		config: config,
		counts: make(map[string]galaxydb.FactionCount),
	}, nil
}

// buildFactionMapping creates the index mapping for faction documents.
func buildFactionMapping() mapping.IndexMapping {
	nameMapping := bleve.NewTextFieldMapping()
	nameMapping.Store = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt(nameField, nameMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping(factionTypeName, docMapping)
	indexMapping.DefaultType = factionTypeName

	return indexMapping
}

// =============================================================================
// Indexing
// =============================================================================

// Add indexes a batch of faction counts. The faction name doubles as the
// document ID, so re-adding a name replaces the earlier entry. Entries with
// an empty name are skipped.
func (f *FactionIndex) Add(ctx context.Context, factions []galaxydb.FactionCount) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.index == nil {
		return ErrIndexClosed
	}

	batch := f.index.NewBatch()
	for _, fc := range factions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fc.Name == "" {
			continue
		}
		if err := batch.Index(fc.Name, factionDocument{Name: fc.Name}); err != nil {
			return fmt.Errorf("index faction %q: %w", fc.Name, err)
		}
		f.counts[fc.Name] = fc
	}

	if batch.Size() == 0 {
		return nil
	}

	if err := f.index.Batch(batch); err != nil {
		return fmt.Errorf("commit faction batch: %w", err)
	}

	return nil
}

// Len returns the number of indexed factions.
func (f *FactionIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.counts)
}

// =============================================================================
// Search
// =============================================================================

// Search runs a fuzzy query against the indexed faction names and returns
// the matching counts ranked by relevance. A non-positive limit falls back
// to the configured default.
func (f *FactionIndex) Search(ctx context.Context, queryStr string, limit int) ([]galaxydb.FactionCount, error) {
	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = f.config.Limit
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed || f.index == nil {
		return nil, ErrIndexClosed
	}

	req := bleve.NewSearchRequestOptions(f.buildQuery(queryStr), limit, 0, false)
	req.Fields = []string{nameField}

	result, err := f.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("faction search %q: %w", queryStr, err)
	}

	return f.convertHits(result), nil
}

// buildQuery combines the raw query-string syntax with fuzzy and prefix
// matching so that exact expressions, misspellings, and partial names all
// find results. Exact matches satisfy several disjuncts and rank first.
func (f *FactionIndex) buildQuery(queryStr string) query.Query {
	exact := bleve.NewQueryStringQuery(queryStr)

	match := bleve.NewMatchQuery(queryStr)
	match.SetField(nameField)
	match.SetFuzziness(f.config.Fuzziness)

	prefix := bleve.NewPrefixQuery(strings.ToLower(queryStr))
	prefix.SetField(nameField)

	disjunction := bleve.NewDisjunctionQuery()
	disjunction.AddQuery(exact)
	disjunction.AddQuery(match)
	disjunction.AddQuery(prefix)
	return disjunction
}

// convertHits maps search hits back to the faction counts they were indexed
// from. IDs without a backing count are skipped.
func (f *FactionIndex) convertHits(result *bleve.SearchResult) []galaxydb.FactionCount {
	if result == nil || len(result.Hits) == 0 {
		return nil
	}

	counts := make([]galaxydb.FactionCount, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if fc, ok := f.counts[hit.ID]; ok {
			counts = append(counts, fc)
		}
	}
	return counts
}

// =============================================================================
// Lifecycle
// =============================================================================

// Close releases the in-memory index. It is safe to call more than once.
func (f *FactionIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.index == nil {
		return nil
	}

	f.closed = true
	err := f.index.Close()
	f.index = nil
	f.counts = make(map[string]galaxydb.FactionCount)
	return err
}

// =============================================================================
// One-Shot Search
// =============================================================================

// Factions builds an ephemeral index over the provided counts, runs a single
// fuzzy query, and tears the index down again. This is the path behind
// `factions list --fuzzy`, where the index lives for one invocation only.
func Factions(ctx context.Context, counts []galaxydb.FactionCount, queryStr string, limit int) ([]galaxydb.FactionCount, error) {
	idx, err := NewFactionIndex()
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	if err := idx.Add(ctx, counts); err != nil {
		return nil, err
	}

	return idx.Search(ctx, queryStr, limit)
}
