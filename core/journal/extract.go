// Package journal extracts star-system names from game journal logs and
// from the catalogue's own query output.
package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
)

// systemLine matches the system headline format; the name is the single
// capture group.
var systemLine = regexp.MustCompile(`System: (.*) \(ID64: [0-9]+\)`)

// ansiSeq matches ANSI SGR escape sequences. Saved query output keeps its
// terminal colors, so lines are stripped before matching.
var ansiSeq = regexp.MustCompile("\x1b\\[[0-9;]*m")

// maxLineBytes guards the scanner against pathological journal lines.
const maxLineBytes = 1 << 20

// Extractor accumulates system names across one or more sources,
// deduplicated in first-seen order.
type Extractor struct {
	seen  map[string]struct{}
	names []string
}

// NewExtractor creates an empty Extractor.
func NewExtractor() *Extractor {
	return &Extractor{seen: make(map[string]struct{})}
}

// Scan reads r line-wise and records every new system name.
func (e *Extractor) Scan(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if name, ok := MatchLine(scanner.Text()); ok {
			e.add(name)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal text: %w", err)
	}
	return nil
}

// ScanFile runs Scan over one file.
func (e *Extractor) ScanFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal %s: %w", path, err)
	}
	defer file.Close()

	if err := e.Scan(file); err != nil {
		return fmt.Errorf("journal %s: %w", path, err)
	}
	return nil
}

// Names returns the accumulated names in first-seen order.
func (e *Extractor) Names() []string {
	return e.names
}

func (e *Extractor) add(name string) {
	if _, dup := e.seen[name]; dup {
		return
	}
	e.seen[name] = struct{}{}
	e.names = append(e.names, name)
}

// ExtractNames scans a single reader and returns the names found,
// deduplicated in first-seen order.
func ExtractNames(r io.Reader) ([]string, error) {
	e := NewExtractor()
	if err := e.Scan(r); err != nil {
		return nil, err
	}
	return e.Names(), nil
}

// MatchLine returns the system name embedded in one journal line.
func MatchLine(line string) (string, bool) {
	m := systemLine.FindStringSubmatch(ansiSeq.ReplaceAllString(line, ""))
	if m == nil {
		return "", false
	}
	return m[1], true
}
