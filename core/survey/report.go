package survey

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const reportDivider = "----------------------------------------"

// Failure records one system whose enrichment failed outright.
type Failure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Report is the outcome of one survey run.
type Report struct {
	Interesting   []Assessment `json:"interesting"`
	Uninteresting int          `json:"uninteresting"`
	Unknown       []string     `json:"unknown,omitempty"`
	Failures      []Failure    `json:"failures,omitempty"`
}

// WriteText renders the report as the classic survey listing: one block
// per interesting system, then a trailing summary line.
func (r *Report) WriteText(w io.Writer) error {
	for _, a := range r.Interesting {
		if err := writeAssessment(w, a); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%d interesting, %d uninteresting, %d unknown",
		len(r.Interesting), r.Uninteresting, len(r.Unknown))
	if len(r.Failures) > 0 {
		summary += fmt.Sprintf(", %d failed", len(r.Failures))
	}
	if _, err := fmt.Fprintln(w, summary); err != nil {
		return err
	}

	for _, f := range r.Failures {
		if _, err := fmt.Fprintf(w, "fetch failed for %s: %s\n", f.Name, f.Error); err != nil {
			return err
		}
	}
	return nil
}

func writeAssessment(w io.Writer, a Assessment) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", a.Name)
	fmt.Fprintf(&b, "Main star: %s\n", a.MainStar)
	fmt.Fprintf(&b, "Stars: %2d planets: %2d\n", a.Stars, a.Planets)
	fmt.Fprintf(&b, "Landable: %d Atmosphere: %d\n", a.Landable, a.Atmospheres)
	if a.Coords != nil {
		fmt.Fprintf(&b, "Coordinates: (%.2f, %.2f, %.2f)\n", a.Coords.X, a.Coords.Y, a.Coords.Z)
	}
	if a.Permit != "" {
		fmt.Fprintf(&b, "Permit required: %s\n", a.Permit)
	}
	fmt.Fprintf(&b, "%s\n", reportDivider)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
