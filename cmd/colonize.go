// Package cmd provides CLI commands for the stargrid application.
// This file implements the colonize command for expansion planning.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adalundhe/stargrid/core/colony"
	"github.com/adalundhe/stargrid/core/galaxydb"
	"github.com/spf13/cobra"
)

// =============================================================================
// Colonize Command Flags
// =============================================================================

var (
	colonizeFrom    string
	colonizeWorkers int
	colonizeJSON    bool
)

// =============================================================================
// Colonize Command
// =============================================================================

// colonizeCmd represents the colonize command.
var colonizeCmd = &cobra.Command{
	Use:   "colonize <faction> [ranges...]",
	Short: "Find colony candidates near a faction's systems",
	Long: `Find unclaimed populated systems within range of a faction's
controlled systems.

Without --from, the whole catalogue is scanned and the optional range
argument sets the candidate range in light years. With --from, the
search is anchored on the named reference system: the first range
argument is the radius around it to consider (required), and the
second optionally overrides the candidate range.

Examples:
  stargrid colonize "Veil Mining Guild"
  stargrid colonize "Veil Mining Guild" 20
  stargrid colonize ANY --from Sol 100
  stargrid colonize "Veil Mining Guild" --from Sol 100 20`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runColonize,
}

func init() {
	rootCmd.AddCommand(colonizeCmd)

	colonizeCmd.Flags().StringVar(&colonizeFrom, "from", "", "Reference system to anchor the search on")
	colonizeCmd.Flags().IntVarP(&colonizeWorkers, "workers", "w", 0, "Scan workers (0 = configured default)")
	colonizeCmd.Flags().BoolVar(&colonizeJSON, "json", false, "Output as JSON")
}

// =============================================================================
// Colonize Execution
// =============================================================================

// colonizeParams builds search parameters from the positional arguments.
// The meaning of the range arguments shifts with --from: anchored searches
// take the reference range first.
func colonizeParams(args []string) (colony.Params, error) {
	params := colony.Params{
		Faction:         args[0],
		CandidateRange:  cfg.Colony.CandidateRange,
		ReferenceSystem: colonizeFrom,
	}
	ranges := args[1:]

	if colonizeFrom != "" {
		if len(ranges) == 0 {
			return params, errors.New("--from requires a reference range argument")
		}
		refRange, err := parseFloatArg("reference range", ranges[0])
		if err != nil {
			return params, err
		}
		params.ReferenceRange = refRange
		ranges = ranges[1:]
	}

	if len(ranges) > 0 {
		candidateRange, err := parseFloatArg("candidate range", ranges[0])
		if err != nil {
			return params, err
		}
		params.CandidateRange = candidateRange
		ranges = ranges[1:]
	}

	if len(ranges) > 0 {
		return params, errors.New("too many range arguments")
	}
	return params, nil
}

// runColonize scans for colony candidates and prints the report.
func runColonize(cmd *cobra.Command, args []string) error {
	params, err := colonizeParams(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	return withStore(ctx, out, false, func(ctx context.Context, db *galaxydb.GalaxyDB) error {
		progress := newProgressLine(out, !colonizeJSON)

		workers := cfg.Colony.Workers
		if colonizeWorkers > 0 {
			workers = colonizeWorkers
		}

		searcher := colony.NewSearcher(db,
			colony.WithWorkers(workers),
			colony.WithReportInterval(cfg.Colony.Interval()),
			colony.WithProgress(func(p colony.Progress) {
				progress.set(fmt.Sprintf("%sScanned:%s %d/%d  %sFound:%s %d  %sElapsed:%s %v",
					colorGray, colorReset, p.Processed, p.Total,
					colorGray, colorReset, p.Found,
					colorGray, colorReset, p.Elapsed.Round(time.Second)))
			}),
		)

		report, err := searcher.Search(ctx, params)
		progress.finish()
		if err != nil {
			if errors.Is(err, colony.ErrNoFactionSystems) {
				fmt.Fprintf(out, "%sNo systems controlled by %s in the search area.%s\n",
					colorYellow, params.Faction, colorReset)
				return nil
			}
			return fmt.Errorf("colonize: %w", err)
		}

		return outputColonyReport(out, report)
	})
}

// =============================================================================
// Output Formatting
// =============================================================================

// candidateOutput is the JSON shape of one colony candidate.
type candidateOutput struct {
	systemJSON
	Population        int64   `json:"population"`
	Distance          float64 `json:"distance"`
	ClosestSystem     string  `json:"closest_faction_system"`
	ClosestSystemID64 int64   `json:"closest_faction_system_id64"`
	ReferenceDistance float64 `json:"reference_distance,omitempty"`
}

// colonyOutput is the JSON shape of the full report.
type colonyOutput struct {
	Faction        string            `json:"faction"`
	Reference      *systemJSON       `json:"reference,omitempty"`
	FactionSystems int               `json:"faction_systems"`
	Elapsed        string            `json:"elapsed"`
	Candidates     []candidateOutput `json:"candidates"`
}

// outputColonyReport prints the colony candidate report.
func outputColonyReport(w io.Writer, report *colony.Report) error {
	if colonizeJSON {
		out := colonyOutput{
			Faction:        report.Faction,
			FactionSystems: report.FactionSystems,
			Elapsed:        report.Elapsed.Round(time.Millisecond).String(),
			Candidates:     make([]candidateOutput, 0, len(report.Candidates)),
		}
		if report.Reference != nil {
			out.Reference = newSystemJSON(report.Reference)
		}
		for _, c := range report.Candidates {
			entry := candidateOutput{
				systemJSON:        *newSystemJSON(c.System),
				Distance:          c.Distance,
				ClosestSystem:     c.ClosestFactionSystem.Name,
				ClosestSystemID64: c.ClosestFactionSystem.ID64,
				ReferenceDistance: c.ReferenceDistance,
			}
			if c.Population != nil {
				entry.Population = c.Population.Population
			}
			out.Candidates = append(out.Candidates, entry)
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	fmt.Fprintf(w, "%s%sColony Candidates%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%s%s%s\n", colorGray, strings.Repeat("-", 40), colorReset)
	fmt.Fprintf(w, "%sFaction:%s %s\n", colorGray, colorReset, report.Faction)
	if report.Reference != nil {
		fmt.Fprintf(w, "%sReference:%s %s (ID64: %d)\n", colorGray, colorReset,
			report.Reference.Name, report.Reference.ID64)
	}
	fmt.Fprintf(w, "%sFaction systems:%s %d\n", colorGray, colorReset, report.FactionSystems)
	fmt.Fprintf(w, "%sCandidates:%s %s%d%s\n", colorGray, colorReset,
		colorGreen, len(report.Candidates), colorReset)
	fmt.Fprintf(w, "%sElapsed:%s %v\n", colorGray, colorReset, report.Elapsed.Round(time.Millisecond))

	if len(report.Candidates) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%sNo unclaimed systems in range.%s\n", colorYellow, colorReset)
		return nil
	}

	fmt.Fprintln(w)
	for i, c := range report.Candidates {
		population := int64(0)
		if c.Population != nil {
			population = c.Population.Population
		}
		fmt.Fprintf(w, "%s%d.%s %s%s%s (ID64: %d)  %spopulation%s %d\n",
			colorGray, i+1, colorReset,
			colorBold, c.System.Name, colorReset, c.System.ID64,
			colorGray, colorReset, population)
		fmt.Fprintf(w, "   Closest faction system: %s (%.2f LY)\n",
			c.ClosestFactionSystem.Name, c.Distance)
		if report.Reference != nil {
			fmt.Fprintf(w, "   Distance from %s: %.2f LY\n",
				report.Reference.Name, c.ReferenceDistance)
		}
		fmt.Fprintln(w)
	}
	return nil
}
