// Package cmd provides CLI commands for the stargrid application.
// This file implements the factions command for ownership queries.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/adalundhe/stargrid/core/galaxydb"
	"github.com/adalundhe/stargrid/core/search"
	"github.com/spf13/cobra"
)

// =============================================================================
// Factions Command Flags
// =============================================================================

var (
	factionsFuzzy bool
	factionsLimit int
	factionsJSON  bool
)

// =============================================================================
// Factions Command
// =============================================================================

// factionsCmd represents the factions command.
var factionsCmd = &cobra.Command{
	Use:   "factions",
	Short: "Inspect faction ownership",
	Long: `Inspect which factions control systems in the catalogue.

Subcommands:
  list     - List factions and how many systems each controls
  systems  - List the systems a faction controls

Examples:
  stargrid factions list
  stargrid factions list "Veil%"
  stargrid factions list --fuzzy "vail mining"
  stargrid factions systems "Veil Mining Guild"
  stargrid factions systems ANY`,
}

// factionsListCmd lists faction counts.
var factionsListCmd = &cobra.Command{
	Use:   "list [pattern]",
	Short: "List factions and how many systems each controls",
	Long: `List factions and how many systems each controls, sorted by name.

The pattern is a SQL LIKE pattern by default. With --fuzzy, the whole
faction list is indexed in memory and the pattern is a fuzzy query
instead, so misspellings and partial names still match.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFactionsList,
}

// factionsSystemsCmd lists systems controlled by a faction.
var factionsSystemsCmd = &cobra.Command{
	Use:   "systems <faction>",
	Short: "List the systems a faction controls",
	Long: `List every system controlled by the named faction. The faction name
ANY matches every claimed system regardless of owner.`,
	Args: cobra.ExactArgs(1),
	RunE: runFactionsSystems,
}

func init() {
	rootCmd.AddCommand(factionsCmd)
	factionsCmd.AddCommand(factionsListCmd)
	factionsCmd.AddCommand(factionsSystemsCmd)

	factionsListCmd.Flags().BoolVarP(&factionsFuzzy, "fuzzy", "f", false, "Fuzzy-match the pattern (allows typos)")
	factionsListCmd.Flags().IntVarP(&factionsLimit, "limit", "l", search.DefaultSearchLimit, "Maximum results with --fuzzy")
	factionsCmd.PersistentFlags().BoolVar(&factionsJSON, "json", false, "Output as JSON")
}

// =============================================================================
// Faction Listing
// =============================================================================

// runFactionsList lists faction counts, optionally through the fuzzy index.
func runFactionsList(cmd *cobra.Command, args []string) error {
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}
	if factionsFuzzy && pattern == "" {
		return errors.New("--fuzzy requires a pattern argument")
	}

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	return withStore(ctx, out, false, func(ctx context.Context, db *galaxydb.GalaxyDB) error {
		pops := galaxydb.NewPopulationStore(db)

		// The fuzzy index is built over the full list; the LIKE pattern
		// only applies on the direct path.
		likePattern := pattern
		if factionsFuzzy {
			likePattern = ""
		}

		counts, err := pops.ListFactions(likePattern)
		if err != nil {
			return fmt.Errorf("list factions: %w", err)
		}

		if factionsFuzzy {
			counts, err = search.Factions(ctx, counts, pattern, factionsLimit)
			if err != nil {
				return fmt.Errorf("fuzzy search: %w", err)
			}
		}

		return outputFactionCounts(out, counts)
	})
}

// =============================================================================
// Controlled Systems
// =============================================================================

// runFactionsSystems lists the systems a faction controls.
func runFactionsSystems(cmd *cobra.Command, args []string) error {
	faction := args[0]

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	return withStore(ctx, out, false, func(ctx context.Context, db *galaxydb.GalaxyDB) error {
		systems, err := galaxydb.NewPopulationStore(db).SystemsControlledBy(faction)
		if err != nil {
			return fmt.Errorf("systems controlled by %q: %w", faction, err)
		}
		return outputControlledSystems(out, faction, systems)
	})
}

// =============================================================================
// Output Formatting
// =============================================================================

// factionOutput is the JSON shape of one faction count.
type factionOutput struct {
	Name    string `json:"name"`
	Systems int64  `json:"systems"`
}

// controlledOutput is the JSON shape of one controlled system.
type controlledOutput struct {
	systemJSON
	Population *populationJSON `json:"population,omitempty"`
}

// outputFactionCounts prints the faction counts listing.
func outputFactionCounts(w io.Writer, counts []galaxydb.FactionCount) error {
	if factionsJSON {
		out := make([]factionOutput, 0, len(counts))
		for _, fc := range counts {
			out = append(out, factionOutput{Name: fc.Name, Systems: fc.Systems})
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	if len(counts) == 0 {
		fmt.Fprintf(w, "%sNo factions found.%s\n", colorYellow, colorReset)
		return nil
	}

	fmt.Fprintf(w, "%sFactions:%s %d\n", colorGray, colorReset, len(counts))
	fmt.Fprintln(w)
	for _, fc := range counts {
		fmt.Fprintf(w, "%s%6d%s  %s\n", colorGreen, fc.Systems, colorReset, fc.Name)
	}
	return nil
}

// outputControlledSystems prints the controlled systems listing.
func outputControlledSystems(w io.Writer, faction string, systems []galaxydb.SystemWithPopulation) error {
	if factionsJSON {
		out := make([]controlledOutput, 0, len(systems))
		for _, swp := range systems {
			out = append(out, controlledOutput{
				systemJSON: *newSystemJSON(swp.System),
				Population: newPopulationJSON(swp.Population),
			})
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	if len(systems) == 0 {
		fmt.Fprintf(w, "%sNo systems controlled by %s.%s\n", colorYellow, faction, colorReset)
		return nil
	}

	fmt.Fprintf(w, "%sSystems controlled by %s:%s %d\n", colorGray, faction, colorReset, len(systems))
	fmt.Fprintln(w)
	for _, swp := range systems {
		line := fmt.Sprintf("  %s%s%s (ID64: %d)", colorBold, swp.System.Name, colorReset, swp.System.ID64)
		if swp.Population != nil {
			line += fmt.Sprintf("  %spopulation%s %d", colorGray, colorReset, swp.Population.Population)
			if galaxydb.IsAnyFaction(faction) {
				line += fmt.Sprintf("  %s[%s]%s", colorCyan, swp.Population.ControllingFaction, colorReset)
			}
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
