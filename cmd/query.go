// Package cmd provides CLI commands for the stargrid application.
// This file implements the query command for point and radius lookups.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/adalundhe/stargrid/core/galaxydb"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

// =============================================================================
// Query Command Flags
// =============================================================================

var (
	querySystemID64 int64
	querySystemName string
	queryJSON       bool
)

// =============================================================================
// Query Command
// =============================================================================

// queryCmd represents the query command.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored systems",
	Long: `Query the catalogue directly.

Subcommands:
  system  - Look up one system by id64 or name
  radius  - List every system within a radius of a point

Examples:
  stargrid query system --name Sol
  stargrid query system --id64 10477373803
  stargrid query radius 0 0 0 20
  stargrid query radius --json 49.5 -104 318.2 15 | jq '.[].name'`,
}

// querySystemCmd looks up a single system.
var querySystemCmd = &cobra.Command{
	Use:   "system",
	Short: "Look up one system by id64 or name",
	Long: `Look up one system by id64 or name and print its coordinates, main
star and population data. Names are not guaranteed unique; the first
match wins.`,
	Args: cobra.NoArgs,
	RunE: runQuerySystem,
}

// queryRadiusCmd lists systems within a radius of a point.
var queryRadiusCmd = &cobra.Command{
	Use:   "radius <x> <y> <z> <radius>",
	Short: "List systems within a radius of a point",
	Args:  cobra.ExactArgs(4),
	RunE:  runQueryRadius,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.AddCommand(querySystemCmd)
	queryCmd.AddCommand(queryRadiusCmd)

	querySystemCmd.Flags().Int64Var(&querySystemID64, "id64", 0, "System id64 to look up")
	querySystemCmd.Flags().StringVar(&querySystemName, "name", "", "System name to look up")
	queryCmd.PersistentFlags().BoolVar(&queryJSON, "json", false, "Output as JSON")
}

// =============================================================================
// Point Lookup
// =============================================================================

// runQuerySystem executes the point lookup.
func runQuerySystem(cmd *cobra.Command, args []string) error {
	if (querySystemID64 == 0) == (querySystemName == "") {
		return errors.New("exactly one of --id64 or --name is required")
	}

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	return withStore(ctx, out, false, func(ctx context.Context, db *galaxydb.GalaxyDB) error {
		systems := galaxydb.NewSystemStore(db)

		var (
			sys *galaxydb.StarSystem
			err error
		)
		if querySystemName != "" {
			sys, err = systems.ByName(querySystemName)
		} else {
			sys, err = systems.ByID(querySystemID64)
		}
		if errors.Is(err, galaxydb.ErrSystemNotFound) {
			return outputSystemMiss(out)
		}
		if err != nil {
			return fmt.Errorf("look up system: %w", err)
		}

		pop, err := galaxydb.NewPopulationStore(db).ByID(sys.ID64)
		if errors.Is(err, galaxydb.ErrPopulationNotFound) {
			pop = nil
		} else if err != nil {
			return fmt.Errorf("look up population: %w", err)
		}

		return outputSystem(out, sys, pop)
	})
}

// =============================================================================
// Radius Query
// =============================================================================

// runQueryRadius executes the radius query.
func runQueryRadius(cmd *cobra.Command, args []string) error {
	var (
		center r3.Vec
		err    error
	)
	if center.X, err = parseFloatArg("x", args[0]); err != nil {
		return err
	}
	if center.Y, err = parseFloatArg("y", args[1]); err != nil {
		return err
	}
	if center.Z, err = parseFloatArg("z", args[2]); err != nil {
		return err
	}
	radius, err := parseFloatArg("radius", args[3])
	if err != nil {
		return err
	}
	if radius <= 0 {
		return fmt.Errorf("radius must be positive, got %g", radius)
	}

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	return withStore(ctx, out, false, func(ctx context.Context, db *galaxydb.GalaxyDB) error {
		results, err := galaxydb.NewProximityStore(db).WithinRadius(center, radius)
		if err != nil {
			return fmt.Errorf("radius query: %w", err)
		}

		// Scan order is unspecified; present nearest first.
		sort.Slice(results, func(i, j int) bool {
			if results[i].Distance != results[j].Distance {
				return results[i].Distance < results[j].Distance
			}
			return results[i].System.ID64 < results[j].System.ID64
		})

		return outputProximityResults(out, center, radius, results)
	})
}

// parseFloatArg parses a positional float argument, naming it on failure.
func parseFloatArg(name, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return f, nil
}

// =============================================================================
// Output Formatting
// =============================================================================

// systemJSON is the JSON shape of one system.
type systemJSON struct {
	ID64     int64   `json:"id64"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	MainStar string  `json:"main_star"`
}

// populationJSON is the JSON shape of a population record.
type populationJSON struct {
	Population         int64  `json:"population"`
	Security           string `json:"security,omitempty"`
	ControllingFaction string `json:"controlling_faction,omitempty"`
	PrimaryEconomy     string `json:"primary_economy,omitempty"`
	SecondaryEconomy   string `json:"secondary_economy,omitempty"`
}

// systemOutput is the JSON output for a point lookup.
type systemOutput struct {
	Found      bool            `json:"found"`
	System     *systemJSON     `json:"system,omitempty"`
	Population *populationJSON `json:"population,omitempty"`
}

// proximityJSON is the JSON shape of one radius query hit.
type proximityJSON struct {
	systemJSON
	Distance   float64         `json:"distance"`
	Population *populationJSON `json:"population,omitempty"`
}

func newSystemJSON(sys *galaxydb.StarSystem) *systemJSON {
	return &systemJSON{
		ID64:     sys.ID64,
		Name:     sys.Name,
		X:        sys.X,
		Y:        sys.Y,
		Z:        sys.Z,
		MainStar: sys.MainStar,
	}
}

func newPopulationJSON(pop *galaxydb.PopulationRecord) *populationJSON {
	if pop == nil {
		return nil
	}
	return &populationJSON{
		Population:         pop.Population,
		Security:           pop.Security,
		ControllingFaction: pop.ControllingFaction,
		PrimaryEconomy:     pop.PrimaryEconomy,
		SecondaryEconomy:   pop.SecondaryEconomy,
	}
}

// outputSystemMiss reports a lookup that found nothing.
func outputSystemMiss(w io.Writer) error {
	if queryJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(systemOutput{})
	}
	fmt.Fprintf(w, "%sSystem not found.%s\n", colorYellow, colorReset)
	return nil
}

// outputSystem prints the system block with its population data.
func outputSystem(w io.Writer, sys *galaxydb.StarSystem, pop *galaxydb.PopulationRecord) error {
	if queryJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(systemOutput{
			Found:      true,
			System:     newSystemJSON(sys),
			Population: newPopulationJSON(pop),
		})
	}

	fmt.Fprintf(w, "%sSystem:%s %s%s%s (ID64: %d)\n", colorGray, colorReset, colorBold, sys.Name, colorReset, sys.ID64)
	fmt.Fprintf(w, "%sCoordinates:%s (%.2f, %.2f, %.2f)\n", colorGray, colorReset, sys.X, sys.Y, sys.Z)
	fmt.Fprintf(w, "%sMain star:%s %s\n", colorGray, colorReset, sys.MainStar)

	if pop == nil {
		fmt.Fprintf(w, "%sNo population data available.%s\n", colorGray, colorReset)
		return nil
	}

	fmt.Fprintf(w, "%sPopulation:%s %d\n", colorGray, colorReset, pop.Population)
	fmt.Fprintf(w, "%sSecurity:%s %s\n", colorGray, colorReset, pop.Security)
	if pop.ControllingFaction == "" {
		fmt.Fprintf(w, "%sControlling faction:%s %sunclaimed%s\n", colorGray, colorReset, colorYellow, colorReset)
	} else {
		fmt.Fprintf(w, "%sControlling faction:%s %s\n", colorGray, colorReset, pop.ControllingFaction)
	}
	fmt.Fprintf(w, "%sPrimary economy:%s %s\n", colorGray, colorReset, pop.PrimaryEconomy)
	if pop.SecondaryEconomy != "" {
		fmt.Fprintf(w, "%sSecondary economy:%s %s\n", colorGray, colorReset, pop.SecondaryEconomy)
	}
	return nil
}

// outputProximityResults prints the radius query listing, nearest first.
func outputProximityResults(w io.Writer, center r3.Vec, radius float64, results []galaxydb.ProximityResult) error {
	if queryJSON {
		hits := make([]proximityJSON, 0, len(results))
		for _, res := range results {
			hits = append(hits, proximityJSON{
				systemJSON: *newSystemJSON(res.System),
				Distance:   res.Distance,
				Population: newPopulationJSON(res.Population),
			})
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(hits)
	}

	fmt.Fprintf(w, "%sFound:%s %d systems within %.2f LY of (%.2f, %.2f, %.2f)\n",
		colorGray, colorReset, len(results), radius, center.X, center.Y, center.Z)
	if len(results) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	for _, res := range results {
		owner := colorGray + "unclaimed" + colorReset
		if res.Population != nil && res.Population.ControllingFaction != "" {
			owner = res.Population.ControllingFaction
		}
		fmt.Fprintf(w, "%8.2f LY  %s%s%s (ID64: %d)  %s\n",
			res.Distance, colorBold, res.System.Name, colorReset, res.System.ID64, owner)
	}
	return nil
}
