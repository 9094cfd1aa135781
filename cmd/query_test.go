// Package cmd provides CLI commands for the stargrid application.
// This file contains tests for the query command.
package cmd

import (
	"bytes"
	"testing"

	"github.com/adalundhe/stargrid/core/galaxydb"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// =============================================================================
// Query Command Tests
// =============================================================================

func TestQueryCmd_Definition(t *testing.T) {
	t.Run("command is defined", func(t *testing.T) {
		assert.NotNil(t, queryCmd)
		assert.Equal(t, "query", queryCmd.Use)
		assert.Equal(t, "system", querySystemCmd.Use)
		assert.Equal(t, "radius <x> <y> <z> <radius>", queryRadiusCmd.Use)
	})

	t.Run("system command has flags", func(t *testing.T) {
		flags := querySystemCmd.Flags()

		id64Flag := flags.Lookup("id64")
		require.NotNil(t, id64Flag)
		assert.Equal(t, "0", id64Flag.DefValue)

		nameFlag := flags.Lookup("name")
		require.NotNil(t, nameFlag)
		assert.Equal(t, "", nameFlag.DefValue)

		jsonFlag := queryCmd.PersistentFlags().Lookup("json")
		require.NotNil(t, jsonFlag)
		assert.Equal(t, "false", jsonFlag.DefValue)
	})

	t.Run("system rejects selector misuse", func(t *testing.T) {
		defer func() {
			querySystemID64 = 0
			querySystemName = ""
		}()

		// Neither selector.
		querySystemID64 = 0
		querySystemName = ""
		err := runQuerySystem(querySystemCmd, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one of")

		// Both selectors.
		querySystemID64 = 42
		querySystemName = "Sol"
		err = runQuerySystem(querySystemCmd, nil)
		assert.Error(t, err)
	})

	t.Run("radius requires four arguments", func(t *testing.T) {
		err := cobra.ExactArgs(4)(queryRadiusCmd, []string{"0", "0", "0"})
		assert.Error(t, err)

		err = cobra.ExactArgs(4)(queryRadiusCmd, []string{"0", "0", "0", "20"})
		assert.NoError(t, err)
	})
}

// =============================================================================
// Argument Parsing Tests
// =============================================================================

func TestParseFloatArg(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    float64
		wantErr bool
	}{
		{"x", "1.5", 1.5, false},
		{"y", "-104", -104, false},
		{"z", "318.1875", 318.1875, false},
		{"radius", "abc", 0, true},
		{"radius", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name+" "+tt.value, func(t *testing.T) {
			got, err := parseFloatArg(tt.name, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.name)
				assert.Contains(t, err.Error(), tt.value)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Point Lookup Output Tests
// =============================================================================

func TestOutputSystem(t *testing.T) {
	defer func() {
		queryJSON = false
	}()

	sol := &galaxydb.StarSystem{
		ID64:     10477373803,
		Name:     "Sol",
		MainStar: "G (White-Yellow) Star",
	}
	pop := &galaxydb.PopulationRecord{
		ID64:               10477373803,
		Population:         22780871769,
		Security:           "High",
		ControllingFaction: "Mother Gaia",
		PrimaryEconomy:     "Refinery",
		SecondaryEconomy:   "Service",
	}

	t.Run("rich output with population", func(t *testing.T) {
		queryJSON = false

		var buf bytes.Buffer
		err := outputSystem(&buf, sol, pop)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, "Sol")
		assert.Contains(t, output, "(ID64: 10477373803)")
		assert.Contains(t, output, "(0.00, 0.00, 0.00)")
		assert.Contains(t, output, "Mother Gaia")
		assert.Contains(t, output, "Secondary economy:")
	})

	t.Run("rich output marks unclaimed systems", func(t *testing.T) {
		queryJSON = false
		unclaimed := *pop
		unclaimed.ControllingFaction = ""

		var buf bytes.Buffer
		err := outputSystem(&buf, sol, &unclaimed)

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "unclaimed")
	})

	t.Run("rich output without population", func(t *testing.T) {
		queryJSON = false

		var buf bytes.Buffer
		err := outputSystem(&buf, sol, nil)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, "No population data available.")
		assert.NotContains(t, output, "Population:")
	})

	t.Run("json output", func(t *testing.T) {
		queryJSON = true

		var buf bytes.Buffer
		err := outputSystem(&buf, sol, pop)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, `"found": true`)
		assert.Contains(t, output, `"id64": 10477373803`)
		assert.Contains(t, output, `"name": "Sol"`)
		assert.Contains(t, output, `"controlling_faction": "Mother Gaia"`)
	})

	t.Run("json output keeps origin coordinates", func(t *testing.T) {
		queryJSON = true

		var buf bytes.Buffer
		err := outputSystem(&buf, sol, nil)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, `"x": 0`)
		assert.NotContains(t, output, `"population"`)
	})
}

func TestOutputSystemMiss(t *testing.T) {
	defer func() {
		queryJSON = false
	}()

	t.Run("rich output", func(t *testing.T) {
		queryJSON = false

		var buf bytes.Buffer
		err := outputSystemMiss(&buf)

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "System not found.")
	})

	t.Run("json output", func(t *testing.T) {
		queryJSON = true

		var buf bytes.Buffer
		err := outputSystemMiss(&buf)

		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"found": false`)
	})
}

// =============================================================================
// Radius Output Tests
// =============================================================================

func TestOutputProximityResults(t *testing.T) {
	defer func() {
		queryJSON = false
	}()

	center := r3.Vec{X: 1, Y: 2, Z: 3}
	results := []galaxydb.ProximityResult{
		{
			System:   &galaxydb.StarSystem{ID64: 1, Name: "Barnard's Star", X: 2, Y: 2, Z: 3, MainStar: "M (Red dwarf) Star"},
			Distance: 1,
			Population: &galaxydb.PopulationRecord{
				ID64:               1,
				Population:         50000,
				ControllingFaction: "Veil Mining Guild",
			},
		},
		{
			System:   &galaxydb.StarSystem{ID64: 2, Name: "Wolf 359", X: 1, Y: 2, Z: 15.5, MainStar: "M (Red dwarf) Star"},
			Distance: 12.5,
		},
	}

	t.Run("rich output", func(t *testing.T) {
		queryJSON = false

		var buf bytes.Buffer
		err := outputProximityResults(&buf, center, 20, results)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, "2 systems within 20.00 LY of (1.00, 2.00, 3.00)")
		assert.Contains(t, output, "Barnard's Star")
		assert.Contains(t, output, "Veil Mining Guild")
		assert.Contains(t, output, "12.50 LY")
		assert.Contains(t, output, "unclaimed")
	})

	t.Run("rich output with no hits", func(t *testing.T) {
		queryJSON = false

		var buf bytes.Buffer
		err := outputProximityResults(&buf, center, 5, nil)

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "0 systems within 5.00 LY")
	})

	t.Run("json output", func(t *testing.T) {
		queryJSON = true

		var buf bytes.Buffer
		err := outputProximityResults(&buf, center, 20, results)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, `"name": "Barnard's Star"`)
		assert.Contains(t, output, `"distance": 1`)
		assert.Contains(t, output, `"distance": 12.5`)
		assert.Contains(t, output, `"controlling_faction": "Veil Mining Guild"`)
	})
}
