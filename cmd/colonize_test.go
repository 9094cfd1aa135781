// Package cmd provides CLI commands for the stargrid application.
// This file contains tests for the colonize command.
package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/adalundhe/stargrid/core/colony"
	"github.com/adalundhe/stargrid/core/galaxydb"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Colonize Command Tests
// =============================================================================

func TestColonizeCmd_Definition(t *testing.T) {
	t.Run("command is defined", func(t *testing.T) {
		assert.NotNil(t, colonizeCmd)
		assert.Equal(t, "colonize <faction> [ranges...]", colonizeCmd.Use)
	})

	t.Run("command has flags", func(t *testing.T) {
		flags := colonizeCmd.Flags()

		fromFlag := flags.Lookup("from")
		require.NotNil(t, fromFlag)
		assert.Equal(t, "", fromFlag.DefValue)

		workers := flags.Lookup("workers")
		require.NotNil(t, workers)
		assert.Equal(t, "w", workers.Shorthand)
		assert.Equal(t, "0", workers.DefValue)

		jsonFlag := flags.Lookup("json")
		require.NotNil(t, jsonFlag)
		assert.Equal(t, "false", jsonFlag.DefValue)
	})

	t.Run("accepts one to three arguments", func(t *testing.T) {
		err := cobra.RangeArgs(1, 3)(colonizeCmd, []string{})
		assert.Error(t, err)

		err = cobra.RangeArgs(1, 3)(colonizeCmd, []string{"Veil Mining Guild"})
		assert.NoError(t, err)

		err = cobra.RangeArgs(1, 3)(colonizeCmd, []string{"ANY", "Sol", "100", "20"})
		assert.Error(t, err)
	})
}

// =============================================================================
// Parameter Building Tests
// =============================================================================

func TestColonizeParams(t *testing.T) {
	defer func() {
		colonizeFrom = ""
	}()

	tests := []struct {
		name    string
		from    string
		args    []string
		want    colony.Params
		wantErr string
	}{
		{
			name: "faction only",
			args: []string{"Veil Mining Guild"},
			want: colony.Params{
				Faction:        "Veil Mining Guild",
				CandidateRange: 15,
			},
		},
		{
			name: "candidate range override",
			args: []string{"Veil Mining Guild", "20"},
			want: colony.Params{
				Faction:        "Veil Mining Guild",
				CandidateRange: 20,
			},
		},
		{
			name:    "too many ranges without from",
			args:    []string{"Veil Mining Guild", "20", "30"},
			wantErr: "too many range arguments",
		},
		{
			name:    "from requires a reference range",
			from:    "Sol",
			args:    []string{"ANY"},
			wantErr: "--from requires a reference range",
		},
		{
			name: "from with reference range",
			from: "Sol",
			args: []string{"ANY", "100"},
			want: colony.Params{
				Faction:         "ANY",
				CandidateRange:  15,
				ReferenceSystem: "Sol",
				ReferenceRange:  100,
			},
		},
		{
			name: "from with both ranges",
			from: "Sol",
			args: []string{"ANY", "100", "20"},
			want: colony.Params{
				Faction:         "ANY",
				CandidateRange:  20,
				ReferenceSystem: "Sol",
				ReferenceRange:  100,
			},
		},
		{
			name:    "invalid range",
			args:    []string{"ANY", "wide"},
			wantErr: `invalid candidate range "wide"`,
		},
		{
			name:    "invalid reference range",
			from:    "Sol",
			args:    []string{"ANY", "near"},
			wantErr: `invalid reference range "near"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			colonizeFrom = tt.from

			params, err := colonizeParams(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, params)
		})
	}
}

// =============================================================================
// Output Formatting Tests
// =============================================================================

func TestOutputColonyReport(t *testing.T) {
	defer func() {
		colonizeJSON = false
	}()

	anchor := &galaxydb.StarSystem{ID64: 3, Name: "Anchor", X: 5, Y: 0, Z: 0}
	report := &colony.Report{
		Faction:        "Veil Mining Guild",
		FactionSystems: 4,
		Elapsed:        2 * time.Second,
		Candidates: []colony.Candidate{
			{
				System: &galaxydb.StarSystem{ID64: 9, Name: "Luyten's Star", X: 10, Y: 0, Z: 0},
				Population: &galaxydb.PopulationRecord{
					ID64:       9,
					Population: 42000,
				},
				Distance:             5,
				ClosestFactionSystem: anchor,
			},
		},
	}

	t.Run("rich output", func(t *testing.T) {
		colonizeJSON = false

		var buf bytes.Buffer
		err := outputColonyReport(&buf, report)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, "Colony Candidates")
		assert.Contains(t, output, "Veil Mining Guild")
		assert.Contains(t, output, "Luyten's Star")
		assert.Contains(t, output, "Closest faction system: Anchor (5.00 LY)")
		assert.NotContains(t, output, "Distance from")
	})

	t.Run("rich output with a reference system", func(t *testing.T) {
		colonizeJSON = false

		anchored := *report
		anchored.Reference = &galaxydb.StarSystem{ID64: 1, Name: "Sol"}
		anchored.Candidates = []colony.Candidate{
			{
				System:               report.Candidates[0].System,
				Population:           report.Candidates[0].Population,
				Distance:             5,
				ClosestFactionSystem: anchor,
				ReferenceDistance:    10,
			},
		}

		var buf bytes.Buffer
		err := outputColonyReport(&buf, &anchored)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, "Reference:")
		assert.Contains(t, output, "Distance from Sol: 10.00 LY")
	})

	t.Run("rich output with no candidates", func(t *testing.T) {
		colonizeJSON = false

		empty := *report
		empty.Candidates = nil

		var buf bytes.Buffer
		err := outputColonyReport(&buf, &empty)

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "No unclaimed systems in range.")
	})

	t.Run("json output", func(t *testing.T) {
		colonizeJSON = true

		var buf bytes.Buffer
		err := outputColonyReport(&buf, report)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, `"faction": "Veil Mining Guild"`)
		assert.Contains(t, output, `"faction_systems": 4`)
		assert.Contains(t, output, `"name": "Luyten's Star"`)
		assert.Contains(t, output, `"closest_faction_system": "Anchor"`)
		assert.Contains(t, output, `"population": 42000`)
		assert.NotContains(t, output, `"reference_distance"`)
	})
}
