// Package cmd provides CLI commands for the stargrid application.
// This file contains tests for the ingest command.
package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/adalundhe/stargrid/core/galaxydb/ingest"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Ingest Command Tests
// =============================================================================

func TestIngestCmd_Definition(t *testing.T) {
	t.Run("command is defined", func(t *testing.T) {
		assert.NotNil(t, ingestCmd)
		assert.Equal(t, "ingest", ingestCmd.Use)
		assert.Equal(t, "systems <file>", ingestSystemsCmd.Use)
		assert.Equal(t, "population <file>", ingestPopulationCmd.Use)
	})

	t.Run("command has flags", func(t *testing.T) {
		flags := ingestCmd.PersistentFlags()

		// Check batch-size flag
		batchSize := flags.Lookup("batch-size")
		require.NotNil(t, batchSize)
		assert.Equal(t, "b", batchSize.Shorthand)
		assert.Equal(t, "0", batchSize.DefValue)

		// Check json flag
		jsonFlag := flags.Lookup("json")
		require.NotNil(t, jsonFlag)
		assert.Equal(t, "false", jsonFlag.DefValue)
	})

	t.Run("subcommands require exactly one file", func(t *testing.T) {
		err := cobra.ExactArgs(1)(ingestSystemsCmd, []string{})
		assert.Error(t, err)

		err = cobra.ExactArgs(1)(ingestSystemsCmd, []string{"dump.json.gz"})
		assert.NoError(t, err)

		err = cobra.ExactArgs(1)(ingestPopulationCmd, []string{"a", "b"})
		assert.Error(t, err)
	})
}

// =============================================================================
// Output Formatting Tests
// =============================================================================

func TestOutputIngestResult(t *testing.T) {
	defer func() {
		ingestJSON = false
	}()

	result := &ingest.Result{
		Records:   250000,
		Skipped:   120,
		Malformed: 3,
		Commits:   5,
		Elapsed:   1500 * time.Millisecond,
	}

	t.Run("json output", func(t *testing.T) {
		ingestJSON = true

		var buf bytes.Buffer
		err := outputIngestResult(&buf, "dump.json.gz", result)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, `"file": "dump.json.gz"`)
		assert.Contains(t, output, `"records": 250000`)
		assert.Contains(t, output, `"skipped": 120`)
		assert.Contains(t, output, `"malformed": 3`)
		assert.Contains(t, output, `"commits": 5`)
		assert.Contains(t, output, `"duration": "1.5s"`)
	})

	t.Run("json output omits zero counters", func(t *testing.T) {
		ingestJSON = true

		var buf bytes.Buffer
		err := outputIngestResult(&buf, "dump.json.gz", &ingest.Result{Records: 10, Commits: 1})

		require.NoError(t, err)
		output := buf.String()
		assert.NotContains(t, output, "skipped")
		assert.NotContains(t, output, "malformed")
	})

	t.Run("rich output", func(t *testing.T) {
		ingestJSON = false

		var buf bytes.Buffer
		err := outputIngestResult(&buf, "dump.json.gz", result)

		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, "Ingest Complete")
		assert.Contains(t, output, "dump.json.gz")
		assert.Contains(t, output, "250000")
		assert.Contains(t, output, "Skipped:")
		assert.Contains(t, output, "Malformed:")
	})

	t.Run("rich output hides zero counters", func(t *testing.T) {
		ingestJSON = false

		var buf bytes.Buffer
		err := outputIngestResult(&buf, "dump.json.gz", &ingest.Result{Records: 10, Commits: 1})

		require.NoError(t, err)
		output := buf.String()
		assert.NotContains(t, output, "Skipped:")
		assert.NotContains(t, output, "Malformed:")
	})
}
