// Package cmd provides CLI commands for the stargrid application.
// This file implements the ingest command for loading snapshot dumps.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adalundhe/stargrid/core/galaxydb"
	"github.com/adalundhe/stargrid/core/galaxydb/ingest"
	"github.com/spf13/cobra"
)

// =============================================================================
// Ingest Command Flags
// =============================================================================

var (
	ingestBatchSize int64
	ingestJSON      bool
)

// =============================================================================
// Ingest Command
// =============================================================================

// ingestCmd represents the ingest command.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load snapshot dumps into the store",
	Long: `Load gzip-compressed JSON snapshot dumps into the store.

Subcommands:
  systems     - Load a systems dump (coordinates and main star)
  population  - Load a population dump (ownership and economy)

Records are streamed, so memory use does not grow with file size. Commits
are paced adaptively: by record count under load, by wall clock when the
stream runs slow.

Examples:
  stargrid ingest systems systemsWithCoordinates.json.gz
  stargrid ingest population systemsPopulated.json.gz
  stargrid ingest systems --batch-size 100000 dump.json.gz
  stargrid --drop-index --rebuild-index ingest systems dump.json.gz`,
}

// ingestSystemsCmd loads a systems dump.
var ingestSystemsCmd = &cobra.Command{
	Use:   "systems <file>",
	Short: "Load a systems snapshot dump",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestSystems,
}

// ingestPopulationCmd loads a population dump.
var ingestPopulationCmd = &cobra.Command{
	Use:   "population <file>",
	Short: "Load a population snapshot dump",
	Long: `Load a population snapshot dump. Systems without a meaningful
population or primary economy are skipped, not stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestPopulation,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestSystemsCmd)
	ingestCmd.AddCommand(ingestPopulationCmd)

	ingestCmd.PersistentFlags().Int64VarP(&ingestBatchSize, "batch-size", "b", 0, "Records per commit (0 uses the built-in profile)")
	ingestCmd.PersistentFlags().BoolVar(&ingestJSON, "json", false, "Output the run summary as JSON")
}

// =============================================================================
// Ingest Execution
// =============================================================================

// runIngestSystems executes the systems ingest.
func runIngestSystems(cmd *cobra.Command, args []string) error {
	return runIngest(cmd, args[0], (*ingest.Pipeline).IngestSystems)
}

// runIngestPopulation executes the population ingest.
func runIngestPopulation(cmd *cobra.Command, args []string) error {
	return runIngest(cmd, args[0], (*ingest.Pipeline).IngestPopulation)
}

// runIngest drives one ingestion run under the shared store bracket.
func runIngest(cmd *cobra.Command, path string, load func(*ingest.Pipeline, context.Context, string) (*ingest.Result, error)) error {
	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	return withStore(ctx, out, true, func(ctx context.Context, db *galaxydb.GalaxyDB) error {
		progress := newProgressLine(out, !ingestJSON)

		opts := []ingest.PipelineOption{
			ingest.WithTrackerConfig(cfg.Ingest.TrackerConfig()),
			ingest.WithProgress(func(stats ingest.TrackerStats) {
				progress.set(fmt.Sprintf("%sRecords:%s %d  %sRate:%s %.0f/s  %sElapsed:%s %v",
					colorGray, colorReset, stats.Records,
					colorBlue, colorReset, stats.Rate,
					colorGray, colorReset, stats.Elapsed.Round(time.Second)))
			}),
		}
		if ingestBatchSize > 0 {
			opts = append(opts, ingest.WithBatchSize(ingestBatchSize))
		}

		result, err := load(ingest.NewPipeline(db, opts...), ctx, path)
		progress.finish()
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}

		return outputIngestResult(out, path, result)
	})
}

// =============================================================================
// Output Formatting
// =============================================================================

// ingestOutput is the JSON output for an ingestion run.
type ingestOutput struct {
	File      string `json:"file"`
	Records   int64  `json:"records"`
	Skipped   int64  `json:"skipped,omitempty"`
	Malformed int64  `json:"malformed,omitempty"`
	Commits   int64  `json:"commits"`
	Duration  string `json:"duration"`
}

// outputIngestResult prints the run summary.
func outputIngestResult(w io.Writer, path string, result *ingest.Result) error {
	if ingestJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(ingestOutput{
			File:      path,
			Records:   result.Records,
			Skipped:   result.Skipped,
			Malformed: result.Malformed,
			Commits:   result.Commits,
			Duration:  result.Elapsed.Round(time.Millisecond).String(),
		})
	}

	fmt.Fprintf(w, "%s%sIngest Complete%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%s%s%s\n", colorGray, strings.Repeat("-", 40), colorReset)
	fmt.Fprintf(w, "%sFile:%s      %s\n", colorGray, colorReset, path)
	fmt.Fprintf(w, "%sRecords:%s   %s%d%s\n", colorGray, colorReset, colorGreen, result.Records, colorReset)

	if result.Skipped > 0 {
		fmt.Fprintf(w, "%sSkipped:%s   %d\n", colorGray, colorReset, result.Skipped)
	}
	if result.Malformed > 0 {
		fmt.Fprintf(w, "%sMalformed:%s %s%d%s\n", colorGray, colorReset, colorYellow, result.Malformed, colorReset)
	}

	fmt.Fprintf(w, "%sCommits:%s   %d\n", colorGray, colorReset, result.Commits)
	fmt.Fprintf(w, "%sDuration:%s  %v\n", colorGray, colorReset, result.Elapsed.Round(time.Millisecond))
	return nil
}
