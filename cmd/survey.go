// Package cmd provides CLI commands for the stargrid application.
// This file implements the survey command for journal-driven system surveys.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/adalundhe/stargrid/core/edsm"
	"github.com/adalundhe/stargrid/core/journal"
	"github.com/adalundhe/stargrid/core/survey"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// =============================================================================
// Survey Command Flags
// =============================================================================

var (
	surveyFollowDir string
	surveyCacheDir  string
	surveyMinBodies int
	surveyJSON      bool
)

// =============================================================================
// Survey Command
// =============================================================================

// surveyCmd represents the survey command.
var surveyCmd = &cobra.Command{
	Use:   "survey",
	Short: "Survey systems named in player journals",
	Long: `Survey systems named in player journals against EDSM.

Subcommands:
  extract  - Extract system names from journals and assess each one

Examples:
  stargrid survey extract Journal.2026-08-01T120000.log
  stargrid survey extract --min-bodies 10 *.log
  stargrid survey extract < Journal.2026-08-01T120000.log
  stargrid survey extract --follow ~/saves/journals`,
}

// surveyExtractCmd extracts names and assesses them.
var surveyExtractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract system names from journals and assess each one",
	Long: `Extract system names from journal files and assess each one
against EDSM. With no files, names are read from standard input.

With --follow, the named directory is watched instead and every newly
journalled system is assessed as it appears, until interrupted.`,
	RunE: runSurveyExtract,
}

func init() {
	rootCmd.AddCommand(surveyCmd)
	surveyCmd.AddCommand(surveyExtractCmd)

	surveyExtractCmd.Flags().StringVar(&surveyFollowDir, "follow", "", "Watch a journal directory instead of reading files")
	surveyExtractCmd.Flags().StringVar(&surveyCacheDir, "cache-dir", "", "EDSM response cache directory (default from config)")
	surveyExtractCmd.Flags().IntVar(&surveyMinBodies, "min-bodies", 0, "Bodies required before a system is interesting (0 = default)")
	surveyExtractCmd.Flags().BoolVar(&surveyJSON, "json", false, "Output as JSON")
}

// =============================================================================
// Survey Execution
// =============================================================================

// runSurveyExtract assesses journalled systems, in one batch or by
// following a directory.
func runSurveyExtract(cmd *cobra.Command, args []string) error {
	if surveyJSON && surveyFollowDir != "" {
		return errors.New("--json cannot be combined with --follow")
	}

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	client, cleanup, err := newEnrichmentClient()
	if err != nil {
		return err
	}
	defer cleanup()

	if surveyFollowDir != "" {
		return followJournals(ctx, out, client)
	}

	names, err := gatherNames(cmd, args)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(out, "%sNo system names found.%s\n", colorYellow, colorReset)
		return nil
	}
	return surveyBatch(ctx, out, client, names)
}

// gatherNames extracts system names from the argument files, or from
// standard input when none are given.
func gatherNames(cmd *cobra.Command, args []string) ([]string, error) {
	extractor := journal.NewExtractor()
	if len(args) == 0 {
		if err := extractor.Scan(cmd.InOrStdin()); err != nil {
			return nil, fmt.Errorf("scan stdin: %w", err)
		}
		return extractor.Names(), nil
	}
	for _, path := range args {
		if err := extractor.ScanFile(path); err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
	}
	return extractor.Names(), nil
}

// newEnrichmentClient builds the EDSM client and its response cache.
// The returned cleanup closes the cache.
func newEnrichmentClient() (*edsm.Client, func(), error) {
	cacheDir := surveyCacheDir
	if cacheDir == "" {
		cacheDir = cfg.EDSM.CacheDir
	}
	cache, err := edsm.NewCache(cacheDir, edsm.DefaultCacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache %s: %w", cacheDir, err)
	}
	client := edsm.NewClient(cache,
		edsm.WithBaseURL(cfg.EDSM.BaseURL),
		edsm.WithRateLimit(rate.Limit(cfg.EDSM.RatePerSecond)),
		edsm.WithHTTPClient(&http.Client{Timeout: cfg.EDSM.RequestTimeout()}),
	)
	return client, func() { cache.Close() }, nil
}

// surveyorOptions builds the shared surveyor options.
func surveyorOptions() []survey.SurveyorOption {
	var opts []survey.SurveyorOption
	if surveyMinBodies > 0 {
		opts = append(opts, survey.WithMinBodies(surveyMinBodies))
	}
	return opts
}

// surveyBatch assesses a fixed list of names and writes the full report.
func surveyBatch(ctx context.Context, w io.Writer, client *edsm.Client, names []string) error {
	progress := newProgressLine(w, !surveyJSON)
	opts := append(surveyorOptions(),
		survey.WithProgress(func(index, total int, systemName string) {
			progress.set(fmt.Sprintf("%sSurveying:%s %d/%d  %s",
				colorGray, colorReset, index, total, systemName))
		}),
	)

	report, err := survey.NewSurveyor(client, opts...).Run(ctx, names)
	progress.finish()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("survey: %w", err)
	}

	if surveyJSON {
		return report.WriteJSON(w)
	}
	return report.WriteText(w)
}

// =============================================================================
// Follow Mode
// =============================================================================

// followJournals watches a journal directory and assesses each newly
// journalled system as it appears.
func followJournals(ctx context.Context, w io.Writer, client *edsm.Client) error {
	follower, err := journal.NewFollower(journal.FollowConfig{
		Root:       surveyFollowDir,
		Pattern:    cfg.Journal.Pattern,
		Debounce:   journal.DefaultDebounce,
		DedupeSize: cfg.Journal.DedupeSize,
	})
	if err != nil {
		return fmt.Errorf("follow %s: %w", surveyFollowDir, err)
	}

	names, err := follower.Start(ctx)
	if err != nil {
		return fmt.Errorf("follow %s: %w", surveyFollowDir, err)
	}
	defer follower.Stop()

	fmt.Fprintf(w, "%sFollowing %s - Press Ctrl+C to stop%s\n", colorGray, surveyFollowDir, colorReset)

	// Follow mode assesses one system at a time, so progress reporting
	// would only ever say 1/1.
	surveyor := survey.NewSurveyor(client, surveyorOptions()...)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(w, "%sFollow stopped.%s\n", colorGray, colorReset)
			return nil
		case name, ok := <-names:
			if !ok {
				return nil
			}
			surveyOne(ctx, w, surveyor, name)
		}
	}
}

// surveyOne assesses a single system and prints a one-line verdict.
func surveyOne(ctx context.Context, w io.Writer, surveyor *survey.Surveyor, name string) {
	report, err := surveyor.Run(ctx, []string{name})
	if err != nil {
		return
	}
	switch {
	case len(report.Interesting) > 0:
		a := report.Interesting[0]
		fmt.Fprintf(w, "%s%s%s  %d bodies, %d landable, %d with atmosphere\n",
			colorGreen, a.Name, colorReset, a.BodyCount, a.Landable, a.Atmospheres)
	case len(report.Unknown) > 0:
		fmt.Fprintf(w, "%s%s: not known to EDSM%s\n", colorGray, name, colorReset)
	case len(report.Failures) > 0:
		fmt.Fprintf(w, "%s%s: %s%s\n", colorRed, name, report.Failures[0].Error, colorReset)
	default:
		fmt.Fprintf(w, "%s%s: nothing of interest%s\n", colorGray, name, colorReset)
	}
}
