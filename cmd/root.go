// Package cmd provides CLI commands for the stargrid application.
// This file implements the root command and the shared store lifecycle.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/adalundhe/stargrid/core/config"
	"github.com/adalundhe/stargrid/core/galaxydb"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// =============================================================================
// Root Command Flags
// =============================================================================

var (
	rootDBPath       string
	rootConfigPath   string
	rootDropIndex    bool
	rootRebuildIndex bool
	rootDumpTo       string
	rootRestoreFrom  string
	rootVerbose      bool
)

// cfg holds the layered configuration resolved before any command runs.
var cfg = config.DefaultConfig()

// =============================================================================
// Root Command
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stargrid",
	Short: "Spatially indexed star system catalogue",
	Long: `Stargrid maintains a spatially indexed catalogue of star systems built
from galaxy snapshot dumps and answers proximity and ownership queries,
including where a faction could settle next.`,
	PersistentPreRunE: setupRuntime,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootDBPath, "db", config.DefaultStorePath, "Path to the store file")
	flags.StringVar(&rootConfigPath, "config", "", "Config file (replaces the layered lookup)")
	flags.BoolVar(&rootDropIndex, "drop-index", false, "Drop secondary indexes before the operation")
	flags.BoolVar(&rootRebuildIndex, "rebuild-index", false, "Rebuild secondary indexes after the operation")
	flags.StringVar(&rootDumpTo, "dump-to", "", "Back up the store to this file after all operations")
	flags.StringVar(&rootRestoreFrom, "restore-from", "", "Restore the store from this file before all operations")
	flags.BoolVarP(&rootVerbose, "verbose", "v", false, "Verbose logging")
}

// setupRuntime loads the layered configuration and wires logging before any
// command runs.
func setupRuntime(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(rootConfigPath)
	if err != nil {
		return err
	}
	cfg = loaded

	// An explicit --db beats the configured store path.
	if !cmd.Root().PersistentFlags().Changed("db") && cfg.Store.Path != "" {
		rootDBPath = cfg.Store.Path
	}

	level := slog.LevelWarn
	if rootVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	return nil
}

// =============================================================================
// Store Lifecycle
// =============================================================================

// withStore opens the backing store and brackets fn with the maintenance
// operations requested by the persistent flags: restore first, index drop
// before, index rebuild and dump after.
func withStore(ctx context.Context, w io.Writer, bulk bool, fn func(ctx context.Context, db *galaxydb.GalaxyDB) error) error {
	dbConfig := galaxydb.DefaultDBConfig(rootDBPath)
	if bulk {
		dbConfig = galaxydb.BulkDBConfig(rootDBPath)
	}

	db, err := galaxydb.OpenWithConfig(dbConfig)
	if err != nil {
		return fmt.Errorf("open store %s: %w", rootDBPath, err)
	}
	defer db.Close()

	if rootRestoreFrom != "" {
		if err := runRestore(ctx, w, db, rootRestoreFrom); err != nil {
			return err
		}
	}
	if rootDropIndex {
		if err := db.DropIndexes(); err != nil {
			return fmt.Errorf("drop indexes: %w", err)
		}
	}

	if err := fn(ctx, db); err != nil {
		return err
	}

	if rootRebuildIndex {
		if err := db.EnsureIndexes(); err != nil {
			return fmt.Errorf("rebuild indexes: %w", err)
		}
		if err := db.Analyze(); err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
	}
	if rootDumpTo != "" {
		return runBackup(ctx, w, db, rootDumpTo)
	}
	return nil
}

// =============================================================================
// Interrupt Handling
// =============================================================================

// signalContext returns a context cancelled on the first SIGINT or SIGTERM.
func signalContext(w io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			fmt.Fprintln(w, "\nInterrupted. Finishing up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// =============================================================================
// Progress Rendering
// =============================================================================

// progressLine renders a single overwriting status line. Rendering is
// disabled when the writer is not a terminal so piped output stays clean.
type progressLine struct {
	writer  io.Writer
	enabled bool
	lastLen int
}

// newProgressLine creates a progress line on w.
func newProgressLine(w io.Writer, enabled bool) *progressLine {
	return &progressLine{
		writer:  w,
		enabled: enabled && isTerminal(w),
	}
}

// set replaces the current status line.
func (p *progressLine) set(line string) {
	if !p.enabled {
		return
	}

	padded := line
	if p.lastLen > len(line) {
		padded += strings.Repeat(" ", p.lastLen-len(line))
	}
	p.lastLen = len(line)

	fmt.Fprint(p.writer, "\r"+padded)
}

// finish clears the status line.
func (p *progressLine) finish() {
	if !p.enabled || p.lastLen == 0 {
		return
	}
	fmt.Fprint(p.writer, "\r"+strings.Repeat(" ", p.lastLen)+"\r")
	p.lastLen = 0
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
