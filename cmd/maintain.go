// Package cmd provides CLI commands for the stargrid application.
// This file implements the maintain command for store maintenance.
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/adalundhe/stargrid/core/galaxydb"
	"github.com/spf13/cobra"
)

// =============================================================================
// Maintain Command
// =============================================================================

// maintainCmd represents the maintain command.
var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Maintain the catalogue store",
	Long: `Maintain the catalogue store.

Subcommands:
  backup   - Write an online backup of the store to a file
  restore  - Replace the store contents from a backup file
  reindex  - Drop and rebuild the derived indexes

Examples:
  stargrid maintain backup galaxy_backup.sqlite
  stargrid maintain restore galaxy_backup.sqlite
  stargrid maintain reindex`,
}

// maintainBackupCmd writes an online backup.
var maintainBackupCmd = &cobra.Command{
	Use:   "backup <file>",
	Short: "Write an online backup of the store to a file",
	Long: `Write an online backup of the store to a file. The store stays
readable while the backup runs; a write restarts the copy.`,
	Args: cobra.ExactArgs(1),
	RunE: runMaintainBackup,
}

// maintainRestoreCmd restores from a backup.
var maintainRestoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Replace the store contents from a backup file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMaintainRestore,
}

// maintainReindexCmd rebuilds the derived indexes.
var maintainReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Drop and rebuild the derived indexes",
	Long: `Drop and rebuild the derived indexes, then refresh the query
planner statistics. Useful after a large out-of-band import.`,
	Args: cobra.NoArgs,
	RunE: runMaintainReindex,
}

func init() {
	rootCmd.AddCommand(maintainCmd)
	maintainCmd.AddCommand(maintainBackupCmd)
	maintainCmd.AddCommand(maintainRestoreCmd)
	maintainCmd.AddCommand(maintainReindexCmd)
}

// =============================================================================
// Maintain Execution
// =============================================================================

// runMaintainBackup backs the live store up to the named file.
func runMaintainBackup(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	return withStore(ctx, out, false, func(ctx context.Context, db *galaxydb.GalaxyDB) error {
		return runBackup(ctx, out, db, args[0])
	})
}

// runMaintainRestore replaces the live store from the named file.
func runMaintainRestore(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	return withStore(ctx, out, false, func(ctx context.Context, db *galaxydb.GalaxyDB) error {
		return runRestore(ctx, out, db, args[0])
	})
}

// runMaintainReindex drops and rebuilds the derived indexes.
func runMaintainReindex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()
	out := cmd.OutOrStdout()

	return withStore(ctx, out, false, func(ctx context.Context, db *galaxydb.GalaxyDB) error {
		if err := db.DropIndexes(); err != nil {
			return fmt.Errorf("drop indexes: %w", err)
		}
		if err := db.EnsureIndexes(); err != nil {
			return fmt.Errorf("rebuild indexes: %w", err)
		}
		if err := db.Analyze(); err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		fmt.Fprintf(out, "%sIndexes rebuilt.%s\n", colorGreen, colorReset)
		return nil
	})
}

// =============================================================================
// Backup Helpers
// =============================================================================

// runBackup writes an online backup of db to path. It also serves the
// root --dump-to flag, which runs after the wrapped command finishes.
func runBackup(ctx context.Context, w io.Writer, db *galaxydb.GalaxyDB, path string) error {
	progress := newProgressLine(w, true)
	err := db.BackupTo(ctx, path, backupProgress(progress, "Backing up"))
	progress.finish()
	if err != nil {
		return fmt.Errorf("backup to %s: %w", path, err)
	}
	fmt.Fprintf(w, "%sBackup written to %s%s\n", colorGreen, path, colorReset)
	return nil
}

// runRestore replaces the contents of db from the backup at path. It also
// serves the root --restore-from flag, which runs before the wrapped command.
func runRestore(ctx context.Context, w io.Writer, db *galaxydb.GalaxyDB, path string) error {
	progress := newProgressLine(w, true)
	err := db.RestoreFrom(ctx, path, backupProgress(progress, "Restoring"))
	progress.finish()
	if err != nil {
		return fmt.Errorf("restore from %s: %w", path, err)
	}
	fmt.Fprintf(w, "%sStore restored from %s%s\n", colorGreen, path, colorReset)
	return nil
}

// backupProgress renders page-copy progress on a single overwritten line.
func backupProgress(line *progressLine, verb string) galaxydb.BackupProgress {
	return func(remaining, total int, elapsed time.Duration) {
		done := total - remaining
		pct := 0
		if total > 0 {
			pct = done * 100 / total
		}
		line.set(fmt.Sprintf("%s%s:%s %d/%d pages (%d%%)  %sElapsed:%s %v",
			colorGray, verb, colorReset, done, total, pct,
			colorGray, colorReset, elapsed.Round(time.Second)))
	}
}
