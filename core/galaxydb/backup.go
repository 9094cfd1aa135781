package galaxydb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// BackupProgress receives incremental copy progress: pages still to copy,
// total pages in the source, and elapsed wall-clock time.
type BackupProgress func(remaining, total int, elapsed time.Duration)

// backupPagesPerStep is the page batch per backup step. Small enough to
// surface progress on multi-gigabyte stores, large enough to keep the step
// overhead negligible.
const backupPagesPerStep = 1024

// BackupTo copies the whole store into a fresh database file at path using
// the sqlite online backup API. The copy is atomic from the reader's point
// of view; callers must still keep writers away for the duration.
func (g *GalaxyDB) BackupTo(ctx context.Context, path string, progress BackupProgress) error {
	dest, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=normal", path))
	if err != nil {
		return fmt.Errorf("open backup target %s: %w", path, err)
	}
	defer dest.Close()

	if err := copyStore(ctx, dest, g.db, progress); err != nil {
		os.Remove(path)
		return fmt.Errorf("backup to %s: %w", path, err)
	}
	return nil
}

// RestoreFrom replaces the store's contents with the snapshot file at path.
// Pairs with the in-memory working configuration: restore on open, work in
// memory, dump back to disk when done.
func (g *GalaxyDB) RestoreFrom(ctx context.Context, path string, progress BackupProgress) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("snapshot not found at %s: %w", path, err)
	}

	src, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer src.Close()

	if err := copyStore(ctx, g.db, src, progress); err != nil {
		return fmt.Errorf("restore from %s: %w", path, err)
	}
	return nil
}

// copyStore drives sqlite3_backup_step from src into dest in page batches,
// reporting progress and honoring cancellation between batches.
func copyStore(ctx context.Context, dest, src *sql.DB, progress BackupProgress) error {
	destConn, err := dest.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire target conn: %w", err)
	}
	defer destConn.Close()

	srcConn, err := src.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire source conn: %w", err)
	}
	defer srcConn.Close()

	return destConn.Raw(func(destDriverConn any) error {
		return srcConn.Raw(func(srcDriverConn any) error {
			destRaw, ok := destDriverConn.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("target conn is %T, not sqlite3", destDriverConn)
			}
			srcRaw, ok := srcDriverConn.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("source conn is %T, not sqlite3", srcDriverConn)
			}
			return runBackupSteps(ctx, destRaw, srcRaw, progress)
		})
	})
}

func runBackupSteps(ctx context.Context, dest, src *sqlite3.SQLiteConn, progress BackupProgress) error {
	backup, err := dest.Backup("main", src, "main")
	if err != nil {
		return fmt.Errorf("init backup: %w", err)
	}
	defer backup.Finish()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		done, err := backup.Step(backupPagesPerStep)
		if err != nil {
			return fmt.Errorf("backup step: %w", err)
		}

		if progress != nil {
			progress(backup.Remaining(), backup.PageCount(), time.Since(start))
		}

		if done {
			return nil
		}
	}
}
