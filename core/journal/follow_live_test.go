//go:build fsnotify
// +build fsnotify

package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveFollowConfig shortens the debounce so tests settle quickly.
func liveFollowConfig(root string) FollowConfig {
	config := DefaultFollowConfig(root)
	config.Debounce = 20 * time.Millisecond
	return config
}

// waitForName waits for one name with a timeout.
func waitForName(t *testing.T, ch <-chan string, timeout time.Duration) string {
	t.Helper()

	select {
	case name, ok := <-ch:
		if !ok {
			t.Fatal("name channel closed while waiting")
		}
		return name
	case <-time.After(timeout):
		t.Fatal("timeout waiting for name")
		return ""
	}
}

func TestFollowerEmitsAppendedNames(t *testing.T) {
	root := t.TempDir()

	f, err := NewFollower(liveFollowConfig(root))
	require.NoError(t, err)
	t.Cleanup(func() { f.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	names, err := f.Start(ctx)
	require.NoError(t, err)

	path := filepath.Join(root, "Journal.2026-01-05T101533.01.log")
	require.NoError(t, os.WriteFile(path, []byte("System: Alpha (ID64: 1)\n"), 0o644))

	assert.Equal(t, "Alpha", waitForName(t, names, 5*time.Second))
}

func TestFollowerSkipsPreexistingContent(t *testing.T) {
	root := t.TempDir()

	path := filepath.Join(root, "Journal.2026-01-05T101533.01.log")
	require.NoError(t, os.WriteFile(path, []byte("System: Old (ID64: 1)\n"), 0o644))

	f, err := NewFollower(liveFollowConfig(root))
	require.NoError(t, err)
	t.Cleanup(func() { f.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	names, err := f.Start(ctx)
	require.NoError(t, err)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = file.WriteString("System: New Arrival (ID64: 2)\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	assert.Equal(t, "New Arrival", waitForName(t, names, 5*time.Second))
}

func TestFollowerIgnoresNonJournalFiles(t *testing.T) {
	root := t.TempDir()

	f, err := NewFollower(liveFollowConfig(root))
	require.NoError(t, err)
	t.Cleanup(func() { f.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	names, err := f.Start(ctx)
	require.NoError(t, err)

	path := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("System: Hidden (ID64: 5)\n"), 0o644))

	select {
	case name := <-names:
		t.Fatalf("unexpected name %q from non-journal file", name)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFollowerContextCancelClosesChannel(t *testing.T) {
	f, err := NewFollower(liveFollowConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { f.Stop() })

	ctx, cancel := context.WithCancel(context.Background())

	names, err := f.Start(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-names:
		assert.False(t, ok, "channel should close after cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}
