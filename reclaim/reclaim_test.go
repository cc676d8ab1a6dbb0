package reclaim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReclaimer_RemovesFileAfterDelay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	r := New(context.Background(), zap.NewNop().Sugar())
	r.Schedule(path, 20*time.Millisecond)

	// File must survive until the delay elapses
	_, err := os.Stat(path)
	assert.NoError(t, err, "Artifact should still exist immediately after scheduling")

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "Artifact should be removed after the delay")

	r.Wait()
}

func TestReclaimer_MissingFileIsNotAnError(t *testing.T) {
	r := New(context.Background(), zap.NewNop().Sugar())
	r.Schedule(filepath.Join(t.TempDir(), "never-existed.pdf"), time.Millisecond)

	// Wait must return even though the removal target was gone
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return for a missing reclaim target")
	}
}

func TestReclaimer_ShutdownAbandonsPendingReclaims(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	r := New(ctx, zap.NewNop().Sugar())
	r.Schedule(path, time.Hour)

	cancel()
	r.Wait()

	_, err := os.Stat(path)
	assert.NoError(t, err, "Cancelled reclaimer should leave the file in place")
}

func TestReclaimer_DefaultDelayApplied(t *testing.T) {
	r := New(context.Background(), zap.NewNop().Sugar())

	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	// A non-positive delay falls back to DefaultDelay, far beyond this test
	r.Schedule(path, 0)
	time.Sleep(50 * time.Millisecond)

	_, err := os.Stat(path)
	assert.NoError(t, err, "Default delay should keep the file around well past scheduling")
}
