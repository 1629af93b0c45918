//go:build unix

package store

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	childPathEnv   = "STORE_TEST_CHILD_PATH"
	childMarkerEnv = "STORE_TEST_CHILD_MARKER"
)

// TestChildProcessIncrement is the body of the second process started by
// TestUpdate_OtherProcessWaitsForLock. It does nothing in a normal run.
func TestChildProcessIncrement(t *testing.T) {
	path := os.Getenv(childPathEnv)
	if path == "" {
		t.Skip("only runs as a child process")
	}
	require.NoError(t, os.WriteFile(os.Getenv(childMarkerEnv), nil, 0o600))

	c := openItems(t, path)
	_, err := c.Update(context.Background(), func(records []item) ([]item, error) {
		records[0].Count += 10
		return records, nil
	})
	require.NoError(t, err)
}

func TestUpdate_OtherProcessWaitsForLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	marker := filepath.Join(dir, "child-started")
	ctx := context.Background()
	c := openItems(t, path)
	require.NoError(t, c.Save(ctx, []item{{Name: "counter"}}))

	child := exec.Command(os.Args[0], "-test.run=^TestChildProcessIncrement$")
	child.Env = append(os.Environ(), childPathEnv+"="+path, childMarkerEnv+"="+marker)
	done := make(chan error, 1)

	_, err := c.Update(ctx, func(records []item) ([]item, error) {
		require.NoError(t, child.Start())
		go func() { done <- child.Wait() }()

		require.Eventually(t, func() bool {
			_, err := os.Stat(marker)
			return err == nil
		}, 10*time.Second, 10*time.Millisecond)

		select {
		case err := <-done:
			t.Fatalf("child finished while the lock was held: %v", err)
		case <-time.After(300 * time.Millisecond):
		}
		records[0].Count++
		return records, nil
	})
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("child did not finish")
	}

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, got[0].Count, "both writes survive")
}

func TestLock_CanceledWhileHeldElsewhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	held, err := acquireFileLock(context.Background(), path+".lock")
	require.NoError(t, err)
	defer held.release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = openItems(t, path).Load(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
