package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/wssync/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_TriggersOnNewFile(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, 50*time.Millisecond, testutil.Logger(), func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	testutil.WriteFile(t, filepath.Join(root, "ws1", "a.txt"), "a")

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "trigger not called after file creation")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop after cancel")
	}
}

func TestWatch_DebouncesBurst(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, root, 300*time.Millisecond, testutil.Logger(), func(context.Context) error {
		calls.Add(1)
		return nil
	})
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		testutil.WriteFile(t, filepath.Join(root, "burst.txt"), time.Now().String())
		time.Sleep(20 * time.Millisecond)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "trigger not called after burst")
	time.Sleep(500 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestWatch_MissingRoot(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), 0, testutil.Logger(), func(context.Context) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestWatch_FollowsSymlinkedWorkspace(t *testing.T) {
	root := t.TempDir()
	linked := t.TempDir()
	if err := os.Symlink(linked, filepath.Join(root, "ws1")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, 50*time.Millisecond, testutil.Logger(), func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)
	testutil.WriteFile(t, filepath.Join(linked, "a.txt"), "a")

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "trigger not called after change behind symlink")

	cancel()
	<-done
}
