package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/wssync/internal/apperr"
	"github.com/starford/wssync/internal/catalogue"
	"github.com/starford/wssync/internal/history"
	"github.com/starford/wssync/internal/lock"
	"github.com/starford/wssync/internal/models"
	"github.com/starford/wssync/internal/testutil"
)

type fakeHistory struct {
	runs []models.RunResult
}

func (f *fakeHistory) Record(res models.RunResult) (int64, error) {
	f.runs = append(f.runs, res)
	return int64(len(f.runs)), nil
}
func (f *fakeHistory) Recent(int) ([]history.Run, error) { return nil, nil }
func (f *fakeHistory) Copies(int64) ([]history.Copy, error) { return nil, nil }
func (f *fakeHistory) Close() error                          { return nil }

func newRunner(t *testing.T, s Settings, opts ...Option) (*Runner, string) {
	t.Helper()
	dst, store := testutil.TestTarget(t)
	opts = append([]Option{WithLogger(testutil.Logger())}, opts...)
	return New(store, s, opts...), dst
}

func readCatalogue(t *testing.T, path string) []models.Entry {
	t.Helper()
	var out []models.Entry
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, path)), &out); err != nil {
		t.Fatalf("parse catalogue: %v", err)
	}
	return out
}

func TestRun_ScenarioDocsSubpath(t *testing.T) {
	src := t.TempDir()
	testutil.WriteFile(t, filepath.Join(src, "ws1", "report", "a.txt"), "new")
	bp := filepath.Join(src, "ws1", "report", "b.txt")
	testutil.WriteFile(t, bp, "b")
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	testutil.SetModTime(t, bp, stamp)

	r, dst := newRunner(t, Settings{SourceRoot: src, Docs: "report", Prefix: "data"})
	dbp := filepath.Join(dst, "ws1", "b.txt")
	testutil.WriteFile(t, dbp, "b-dest")
	testutil.SetModTime(t, dbp, stamp)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Copied) != 1 || res.Copied[0].Path != "a.txt" {
		t.Errorf("copied = %+v", res.Copied)
	}
	if !res.Rebuilt {
		t.Error("expected catalogue rebuild")
	}
	if got := testutil.ReadFile(t, filepath.Join(dst, "ws1", "a.txt")); got != "new" {
		t.Errorf("a.txt = %q", got)
	}
	if got := testutil.ReadFile(t, dbp); got != "b-dest" {
		t.Errorf("b.txt touched: %q", got)
	}

	entries := readCatalogue(t, filepath.Join(dst, catalogue.DefaultFile))
	if len(entries) != 1 || entries[0] != models.DefaultEntry(1) {
		t.Errorf("entries = %+v", entries)
	}
}

func TestRun_IdempotentSecondRun(t *testing.T) {
	src := t.TempDir()
	testutil.WriteWorkspace(t, filepath.Join(src, "ws1"), testutil.Meta{Title: "One", Author: "A"})
	testutil.WriteWorkspace(t, filepath.Join(src, "ws2"), testutil.Meta{Title: "Two", Author: "B"})

	r, dst := newRunner(t, Settings{SourceRoot: src, Prefix: "data/"})
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	catPath := filepath.Join(dst, catalogue.DefaultFile)
	entries := readCatalogue(t, catPath)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Title != "One" || entries[0].Doc != "data/ws1/report.pdf" || entries[1].ID != 2 {
		t.Errorf("entries = %+v", entries)
	}

	old := time.Now().Add(-time.Hour)
	testutil.SetModTime(t, catPath, old)
	before := testutil.ReadFile(t, catPath)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.AnyCopied() || res.Rebuilt {
		t.Errorf("second run copied=%d rebuilt=%v", len(res.Copied), res.Rebuilt)
	}
	if got := testutil.ReadFile(t, catPath); got != before {
		t.Error("catalogue content changed")
	}
	if got := testutil.ModTime(t, catPath); !got.Equal(old) {
		t.Errorf("catalogue mtime changed: %v", got)
	}
}

func TestRun_NoCopyLeavesStaleCatalogue(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "ws1"), 0o755); err != nil {
		t.Fatal(err)
	}
	r, dst := newRunner(t, Settings{SourceRoot: src})
	catPath := filepath.Join(dst, catalogue.DefaultFile)
	testutil.WriteFile(t, catPath, "stale")

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rebuilt {
		t.Error("catalogue should not be rebuilt")
	}
	if got := testutil.ReadFile(t, catPath); got != "stale" {
		t.Errorf("catalogue = %q", got)
	}
}

func TestRun_RebuildsEveryWorkspace(t *testing.T) {
	src := t.TempDir()
	testutil.WriteWorkspace(t, filepath.Join(src, "ws1"), testutil.Meta{Title: "One"})
	testutil.WriteWorkspace(t, filepath.Join(src, "ws2"), testutil.Meta{Title: "Two"})

	r, dst := newRunner(t, Settings{SourceRoot: src})
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Touch only ws2; the catalogue must still cover ws1.
	tp := filepath.Join(src, "ws2", models.TitleFile)
	testutil.WriteFile(t, tp, "Two, revised")
	testutil.SetModTime(t, tp, time.Now().Add(time.Minute))

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Copied) != 1 || !res.Rebuilt {
		t.Fatalf("copied=%d rebuilt=%v", len(res.Copied), res.Rebuilt)
	}
	entries := readCatalogue(t, filepath.Join(dst, catalogue.DefaultFile))
	if len(entries) != 2 || entries[0].Title != "One" || entries[1].Title != "Two, revised" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestRun_IgnoresFilesInSourceRoot(t *testing.T) {
	src := t.TempDir()
	testutil.WriteFile(t, filepath.Join(src, "README"), "not a workspace")
	testutil.WriteFile(t, filepath.Join(src, "ws1", "a.txt"), "a")

	r, _ := newRunner(t, Settings{SourceRoot: src})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Workspaces) != 1 || res.Workspaces[0] != "ws1" {
		t.Errorf("workspaces = %v", res.Workspaces)
	}
}

func TestRun_MissingSourceRoot(t *testing.T) {
	r, _ := newRunner(t, Settings{SourceRoot: filepath.Join(t.TempDir(), "nope")})
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing source root")
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	src := t.TempDir()
	testutil.WriteWorkspace(t, filepath.Join(src, "ws1"), testutil.Meta{Title: "One"})

	r, dst := newRunner(t, Settings{SourceRoot: src, DryRun: true})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.AnyCopied() || res.Rebuilt {
		t.Errorf("copied=%d rebuilt=%v", len(res.Copied), res.Rebuilt)
	}
	if _, err := os.Stat(filepath.Join(dst, catalogue.DefaultFile)); !os.IsNotExist(err) {
		t.Error("dry run wrote a catalogue")
	}
}

func TestRun_LockHeld(t *testing.T) {
	src := t.TempDir()
	testutil.WriteFile(t, filepath.Join(src, "ws1", "a.txt"), "a")

	r, dst := newRunner(t, Settings{SourceRoot: src, Lock: true})
	l, err := lock.Acquire(dst)
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Run(context.Background())
	if !errors.Is(err, apperr.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
	_ = l.Release()

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run after release: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, lock.FileName)); !os.IsNotExist(err) {
		t.Error("lock file left behind")
	}
}

func TestRun_HooksAndHistory(t *testing.T) {
	src := t.TempDir()
	testutil.WriteFile(t, filepath.Join(src, "ws1", "a.txt"), "a")

	h := &fakeHistory{}
	var hooked []models.RunResult
	r, _ := newRunner(t, Settings{SourceRoot: src},
		WithHistory(h),
		WithHook(func(res models.RunResult, err error) {
			if err != nil {
				t.Errorf("hook err: %v", err)
			}
			hooked = append(hooked, res)
		}))

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.runs) != 1 || len(h.runs[0].Copied) != 1 {
		t.Errorf("history = %+v", h.runs)
	}
	if len(hooked) != 1 || hooked[0].FinishedAt.IsZero() {
		t.Errorf("hooked = %+v", hooked)
	}
}

func TestListWorkspaces_FollowsSymlinks(t *testing.T) {
	src := t.TempDir()
	other := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "ws1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(other, filepath.Join(src, "linked")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	got, err := ListWorkspaces(src)
	if err != nil {
		t.Fatalf("ListWorkspaces: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("workspaces = %v", got)
	}
}

func TestRun_MirrorsSymlinkedWorkspace(t *testing.T) {
	src := t.TempDir()
	other := t.TempDir()
	testutil.WriteFile(t, filepath.Join(other, "a.txt"), "alpha")
	if err := os.Symlink(other, filepath.Join(src, "ws1")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	r, dst := newRunner(t, Settings{SourceRoot: src})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Copied) != 1 || !res.Rebuilt {
		t.Fatalf("copied = %d rebuilt = %v, want 1 and true", len(res.Copied), res.Rebuilt)
	}
	if got := testutil.ReadFile(t, filepath.Join(dst, "ws1", "a.txt")); got != "alpha" {
		t.Errorf("a.txt = %q", got)
	}
}
