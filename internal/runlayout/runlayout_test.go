package runlayout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCreatesSessionLayout(t *testing.T) {
	root := t.TempDir()
	r, err := New(root, "single")
	if err != nil {
		t.Fatal(err)
	}

	base := filepath.Base(r.Dir)
	if !strings.HasPrefix(base, "single_") {
		t.Fatalf("session dir %q does not start with mode prefix", base)
	}
	if parts := strings.Split(base, "_"); len(parts) != 3 {
		t.Fatalf("session dir %q is not <mode>_<time>_<rand>", base)
	}

	if _, err := os.Stat(filepath.Join(r.Dir, "big_files")); err != nil {
		t.Fatalf("big_files missing: %v", err)
	}

	wdir, err := r.WorkerDir(2)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(wdir) != "worker_2" {
		t.Fatalf("unexpected worker dir %q", wdir)
	}
	if _, err := os.Stat(wdir); err != nil {
		t.Fatalf("worker dir missing: %v", err)
	}
}

func TestNewRunsDoNotCollide(t *testing.T) {
	root := t.TempDir()
	a, err := New(root, "multi")
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(root, "multi")
	if err != nil {
		t.Fatal(err)
	}
	if a.Dir == b.Dir {
		t.Fatalf("two runs share the directory %q", a.Dir)
	}
}

func TestAttachRecoversMode(t *testing.T) {
	root := t.TempDir()
	created, err := New(root, "multi")
	if err != nil {
		t.Fatal(err)
	}

	attached, err := Attach(created.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if attached.Mode != "multi" {
		t.Fatalf("got mode %q want %q", attached.Mode, "multi")
	}
	if attached.QueueFilePath() != created.QueueFilePath() {
		t.Fatal("attach resolved a different queue path")
	}
}

func TestAttachRejectsMissingDir(t *testing.T) {
	if _, err := Attach(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error attaching to a missing directory")
	}
}

func TestBigFilePathsAreUnique(t *testing.T) {
	root := t.TempDir()
	r, err := New(root, "single")
	if err != nil {
		t.Fatal(err)
	}
	a := r.BigFilePath("https://example.com/huge.bin")
	b := r.BigFilePath("https://example.com/huge.bin")
	if a == b {
		t.Fatalf("big file paths collide: %q", a)
	}
	if !strings.HasSuffix(a, ".dat") {
		t.Fatalf("big file path %q missing .dat suffix", a)
	}
}
