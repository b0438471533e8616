package deb

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func newTestStaging(t *testing.T) *Staging {
	t.Helper()
	s, err := newStaging()
	if err != nil {
		t.Fatalf("newStaging failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(s.Root()) })
	return s
}

func TestStagingLayout(t *testing.T) {
	s := newTestStaging(t)

	for _, dir := range []string{s.Root(), s.DataRoot(), s.ControlRoot()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
	if filepath.Dir(s.DataRoot()) != s.Root() {
		t.Errorf("data tree %s not under root %s", s.DataRoot(), s.Root())
	}

	// Two contexts must never share a scratch root.
	other := newTestStaging(t)
	if other.Root() == s.Root() {
		t.Errorf("staging roots collide: %s", s.Root())
	}
}

func TestControlPath(t *testing.T) {
	s := newTestStaging(t)

	got := s.ControlPath("control")
	want := filepath.Join(s.ControlRoot(), "control")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	// No existence check: the file does not get created.
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Errorf("ControlPath should not create the file")
	}
}

func TestDataPathCreatesAncestors(t *testing.T) {
	s := newTestStaging(t)

	got, err := s.DataPath("/usr/share/doc/foo/copyright", 0o755)
	if err != nil {
		t.Fatalf("DataPath failed: %v", err)
	}
	want := filepath.Join(s.DataRoot(), "usr", "share", "doc", "foo", "copyright")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	// Every ancestor exists; the leaf itself does not.
	if _, err := os.Stat(filepath.Dir(got)); err != nil {
		t.Errorf("parent directory missing: %v", err)
	}
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Errorf("leaf should not be created")
	}
}

func TestDataPathAppliesMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no unix permission bits on windows")
	}
	s := newTestStaging(t)

	if _, err := s.DataPath("/opt/app/bin/tool", 0o750); err != nil {
		t.Fatalf("DataPath failed: %v", err)
	}
	for _, dir := range []string{"opt", "opt/app", "opt/app/bin"} {
		info, err := os.Stat(filepath.Join(s.DataRoot(), dir))
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if perm := info.Mode().Perm(); perm != 0o750 {
			t.Errorf("%s: expected mode 0750, got %o", dir, perm)
		}
	}

	// A later call at a different mode re-walks the ancestors: last write wins.
	if _, err := s.DataPath("/opt/app/etc/conf", 0o755); err != nil {
		t.Fatalf("DataPath failed: %v", err)
	}
	info, err := os.Stat(filepath.Join(s.DataRoot(), "opt", "app"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o755 {
		t.Errorf("expected mode 0755 after re-walk, got %o", perm)
	}
}

func TestDataDirPath(t *testing.T) {
	s := newTestStaging(t)

	got, err := s.DataDirPath("/var/lib/app", 0o755, true)
	if err != nil {
		t.Fatalf("DataDirPath failed: %v", err)
	}
	info, err := os.Stat(got)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", got)
	}

	// Read-only resolution must not create anything.
	inspect, err := s.DataDirPath("/etc", 0o755, false)
	if err != nil {
		t.Fatalf("DataDirPath failed: %v", err)
	}
	if _, err := os.Stat(inspect); !os.IsNotExist(err) {
		t.Errorf("makeIfMissing=false should not create %s", inspect)
	}
	if !strings.HasPrefix(inspect, s.DataRoot()) {
		t.Errorf("resolved path %s escapes the data tree", inspect)
	}
}
